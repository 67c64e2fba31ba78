package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/llm"
)

// maxParseRetries bounds how many times a malformed-JSON response is
// sent back to the model with a reminder before giving up.
const maxParseRetries = 3

// jsonFence strips a leading/trailing ```json ... ``` (or bare ```)
// fence, which models commonly wrap structured output in despite being
// asked not to.
var jsonFence = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if m := jsonFence.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return s
}

// askJSON asks client with messages, expecting the reply's Content to be
// a single JSON object unmarshalling into out's type. On parse failure
// it appends a corrective reminder and retries, up to maxParseRetries
// times.
func askJSON(ctx context.Context, client llm.Client, messages []llm.Message, out any) error {
	var lastErr error
	for attempt := 0; attempt <= maxParseRetries; attempt++ {
		resp, err := client.Ask(ctx, messages)
		if err != nil {
			return fmt.Errorf("ask: %w", err)
		}

		content := stripFence(resp.Content)
		if err := json.Unmarshal([]byte(content), out); err != nil {
			lastErr = fmt.Errorf("parse structured response: %w", err)
			messages = append(messages,
				llm.Message{Role: llm.RoleAssistant, Content: resp.Content},
				llm.Message{Role: llm.RoleUser, Content: "Your last reply was not valid JSON matching the requested schema. Reply with ONLY the JSON object, no prose, no code fence."},
			)
			continue
		}
		return nil
	}
	return fmt.Errorf("giving up after %d attempts: %w", maxParseRetries+1, lastErr)
}

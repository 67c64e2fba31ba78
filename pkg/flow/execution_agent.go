package flow

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/llm"
	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/sandbox"
)

// maxToolIterations bounds one ExecutionAgent.Run call's tool-calling
// loop, so a model that never converges on a final answer cannot hang a
// step forever.
const maxToolIterations = 12

// execToolArgs is the JSON shape every sandbox-backed tool accepts.
type execToolArgs struct {
	Path    string `json:"path,omitempty"`
	Content string `json:"content,omitempty"`
	Command string `json:"command,omitempty"`
	Dir     string `json:"dir,omitempty"`
	Glob    string `json:"glob,omitempty"`
}

// toolDefs is the fixed tool surface exposed to every ExecutionAgent,
// translated 1:1 onto sandbox.Sandbox operations.
var toolDefs = []llm.ToolDefinition{
	{Name: "exec_command", Description: "Run a shell command in the sandbox.", ParametersSchema: `{"type":"object","properties":{"dir":{"type":"string"},"command":{"type":"string"}},"required":["command"]}`},
	{Name: "file_read", Description: "Read a file from the sandbox.", ParametersSchema: `{"type":"object","properties":{"path":{"type":"string"}},"required":["path"]}`},
	{Name: "file_write", Description: "Write a file to the sandbox.", ParametersSchema: `{"type":"object","properties":{"path":{"type":"string"},"content":{"type":"string"}},"required":["path","content"]}`},
	{Name: "file_list", Description: "List files matching a glob in the sandbox.", ParametersSchema: `{"type":"object","properties":{"glob":{"type":"string"}},"required":["glob"]}`},
}

// ToolEvent reports one tool invocation an ExecutionAgent performed,
// used by callers to emit ToolCalling/ToolCalled events.
type ToolEvent struct {
	Tool     string
	Function string
	Args     string
	Result   string
}

// ExecutionAgent is the collaborator that actually invokes tools: it
// drives an AskWithTools loop against the LLM, executing each requested
// tool call against the sandbox until the model returns a final answer
// or maxToolIterations is exhausted.
type ExecutionAgent struct {
	client  llm.Client
	sandbox *sandbox.Sandbox
}

// NewExecutionAgent builds an ExecutionAgent wired to client and box.
func NewExecutionAgent(client llm.Client, box *sandbox.Sandbox) *ExecutionAgent {
	return &ExecutionAgent{client: client, sandbox: box}
}

// Run asks the model to accomplish task given systemPrompt, executing
// any tool calls it requests, and returns its final textual answer plus
// the tool events performed along the way (for internal-only forwarding
// by the caller).
func (a *ExecutionAgent) Run(ctx context.Context, systemPrompt, task string) (string, []ToolEvent, error) {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: task},
	}
	var events []ToolEvent

	for i := 0; i < maxToolIterations; i++ {
		resp, err := a.client.AskWithTools(ctx, messages, toolDefs)
		if err != nil {
			return "", events, fmt.Errorf("execution agent ask: %w", err)
		}

		if resp.Type != llm.ResponseTypeToolCall {
			return resp.Content, events, nil
		}

		result, err := a.invoke(ctx, resp.ToolName, resp.ToolArgs)
		if err != nil {
			result = fmt.Sprintf("error: %v", err)
		}
		events = append(events, ToolEvent{Tool: "sandbox", Function: resp.ToolName, Args: resp.ToolArgs, Result: result})

		messages = append(messages,
			llm.Message{Role: llm.RoleAssistant, Content: resp.Content, ToolName: resp.ToolName},
			llm.Message{Role: llm.RoleTool, Content: result, ToolName: resp.ToolName},
		)
	}

	return "", events, fmt.Errorf("execution agent: exceeded %d tool iterations without a final answer", maxToolIterations)
}

func (a *ExecutionAgent) invoke(ctx context.Context, toolName, argsJSON string) (string, error) {
	var args execToolArgs
	if argsJSON != "" {
		if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
			return "", fmt.Errorf("parse tool args: %w", err)
		}
	}

	var (
		res sandbox.Result
		err error
	)
	switch toolName {
	case "exec_command":
		res, err = a.sandbox.ExecCommand(ctx, "default", args.Dir, args.Command)
	case "file_read":
		res, err = a.sandbox.FileRead(ctx, args.Path)
	case "file_write":
		res, err = a.sandbox.FileWrite(ctx, args.Path, []byte(args.Content))
	case "file_list":
		res, err = a.sandbox.FileList(ctx, args.Glob)
	default:
		return "", fmt.Errorf("unknown tool %q", toolName)
	}
	if err != nil {
		return "", err
	}
	return resultText(res), nil
}

func resultText(res sandbox.Result) string {
	if s, ok := res.Data.(string); ok && s != "" {
		return s
	}
	return res.Message
}

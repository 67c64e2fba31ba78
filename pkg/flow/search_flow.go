package flow

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/domain"
	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/llm"
	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/search"
)

// scoreDimension is one of the evaluation axes a gap's candidate answer
// is checked against.
type scoreDimension string

const (
	dimDefinitive  scoreDimension = "definitive"
	dimFreshness   scoreDimension = "freshness"
	dimPlurality   scoreDimension = "plurality"
	dimCompleteness scoreDimension = "completeness"
	dimFile        scoreDimension = "file"
	dimBasic       scoreDimension = "basic"
)

// SearchSubFlow is the algorithmically distinctive search sub-flow: it
// does not plan/execute/report like the other kinds, but instead runs
// an iterative gap -> search -> score -> reflect loop.
type SearchSubFlow struct {
	collab Collaborators
}

// NewSearchSubFlow builds a SearchSubFlow over collab.
func NewSearchSubFlow(collab Collaborators) *SearchSubFlow {
	return &SearchSubFlow{collab: collab}
}

type gap struct {
	Text           string `json:"text"`
	IsFileDownload bool   `json:"is_file_download"`
}

type gapListWire struct {
	Gaps []gap `json:"gaps"`
}

type scoreWire struct {
	Dimensions map[string]bool `json:"dimensions"`
}

type reflectionWire struct {
	Gaps []gap `json:"gaps"`
}

func (s *SearchSubFlow) Run(ctx context.Context, step *domain.Step, knowledge []domain.MemoryEntry) <-chan domain.AgentEvent {
	out := make(chan domain.AgentEvent, 16)
	go s.run(ctx, step, knowledge, out)
	return out
}

func (s *SearchSubFlow) run(ctx context.Context, step *domain.Step, knowledge []domain.MemoryEntry, out chan<- domain.AgentEvent) {
	defer close(out)

	gaps, err := s.splitGaps(ctx, step.Description)
	if err != nil {
		step.Status = domain.StepStatusFailed
		step.Error = err.Error()
		emit(ctx, out, domain.NewError(fmt.Sprintf("search gap split failed: %v", err)))
		return
	}

	processed := make(map[string]bool)
	var gathered []domain.MemoryEntry

	for round := 0; round < MaxIterations && len(gaps) > 0; round++ {
		var failed []gap
		var failedAnswers []string

		for _, g := range gaps {
			if processed[g.Text] {
				continue
			}
			processed[g.Text] = true
			if ctx.Err() != nil {
				return
			}

			inner := &domain.Step{ID: uuid.NewString(), Description: g.Text, Status: domain.StepStatusRunning}
			if !emit(ctx, out, domain.NewStepStarted(inner)) {
				return
			}

			answer, ok := s.answerGap(ctx, g, knowledge, gathered, out)
			if !ok {
				return
			}

			dims := dimensionsFor(g)
			passed, err := s.score(ctx, g, answer, dims)
			if err != nil {
				inner.Status = domain.StepStatusFailed
				inner.Error = err.Error()
				emit(ctx, out, domain.NewStepFailed(inner))
				failed = append(failed, g)
				failedAnswers = append(failedAnswers, answer)
				continue
			}

			if passed {
				inner.Status = domain.StepStatusCompleted
				inner.Result = answer
				if !emit(ctx, out, domain.NewStepCompleted(inner)) {
					return
				}
				gathered = append(gathered, domain.MemoryEntry{Role: domain.RoleAssistant, Content: answer})
			} else {
				inner.Status = domain.StepStatusFailed
				inner.Error = "failed evaluation dimensions"
				if !emit(ctx, out, domain.NewStepFailed(inner)) {
					return
				}
				failed = append(failed, g)
				failedAnswers = append(failedAnswers, answer)
			}
		}

		if len(failed) == 0 {
			break
		}

		gaps, err = s.reflect(ctx, failed, failedAnswers)
		if err != nil {
			break // reflection failing is not fatal: synthesize with what we have
		}
	}

	final, insufficient, err := s.synthesize(ctx, step.Description, gathered)
	if err != nil {
		step.Status = domain.StepStatusFailed
		step.Error = err.Error()
		emit(ctx, out, domain.NewError(fmt.Sprintf("search synthesis failed: %v", err)))
		return
	}

	step.Status = domain.StepStatusCompleted
	step.Result = final
	if insufficient {
		step.Result = final + "\n\n(Note: available evidence was insufficient to fully answer this query.)"
	}
	emit(ctx, out, domain.NewReport(step.Result))
}

// answerGap obtains a candidate answer for one gap: search, then ask the
// Execution Agent to draft an answer from the results plus accumulated
// knowledge. Returns ok=false only when the caller should abandon the
// whole sub-flow (context cancelled).
func (s *SearchSubFlow) answerGap(ctx context.Context, g gap, knowledge, gathered []domain.MemoryEntry, out chan<- domain.AgentEvent) (string, bool) {
	results, err := s.collab.Search.Search(ctx, g.Text, nil)
	if !emit(ctx, out, domain.NewToolCalling("search", "search", g.Text)) {
		return "", false
	}
	var formatted string
	if err != nil {
		formatted = fmt.Sprintf("(search failed: %v)", err)
	} else {
		for _, r := range results {
			formatted += search.FormatResult(r) + "\n"
		}
	}
	if !emit(ctx, out, domain.NewToolCalled("search", "search", g.Text, formatted)) {
		return "", false
	}

	exec := NewExecutionAgent(s.collab.LLM, s.collab.Sandbox)
	prompt := fmt.Sprintf("Gap question: %s\n\nSearch results:\n%s\n\nAnswer the gap question using only the evidence above.", g.Text, formatted)
	answer, _, err := exec.Run(ctx, "You are a research sub-agent answering one specific gap question from search results.", describeWithKnowledge(prompt, append(knowledge, gathered...)))
	if err != nil {
		return fmt.Sprintf("(unable to answer: %v)", err), true
	}
	return answer, true
}

func dimensionsFor(g gap) []scoreDimension {
	if g.IsFileDownload {
		return []scoreDimension{dimFile, dimBasic}
	}
	return []scoreDimension{dimDefinitive, dimCompleteness, dimBasic}
}

func (s *SearchSubFlow) splitGaps(ctx context.Context, task string) ([]gap, error) {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: `Rewrite the following task into a list of concrete gap questions to research. If the task is a
file-download request, return exactly one gap. Reply with ONLY a JSON object: {"gaps": [{"text": "...", "is_file_download": false}]}`},
		{Role: llm.RoleUser, Content: task},
	}
	var wire gapListWire
	if err := askJSON(ctx, s.collab.LLM, messages, &wire); err != nil {
		return nil, fmt.Errorf("split gaps: %w", err)
	}
	if len(wire.Gaps) == 0 {
		wire.Gaps = []gap{{Text: task}}
	}
	return wire.Gaps, nil
}

func (s *SearchSubFlow) score(ctx context.Context, g gap, answer string, dims []scoreDimension) (bool, error) {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: fmt.Sprintf(`Score the candidate answer against these dimensions: %v. Reply with ONLY a JSON object:
{"dimensions": {"definitive": true, "freshness": true, ...}} with exactly the requested dimension keys, each true (passes) or false (fails).`, dims)},
		{Role: llm.RoleUser, Content: fmt.Sprintf("Gap question: %s\nCandidate answer: %s", g.Text, answer)},
	}
	var wire scoreWire
	if err := askJSON(ctx, s.collab.LLM, messages, &wire); err != nil {
		return false, fmt.Errorf("score gap: %w", err)
	}
	for _, d := range dims {
		if !wire.Dimensions[string(d)] {
			return false, nil
		}
	}
	return true, nil
}

func (s *SearchSubFlow) reflect(ctx context.Context, failed []gap, answers []string) ([]gap, error) {
	content := "Failed gaps and their rejected answers:\n"
	for i, g := range failed {
		content += fmt.Sprintf("- %s -> %s\n", g.Text, answers[i])
	}
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: `Given failed research gaps and why their answers were rejected, produce a refined list of new, more
specific gap questions to try next. Reply with ONLY a JSON object: {"gaps": [{"text": "...", "is_file_download": false}]}`},
		{Role: llm.RoleUser, Content: content},
	}
	var wire reflectionWire
	if err := askJSON(ctx, s.collab.LLM, messages, &wire); err != nil {
		return nil, fmt.Errorf("reflect: %w", err)
	}
	return wire.Gaps, nil
}

func (s *SearchSubFlow) synthesize(ctx context.Context, goal string, gathered []domain.MemoryEntry) (string, bool, error) {
	if len(gathered) == 0 {
		return "No sufficient evidence was gathered to answer this query.", true, nil
	}
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: "Synthesise a final answer to the goal from the gathered evidence below. Reply in plain prose."},
		{Role: llm.RoleUser, Content: goal},
	}
	for _, k := range gathered {
		messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: k.Content})
	}
	resp, err := s.collab.LLM.Ask(ctx, messages)
	if err != nil {
		return "", false, fmt.Errorf("synthesize: %w", err)
	}
	return resp.Content, false, nil
}

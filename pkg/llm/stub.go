package llm

import (
	"context"
	"sync"
)

// StubClient is a scripted, in-memory Client used by tests and local
// development in place of a real provider connection.
type StubClient struct {
	mu        sync.Mutex
	responses []Response
	calls     []Message
}

// NewStubClient returns a client that replays responses in order, one per
// Ask/AskWithTools call. If more calls are made than responses supplied,
// the last response is repeated.
func NewStubClient(responses ...Response) *StubClient {
	return &StubClient{responses: responses}
}

func (c *StubClient) next(messages []Message) *Response {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(messages) > 0 {
		c.calls = append(c.calls, messages[len(messages)-1])
	}
	if len(c.responses) == 0 {
		return &Response{Type: ResponseTypeAnswer, Content: ""}
	}
	idx := len(c.calls) - 1
	if idx >= len(c.responses) {
		idx = len(c.responses) - 1
	}
	resp := c.responses[idx]
	return &resp
}

func (c *StubClient) Ask(_ context.Context, messages []Message) (*Response, error) {
	return c.next(messages), nil
}

func (c *StubClient) AskWithTools(_ context.Context, messages []Message, _ []ToolDefinition) (*Response, error) {
	return c.next(messages), nil
}

func (c *StubClient) Close() error { return nil }

// Calls returns the last message of every Ask/AskWithTools call received,
// in order, for test assertions.
func (c *StubClient) Calls() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.calls))
	copy(out, c.calls)
	return out
}

var _ Client = (*StubClient)(nil)

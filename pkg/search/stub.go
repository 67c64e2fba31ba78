package search

import "context"

// StubEngine is a scripted Engine used by tests: it returns the same
// canned results for every query, matching this module's other
// stub-collaborator style (see llm.StubClient, sandbox.MemoryImplementation).
type StubEngine struct {
	Results []Result
	Err     error
}

// NewStubEngine returns an Engine that always yields results for every query.
func NewStubEngine(results ...Result) *StubEngine {
	return &StubEngine{Results: results}
}

func (s *StubEngine) Search(_ context.Context, _ string, _ *DateRange) ([]Result, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Results, nil
}

var _ Engine = (*StubEngine)(nil)

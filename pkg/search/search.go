// Package search defines the Search engine collaborator contract consumed
// by the search sub-flow's gap->search->score->reflect loop. Concrete
// provider wiring (which search API, which ranking) is out of scope; this
// package only fixes the Go-side shape, in the same style as pkg/llm and
// pkg/sandbox.
package search

import (
	"context"
	"fmt"
	"time"
)

// DateRange optionally bounds a search by publish date.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Result is one search hit.
type Result struct {
	Title       string
	URL         string
	Snippet     string
	PublishedAt time.Time
}

// Engine is the Search engine collaborator contract.
type Engine interface {
	// Search runs query, optionally bounded by dateRange, and returns
	// results ranked by the provider's own relevance ordering.
	Search(ctx context.Context, query string, dateRange *DateRange) ([]Result, error)
}

// FormatResult renders one Result as the single canonical Markdown bullet
// used everywhere a search result is surfaced to an LLM prompt or a report:
// "- [title](url): snippet (published)". This is the one place that
// formatting is decided, so every caller produces identical output.
func FormatResult(r Result) string {
	if r.PublishedAt.IsZero() {
		return fmt.Sprintf("- [%s](%s): %s", r.Title, r.URL, r.Snippet)
	}
	return fmt.Sprintf("- [%s](%s): %s (published %s)", r.Title, r.URL, r.Snippet, r.PublishedAt.Format("2006-01-02"))
}

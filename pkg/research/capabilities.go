package research

import "context"

// Candidate is one raw search hit before its page is fetched.
type Candidate struct {
	Title string
	URL   string
}

// Searcher issues one web search. An error means this query contributes
// nothing to the round; it is not retried.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Candidate, error)
}

// Fetcher retrieves page content for a candidate URL. An error drops the
// candidate (single-attempt policy; the source is treated as unavailable).
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Summarizer condenses fetched content relative to the query it answered.
// An error keeps the record with a nil summary.
type Summarizer interface {
	Summarize(ctx context.Context, query, rawContent string) (string, error)
}

// Judge produces free-form reasoning about whether the accumulated
// evidence answers the topic. Evidence items are handed over already
// excerpted; implementations format them into the prompt as-is.
type Judge interface {
	Judge(ctx context.Context, topic string, queries []string, evidence []SearchRecord) (string, error)
}

// QueryExtractor deterministically pulls follow-up queries out of the
// judge's reasoning text. An empty slice means the evidence is sufficient.
type QueryExtractor interface {
	ExtractQueries(ctx context.Context, reasoning string) ([]string, error)
}

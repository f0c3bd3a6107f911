package research

import "strings"

// Config holds the knobs the gather loop consumes. It is fixed at
// session start and never mutated afterwards.
type Config struct {
	// Budget is the maximum number of gather rounds. Must be >= 1.
	Budget int
	// MaxQueriesPerRound caps both the seed query batch and the
	// follow-up queries accepted from an evaluation.
	MaxQueriesPerRound int
	// MaxEvidenceExcerptLen bounds the per-item evidence excerpt handed
	// to the judgment capability. Canonical evidence is never truncated.
	MaxEvidenceExcerptLen int
}

// DefaultConfig mirrors the research defaults used by the hosted product.
func DefaultConfig() Config {
	return Config{
		Budget:                2,
		MaxQueriesPerRound:    2,
		MaxEvidenceExcerptLen: 200,
	}
}

// SearchRecord is one retrieved page. Records only enter evidence when
// content was actually fetched; Summary stays nil when summarization
// failed for the page.
type SearchRecord struct {
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	RawContent string  `json:"raw_content"`
	Summary    *string `json:"summary,omitempty"`
}

// SummaryPlaceholder substitutes for a nil Summary wherever a summary is
// rendered into a prompt or display.
const SummaryPlaceholder = "Summary not available."

// SummaryOrPlaceholder returns the record's summary, or the placeholder
// when summarization failed.
func (r SearchRecord) SummaryOrPlaceholder() string {
	if r.Summary != nil {
		return *r.Summary
	}
	return SummaryPlaceholder
}

// Session is the mutable state of one research run. It is owned by the
// gather loop: only the loop's control goroutine reads or writes it.
type Session struct {
	Topic          string              `json:"topic"`
	Round          int                 `json:"round"`
	Budget         int                 `json:"budget"`
	AllQueries     map[string]struct{} `json:"-"`
	Evidence       []SearchRecord      `json:"evidence"`
	PendingQueries []string            `json:"pending_queries"`
	Converged      bool                `json:"converged"`
}

// QueryList returns the deduplicated queries issued so far, for prompt
// construction. Order is unspecified.
func (s *Session) QueryList() []string {
	out := make([]string, 0, len(s.AllQueries))
	for q := range s.AllQueries {
		out = append(out, q)
	}
	return out
}

// normalizeQuery is the dedup key for a query: queries differing only in
// case or surrounding whitespace count as re-runs.
func normalizeQuery(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}

// EvaluationOutcome is the per-round verdict of the evaluation stage.
// Consumed by the round controller and then discarded.
type EvaluationOutcome struct {
	Sufficient      bool
	Rationale       string
	FollowUpQueries []string
}

// TerminalState labels how a gather loop ended. Informational only; the
// result shape is identical for every terminal state.
type TerminalState string

const (
	StateConverged       TerminalState = "converged"
	StateBudgetExhausted TerminalState = "budget_exhausted"
	// StateNoSeedQueries reports the loop refusing to start because the
	// seed query set was empty. Zero rounds were executed.
	StateNoSeedQueries TerminalState = "no_seed_queries"
)

// Result is what a finished gather loop hands back regardless of which
// terminal state it reached.
type Result struct {
	Evidence []SearchRecord
	Queries  []string
	Rounds   int
	State    TerminalState
}

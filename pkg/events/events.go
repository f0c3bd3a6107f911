package events

import (
	"context"
	"log/slog"
	"time"
)

// Type identifies a progress event on a research session's stream.
type Type string

const (
	TypePlanningStarted          Type = "planning_started"
	TypePlanningCompleted        Type = "planning_completed"
	TypeSearchStarted            Type = "search_started"
	TypeSearchCompleted          Type = "search_completed"
	TypeContentProcessing        Type = "content_processing"
	TypeContentSummarized        Type = "content_summarized"
	TypeEvaluationStarted        Type = "evaluation_started"
	TypeEvaluationCompleted      Type = "evaluation_completed"
	TypeIterationCompleted       Type = "iteration_completed"
	TypeCoverGenerationStarted   Type = "cover_generation_started"
	TypeCoverGenerationCompleted Type = "cover_generation_completed"
	TypeReportStarted            Type = "report_started"
	TypeReportGenerated          Type = "report_generated"
	TypeResearchCompleted        Type = "research_completed"
	TypeError                    Type = "error"
)

// Excerpt limits for event payloads. Full texts stay in session state;
// events only ever carry a bounded slice of them.
const (
	SummaryExcerptLen   = 100
	RationaleExcerptLen = 500
)

// Event is the wire shape pushed to the progress stream. Common fields
// are always set; type-specific fields are populated by the constructor
// for that event type and omitted otherwise.
type Event struct {
	Type      Type   `json:"type"`
	Timestamp int64  `json:"timestamp"` // epoch millis
	Round     *int   `json:"round,omitempty"`
	Topic     string `json:"topic,omitempty"`

	// search / content fields
	Query          string   `json:"query,omitempty"`
	URLs           []string `json:"urls,omitempty"`
	ResultCount    int      `json:"result_count,omitempty"`
	URL            string   `json:"url,omitempty"`
	Title          string   `json:"title,omitempty"`
	SummaryExcerpt string   `json:"summary_excerpt,omitempty"`

	// evaluation fields
	TotalResults     int      `json:"total_results,omitempty"`
	Sufficient       *bool    `json:"sufficient,omitempty"`
	RationaleExcerpt string   `json:"rationale_excerpt,omitempty"`
	FollowUpQueries  []string `json:"follow_up_queries,omitempty"`

	// planning / report / cover fields
	Queries  []string `json:"queries,omitempty"`
	Report   string   `json:"report,omitempty"`
	Prompt   string   `json:"prompt,omitempty"`
	CoverURL string   `json:"cover_url,omitempty"`

	// terminal summary fields
	FinalResultCount int    `json:"final_result_count,omitempty"`
	TotalRounds      int    `json:"total_rounds,omitempty"`
	TerminalState    string `json:"terminal_state,omitempty"`

	// error fields
	Message string `json:"message,omitempty"`
	Step    string `json:"step,omitempty"`
}

// Truncate caps s at max runes, for event excerpts.
func Truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func round(n int) *int { return &n }

func PlanningStarted(topic string) Event {
	return Event{Type: TypePlanningStarted, Topic: topic}
}

func PlanningCompleted(queries []string) Event {
	return Event{Type: TypePlanningCompleted, Queries: queries}
}

func SearchStarted(r int, query string) Event {
	return Event{Type: TypeSearchStarted, Round: round(r), Query: query}
}

func SearchCompleted(r int, query string, urls []string) Event {
	return Event{Type: TypeSearchCompleted, Round: round(r), Query: query, URLs: urls, ResultCount: len(urls)}
}

func ContentProcessing(r int, query, url, title string) Event {
	return Event{Type: TypeContentProcessing, Round: round(r), Query: query, URL: url, Title: title}
}

func ContentSummarized(r int, query, url, title, summary string) Event {
	return Event{
		Type:           TypeContentSummarized,
		Round:          round(r),
		Query:          query,
		URL:            url,
		Title:          title,
		SummaryExcerpt: Truncate(summary, SummaryExcerptLen),
	}
}

func EvaluationStarted(r, totalResults int) Event {
	return Event{Type: TypeEvaluationStarted, Round: round(r), TotalResults: totalResults}
}

func EvaluationCompleted(r int, sufficient bool, rationale string, followUps []string) Event {
	return Event{
		Type:             TypeEvaluationCompleted,
		Round:            round(r),
		Sufficient:       &sufficient,
		RationaleExcerpt: Truncate(rationale, RationaleExcerptLen),
		FollowUpQueries:  followUps,
	}
}

func IterationCompleted(r, totalResults int) Event {
	return Event{Type: TypeIterationCompleted, Round: round(r), TotalResults: totalResults}
}

func CoverGenerationStarted(prompt string) Event {
	return Event{Type: TypeCoverGenerationStarted, Prompt: prompt}
}

func CoverGenerationCompleted(coverURL string) Event {
	return Event{Type: TypeCoverGenerationCompleted, CoverURL: coverURL}
}

func ReportStarted() Event {
	return Event{Type: TypeReportStarted}
}

func ReportGenerated(report string) Event {
	return Event{Type: TypeReportGenerated, Report: report}
}

func ResearchCompleted(finalResultCount, totalRounds int, terminalState string) Event {
	return Event{
		Type:             TypeResearchCompleted,
		FinalResultCount: finalResultCount,
		TotalRounds:      totalRounds,
		TerminalState:    terminalState,
	}
}

func Error(r int, step, message string) Event {
	return Event{Type: TypeError, Round: round(r), Step: step, Message: message}
}

// Sink receives events for one research session. Implementations must
// tolerate concurrent writers.
type Sink interface {
	Write(ctx context.Context, e Event) error
}

// Emitter is the fire-and-forget front of a Sink. A sink write failure
// is logged and swallowed; the research run never depends on the sink
// being reachable.
type Emitter struct {
	sink   Sink
	logger *slog.Logger
}

func NewEmitter(sink Sink, logger *slog.Logger) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter{sink: sink, logger: logger}
}

// Emit stamps and writes an event. Safe to call with a nil emitter or
// nil sink; both are no-ops.
func (em *Emitter) Emit(ctx context.Context, e Event) {
	if em == nil || em.sink == nil {
		return
	}
	if e.Timestamp == 0 {
		e.Timestamp = time.Now().UnixMilli()
	}
	if err := em.sink.Write(ctx, e); err != nil {
		em.logger.Warn("failed to write progress event", "type", e.Type, "error", err)
	}
}

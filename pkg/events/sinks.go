package events

import (
	"context"
	"log/slog"
	"sync"
)

// LogSink writes events to a slog.Logger. The CLI uses it so a research
// run is observable without Redis.
type LogSink struct {
	Logger *slog.Logger
}

func (s *LogSink) Write(ctx context.Context, e Event) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{"type", e.Type}
	if e.Round != nil {
		attrs = append(attrs, "round", *e.Round)
	}
	switch e.Type {
	case TypeSearchStarted, TypeSearchCompleted:
		attrs = append(attrs, "query", e.Query, "result_count", e.ResultCount)
	case TypeContentProcessing, TypeContentSummarized:
		attrs = append(attrs, "url", e.URL)
	case TypeEvaluationCompleted:
		attrs = append(attrs, "sufficient", e.Sufficient != nil && *e.Sufficient, "follow_ups", len(e.FollowUpQueries))
	case TypeIterationCompleted:
		attrs = append(attrs, "total_results", e.TotalResults)
	case TypeResearchCompleted:
		attrs = append(attrs, "total_rounds", e.TotalRounds, "final_result_count", e.FinalResultCount, "terminal_state", e.TerminalState)
	case TypeError:
		attrs = append(attrs, "step", e.Step, "message", e.Message)
	}
	logger.Info("research progress", attrs...)
	return nil
}

// MemorySink records events in order. Used by tests and available to
// embedders that want to inspect a finished run.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

func (s *MemorySink) Write(ctx context.Context, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

// Events returns a copy of everything written so far.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// ByType filters recorded events.
func (s *MemorySink) ByType(t Type) []Event {
	var out []Event
	for _, e := range s.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// MultiSink fans an event out to several sinks; the first error wins but
// every sink still gets the write.
type MultiSink []Sink

func (m MultiSink) Write(ctx context.Context, e Event) error {
	var firstErr error
	for _, s := range m {
		if err := s.Write(ctx, e); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

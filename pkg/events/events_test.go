package events

import (
	"context"
	"fmt"
	"testing"
)

type failingSink struct{ calls int }

func (s *failingSink) Write(ctx context.Context, e Event) error {
	s.calls++
	return fmt.Errorf("sink unreachable")
}

func TestEmitterSwallowsSinkFailures(t *testing.T) {
	sink := &failingSink{}
	em := NewEmitter(sink, nil)

	// Must not panic or propagate anything.
	em.Emit(context.Background(), SearchStarted(0, "q"))
	em.Emit(context.Background(), IterationCompleted(0, 1))

	if sink.calls != 2 {
		t.Errorf("sink writes = %d, want 2", sink.calls)
	}
}

func TestEmitterNilSafety(t *testing.T) {
	var em *Emitter
	em.Emit(context.Background(), SearchStarted(0, "q")) // no-op

	em = NewEmitter(nil, nil)
	em.Emit(context.Background(), SearchStarted(0, "q")) // no-op
}

func TestEmitterStampsTimestamp(t *testing.T) {
	sink := &MemorySink{}
	em := NewEmitter(sink, nil)
	em.Emit(context.Background(), SearchStarted(0, "q"))

	got := sink.Events()
	if len(got) != 1 || got[0].Timestamp == 0 {
		t.Fatalf("expected a stamped event, got %+v", got)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"shorter than max", "abc", 5, "abc"},
		{"exact length", "abcde", 5, "abcde"},
		{"truncated", "abcdefgh", 5, "abcde"},
		{"multibyte safe", "héllo wörld", 7, "héllo w"},
		{"empty", "", 5, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Truncate(tt.in, tt.max); got != tt.want {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
			}
		})
	}
}

func TestExcerptEvents(t *testing.T) {
	long := ""
	for i := 0; i < 30; i++ {
		long += "0123456789"
	}

	e := ContentSummarized(1, "q", "https://example.com", "t", long)
	if len(e.SummaryExcerpt) != SummaryExcerptLen {
		t.Errorf("summary excerpt = %d chars, want %d", len(e.SummaryExcerpt), SummaryExcerptLen)
	}

	longer := long + long
	ev := EvaluationCompleted(1, false, longer, []string{"a"})
	if len(ev.RationaleExcerpt) != RationaleExcerptLen {
		t.Errorf("rationale excerpt = %d chars, want %d", len(ev.RationaleExcerpt), RationaleExcerptLen)
	}
}

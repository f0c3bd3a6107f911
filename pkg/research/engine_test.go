package research

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/mikeboe/deep-research/pkg/events"
)

type fakeSearcher struct {
	fn    func(query string) ([]Candidate, error)
	calls atomic.Int32
}

func (f *fakeSearcher) Search(ctx context.Context, query string) ([]Candidate, error) {
	f.calls.Add(1)
	return f.fn(query)
}

type fakeFetcher struct {
	fn func(url string) (string, error)
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (string, error) {
	return f.fn(url)
}

type fakeSummarizer struct {
	fn func(query, raw string) (string, error)
}

func (f *fakeSummarizer) Summarize(ctx context.Context, query, raw string) (string, error) {
	return f.fn(query, raw)
}

type fakeJudge struct {
	fn func(topic string, queries []string, evidence []SearchRecord) (string, error)
}

func (f *fakeJudge) Judge(ctx context.Context, topic string, queries []string, evidence []SearchRecord) (string, error) {
	return f.fn(topic, queries, evidence)
}

type fakeExtractor struct {
	fn func(reasoning string) ([]string, error)
}

func (f *fakeExtractor) ExtractQueries(ctx context.Context, reasoning string) ([]string, error) {
	return f.fn(reasoning)
}

// defaultFakes returns capability fakes where every search yields one
// fetchable, summarizable page and the evaluator always wants more.
func defaultFakes() (*fakeSearcher, *fakeFetcher, *fakeSummarizer, *fakeJudge, *fakeExtractor) {
	searcher := &fakeSearcher{fn: func(query string) ([]Candidate, error) {
		return []Candidate{{Title: "page for " + query, URL: "https://example.com/" + strings.ReplaceAll(query, " ", "-")}}, nil
	}}
	fetcher := &fakeFetcher{fn: func(url string) (string, error) {
		return "content of " + url, nil
	}}
	summarizer := &fakeSummarizer{fn: func(query, raw string) (string, error) {
		return "summary: " + raw, nil
	}}
	judge := &fakeJudge{fn: func(topic string, queries []string, evidence []SearchRecord) (string, error) {
		return "needs more research", nil
	}}
	extractor := &fakeExtractor{fn: func(reasoning string) ([]string, error) {
		return []string{"another angle"}, nil
	}}
	return searcher, fetcher, summarizer, judge, extractor
}

func newTestEngine(t *testing.T, cfg Config, searcher Searcher, fetcher Fetcher, summarizer Summarizer, judge Judge, extractor QueryExtractor, sink events.Sink) *Engine {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{Level: slog.LevelError}))
	engine, err := NewEngine(cfg, searcher, fetcher, summarizer, judge, extractor, events.NewEmitter(sink, logger), logger)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return engine
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

func TestNewEngineRejectsInvalidConfig(t *testing.T) {
	searcher, fetcher, summarizer, judge, extractor := defaultFakes()

	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero budget", Config{Budget: 0, MaxQueriesPerRound: 2, MaxEvidenceExcerptLen: 200}},
		{"negative budget", Config{Budget: -1, MaxQueriesPerRound: 2, MaxEvidenceExcerptLen: 200}},
		{"zero query cap", Config{Budget: 2, MaxQueriesPerRound: 0, MaxEvidenceExcerptLen: 200}},
		{"zero excerpt length", Config{Budget: 2, MaxQueriesPerRound: 2, MaxEvidenceExcerptLen: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEngine(tt.cfg, searcher, fetcher, summarizer, judge, extractor, nil, nil)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestBudgetBound(t *testing.T) {
	// Evaluator always demands fresh queries; the loop must still stop
	// exactly at the budget ceiling.
	for _, budget := range []int{1, 2, 5} {
		t.Run(fmt.Sprintf("budget=%d", budget), func(t *testing.T) {
			searcher, fetcher, summarizer, judge, _ := defaultFakes()
			var n atomic.Int32
			extractor := &fakeExtractor{fn: func(string) ([]string, error) {
				return []string{fmt.Sprintf("fresh query %d", n.Add(1))}, nil
			}}
			sink := &events.MemorySink{}
			cfg := Config{Budget: budget, MaxQueriesPerRound: 3, MaxEvidenceExcerptLen: 200}
			engine := newTestEngine(t, cfg, searcher, fetcher, summarizer, judge, extractor, sink)

			res, err := engine.Run(context.Background(), "topic", []string{"seed"})
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if res.Rounds != budget {
				t.Errorf("rounds = %d, want %d", res.Rounds, budget)
			}
			if res.State != StateBudgetExhausted {
				t.Errorf("state = %q, want %q", res.State, StateBudgetExhausted)
			}
			if got := len(sink.ByType(events.TypeIterationCompleted)); got != budget {
				t.Errorf("iteration_completed events = %d, want %d", got, budget)
			}
		})
	}
}

func TestConvergenceStopsBeforeBudget(t *testing.T) {
	searcher, fetcher, summarizer, judge, _ := defaultFakes()
	extractor := &fakeExtractor{fn: func(string) ([]string, error) {
		return nil, nil // sufficient on the first evaluation
	}}
	sink := &events.MemorySink{}
	cfg := Config{Budget: 5, MaxQueriesPerRound: 3, MaxEvidenceExcerptLen: 200}
	engine := newTestEngine(t, cfg, searcher, fetcher, summarizer, judge, extractor, sink)

	res, err := engine.Run(context.Background(), "topic", []string{"seed"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Rounds != 1 {
		t.Errorf("rounds = %d, want 1", res.Rounds)
	}
	if res.State != StateConverged {
		t.Errorf("state = %q, want %q", res.State, StateConverged)
	}
}

func TestQueryDedupAcrossRounds(t *testing.T) {
	// The evaluator keeps proposing a query the session already ran; it
	// must never be searched twice, and dedup is case/space-insensitive.
	searcher, fetcher, summarizer, judge, _ := defaultFakes()
	var searched []string
	searcher.fn = func(query string) ([]Candidate, error) {
		searched = append(searched, query)
		return nil, nil
	}
	extractor := &fakeExtractor{fn: func(string) ([]string, error) {
		return []string{"  SEED  ", "new question"}, nil
	}}
	cfg := Config{Budget: 3, MaxQueriesPerRound: 3, MaxEvidenceExcerptLen: 200}
	engine := newTestEngine(t, cfg, searcher, fetcher, summarizer, judge, extractor, &events.MemorySink{})

	if _, err := engine.Run(context.Background(), "topic", []string{"seed"}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	counts := make(map[string]int)
	for _, q := range searched {
		counts[strings.ToLower(strings.TrimSpace(q))]++
	}
	for q, n := range counts {
		if n > 1 {
			t.Errorf("query %q searched %d times, want once", q, n)
		}
	}
}

func TestFailClosedEvaluation(t *testing.T) {
	tests := []struct {
		name      string
		judge     *fakeJudge
		extractor *fakeExtractor
		errStep   string
	}{
		{
			name:      "judge failure",
			judge:     &fakeJudge{fn: func(string, []string, []SearchRecord) (string, error) { return "", fmt.Errorf("model unreachable") }},
			extractor: &fakeExtractor{fn: func(string) ([]string, error) { return []string{"more"}, nil }},
			errStep:   "evaluate",
		},
		{
			name:      "extractor failure",
			judge:     &fakeJudge{fn: func(string, []string, []SearchRecord) (string, error) { return "reasoning", nil }},
			extractor: &fakeExtractor{fn: func(string) ([]string, error) { return nil, fmt.Errorf("bad json") }},
			errStep:   "extract_queries",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			searcher, fetcher, summarizer, _, _ := defaultFakes()
			sink := &events.MemorySink{}
			cfg := Config{Budget: 5, MaxQueriesPerRound: 2, MaxEvidenceExcerptLen: 200}
			engine := newTestEngine(t, cfg, searcher, fetcher, summarizer, tt.judge, tt.extractor, sink)

			res, err := engine.Run(context.Background(), "topic", []string{"seed"})
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if res.Rounds != 1 {
				t.Errorf("rounds = %d, want 1 (fail-closed should stop the loop)", res.Rounds)
			}
			if res.State != StateConverged {
				t.Errorf("state = %q, want %q", res.State, StateConverged)
			}

			var found bool
			for _, e := range sink.ByType(events.TypeError) {
				if e.Step == tt.errStep {
					found = true
				}
			}
			if !found {
				t.Errorf("no error event with step %q emitted", tt.errStep)
			}

			evals := sink.ByType(events.TypeEvaluationCompleted)
			if len(evals) != 1 || evals[0].Sufficient == nil || !*evals[0].Sufficient {
				t.Errorf("evaluation_completed should report sufficient=true, got %+v", evals)
			}
		})
	}
}

func TestGracefulFetchDegradation(t *testing.T) {
	// One of three candidates fails to fetch; the other two still land
	// in evidence.
	searcher, _, summarizer, judge, _ := defaultFakes()
	searcher.fn = func(query string) ([]Candidate, error) {
		return []Candidate{
			{Title: "a", URL: "https://example.com/a"},
			{Title: "b", URL: "https://example.com/b"},
			{Title: "c", URL: "https://example.com/c"},
		}, nil
	}
	fetcher := &fakeFetcher{fn: func(url string) (string, error) {
		if strings.HasSuffix(url, "/b") {
			return "", fmt.Errorf("connection refused")
		}
		return "content of " + url, nil
	}}
	extractor := &fakeExtractor{fn: func(string) ([]string, error) { return nil, nil }}
	sink := &events.MemorySink{}
	cfg := Config{Budget: 1, MaxQueriesPerRound: 2, MaxEvidenceExcerptLen: 200}
	engine := newTestEngine(t, cfg, searcher, fetcher, summarizer, judge, extractor, sink)

	res, err := engine.Run(context.Background(), "topic", []string{"seed"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Evidence) != 2 {
		t.Fatalf("evidence = %d records, want 2", len(res.Evidence))
	}
	for _, rec := range res.Evidence {
		if strings.HasSuffix(rec.URL, "/b") {
			t.Errorf("failed candidate %q should have been dropped", rec.URL)
		}
	}

	completed := sink.ByType(events.TypeSearchCompleted)
	if len(completed) != 1 || completed[0].ResultCount != 2 {
		t.Errorf("search_completed should report 2 results, got %+v", completed)
	}
}

func TestSummarizationFailureKeepsRecord(t *testing.T) {
	searcher, fetcher, _, judge, _ := defaultFakes()
	summarizer := &fakeSummarizer{fn: func(string, string) (string, error) {
		return "", fmt.Errorf("model overloaded")
	}}
	extractor := &fakeExtractor{fn: func(string) ([]string, error) { return nil, nil }}
	cfg := Config{Budget: 1, MaxQueriesPerRound: 2, MaxEvidenceExcerptLen: 200}
	engine := newTestEngine(t, cfg, searcher, fetcher, summarizer, judge, extractor, &events.MemorySink{})

	res, err := engine.Run(context.Background(), "topic", []string{"seed"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Evidence) != 1 {
		t.Fatalf("evidence = %d records, want 1", len(res.Evidence))
	}
	rec := res.Evidence[0]
	if rec.Summary != nil {
		t.Errorf("summary = %q, want nil after summarization failure", *rec.Summary)
	}
	if got := rec.SummaryOrPlaceholder(); got != SummaryPlaceholder {
		t.Errorf("placeholder = %q, want %q", got, SummaryPlaceholder)
	}
}

func TestEmptySeedQueries(t *testing.T) {
	searcher, fetcher, summarizer, judge, extractor := defaultFakes()
	sink := &events.MemorySink{}
	cfg := Config{Budget: 2, MaxQueriesPerRound: 2, MaxEvidenceExcerptLen: 200}
	engine := newTestEngine(t, cfg, searcher, fetcher, summarizer, judge, extractor, sink)

	res, err := engine.Run(context.Background(), "topic", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.State != StateNoSeedQueries {
		t.Errorf("state = %q, want %q", res.State, StateNoSeedQueries)
	}
	if res.Rounds != 0 {
		t.Errorf("rounds = %d, want 0", res.Rounds)
	}
	if searcher.calls.Load() != 0 {
		t.Errorf("search called %d times, want 0", searcher.calls.Load())
	}
	if len(sink.Events()) != 0 {
		t.Errorf("no round events expected, got %d", len(sink.Events()))
	}
}

func TestBudgetExhaustedScenario(t *testing.T) {
	// budget=2, seeds X and Y, evaluator proposes Z after round one.
	// Round two must run with Z only, and the loop must end budget
	// exhausted even though the evaluator still wants more.
	searcher, fetcher, summarizer, judge, _ := defaultFakes()
	searched := make(chan string, 16)
	searcher.fn = func(query string) ([]Candidate, error) {
		searched <- query
		return nil, nil
	}
	extractor := &fakeExtractor{fn: func(string) ([]string, error) {
		return []string{"Z", "X"}, nil // X is a dup and must be filtered
	}}
	sink := &events.MemorySink{}
	cfg := Config{Budget: 2, MaxQueriesPerRound: 2, MaxEvidenceExcerptLen: 200}
	engine := newTestEngine(t, cfg, searcher, fetcher, summarizer, judge, extractor, sink)

	res, err := engine.Run(context.Background(), "topic", []string{"X", "Y"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	close(searched)
	var all []string
	for q := range searched {
		all = append(all, q)
	}

	if res.Rounds != 2 {
		t.Errorf("rounds = %d, want 2", res.Rounds)
	}
	if res.State != StateBudgetExhausted {
		t.Errorf("state = %q, want %q", res.State, StateBudgetExhausted)
	}
	if len(all) != 3 {
		t.Errorf("searched queries = %v, want X, Y and Z exactly once each", all)
	}

	// Round two's batch is Z alone: the search_started event for round 1
	// must carry Z.
	var roundTwo []string
	for _, e := range sink.ByType(events.TypeSearchStarted) {
		if e.Round != nil && *e.Round == 1 {
			roundTwo = append(roundTwo, e.Query)
		}
	}
	if len(roundTwo) != 1 || roundTwo[0] != "Z" {
		t.Errorf("round 2 batch = %v, want [Z]", roundTwo)
	}
}

func TestFinalRoundConvergenceStillBudgetExhausted(t *testing.T) {
	// The final budget round converges because every follow-up dedups
	// away. The ceiling wins: the run reports budget_exhausted, not
	// converged.
	searcher, fetcher, summarizer, judge, _ := defaultFakes()
	var evals int
	extractor := &fakeExtractor{fn: func(string) ([]string, error) {
		evals++
		if evals == 1 {
			return []string{"next"}, nil
		}
		return []string{"seed", "next"}, nil // all dups on the final round
	}}
	cfg := Config{Budget: 2, MaxQueriesPerRound: 2, MaxEvidenceExcerptLen: 200}
	engine := newTestEngine(t, cfg, searcher, fetcher, summarizer, judge, extractor, &events.MemorySink{})

	res, err := engine.Run(context.Background(), "topic", []string{"seed"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Rounds != 2 {
		t.Errorf("rounds = %d, want 2", res.Rounds)
	}
	if res.State != StateBudgetExhausted {
		t.Errorf("state = %q, want %q", res.State, StateBudgetExhausted)
	}
}

func TestFollowUpCapKeepsExtractionOrder(t *testing.T) {
	// More follow-ups than the cap: the head of the extraction order
	// survives, the tail is dropped.
	searcher, fetcher, summarizer, judge, _ := defaultFakes()
	extractor := &fakeExtractor{fn: func(string) ([]string, error) {
		return []string{"first", "second", "third", "fourth"}, nil
	}}
	sink := &events.MemorySink{}
	cfg := Config{Budget: 2, MaxQueriesPerRound: 2, MaxEvidenceExcerptLen: 200}
	engine := newTestEngine(t, cfg, searcher, fetcher, summarizer, judge, extractor, sink)

	if _, err := engine.Run(context.Background(), "topic", []string{"seed"}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var roundTwo []string
	for _, e := range sink.ByType(events.TypeSearchStarted) {
		if e.Round != nil && *e.Round == 1 {
			roundTwo = append(roundTwo, e.Query)
		}
	}
	want := []string{"first", "second"}
	if len(roundTwo) != len(want) {
		t.Fatalf("round 2 batch = %v, want %v", roundTwo, want)
	}
	got := map[string]bool{}
	for _, q := range roundTwo {
		got[q] = true
	}
	for _, q := range want {
		if !got[q] {
			t.Errorf("round 2 batch = %v, want %v", roundTwo, want)
		}
	}
}

func TestMonotonicEvidence(t *testing.T) {
	// Round one finds a page, round two finds nothing; evidence must not
	// shrink and both rounds must emit iteration_completed.
	searcher, fetcher, summarizer, judge, _ := defaultFakes()
	var round atomic.Int32
	searcher.fn = func(query string) ([]Candidate, error) {
		if round.Add(1) == 1 {
			return []Candidate{{Title: "only hit", URL: "https://example.com/only"}}, nil
		}
		return nil, nil
	}
	extractor := &fakeExtractor{fn: func(string) ([]string, error) { return []string{"next"}, nil }}
	sink := &events.MemorySink{}
	cfg := Config{Budget: 2, MaxQueriesPerRound: 1, MaxEvidenceExcerptLen: 200}
	engine := newTestEngine(t, cfg, searcher, fetcher, summarizer, judge, extractor, sink)

	res, err := engine.Run(context.Background(), "topic", []string{"seed"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Evidence) != 1 {
		t.Errorf("evidence = %d, want 1", len(res.Evidence))
	}

	iters := sink.ByType(events.TypeIterationCompleted)
	if len(iters) != 2 {
		t.Fatalf("iteration_completed events = %d, want 2", len(iters))
	}
	if iters[0].TotalResults != 1 || iters[1].TotalResults != 1 {
		t.Errorf("cumulative counts = %d, %d, want 1, 1", iters[0].TotalResults, iters[1].TotalResults)
	}
}

func TestSearchProviderFailureDoesNotFailRound(t *testing.T) {
	searcher, fetcher, summarizer, judge, _ := defaultFakes()
	searcher.fn = func(query string) ([]Candidate, error) {
		if query == "broken" {
			return nil, fmt.Errorf("provider 500")
		}
		return []Candidate{{Title: "ok", URL: "https://example.com/ok"}}, nil
	}
	extractor := &fakeExtractor{fn: func(string) ([]string, error) { return nil, nil }}
	sink := &events.MemorySink{}
	cfg := Config{Budget: 1, MaxQueriesPerRound: 2, MaxEvidenceExcerptLen: 200}
	engine := newTestEngine(t, cfg, searcher, fetcher, summarizer, judge, extractor, sink)

	res, err := engine.Run(context.Background(), "topic", []string{"broken", "working"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Evidence) != 1 {
		t.Errorf("evidence = %d, want 1 from the working query", len(res.Evidence))
	}
	if got := len(sink.ByType(events.TypeSearchCompleted)); got != 2 {
		t.Errorf("search_completed events = %d, want 2 (failed query still completes with zero results)", got)
	}
}

func TestJudgeSeesExcerptedEvidenceOnly(t *testing.T) {
	// The judge receives raw content truncated to the configured excerpt
	// length, while canonical evidence keeps the full text.
	long := strings.Repeat("x", 5000)
	searcher, _, summarizer, _, _ := defaultFakes()
	fetcher := &fakeFetcher{fn: func(string) (string, error) { return long, nil }}
	var judged []SearchRecord
	judge := &fakeJudge{fn: func(topic string, queries []string, evidence []SearchRecord) (string, error) {
		judged = append(judged, evidence...)
		return "fine", nil
	}}
	extractor := &fakeExtractor{fn: func(string) ([]string, error) { return nil, nil }}
	cfg := Config{Budget: 1, MaxQueriesPerRound: 1, MaxEvidenceExcerptLen: 150}
	engine := newTestEngine(t, cfg, searcher, fetcher, summarizer, judge, extractor, &events.MemorySink{})

	res, err := engine.Run(context.Background(), "topic", []string{"seed"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(judged) != 1 {
		t.Fatalf("judge saw %d records, want 1", len(judged))
	}
	if len(judged[0].RawContent) != 150 {
		t.Errorf("judge excerpt = %d chars, want 150", len(judged[0].RawContent))
	}
	if len(res.Evidence[0].RawContent) != 5000 {
		t.Errorf("canonical evidence = %d chars, want 5000 untouched", len(res.Evidence[0].RawContent))
	}
}

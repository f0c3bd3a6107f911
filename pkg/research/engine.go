package research

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mikeboe/deep-research/pkg/events"
)

// Engine runs the budget-bounded gather loop: search and summarize the
// pending query batch, evaluate the accumulated evidence, and repeat
// with the evaluator's follow-up queries until it converges or the
// round budget is spent.
//
// Rounds are strictly serial; all fan-out happens inside a round, and
// session state is only ever touched between the fan-out joins, on the
// goroutine that called Run.
type Engine struct {
	cfg        Config
	searcher   Searcher
	fetcher    Fetcher
	summarizer Summarizer
	judge      Judge
	extractor  QueryExtractor
	emitter    *events.Emitter
	logger     *slog.Logger
}

// NewEngine validates the configuration and assembles an engine. A
// non-positive budget or query cap is a fatal misconfiguration, not
// something to default silently.
func NewEngine(cfg Config, searcher Searcher, fetcher Fetcher, summarizer Summarizer, judge Judge, extractor QueryExtractor, emitter *events.Emitter, logger *slog.Logger) (*Engine, error) {
	if cfg.Budget < 1 {
		return nil, fmt.Errorf("invalid research config: budget must be >= 1, got %d", cfg.Budget)
	}
	if cfg.MaxQueriesPerRound < 1 {
		return nil, fmt.Errorf("invalid research config: max queries per round must be >= 1, got %d", cfg.MaxQueriesPerRound)
	}
	if cfg.MaxEvidenceExcerptLen < 1 {
		return nil, fmt.Errorf("invalid research config: max evidence excerpt length must be >= 1, got %d", cfg.MaxEvidenceExcerptLen)
	}
	if searcher == nil || fetcher == nil || summarizer == nil || judge == nil || extractor == nil {
		return nil, fmt.Errorf("invalid research config: all capabilities must be provided")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:        cfg,
		searcher:   searcher,
		fetcher:    fetcher,
		summarizer: summarizer,
		judge:      judge,
		extractor:  extractor,
		emitter:    emitter,
		logger:     logger,
	}, nil
}

// Run drives the gather loop for one topic. The seed batch is deduped
// and capped at MaxQueriesPerRound; an empty batch after that is a
// reported no-work outcome, not an error.
func (e *Engine) Run(ctx context.Context, topic string, seedQueries []string) (*Result, error) {
	s := &Session{
		Topic:      topic,
		Round:      0,
		Budget:     e.cfg.Budget,
		AllQueries: make(map[string]struct{}),
		Evidence:   nil,
	}
	s.PendingQueries = e.admitQueries(s, seedQueries)

	if len(s.PendingQueries) == 0 {
		e.logger.Warn("no seed queries, skipping research loop", "topic", topic)
		return &Result{State: StateNoSeedQueries}, nil
	}

	e.logger.Info("starting gather loop", "topic", topic, "budget", s.Budget, "seed_queries", s.PendingQueries)

	// The ceiling is checked before convergence: a run that spends its
	// whole budget reports budget_exhausted even when the final round's
	// evaluation happened to converge.
	state := StateBudgetExhausted
	for {
		e.runRound(ctx, s)

		if s.Round+1 >= s.Budget {
			break
		}
		if s.Converged {
			state = StateConverged
			break
		}
		s.Round++
	}

	rounds := s.Round + 1
	e.logger.Info("gather loop finished", "topic", topic, "rounds", rounds, "evidence", len(s.Evidence), "state", state)

	return &Result{
		Evidence: s.Evidence,
		Queries:  s.QueryList(),
		Rounds:   rounds,
		State:    state,
	}, nil
}

// runRound is the round controller: search-and-summarize over the
// pending batch, then evaluate, then fold the outcome back into the
// session. It is the single merge point for the round's fan-out.
func (e *Engine) runRound(ctx context.Context, s *Session) {
	records := e.searchAndSummarize(ctx, s.Round, s.PendingQueries)

	for _, q := range s.PendingQueries {
		s.AllQueries[normalizeQuery(q)] = struct{}{}
	}
	s.Evidence = append(s.Evidence, records...)

	outcome := e.evaluate(ctx, s)

	followUps := e.admitQueries(s, outcome.FollowUpQueries)
	s.PendingQueries = followUps
	s.Converged = outcome.Sufficient || len(followUps) == 0

	e.emitter.Emit(ctx, events.IterationCompleted(s.Round, len(s.Evidence)))
}

// admitQueries filters a proposed batch against the dedup store, drops
// blanks and in-batch repeats, and truncates the tail past the per-round
// cap. Input order is preserved.
func (e *Engine) admitQueries(s *Session, proposed []string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, q := range proposed {
		key := normalizeQuery(q)
		if key == "" {
			continue
		}
		if _, ok := s.AllQueries[key]; ok {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, q)
		if len(out) == e.cfg.MaxQueriesPerRound {
			break
		}
	}
	return out
}

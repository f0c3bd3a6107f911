package research

import (
	"context"

	"github.com/mikeboe/deep-research/pkg/events"
)

// evaluate runs the judgment capability over the accumulated evidence,
// then the deterministic query extraction over its reasoning. A failure
// in either call fails closed: the round is treated as sufficient so a
// broken evaluator can never drive the loop to its budget ceiling.
func (e *Engine) evaluate(ctx context.Context, s *Session) EvaluationOutcome {
	e.emitter.Emit(ctx, events.EvaluationStarted(s.Round, len(s.Evidence)))

	reasoning, err := e.judge.Judge(ctx, s.Topic, s.QueryList(), e.evidenceView(s))
	if err != nil {
		e.logger.Warn("judgment failed, treating evidence as sufficient", "round", s.Round, "error", err)
		e.emitter.Emit(ctx, events.Error(s.Round, "evaluate", err.Error()))
		outcome := EvaluationOutcome{Sufficient: true}
		e.emitter.Emit(ctx, events.EvaluationCompleted(s.Round, true, "", nil))
		return outcome
	}

	followUps, err := e.extractor.ExtractQueries(ctx, reasoning)
	if err != nil {
		e.logger.Warn("query extraction failed, treating evidence as sufficient", "round", s.Round, "error", err)
		e.emitter.Emit(ctx, events.Error(s.Round, "extract_queries", err.Error()))
		outcome := EvaluationOutcome{Sufficient: true, Rationale: reasoning}
		e.emitter.Emit(ctx, events.EvaluationCompleted(s.Round, true, reasoning, nil))
		return outcome
	}

	// Cap in extraction order; extras past the cap are dropped.
	if len(followUps) > e.cfg.MaxQueriesPerRound {
		followUps = followUps[:e.cfg.MaxQueriesPerRound]
	}

	outcome := EvaluationOutcome{
		Sufficient:      len(followUps) == 0,
		Rationale:       reasoning,
		FollowUpQueries: followUps,
	}
	e.emitter.Emit(ctx, events.EvaluationCompleted(s.Round, outcome.Sufficient, reasoning, followUps))
	return outcome
}

// evidenceView returns a prompt-sized copy of the evidence: raw content
// excerpted to the configured length, summaries untouched. The canonical
// evidence on the session is never modified.
func (e *Engine) evidenceView(s *Session) []SearchRecord {
	view := make([]SearchRecord, len(s.Evidence))
	for i, rec := range s.Evidence {
		view[i] = rec
		view[i].RawContent = events.Truncate(rec.RawContent, e.cfg.MaxEvidenceExcerptLen)
	}
	return view
}

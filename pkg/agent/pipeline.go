// Package agent wires the full deep-research workflow around the gather
// engine: seed planning, the iterative gather loop, cover generation and
// report synthesis, with progress events emitted at every step.
package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mikeboe/deep-research/pkg/events"
	"github.com/mikeboe/deep-research/pkg/research"
)

// Planner produces the seed query batch for a topic.
type Planner interface {
	Plan(ctx context.Context, topic string) (plan string, queries []string, err error)
}

// Gatherer is the iterative gather loop. *research.Engine implements it.
type Gatherer interface {
	Run(ctx context.Context, topic string, seedQueries []string) (*research.Result, error)
}

// Reporter synthesizes the final report and the cover image prompt.
type Reporter interface {
	GenerateReport(ctx context.Context, topic string, evidence []research.SearchRecord) (string, error)
	ImagePrompt(ctx context.Context, topic string) (string, error)
}

// CoverGenerator creates and stores the report cover image.
type CoverGenerator interface {
	Generate(ctx context.Context, sessionID, prompt string) (string, error)
}

// Pipeline runs one research session end to end.
type Pipeline struct {
	SessionID string
	Planner   Planner
	Engine    Gatherer
	Reporter  Reporter
	// Cover is optional; nil skips cover generation entirely.
	Cover   CoverGenerator
	Emitter *events.Emitter
	Logger  *slog.Logger
}

// Outcome is everything a finished session produced.
type Outcome struct {
	SessionID string
	Report    string
	CoverURL  string
	Result    *research.Result
}

// Run executes plan, gather, cover and report for one topic. Cover
// failures degrade gracefully; planning or report failures abort the
// session since nothing useful can be produced without them.
func (p *Pipeline) Run(ctx context.Context, topic string) (*Outcome, error) {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p.Emitter.Emit(ctx, events.PlanningStarted(topic))
	_, seeds, err := p.Planner.Plan(ctx, topic)
	if err != nil {
		p.Emitter.Emit(ctx, events.Error(0, "planning", err.Error()))
		return nil, fmt.Errorf("planning failed: %w", err)
	}
	logger.Info("research plan ready", "topic", topic, "seed_queries", seeds)
	p.Emitter.Emit(ctx, events.PlanningCompleted(seeds))

	result, err := p.Engine.Run(ctx, topic, seeds)
	if err != nil {
		p.Emitter.Emit(ctx, events.Error(0, "gather", err.Error()))
		return nil, fmt.Errorf("gather loop failed: %w", err)
	}

	outcome := &Outcome{SessionID: p.SessionID, Result: result}

	if result.State == research.StateNoSeedQueries {
		logger.Warn("planner produced no usable queries, nothing to research", "topic", topic)
		p.Emitter.Emit(ctx, events.ResearchCompleted(0, 0, string(result.State)))
		return outcome, nil
	}

	if p.Cover != nil {
		outcome.CoverURL = p.generateCover(ctx, topic, logger)
	}

	p.Emitter.Emit(ctx, events.ReportStarted())
	report, err := p.Reporter.GenerateReport(ctx, topic, result.Evidence)
	if err != nil {
		p.Emitter.Emit(ctx, events.Error(result.Rounds-1, "report", err.Error()))
		return nil, fmt.Errorf("report synthesis failed: %w", err)
	}
	outcome.Report = report
	p.Emitter.Emit(ctx, events.ReportGenerated(report))

	p.Emitter.Emit(ctx, events.ResearchCompleted(len(result.Evidence), result.Rounds, string(result.State)))
	logger.Info("research session complete", "topic", topic, "rounds", result.Rounds, "evidence", len(result.Evidence))
	return outcome, nil
}

// generateCover runs the image prompt and generation steps. Any failure
// is reported and swallowed; the report ships without a cover.
func (p *Pipeline) generateCover(ctx context.Context, topic string, logger *slog.Logger) string {
	prompt, err := p.Reporter.ImagePrompt(ctx, topic)
	if err != nil {
		logger.Warn("cover prompt generation failed, skipping cover", "error", err)
		p.Emitter.Emit(ctx, events.Error(0, "cover", err.Error()))
		return ""
	}

	p.Emitter.Emit(ctx, events.CoverGenerationStarted(prompt))
	coverURL, err := p.Cover.Generate(ctx, p.SessionID, prompt)
	if err != nil {
		logger.Warn("cover generation failed, skipping cover", "error", err)
		p.Emitter.Emit(ctx, events.Error(0, "cover", err.Error()))
		return ""
	}
	p.Emitter.Emit(ctx, events.CoverGenerationCompleted(coverURL))
	return coverURL
}

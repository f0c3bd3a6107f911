package agent

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/storage"
	"github.com/tmc/langchaingo/llms"

	"github.com/mikeboe/deep-research/pkg/clients"
	"github.com/mikeboe/deep-research/pkg/config"
	"github.com/mikeboe/deep-research/pkg/cover"
	"github.com/mikeboe/deep-research/pkg/events"
	"github.com/mikeboe/deep-research/pkg/llm"
	"github.com/mikeboe/deep-research/pkg/research"
	"github.com/mikeboe/deep-research/pkg/search"
)

// geminiFallbackModel serves every role when only a Google key is
// configured; the per-role Together model names do not apply there.
const geminiFallbackModel = "gemini-3-flash-preview"

// buildModel picks the provider for one model role: Together AI when its
// key is present, Gemini otherwise.
func buildModel(ctx context.Context, cfg *config.Config, model string) (llms.Model, error) {
	if cfg.TogetherApiKey != "" {
		return clients.TogetherAI(model, cfg.TogetherApiKey)
	}
	if cfg.GoogleApiKey != "" {
		return clients.GoogleAI(ctx, geminiFallbackModel, cfg.GoogleApiKey)
	}
	return nil, fmt.Errorf("no LLM provider configured: set TOGETHER_API_KEY or GOOGLE_API_KEY")
}

// NewPipeline assembles a full research pipeline for one session from
// configuration. The sink receives the session's progress events; cover
// generation is enabled only when a bucket is configured.
func NewPipeline(ctx context.Context, cfg *config.Config, sessionID string, sink events.Sink, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}
	emitter := events.NewEmitter(sink, logger)

	planModel, err := buildModel(ctx, cfg, cfg.PlanningModel)
	if err != nil {
		return nil, err
	}
	jsonModel, err := buildModel(ctx, cfg, cfg.JSONModel)
	if err != nil {
		return nil, err
	}
	summaryModel, err := buildModel(ctx, cfg, cfg.SummaryModel)
	if err != nil {
		return nil, err
	}
	longSummaryModel, err := buildModel(ctx, cfg, cfg.LongSummaryModel)
	if err != nil {
		return nil, err
	}
	answerModel, err := buildModel(ctx, cfg, cfg.AnswerModel)
	if err != nil {
		return nil, err
	}

	searcher, err := search.NewBraveClient(cfg.BraveApiKey)
	if err != nil {
		return nil, fmt.Errorf("failed to init search client: %w", err)
	}
	fetcher, err := search.NewFirecrawlClient(cfg.FirecrawlApiKey)
	if err != nil {
		return nil, fmt.Errorf("failed to init scrape client: %w", err)
	}

	engineCfg := research.Config{
		Budget:                cfg.Budget,
		MaxQueriesPerRound:    cfg.MaxQueriesPerRound,
		MaxEvidenceExcerptLen: cfg.MaxEvidenceExcerpt,
	}
	engine, err := research.NewEngine(
		engineCfg,
		searcher,
		fetcher,
		llm.NewSummarizer(summaryModel, longSummaryModel),
		llm.NewJudge(answerModel),
		llm.NewQueryExtractor(jsonModel, logger),
		emitter,
		logger,
	)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		SessionID: sessionID,
		Planner:   llm.NewPlanner(planModel, jsonModel, cfg.MaxQueriesPerRound, logger),
		Engine:    engine,
		Reporter:  llm.NewReporter(answerModel),
		Emitter:   emitter,
		Logger:    logger,
	}

	if cfg.CoverBucket != "" && cfg.TogetherApiKey != "" {
		storageClient, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to init cover storage client: %w", err)
		}
		gen, err := cover.NewGenerator(cfg.TogetherApiKey, cfg.ImageModel, storageClient, cfg.CoverBucket)
		if err != nil {
			return nil, err
		}
		p.Cover = gen
	}

	return p, nil
}

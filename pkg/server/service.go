package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mikeboe/deep-research/pkg/agent"
	"github.com/mikeboe/deep-research/pkg/config"
	"github.com/mikeboe/deep-research/pkg/database"
	"github.com/mikeboe/deep-research/pkg/events"
	"github.com/mikeboe/deep-research/pkg/research"
	"github.com/mikeboe/deep-research/pkg/vectorstore"
)

// EvidenceIndexer indexes a finished job's evidence and serves semantic
// lookups over it. Satisfied by indexer.Indexer; nil disables indexing.
type EvidenceIndexer interface {
	IndexEvidence(ctx context.Context, jobID string, evidence []research.SearchRecord) (int, error)
	Search(ctx context.Context, jobID, query string, topK int) ([]vectorstore.SearchHit, error)
}

type Service struct {
	DB      *database.PostgresDB
	Cfg     *config.Config
	Redis   *redis.Client
	Indexer EvidenceIndexer
	Logger  *slog.Logger
}

func NewService(db *database.PostgresDB, cfg *config.Config, redisClient *redis.Client, idx EvidenceIndexer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{DB: db, Cfg: cfg, Redis: redisClient, Indexer: idx, Logger: logger}
}

type Job struct {
	ID        uuid.UUID       `json:"id"`
	Topic     string          `json:"topic"`
	Status    string          `json:"status"`
	Report    *string         `json:"report,omitempty"`
	CoverURL  *string         `json:"cover_url,omitempty"`
	State     json.RawMessage `json:"state,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Config    json.RawMessage `json:"config"`
}

type CreateJobRequest struct {
	Topic string `json:"topic"`
}

// jobState is the persisted summary of a finished gather run.
type jobState struct {
	TerminalState string   `json:"terminal_state"`
	Rounds        int      `json:"rounds"`
	EvidenceCount int      `json:"evidence_count"`
	Queries       []string `json:"queries"`
}

func (s *Service) CreateJob(ctx context.Context, req CreateJobRequest) (*Job, error) {
	configJSON, _ := json.Marshal(map[string]interface{}{
		"budget":                s.Cfg.Budget,
		"max_queries_per_round": s.Cfg.MaxQueriesPerRound,
	})

	jobID := uuid.New()
	query := `
		INSERT INTO research_jobs (id, topic, status, config)
		VALUES ($1, $2, 'pending', $3)
		RETURNING id, topic, status, created_at, updated_at
	`

	job := &Job{}
	err := s.DB.Pool.QueryRow(ctx, query, jobID, req.Topic, configJSON).Scan(
		&job.ID, &job.Topic, &job.Status, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	go s.runWorker(job.ID, req.Topic)

	return job, nil
}

func (s *Service) GetJob(ctx context.Context, id uuid.UUID) (*Job, error) {
	query := `
		SELECT id, topic, status, report, cover_url, state, created_at, updated_at, config
		FROM research_jobs
		WHERE id = $1
	`
	job := &Job{}
	err := s.DB.Pool.QueryRow(ctx, query, id).Scan(
		&job.ID, &job.Topic, &job.Status, &job.Report, &job.CoverURL, &job.State,
		&job.CreatedAt, &job.UpdatedAt, &job.Config,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

func (s *Service) ListJobs(ctx context.Context) ([]Job, error) {
	query := `
		SELECT id, topic, status, report, cover_url, state, created_at, updated_at, config
		FROM research_jobs
		ORDER BY created_at DESC
		LIMIT 50
	`
	rows, err := s.DB.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var job Job
		if err := rows.Scan(&job.ID, &job.Topic, &job.Status, &job.Report, &job.CoverURL, &job.State,
			&job.CreatedAt, &job.UpdatedAt, &job.Config); err != nil {
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

type LogEntry struct {
	ID        int             `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Level     string          `json:"level"`
	Message   string          `json:"message"`
	Metadata  json.RawMessage `json:"metadata"`
}

func (s *Service) GetJobLogs(ctx context.Context, jobID uuid.UUID) ([]LogEntry, error) {
	query := `
		SELECT id, timestamp, level, message, metadata
		FROM research_logs
		WHERE job_id = $1
		ORDER BY id ASC
	`
	rows, err := s.DB.Pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get logs: %w", err)
	}
	defer rows.Close()

	var logs []LogEntry
	for rows.Next() {
		var l LogEntry
		if err := rows.Scan(&l.ID, &l.Timestamp, &l.Level, &l.Message, &l.Metadata); err != nil {
			continue
		}
		logs = append(logs, l)
	}
	return logs, nil
}

// StreamEvents returns progress events published after lastID, along with
// the new cursor. Used by the SSE handler to poll the job's Redis stream.
func (s *Service) StreamEvents(ctx context.Context, jobID uuid.UUID, lastID string) ([]events.Event, string, error) {
	if s.Redis == nil {
		return nil, lastID, fmt.Errorf("event streaming requires redis")
	}
	return events.ReadStream(ctx, s.Redis, jobID.String(), lastID)
}

// SearchEvidence runs a semantic lookup over a job's indexed evidence.
func (s *Service) SearchEvidence(ctx context.Context, jobID uuid.UUID, query string, topK int) ([]vectorstore.SearchHit, error) {
	if s.Indexer == nil {
		return nil, fmt.Errorf("evidence search is not configured")
	}
	return s.Indexer.Search(ctx, jobID.String(), query, topK)
}

func (s *Service) runWorker(jobID uuid.UUID, topic string) {
	ctx := context.Background()

	_, _ = s.DB.Pool.Exec(ctx, "UPDATE research_jobs SET status = 'running', updated_at = NOW() WHERE id = $1", jobID)

	dbLogger := slog.New(NewDBLogHandler(s.DB, jobID))

	var sink events.Sink = &events.LogSink{Logger: dbLogger}
	if s.Redis != nil {
		sink = events.MultiSink{events.NewRedisSink(s.Redis, jobID.String()), sink}
	}

	pipeline, err := agent.NewPipeline(ctx, s.Cfg, jobID.String(), sink, dbLogger)
	if err != nil {
		s.failJob(ctx, jobID, fmt.Sprintf("Failed to init research pipeline: %v", err))
		return
	}

	outcome, err := pipeline.Run(ctx, topic)
	if err != nil {
		s.failJob(ctx, jobID, fmt.Sprintf("Research failed: %v", err))
		return
	}

	state := jobState{
		TerminalState: string(outcome.Result.State),
		Rounds:        outcome.Result.Rounds,
		EvidenceCount: len(outcome.Result.Evidence),
		Queries:       outcome.Result.Queries,
	}
	stateJSON, err := json.Marshal(state)
	if err != nil {
		dbLogger.Error("Failed to marshal job state", "error", err)
		stateJSON = []byte("{}")
	}

	_, err = s.DB.Pool.Exec(ctx,
		"UPDATE research_jobs SET status = 'completed', report = $2, cover_url = NULLIF($3, ''), state = $4, updated_at = NOW() WHERE id = $1",
		jobID, outcome.Report, outcome.CoverURL, stateJSON)
	if err != nil {
		dbLogger.Error("Failed to save final report to DB", "error", err)
	}

	if s.Indexer != nil && len(outcome.Result.Evidence) > 0 {
		if n, err := s.Indexer.IndexEvidence(ctx, jobID.String(), outcome.Result.Evidence); err != nil {
			dbLogger.Error("Failed to index evidence", "error", err)
		} else {
			dbLogger.Info("Evidence indexed", "chunks", n)
		}
	}
}

func (s *Service) failJob(ctx context.Context, jobID uuid.UUID, reason string) {
	dbLogger := slog.New(NewDBLogHandler(s.DB, jobID))
	dbLogger.Error(reason)

	_, _ = s.DB.Pool.Exec(ctx, "UPDATE research_jobs SET status = 'failed', updated_at = NOW() WHERE id = $1", jobID)
}

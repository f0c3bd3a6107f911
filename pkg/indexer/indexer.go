// Package indexer chunks gathered evidence, embeds the chunks, and makes
// them searchable through the pgvector evidence store.
package indexer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/mikeboe/deep-research/pkg/research"
	"github.com/mikeboe/deep-research/pkg/vectorstore"
)

// Embedder turns text into vectors. Satisfied by embeddings.GoogleEmbedder.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Store is the subset of the evidence store the indexer needs.
type Store interface {
	Add(ctx context.Context, chunks []vectorstore.Chunk) error
	Search(ctx context.Context, queryEmbedding []float32, topK int, jobID string) ([]vectorstore.SearchHit, error)
}

// Indexer splits evidence into overlapping chunks and writes them to the
// vector store tagged with the owning job.
type Indexer struct {
	splitter textsplitter.TextSplitter
	embedder Embedder
	store    Store
	logger   *slog.Logger
}

func New(embedder Embedder, store Store, chunkSize, chunkOverlap int, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
		),
		embedder: embedder,
		store:    store,
		logger:   logger,
	}
}

// IndexEvidence chunks and embeds every record gathered for a job.
// Records without raw content are skipped. Returns the number of chunks
// written.
func (ix *Indexer) IndexEvidence(ctx context.Context, jobID string, evidence []research.SearchRecord) (int, error) {
	var chunks []vectorstore.Chunk
	var texts []string

	for _, record := range evidence {
		if record.RawContent == "" {
			continue
		}
		parts, err := ix.splitter.SplitText(record.RawContent)
		if err != nil {
			return 0, fmt.Errorf("failed to split content from %s: %w", record.URL, err)
		}
		for i, part := range parts {
			chunks = append(chunks, vectorstore.Chunk{
				Content: part,
				Metadata: map[string]interface{}{
					"job_id":      jobID,
					"source_url":  record.URL,
					"title":       record.Title,
					"chunk_index": i,
				},
			})
			texts = append(texts, part)
		}
	}

	if len(chunks) == 0 {
		return 0, nil
	}

	vectors, err := ix.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("failed to embed evidence chunks: %w", err)
	}
	for i := range chunks {
		chunks[i].Embedding = vectors[i]
	}

	if err := ix.store.Add(ctx, chunks); err != nil {
		return 0, fmt.Errorf("failed to store evidence chunks: %w", err)
	}

	ix.logger.Info("indexed evidence", "job_id", jobID, "chunks", len(chunks))
	return len(chunks), nil
}

// Search embeds the query and returns the topK most similar chunks for
// the given job. An empty jobID searches across all jobs.
func (ix *Indexer) Search(ctx context.Context, jobID, query string, topK int) ([]vectorstore.SearchHit, error) {
	vec, err := ix.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return ix.store.Search(ctx, vec, topK, jobID)
}

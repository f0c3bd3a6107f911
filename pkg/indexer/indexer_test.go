package indexer

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/mikeboe/deep-research/pkg/research"
	"github.com/mikeboe/deep-research/pkg/vectorstore"
)

type fakeEmbedder struct {
	calls int
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls++
	return []float32{float32(len(text)), 1}, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		vec, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, vec)
	}
	return out, nil
}

type fakeStore struct {
	added []vectorstore.Chunk
	hits  []vectorstore.SearchHit
}

func (f *fakeStore) Add(_ context.Context, chunks []vectorstore.Chunk) error {
	f.added = append(f.added, chunks...)
	return nil
}

func (f *fakeStore) Search(_ context.Context, _ []float32, _ int, _ string) ([]vectorstore.SearchHit, error) {
	return f.hits, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestIndexEvidenceChunksAndTags(t *testing.T) {
	store := &fakeStore{}
	ix := New(&fakeEmbedder{}, store, 50, 10, testLogger())

	evidence := []research.SearchRecord{
		{Title: "Go", URL: "https://go.dev", RawContent: strings.Repeat("go concurrency patterns. ", 20)},
		{Title: "Empty", URL: "https://example.com/empty", RawContent: ""},
	}

	n, err := ix.IndexEvidence(context.Background(), "job-1", evidence)
	if err != nil {
		t.Fatalf("IndexEvidence: %v", err)
	}
	if n < 2 {
		t.Fatalf("expected long content to split into multiple chunks, got %d", n)
	}
	if len(store.added) != n {
		t.Fatalf("store received %d chunks, indexer reported %d", len(store.added), n)
	}
	for _, chunk := range store.added {
		if chunk.Metadata["job_id"] != "job-1" {
			t.Errorf("chunk missing job_id tag: %v", chunk.Metadata)
		}
		if chunk.Metadata["source_url"] != "https://go.dev" {
			t.Errorf("chunk has wrong source_url: %v", chunk.Metadata)
		}
		if len(chunk.Embedding) == 0 {
			t.Error("chunk stored without embedding")
		}
	}
}

func TestIndexEvidenceSkipsEmpty(t *testing.T) {
	store := &fakeStore{}
	ix := New(&fakeEmbedder{}, store, 100, 0, testLogger())

	n, err := ix.IndexEvidence(context.Background(), "job-2", []research.SearchRecord{
		{Title: "Empty", URL: "https://example.com", RawContent: ""},
	})
	if err != nil {
		t.Fatalf("IndexEvidence: %v", err)
	}
	if n != 0 || len(store.added) != 0 {
		t.Fatalf("expected no chunks, got %d", n)
	}
}

func TestSearchEmbedsQuery(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := &fakeStore{hits: []vectorstore.SearchHit{{Chunk: vectorstore.Chunk{Content: "hit"}, Score: 0.9}}}
	ix := New(embedder, store, 100, 0, testLogger())

	hits, err := ix.Search(context.Background(), "job-1", "what is go", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if embedder.calls != 1 {
		t.Fatalf("expected one embedding call, got %d", embedder.calls)
	}
	if len(hits) != 1 || hits[0].Chunk.Content != "hit" {
		t.Fatalf("unexpected hits: %+v", hits)
	}
}

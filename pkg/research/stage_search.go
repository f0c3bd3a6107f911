package research

import (
	"context"
	"sync"

	"github.com/mikeboe/deep-research/pkg/events"
)

// fetchConcurrency bounds parallel page fetches per query so a broad
// search does not open dozens of connections at once.
const fetchConcurrency = 3

// searchAndSummarize is the per-round fan-out stage. Every query in the
// batch is processed concurrently; within a query, candidate pages are
// fetched and summarized concurrently. Workers write only into their own
// slot, and the stage returns only once every query has settled.
func (e *Engine) searchAndSummarize(ctx context.Context, round int, queries []string) []SearchRecord {
	perQuery := make([][]SearchRecord, len(queries))
	var wg sync.WaitGroup

	for i, q := range queries {
		wg.Add(1)
		go func(slot int, query string) {
			defer wg.Done()
			perQuery[slot] = e.runQuery(ctx, round, query)
		}(i, q)
	}
	wg.Wait()

	var merged []SearchRecord
	for _, recs := range perQuery {
		merged = append(merged, recs...)
	}
	return merged
}

// runQuery executes search, fetch and summarize for one query. Every
// failure below this point is item-level: it is logged, reported as an
// error event, and the item is dropped. Nothing propagates.
func (e *Engine) runQuery(ctx context.Context, round int, query string) []SearchRecord {
	e.emitter.Emit(ctx, events.SearchStarted(round, query))

	candidates, err := e.searcher.Search(ctx, query)
	if err != nil {
		e.logger.Error("search failed", "query", query, "error", err)
		e.emitter.Emit(ctx, events.Error(round, "search", err.Error()))
		candidates = nil
	}

	slots := make([]*SearchRecord, len(candidates))
	var wg sync.WaitGroup
	sem := make(chan struct{}, fetchConcurrency)

	for i, c := range candidates {
		wg.Add(1)
		go func(slot int, cand Candidate) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			slots[slot] = e.fetchAndSummarize(ctx, round, query, cand)
		}(i, c)
	}
	wg.Wait()

	var kept []SearchRecord
	urls := make([]string, 0, len(slots))
	for _, rec := range slots {
		if rec == nil {
			continue
		}
		kept = append(kept, *rec)
		urls = append(urls, rec.URL)
	}

	e.emitter.Emit(ctx, events.SearchCompleted(round, query, urls))
	return kept
}

// fetchAndSummarize turns one candidate into a SearchRecord, or nil when
// its page could not be retrieved.
func (e *Engine) fetchAndSummarize(ctx context.Context, round int, query string, cand Candidate) *SearchRecord {
	raw, err := e.fetcher.Fetch(ctx, cand.URL)
	if err != nil {
		e.logger.Warn("fetch failed, dropping candidate", "url", cand.URL, "error", err)
		e.emitter.Emit(ctx, events.Error(round, "fetch", err.Error()))
		return nil
	}
	if raw == "" {
		e.logger.Warn("empty content, dropping candidate", "url", cand.URL)
		return nil
	}

	e.emitter.Emit(ctx, events.ContentProcessing(round, query, cand.URL, cand.Title))

	rec := &SearchRecord{Title: cand.Title, URL: cand.URL, RawContent: raw}

	summary, err := e.summarizer.Summarize(ctx, query, raw)
	if err != nil {
		e.logger.Warn("summarization failed, keeping record without summary", "url", cand.URL, "error", err)
		e.emitter.Emit(ctx, events.Error(round, "summarize", err.Error()))
	} else {
		rec.Summary = &summary
	}

	e.emitter.Emit(ctx, events.ContentSummarized(round, query, cand.URL, cand.Title, rec.SummaryOrPlaceholder()))
	return rec
}

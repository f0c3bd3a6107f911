package llm

import (
	"context"
	"testing"

	"github.com/tmc/langchaingo/llms"
)

// fakeModel returns canned responses in order, repeating the last one.
type fakeModel struct {
	responses []string
	calls     int
}

func (m *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	idx := m.calls
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	m.calls++
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: m.responses[idx]}},
	}, nil
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	resp, err := m.GenerateContent(ctx, []llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, prompt)}, options...)
	if err != nil {
		return "", err
	}
	return resp.Choices[0].Content, nil
}

func TestVariantForLength(t *testing.T) {
	tests := []struct {
		name   string
		length int
		want   SummaryVariant
	}{
		{"empty", 0, VariantStandard},
		{"typical page", 12_000, VariantStandard},
		{"at threshold", 100_000, VariantStandard},
		{"just over threshold", 100_001, VariantLongPage},
		{"very long page", 500_000, VariantLongPage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VariantForLength(tt.length); got != tt.want {
				t.Errorf("VariantForLength(%d) = %q, want %q", tt.length, got, tt.want)
			}
		})
	}
}

func TestSummarizerRoutesLongPages(t *testing.T) {
	standard := &fakeModel{responses: []string{"short summary"}}
	long := &fakeModel{responses: []string{"long summary"}}
	s := NewSummarizer(standard, long)

	content := make([]byte, longPageThreshold+1)
	for i := range content {
		content[i] = 'a'
	}

	got, err := s.Summarize(context.Background(), "q", string(content))
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if got != "long summary" {
		t.Errorf("summary = %q, want long-page model output", got)
	}
	if standard.calls != 0 || long.calls != 1 {
		t.Errorf("model calls = standard %d, long %d; want 0, 1", standard.calls, long.calls)
	}

	if _, err := s.Summarize(context.Background(), "q", "small page"); err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if standard.calls != 1 {
		t.Errorf("standard model calls = %d, want 1", standard.calls)
	}
}

func TestQueryExtractorParsesJSON(t *testing.T) {
	model := &fakeModel{responses: []string{`{"queries": ["alpha", "  ", "beta"]}`}}
	x := NewQueryExtractor(model, nil)

	got, err := x.ExtractQueries(context.Background(), "reasoning text")
	if err != nil {
		t.Fatalf("ExtractQueries: %v", err)
	}
	want := []string{"alpha", "beta"}
	if len(got) != len(want) {
		t.Fatalf("queries = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("queries[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestQueryExtractorEmptyListMeansSufficient(t *testing.T) {
	model := &fakeModel{responses: []string{`{"queries": []}`}}
	x := NewQueryExtractor(model, nil)

	got, err := x.ExtractQueries(context.Background(), "everything is covered")
	if err != nil {
		t.Fatalf("ExtractQueries: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("queries = %v, want empty", got)
	}
}

func TestQueryExtractorRetriesMalformedOutput(t *testing.T) {
	model := &fakeModel{responses: []string{
		`not json at all`,
		`{"queries": ["recovered"]}`,
	}}
	x := NewQueryExtractor(model, nil)

	got, err := x.ExtractQueries(context.Background(), "reasoning")
	if err != nil {
		t.Fatalf("ExtractQueries: %v", err)
	}
	if len(got) != 1 || got[0] != "recovered" {
		t.Errorf("queries = %v, want [recovered]", got)
	}
	if model.calls != 2 {
		t.Errorf("model calls = %d, want 2", model.calls)
	}
}

func TestPlannerCapsSeedQueries(t *testing.T) {
	planModel := &fakeModel{responses: []string{"a thorough plan"}}
	parseModel := &fakeModel{responses: []string{`{"queries": ["q1", "q2", "q3", "q4"]}`}}
	p := NewPlanner(planModel, parseModel, 2, nil)

	plan, queries, err := p.Plan(context.Background(), "topic")
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if plan != "a thorough plan" {
		t.Errorf("plan = %q", plan)
	}
	if len(queries) != 2 || queries[0] != "q1" || queries[1] != "q2" {
		t.Errorf("queries = %v, want first two in order", queries)
	}
}

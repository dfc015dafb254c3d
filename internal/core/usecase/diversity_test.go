package usecase

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/dmosk/agro-evidence-qa/internal/core/domain"
)

type embedderFake struct {
	queryVec []float32
	byText   map[string][]float32
	err      error
	queryErr error
}

func (f *embedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, txt := range texts {
		out[i] = f.byText[txt]
	}
	return out, nil
}

func (f *embedderFake) EmbedQuery(context.Context, string) ([]float32, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.queryVec, nil
}

func candidate(id int, text string) domain.ScoredCandidate {
	return domain.ScoredCandidate{Sentence: domain.Sentence{ID: id, Text: text}}
}

func newTestSelector(embedder *embedderFake, maxSupport int) *DiversitySelector {
	return NewDiversitySelector(embedder, SelectorConfig{
		MMRLambda:       0.7,
		MaxSimThreshold: 0.82,
		MaxSupport:      maxSupport,
	})
}

func TestSelectEmptyCandidates(t *testing.T) {
	sel := newTestSelector(&embedderFake{}, 6)

	result, err := sel.Select(context.Background(), "q", nil, 20)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if len(result.Sentences) != 0 {
		t.Fatalf("expected no sentences, got %d", len(result.Sentences))
	}
	if result.Metrics.RedundancyBefore != 0 || result.Metrics.RedundancyAfter != 0 {
		t.Fatalf("expected zero redundancy metrics, got %+v", result.Metrics)
	}
}

func TestSelectSkipsNearDuplicates(t *testing.T) {
	embedder := &embedderFake{
		queryVec: []float32{1, 0},
		byText: map[string][]float32{
			"a":   {1, 0},
			"dup": {1, 0},
			"c":   {0, 1},
		},
	}
	sel := newTestSelector(embedder, 6)

	cands := []domain.ScoredCandidate{candidate(1, "a"), candidate(2, "dup"), candidate(3, "c")}
	result, err := sel.Select(context.Background(), "q", cands, 20)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if len(result.Sentences) != 2 {
		t.Fatalf("expected duplicate filtered out, got %d sentences", len(result.Sentences))
	}
	if result.Sentences[0].ID != 1 || result.Sentences[1].ID != 3 {
		t.Fatalf("expected sentences 1,3 selected, got %d,%d", result.Sentences[0].ID, result.Sentences[1].ID)
	}

	// Pairwise over {a, dup, c}: sims 1, 0, 0.
	if diff := math.Abs(result.Metrics.RedundancyBefore - 1.0/3.0); diff > 1e-9 {
		t.Fatalf("expected redundancy before 1/3, got %v", result.Metrics.RedundancyBefore)
	}
	if result.Metrics.RedundancyAfter != 0 {
		t.Fatalf("expected redundancy after 0 for orthogonal selection, got %v", result.Metrics.RedundancyAfter)
	}
	if result.Metrics.NumCandidates != 3 || result.Metrics.NumSelected != 2 {
		t.Fatalf("unexpected counts: %+v", result.Metrics)
	}
}

func TestSelectSeedsWithBestRerankCandidate(t *testing.T) {
	// Fused order has sentence 1 first, but sentence 2 is closer to the
	// query and must seed the selection.
	embedder := &embedderFake{
		queryVec: []float32{1, 0},
		byText: map[string][]float32{
			"far":  {0, 1},
			"near": {1, 0},
		},
	}
	sel := newTestSelector(embedder, 1)

	cands := []domain.ScoredCandidate{candidate(1, "far"), candidate(2, "near")}
	result, err := sel.Select(context.Background(), "q", cands, 20)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if len(result.Sentences) != 1 || result.Sentences[0].ID != 2 {
		t.Fatalf("expected best rerank candidate to seed, got %+v", result.Sentences)
	}
}

func TestSelectStopsAtMaxSupport(t *testing.T) {
	embedder := &embedderFake{
		queryVec: []float32{1, 0, 0},
		byText: map[string][]float32{
			"a": {1, 0, 0},
			"b": {0, 1, 0},
			"c": {0, 0, 1},
		},
	}
	sel := newTestSelector(embedder, 2)

	cands := []domain.ScoredCandidate{candidate(1, "a"), candidate(2, "b"), candidate(3, "c")}
	result, err := sel.Select(context.Background(), "q", cands, 20)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if len(result.Sentences) != 2 {
		t.Fatalf("expected max support cap of 2, got %d", len(result.Sentences))
	}
}

func TestSelectHonorsRerankTopK(t *testing.T) {
	embedder := &embedderFake{
		queryVec: []float32{1, 0, 0},
		byText: map[string][]float32{
			"a": {1, 0, 0},
			"b": {0, 1, 0},
			"c": {0, 0, 1},
		},
	}
	sel := newTestSelector(embedder, 6)

	cands := []domain.ScoredCandidate{candidate(1, "a"), candidate(2, "b"), candidate(3, "c")}
	result, err := sel.Select(context.Background(), "q", cands, 2)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if result.Metrics.NumCandidates != 2 {
		t.Fatalf("expected rerank pool truncated to 2, got %d", result.Metrics.NumCandidates)
	}
	if len(result.Sentences) != 2 {
		t.Fatalf("expected 2 selected from truncated pool, got %d", len(result.Sentences))
	}
}

func TestSelectPropagatesEmbedderErrors(t *testing.T) {
	sel := newTestSelector(&embedderFake{queryErr: errors.New("embed down")}, 6)
	if _, err := sel.Select(context.Background(), "q", []domain.ScoredCandidate{candidate(1, "a")}, 20); err == nil {
		t.Fatalf("expected query embed error to propagate")
	}

	sel = newTestSelector(&embedderFake{queryVec: []float32{1}, err: errors.New("embed down")}, 6)
	if _, err := sel.Select(context.Background(), "q", []domain.ScoredCandidate{candidate(1, "a")}, 20); err == nil {
		t.Fatalf("expected candidate embed error to propagate")
	}
}

func TestCosineSimilarityZeroVector(t *testing.T) {
	if got := cosineSimilarity([]float32{0, 0}, []float32{1, 0}); got != 0 {
		t.Fatalf("expected 0 for zero vector, got %v", got)
	}
}

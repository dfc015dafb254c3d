package usecase

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/dmosk/agro-evidence-qa/internal/core/domain"
	"github.com/dmosk/agro-evidence-qa/internal/core/ports"
)

// SelectorConfig bounds the diversity selection stage.
type SelectorConfig struct {
	MMRLambda       float64
	MaxSimThreshold float64
	MaxSupport      int
}

// DiversitySelector reranks fused candidates by cosine similarity to the
// query and picks a diverse evidence set with greedy MMR.
type DiversitySelector struct {
	embedder ports.Embedder
	cfg      SelectorConfig
}

func NewDiversitySelector(embedder ports.Embedder, cfg SelectorConfig) *DiversitySelector {
	return &DiversitySelector{embedder: embedder, cfg: cfg}
}

// Select re-embeds the query and candidate texts, keeps the rerankTopK
// candidates closest to the query, and greedily selects up to MaxSupport
// sentences maximizing lambda*relevance - (1-lambda)*maxSimToSelected.
// Candidates whose similarity to an already selected sentence exceeds
// MaxSimThreshold are near-duplicates and are never picked.
func (s *DiversitySelector) Select(
	ctx context.Context,
	query string,
	candidates []domain.ScoredCandidate,
	rerankTopK int,
) (domain.SelectionResult, error) {
	if len(candidates) == 0 {
		return domain.SelectionResult{}, nil
	}

	queryVec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return domain.SelectionResult{}, fmt.Errorf("embed query: %w", err)
	}

	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Sentence.Text
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return domain.SelectionResult{}, fmt.Errorf("embed candidates: %w", err)
	}
	if len(vectors) != len(candidates) {
		return domain.SelectionResult{}, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(candidates))
	}

	reranked := make([]domain.RerankedCandidate, len(candidates))
	for i, c := range candidates {
		reranked[i] = domain.RerankedCandidate{
			ScoredCandidate: c,
			RerankScore:     cosineSimilarity(queryVec, vectors[i]),
			Embedding:       vectors[i],
		}
	}
	// Stable sort keeps the fused ordering for equal rerank scores.
	sort.SliceStable(reranked, func(i, j int) bool {
		return reranked[i].RerankScore > reranked[j].RerankScore
	})
	if rerankTopK > 0 && len(reranked) > rerankTopK {
		reranked = reranked[:rerankTopK]
	}

	metrics := domain.SelectionMetrics{NumCandidates: len(reranked)}
	metrics.RedundancyBefore = meanPairwiseSimilarity(embeddingsOf(reranked))

	selected := s.selectMMR(reranked)
	metrics.NumSelected = len(selected)
	metrics.RedundancyAfter = meanPairwiseSimilarity(embeddingsOf(selected))

	sentences := make([]domain.Sentence, len(selected))
	for i, c := range selected {
		sentences[i] = c.Sentence
	}
	return domain.SelectionResult{Sentences: sentences, Metrics: metrics}, nil
}

// selectMMR seeds with the best reranked candidate and then repeatedly
// picks the remaining candidate with the highest marginal relevance,
// skipping near-duplicates. Stops early when no candidate survives the
// duplicate filter.
func (s *DiversitySelector) selectMMR(reranked []domain.RerankedCandidate) []domain.RerankedCandidate {
	if len(reranked) == 0 {
		return nil
	}

	selected := []domain.RerankedCandidate{reranked[0]}
	remaining := append([]domain.RerankedCandidate(nil), reranked[1:]...)

	for len(selected) < s.cfg.MaxSupport && len(remaining) > 0 {
		bestIdx := -1
		bestScore := math.Inf(-1)
		for i, cand := range remaining {
			maxSim := math.Inf(-1)
			for _, sel := range selected {
				if sim := cosineSimilarity(cand.Embedding, sel.Embedding); sim > maxSim {
					maxSim = sim
				}
			}
			if maxSim > s.cfg.MaxSimThreshold {
				continue
			}
			score := s.cfg.MMRLambda*cand.RerankScore - (1-s.cfg.MMRLambda)*maxSim
			if score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}
		if bestIdx < 0 {
			break
		}
		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return selected
}

func embeddingsOf(cands []domain.RerankedCandidate) [][]float32 {
	out := make([][]float32, len(cands))
	for i, c := range cands {
		out[i] = c.Embedding
	}
	return out
}

// cosineSimilarity computes cosine similarity in float64. A zero vector
// yields 0.
func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// meanPairwiseSimilarity averages cosine similarity over all distinct
// pairs. Fewer than two vectors means no pairs and zero redundancy.
func meanPairwiseSimilarity(vectors [][]float32) float64 {
	if len(vectors) < 2 {
		return 0
	}
	var sum float64
	var pairs int
	for i := 0; i < len(vectors); i++ {
		for j := i + 1; j < len(vectors); j++ {
			sum += cosineSimilarity(vectors[i], vectors[j])
			pairs++
		}
	}
	return sum / float64(pairs)
}

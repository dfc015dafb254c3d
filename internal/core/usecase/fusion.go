package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dmosk/agro-evidence-qa/internal/core/domain"
	"github.com/dmosk/agro-evidence-qa/internal/core/ports"
)

// FusionConfig holds the fusion weights and the query-side keyword
// tables used for tag boosting.
type FusionConfig struct {
	AlphaLexical     float64
	TagBoostCrop     float64
	TagBoostPractice float64
	QueryCrops       []domain.TagRule
	QueryPractices   []domain.TagRule
}

// Fuser combines lexical and semantic retrieval scores into a single
// ranked candidate list with tag boosting.
type Fuser struct {
	cfg   FusionConfig
	store ports.SentenceStore
}

func NewFuser(cfg FusionConfig, store ports.SentenceStore) *Fuser {
	return &Fuser{cfg: cfg, store: store}
}

// Fuse normalizes both hit lists over the current candidate union,
// combines them as alpha*lexical + (1-alpha)*dense, applies tag boosts
// for query-implied crop/practice tags, and returns candidates sorted by
// fused score descending with ties broken by ascending sentence id.
func (f *Fuser) Fuse(
	ctx context.Context,
	query string,
	lexical, dense []domain.SearchHit,
) ([]domain.ScoredCandidate, error) {
	lexScores := hitMap(lexical)
	denseScores := hitMap(dense)

	ids := make([]int, 0, len(lexScores)+len(denseScores))
	seen := make(map[int]struct{}, len(lexScores)+len(denseScores))
	for id := range lexScores {
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for id := range denseScores {
		if _, ok := seen[id]; !ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	lexNorm := normalizeScores(lexScores)
	denseNorm := normalizeScores(denseScores)

	sentences, err := f.store.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load candidate sentences: %w", err)
	}

	queryCrops := detectQueryTags(query, f.cfg.QueryCrops)
	queryPractices := detectQueryTags(query, f.cfg.QueryPractices)

	out := make([]domain.ScoredCandidate, 0, len(ids))
	for _, id := range ids {
		sentence, ok := sentences[id]
		if !ok {
			// Index and metadata store disagree; the candidate cannot be
			// cited, so it is dropped rather than failing the query.
			continue
		}

		fused := f.cfg.AlphaLexical*lexNorm[id] + (1-f.cfg.AlphaLexical)*denseNorm[id]
		if len(queryCrops) > 0 || len(queryPractices) > 0 {
			if containsTag(queryCrops, sentence.Tags.Crop) {
				fused += f.cfg.TagBoostCrop
			}
			if containsTag(queryPractices, sentence.Tags.Practice) {
				fused += f.cfg.TagBoostPractice
			}
		}

		out = append(out, domain.ScoredCandidate{
			Sentence:     sentence,
			LexicalScore: lexScores[id],
			DenseScore:   denseScores[id],
			FusedScore:   fused,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].FusedScore != out[j].FusedScore {
			return out[i].FusedScore > out[j].FusedScore
		}
		return out[i].Sentence.ID < out[j].Sentence.ID
	})

	return out, nil
}

func hitMap(hits []domain.SearchHit) map[int]float64 {
	out := make(map[int]float64, len(hits))
	for _, h := range hits {
		out[h.SentenceID] = h.Score
	}
	return out
}

// normalizeScores min-max normalizes to [0,1] over the given set only.
// A degenerate set where every score is equal maps to 1.0 for all
// members (avoids divide-by-zero while keeping the source's weight).
func normalizeScores(scores map[int]float64) map[int]float64 {
	out := make(map[int]float64, len(scores))
	if len(scores) == 0 {
		return out
	}

	first := true
	var minVal, maxVal float64
	for _, v := range scores {
		if first {
			minVal, maxVal = v, v
			first = false
			continue
		}
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}

	if maxVal == minVal {
		for k := range scores {
			out[k] = 1.0
		}
		return out
	}
	for k, v := range scores {
		out[k] = (v - minVal) / (maxVal - minVal)
	}
	return out
}

// detectQueryTags returns the tags whose keywords occur in the query,
// in table order.
func detectQueryTags(query string, rules []domain.TagRule) []string {
	queryLower := strings.ToLower(query)
	var detected []string
	for _, rule := range rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(queryLower, kw) {
				detected = append(detected, rule.Tag)
				break
			}
		}
	}
	return detected
}

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

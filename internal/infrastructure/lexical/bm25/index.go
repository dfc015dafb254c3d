package bm25

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/dmosk/agro-evidence-qa/internal/core/domain"
)

// Okapi BM25 parameters. Negative idf values are floored to a fraction
// of the average idf so very common terms still contribute a small
// positive weight.
const (
	k1      = 1.5
	b       = 0.75
	epsilon = 0.25
)

// Index is an in-memory BM25 index over the sentence corpus. It is
// immutable after construction and safe for concurrent searches. The
// corpus is static per run, so the index is rebuilt from the sentence
// store at startup rather than updated incrementally.
type Index struct {
	ids       []int
	termFreqs []map[string]int
	docLens   []float64
	avgDocLen float64
	idf       map[string]float64
}

// NewIndex tokenizes every sentence (lowercased, whitespace split) and
// precomputes document frequencies and idf weights.
func NewIndex(sentences []domain.Sentence) *Index {
	idx := &Index{
		ids:       make([]int, len(sentences)),
		termFreqs: make([]map[string]int, len(sentences)),
		docLens:   make([]float64, len(sentences)),
		idf:       make(map[string]float64),
	}

	docFreq := make(map[string]int)
	var totalLen float64
	for i, s := range sentences {
		idx.ids[i] = s.ID
		tokens := Tokenize(s.Text)
		idx.docLens[i] = float64(len(tokens))
		totalLen += float64(len(tokens))

		tf := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			tf[tok]++
		}
		idx.termFreqs[i] = tf
		for term := range tf {
			docFreq[term]++
		}
	}
	if len(sentences) > 0 {
		idx.avgDocLen = totalLen / float64(len(sentences))
	}

	n := float64(len(sentences))
	var idfSum float64
	var negative []string
	for term, df := range docFreq {
		idf := math.Log((n - float64(df) + 0.5) / (float64(df) + 0.5))
		idx.idf[term] = idf
		idfSum += idf
		if idf < 0 {
			negative = append(negative, term)
		}
	}
	if len(docFreq) > 0 {
		floor := epsilon * (idfSum / float64(len(docFreq)))
		for _, term := range negative {
			idx.idf[term] = floor
		}
	}

	return idx
}

// Tokenize lowercases and splits on whitespace. Punctuation stays
// attached to its token; queries and sentences go through the same
// function so the mismatch is symmetric.
func Tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

// Size returns the number of indexed sentences.
func (idx *Index) Size() int { return len(idx.ids) }

// Search scores every sentence against the query and returns the topK
// best, score descending with ties broken by ascending sentence id.
// Zero scores are kept: downstream normalization handles them.
func (idx *Index) Search(_ context.Context, query string, topK int) ([]domain.SearchHit, error) {
	if len(idx.ids) == 0 || topK <= 0 {
		return nil, nil
	}

	queryTokens := Tokenize(query)
	hits := make([]domain.SearchHit, len(idx.ids))
	for i := range idx.ids {
		hits[i] = domain.SearchHit{SentenceID: idx.ids[i], Score: idx.score(queryTokens, i)}
	}

	sort.Slice(hits, func(a, c int) bool {
		if hits[a].Score != hits[c].Score {
			return hits[a].Score > hits[c].Score
		}
		return hits[a].SentenceID < hits[c].SentenceID
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (idx *Index) score(queryTokens []string, doc int) float64 {
	var score float64
	norm := k1 * (1 - b + b*idx.docLens[doc]/idx.avgDocLen)
	for _, term := range queryTokens {
		tf := float64(idx.termFreqs[doc][term])
		if tf == 0 {
			continue
		}
		score += idx.idf[term] * tf * (k1 + 1) / (tf + norm)
	}
	return score
}

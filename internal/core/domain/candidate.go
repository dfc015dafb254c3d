package domain

// SearchHit is a raw retrieval result from one index.
type SearchHit struct {
	SentenceID int     `json:"sentence_id"`
	Score      float64 `json:"score"`
}

// ScoredCandidate is a per-query fusion result. LexicalScore is the raw
// BM25 score (unbounded), DenseScore the cosine similarity from the
// vector index, FusedScore the normalized weighted combination plus tag
// boosts.
type ScoredCandidate struct {
	Sentence     Sentence `json:"sentence"`
	LexicalScore float64  `json:"lexical_score"`
	DenseScore   float64  `json:"dense_score"`
	FusedScore   float64  `json:"fused_score"`
}

// RerankedCandidate extends a fused candidate with a query-similarity
// score that is independent of the fusion weighting, plus the embedding
// used during diversity selection.
type RerankedCandidate struct {
	ScoredCandidate
	RerankScore float64
	Embedding   []float32
}

// SelectionMetrics are diagnostic outputs of diversity selection. The
// redundancy values are mean pairwise cosine similarities, self-pairs
// excluded.
type SelectionMetrics struct {
	RedundancyBefore float64 `json:"redundancy_before"`
	RedundancyAfter  float64 `json:"redundancy_after"`
	NumCandidates    int     `json:"num_candidates"`
	NumSelected      int     `json:"num_selected"`
}

// SelectionResult holds the chosen evidence in selection order; the
// first element is the most relevant.
type SelectionResult struct {
	Sentences []Sentence       `json:"sentences"`
	Metrics   SelectionMetrics `json:"metrics"`
}

package qdrant

import (
	"context"
	"fmt"

	"github.com/dmosk/agro-evidence-qa/internal/core/domain"
	"github.com/dmosk/agro-evidence-qa/internal/core/ports"
)

// Searcher embeds the query and runs nearest-neighbor search against the
// sentence collection.
type Searcher struct {
	embedder ports.Embedder
	client   *Client
}

func NewSearcher(embedder ports.Embedder, client *Client) *Searcher {
	return &Searcher{embedder: embedder, client: client}
}

func (s *Searcher) Search(ctx context.Context, query string, topK int) ([]domain.SearchHit, error) {
	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := s.client.Search(ctx, vector, topK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return hits, nil
}

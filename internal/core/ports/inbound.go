package ports

import (
	"context"
	"io"

	"github.com/dmosk/agro-evidence-qa/internal/core/domain"
)

// QuestionAnswerer is the inbound contract for the evidence QA pipeline.
type QuestionAnswerer interface {
	Answer(ctx context.Context, question string) (*domain.AnswerRecord, error)
}

// CorpusIngestor is the inbound contract for corpus document upload.
type CorpusIngestor interface {
	Upload(ctx context.Context, filename, mimeType string, body io.Reader) (*domain.Document, error)
}

// CorpusProcessor is the inbound contract for asynchronous document
// segmentation and indexing.
type CorpusProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}

// DocumentReader is the inbound read model for document metadata/state.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}

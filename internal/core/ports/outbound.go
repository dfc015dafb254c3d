package ports

import (
	"context"
	"io"

	"github.com/dmosk/agro-evidence-qa/internal/core/domain"
)

// DocumentRepository persists and reads corpus document state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	SaveProcessingResult(ctx context.Context, id string, cropHint string, sentenceCount int) error
}

// SentenceStore reads and writes the immutable sentence corpus.
type SentenceStore interface {
	InsertSentences(ctx context.Context, sentences []domain.Sentence) ([]int, error)
	GetByID(ctx context.Context, id int) (domain.Sentence, error)
	GetByIDs(ctx context.Context, ids []int) (map[int]domain.Sentence, error)
	ListAll(ctx context.Context) ([]domain.Sentence, error)
}

// ObjectStorage stores raw source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes corpus ingestion events.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, documentID string) error
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor extracts the canonical text of a stored document. The
// returned string is the offset base for every sentence of the document,
// so extraction must be deterministic and must not rewrite content.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) (domain.ExtractedText, error)
}

// SentenceSplitter segments document text into sentence spans with exact
// byte offsets.
type SentenceSplitter interface {
	Split(text string) []domain.SentenceSpan
}

// Tagger assigns crop/practice labels to a sentence.
type Tagger interface {
	DetectCrop(text, docID, existing string) string
	DetectPractice(text string) string
}

// Embedder builds vectors for sentence texts and queries. Identical
// input must produce identical vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// SentenceIndexer writes sentence vectors into the semantic index.
type SentenceIndexer interface {
	IndexSentences(ctx context.Context, sentences []domain.Sentence, vectors [][]float32) error
}

// LexicalSearcher scores sentences against a query with a
// term-frequency ranking function over the static corpus.
type LexicalSearcher interface {
	Search(ctx context.Context, query string, topK int) ([]domain.SearchHit, error)
}

// SemanticSearcher scores sentences against a query by nearest-neighbor
// similarity over the prebuilt vector index.
type SemanticSearcher interface {
	Search(ctx context.Context, query string, topK int) ([]domain.SearchHit, error)
}

package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmosk/agro-evidence-qa/internal/core/domain"
	"github.com/dmosk/agro-evidence-qa/internal/core/ports"
)

// ProcessDocumentUseCase turns a stored source document into tagged,
// embedded, indexed corpus sentences.
type ProcessDocumentUseCase struct {
	repo      ports.DocumentRepository
	extractor ports.TextExtractor
	splitter  ports.SentenceSplitter
	tagger    ports.Tagger
	store     ports.SentenceStore
	embedder  ports.Embedder
	indexer   ports.SentenceIndexer
}

func NewProcessDocumentUseCase(
	repo ports.DocumentRepository,
	extractor ports.TextExtractor,
	splitter ports.SentenceSplitter,
	tagger ports.Tagger,
	store ports.SentenceStore,
	embedder ports.Embedder,
	indexer ports.SentenceIndexer,
) *ProcessDocumentUseCase {
	return &ProcessDocumentUseCase{
		repo:      repo,
		extractor: extractor,
		splitter:  splitter,
		tagger:    tagger,
		store:     store,
		embedder:  embedder,
		indexer:   indexer,
	}
}

func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string) error {
	if err := uc.markStatus(ctx, documentID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	doc, sentenceCount, err := uc.processPipeline(ctx, documentID)
	if err != nil {
		if failErr := uc.markFailed(ctx, documentID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.repo.SaveProcessingResult(ctx, doc.ID, doc.CropHint, sentenceCount); err != nil {
		err = fmt.Errorf("save processing result: %w", err)
		if failErr := uc.markFailed(ctx, documentID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.markStatus(ctx, documentID, domain.StatusReady, ""); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}

	return nil
}

func (uc *ProcessDocumentUseCase) processPipeline(ctx context.Context, documentID string) (*domain.Document, int, error) {
	doc, err := uc.loadDocument(ctx, documentID)
	if err != nil {
		return nil, 0, err
	}

	extracted, err := uc.extractText(ctx, doc)
	if err != nil {
		return nil, 0, err
	}
	if extracted.CropHint != "" {
		doc.CropHint = extracted.CropHint
	}

	sentences, err := uc.segment(doc, extracted)
	if err != nil {
		return nil, 0, err
	}

	vectors, err := uc.embed(ctx, sentences)
	if err != nil {
		return nil, 0, err
	}

	ids, err := uc.store.InsertSentences(ctx, sentences)
	if err != nil {
		return nil, 0, fmt.Errorf("insert sentences: %w", err)
	}
	if len(ids) != len(sentences) {
		return nil, 0, fmt.Errorf("insert sentences: got %d ids for %d sentences", len(ids), len(sentences))
	}
	for i := range sentences {
		sentences[i].ID = ids[i]
	}

	if err := uc.indexer.IndexSentences(ctx, sentences, vectors); err != nil {
		return nil, 0, fmt.Errorf("index sentences in vector db: %w", err)
	}

	return doc, len(sentences), nil
}

func (uc *ProcessDocumentUseCase) loadDocument(ctx context.Context, documentID string) (*domain.Document, error) {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}
	return doc, nil
}

func (uc *ProcessDocumentUseCase) extractText(ctx context.Context, doc *domain.Document) (domain.ExtractedText, error) {
	extracted, err := uc.extractor.Extract(ctx, doc)
	if err != nil {
		return domain.ExtractedText{}, fmt.Errorf("extract text: %w", err)
	}
	if extracted.Text == "" {
		return domain.ExtractedText{}, domain.WrapError(domain.ErrInvalidInput, "extract text", errors.New("empty extracted text"))
	}
	return extracted, nil
}

// segment splits the extracted text into sentence spans and tags each
// one. Offsets index into extracted.Text, which is the canonical source
// for this document.
func (uc *ProcessDocumentUseCase) segment(doc *domain.Document, extracted domain.ExtractedText) ([]domain.Sentence, error) {
	spans := uc.splitter.Split(extracted.Text)
	if len(spans) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "split document", errors.New("splitting produced zero sentences"))
	}

	existingCrop := doc.CropHint
	if existingCrop == "" {
		existingCrop = domain.CropUnknown
	}

	sentences := make([]domain.Sentence, 0, len(spans))
	for _, span := range spans {
		sentences = append(sentences, domain.Sentence{
			DocID: doc.ID,
			Start: span.Start,
			End:   span.End,
			Text:  span.Text,
			Tags: domain.Tags{
				Crop:     uc.tagger.DetectCrop(span.Text, doc.Filename, existingCrop),
				Practice: uc.tagger.DetectPractice(span.Text),
			},
		})
	}
	return sentences, nil
}

func (uc *ProcessDocumentUseCase) embed(ctx context.Context, sentences []domain.Sentence) ([][]float32, error) {
	texts := make([]string, len(sentences))
	for i, s := range sentences {
		texts[i] = s.Text
	}
	vectors, err := uc.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed sentences: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, domain.WrapError(
			domain.ErrInvalidInput,
			"embed sentences",
			fmt.Errorf("vectors/sentences mismatch: %d/%d", len(vectors), len(texts)),
		)
	}
	return vectors, nil
}

func (uc *ProcessDocumentUseCase) markStatus(ctx context.Context, documentID string, status domain.DocumentStatus, errMessage string) error {
	return uc.repo.UpdateStatus(ctx, documentID, status, errMessage)
}

func (uc *ProcessDocumentUseCase) markFailed(ctx context.Context, documentID string, processErr error) error {
	if processErr == nil {
		return nil
	}
	return uc.markStatus(ctx, documentID, domain.StatusFailed, processErr.Error())
}

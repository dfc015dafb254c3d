package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/dmosk/agro-evidence-qa/internal/core/domain"
	"github.com/dmosk/agro-evidence-qa/internal/core/ports"
)

// RetrieverID names the retrieval strategy in answer run notes.
const RetrieverID = "hybrid_bm25_dense"

// AnswerConfig bounds the retrieval stages of the answer pipeline.
// KInitial in the run notes is not one of these bounds: it reports the
// actual fused candidate count for the question.
type AnswerConfig struct {
	LexicalTopK int
	DenseTopK   int
	RerankTopK  int
}

// AnswerUseCase runs the full question pipeline: hybrid retrieval, score
// fusion, diversity selection, verbatim assembly, and the abstention
// gate. Every question yields an AnswerRecord; failures of the evidence
// checks produce an abstention, not an error.
type AnswerUseCase struct {
	lexical  ports.LexicalSearcher
	semantic ports.SemanticSearcher
	fuser    *Fuser
	selector *DiversitySelector
	gate     *Gate
	cfg      AnswerConfig
	log      *slog.Logger
}

func NewAnswerUseCase(
	lexical ports.LexicalSearcher,
	semantic ports.SemanticSearcher,
	fuser *Fuser,
	selector *DiversitySelector,
	gate *Gate,
	cfg AnswerConfig,
	log *slog.Logger,
) *AnswerUseCase {
	return &AnswerUseCase{
		lexical:  lexical,
		semantic: semantic,
		fuser:    fuser,
		selector: selector,
		gate:     gate,
		cfg:      cfg,
		log:      log,
	}
}

func (uc *AnswerUseCase) Answer(ctx context.Context, question string) (*domain.AnswerRecord, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "answer", errors.New("empty question"))
	}

	lexHits, err := uc.lexical.Search(ctx, question, uc.cfg.LexicalTopK)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "lexical search", err)
	}
	denseHits, err := uc.semantic.Search(ctx, question, uc.cfg.DenseTopK)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "semantic search", err)
	}

	candidates, err := uc.fuser.Fuse(ctx, question, lexHits, denseHits)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "score fusion", err)
	}

	var maxRetrieval float64
	if len(candidates) > 0 {
		maxRetrieval = candidates[0].FusedScore
	}

	selection, err := uc.selector.Select(ctx, question, candidates, uc.cfg.RerankTopK)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "diversity selection", err)
	}

	assembly := AssembleAnswer(selection.Sentences)

	decision := uc.gate.Decide(GateInput{
		Question:          question,
		Selected:          selection.Sentences,
		MaxRetrievalScore: maxRetrieval,
		Metrics:           selection.Metrics,
		NumericValid:      assembly.Valid,
		NumericReason:     assembly.Reason,
	})

	record := &domain.AnswerRecord{
		Question:        question,
		Abstained:       decision.Abstained,
		AnswerSentences: citations(selection.Sentences),
		RunNotes: domain.RunNotes{
			Retriever:  RetrieverID,
			KInitial:   len(candidates),
			RerankTopK: uc.cfg.RerankTopK,
			Scores:     decision.Scores,
		},
	}
	if decision.Abstained {
		record.RunNotes.Decision = decision.Reasons
	} else {
		record.FinalAnswer = assembly.FinalAnswer
		record.RunNotes.Decision = []string{"answered"}
	}

	uc.log.InfoContext(ctx, "question answered",
		slog.Bool("abstained", record.Abstained),
		slog.Int("support_count", decision.Scores.SupportCount),
		slog.Float64("max_retrieval", decision.Scores.MaxRetrieval),
	)
	return record, nil
}

func citations(sentences []domain.Sentence) []domain.Citation {
	out := make([]domain.Citation, len(sentences))
	for i, s := range sentences {
		out[i] = s.Citation()
	}
	return out
}

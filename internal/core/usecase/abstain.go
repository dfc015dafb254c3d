package usecase

import (
	"fmt"
	"strings"

	"github.com/dmosk/agro-evidence-qa/internal/core/domain"
)

// GateConfig holds the abstention thresholds.
type GateConfig struct {
	ScoreThreshold      float64
	MinSupport          int
	UngroundablePhrases []string
}

// Gate decides whether an assembled answer is safe to return.
type Gate struct {
	cfg GateConfig
}

func NewGate(cfg GateConfig) *Gate {
	return &Gate{cfg: cfg}
}

// GateInput carries everything the gate inspects. NumericValid and
// NumericReason come from answer assembly.
type GateInput struct {
	Question          string
	Selected          []domain.Sentence
	MaxRetrievalScore float64
	Metrics           domain.SelectionMetrics
	NumericValid      bool
	NumericReason     string
}

// Decide runs the abstention rules. Entity grounding is checked first
// and short-circuits: a question about entities the evidence never
// mentions gets exactly one reason regardless of the other rules. The
// remaining rules accumulate, so a weak answer reports every violated
// threshold at once. The score snapshot is populated either way.
func (g *Gate) Decide(in GateInput) domain.Decision {
	snapshot := domain.ScoreSnapshot{
		MaxRetrieval:     in.MaxRetrievalScore,
		SupportCount:     len(in.Selected),
		RedundancyBefore: in.Metrics.RedundancyBefore,
		RedundancyAfter:  in.Metrics.RedundancyAfter,
	}

	texts := make([]string, len(in.Selected))
	for i, s := range in.Selected {
		texts[i] = s.Text
	}
	evidence := strings.Join(texts, "\n")

	if ungrounded := scanQuestionEntities(in.Question, evidence, g.cfg.UngroundablePhrases); len(ungrounded) > 0 {
		return domain.Decision{
			Abstained: true,
			Reasons: []string{fmt.Sprintf(
				"Entity grounding failed: %s not supported by retrieved evidence",
				strings.Join(ungrounded, ", "),
			)},
			Scores: snapshot,
		}
	}

	var reasons []string
	if in.MaxRetrievalScore < g.cfg.ScoreThreshold {
		reasons = append(reasons, fmt.Sprintf("Low retrieval score: %.3f < %v", in.MaxRetrievalScore, g.cfg.ScoreThreshold))
	}
	if len(in.Selected) < g.cfg.MinSupport {
		reasons = append(reasons, fmt.Sprintf("Insufficient support: %d < %d", len(in.Selected), g.cfg.MinSupport))
	}
	if !in.NumericValid {
		reasons = append(reasons, in.NumericReason)
	}

	return domain.Decision{
		Abstained: len(reasons) > 0,
		Reasons:   reasons,
		Scores:    snapshot,
	}
}

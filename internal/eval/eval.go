package eval

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dmosk/agro-evidence-qa/internal/core/domain"
	"github.com/dmosk/agro-evidence-qa/internal/core/ports"
)

// LoadRecords reads a batch run file: one JSON AnswerRecord per line,
// blank lines skipped.
func LoadRecords(r io.Reader) ([]domain.AnswerRecord, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var records []domain.AnswerRecord
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var record domain.AnswerRecord
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			return nil, fmt.Errorf("parse record at line %d: %w", line, err)
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read run file: %w", err)
	}
	return records, nil
}

// Summary aggregates a batch run. Redundancy means are computed over
// records that selected at least two sentences; single-sentence and
// empty selections carry no pairwise signal.
type Summary struct {
	Total     int `json:"total"`
	Answered  int `json:"answered"`
	Abstained int `json:"abstained"`

	AnswerRate float64 `json:"answer_rate"`

	MeanRedundancyBefore float64 `json:"mean_redundancy_before"`
	MeanRedundancyAfter  float64 `json:"mean_redundancy_after"`
	RedundancyReduction  float64 `json:"redundancy_reduction"`

	CropCounts     map[string]int `json:"crop_counts"`
	PracticeCounts map[string]int `json:"practice_counts"`
	ReasonCounts   map[string]int `json:"reason_counts"`
}

func Summarize(records []domain.AnswerRecord) Summary {
	summary := Summary{
		Total:          len(records),
		CropCounts:     map[string]int{},
		PracticeCounts: map[string]int{},
		ReasonCounts:   map[string]int{},
	}

	redundancySamples := 0
	for _, record := range records {
		if record.Abstained {
			summary.Abstained++
			for _, reason := range record.RunNotes.Decision {
				summary.ReasonCounts[reasonRule(reason)]++
			}
		} else {
			summary.Answered++
		}

		for _, citation := range record.AnswerSentences {
			summary.CropCounts[citation.Tags.Crop]++
			summary.PracticeCounts[citation.Tags.Practice]++
		}

		scores := record.RunNotes.Scores
		if scores.SupportCount >= 2 {
			summary.MeanRedundancyBefore += scores.RedundancyBefore
			summary.MeanRedundancyAfter += scores.RedundancyAfter
			redundancySamples++
		}
	}

	if summary.Total > 0 {
		summary.AnswerRate = float64(summary.Answered) / float64(summary.Total)
	}
	if redundancySamples > 0 {
		summary.MeanRedundancyBefore /= float64(redundancySamples)
		summary.MeanRedundancyAfter /= float64(redundancySamples)
		summary.RedundancyReduction = summary.MeanRedundancyBefore - summary.MeanRedundancyAfter
	}
	return summary
}

// reasonRule folds free-form abstention reasons into stable rule names.
func reasonRule(reason string) string {
	switch {
	case strings.HasPrefix(reason, "Entity grounding failed"):
		return "entity"
	case strings.HasPrefix(reason, "Low retrieval score"):
		return "score"
	case strings.HasPrefix(reason, "Insufficient support"):
		return "support"
	case strings.HasPrefix(reason, "Numeric safeguard failed"):
		return "numeric"
	case reason == "No sentences selected":
		return "empty"
	default:
		return "other"
	}
}

// OffsetError is one citation whose byte offsets no longer reproduce its
// text from the stored source document.
type OffsetError struct {
	Question string
	DocID    string
	Start    int
	End      int
	Expected string
	Actual   string
}

// OffsetChecker re-extracts source documents and verifies the citation
// offset invariant: strings.TrimSpace(text[start:end]) == citation text.
type OffsetChecker struct {
	docs      ports.DocumentRepository
	extractor ports.TextExtractor
}

func NewOffsetChecker(docs ports.DocumentRepository, extractor ports.TextExtractor) *OffsetChecker {
	return &OffsetChecker{docs: docs, extractor: extractor}
}

func (c *OffsetChecker) Validate(ctx context.Context, records []domain.AnswerRecord) ([]OffsetError, error) {
	texts := map[string]string{}

	var offsetErrors []OffsetError
	for _, record := range records {
		for _, citation := range record.AnswerSentences {
			text, ok := texts[citation.DocID]
			if !ok {
				extracted, err := c.extractDocument(ctx, citation.DocID)
				if err != nil {
					return nil, err
				}
				text = extracted
				texts[citation.DocID] = text
			}

			actual := ""
			if citation.Start >= 0 && citation.End <= len(text) && citation.Start <= citation.End {
				actual = strings.TrimSpace(text[citation.Start:citation.End])
			}
			if actual != citation.Text {
				offsetErrors = append(offsetErrors, OffsetError{
					Question: record.Question,
					DocID:    citation.DocID,
					Start:    citation.Start,
					End:      citation.End,
					Expected: citation.Text,
					Actual:   actual,
				})
			}
		}
	}
	return offsetErrors, nil
}

func (c *OffsetChecker) extractDocument(ctx context.Context, docID string) (string, error) {
	doc, err := c.docs.GetByID(ctx, docID)
	if err != nil {
		return "", fmt.Errorf("load document %s: %w", docID, err)
	}
	extracted, err := c.extractor.Extract(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("extract document %s: %w", docID, err)
	}
	return extracted.Text, nil
}

package eval

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/dmosk/agro-evidence-qa/internal/core/domain"
)

const (
	sheetDecisions    = "Decisions"
	sheetRedundancy   = "Redundancy"
	sheetCoverage     = "Coverage"
	sheetOffsetErrors = "OffsetErrors"
)

// WriteReport renders a batch run into one XLSX workbook.
func WriteReport(path string, summary Summary, records []domain.AnswerRecord, offsetErrors []OffsetError) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := writeDecisionsSheet(f, records); err != nil {
		return err
	}
	if err := writeRedundancySheet(f, summary, records); err != nil {
		return err
	}
	if err := writeCoverageSheet(f, summary); err != nil {
		return err
	}
	if err := writeOffsetErrorsSheet(f, offsetErrors); err != nil {
		return err
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("drop default sheet: %w", err)
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save report %s: %w", path, err)
	}
	return nil
}

func writeDecisionsSheet(f *excelize.File, records []domain.AnswerRecord) error {
	if _, err := f.NewSheet(sheetDecisions); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheetDecisions, err)
	}
	rows := [][]any{
		{"question_id", "question", "abstained", "decision", "support_count", "max_retrieval", "final_answer"},
	}
	for _, record := range records {
		rows = append(rows, []any{
			record.QuestionID,
			record.Question,
			record.Abstained,
			strings.Join(record.RunNotes.Decision, "; "),
			record.RunNotes.Scores.SupportCount,
			record.RunNotes.Scores.MaxRetrieval,
			record.FinalAnswer,
		})
	}
	return writeRows(f, sheetDecisions, rows)
}

func writeRedundancySheet(f *excelize.File, summary Summary, records []domain.AnswerRecord) error {
	if _, err := f.NewSheet(sheetRedundancy); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheetRedundancy, err)
	}
	rows := [][]any{
		{"question_id", "question", "redundancy_before", "redundancy_after", "reduction"},
	}
	for _, record := range records {
		scores := record.RunNotes.Scores
		rows = append(rows, []any{
			record.QuestionID,
			record.Question,
			scores.RedundancyBefore,
			scores.RedundancyAfter,
			scores.RedundancyBefore - scores.RedundancyAfter,
		})
	}
	rows = append(rows,
		[]any{},
		[]any{"mean", "", summary.MeanRedundancyBefore, summary.MeanRedundancyAfter, summary.RedundancyReduction},
	)
	return writeRows(f, sheetRedundancy, rows)
}

func writeCoverageSheet(f *excelize.File, summary Summary) error {
	if _, err := f.NewSheet(sheetCoverage); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheetCoverage, err)
	}
	rows := [][]any{
		{"metric", "value"},
		{"total_questions", summary.Total},
		{"answered", summary.Answered},
		{"abstained", summary.Abstained},
		{"answer_rate", summary.AnswerRate},
		{},
		{"abstention_rule", "count"},
	}
	for _, rule := range sortedKeys(summary.ReasonCounts) {
		rows = append(rows, []any{rule, summary.ReasonCounts[rule]})
	}
	rows = append(rows, []any{}, []any{"crop", "citations"})
	for _, crop := range sortedKeys(summary.CropCounts) {
		rows = append(rows, []any{crop, summary.CropCounts[crop]})
	}
	rows = append(rows, []any{}, []any{"practice", "citations"})
	for _, practice := range sortedKeys(summary.PracticeCounts) {
		rows = append(rows, []any{practice, summary.PracticeCounts[practice]})
	}
	return writeRows(f, sheetCoverage, rows)
}

func writeOffsetErrorsSheet(f *excelize.File, offsetErrors []OffsetError) error {
	if _, err := f.NewSheet(sheetOffsetErrors); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheetOffsetErrors, err)
	}
	rows := [][]any{
		{"question", "doc_id", "start", "end", "expected", "actual"},
	}
	for _, oe := range offsetErrors {
		rows = append(rows, []any{oe.Question, oe.DocID, oe.Start, oe.End, oe.Expected, oe.Actual})
	}
	return writeRows(f, sheetOffsetErrors, rows)
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("cell name for row %d: %w", i+1, err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write sheet %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

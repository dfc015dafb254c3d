package usecase

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dmosk/agro-evidence-qa/internal/core/domain"
)

// numericTokenPattern captures a number, an optional range tail, and an
// optional trailing unit, e.g. "200", "4.5", "10 - 20", "200 kg/ha", "35%".
var numericTokenPattern = regexp.MustCompile(`\b\d+(?:\.\d+)?(?:\s*-\s*\d+(?:\.\d+)?)?(?:\s*[a-zA-Z/%]+(?:/[a-zA-Z]+)?)?\b`)

// numericCorePattern strips a token down to its leading digits and dots.
var numericCorePattern = regexp.MustCompile(`^[\d.]+`)

// Assembly is the verbatim answer built from selected sentences plus the
// outcome of the numeric safeguard.
type Assembly struct {
	FinalAnswer string
	Valid       bool
	Reason      string
}

// AssembleAnswer joins the selected sentence texts in selection order and
// verifies that every numeric token in the result also occurs in a source
// sentence. The answer is never paraphrased, so any numeric mismatch
// indicates a pipeline bug rather than a generation error, and the whole
// answer is rejected.
func AssembleAnswer(selected []domain.Sentence) Assembly {
	if len(selected) == 0 {
		return Assembly{Valid: false, Reason: "No sentences selected"}
	}

	texts := make([]string, len(selected))
	for i, s := range selected {
		texts[i] = s.Text
	}
	answer := strings.Join(texts, "\n")

	if missing := missingNumericTokens(answer, texts); len(missing) > 0 {
		return Assembly{
			FinalAnswer: answer,
			Valid:       false,
			Reason:      fmt.Sprintf("Numeric safeguard failed: numbers %v not found in source sentences", missing),
		}
	}
	return Assembly{FinalAnswer: answer, Valid: true}
}

// missingNumericTokens returns the numeric tokens of the answer that
// appear in no source sentence. Matching is deliberately loose: a token
// passes if it, or its leading numeric core, is a substring of any token
// extracted from the sources.
func missingNumericTokens(answer string, sources []string) []string {
	answerTokens := numericTokenPattern.FindAllString(answer, -1)
	if len(answerTokens) == 0 {
		return nil
	}

	var sourceTokens []string
	for _, src := range sources {
		sourceTokens = append(sourceTokens, numericTokenPattern.FindAllString(src, -1)...)
	}

	var missing []string
	seen := make(map[string]struct{})
	for _, tok := range answerTokens {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		core := numericCorePattern.FindString(tok)
		found := false
		for _, src := range sourceTokens {
			if strings.Contains(src, tok) || (core != "" && strings.Contains(src, core)) {
				found = true
				break
			}
		}
		if !found {
			if _, dup := seen[tok]; !dup {
				seen[tok] = struct{}{}
				missing = append(missing, tok)
			}
		}
	}
	return missing
}

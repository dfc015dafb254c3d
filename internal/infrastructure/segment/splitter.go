package segment

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/dmosk/agro-evidence-qa/internal/core/domain"
)

// sentencePattern matches either a run of text up to its terminal
// punctuation (with trailing whitespace or end of input), or a trailing
// unterminated fragment. Newlines always break sentences.
var sentencePattern = regexp.MustCompile(`(?m)[^.!?\n]+[.!?]+(\s+|$)|[^.!?\n]+$`)

// Splitter segments document text into sentence spans with exact byte
// offsets. For every span, strings.TrimSpace(text[Start:End]) equals
// the stored sentence text; that equality is what citation offset
// validation checks downstream.
type Splitter struct{}

func NewSplitter() *Splitter {
	return &Splitter{}
}

// Split returns the sentence spans of text in document order. Fragments
// of two runes or fewer after trimming are noise (stray bullets, list
// markers) and are dropped.
func (s *Splitter) Split(text string) []domain.SentenceSpan {
	matches := sentencePattern.FindAllStringIndex(text, -1)
	spans := make([]domain.SentenceSpan, 0, len(matches))
	for _, m := range matches {
		trimmed := strings.TrimSpace(text[m[0]:m[1]])
		if utf8.RuneCountInString(trimmed) <= 2 {
			continue
		}
		spans = append(spans, domain.SentenceSpan{
			Start: m[0],
			End:   m[1],
			Text:  trimmed,
		})
	}
	return spans
}

package segment

import (
	"strings"

	"github.com/dmosk/agro-evidence-qa/internal/core/domain"
)

// KeywordTagger assigns crop and practice tags from static keyword
// tables. Vocabularies are closed; anything unmatched falls back to the
// catch-all tag.
type KeywordTagger struct {
	crops     []domain.TagRule
	practices []domain.TagRule
}

func NewKeywordTagger(crops, practices []domain.TagRule) *KeywordTagger {
	return &KeywordTagger{crops: crops, practices: practices}
}

// DetectCrop resolves the crop tag with decreasing trust: an existing
// label from document metadata wins, then keywords in the document name,
// then keywords in the sentence itself.
func (t *KeywordTagger) DetectCrop(text, docID, existing string) string {
	if existing != "" && existing != domain.CropUnknown {
		return existing
	}
	if tag, ok := firstKeywordMatch(docID, t.crops); ok {
		return tag
	}
	if tag, ok := firstKeywordMatch(text, t.crops); ok {
		return tag
	}
	return domain.CropOther
}

// DetectPractice scores every practice by keyword hits in the sentence
// and returns the best one. Ties resolve to the practice listed first.
func (t *KeywordTagger) DetectPractice(text string) string {
	textLower := strings.ToLower(text)

	best := domain.PracticeOther
	bestHits := 0
	for _, rule := range t.practices {
		hits := 0
		for _, kw := range rule.Keywords {
			if strings.Contains(textLower, kw) {
				hits++
			}
		}
		if hits > bestHits {
			bestHits = hits
			best = rule.Tag
		}
	}
	return best
}

func firstKeywordMatch(text string, rules []domain.TagRule) (string, bool) {
	textLower := strings.ToLower(text)
	for _, rule := range rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(textLower, kw) {
				return rule.Tag, true
			}
		}
	}
	return "", false
}

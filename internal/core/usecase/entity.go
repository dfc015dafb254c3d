package usecase

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	yearPattern        = regexp.MustCompile(`\b(?:19|20)\d{2}\b`)
	quarterYearPattern = regexp.MustCompile(`\bQ[1-4]\s+(?:19|20)\d{2}\b`)
)

// Interrogatives and other sentence-leading words that are capitalized
// for grammatical reasons only.
var entityStopwords = map[string]struct{}{
	"what": {}, "which": {}, "how": {}, "when": {}, "where": {},
	"why": {}, "who": {}, "whose": {}, "is": {}, "are": {}, "was": {},
	"were": {}, "does": {}, "do": {}, "did": {}, "can": {}, "could": {},
	"should": {}, "would": {}, "will": {}, "the": {}, "a": {}, "an": {},
	"in": {}, "on": {}, "at": {}, "for": {}, "of": {}, "and": {}, "or": {},
	"to": {}, "if": {},
}

// scanQuestionEntities finds the question's specific entities that the
// selected evidence does not mention: capitalized proper nouns past the
// first token, four-digit years, and quarter-year references. Phrases
// from the ungroundable list (internal or proprietary material) are
// always reported since the public corpus cannot support them by
// definition. Returned entities keep question order without duplicates.
func scanQuestionEntities(question, evidence string, ungroundablePhrases []string) []string {
	questionLower := strings.ToLower(question)
	evidenceLower := strings.ToLower(evidence)

	var ungrounded []string
	seen := make(map[string]struct{})
	add := func(entity string) {
		key := strings.ToLower(entity)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		ungrounded = append(ungrounded, entity)
	}

	for _, phrase := range ungroundablePhrases {
		if strings.Contains(questionLower, phrase) {
			add(phrase)
		}
	}

	for i, token := range strings.Fields(question) {
		token = strings.Trim(token, `?,.!;:'"()[]`)
		if i == 0 || utf8.RuneCountInString(token) < 2 {
			continue
		}
		first, _ := utf8.DecodeRuneInString(token)
		if !unicode.IsUpper(first) {
			continue
		}
		if _, stop := entityStopwords[strings.ToLower(token)]; stop {
			continue
		}
		if !strings.Contains(evidenceLower, strings.ToLower(token)) {
			add(token)
		}
	}

	for _, year := range yearPattern.FindAllString(question, -1) {
		if !strings.Contains(evidenceLower, year) {
			add(year)
		}
	}
	for _, qy := range quarterYearPattern.FindAllString(question, -1) {
		if !strings.Contains(evidenceLower, strings.ToLower(qy)) {
			add(qy)
		}
	}

	return ungrounded
}

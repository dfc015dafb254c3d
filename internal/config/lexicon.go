package config

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/dmosk/agro-evidence-qa/internal/core/domain"
)

//go:embed lexicon.yaml
var defaultLexiconYAML []byte

// TagKeywords maps one closed-vocabulary tag to its trigger keywords.
// Slices, not maps: lookup order is part of the contract (ties resolve
// to the first listed tag) and must stay deterministic.
type TagKeywords struct {
	Tag      string   `yaml:"tag"`
	Keywords []string `yaml:"keywords"`
}

// Lexicon is the immutable keyword configuration shared by the sentence
// tagger, the query tag detector, and the entity-grounding scan.
type Lexicon struct {
	Crops     []TagKeywords `yaml:"crops"`
	Practices []TagKeywords `yaml:"practices"`

	QueryCrops     []TagKeywords `yaml:"query_crops"`
	QueryPractices []TagKeywords `yaml:"query_practices"`

	UngroundablePhrases []string `yaml:"ungroundable_phrases"`
}

// LoadLexicon parses the embedded lexicon. The tables ship with the
// binary; there is no runtime mutation path.
func LoadLexicon() (Lexicon, error) {
	return ParseLexicon(defaultLexiconYAML)
}

func ParseLexicon(data []byte) (Lexicon, error) {
	var lex Lexicon
	if err := yaml.Unmarshal(data, &lex); err != nil {
		return Lexicon{}, fmt.Errorf("parse lexicon yaml: %w", err)
	}
	if len(lex.Crops) == 0 || len(lex.Practices) == 0 {
		return Lexicon{}, fmt.Errorf("lexicon missing crop or practice tables")
	}
	return lex, nil
}

// CropRules converts the crop table into domain tag rules.
func (l Lexicon) CropRules() []domain.TagRule { return toRules(l.Crops) }

// PracticeRules converts the practice table into domain tag rules.
func (l Lexicon) PracticeRules() []domain.TagRule { return toRules(l.Practices) }

// QueryCropRules converts the query-side crop table into domain tag rules.
func (l Lexicon) QueryCropRules() []domain.TagRule { return toRules(l.QueryCrops) }

// QueryPracticeRules converts the query-side practice table into domain tag rules.
func (l Lexicon) QueryPracticeRules() []domain.TagRule { return toRules(l.QueryPractices) }

func toRules(entries []TagKeywords) []domain.TagRule {
	rules := make([]domain.TagRule, 0, len(entries))
	for _, e := range entries {
		rules = append(rules, domain.TagRule{Tag: e.Tag, Keywords: e.Keywords})
	}
	return rules
}

// MustLexicon is for wiring paths where a broken embedded lexicon is a
// programming error, not a runtime condition.
func MustLexicon() Lexicon {
	lex, err := LoadLexicon()
	if err != nil {
		panic(err)
	}
	return lex
}

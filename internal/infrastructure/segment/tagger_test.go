package segment

import (
	"testing"

	"github.com/dmosk/agro-evidence-qa/internal/config"
	"github.com/dmosk/agro-evidence-qa/internal/core/domain"
)

func newLexiconTagger(t *testing.T) *KeywordTagger {
	t.Helper()
	lex, err := config.LoadLexicon()
	if err != nil {
		t.Fatalf("LoadLexicon() error = %v", err)
	}
	return NewKeywordTagger(lex.CropRules(), lex.PracticeRules())
}

func TestDetectCropExistingLabelWins(t *testing.T) {
	tagger := newLexiconTagger(t)

	got := tagger.DetectCrop("Corn should be planted in May.", "corn_guide.md", "wheat")
	if got != "wheat" {
		t.Fatalf("existing label must win, got %q", got)
	}
}

func TestDetectCropUnknownFallsThroughToDocID(t *testing.T) {
	tagger := newLexiconTagger(t)

	got := tagger.DetectCrop("Plant in May for best results.", "canola_handbook.md", domain.CropUnknown)
	if got != "canola" {
		t.Fatalf("expected canola from document name, got %q", got)
	}
}

func TestDetectCropFromSentenceText(t *testing.T) {
	tagger := newLexiconTagger(t)

	got := tagger.DetectCrop("Rapeseed responds well to early seeding.", "agronomy_notes.md", "")
	if got != "canola" {
		t.Fatalf("expected canola from rapeseed synonym, got %q", got)
	}
}

func TestDetectCropNoMatchIsOther(t *testing.T) {
	tagger := newLexiconTagger(t)

	got := tagger.DetectCrop("Rotate fields every season.", "notes.md", "")
	if got != domain.CropOther {
		t.Fatalf("expected other, got %q", got)
	}
}

func TestDetectPracticeScoresKeywordHits(t *testing.T) {
	tagger := newLexiconTagger(t)

	got := tagger.DetectPractice("Apply nitrogen and phosphorus fertilizer at seeding.")
	if got != "fertility" {
		t.Fatalf("expected fertility with three keyword hits, got %q", got)
	}
}

func TestDetectPracticeTieResolvesToFirstListed(t *testing.T) {
	tagger := NewKeywordTagger(nil, []domain.TagRule{
		{Tag: "first", Keywords: []string{"alpha"}},
		{Tag: "second", Keywords: []string{"beta"}},
	})

	got := tagger.DetectPractice("alpha and beta both occur once")
	if got != "first" {
		t.Fatalf("tie must resolve to first listed practice, got %q", got)
	}
}

func TestDetectPracticeNoMatchIsOther(t *testing.T) {
	tagger := newLexiconTagger(t)

	if got := tagger.DetectPractice("A sentence about nothing in particular."); got != domain.PracticeOther {
		t.Fatalf("expected other, got %q", got)
	}
}

package segment

import (
	"strings"
	"testing"
)

func TestSplitBasicSentences(t *testing.T) {
	text := "Canola grows best in cool climates. Seed early for best yield. Why wait?"
	spans := NewSplitter().Split(text)

	if len(spans) != 3 {
		t.Fatalf("expected 3 spans, got %d: %+v", len(spans), spans)
	}
	want := []string{
		"Canola grows best in cool climates.",
		"Seed early for best yield.",
		"Why wait?",
	}
	for i, w := range want {
		if spans[i].Text != w {
			t.Fatalf("span %d: got %q, want %q", i, spans[i].Text, w)
		}
	}
}

func TestSplitOffsetsRoundTrip(t *testing.T) {
	text := "---\n   \nCanola grows best in cool climates.\nSeed early! Depth matters.\nTrailing fragment without punctuation"
	spans := NewSplitter().Split(text)

	if len(spans) == 0 {
		t.Fatalf("expected spans")
	}
	for _, span := range spans {
		if got := strings.TrimSpace(text[span.Start:span.End]); got != span.Text {
			t.Fatalf("offset mismatch: trimmed slice %q != text %q", got, span.Text)
		}
	}
	last := spans[len(spans)-1]
	if last.Text != "Trailing fragment without punctuation" {
		t.Fatalf("unterminated fragment must be kept, got %q", last.Text)
	}
}

func TestSplitDropsShortFragments(t *testing.T) {
	text := "-a\nOk so this one stays.\nNo"
	spans := NewSplitter().Split(text)

	if len(spans) != 1 {
		t.Fatalf("expected 1 surviving span, got %d: %+v", len(spans), spans)
	}
	if spans[0].Text != "Ok so this one stays." {
		t.Fatalf("unexpected surviving span: %q", spans[0].Text)
	}
}

func TestSplitNewlinesBreakSentences(t *testing.T) {
	text := "First line without period\nSecond line also bare"
	spans := NewSplitter().Split(text)

	if len(spans) != 2 {
		t.Fatalf("expected newline to split, got %d spans", len(spans))
	}
}

func TestSplitEmptyInput(t *testing.T) {
	if spans := NewSplitter().Split(""); len(spans) != 0 {
		t.Fatalf("expected no spans for empty input, got %d", len(spans))
	}
	if spans := NewSplitter().Split("   \n\n  "); len(spans) != 0 {
		t.Fatalf("expected no spans for whitespace input, got %d", len(spans))
	}
}

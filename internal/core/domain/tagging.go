package domain

// TagRule maps one closed-vocabulary tag to its trigger keywords. Rule
// order is significant: the first rule whose keywords match wins ties.
type TagRule struct {
	Tag      string
	Keywords []string
}

// ExtractedText is the canonical text of a stored document plus any
// crop hint found in its metadata (markdown front matter).
type ExtractedText struct {
	Text     string
	CropHint string
}

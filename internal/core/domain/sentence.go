package domain

// Tag vocabularies are closed; values outside them fall back to the
// catch-all below.
const (
	CropUnknown   = "unknown"
	CropOther     = "other"
	PracticeOther = "other"
)

// Tags carry the topical labels attached to a sentence during corpus
// preparation.
type Tags struct {
	Crop     string `json:"crop"`
	Practice string `json:"practice"`
}

// Sentence is the immutable unit of evidence. Start and End are byte
// offsets into the original source document; the stored text equals
// strings.TrimSpace(source[Start:End]).
type Sentence struct {
	ID    int    `json:"id"`
	DocID string `json:"doc_id"`
	Start int    `json:"start"`
	End   int    `json:"end"`
	Text  string `json:"text"`
	Tags  Tags   `json:"tags"`
}

// Citation is the serialized view of an evidence sentence inside an
// answer record.
type Citation struct {
	Text  string `json:"text"`
	DocID string `json:"doc_id"`
	Start int    `json:"start"`
	End   int    `json:"end"`
	Tags  Tags   `json:"tags"`
}

func (s Sentence) Citation() Citation {
	return Citation{
		Text:  s.Text,
		DocID: s.DocID,
		Start: s.Start,
		End:   s.End,
		Tags:  s.Tags,
	}
}

// SentenceSpan is a segment of a source document produced by sentence
// splitting, before tagging and persistence assign it an identity.
type SentenceSpan struct {
	Start int
	End   int
	Text  string
}

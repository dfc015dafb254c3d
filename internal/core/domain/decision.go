package domain

// ScoreSnapshot is attached to every decision regardless of outcome so
// abstentions stay auditable.
type ScoreSnapshot struct {
	MaxRetrieval     float64 `json:"max_retrieval"`
	SupportCount     int     `json:"support_count"`
	RedundancyBefore float64 `json:"redundancy_before"`
	RedundancyAfter  float64 `json:"redundancy_after"`
}

// Decision is the abstention gate's verdict. Reasons is empty exactly
// when the question was answered.
type Decision struct {
	Abstained bool          `json:"abstained"`
	Reasons   []string      `json:"reasons"`
	Scores    ScoreSnapshot `json:"scores"`
}

// RunNotes describe how a single answer was produced.
type RunNotes struct {
	Retriever  string        `json:"retriever"`
	KInitial   int           `json:"k_initial"`
	RerankTopK int           `json:"rerank_topk"`
	Decision   []string      `json:"decision"`
	Scores     ScoreSnapshot `json:"scores"`
}

// AnswerRecord is the serialized per-question contract, identical in
// single-question and batch modes. FinalAnswer is empty when abstained.
type AnswerRecord struct {
	QuestionID      string     `json:"question_id,omitempty"`
	Question        string     `json:"question"`
	Abstained       bool       `json:"abstained"`
	AnswerSentences []Citation `json:"answer_sentences"`
	FinalAnswer     string     `json:"final_answer"`
	RunNotes        RunNotes   `json:"run_notes"`
}

package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dmosk/agro-evidence-qa/internal/config"
	"github.com/dmosk/agro-evidence-qa/internal/core/domain"
	"github.com/dmosk/agro-evidence-qa/internal/observability/metrics"
)

type fakeAnswerer struct {
	record *domain.AnswerRecord
	err    error
	gotQ   string
}

func (f *fakeAnswerer) Answer(_ context.Context, question string) (*domain.AnswerRecord, error) {
	f.gotQ = question
	return f.record, f.err
}

type fakeIngestor struct {
	doc *domain.Document
	err error
}

func (f *fakeIngestor) Upload(_ context.Context, filename, mimeType string, _ io.Reader) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	doc := *f.doc
	doc.Filename = filename
	doc.MimeType = mimeType
	return &doc, nil
}

type fakeDocReader struct {
	doc *domain.Document
	err error
}

func (f *fakeDocReader) GetByID(context.Context, string) (*domain.Document, error) {
	return f.doc, f.err
}

func answeredRecord() *domain.AnswerRecord {
	return &domain.AnswerRecord{
		Question:  "What pH suits canola?",
		Abstained: false,
		AnswerSentences: []domain.Citation{
			{Text: "Canola tolerates soil pH from 5.5 to 8.0.", DocID: "canola.md", Start: 0, End: 42},
		},
		FinalAnswer: "Canola tolerates soil pH from 5.5 to 8.0.",
		RunNotes: domain.RunNotes{
			Retriever: "hybrid_bm25_dense",
			KInitial:  50,
			Decision:  []string{"answered"},
			Scores:    domain.ScoreSnapshot{MaxRetrieval: 0.9, SupportCount: 3},
		},
	}
}

func newTestHandler(cfg config.Config, answerer *fakeAnswerer, ingest *fakeIngestor, docs *fakeDocReader) http.Handler {
	if answerer == nil {
		answerer = &fakeAnswerer{record: answeredRecord()}
	}
	if ingest == nil {
		ingest = &fakeIngestor{doc: &domain.Document{ID: "doc-1", Status: domain.StatusUploaded}}
	}
	if docs == nil {
		docs = &fakeDocReader{doc: &domain.Document{ID: "doc-1", Status: domain.StatusReady}}
	}
	router := NewRouter(cfg, ingest, answerer, docs, metrics.NewHTTPServerMetrics("api-test"))
	return router.Handler()
}

func TestHealthz(t *testing.T) {
	handler := newTestHandler(config.Config{}, nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected request id header to be set")
	}
}

func TestAskReturnsAnswerRecord(t *testing.T) {
	answerer := &fakeAnswerer{record: answeredRecord()}
	handler := newTestHandler(config.Config{}, answerer, nil, nil)

	body, _ := json.Marshal(map[string]string{"question": "What pH suits canola?"})
	req := httptest.NewRequest(http.MethodPost, "/v1/ask", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if answerer.gotQ != "What pH suits canola?" {
		t.Fatalf("question not forwarded, got %q", answerer.gotQ)
	}

	var record domain.AnswerRecord
	if err := json.NewDecoder(res.Body).Decode(&record); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if record.Abstained {
		t.Fatalf("expected answered record")
	}
	if record.FinalAnswer != "Canola tolerates soil pH from 5.5 to 8.0." {
		t.Fatalf("unexpected final answer: %q", record.FinalAnswer)
	}
	if len(record.AnswerSentences) != 1 || record.AnswerSentences[0].DocID != "canola.md" {
		t.Fatalf("unexpected citations: %+v", record.AnswerSentences)
	}
}

func TestAskReturnsAbstainedRecordWith200(t *testing.T) {
	record := answeredRecord()
	record.Abstained = true
	record.FinalAnswer = ""
	record.RunNotes.Decision = []string{"Insufficient support: 1 < 3"}
	handler := newTestHandler(config.Config{}, &fakeAnswerer{record: record}, nil, nil)

	body, _ := json.Marshal(map[string]string{"question": "What about quinoa?"})
	req := httptest.NewRequest(http.MethodPost, "/v1/ask", bytes.NewReader(body))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("abstention is a valid outcome, expected 200, got %d", res.Code)
	}
	var got domain.AnswerRecord
	if err := json.NewDecoder(res.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !got.Abstained || got.FinalAnswer != "" {
		t.Fatalf("expected abstained record with empty answer, got %+v", got)
	}
}

func TestAskRejectsBadRequests(t *testing.T) {
	handler := newTestHandler(config.Config{}, nil, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader("{not json"))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("invalid json expected 400, got %d", res.Code)
	}

	body, _ := json.Marshal(map[string]string{"question": "   "})
	req2 := httptest.NewRequest(http.MethodPost, "/v1/ask", bytes.NewReader(body))
	res2 := httptest.NewRecorder()
	handler.ServeHTTP(res2, req2)
	if res2.Code != http.StatusBadRequest {
		t.Fatalf("blank question expected 400, got %d", res2.Code)
	}

	req3 := httptest.NewRequest(http.MethodGet, "/v1/ask", nil)
	res3 := httptest.NewRecorder()
	handler.ServeHTTP(res3, req3)
	if res3.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET expected 405, got %d", res3.Code)
	}
}

func TestAskMapsTemporaryErrorTo503(t *testing.T) {
	answerer := &fakeAnswerer{err: domain.WrapError(domain.ErrTemporary, "answer", io.ErrUnexpectedEOF)}
	handler := newTestHandler(config.Config{}, answerer, nil, nil)

	body, _ := json.Marshal(map[string]string{"question": "What pH suits canola?"})
	req := httptest.NewRequest(http.MethodPost, "/v1/ask", bytes.NewReader(body))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("temporary error expected 503, got %d", res.Code)
	}
}

func TestUploadDocumentAccepted(t *testing.T) {
	handler := newTestHandler(config.Config{}, nil, nil, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "canola_guide.md")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("Canola grows best in cool climates.")); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	var doc domain.Document
	if err := json.NewDecoder(res.Body).Decode(&doc); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if doc.Filename != "canola_guide.md" {
		t.Fatalf("unexpected document: %+v", doc)
	}
}

func TestUploadDocumentRequiresFileField(t *testing.T) {
	handler := newTestHandler(config.Config{}, nil, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", strings.NewReader("no multipart"))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestGetDocumentByID(t *testing.T) {
	docs := &fakeDocReader{doc: &domain.Document{ID: "doc-1", Status: domain.StatusReady}}
	handler := newTestHandler(config.Config{}, nil, nil, docs)

	req := httptest.NewRequest(http.MethodGet, "/v1/documents/doc-1", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}

	docs.doc = nil
	docs.err = domain.WrapError(domain.ErrDocumentNotFound, "get_document", io.EOF)
	req2 := httptest.NewRequest(http.MethodGet, "/v1/documents/missing", nil)
	res2 := httptest.NewRecorder()
	handler.ServeHTTP(res2, req2)
	if res2.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res2.Code)
	}
}

func TestRateLimitMiddlewareReturns429(t *testing.T) {
	handler := newTestHandler(config.Config{
		APIRateLimitRPS:   1,
		APIRateLimitBurst: 1,
	}, nil, nil, nil)

	req1 := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res1 := httptest.NewRecorder()
	handler.ServeHTTP(res1, req1)
	if res1.Code != http.StatusOK {
		t.Fatalf("first request expected 200, got %d", res1.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res2 := httptest.NewRecorder()
	handler.ServeHTTP(res2, req2)
	if res2.Code != http.StatusTooManyRequests {
		t.Fatalf("second request expected 429, got %d", res2.Code)
	}
	if res2.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header for 429 response")
	}
}

func TestBackpressureMiddlewareReturns503WhenSaturated(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan int, 1)

	base := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started <- struct{}{}
		<-release
		w.WriteHeader(http.StatusNoContent)
	})
	handler := backpressureMiddleware(base, 1, 20*time.Millisecond)

	go func() {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		done <- res.Code
	}()

	<-started

	req2 := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res2 := httptest.NewRecorder()
	handler.ServeHTTP(res2, req2)
	if res2.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for saturated backpressure gate, got %d", res2.Code)
	}

	var resp map[string]any
	if err := json.NewDecoder(bytes.NewReader(res2.Body.Bytes())).Decode(&resp); err != nil {
		t.Fatalf("decode overload response: %v", err)
	}
	if resp["error"] == "" {
		t.Fatalf("expected overload error message in response")
	}

	close(release)

	select {
	case code := <-done:
		if code != http.StatusNoContent {
			t.Fatalf("first request expected 204, got %d", code)
		}
	case <-time.After(1 * time.Second):
		t.Fatalf("timed out waiting for first request completion")
	}
}

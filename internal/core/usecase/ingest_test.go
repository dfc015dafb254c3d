package usecase

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/dmosk/agro-evidence-qa/internal/core/domain"
)

type ingestRepoFake struct {
	created *domain.Document
	err     error
}

func (f *ingestRepoFake) Create(_ context.Context, doc *domain.Document) error {
	if f.err != nil {
		return f.err
	}
	f.created = doc
	return nil
}

func (f *ingestRepoFake) GetByID(context.Context, string) (*domain.Document, error) {
	return nil, domain.ErrDocumentNotFound
}

func (f *ingestRepoFake) UpdateStatus(context.Context, string, domain.DocumentStatus, string) error {
	return nil
}

func (f *ingestRepoFake) SaveProcessingResult(context.Context, string, string, int) error {
	return nil
}

type storageFake struct {
	savedKey string
	err      error
}

func (f *storageFake) Save(_ context.Context, key string, _ io.Reader) error {
	if f.err != nil {
		return f.err
	}
	f.savedKey = key
	return nil
}

func (f *storageFake) Open(context.Context, string) (io.ReadCloser, error) {
	return nil, errors.New("not implemented")
}

type queueFake struct {
	published []string
	err       error
}

func (f *queueFake) PublishDocumentIngested(_ context.Context, documentID string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, documentID)
	return nil
}

func (f *queueFake) SubscribeDocumentIngested(context.Context, func(context.Context, string) error) error {
	return nil
}

func TestUploadStoresPersistsAndPublishes(t *testing.T) {
	repo := &ingestRepoFake{}
	storage := &storageFake{}
	queue := &queueFake{}
	uc := NewIngestDocumentUseCase(repo, storage, queue)

	doc, err := uc.Upload(context.Background(), "canola guide.md", "text/markdown", strings.NewReader("# Canola"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if doc.ID == "" {
		t.Fatalf("expected generated document id")
	}
	if doc.Status != domain.StatusUploaded {
		t.Fatalf("expected uploaded status, got %s", doc.Status)
	}
	if !strings.HasSuffix(storage.savedKey, "_canola_guide.md") {
		t.Fatalf("unexpected storage key: %q", storage.savedKey)
	}
	if repo.created == nil || repo.created.StoragePath != storage.savedKey {
		t.Fatalf("document metadata must reference the stored object")
	}
	if len(queue.published) != 1 || queue.published[0] != doc.ID {
		t.Fatalf("expected ingestion event for %s, got %v", doc.ID, queue.published)
	}
}

func TestUploadStorageFailureAborts(t *testing.T) {
	repo := &ingestRepoFake{}
	queue := &queueFake{}
	uc := NewIngestDocumentUseCase(repo, &storageFake{err: errors.New("disk full")}, queue)

	if _, err := uc.Upload(context.Background(), "a.md", "text/markdown", strings.NewReader("x")); err == nil {
		t.Fatalf("expected storage error")
	}
	if repo.created != nil {
		t.Fatalf("metadata must not be created after storage failure")
	}
	if len(queue.published) != 0 {
		t.Fatalf("no event should be published after storage failure")
	}
}

func TestUploadQueueFailureSurfaces(t *testing.T) {
	uc := NewIngestDocumentUseCase(&ingestRepoFake{}, &storageFake{}, &queueFake{err: errors.New("nats down")})

	if _, err := uc.Upload(context.Background(), "a.md", "text/markdown", strings.NewReader("x")); err == nil {
		t.Fatalf("expected queue error")
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"canola guide.md":    "canola_guide.md",
		"../../../etc/pass":  "pass",
		"weird*chars?.pdf":   "weird_chars_.pdf",
		"report-2024_v2.pdf": "report-2024_v2.pdf",
	}
	for in, want := range cases {
		if got := sanitizeFilename(in); got != want {
			t.Fatalf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}

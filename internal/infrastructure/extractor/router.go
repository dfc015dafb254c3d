package extractor

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/dmosk/agro-evidence-qa/internal/core/domain"
	"github.com/dmosk/agro-evidence-qa/internal/core/ports"
)

// Router dispatches extraction by mime type, falling back to the file
// extension when the upload did not declare one.
type Router struct {
	markdown ports.TextExtractor
	pdf      ports.TextExtractor
}

func NewRouter(markdown, pdf ports.TextExtractor) *Router {
	return &Router{markdown: markdown, pdf: pdf}
}

func (r *Router) Extract(ctx context.Context, doc *domain.Document) (domain.ExtractedText, error) {
	if r.isPDF(doc) {
		return r.pdf.Extract(ctx, doc)
	}
	return r.markdown.Extract(ctx, doc)
}

func (r *Router) isPDF(doc *domain.Document) bool {
	mime := strings.ToLower(doc.MimeType)
	if strings.Contains(mime, "pdf") {
		return true
	}
	return strings.EqualFold(filepath.Ext(doc.Filename), ".pdf")
}

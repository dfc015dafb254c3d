package markdown

import (
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/dmosk/agro-evidence-qa/internal/core/domain"
	"github.com/dmosk/agro-evidence-qa/internal/core/ports"
)

const frontMatterDelim = "---\n"

// Extractor reads markdown and plain-text sources. The returned text is
// the raw file content so sentence offsets index directly into the
// stored object; a YAML front matter block is parsed for the crop hint
// and then blanked in place to keep offsets stable without feeding
// metadata lines into the corpus.
type Extractor struct {
	storage ports.ObjectStorage
}

func NewExtractor(storage ports.ObjectStorage) *Extractor {
	return &Extractor{storage: storage}
}

func (e *Extractor) Extract(ctx context.Context, doc *domain.Document) (domain.ExtractedText, error) {
	reader, err := e.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return domain.ExtractedText{}, fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return domain.ExtractedText{}, fmt.Errorf("read source document: %w", err)
	}
	if !utf8.Valid(raw) {
		return domain.ExtractedText{}, fmt.Errorf("not valid utf-8 text: %s", doc.Filename)
	}

	text := string(raw)
	cropHint, text := stripFrontMatter(text)
	return domain.ExtractedText{Text: text, CropHint: cropHint}, nil
}

type frontMatter struct {
	CropType string `yaml:"crop_type"`
}

// stripFrontMatter blanks the leading front matter block (everything but
// its newlines) so the byte layout of the document is unchanged.
func stripFrontMatter(text string) (string, string) {
	if !strings.HasPrefix(text, frontMatterDelim) {
		return "", text
	}
	rest := text[len(frontMatterDelim):]
	end := strings.Index(rest, frontMatterDelim)
	if end < 0 {
		return "", text
	}

	block := rest[:end]
	var fm frontMatter
	if err := yaml.Unmarshal([]byte(block), &fm); err != nil {
		return "", text
	}

	blockEnd := len(frontMatterDelim) + end + len(frontMatterDelim)
	blanked := make([]byte, blockEnd)
	for i := 0; i < blockEnd; i++ {
		if text[i] == '\n' {
			blanked[i] = '\n'
		} else {
			blanked[i] = ' '
		}
	}
	return fm.CropType, string(blanked) + text[blockEnd:]
}

package ingestion

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/textsplitter"

	"github.com/collazomanuel/cetec-asistente-backend/core"
	"github.com/collazomanuel/cetec-asistente-backend/vectorstore"
)

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 150
)

var pdfMagic = []byte("%PDF-")

// isPDF reports whether the fetched object should go through the PDF
// loader. Detection is by the magic header rather than the file name:
// every real PDF starts with %PDF-, so a renamed PDF is still extracted
// and a mislabeled .pdf holding plain text falls through unharmed.
func isPDF(content []byte) bool {
	return bytes.HasPrefix(content, pdfMagic)
}

// extractText turns the raw object bytes into splittable text. PDFs are
// parsed page by page; everything else is treated as UTF-8 text.
func extractText(ctx context.Context, fileName string, content []byte) (string, error) {
	if !isPDF(content) {
		return string(content), nil
	}

	loader := documentloaders.NewPDF(bytes.NewReader(content), int64(len(content)))
	pages, err := loader.Load(ctx)
	if err != nil {
		return "", fmt.Errorf("extract pdf text from %s: %w", fileName, err)
	}

	var sb strings.Builder
	for _, page := range pages {
		if strings.TrimSpace(page.PageContent) == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(page.PageContent)
	}
	return sb.String(), nil
}

// splitDocument cuts document content into indexable chunks. Empty splits
// are dropped so whitespace-only documents produce no vectors.
func splitDocument(doc *core.Document, content string, chunkSize, chunkOverlap int) ([]vectorstore.Chunk, error) {
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(chunkOverlap),
	)

	parts, err := splitter.SplitText(content)
	if err != nil {
		return nil, err
	}

	chunks := make([]vectorstore.Chunk, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		chunks = append(chunks, vectorstore.Chunk{
			DocumentID: doc.ID,
			SubjectID:  doc.SubjectID,
			Title:      doc.FileName,
			Seq:        len(chunks),
			Text:       part,
		})
	}
	return chunks, nil
}

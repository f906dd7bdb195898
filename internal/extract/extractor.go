// backend/internal/extract/extractor.go
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Extractor turns an uploaded document into plain text. Extraction is a
// black box to the generation engine; it only ever sees the returned text.
type Extractor interface {
	Extract(path string) (string, error)
}

var ErrUnsupportedFormat = errors.New("unsupported document format")

// FileExtractor dispatches on file extension: PDF documents are parsed,
// anything ending in .txt is read as-is.
type FileExtractor struct{}

func NewFileExtractor() *FileExtractor {
	return &FileExtractor{}
}

func (e *FileExtractor) Extract(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return extractPDF(path)
	case ".txt":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("reading text file: %w", err)
		}
		return string(data), nil
	default:
		return "", ErrUnsupportedFormat
	}
}

func extractPDF(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	content, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting PDF text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(content); err != nil {
		return "", fmt.Errorf("reading PDF text: %w", err)
	}

	log.Printf("Extracted %d characters from PDF: %s", buf.Len(), path)
	return buf.String(), nil
}

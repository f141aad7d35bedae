package loader

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"

	"multirag/internal/domain"
)

// FileLoader picks a plain or paginated loader by file extension.
type FileLoader struct{}

// NewFileLoader creates a FileLoader.
func NewFileLoader() *FileLoader { return &FileLoader{} }

// Load reads path. ".txt" files are plain text; anything else must be a PDF
// and is split into pages. Failures are returned as IngestFailed.
func (l *FileLoader) Load(ctx context.Context, path string) (domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return domain.Document{}, domain.IngestFailed(err)
	}
	if _, err := os.Stat(path); err != nil {
		return domain.Document{}, domain.IngestFailed(err)
	}
	var (
		doc domain.Document
		err error
	)
	if strings.EqualFold(filepath.Ext(path), ".txt") {
		doc, err = loadText(path)
	} else {
		doc, err = loadPaginated(path)
	}
	if err != nil {
		return domain.Document{}, domain.IngestFailed(err)
	}
	doc.ID = hashString(doc.Content)
	doc.Path = path
	return doc, nil
}

func loadText(path string) (domain.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Document{}, err
	}
	if !utf8.Valid(data) {
		return domain.Document{}, errors.New("text file is not valid UTF-8")
	}
	return domain.Document{Format: domain.FormatPlain, Content: string(data)}, nil
}

func loadPaginated(path string) (domain.Document, error) {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return domain.Document{}, err
	}
	if !mt.Is("application/pdf") {
		return domain.Document{}, fmt.Errorf("unsupported format %s", mt.String())
	}

	f, r, err := pdf.Open(path)
	if err != nil {
		return domain.Document{}, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	doc := domain.Document{Format: domain.FormatPaginated}
	texts := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		var text string
		if !page.V.IsNull() {
			text, err = page.GetPlainText(nil)
			if err != nil {
				return domain.Document{}, fmt.Errorf("extract page %d: %w", i, err)
			}
		}
		doc.Pages = append(doc.Pages, domain.Page{Number: i, Text: text})
		texts = append(texts, text)
	}
	doc.Content = strings.Join(texts, domain.PageSeparator)
	return doc, nil
}

func hashString(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:8])
}

// Package pdftext reads the embedded text layer and page count of PDF documents.
package pdftext

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

// Layer is the text layer of a document.
type Layer struct {
	Text      string
	PageCount int
}

// HasText reports whether the layer carries more than minChars of visible text.
func (l Layer) HasText(minChars int) bool {
	return len([]rune(strings.TrimSpace(l.Text))) > minChars
}

// Read returns the text layer of a PDF. Non-PDF content types yield an empty
// single-page layer. Pages whose text cannot be decoded are skipped.
func Read(data []byte, contentType string) (Layer, error) {
	if contentType != "application/pdf" {
		return Layer{PageCount: 1}, nil
	}

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Layer{}, fmt.Errorf("pdftext.Read: opening pdf: %w", err)
	}

	layer := Layer{PageCount: r.NumPage()}
	var b strings.Builder
	for i := 1; i <= layer.PageCount; i++ {
		text, err := pageText(r, i)
		if err != nil {
			zap.L().Debug("pdftext.Read: skipping page", zap.Int("page", i), zap.Error(err))
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(text)
	}
	layer.Text = b.String()
	return layer, nil
}

func pageText(r *pdf.Reader, num int) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("page %d: %v", num, rec)
		}
	}()
	page := r.Page(num)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}

package parser

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"

	"guideline-rag/internal/models"
)

// ExtractPDF returns one Page per PDF page, numbered from 1. Pages whose text
// cannot be extracted come back empty; only a document that cannot be opened
// at all is an error.
func ExtractPDF(name string, r io.ReaderAt, size int64) ([]models.Page, error) {
	reader, err := openPDF(r, size)
	if err != nil {
		return nil, fmt.Errorf("parser: open %s: %w: %v", name, models.ErrDocumentUnreadable, err)
	}

	numPages := reader.NumPage()
	pages := make([]models.Page, 0, numPages)
	for i := 1; i <= numPages; i++ {
		text, err := pageText(reader, i)
		if err != nil {
			log.Warn().Err(err).Str("file", name).Int("page", i).Msg("Page text extraction failed, treating page as empty")
			text = ""
		}
		pages = append(pages, models.Page{Document: name, Number: i, Text: text})
	}
	return pages, nil
}

// ExtractPDFBytes is ExtractPDF over an in-memory file.
func ExtractPDFBytes(name string, data []byte) ([]models.Page, error) {
	return ExtractPDF(name, bytes.NewReader(data), int64(len(data)))
}

// the pdf package panics on some malformed inputs
func openPDF(r io.ReaderAt, size int64) (reader *pdf.Reader, err error) {
	defer func() {
		if p := recover(); p != nil {
			reader, err = nil, fmt.Errorf("malformed pdf: %v", p)
		}
	}()
	return pdf.NewReader(r, size)
}

func pageText(reader *pdf.Reader, num int) (text string, err error) {
	defer func() {
		if p := recover(); p != nil {
			text, err = "", fmt.Errorf("%w: %v", models.ErrPageExtractionFailed, p)
		}
	}()
	page := reader.Page(num)
	if page.V.IsNull() {
		return "", fmt.Errorf("%w: missing page object", models.ErrPageExtractionFailed)
	}
	text, err = page.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrPageExtractionFailed, err)
	}
	return text, nil
}

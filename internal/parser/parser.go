package parser

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"io"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/nguyenthenguyen/docx"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"

	"guideline-rag/internal/models"
)

type Format string

const (
	FormatPDF     Format = "pdf"
	FormatDOCX    Format = "docx"
	FormatXLSX    Format = "xlsx"
	FormatPPTX    Format = "pptx"
	FormatText    Format = "txt"
	FormatUnknown Format = "unknown"

	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	mimePPTX = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	mimeText = "text/plain"

	defaultPageNumber = 1
)

var (
	docxParagraphRe = regexp.MustCompile(`(?s)<w:p(?:\s[^>]*)?>(.*?)</w:p>`)
	docxTextRe      = regexp.MustCompile(`(?s)<w:t(?:\s[^>]*)?>(.*?)</w:t>`)
	pptxParagraphRe = regexp.MustCompile(`(?s)<a:p(?:\s[^>]*)?>(.*?)</a:p>`)
	pptxTextRe      = regexp.MustCompile(`(?s)<a:t(?:\s[^>]*)?>(.*?)</a:t>`)
	pptxSlideRe     = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)
)

// Extract turns an uploaded file into ordered pages. The format is sniffed
// from the content; the file extension is only a fallback.
func Extract(src models.Source) ([]models.Page, error) {
	switch DetectFormat(src) {
	case FormatPDF:
		return ExtractPDFBytes(src.Name, src.Data)
	case FormatDOCX:
		return parseDOCX(src)
	case FormatXLSX:
		return parseXLSX(src)
	case FormatPPTX:
		return parsePPTX(src)
	case FormatText:
		return parseText(src), nil
	default:
		return nil, fmt.Errorf("parser: %s: %w: unsupported file format", src.Name, models.ErrDocumentUnreadable)
	}
}

// DetectFormat reports which extractor handles src.
func DetectFormat(src models.Source) Format {
	if len(src.Data) > 0 {
		m := mimetype.Detect(src.Data)
		switch {
		case m.Is(mimePDF):
			return FormatPDF
		case m.Is(mimeDOCX):
			return FormatDOCX
		case m.Is(mimeXLSX):
			return FormatXLSX
		case m.Is(mimePPTX):
			return FormatPPTX
		case m.Is(mimeText):
			// a text sniff on a .pdf name is a broken upload, let the pdf reader reject it
			if ext := formatFromExt(src.Name); ext != FormatUnknown {
				return ext
			}
			return FormatText
		}
	}
	return formatFromExt(src.Name)
}

func formatFromExt(name string) Format {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(name), ".")) {
	case "pdf":
		return FormatPDF
	case "docx":
		return FormatDOCX
	case "xlsx":
		return FormatXLSX
	case "pptx":
		return FormatPPTX
	case "txt", "md":
		return FormatText
	default:
		return FormatUnknown
	}
}

// DOCX has no page numbers, everything lands on page 1
func parseDOCX(src models.Source) ([]models.Page, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(src.Data), int64(len(src.Data)))
	if err != nil {
		return nil, fmt.Errorf("parser: open %s: %w: %v", src.Name, models.ErrDocumentUnreadable, err)
	}
	defer r.Close()

	paragraphs := extractParagraphs(r.Editable().GetContent(), docxParagraphRe, docxTextRe)
	return []models.Page{{
		Document: src.Name,
		Number:   defaultPageNumber,
		Text:     strings.Join(paragraphs, "\n"),
	}}, nil
}

func extractParagraphs(xmlContent string, paragraphRe, textRe *regexp.Regexp) []string {
	var paragraphs []string
	for _, p := range paragraphRe.FindAllStringSubmatch(xmlContent, -1) {
		var text strings.Builder
		for _, t := range textRe.FindAllStringSubmatch(p[1], -1) {
			text.WriteString(t[1])
		}
		line := strings.TrimSpace(html.UnescapeString(text.String()))
		if line != "" {
			paragraphs = append(paragraphs, line)
		}
	}
	return paragraphs
}

// each sheet is one page, 1-based
func parseXLSX(src models.Source) ([]models.Page, error) {
	f, err := excelize.OpenReader(bytes.NewReader(src.Data))
	if err != nil {
		return nil, fmt.Errorf("parser: open %s: %w: %v", src.Name, models.ErrDocumentUnreadable, err)
	}
	defer f.Close()

	var pages []models.Page
	for i, sheetName := range f.GetSheetList() {
		page := models.Page{Document: src.Name, Number: i + 1}
		rows, err := f.GetRows(sheetName)
		if err != nil {
			pages = append(pages, page)
			continue
		}
		if !hasContent(rows) {
			pages = append(pages, page)
			continue
		}
		var text strings.Builder
		text.WriteString(fmt.Sprintf("## Sheet: %s\n", sheetName))
		for _, row := range rows {
			text.WriteString(strings.Join(row, "\t"))
			text.WriteString("\n")
		}
		page.Text = text.String()
		pages = append(pages, page)
	}
	return pages, nil
}

func hasContent(rows [][]string) bool {
	for _, row := range rows {
		for _, cell := range row {
			if strings.TrimSpace(cell) != "" {
				return true
			}
		}
	}
	return false
}

type slide struct {
	number int
	file   *zip.File
}

// one page per slide, in slide file order
func parsePPTX(src models.Source) ([]models.Page, error) {
	zr, err := zip.NewReader(bytes.NewReader(src.Data), int64(len(src.Data)))
	if err != nil {
		return nil, fmt.Errorf("parser: open %s: %w: %v", src.Name, models.ErrDocumentUnreadable, err)
	}

	var slides []slide
	for _, f := range zr.File {
		m := pptxSlideRe.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		slides = append(slides, slide{number: n, file: f})
	}
	if len(slides) == 0 {
		return nil, fmt.Errorf("parser: %s: %w: no slides", src.Name, models.ErrDocumentUnreadable)
	}
	slices.SortFunc(slides, func(a, b slide) int { return a.number - b.number })

	pages := make([]models.Page, 0, len(slides))
	for i, s := range slides {
		page := models.Page{Document: src.Name, Number: i + 1}
		data, err := readZipFile(s.file)
		if err != nil {
			log.Warn().Err(err).Str("file", src.Name).Int("page", page.Number).Msg("Slide text extraction failed, treating page as empty")
			pages = append(pages, page)
			continue
		}
		page.Text = strings.Join(extractParagraphs(string(data), pptxParagraphRe, pptxTextRe), "\n")
		pages = append(pages, page)
	}
	return pages, nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func parseText(src models.Source) []models.Page {
	return []models.Page{{Document: src.Name, Number: defaultPageNumber, Text: string(src.Data)}}
}

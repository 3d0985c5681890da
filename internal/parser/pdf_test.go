package parser

import (
	"bytes"
	"strings"
	"testing"

	"github.com/jung-kurt/gofpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guideline-rag/internal/models"
)

// buildPDF renders one page per entry; an empty entry is a blank page.
func buildPDF(t *testing.T, pages ...string) []byte {
	t.Helper()
	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetCompression(false)
	doc.SetFont("Helvetica", "", 12)
	for _, text := range pages {
		doc.AddPage()
		if text != "" {
			doc.Cell(40, 10, text)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, doc.Output(&buf))
	return buf.Bytes()
}

// breakPageText overwrites the text-showing operation for text with bare Tj
// operators of the same length, so the page content no longer interprets.
func breakPageText(t *testing.T, data []byte, text string) []byte {
	t.Helper()
	start := bytes.Index(data, []byte("("+text+")"))
	require.NotEqual(t, -1, start, "text %q not found in content stream", text)
	end := bytes.Index(data[start:], []byte("ET"))
	require.NotEqual(t, -1, end)
	end += start

	out := bytes.Clone(data)
	filler := bytes.Repeat([]byte("Tj "), (end-start)/3+1)[:end-start]
	copy(out[start:end], filler)
	out[end-1] = ' '
	return out
}

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func TestExtractPDF(t *testing.T) {
	t.Run("ShouldReturnOnePagePerPDFPage", func(t *testing.T) {
		data := buildPDF(t, "brand color is blue", "logo must have clear space")
		pages, err := ExtractPDFBytes("guide.pdf", data)
		require.NoError(t, err)
		require.Len(t, pages, 2)
		assert.Equal(t, "guide.pdf", pages[0].Document)
		assert.Equal(t, 1, pages[0].Number)
		assert.Equal(t, 2, pages[1].Number)
		assert.Contains(t, normalize(pages[0].Text), "brand color is blue")
		assert.Contains(t, normalize(pages[1].Text), "logo must have clear space")
	})

	t.Run("ShouldKeepBlankPagesAsEmptyText", func(t *testing.T) {
		data := buildPDF(t, "first", "", "third")
		pages, err := ExtractPDFBytes("blank.pdf", data)
		require.NoError(t, err)
		require.Len(t, pages, 3)
		assert.Empty(t, strings.TrimSpace(pages[1].Text))
		assert.Equal(t, 3, pages[2].Number)
	})

	t.Run("ShouldTreatBrokenPageAsEmpty", func(t *testing.T) {
		data := breakPageText(t, buildPDF(t, "brand color is blue", "logo must have clear space", "third page"), "logo must have clear space")
		pages, err := ExtractPDFBytes("broken-page.pdf", data)
		require.NoError(t, err)
		require.Len(t, pages, 3)
		assert.Equal(t, "brand color is blue", normalize(pages[0].Text))
		assert.Equal(t, "", pages[1].Text)
		assert.Equal(t, 2, pages[1].Number)
		assert.Equal(t, "third page", normalize(pages[2].Text))
	})

	t.Run("ShouldRejectNonPDFData", func(t *testing.T) {
		_, err := ExtractPDFBytes("notes.pdf", []byte("this is not a pdf at all"))
		require.ErrorIs(t, err, models.ErrDocumentUnreadable)
		assert.Contains(t, err.Error(), "notes.pdf")
	})

	t.Run("ShouldRejectTruncatedPDF", func(t *testing.T) {
		data := buildPDF(t, "brand color is blue")
		_, err := ExtractPDFBytes("cut.pdf", data[:len(data)/3])
		require.ErrorIs(t, err, models.ErrDocumentUnreadable)
	})

	t.Run("ShouldRejectEmptyInput", func(t *testing.T) {
		_, err := ExtractPDFBytes("empty.pdf", nil)
		require.ErrorIs(t, err, models.ErrDocumentUnreadable)
	})
}

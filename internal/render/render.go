// Package render formats answers for the terminal and for HTML clients.
package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"guideline-rag/internal/models"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// Text renders an answer for a terminal.
func Text(a models.Answer) string {
	var b strings.Builder
	b.WriteString(a.Text)
	fmt.Fprintf(&b, "\n\nLatency: %d ms • Retrieved chunks: %d\n", a.LatencyMillis(), len(a.Hits))
	if len(a.Hits) > 0 {
		b.WriteString("\nSources:\n")
		for _, c := range a.Citations() {
			fmt.Fprintf(&b, "- %s\n", c)
		}
	}
	return b.String()
}

// Markdown renders an answer with a sources list.
func Markdown(a models.Answer) string {
	var b strings.Builder
	b.WriteString("## Answer\n\n")
	b.WriteString(escapeLinks(a.Text))
	fmt.Fprintf(&b, "\n\n_Latency: %d ms • Retrieved chunks: %d_\n", a.LatencyMillis(), len(a.Hits))
	if len(a.Hits) > 0 {
		b.WriteString("\n### Sources\n\n")
		for _, h := range a.Hits {
			fmt.Fprintf(&b, "- **%s**, p.%d (similarity=%.3f)\n", h.Meta.SourceFilename, h.Meta.PageNumber, h.Score)
		}
	}
	return b.String()
}

// HTML renders Markdown(a) to an HTML fragment.
func HTML(a models.Answer) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(Markdown(a)), &buf); err != nil {
		return "", fmt.Errorf("render: markdown: %w", err)
	}
	return buf.String(), nil
}

// citations like [guide.pdf p.3] must not turn into link references
func escapeLinks(s string) string {
	return strings.NewReplacer("[", `\[`, "]", `\]`).Replace(s)
}

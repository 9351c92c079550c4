// Package alert delivers quality reports over email, webhooks or the log.
package alert

import (
	"fmt"
	"strings"

	"dqmon/domain/quality"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// Message is a report rendered for human readers
type Message struct {
	Subject  string
	Markdown string
	HTML     string
}

// Subject returns the alert subject for a record
func Subject(rec *quality.ReportRecord) string {
	return "Data Quality Alert - " + rec.GeneratedAt.Time().Format("2006-01-02 15:04:05")
}

// Compose renders a record as a markdown list of findings plus its HTML form
func Compose(rec *quality.ReportRecord) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "# Data quality issues in %s\n\n", rec.Source)
	fmt.Fprintf(&b, "Report `%s` generated at %s.\n\n", rec.ID, rec.GeneratedAt.Time().Format("2006-01-02 15:04:05 MST"))
	for _, f := range rec.Report.Findings {
		fmt.Fprintf(&b, "- **%s** %s", f.Kind, escape(f.Message))
		if len(f.RowIndices) > 0 {
			fmt.Fprintf(&b, " (rows %s)", formatRows(f.RowIndices, 20))
		}
		b.WriteString("\n")
	}
	md := b.String()

	p := parser.NewWithExtensions(parser.CommonExtensions)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	return Message{
		Subject:  Subject(rec),
		Markdown: md,
		HTML:     string(markdown.ToHTML([]byte(md), p, renderer)),
	}
}

// PlainBody returns the finding messages one per line, the plain-text alert body
func PlainBody(rec *quality.ReportRecord) string {
	return rec.Report.Summary()
}

func formatRows(rows []int, max int) string {
	parts := make([]string, 0, len(rows))
	for i, r := range rows {
		if i == max {
			parts = append(parts, fmt.Sprintf("… %d more", len(rows)-max))
			break
		}
		parts = append(parts, fmt.Sprint(r))
	}
	return strings.Join(parts, ", ")
}

var markdownEscaper = strings.NewReplacer("*", `\*`, "_", `\_`, "`", "\\`", "[", `\[`, "]", `\]`)

func escape(s string) string {
	return markdownEscaper.Replace(s)
}

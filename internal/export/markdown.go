package export

import (
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"

	"github.com/racmlabs/racm-int/internal/racm"
	"github.com/racmlabs/racm-int/internal/table"
)

var (
	mdH3   = regexp.MustCompile(`(?m)^### (.+)$`)
	mdH2   = regexp.MustCompile(`(?m)^## (.+)$`)
	mdH1   = regexp.MustCompile(`(?m)^# (.+)$`)
	mdBold = regexp.MustCompile(`\*\*(.+?)\*\*`)
	mdItem = regexp.MustCompile(`(?m)^- (.+)$`)
	mdList = regexp.MustCompile(`(<li>.*</li>\n?)+`)
)

// RenderMarkdown converts a narrative's minimal markdown subset to HTML:
// #/##/### headings, **bold**, "- " list items grouped into <ul>, and
// remaining newlines to <br>. The input is HTML-escaped first.
func RenderMarkdown(text string) string {
	s := html.EscapeString(text)
	s = mdH3.ReplaceAllString(s, "<h3>$1</h3>")
	s = mdH2.ReplaceAllString(s, "<h2>$1</h2>")
	s = mdH1.ReplaceAllString(s, "<h1>$1</h1>")
	s = mdBold.ReplaceAllString(s, "<strong>$1</strong>")
	s = mdItem.ReplaceAllString(s, "<li>$1</li>")
	s = mdList.ReplaceAllString(s, "<ul>${0}</ul>")
	return breakLines(s)
}

// breakLines turns each newline into <br> unless the next character opens a
// tag, so block elements keep their own line breaks.
func breakLines(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' && (i+1 >= len(s) || s[i+1] != '<') {
			b.WriteString("<br>")
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// WriteHTMLReport writes a standalone HTML page with the rendered narrative
// followed by a table of the filtered rows of the active tab.
func WriteHTMLReport(w io.Writer, eng *table.Engine) error {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	b.WriteString("<title>RACM Report</title>\n")
	b.WriteString("<style>\n")
	b.WriteString("body { font-family: sans-serif; margin: 2em; }\n")
	b.WriteString("table { border-collapse: collapse; }\n")
	b.WriteString("th, td { border: 1px solid #ccc; padding: 4px 8px; text-align: left; }\n")
	b.WriteString("th { background: #f0f0f0; }\n")
	b.WriteString("</style>\n</head>\n<body>\n")

	if rs := eng.Result(); rs != nil && rs.Narrative != "" {
		b.WriteString("<section class=\"narrative\">\n")
		b.WriteString(RenderMarkdown(rs.Narrative))
		b.WriteString("\n</section>\n")
	}

	b.WriteString("<table>\n<tr>")
	for _, label := range racm.Fields {
		b.WriteString("<th>")
		b.WriteString(html.EscapeString(label))
		b.WriteString("</th>")
	}
	b.WriteString("</tr>\n")
	for _, row := range eng.FilteredRows() {
		b.WriteString("<tr>")
		for f := range racm.Fields {
			b.WriteString("<td>")
			b.WriteString(html.EscapeString(eng.Value(row.Index, f)))
			b.WriteString("</td>")
		}
		b.WriteString("</tr>\n")
	}
	b.WriteString("</table>\n</body>\n</html>\n")

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("failed to write HTML report: %w", err)
	}
	return nil
}

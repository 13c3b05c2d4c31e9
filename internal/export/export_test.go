package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/racmlabs/racm-int/internal/models"
	"github.com/racmlabs/racm-int/internal/racm"
	"github.com/racmlabs/racm-int/internal/table"
)

func testEngine() *table.Engine {
	e := table.NewEngine()
	e.Load(&models.ResultSet{
		DetailedEntries: []racm.Entry{
			{"Risk ID": "R-1", "Process Area": "Procurement", "Risk Description": "has,comma"},
			{"risk_id": "R-2", "process_area": "Payroll"},
			{"Risk ID": "R-3", "Process Area": "Procurement"},
		},
		SummaryEntries: []racm.Entry{{"Risk ID": "S-1"}},
		Narrative:      "# Findings\n\n- **High** exposure\n- Weak controls\n\nReview quarterly.",
	})
	return e
}

// TestBaseName tests the deterministic artifact naming rules.
func TestBaseName(t *testing.T) {
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	cases := []struct {
		source string
		tab    table.Tab
		want   string
	}{
		{"Vendor SOP v2.1.pdf", table.TabDetailed, "RACM_Vendor_SOP_v2_1_2026-08-31_detailed"},
		{"/tmp/uploads/payroll (final).xlsx", table.TabSummary, "RACM_payroll_final_2026-08-31_summary"},
		{"___.pdf", table.TabDetailed, "RACM_document_2026-08-31_detailed"},
		{"", table.TabDetailed, "RACM_document_2026-08-31_detailed"},
	}
	for _, c := range cases {
		if got := BaseName(c.source, c.tab, now); got != c.want {
			t.Errorf("BaseName(%q, %q) = %q, expected %q", c.source, c.tab, got, c.want)
		}
	}
}

// TestWriteCSV exports header plus filtered rows with overlay values.
func TestWriteCSV(t *testing.T) {
	e := testEngine()
	if err := e.SetFilter(0, "procurement"); err != nil {
		t.Fatal(err)
	}
	if err := e.EditCell(2, 2, "R-3b"); err != nil {
		t.Fatal(err)
	}
	// Only one row on the page; the export must still carry both filtered rows.
	e.SetPageSize(1)

	var buf bytes.Buffer
	if err := WriteCSV(&buf, e); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, expected header + 2 rows", len(records))
	}
	if records[0][0] != "Process Area" || len(records[0]) != len(racm.Fields) {
		t.Errorf("bad header: %v", records[0])
	}
	if records[1][2] != "R-1" || records[1][3] != "has,comma" {
		t.Errorf("bad first row: %v", records[1])
	}
	if records[2][2] != "R-3b" {
		t.Errorf("overlay value missing from export: %v", records[2])
	}
}

// TestWriteJSON exports the full result set regardless of filters.
func TestWriteJSON(t *testing.T) {
	e := testEngine()
	var buf bytes.Buffer
	if err := WriteJSON(&buf, e.Result()); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `"detailed_entries"`) || !strings.Contains(out, `"summary_narrative"`) {
		t.Errorf("JSON export missing sections: %s", out)
	}
	if !strings.Contains(out, "R-2") {
		t.Errorf("JSON export missing entries: %s", out)
	}
}

// TestRenderMarkdown tests the narrative renderer's rules.
func TestRenderMarkdown(t *testing.T) {
	got := RenderMarkdown("# Findings\n\n- **High** exposure\n- Weak controls\n\nLine one\nLine two")

	for _, want := range []string{
		"<h1>Findings</h1>",
		"<ul><li><strong>High</strong> exposure</li>\n<li>Weak controls</li>\n</ul>",
		"Line one<br>Line two",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

// TestRenderMarkdownEscapesHTML keeps narrative content inert.
func TestRenderMarkdownEscapesHTML(t *testing.T) {
	got := RenderMarkdown("## A <script>alert(1)</script> & more")
	if strings.Contains(got, "<script>") {
		t.Errorf("HTML not escaped: %s", got)
	}
	if !strings.Contains(got, "<h2>A &lt;script&gt;alert(1)&lt;/script&gt; &amp; more</h2>") {
		t.Errorf("heading lost or mangled: %s", got)
	}
}

// TestWriteHTMLReport embeds the narrative and the filtered table.
func TestWriteHTMLReport(t *testing.T) {
	e := testEngine()
	if err := e.SetFilter(0, "payroll"); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := WriteHTMLReport(&buf, e); err != nil {
		t.Fatalf("WriteHTMLReport failed: %v", err)
	}
	out := buf.String()

	if !strings.Contains(out, "<h1>Findings</h1>") {
		t.Error("narrative missing from report")
	}
	if !strings.Contains(out, "<td>R-2</td>") {
		t.Error("filtered row missing from report")
	}
	if strings.Contains(out, "R-1") {
		t.Error("filtered-out row leaked into report")
	}
}

// TestParseDestination tests publish URI parsing.
func TestParseDestination(t *testing.T) {
	d, err := ParseDestination("s3://reports/racm/2026/")
	if err != nil {
		t.Fatalf("ParseDestination failed: %v", err)
	}
	if d.Scheme != "s3" || d.Container != "reports" || d.Prefix != "racm/2026" {
		t.Errorf("parsed = %+v", d)
	}
	if got := d.Key("/tmp/out/RACM_x_detailed.csv"); got != "racm/2026/RACM_x_detailed.csv" {
		t.Errorf("Key = %q", got)
	}

	d, err = ParseDestination("azblob://exports")
	if err != nil {
		t.Fatalf("ParseDestination failed: %v", err)
	}
	if d.Scheme != "azblob" || d.Container != "exports" || d.Prefix != "" {
		t.Errorf("parsed = %+v", d)
	}

	for _, bad := range []string{"", "reports/racm", "gs://bucket/x", "s3://"} {
		if _, err := ParseDestination(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

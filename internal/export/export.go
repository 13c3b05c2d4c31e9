// Package export renders the currently filtered view of a result set to CSV,
// JSON, XLSX, and HTML files, and optionally publishes the artifact to cloud
// object storage.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/racmlabs/racm-int/internal/models"
	"github.com/racmlabs/racm-int/internal/racm"
	"github.com/racmlabs/racm-int/internal/table"
)

var baseNameSanitizer = regexp.MustCompile(`[^a-zA-Z0-9_\-]+`)

// BaseName builds the deterministic artifact name for an export: the source
// file name with its extension stripped and unsafe characters collapsed to
// underscores, plus the export date and the active tab.
func BaseName(sourceFile string, tab table.Tab, now time.Time) string {
	name := filepath.Base(sourceFile)
	if name == "" || name == "." {
		name = "document"
	}
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = baseNameSanitizer.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_")
	if name == "" {
		name = "document"
	}
	return fmt.Sprintf("RACM_%s_%s_%s", name, now.Format("2006-01-02"), tab)
}

// WriteCSV writes the filtered rows of the engine's active tab as CSV, one
// column per field, with a header row of field labels.
func WriteCSV(w io.Writer, eng *table.Engine) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(racm.Fields); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	record := make([]string, len(racm.Fields))
	for _, row := range eng.FilteredRows() {
		for f := range racm.Fields {
			record[f] = eng.Value(row.Index, f)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return nil
}

// WriteJSON writes the full result set as indented JSON, pending edits
// excluded. The raw result is exported whole so nothing is lost to filters.
func WriteJSON(w io.Writer, rs *models.ResultSet) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rs); err != nil {
		return fmt.Errorf("failed to encode result JSON: %w", err)
	}
	return nil
}

// ToFile writes an export in the given format ("csv", "json", "xlsx" or
// "html") to path, creating parent directories as needed.
func ToFile(path, format string, eng *table.Engine) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}

	switch format {
	case "xlsx":
		return WriteXLSX(path, eng)
	case "csv", "json", "html":
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create export file: %w", err)
		}
		switch format {
		case "csv":
			err = WriteCSV(f, eng)
		case "json":
			err = WriteJSON(f, eng.Result())
		case "html":
			err = WriteHTMLReport(f, eng)
		}
		if err != nil {
			f.Close()
			return err
		}
		return f.Close()
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/racmlabs/racm-int/internal/export"
	racmhttp "github.com/racmlabs/racm-int/internal/http"
	"github.com/racmlabs/racm-int/internal/racm"
	"github.com/racmlabs/racm-int/internal/session"
	"github.com/racmlabs/racm-int/internal/table"
)

// defaultColumns is the compact column set for the list view. The full
// 25-field record is available with --wide or per entry with --row.
var defaultColumns = []string{
	"Risk ID", "Process Area", "Risk Description", "Control ID",
	"Control Activity", "Risk Rating", "Extraction Confidence",
}

// newResultsCmd creates the 'results' command group.
func newResultsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "results",
		Short: "Browse, edit, and export the loaded analysis results",
	}

	cmd.AddCommand(newResultsShowCmd())
	cmd.AddCommand(newResultsFilterCmd())
	cmd.AddCommand(newResultsSortCmd())
	cmd.AddCommand(newResultsPageCmd())
	cmd.AddCommand(newResultsTabCmd())
	cmd.AddCommand(newResultsEditCmd())
	cmd.AddCommand(newResultsSaveCmd())
	cmd.AddCommand(newResultsDiscardCmd())
	cmd.AddCommand(newResultsSummaryCmd())
	cmd.AddCommand(newResultsExportCmd())

	return cmd
}

// loadEngine restores the table engine from the persisted session.
func loadEngine() (*session.Manager, *session.Session, *table.Engine, error) {
	mgr, s, err := loadSession()
	if err != nil {
		return nil, nil, nil, err
	}
	if !s.HasResult() {
		return nil, nil, nil, fmt.Errorf("no results loaded; run 'racm-int analyze' or 'racm-int jobs watch' first")
	}

	eng := table.NewEngine()
	eng.Load(s.Result)
	eng.RestoreView(s.View)
	return mgr, s, eng, nil
}

// saveView persists the engine's view state back into the session.
func saveView(mgr *session.Manager, s *session.Session, eng *table.Engine) error {
	s.View = eng.ViewState()
	return mgr.Save(s)
}

// resolveField turns a user-supplied field name (label, key, or any
// spelling of either) into a field index.
func resolveField(name string) (int, error) {
	if i, ok := racm.FieldIndex(name); ok {
		return i, nil
	}
	return 0, fmt.Errorf("unknown field %q (see 'racm-int results show --row' output for field names)", name)
}

// newResultsShowCmd creates the 'results show' command.
func newResultsShowCmd() *cobra.Command {
	var page int
	var pageSize int
	var row int
	var wide bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the current page of the active tab",
		Long: `Print the filtered, sorted entries of the active tab one page at a time.
The # column is the entry's stable row number; use it with 'results edit'
and --row. Cells with unsaved edits are marked with *.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, s, eng, err := loadEngine()
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("page-size") {
				eng.SetPageSize(pageSize)
			}
			if cmd.Flags().Changed("page") {
				eng.SetPage(page - 1)
			}

			if cmd.Flags().Changed("row") {
				if err := printRow(eng, row); err != nil {
					return err
				}
				return nil
			}

			printTable(eng, wide)
			return saveView(mgr, s, eng)
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "Page to show (1-based)")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "Entries per page (0 = all)")
	cmd.Flags().IntVar(&row, "row", 0, "Print every field of one entry instead of the table")
	cmd.Flags().BoolVar(&wide, "wide", false, "Show all fields as columns")

	return cmd
}

// printRow prints all fields of one entry, overlay applied.
func printRow(eng *table.Engine, row int) error {
	if row < 0 || row >= eng.EntryCount() {
		return fmt.Errorf("row %d out of range (0-%d)", row, eng.EntryCount()-1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Entry %d (%s tab)\n", row, eng.Tab())
	for f, label := range racm.Fields {
		marker := ""
		if _, ok := eng.Overlay()[table.CellKey{Entry: row, Field: f}]; ok {
			marker = " *"
		}
		fmt.Fprintf(w, "%s:\t%s%s\n", label, eng.Value(row, f), marker)
	}
	return w.Flush()
}

// printTable renders the current page with tabwriter, truncating long cells
// to keep rows on one line for typical terminal widths.
func printTable(eng *table.Engine, wide bool) {
	columns := defaultColumns
	if wide {
		columns = racm.Fields
	}
	indices := make([]int, len(columns))
	for i, name := range columns {
		indices[i], _ = racm.FieldIndex(name)
	}

	maxCell := cellWidth(len(columns))

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "#\t%s\n", strings.Join(columns, "\t"))
	for _, r := range eng.Rows() {
		cells := make([]string, len(indices))
		for i, f := range indices {
			v := eng.Value(r.Index, f)
			if !wide {
				v = truncate(v, maxCell)
			}
			if _, ok := eng.Overlay()[table.CellKey{Entry: r.Index, Field: f}]; ok {
				v += "*"
			}
			cells[i] = v
		}
		fmt.Fprintf(w, "%d\t%s\n", r.Index, strings.Join(cells, "\t"))
	}
	w.Flush()

	fmt.Printf("\n[%s] %s", eng.Tab(), eng.CountLine())
	if eng.PageSize() > 0 {
		fmt.Printf(" (page %d of %d)", eng.Page()+1, eng.PageCount())
	}
	fmt.Println()
	if filters := eng.Filters(); len(filters) > 0 {
		parts := make([]string, 0, len(filters))
		for f, v := range filters {
			parts = append(parts, fmt.Sprintf("%s~%q", racm.Label(f), v))
		}
		fmt.Printf("Filters: %s\n", strings.Join(parts, ", "))
	}
	if field, asc := eng.Sort(); field >= 0 {
		dir := "descending"
		if asc {
			dir = "ascending"
		}
		fmt.Printf("Sort: %s (%s)\n", racm.Label(field), dir)
	}
	if n := len(eng.Overlay()); n > 0 {
		fmt.Printf("%d unsaved edit(s); run 'racm-int results save' to push them.\n", n)
	}
}

// cellWidth spreads the terminal width over the visible columns.
func cellWidth(columns int) int {
	width := 120
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		width = w
	}
	per := width/columns - 3
	if per < 8 {
		per = 8
	}
	return per
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

// newResultsFilterCmd creates the 'results filter' command.
func newResultsFilterCmd() *cobra.Command {
	var clear bool

	cmd := &cobra.Command{
		Use:   "filter [field] [substring]",
		Short: "Set or clear a per-field substring filter",
		Long: `Filter the active tab to entries whose field contains the substring,
case-insensitively. Filters on different fields combine with AND.
An empty substring, or --clear with a field, removes that filter;
--clear alone removes all of them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, s, eng, err := loadEngine()
			if err != nil {
				return err
			}

			switch {
			case clear && len(args) == 0:
				eng.ClearFilters()
				fmt.Println("All filters cleared")
			case len(args) >= 1:
				field, err := resolveField(args[0])
				if err != nil {
					return err
				}
				value := ""
				if len(args) >= 2 && !clear {
					value = args[1]
				}
				if err := eng.SetFilter(field, value); err != nil {
					return err
				}
				if value == "" {
					fmt.Printf("Filter on %s cleared\n", racm.Label(field))
				} else {
					fmt.Printf("Filter: %s contains %q (%d of %d entries match)\n",
						racm.Label(field), value, eng.FilteredCount(), eng.EntryCount())
				}
			default:
				return fmt.Errorf("usage: results filter <field> <substring> | results filter --clear [field]")
			}

			return saveView(mgr, s, eng)
		},
	}

	cmd.Flags().BoolVar(&clear, "clear", false, "Clear the filter(s) instead of setting one")

	return cmd
}

// newResultsSortCmd creates the 'results sort' command.
func newResultsSortCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sort <field>",
		Short: "Sort the active tab by a field",
		Long: `Sort by the field, ascending; sorting by the same field again flips the
direction. Risk Rating sorts by severity (Critical > High > Medium > Low),
every other field lexicographically.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, s, eng, err := loadEngine()
			if err != nil {
				return err
			}

			field, err := resolveField(args[0])
			if err != nil {
				return err
			}
			if err := eng.SetSort(field); err != nil {
				return err
			}

			_, asc := eng.Sort()
			dir := "descending"
			if asc {
				dir = "ascending"
			}
			fmt.Printf("Sorted by %s, %s\n", racm.Label(field), dir)
			return saveView(mgr, s, eng)
		},
	}
}

// newResultsPageCmd creates the 'results page' command.
func newResultsPageCmd() *cobra.Command {
	var pageSize int

	cmd := &cobra.Command{
		Use:   "page [n]",
		Short: "Go to a page or change the page size",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, s, eng, err := loadEngine()
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("size") {
				eng.SetPageSize(pageSize)
			}
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("page must be a number: %w", err)
				}
				eng.SetPage(n - 1)
			}

			fmt.Printf("[%s] %s (page %d of %d)\n", eng.Tab(), eng.CountLine(), eng.Page()+1, eng.PageCount())
			return saveView(mgr, s, eng)
		},
	}

	cmd.Flags().IntVar(&pageSize, "size", 0, "Entries per page (0 = all)")

	return cmd
}

// newResultsTabCmd creates the 'results tab' command.
func newResultsTabCmd() *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "tab <detailed|summary>",
		Short: "Switch between the detailed and summary tabs",
		Long: `Make the other entry sequence the active view. Switching clears filters,
sort, and pagination, and discards unsaved edits after confirmation.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, s, eng, err := loadEngine()
			if err != nil {
				return err
			}

			var tab table.Tab
			switch args[0] {
			case "detailed":
				tab = table.TabDetailed
			case "summary":
				tab = table.TabSummary
			default:
				return fmt.Errorf("tab must be 'detailed' or 'summary'")
			}

			ok := eng.SwitchTab(tab, func() bool {
				if confirm {
					return true
				}
				return confirmDiscardEdits(len(eng.Overlay()))
			})
			if !ok {
				fmt.Println("Tab switch cancelled")
				return nil
			}

			fmt.Printf("Active tab: %s (%d entries)\n", eng.Tab(), eng.EntryCount())
			return saveView(mgr, s, eng)
		},
	}

	cmd.Flags().BoolVarP(&confirm, "confirm", "y", false, "Skip the unsaved-edits prompt")

	return cmd
}

// newResultsEditCmd creates the 'results edit' command.
func newResultsEditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit <row> <field> <value>",
		Short: "Stage an edit to one cell",
		Long: `Stage a new value for one cell of the active tab. Edits stay local until
'results save' pushes them; editing a cell back to its stored value
un-stages it. Row numbers come from the # column of 'results show'.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, s, eng, err := loadEngine()
			if err != nil {
				return err
			}

			row, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("row must be a number: %w", err)
			}
			field, err := resolveField(args[1])
			if err != nil {
				return err
			}

			if err := eng.EditCell(row, field, args[2]); err != nil {
				return err
			}

			if n := len(eng.Overlay()); n > 0 {
				fmt.Printf("Staged. %d unsaved edit(s).\n", n)
			} else {
				fmt.Println("Value matches the saved one; edit un-staged.")
			}
			return saveView(mgr, s, eng)
		},
	}
}

// newResultsSaveCmd creates the 'results save' command.
func newResultsSaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "save",
		Short: "Push staged edits to the server",
		Long: `Apply the staged edits to the active tab and PUT both entry sequences
back to the server. On success the edits become part of the saved
results; on failure nothing changes and the edits stay staged.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, s, eng, err := loadEngine()
			if err != nil {
				return err
			}
			if s.Job == nil {
				return fmt.Errorf("session has results but no job; cannot save")
			}
			if !eng.HasPendingEdits() {
				fmt.Println("No unsaved edits.")
				return nil
			}

			client, _, err := getAPIClient()
			if err != nil {
				return err
			}

			n := len(eng.Overlay())
			if err := eng.Save(GetContext(), client, s.Job.ID); err != nil {
				return fmt.Errorf("save failed, edits kept: %w", err)
			}

			s.Result = eng.Result()
			if err := saveView(mgr, s, eng); err != nil {
				return err
			}
			fmt.Printf("Saved %d edit(s)\n", n)
			return nil
		},
	}
}

// newResultsDiscardCmd creates the 'results discard' command.
func newResultsDiscardCmd() *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "discard",
		Short: "Throw away staged edits",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, s, eng, err := loadEngine()
			if err != nil {
				return err
			}

			n := len(eng.Overlay())
			if n == 0 {
				fmt.Println("No unsaved edits.")
				return nil
			}
			if !confirm && !confirmDiscardEdits(n) {
				fmt.Println("Discard cancelled")
				return nil
			}

			eng.Discard()
			if err := saveView(mgr, s, eng); err != nil {
				return err
			}
			fmt.Printf("Discarded %d edit(s)\n", n)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&confirm, "confirm", "y", false, "Skip confirmation prompt")

	return cmd
}

// newResultsSummaryCmd creates the 'results summary' command.
func newResultsSummaryCmd() *cobra.Command {
	var asHTML bool

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the narrative summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, s, _, err := loadEngine()
			if err != nil {
				return err
			}
			if s.Result.Narrative == "" {
				fmt.Println("No narrative summary in the results.")
				return nil
			}

			if asHTML {
				fmt.Println(export.RenderMarkdown(s.Result.Narrative))
			} else {
				fmt.Println(s.Result.Narrative)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asHTML, "html", false, "Render the narrative's markdown to HTML")

	return cmd
}

// newResultsExportCmd creates the 'results export' command.
func newResultsExportCmd() *cobra.Command {
	var format string
	var output string
	var publish string
	var region string
	var accessKey string
	var secretKey string
	var azureURL string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the filtered entries of the active tab",
		Long: `Write the filtered entries of the active tab to a file. Formats: csv,
json (the full raw result), xlsx, html (report with the rendered
narrative). The file name is derived from the source document, today's
date, and the active tab unless --output overrides it.

With --publish the artifact is also uploaded to s3://bucket[/prefix]
or azblob://container[/prefix].`,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, s, eng, err := loadEngine()
			if err != nil {
				return err
			}

			switch format {
			case "csv", "json", "xlsx", "html":
			default:
				return fmt.Errorf("unsupported format %q (csv, json, xlsx, html)", format)
			}

			source := "document"
			if s.Job != nil {
				source = s.Job.SourceFile
			}

			path := output
			if path == "" {
				path = export.BaseName(source, eng.Tab(), time.Now()) + "." + format
			}

			if err := export.ToFile(path, format, eng); err != nil {
				return err
			}
			abs, _ := filepath.Abs(path)
			fmt.Printf("Exported %d entries to %s\n", eng.FilteredCount(), abs)

			if publish != "" {
				dest, err := export.ParseDestination(publish)
				if err != nil {
					return err
				}
				opts := export.PublishOptions{
					Region:          region,
					AccessKeyID:     accessKey,
					SecretAccessKey: secretKey,
					AzureServiceURL: azureURL,
				}
				// Route uploads through the configured proxy when possible.
				if cfg, cfgErr := loadConfig(); cfgErr == nil {
					if hc, hcErr := racmhttp.ConfigureHTTPClient(cfg); hcErr == nil {
						opts.HTTPClient = hc
					}
				}
				if err := export.Publish(GetContext(), GetLogger(), dest, path, opts); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "csv", "Export format: csv, json, xlsx, html")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file path (default derived from source and tab)")
	cmd.Flags().StringVar(&publish, "publish", "", "Also upload to s3://bucket[/prefix] or azblob://container[/prefix]")
	cmd.Flags().StringVar(&region, "region", "", "AWS region for --publish s3://")
	cmd.Flags().StringVar(&accessKey, "access-key", "", "AWS access key ID (default: environment/shared config)")
	cmd.Flags().StringVar(&secretKey, "secret-key", "", "AWS secret access key")
	cmd.Flags().StringVar(&azureURL, "azure-url", "", "Azure storage account URL with SAS token for --publish azblob://")

	return cmd
}

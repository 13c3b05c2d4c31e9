// Package table implements the result table engine: filtered, sorted,
// paginated views over the two entry sequences, plus the pending-edit
// overlay and its save/discard protocol.
package table

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/racmlabs/racm-int/internal/api"
	"github.com/racmlabs/racm-int/internal/models"
	"github.com/racmlabs/racm-int/internal/racm"
)

// Tab selects which entry sequence is active.
type Tab string

const (
	TabDetailed Tab = "detailed"
	TabSummary  Tab = "summary"
)

// CellKey addresses one cell by position in the unfiltered, unsorted active
// sequence. View transforms (filter/sort/page) never shift it.
type CellKey struct {
	Entry int
	Field int
}

// String renders the key as "entry:field", the session file form.
func (k CellKey) String() string {
	return strconv.Itoa(k.Entry) + ":" + strconv.Itoa(k.Field)
}

// ParseCellKey parses the "entry:field" form.
func ParseCellKey(s string) (CellKey, error) {
	entry, field, ok := strings.Cut(s, ":")
	if !ok {
		return CellKey{}, fmt.Errorf("invalid cell key %q", s)
	}
	e, err := strconv.Atoi(entry)
	if err != nil {
		return CellKey{}, fmt.Errorf("invalid cell key %q", s)
	}
	f, err := strconv.Atoi(field)
	if err != nil {
		return CellKey{}, fmt.Errorf("invalid cell key %q", s)
	}
	return CellKey{Entry: e, Field: f}, nil
}

// Row is one visible row: the entry plus its position in the source sequence.
type Row struct {
	Index int
	Entry racm.Entry
}

// Engine materializes one job's result set and derives views over it. All
// methods run on the single command path; no internal locking.
type Engine struct {
	result *models.ResultSet

	tab       Tab
	filters   map[int]string
	sortField int // -1 when unsorted
	sortAsc   bool
	pageSize  int // 0 means "all"
	page      int

	overlay map[CellKey]string
}

// NewEngine returns an engine with no result set loaded.
func NewEngine() *Engine {
	return &Engine{
		tab:       TabDetailed,
		filters:   make(map[int]string),
		sortField: -1,
		overlay:   make(map[CellKey]string),
	}
}

// Load replaces the result set wholesale and resets every piece of view
// state: tab back to detailed, filters and sort cleared, page 0, overlay
// cleared. Callers gate on HasPendingEdits before discarding an overlay.
func (e *Engine) Load(rs *models.ResultSet) {
	e.result = rs
	e.tab = TabDetailed
	e.filters = make(map[int]string)
	e.sortField = -1
	e.sortAsc = false
	e.page = 0
	e.overlay = make(map[CellKey]string)
}

// Result returns the canonical result set (last server-confirmed).
func (e *Engine) Result() *models.ResultSet {
	return e.result
}

// Tab returns the active tab.
func (e *Engine) Tab() Tab {
	return e.tab
}

// activeEntries returns the sequence the active tab selects.
func (e *Engine) activeEntries() []racm.Entry {
	if e.result == nil {
		return nil
	}
	if e.tab == TabSummary {
		return e.result.SummaryEntries
	}
	return e.result.DetailedEntries
}

// EntryCount returns the size of the active (unfiltered) sequence.
func (e *Engine) EntryCount() int {
	return len(e.activeEntries())
}

// Value returns the displayed value of a cell: the pending edit when one
// exists, the stored value otherwise.
func (e *Engine) Value(entry, field int) string {
	if v, ok := e.overlay[CellKey{Entry: entry, Field: field}]; ok {
		return v
	}
	entries := e.activeEntries()
	if entry < 0 || entry >= len(entries) {
		return ""
	}
	return entries[entry].Field(field)
}

// SetFilter sets the case-insensitive substring constraint for one column.
// An empty string removes the constraint. Any filter change resets to page 0.
func (e *Engine) SetFilter(field int, substring string) error {
	if field < 0 || field >= len(racm.Fields) {
		return fmt.Errorf("field index %d out of range", field)
	}
	if substring == "" {
		delete(e.filters, field)
	} else {
		e.filters[field] = substring
	}
	e.page = 0
	return nil
}

// Filters returns the active per-column constraints.
func (e *Engine) Filters() map[int]string {
	return e.filters
}

// ClearFilters removes all column constraints and resets to page 0.
func (e *Engine) ClearFilters() {
	e.filters = make(map[int]string)
	e.page = 0
}

// SetSort selects the sort column: a repeated column toggles direction, a
// new column sorts ascending. Resets to page 0.
func (e *Engine) SetSort(field int) error {
	if field < 0 || field >= len(racm.Fields) {
		return fmt.Errorf("field index %d out of range", field)
	}
	if e.sortField == field {
		e.sortAsc = !e.sortAsc
	} else {
		e.sortField = field
		e.sortAsc = true
	}
	e.page = 0
	return nil
}

// Sort returns the sort column (-1 when unsorted) and direction.
func (e *Engine) Sort() (field int, ascending bool) {
	return e.sortField, e.sortAsc
}

// SetPageSize sets rows per page; 0 means a single unbounded page.
func (e *Engine) SetPageSize(n int) {
	if n < 0 {
		n = 0
	}
	e.pageSize = n
	e.page = e.clampPage(e.page)
}

// PageSize returns the configured page size (0 = all).
func (e *Engine) PageSize() int {
	return e.pageSize
}

// SetPage requests a page index, clamping into [0, PageCount-1].
func (e *Engine) SetPage(i int) {
	e.page = e.clampPage(i)
}

// Page returns the current (clamped) page index.
func (e *Engine) Page() int {
	return e.clampPage(e.page)
}

func (e *Engine) clampPage(i int) int {
	if i < 0 {
		return 0
	}
	if max := e.PageCount() - 1; i > max {
		return max
	}
	return i
}

// matches reports whether the entry at source index i passes every column
// constraint, matching against displayed (overlay-aware) values.
func (e *Engine) matches(i int) bool {
	for field, substr := range e.filters {
		val := strings.ToLower(e.Value(i, field))
		if !strings.Contains(val, strings.ToLower(substr)) {
			return false
		}
	}
	return true
}

// visible returns the source indices of the active sequence after filtering
// and sorting, in display order.
func (e *Engine) visible() []int {
	entries := e.activeEntries()
	indices := make([]int, 0, len(entries))
	for i := range entries {
		if e.matches(i) {
			indices = append(indices, i)
		}
	}

	if e.sortField >= 0 {
		field := e.sortField
		sort.SliceStable(indices, func(a, b int) bool {
			va, vb := e.Value(indices[a], field), e.Value(indices[b], field)
			var less bool
			if field == racm.RiskRatingIndex {
				less = racm.SeverityRank(va) < racm.SeverityRank(vb)
			} else {
				less = strings.ToLower(va) < strings.ToLower(vb)
			}
			if !e.sortAsc {
				return !less && !equalFold(va, vb, field)
			}
			return less
		})
	}
	return indices
}

func equalFold(a, b string, field int) bool {
	if field == racm.RiskRatingIndex {
		return racm.SeverityRank(a) == racm.SeverityRank(b)
	}
	return strings.EqualFold(a, b)
}

// FilteredCount returns the number of entries passing the current filters.
func (e *Engine) FilteredCount() int {
	return len(e.visible())
}

// PageCount recomputes the total page count from the filtered and sorted
// set. Always at least 1, even when empty.
func (e *Engine) PageCount() int {
	n := e.FilteredCount()
	if e.pageSize <= 0 {
		return 1
	}
	pages := (n + e.pageSize - 1) / e.pageSize
	if pages < 1 {
		return 1
	}
	return pages
}

// Rows returns the current page of the filtered, sorted view.
func (e *Engine) Rows() []Row {
	indices := e.visible()

	start, end := 0, len(indices)
	if e.pageSize > 0 {
		page := e.clampPage(e.page)
		start = page * e.pageSize
		if start > len(indices) {
			start = len(indices)
		}
		end = start + e.pageSize
		if end > len(indices) {
			end = len(indices)
		}
	}

	entries := e.activeEntries()
	rows := make([]Row, 0, end-start)
	for _, i := range indices[start:end] {
		rows = append(rows, Row{Index: i, Entry: entries[i]})
	}
	return rows
}

// FilteredRows returns the whole filtered, sorted view, ignoring pagination.
// Exports consume this so every filtered entry lands in the artifact, not
// just the current page.
func (e *Engine) FilteredRows() []Row {
	indices := e.visible()
	entries := e.activeEntries()
	rows := make([]Row, 0, len(indices))
	for _, i := range indices {
		rows = append(rows, Row{Index: i, Entry: entries[i]})
	}
	return rows
}

// CountLine renders the "Showing a-b of N entries" line for the current
// page, counting only filtered entries.
func (e *Engine) CountLine() string {
	n := e.FilteredCount()
	if n == 0 {
		return "Showing 0 of 0 entries"
	}
	start, size := 0, n
	if e.pageSize > 0 {
		start = e.clampPage(e.page) * e.pageSize
		size = e.pageSize
	}
	end := start + size
	if end > n {
		end = n
	}
	return fmt.Sprintf("Showing %d-%d of %d entries", start+1, end, n)
}

// EditCell stages a value for one cell. The overlay holds the key iff the
// value differs from the stored value; editing back to the original removes
// it. entry addresses the unfiltered active sequence.
func (e *Engine) EditCell(entry, field int, value string) error {
	entries := e.activeEntries()
	if entry < 0 || entry >= len(entries) {
		return fmt.Errorf("entry index %d out of range (0-%d)", entry, len(entries)-1)
	}
	if field < 0 || field >= len(racm.Fields) {
		return fmt.Errorf("field index %d out of range", field)
	}

	key := CellKey{Entry: entry, Field: field}
	if entries[entry].Field(field) == value {
		delete(e.overlay, key)
	} else {
		e.overlay[key] = value
	}
	return nil
}

// Overlay returns the pending edits.
func (e *Engine) Overlay() map[CellKey]string {
	return e.overlay
}

// HasPendingEdits reports whether any edit is staged.
func (e *Engine) HasPendingEdits() bool {
	return len(e.overlay) > 0
}

// SwitchTab changes the active sequence. A non-empty overlay requires the
// confirm callback to return true; declining leaves overlay and tab
// unchanged. Switching clears the overlay and filters and resets sort and
// pagination. Returns whether the switch happened.
func (e *Engine) SwitchTab(tab Tab, confirm func() bool) bool {
	if tab != TabDetailed && tab != TabSummary {
		return false
	}
	if tab == e.tab {
		return true
	}
	if len(e.overlay) > 0 {
		if confirm == nil || !confirm() {
			return false
		}
	}
	e.tab = tab
	e.overlay = make(map[CellKey]string)
	e.filters = make(map[int]string)
	e.sortField = -1
	e.sortAsc = false
	e.page = 0
	return true
}

// Discard drops the overlay without any network call.
func (e *Engine) Discard() {
	e.overlay = make(map[CellKey]string)
}

// Save commits the overlay: copies of both sequences are built, pending
// edits applied to the active copy only, and both pushed in a single bulk
// update. Only on server success do the copies become canonical and the
// overlay clear; any failure leaves overlay and canonical state exactly as
// before the call.
func (e *Engine) Save(ctx context.Context, client *api.Client, jobID string) error {
	if e.result == nil {
		return fmt.Errorf("no result set loaded")
	}

	detailed := racm.CloneEntries(e.result.DetailedEntries)
	summary := racm.CloneEntries(e.result.SummaryEntries)

	active := detailed
	if e.tab == TabSummary {
		active = summary
	}
	for key, value := range e.overlay {
		if key.Entry < 0 || key.Entry >= len(active) {
			return fmt.Errorf("pending edit %s no longer addresses an entry", key)
		}
		active[key.Entry].SetField(key.Field, value)
	}

	update := &models.UpdateRequest{
		DetailedEntries: labelMaps(detailed),
		SummaryEntries:  labelMaps(summary),
	}
	if err := client.UpdateJobResult(ctx, jobID, update); err != nil {
		return err
	}

	e.result.DetailedEntries = detailed
	e.result.SummaryEntries = summary
	e.overlay = make(map[CellKey]string)
	return nil
}

func labelMaps(entries []racm.Entry) []map[string]string {
	out := make([]map[string]string, len(entries))
	for i, entry := range entries {
		out[i] = entry.LabelMap()
	}
	return out
}

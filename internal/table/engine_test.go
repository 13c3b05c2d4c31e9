package table

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/racmlabs/racm-int/internal/api"
	"github.com/racmlabs/racm-int/internal/config"
	"github.com/racmlabs/racm-int/internal/models"
	"github.com/racmlabs/racm-int/internal/racm"
)

// testResult builds a small result set: five detailed entries with mixed
// key forms, two summary entries.
func testResult() *models.ResultSet {
	return &models.ResultSet{
		DetailedEntries: []racm.Entry{
			{"Risk ID": "R-1", "Process Area": "Procurement", "Risk Rating": "Low"},
			{"risk_id": "R-2", "process_area": "Payroll", "risk_rating": "Critical"},
			{"Risk ID": "R-3", "Process Area": "Procurement", "Risk Rating": "Medium"},
			{"Risk ID": "R-4", "Process Area": "Treasury", "Risk Rating": "High"},
			{"Risk ID": "R-5", "Process Area": "Payroll", "Risk Rating": "bogus"},
		},
		SummaryEntries: []racm.Entry{
			{"Risk ID": "S-1", "Risk Rating": "High"},
			{"Risk ID": "S-2", "Risk Rating": "Low"},
		},
		Narrative: "# Summary",
	}
}

func loadedEngine() *Engine {
	e := NewEngine()
	e.Load(testResult())
	return e
}

func visibleIDs(e *Engine) []string {
	rows := e.Rows()
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = e.Value(r.Index, 2)
	}
	return ids
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// TestValueReadsBothKeyForms verifies display values resolve either storage
// spelling.
func TestValueReadsBothKeyForms(t *testing.T) {
	e := loadedEngine()
	if got := e.Value(0, 2); got != "R-1" {
		t.Errorf("label-keyed value = %q", got)
	}
	if got := e.Value(1, 2); got != "R-2" {
		t.Errorf("key-keyed value = %q", got)
	}
	if got := e.Value(99, 2); got != "" {
		t.Errorf("out-of-range entry should read empty, got %q", got)
	}
}

// TestOverlayIffDiffers checks the overlay holds a cell exactly when the
// staged value differs from the stored one.
func TestOverlayIffDiffers(t *testing.T) {
	e := loadedEngine()

	if err := e.EditCell(2, racm.RiskRatingIndex, "Critical"); err != nil {
		t.Fatalf("EditCell failed: %v", err)
	}
	key := CellKey{Entry: 2, Field: racm.RiskRatingIndex}
	if v, ok := e.Overlay()[key]; !ok || v != "Critical" {
		t.Fatalf("overlay missing staged edit: %v", e.Overlay())
	}
	if key.String() != "2:20" {
		t.Errorf("cell key form = %q, expected '2:20'", key.String())
	}
	if got := e.Value(2, racm.RiskRatingIndex); got != "Critical" {
		t.Errorf("displayed value = %q, expected staged 'Critical'", got)
	}

	// Editing back to the stored value un-stages it.
	if err := e.EditCell(2, racm.RiskRatingIndex, "Medium"); err != nil {
		t.Fatalf("EditCell failed: %v", err)
	}
	if e.HasPendingEdits() {
		t.Errorf("overlay should be empty after reverting, got %v", e.Overlay())
	}
	if got := e.Value(2, racm.RiskRatingIndex); got != "Medium" {
		t.Errorf("displayed value = %q after revert", got)
	}

	if err := e.EditCell(99, 0, "x"); err == nil {
		t.Error("out-of-range entry should be rejected")
	}
}

// TestFilterCaseInsensitiveSubstring tests per-column filtering over
// displayed values.
func TestFilterCaseInsensitiveSubstring(t *testing.T) {
	e := loadedEngine()

	if err := e.SetFilter(0, "proc"); err != nil {
		t.Fatalf("SetFilter failed: %v", err)
	}
	if got := visibleIDs(e); !equalIDs(got, []string{"R-1", "R-3"}) {
		t.Errorf("filtered ids = %v", got)
	}
	if e.FilteredCount() != 2 {
		t.Errorf("FilteredCount = %d", e.FilteredCount())
	}

	// Filters see overlay values: stage a Process Area edit and re-filter.
	if err := e.EditCell(4, 0, "Procurement Ops"); err != nil {
		t.Fatal(err)
	}
	if got := visibleIDs(e); !equalIDs(got, []string{"R-1", "R-3", "R-5"}) {
		t.Errorf("overlay-aware filter ids = %v", got)
	}

	// AND across columns.
	if err := e.SetFilter(2, "r-3"); err != nil {
		t.Fatal(err)
	}
	if got := visibleIDs(e); !equalIDs(got, []string{"R-3"}) {
		t.Errorf("combined filter ids = %v", got)
	}

	e.ClearFilters()
	if e.FilteredCount() != 5 {
		t.Errorf("FilteredCount after clear = %d", e.FilteredCount())
	}
}

// TestSortSeverityRank tests Risk Rating ordering by severity, unknown
// values last in descending order.
func TestSortSeverityRank(t *testing.T) {
	e := loadedEngine()

	if err := e.SetSort(racm.RiskRatingIndex); err != nil {
		t.Fatalf("SetSort failed: %v", err)
	}
	// Ascending: bogus(0), Low, Medium, High, Critical.
	if got := visibleIDs(e); !equalIDs(got, []string{"R-5", "R-1", "R-3", "R-4", "R-2"}) {
		t.Errorf("ascending severity ids = %v", got)
	}

	// Same field again flips to descending.
	if err := e.SetSort(racm.RiskRatingIndex); err != nil {
		t.Fatal(err)
	}
	if got := visibleIDs(e); !equalIDs(got, []string{"R-2", "R-4", "R-3", "R-1", "R-5"}) {
		t.Errorf("descending severity ids = %v", got)
	}
}

// TestSortLexicographicStable tests default ordering and stability for ties.
func TestSortLexicographicStable(t *testing.T) {
	e := loadedEngine()

	if err := e.SetSort(0); err != nil {
		t.Fatalf("SetSort failed: %v", err)
	}
	// Payroll(R-2), Payroll(R-5), Procurement(R-1), Procurement(R-3), Treasury(R-4);
	// ties keep source order.
	if got := visibleIDs(e); !equalIDs(got, []string{"R-2", "R-5", "R-1", "R-3", "R-4"}) {
		t.Errorf("ascending ids = %v", got)
	}

	if field, asc := e.Sort(); field != 0 || !asc {
		t.Errorf("Sort() = %d,%v", field, asc)
	}
}

// TestFilterThenSortComposition applies both transforms together.
func TestFilterThenSortComposition(t *testing.T) {
	e := loadedEngine()
	if err := e.SetFilter(0, "p"); err != nil { // Procurement + Payroll
		t.Fatal(err)
	}
	if err := e.SetSort(racm.RiskRatingIndex); err != nil {
		t.Fatal(err)
	}
	if got := visibleIDs(e); !equalIDs(got, []string{"R-5", "R-1", "R-3", "R-2"}) {
		t.Errorf("filtered+sorted ids = %v", got)
	}
}

// TestPagination tests page size, clamping, and the count line.
func TestPagination(t *testing.T) {
	e := loadedEngine()

	e.SetPageSize(2)
	if e.PageCount() != 3 {
		t.Errorf("PageCount = %d, expected 3", e.PageCount())
	}
	if got := visibleIDs(e); !equalIDs(got, []string{"R-1", "R-2"}) {
		t.Errorf("page 0 ids = %v", got)
	}
	if got := e.CountLine(); got != "Showing 1-2 of 5 entries" {
		t.Errorf("CountLine = %q", got)
	}

	e.SetPage(2)
	if got := visibleIDs(e); !equalIDs(got, []string{"R-5"}) {
		t.Errorf("last page ids = %v", got)
	}
	if got := e.CountLine(); got != "Showing 5-5 of 5 entries" {
		t.Errorf("CountLine = %q", got)
	}

	// Requests past the end clamp to the last page.
	e.SetPage(99)
	if e.Page() != 2 {
		t.Errorf("Page = %d after overshoot", e.Page())
	}
	e.SetPage(-5)
	if e.Page() != 0 {
		t.Errorf("Page = %d after undershoot", e.Page())
	}

	// Page size 0 means everything on one page.
	e.SetPageSize(0)
	if e.PageCount() != 1 || len(e.Rows()) != 5 {
		t.Errorf("unbounded page: count=%d rows=%d", e.PageCount(), len(e.Rows()))
	}
	if got := e.CountLine(); got != "Showing 1-5 of 5 entries" {
		t.Errorf("CountLine = %q", got)
	}

	// Narrowing filters re-clamps the page.
	e.SetPageSize(2)
	e.SetPage(2)
	if err := e.SetFilter(0, "treasury"); err != nil {
		t.Fatal(err)
	}
	if e.Page() != 0 {
		t.Errorf("Page = %d after filter narrowed the set", e.Page())
	}
}

// TestCountLineEmpty tests the empty-set count line.
func TestCountLineEmpty(t *testing.T) {
	e := loadedEngine()
	if err := e.SetFilter(0, "no such area"); err != nil {
		t.Fatal(err)
	}
	if got := e.CountLine(); got != "Showing 0 of 0 entries" {
		t.Errorf("CountLine = %q", got)
	}
}

// TestSwitchTab tests the confirm gate and the state reset on switching.
func TestSwitchTab(t *testing.T) {
	e := loadedEngine()

	// Same tab: trivially true, nothing touched.
	if !e.SwitchTab(TabDetailed, nil) {
		t.Fatal("same-tab switch should succeed")
	}

	if err := e.EditCell(0, 2, "edited"); err != nil {
		t.Fatal(err)
	}
	if err := e.SetFilter(0, "proc"); err != nil {
		t.Fatal(err)
	}

	// Declined confirm: nothing changes.
	if e.SwitchTab(TabSummary, func() bool { return false }) {
		t.Fatal("declined switch should not happen")
	}
	if e.Tab() != TabDetailed || !e.HasPendingEdits() {
		t.Error("declined switch must leave tab and overlay untouched")
	}

	// Accepted confirm: overlay, filters, sort, page all reset.
	if !e.SwitchTab(TabSummary, func() bool { return true }) {
		t.Fatal("accepted switch should happen")
	}
	if e.Tab() != TabSummary {
		t.Errorf("tab = %q", e.Tab())
	}
	if e.HasPendingEdits() || len(e.Filters()) != 0 {
		t.Error("switch must clear overlay and filters")
	}
	if field, _ := e.Sort(); field != -1 {
		t.Errorf("sort field = %d after switch", field)
	}
	if e.EntryCount() != 2 {
		t.Errorf("summary entry count = %d", e.EntryCount())
	}

	// No pending edits: no confirm needed.
	if !e.SwitchTab(TabDetailed, nil) {
		t.Error("clean switch should not require confirmation")
	}
}

func saveClient(t *testing.T, srv *httptest.Server) *api.Client {
	t.Helper()
	client, err := api.NewClient(&config.Config{APIBaseURL: srv.URL, APIToken: "t"})
	if err != nil {
		t.Fatal(err)
	}
	return client
}

// TestSaveSuccess applies the overlay to the active copy only, pushes both
// sequences, and folds the result in.
func TestSaveSuccess(t *testing.T) {
	var got models.UpdateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "PUT" || r.URL.Path != "/api/jobs/job-1/result" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("bad body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	e := loadedEngine()
	if !e.SwitchTab(TabSummary, nil) {
		t.Fatal("switch failed")
	}
	if err := e.EditCell(1, racm.RiskRatingIndex, "Critical"); err != nil {
		t.Fatal(err)
	}

	if err := e.Save(context.Background(), saveClient(t, srv), "job-1"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Wire shape: both sequences, label-keyed, full schema width.
	if len(got.DetailedEntries) != 5 || len(got.SummaryEntries) != 2 {
		t.Fatalf("pushed %d detailed, %d summary", len(got.DetailedEntries), len(got.SummaryEntries))
	}
	if got.SummaryEntries[1]["Risk Rating"] != "Critical" {
		t.Errorf("edit not applied on the wire: %v", got.SummaryEntries[1])
	}
	if got.DetailedEntries[2]["Risk Rating"] != "Medium" {
		t.Errorf("inactive sequence changed on the wire: %v", got.DetailedEntries[2])
	}
	if len(got.SummaryEntries[0]) != len(racm.Fields) {
		t.Errorf("wire entries carry %d fields, expected %d", len(got.SummaryEntries[0]), len(racm.Fields))
	}

	// Edits folded into canonical state, overlay gone.
	if e.HasPendingEdits() {
		t.Error("overlay should clear after save")
	}
	if got := e.Result().SummaryEntries[1].Field(racm.RiskRatingIndex); got != "Critical" {
		t.Errorf("canonical value = %q after save", got)
	}
	if got := e.Result().DetailedEntries[2].Field(racm.RiskRatingIndex); got != "Medium" {
		t.Errorf("inactive canonical value changed: %q", got)
	}
}

// TestSaveFailureAtomic leaves canonical state and overlay untouched when
// the server rejects the update.
func TestSaveFailureAtomic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := loadedEngine()
	if err := e.EditCell(0, racm.RiskRatingIndex, "Critical"); err != nil {
		t.Fatal(err)
	}

	if err := e.Save(context.Background(), saveClient(t, srv), "job-1"); err == nil {
		t.Fatal("expected save to fail")
	}

	if !e.HasPendingEdits() {
		t.Error("overlay must survive a failed save")
	}
	if got := e.Result().DetailedEntries[0].Field(racm.RiskRatingIndex); got != "Low" {
		t.Errorf("canonical value = %q after failed save, expected 'Low'", got)
	}
	if got := e.Value(0, racm.RiskRatingIndex); got != "Critical" {
		t.Errorf("displayed value = %q after failed save", got)
	}
}

// TestViewStateRoundTrip captures and restores the view including overlay
// keys, dropping garbage keys.
func TestViewStateRoundTrip(t *testing.T) {
	e := loadedEngine()
	if err := e.SetFilter(0, "p"); err != nil {
		t.Fatal(err)
	}
	if err := e.SetSort(racm.RiskRatingIndex); err != nil {
		t.Fatal(err)
	}
	e.SetPageSize(2)
	e.SetPage(1)
	if err := e.EditCell(2, racm.RiskRatingIndex, "Critical"); err != nil {
		t.Fatal(err)
	}

	vs := e.ViewState()
	if vs.Overlay["2:20"] != "Critical" {
		t.Fatalf("overlay serialization wrong: %v", vs.Overlay)
	}

	// Survives the session file format.
	data, err := json.Marshal(vs)
	if err != nil {
		t.Fatal(err)
	}
	var decoded ViewState
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	decoded.Overlay["garbage"] = "x"

	fresh := NewEngine()
	fresh.Load(testResult())
	fresh.RestoreView(decoded)

	if fresh.Tab() != TabDetailed {
		t.Errorf("tab = %q", fresh.Tab())
	}
	if field, asc := fresh.Sort(); field != racm.RiskRatingIndex || !asc {
		t.Errorf("sort = %d,%v", field, asc)
	}
	if fresh.PageSize() != 2 || fresh.Page() != 1 {
		t.Errorf("pagination = size %d page %d", fresh.PageSize(), fresh.Page())
	}
	if got := fresh.Value(2, racm.RiskRatingIndex); got != "Critical" {
		t.Errorf("restored overlay value = %q", got)
	}
	if len(fresh.Overlay()) != 1 {
		t.Errorf("garbage overlay key not dropped: %v", fresh.Overlay())
	}
	if got := visibleIDs(fresh); !equalIDs(got, visibleIDs(e)) {
		t.Errorf("restored view shows %v, original %v", got, visibleIDs(e))
	}
}

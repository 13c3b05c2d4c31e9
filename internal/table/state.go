package table

import (
	"github.com/racmlabs/racm-int/internal/racm"
)

// ViewState is the serializable snapshot of the engine's view and overlay,
// persisted in the session file between invocations. Overlay keys use the
// "entryIndex:fieldIndex" form.
type ViewState struct {
	Tab       Tab               `json:"tab"`
	Filters   map[int]string    `json:"filters,omitempty"`
	SortField int               `json:"sort_field"`
	SortAsc   bool              `json:"sort_asc"`
	PageSize  int               `json:"page_size"`
	Page      int               `json:"page"`
	Overlay   map[string]string `json:"overlay,omitempty"`
}

// ViewState captures the current view and overlay.
func (e *Engine) ViewState() ViewState {
	vs := ViewState{
		Tab:       e.tab,
		SortField: e.sortField,
		SortAsc:   e.sortAsc,
		PageSize:  e.pageSize,
		Page:      e.page,
	}
	if len(e.filters) > 0 {
		vs.Filters = make(map[int]string, len(e.filters))
		for k, v := range e.filters {
			vs.Filters[k] = v
		}
	}
	if len(e.overlay) > 0 {
		vs.Overlay = make(map[string]string, len(e.overlay))
		for k, v := range e.overlay {
			vs.Overlay[k.String()] = v
		}
	}
	return vs
}

// RestoreView reinstates a captured view over the engine's loaded result
// set. Unparseable overlay keys are dropped rather than failing the whole
// session load.
func (e *Engine) RestoreView(vs ViewState) {
	if vs.Tab == TabSummary {
		e.tab = TabSummary
	} else {
		e.tab = TabDetailed
	}
	e.sortField = vs.SortField
	if e.sortField >= len(racm.Fields) {
		e.sortField = -1
	}
	e.sortAsc = vs.SortAsc
	e.pageSize = vs.PageSize
	e.page = vs.Page

	e.filters = make(map[int]string)
	for k, v := range vs.Filters {
		if k >= 0 && k < len(racm.Fields) && v != "" {
			e.filters[k] = v
		}
	}

	e.overlay = make(map[CellKey]string)
	for k, v := range vs.Overlay {
		key, err := ParseCellKey(k)
		if err != nil {
			continue
		}
		e.overlay[key] = v
	}
}

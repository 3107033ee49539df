package core

// reconciler.go merges surface messages into the canonical row store.
//
// The Reconciler is a plain state machine: no goroutines, no timers. The
// session loop feeds it inbound messages, host commands and lookup
// completions, and asks it when to emit. Every method must be called from
// that one loop.

import (
	"log/slog"
	"time"

	"github.com/JonMunkholm/gridhost/internal/paste"
	"github.com/JonMunkholm/gridhost/internal/protocol"
	"github.com/JonMunkholm/gridhost/internal/resolve"
)

// Defaults for Options fields left at zero.
const (
	DefaultSeedRows          = 20
	DefaultSuppressionWindow = 3 * time.Second
	DefaultAdvisoryTTL       = 6 * time.Second
)

// Options tune a Reconciler.
type Options struct {
	Tenant            string
	SeedRows          int
	BulkThreshold     int
	SuppressionWindow time.Duration
	AdvisoryTTL       time.Duration
	Now               func() time.Time
	Logger            *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.SeedRows < 0 {
		o.SeedRows = 0
	}
	if o.BulkThreshold <= 0 {
		o.BulkThreshold = resolve.DefaultBulkThreshold
	}
	if o.SuppressionWindow <= 0 {
		o.SuppressionWindow = DefaultSuppressionWindow
	}
	if o.AdvisoryTTL <= 0 {
		o.AdvisoryTTL = DefaultAdvisoryTTL
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Reconciler owns one session's rows and decides what the surface sees.
type Reconciler struct {
	mode    ModeDefinition
	binding resolve.Binding
	opts    Options
	logger  *slog.Logger

	store      *RowStore
	selections map[string]map[int64]bool

	filterActive  bool
	visible       map[int64]bool
	filteredCount int

	// emission
	dirty         bool
	suppressOnce  bool
	version       uint64
	suppressUntil time.Time
	flushNow      bool

	// lookups
	jobs         []Job
	nextJob      uint64
	inflight     int
	bulkInflight int
	tenantAbbrev string

	// advisories
	pasteSeq       uint64
	openPaste      pasteSide
	advisories     []Advisory
	advisorySeq    int64
	fresh          []Advisory
	advisedOnPaste map[AdvisoryKind]uint64

	// host → surface messages that bypass the snapshot (clear-table, ...)
	outbox []protocol.Message
}

// NewReconciler seeds a reconciler for mode with opts.SeedRows blank rows.
func NewReconciler(mode ModeDefinition, opts Options) *Reconciler {
	if opts.SeedRows == 0 {
		opts.SeedRows = DefaultSeedRows
	}
	opts = opts.withDefaults()

	r := &Reconciler{
		mode:           mode,
		binding:        mode.Binding(),
		opts:           opts,
		logger:         opts.Logger,
		store:          NewRowStore(),
		selections:     make(map[string]map[int64]bool, len(mode.Selection)),
		advisedOnPaste: make(map[AdvisoryKind]uint64),
	}
	for _, key := range mode.Selection {
		r.selections[key] = make(map[int64]bool)
	}
	r.store.Reset(opts.SeedRows)
	r.touch(false)
	return r
}

// Mode returns the mode definition.
func (r *Reconciler) Mode() ModeDefinition { return r.mode }

// Store exposes the row store for inspection.
func (r *Reconciler) Store() *RowStore { return r.store }

// TenantAbbreviation returns the abbreviation from the last lookup.
func (r *Reconciler) TenantAbbreviation() string { return r.tenantAbbrev }

// Version increases every time a change schedules an emission. The session
// restarts its debounce timer whenever it moves.
func (r *Reconciler) Version() uint64 { return r.version }

// Dirty reports whether an emission is pending.
func (r *Reconciler) Dirty() bool { return r.dirty }

// touch schedules an emission. An echo change only carries values the
// surface already shows; if nothing else is pending, the next emission is
// skipped once. Any real change cancels the skip.
func (r *Reconciler) touch(echo bool) {
	if echo {
		if !r.dirty {
			r.suppressOnce = true
		}
	} else {
		r.suppressOnce = false
	}
	r.dirty = true
	r.version++
}

// TakeOutbox returns and clears the queued direct messages.
func (r *Reconciler) TakeOutbox() []protocol.Message {
	out := r.outbox
	r.outbox = nil
	return out
}

// TakeFlushRequest reports whether the loop must emit right away instead of
// waiting for the debounce timer, and clears the request.
func (r *Reconciler) TakeFlushRequest() bool {
	f := r.flushNow
	r.flushNow = false
	return f
}

// Selected reports whether row id is in the primary selection.
func (r *Reconciler) Selected(id int64) bool {
	return r.selections[r.mode.PrimarySelection()][id]
}

func (r *Reconciler) isVisible(id int64) bool {
	if !r.filterActive || r.visible == nil {
		return true
	}
	return r.visible[id]
}

// visibleRows returns the rows passing the active filter, in grid order.
func (r *Reconciler) visibleRows() []*Row {
	if !r.filterActive || r.visible == nil {
		return r.store.Rows()
	}
	rows := make([]*Row, 0, len(r.visible))
	for _, row := range r.store.Rows() {
		if r.visible[row.ID] {
			rows = append(rows, row)
		}
	}
	return rows
}

func (r *Reconciler) pruneSelections() {
	for _, set := range r.selections {
		for id := range set {
			if _, ok := r.store.Get(id); !ok {
				delete(set, id)
			}
		}
	}
	for id := range r.visible {
		if _, ok := r.store.Get(id); !ok {
			delete(r.visible, id)
		}
	}
}

// mergeResult collects what an inbound message did beyond carrying values
// the surface already holds.
type mergeResult struct {
	structural    bool
	errorsChanged bool
	codes         map[int64]string
	pastedCells   []string
}

func (m *mergeResult) echo() bool {
	return !m.structural && !m.errorsChanged && len(m.codes) == 0
}

// setField writes one surface value into row and records side effects.
// Read-only columns belong to the host and are ignored.
func (r *Reconciler) setField(row *Row, col protocol.Column, v any, src Provenance, res *mergeResult) {
	if r.mode.IsSelection(col.Key) {
		on, _ := ToBool(v)
		if on {
			r.selections[col.Key][row.ID] = true
		} else {
			delete(r.selections[col.Key], row.ID)
		}
		return
	}
	if col.ReadOnly {
		return
	}

	v = normalizeCell(v)
	raw, pasted := v.(string)
	pasted = pasted && src == ProvenancePaste
	stripped := false
	if pasted {
		var cleaned string
		if cleaned, stripped = paste.Clean(raw); stripped {
			v = cleaned
		}
	}
	if sameValue(row.Fields[col.Key], v) {
		return
	}
	if pasted {
		res.pastedCells = append(res.pastedCells, raw)
	}
	if stripped {
		// the surface still shows the invisible characters
		res.structural = true
	}

	row.Fields[col.Key] = v
	row.Source = src
	if validateField(row, col) {
		res.errorsChanged = true
	}

	if col.Key == r.mode.Identifier {
		if row.Errors[col.Key] == resolve.ErrCodeExists {
			delete(row.Errors, col.Key)
			res.errorsChanged = true
		}
		if code := resolve.NormalizeCode(CellText(v)); code != "" {
			if res.codes == nil {
				res.codes = make(map[int64]string)
			}
			res.codes[row.ID] = code
		}
	}
}

// OnDataChanged merges the surface's matrix into the store.
//
// The matrix is authoritative for order and membership of the rows it
// covers. Rows hidden by the active filter are not part of it and keep their
// places.
func (r *Reconciler) OnDataChanged(m protocol.DataChanged) {
	before := r.highlightsByID()
	src := provenanceOf(m.Source)
	if src == ProvenancePaste {
		r.beginPaste(pasteFromHost)
	} else {
		r.endPaste()
	}

	prev := r.store.Rows()
	shown := r.visibleRows()
	prevVisible := len(shown)

	var res mergeResult
	placed := make(map[int64]bool, len(m.Data))
	incoming := make([]*Row, 0, len(m.Data))
	discarded := 0

	for i, cells := range m.Data {
		var id *int64
		switch {
		case m.RowIDs != nil:
			id = m.RowIDs[i]
		case i < len(shown):
			// no ids at all: match by position
			pid := shown[i].ID
			id = &pid
		}
		if id != nil && placed[*id] {
			id = nil
		}

		var row *Row
		created := false
		switch {
		case id != nil:
			if existing, ok := r.store.Get(*id); ok {
				row = existing
				break
			}
			row = newRow(r.freshID(*id), nil, src)
			created = true

		case m.MultiRowPaste || len(m.Data) > prevVisible:
			row = newRow(r.store.NewID(), nil, src)
			created = true

		default:
			discarded++
			continue
		}

		placed[row.ID] = true
		for c, col := range r.mode.Columns {
			if c < len(cells) {
				r.setField(row, col, cells[c], src, &res)
			}
		}
		if created {
			// a new row starts out as its own baseline
			row.ResetBaseline()
			res.structural = true
		}
		incoming = append(incoming, row)
	}

	if discarded > 0 {
		r.logger.Warn("discarded rows without id",
			"count", discarded,
			"incoming", len(m.Data),
			"previous", prevVisible,
		)
		res.structural = true
	}

	next := make([]*Row, 0, len(incoming)+len(prev)-prevVisible)
	j := 0
	for _, row := range prev {
		if !r.isVisible(row.ID) && !placed[row.ID] {
			next = append(next, row)
			continue
		}
		if j < len(incoming) {
			next = append(next, incoming[j])
			j++
		}
	}
	next = append(next, incoming[j:]...)

	if len(next) != len(prev) {
		res.structural = true
	}
	r.store.Replace(next)
	if r.filterActive && r.visible != nil {
		for _, row := range incoming {
			r.visible[row.ID] = true
		}
	}
	r.pruneSelections()

	if src == ProvenancePaste {
		r.inspectPaste(res.pastedCells)
	}
	r.queueLookup(res.codes)
	r.touch(res.echo() && sameHighlights(before, r.highlightsByID()))
}

// freshID keeps a surface-supplied id only if it was never allocated;
// deleted ids are never reused.
func (r *Reconciler) freshID(id int64) int64 {
	if r.store.Adopt(id) {
		return id
	}
	return r.store.NewID()
}

// OnCellChanged applies one edit. The row is found by id, or by its index
// among the visible rows when the surface sent no id.
func (r *Reconciler) OnCellChanged(m protocol.CellChanged) {
	r.endPaste()
	var (
		row *Row
		ok  bool
	)
	if m.RowID != nil {
		row, ok = r.store.Get(*m.RowID)
	} else if rows := r.visibleRows(); m.RowIndex < len(rows) {
		row, ok = rows[m.RowIndex], true
	}
	if !ok {
		r.logger.Warn("cell change for unknown row", "row_index", m.RowIndex, "col", m.ColKey)
		return
	}
	col, known := r.mode.Column(m.ColKey)
	if !known {
		r.logger.Warn("cell change for unknown column", "col", m.ColKey)
		return
	}

	before := r.highlightsByID()
	var res mergeResult
	r.setField(row, col, m.Value, ProvenanceEdit, &res)
	r.queueLookup(res.codes)
	r.touch(res.echo() && sameHighlights(before, r.highlightsByID()))
}

// OnRowsRemoved deletes rows. This is the only way selection shrinks.
func (r *Reconciler) OnRowsRemoved(m protocol.RowsRemoved) {
	r.endPaste()
	before := r.highlightsByID()
	n := r.store.Remove(m.RemovedIDs...)
	if n == 0 {
		return
	}
	r.pruneSelections()
	r.touch(sameHighlights(before, r.highlightsByID()))
}

// OnToggleSelectAll selects every visible row, or clears them if all are
// already selected.
func (r *Reconciler) OnToggleSelectAll(protocol.ToggleSelectAll) {
	r.endPaste()
	key := r.mode.PrimarySelection()
	if key == "" {
		return
	}
	rows := r.visibleRows()
	all := r.allSelected(rows)
	for _, row := range rows {
		if all {
			delete(r.selections[key], row.ID)
		} else {
			r.selections[key][row.ID] = true
		}
	}
	r.touch(false)
}

func (r *Reconciler) allSelected(rows []*Row) bool {
	key := r.mode.PrimarySelection()
	if key == "" || len(rows) == 0 {
		return false
	}
	for _, row := range rows {
		if !r.selections[key][row.ID] {
			return false
		}
	}
	return true
}

// OnFiltersChanged records the filter state. Clearing filters makes every
// row visible again; the exact visible set follows in filter-applied.
func (r *Reconciler) OnFiltersChanged(m protocol.FiltersChanged) {
	r.endPaste()
	before := r.highlightsByID()
	r.filterActive = m.Active
	r.filteredCount = m.FilteredRowCount
	if !m.Active {
		r.visible = nil
	}
	r.touch(sameHighlights(before, r.highlightsByID()))
}

// OnFilterApplied sets exactly which rows pass the filters.
func (r *Reconciler) OnFilterApplied(m protocol.FilterApplied) {
	r.endPaste()
	before := r.highlightsByID()
	r.filterActive = true
	r.visible = make(map[int64]bool, len(m.VisibleRowIDs))
	for _, id := range m.VisibleRowIDs {
		if _, ok := r.store.Get(id); ok {
			r.visible[id] = true
		}
	}
	r.filteredCount = len(r.visible)
	r.touch(sameHighlights(before, r.highlightsByID()))
}

// OnDecimalFormatDetected turns the surface's detection into an advisory,
// unless the host already raised one for the same paste. The detection and
// the paste's data-changed may arrive in either order.
func (r *Reconciler) OnDecimalFormatDetected(m protocol.DecimalFormatDetected) {
	r.beginPaste(pasteFromSurface)
	r.adviseDecimal(m.Samples, len(m.Samples), m.Suspected)
}

var _ protocol.SurfaceHandler = (*Reconciler)(nil)

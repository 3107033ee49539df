package core

import (
	"time"

	"github.com/JonMunkholm/gridhost/internal/protocol"
	"github.com/JonMunkholm/gridhost/internal/resolve"
)

// EmitOutcome says what Emit did.
type EmitOutcome int

const (
	// EmitClean means nothing was pending.
	EmitClean EmitOutcome = iota
	// EmitSent means a snapshot was produced.
	EmitSent
	// EmitSkipped means the skip-once flag swallowed this emission.
	EmitSkipped
	// EmitDeferred means a bulk suppression window is open; retry at Until.
	EmitDeferred
)

func (o EmitOutcome) String() string {
	switch o {
	case EmitSent:
		return "sent"
	case EmitSkipped:
		return "skipped"
	case EmitDeferred:
		return "deferred"
	}
	return "clean"
}

// EmitResult is the answer of one Emit call.
type EmitResult struct {
	Outcome  EmitOutcome
	Snapshot protocol.ConfigureTable
	Until    time.Time
}

// Emit is called when the debounce timer fires. It produces the snapshot,
// consumes the skip-once flag, or defers while a bulk window is open.
func (r *Reconciler) Emit() EmitResult {
	if !r.dirty {
		return EmitResult{Outcome: EmitClean}
	}
	if r.bulkInflight > 0 && r.opts.Now().Before(r.suppressUntil) {
		return EmitResult{Outcome: EmitDeferred, Until: r.suppressUntil}
	}
	r.dirty = false
	if r.suppressOnce {
		r.suppressOnce = false
		return EmitResult{Outcome: EmitSkipped}
	}
	return EmitResult{Outcome: EmitSent, Snapshot: r.Snapshot()}
}

// State derives the emission state.
func (r *Reconciler) State() State {
	switch {
	case r.bulkInflight > 0:
		return StateAwaitingBulkResolution
	case r.suppressOnce, r.opts.Now().Before(r.suppressUntil):
		return StateSuppressed
	}
	return StateIdle
}

// Loading reports whether any lookup is in flight.
func (r *Reconciler) Loading() bool { return r.inflight > 0 }

// Snapshot builds the configure-table message for the visible rows.
func (r *Reconciler) Snapshot() protocol.ConfigureTable {
	rows := r.visibleRows()
	hl := r.highlights(rows)

	msg := protocol.ConfigureTable{
		Columns:       r.mode.Columns,
		Data:          make([][]any, len(rows)),
		RowIDs:        make([]int64, len(rows)),
		RowHighlights: make([]protocol.Highlight, len(rows)),
		SelectAll:     r.allSelected(rows),
		LoadingData:   r.Loading(),
	}
	for i, row := range rows {
		cells := make([]any, len(r.mode.Columns))
		for c, col := range r.mode.Columns {
			if r.mode.IsSelection(col.Key) {
				cells[c] = r.selections[col.Key][row.ID]
				continue
			}
			cells[c] = row.Fields[col.Key]
		}
		msg.Data[i] = cells
		msg.RowIDs[i] = row.ID
		msg.RowHighlights[i] = hl[row.ID]
	}
	return msg
}

// highlights tags rows: "code already exists" or a code repeated among
// rows is a duplicate, even when other fields carry errors; any other
// blocking error is an error. Only the given rows take part in duplicate
// detection.
func (r *Reconciler) highlights(rows []*Row) map[int64]protocol.Highlight {
	ident := r.mode.Identifier
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		if code := resolve.NormalizeCode(CellText(row.Fields[ident])); code != "" {
			counts[code]++
		}
	}

	out := make(map[int64]protocol.Highlight, len(rows))
	for _, row := range rows {
		dup := false
		hasErr := false
		for field, msg := range row.Errors {
			if field == ident && msg == resolve.ErrCodeExists {
				dup = true
				continue
			}
			hasErr = true
		}
		if code := resolve.NormalizeCode(CellText(row.Fields[ident])); code != "" && counts[code] > 1 {
			dup = true
		}

		switch {
		case dup:
			out[row.ID] = protocol.HighlightDuplicate
		case hasErr:
			out[row.ID] = protocol.HighlightError
		}
	}
	return out
}

func (r *Reconciler) highlightsByID() map[int64]protocol.Highlight {
	return r.highlights(r.visibleRows())
}

func sameHighlights(a, b map[int64]protocol.Highlight) bool {
	if len(a) != len(b) {
		return false
	}
	for id, h := range a {
		if b[id] != h {
			return false
		}
	}
	return true
}

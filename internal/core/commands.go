package core

// commands.go implements the host-initiated operations on a session.

import (
	"errors"
	"sort"

	"github.com/JonMunkholm/gridhost/internal/formula"
	"github.com/JonMunkholm/gridhost/internal/paste"
	"github.com/JonMunkholm/gridhost/internal/protocol"
	"github.com/JonMunkholm/gridhost/internal/resolve"
)

// ErrNoFormulaTarget is returned by ApplyFormula in modes without a formula
// target column.
var ErrNoFormulaTarget = errors.New("formula not supported in this mode")

// LoadRecords replaces every row with one row per record. Loaded rows are
// their own baseline.
func (r *Reconciler) LoadRecords(recs []resolve.Record) int {
	rows := make([]*Row, 0, len(recs))
	for _, rec := range recs {
		fields := map[string]any{r.mode.Identifier: rec.Code}
		for field, col := range r.mode.Lookup {
			if v, ok := rec.Field(field); ok {
				fields[col] = v
			}
		}
		row := newRow(r.store.NewID(), fields, ProvenanceLoad)
		row.ResetBaseline()
		rows = append(rows, row)
	}

	r.store.Replace(rows)
	r.clearSelections()
	r.filterActive, r.visible, r.filteredCount = false, nil, 0
	r.touch(false)

	r.logger.Info("records loaded", "rows", len(rows))
	return len(rows)
}

// Clear empties the table: the surface is told to clear, then gets a fresh
// set of blank rows. Lookups still in flight find their rows gone.
func (r *Reconciler) Clear() {
	r.store.Reset(r.opts.SeedRows)
	r.clearSelections()
	r.filterActive, r.visible, r.filteredCount = false, nil, 0
	r.DismissAdvisories()
	r.outbox = append(r.outbox, protocol.ClearTable{})
	r.touch(false)
}

func (r *Reconciler) clearSelections() {
	for key := range r.selections {
		r.selections[key] = make(map[int64]bool)
	}
}

// formulaTargets returns the selected visible rows, or every visible row if
// none is selected.
func (r *Reconciler) formulaTargets() []*Row {
	rows := r.visibleRows()
	var selected []*Row
	for _, row := range rows {
		if r.Selected(row.ID) {
			selected = append(selected, row)
		}
	}
	if len(selected) > 0 {
		return selected
	}
	return rows
}

// ApplyFormula evaluates src for every target row and writes the results
// into the mode's target column as one batch. A row keeps its value and is
// counted as skipped when an input the formula reads is blank or not a
// number, when it has neither input, or when evaluation fails. A formula
// that does not compile changes nothing.
func (r *Reconciler) ApplyFormula(src string) (FormulaResult, error) {
	res := FormulaResult{Formula: src}
	prog, err := formula.Compile(src)
	if err != nil {
		return res, err
	}

	b := r.mode.Formula
	col, ok := r.mode.Column(b.Target)
	if !ok {
		return res, ErrNoFormulaTarget
	}

	targets := r.formulaTargets()
	res.Targets = len(targets)
	for _, row := range targets {
		actual, okA := paste.ParseNumber(row.Fields[b.Actual])
		compra, okC := paste.ParseNumber(row.Fields[b.Compra])
		if (!okA && !okC) || (!okA && prog.Uses(formula.InputActual)) || (!okC && prog.Uses(formula.InputCompra)) {
			res.Skipped++
			continue
		}
		v, err := prog.Eval(formula.Inputs{Actual: actual, Compra: compra})
		if err != nil {
			r.logger.Debug("formula skipped row", "row_id", row.ID, "error", err)
			res.Skipped++
			continue
		}
		if !sameValue(row.Fields[col.Key], v) {
			row.Fields[col.Key] = v
			row.Source = ProvenanceFormula
			validateField(row, col)
		}
		res.Updated++
	}

	r.outbox = append(r.outbox, protocol.ApplyFormula{Formula: src, UpdatedRows: res.Updated})
	r.touch(false)

	r.logger.Info("formula applied",
		"formula", src,
		"targets", res.Targets,
		"updated", res.Updated,
		"skipped", res.Skipped,
	)
	return res, nil
}

// Validate lists every blocking error on the visible rows in grid order and
// asks the surface to focus the first one.
func (r *Reconciler) Validate() []RowError {
	var errs []RowError
	for i, row := range r.visibleRows() {
		for _, col := range r.mode.Columns {
			if msg, ok := row.Errors[col.Key]; ok {
				errs = append(errs, RowError{RowID: row.ID, RowIndex: i, Column: col.Key, Message: msg})
			}
		}
	}
	if len(errs) > 0 {
		first := errs[0]
		r.outbox = append(r.outbox, protocol.FocusCell{
			RowIndex: first.RowIndex,
			ColIndex: r.mode.ColumnIndex(first.Column),
			Message:  first.Message,
		})
	}
	return errs
}

// ChangedRows returns the rows to save, in grid order, hidden rows
// included. When new codes are being entered every non-empty row counts;
// otherwise only rows that differ from their baseline do.
func (r *Reconciler) ChangedRows() []ChangedRow {
	cols := r.mode.DataColumns()
	entering := r.binding.Policy == resolve.PolicyFlagExisting
	var out []ChangedRow
	for _, row := range r.store.Rows() {
		if entering && row.Empty(cols) || !entering && !row.HasChanges(cols) {
			continue
		}
		out = append(out, ChangedRow{
			ID:     row.ID,
			Fields: cloneFields(row.Fields),
			Errors: cloneErrors(row.Errors),
			Source: row.Source,
		})
	}
	return out
}

// Summary is a point-in-time view of a reconciler for status endpoints.
type Summary struct {
	Mode               string `json:"mode"`
	State              State  `json:"state"`
	Rows               int    `json:"rows"`
	VisibleRows        int    `json:"visibleRows"`
	Selected           int    `json:"selected"`
	Changed            int    `json:"changed"`
	Errors             int    `json:"errors"`
	Loading            bool   `json:"loading"`
	TenantAbbreviation string `json:"tenantAbbreviation,omitempty"`
}

// Summary reports counts over the current rows.
func (r *Reconciler) Summary() Summary {
	cols := r.mode.DataColumns()
	entering := r.binding.Policy == resolve.PolicyFlagExisting
	s := Summary{
		Mode:               r.mode.Key,
		State:              r.State(),
		Rows:               r.store.Len(),
		VisibleRows:        len(r.visibleRows()),
		Selected:           len(r.selections[r.mode.PrimarySelection()]),
		Loading:            r.Loading(),
		TenantAbbreviation: r.tenantAbbrev,
	}
	for _, row := range r.store.Rows() {
		if row.HasChanges(cols) || entering && !row.Empty(cols) {
			s.Changed++
		}
		if len(row.Errors) > 0 {
			s.Errors++
		}
	}
	return s
}

// sortedIDs returns the keys of set in ascending order.
func sortedIDs(set map[int64]bool) []int64 {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

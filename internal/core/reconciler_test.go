package core

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/gridhost/internal/protocol"
	"github.com/JonMunkholm/gridhost/internal/resolve"
)

var testColumns = []protocol.Column{
	{Key: "selected", Type: protocol.ColumnCheckbox},
	{Key: "sku", Label: "Code", Type: protocol.ColumnText},
	{Key: "description", Label: "Description", Type: protocol.ColumnText},
	{Key: "cost", Label: "Cost", Type: protocol.ColumnNumber},
	{Key: "price", Label: "Price", Type: protocol.ColumnNumber},
	{Key: "vat", Label: "VAT", Type: protocol.ColumnSelect, Options: []string{"0", "10.5", "21"}},
}

var insertMode = ModeDefinition{
	Key:        "insert",
	Columns:    testColumns,
	Identifier: "sku",
	Selection:  []string{"selected"},
	Policy:     LookupFlagExisting,
	Formula:    FormulaBinding{Actual: "price", Compra: "cost", Target: "price"},
}

var updateMode = ModeDefinition{
	Key:        "update",
	Columns:    testColumns,
	Identifier: "sku",
	Selection:  []string{"selected"},
	Lookup: map[string]string{
		resolve.FieldName:    "description",
		resolve.FieldRate:    "price",
		resolve.FieldTaxRate: "vat",
	},
	Policy:  LookupOverwrite,
	Formula: FormulaBinding{Actual: "price", Compra: "cost", Target: "price"},
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestReconciler(t *testing.T, mode ModeDefinition, seed int) (*Reconciler, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	r := NewReconciler(mode, Options{
		Tenant:   "acme",
		SeedRows: seed,
		Now:      clock.Now,
		Logger:   discardLogger(),
	})
	return r, clock
}

func ptr(id int64) *int64 { return &id }

func storeIDs(r *Reconciler) []int64 {
	var ids []int64
	for _, row := range r.Store().Rows() {
		ids = append(ids, row.ID)
	}
	return ids
}

// row builds a surface row in testColumns order.
func row(sku string, rest ...any) []any {
	cells := []any{false, sku, nil, nil, nil, nil}
	copy(cells[2:], rest)
	return cells
}

func mustGet(t *testing.T, r *Reconciler, id int64) *Row {
	t.Helper()
	got, ok := r.Store().Get(id)
	require.True(t, ok, "row %d", id)
	return got
}

func TestNewReconciler_SeedsRows(t *testing.T) {
	r, _ := newTestReconciler(t, insertMode, 3)
	assert.Equal(t, []int64{1, 2, 3}, storeIDs(r))
	assert.True(t, r.Dirty())
	assert.Equal(t, StateIdle, r.State())

	res := r.Emit()
	require.Equal(t, EmitSent, res.Outcome)
	assert.Len(t, res.Snapshot.Data, 3)
	assert.Equal(t, []int64{1, 2, 3}, res.Snapshot.RowIDs)
	assert.NoError(t, res.Snapshot.Validate())
}

func TestOnDataChanged_PreservesIDsAndCount(t *testing.T) {
	r, _ := newTestReconciler(t, insertMode, 3)

	r.OnDataChanged(protocol.DataChanged{
		Data:   [][]any{row("C3"), row("A1"), row("B2")},
		RowIDs: []*int64{ptr(3), ptr(1), ptr(2)},
	})

	assert.Equal(t, []int64{3, 1, 2}, storeIDs(r))
	assert.Equal(t, "A1", mustGet(t, r, 1).Fields["sku"])
	assert.Equal(t, "C3", mustGet(t, r, 3).Fields["sku"])
	assert.Equal(t, ProvenanceEdit, mustGet(t, r, 1).Source)
}

func TestOnDataChanged_UnknownIDStartsClean(t *testing.T) {
	r, _ := newTestReconciler(t, insertMode, 3)

	r.OnDataChanged(protocol.DataChanged{
		Data:   [][]any{row(""), row(""), row(""), row("NEW", "fresh")},
		RowIDs: []*int64{ptr(1), ptr(2), ptr(3), ptr(99)},
	})

	assert.Equal(t, []int64{1, 2, 3, 99}, storeIDs(r))
	fresh := mustGet(t, r, 99)
	assert.False(t, fresh.HasChanges(insertMode.DataColumns()))
	assert.Equal(t, int64(100), r.Store().NewID())
}

func TestOnDataChanged_DeletedIDNotReused(t *testing.T) {
	r, _ := newTestReconciler(t, insertMode, 3)
	r.OnRowsRemoved(protocol.RowsRemoved{RemovedIDs: []int64{3}})
	require.Equal(t, []int64{1, 2}, storeIDs(r))

	r.OnDataChanged(protocol.DataChanged{
		Data:   [][]any{row("A"), row("B"), row("C")},
		RowIDs: []*int64{ptr(1), ptr(2), ptr(3)},
	})

	assert.Equal(t, []int64{1, 2, 4}, storeIDs(r))
	assert.Equal(t, "C", mustGet(t, r, 4).Fields["sku"])
}

func TestOnDataChanged_NullIDs(t *testing.T) {
	tests := []struct {
		name    string
		msg     protocol.DataChanged
		wantIDs []int64
	}{
		{
			name: "discarded when count does not grow",
			msg: protocol.DataChanged{
				Data:   [][]any{row("A"), row("B"), row("C")},
				RowIDs: []*int64{ptr(1), ptr(2), nil},
			},
			wantIDs: []int64{1, 2},
		},
		{
			name: "synthesized on multi-row paste",
			msg: protocol.DataChanged{
				Data:          [][]any{row("A"), row("B"), row("C")},
				RowIDs:        []*int64{ptr(1), ptr(2), nil},
				MultiRowPaste: true,
			},
			wantIDs: []int64{1, 2, 4},
		},
		{
			name: "synthesized when count grows",
			msg: protocol.DataChanged{
				Data:   [][]any{row("A"), row("B"), row("C"), row("D")},
				RowIDs: []*int64{ptr(1), ptr(2), ptr(3), nil},
			},
			wantIDs: []int64{1, 2, 3, 4},
		},
		{
			name: "duplicate id treated as missing",
			msg: protocol.DataChanged{
				Data:   [][]any{row("A"), row("B"), row("C")},
				RowIDs: []*int64{ptr(1), ptr(1), ptr(3)},
			},
			wantIDs: []int64{1, 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestReconciler(t, insertMode, 3)
			r.OnDataChanged(tt.msg)
			assert.Equal(t, tt.wantIDs, storeIDs(r))
		})
	}
}

func TestOnDataChanged_PositionalWithoutIDs(t *testing.T) {
	r, _ := newTestReconciler(t, insertMode, 2)

	r.OnDataChanged(protocol.DataChanged{
		Data: [][]any{row("A"), row("B"), row("C")},
	})

	assert.Equal(t, []int64{1, 2, 3}, storeIDs(r))
	assert.Equal(t, "B", mustGet(t, r, 2).Fields["sku"])
}

func TestOnDataChanged_Idempotent(t *testing.T) {
	r, _ := newTestReconciler(t, insertMode, 2)
	msg := protocol.DataChanged{
		Data:   [][]any{row("A", "one", 10.0), row("B", "two", "12,5")},
		RowIDs: []*int64{ptr(1), ptr(2)},
	}

	r.OnDataChanged(msg)
	first := r.Snapshot()
	r.OnDataChanged(msg)

	assert.Equal(t, first, r.Snapshot())
}

func TestOnDataChanged_SelectionDoesNotChangeRow(t *testing.T) {
	r, _ := newTestReconciler(t, updateMode, 2)
	cells := row("")
	cells[0] = true

	r.OnDataChanged(protocol.DataChanged{
		Data:   [][]any{cells, row("")},
		RowIDs: []*int64{ptr(1), ptr(2)},
	})

	assert.True(t, r.Selected(1))
	assert.False(t, r.Selected(2))
	assert.False(t, mustGet(t, r, 1).HasChanges(updateMode.DataColumns()))
	_, stored := mustGet(t, r, 1).Fields["selected"]
	assert.False(t, stored)
}

func TestEmit_SkipsEchoOnce(t *testing.T) {
	r, _ := newTestReconciler(t, insertMode, 2)
	first := r.Emit()
	require.Equal(t, EmitSent, first.Outcome)

	r.OnDataChanged(protocol.DataChanged{
		Data:   first.Snapshot.Data,
		RowIDs: []*int64{ptr(1), ptr(2)},
	})
	assert.Equal(t, StateSuppressed, r.State())
	assert.Equal(t, EmitSkipped, r.Emit().Outcome)
	assert.Equal(t, EmitClean, r.Emit().Outcome)

	r.OnCellChanged(protocol.CellChanged{RowID: ptr(1), ColKey: "description", Value: "typed"})
	assert.Equal(t, EmitSkipped, r.Emit().Outcome, "value the surface typed itself")

	r.OnCellChanged(protocol.CellChanged{RowID: ptr(1), ColKey: "sku", Value: "A1"})
	assert.Equal(t, EmitSent, r.Emit().Outcome, "lookup selects the row and shows loading")

	r.OnCellChanged(protocol.CellChanged{RowID: ptr(1), ColKey: "cost", Value: "abc"})
	res := r.Emit()
	require.Equal(t, EmitSent, res.Outcome, "error changed")
	assert.Equal(t, protocol.HighlightError, res.Snapshot.RowHighlights[0])
}

func TestEmit_RealChangeCancelsSkip(t *testing.T) {
	r, _ := newTestReconciler(t, insertMode, 2)
	r.Emit()

	r.OnCellChanged(protocol.CellChanged{RowID: ptr(1), ColKey: "description", Value: "typed"})
	r.OnToggleSelectAll(protocol.ToggleSelectAll{})

	res := r.Emit()
	require.Equal(t, EmitSent, res.Outcome)
	assert.True(t, res.Snapshot.SelectAll)
}

func TestOnCellChanged_ValidationRecovers(t *testing.T) {
	r, _ := newTestReconciler(t, insertMode, 1)

	r.OnCellChanged(protocol.CellChanged{RowIndex: 0, ColKey: "vat", Value: "19"})
	assert.Contains(t, mustGet(t, r, 1).Errors["vat"], "value must be one of")

	r.OnCellChanged(protocol.CellChanged{RowIndex: 0, ColKey: "vat", Value: "21"})
	assert.Empty(t, mustGet(t, r, 1).Errors)
}

func TestOnCellChanged_ReadOnlyIgnored(t *testing.T) {
	mode := insertMode
	mode.Columns = append([]protocol.Column(nil), testColumns...)
	mode.Columns[2].ReadOnly = true
	r, _ := newTestReconciler(t, mode, 1)

	r.OnCellChanged(protocol.CellChanged{RowID: ptr(1), ColKey: "description", Value: "x"})
	assert.Nil(t, mustGet(t, r, 1).Fields["description"])
}

func TestHighlights(t *testing.T) {
	r, _ := newTestReconciler(t, insertMode, 4)
	r.OnDataChanged(protocol.DataChanged{
		Data:   [][]any{row("X"), row("Y"), row("x"), row("Z", nil, "bad")},
		RowIDs: []*int64{ptr(1), ptr(2), ptr(3), ptr(4)},
	})

	snap := r.Snapshot()
	assert.Equal(t, []protocol.Highlight{
		protocol.HighlightDuplicate,
		protocol.HighlightNone,
		protocol.HighlightDuplicate,
		protocol.HighlightError,
	}, snap.RowHighlights)

	// duplicates only count among visible rows
	r.OnFilterApplied(protocol.FilterApplied{VisibleRowIDs: []int64{1, 2}})
	snap = r.Snapshot()
	assert.Equal(t, []int64{1, 2}, snap.RowIDs)
	assert.Equal(t, []protocol.Highlight{protocol.HighlightNone, protocol.HighlightNone}, snap.RowHighlights)
}

func TestHighlights_CodeExistsBeatsFieldErrors(t *testing.T) {
	r, _ := newTestReconciler(t, insertMode, 2)
	r.OnDataChanged(protocol.DataChanged{
		Data:   [][]any{row("X", nil, "bad"), row("Y", nil, "bad")},
		RowIDs: []*int64{ptr(1), ptr(2)},
		Source: protocol.SourcePaste,
	})
	jobs := r.TakeJobs()
	require.Len(t, jobs, 1)
	r.ApplyResolution(jobs[0], resolve.Result{
		Records: map[string]resolve.Record{"X": {Code: "X", Name: "Existing"}},
	}, nil)

	row1 := mustGet(t, r, 1)
	assert.Equal(t, resolve.ErrCodeExists, row1.Errors["sku"])
	assert.Contains(t, row1.Errors, "cost")

	snap := r.Snapshot()
	assert.Equal(t, []protocol.Highlight{
		protocol.HighlightDuplicate,
		protocol.HighlightError,
	}, snap.RowHighlights)
}

func TestFilters_HiddenRowsKeepTheirPlace(t *testing.T) {
	r, _ := newTestReconciler(t, insertMode, 4)
	r.OnFiltersChanged(protocol.FiltersChanged{Active: true, FilteredRowCount: 2})
	r.OnFilterApplied(protocol.FilterApplied{VisibleRowIDs: []int64{2, 4}})

	r.OnDataChanged(protocol.DataChanged{
		Data:   [][]any{row("", "d"), row("", "b")},
		RowIDs: []*int64{ptr(4), ptr(2)},
	})
	assert.Equal(t, []int64{1, 4, 3, 2}, storeIDs(r))

	r.OnToggleSelectAll(protocol.ToggleSelectAll{})
	assert.True(t, r.Selected(2))
	assert.True(t, r.Selected(4))
	assert.False(t, r.Selected(1))

	r.OnFiltersChanged(protocol.FiltersChanged{Active: false})
	snap := r.Snapshot()
	assert.Equal(t, []int64{1, 4, 3, 2}, snap.RowIDs)
	assert.False(t, snap.SelectAll)
}

func TestOnRowsRemoved_PrunesSelection(t *testing.T) {
	r, _ := newTestReconciler(t, insertMode, 3)
	r.OnToggleSelectAll(protocol.ToggleSelectAll{})
	r.OnRowsRemoved(protocol.RowsRemoved{RemovedIDs: []int64{2, 42}})

	assert.Equal(t, []int64{1, 3}, storeIDs(r))
	assert.False(t, r.Selected(2))
	assert.True(t, r.Selected(1))
}

func TestDispatchMalformedDoesNotPanic(t *testing.T) {
	r, _ := newTestReconciler(t, insertMode, 1)
	err := protocol.Dispatch(protocol.ClearTable{}, r)
	assert.ErrorIs(t, err, protocol.ErrMalformed)
	assert.Equal(t, 1, r.Store().Len())
}

func TestResolution_UpdateMergesAndResetsBaseline(t *testing.T) {
	r, _ := newTestReconciler(t, updateMode, 2)
	r.OnCellChanged(protocol.CellChanged{RowID: ptr(1), ColKey: "description", Value: "stale"})
	r.OnCellChanged(protocol.CellChanged{RowID: ptr(1), ColKey: "sku", Value: " a1 "})

	jobs := r.TakeJobs()
	require.Len(t, jobs, 1)
	job := jobs[0]
	assert.Equal(t, []string{"A1"}, job.Codes)
	assert.False(t, job.Bulk)
	assert.Equal(t, "acme", job.Tenant)
	assert.Equal(t, "update", job.Mode)

	// phase 1
	row1 := mustGet(t, r, 1)
	assert.True(t, r.Selected(1))
	assert.Nil(t, row1.Fields["description"])
	assert.True(t, r.Snapshot().LoadingData)
	assert.Equal(t, StateIdle, r.State())

	res := resolve.Result{
		Records: map[string]resolve.Record{
			"A1": {Code: "A1", Name: "Widget", Rate: 10.5, TaxRate: 21},
		},
		TenantAbbreviation: "ACM",
	}
	r.ApplyResolution(job, res, nil)

	assert.Equal(t, "Widget", row1.Fields["description"])
	assert.Equal(t, 10.5, row1.Fields["price"])
	assert.Equal(t, 21.0, row1.Fields["vat"])
	assert.Equal(t, ProvenanceLookup, row1.Source)
	assert.False(t, row1.HasChanges(updateMode.DataColumns()))
	assert.False(t, r.Loading())
	assert.Equal(t, "ACM", r.TenantAbbreviation())
	assert.Empty(t, r.ChangedRows())

	// applying the same answer again changes nothing
	before := r.Snapshot()
	r.ApplyResolution(job, res, nil)
	assert.Equal(t, before, r.Snapshot())
	assert.False(t, row1.HasChanges(updateMode.DataColumns()))
}

func TestResolution_UnresolvedClearsDependents(t *testing.T) {
	r, _ := newTestReconciler(t, updateMode, 1)
	r.OnCellChanged(protocol.CellChanged{RowID: ptr(1), ColKey: "price", Value: 5.0})
	r.OnCellChanged(protocol.CellChanged{RowID: ptr(1), ColKey: "sku", Value: "nope"})
	job := r.TakeJobs()[0]

	r.ApplyResolution(job, resolve.Result{}, nil)

	row1 := mustGet(t, r, 1)
	assert.Nil(t, row1.Fields["price"])
	assert.Empty(t, row1.Errors)
	assert.Equal(t, "nope", row1.Fields["sku"])
}

func TestResolution_InsertFlagsExistingCode(t *testing.T) {
	r, _ := newTestReconciler(t, insertMode, 2)
	r.OnDataChanged(protocol.DataChanged{
		Data:   [][]any{row("A1", "typed"), row("B2")},
		RowIDs: []*int64{ptr(1), ptr(2)},
		Source: protocol.SourcePaste,
	})
	jobs := r.TakeJobs()
	require.Len(t, jobs, 1)
	assert.ElementsMatch(t, []string{"A1", "B2"}, jobs[0].Codes)

	r.ApplyResolution(jobs[0], resolve.Result{
		Records: map[string]resolve.Record{"A1": {Code: "A1", Name: "Existing"}},
	}, nil)

	row1 := mustGet(t, r, 1)
	assert.Equal(t, resolve.ErrCodeExists, row1.Errors["sku"])
	assert.Equal(t, "typed", row1.Fields["description"])
	assert.Empty(t, mustGet(t, r, 2).Errors)

	snap := r.Snapshot()
	assert.Equal(t, protocol.HighlightDuplicate, snap.RowHighlights[0])
	assert.Equal(t, protocol.HighlightNone, snap.RowHighlights[1])

	// editing the code clears the flag
	r.OnCellChanged(protocol.CellChanged{RowID: ptr(1), ColKey: "sku", Value: "A9"})
	assert.Empty(t, row1.Errors)
}

func TestResolution_ErrorKeepsRows(t *testing.T) {
	r, _ := newTestReconciler(t, updateMode, 1)
	r.OnCellChanged(protocol.CellChanged{RowID: ptr(1), ColKey: "sku", Value: "A1"})
	job := r.TakeJobs()[0]

	r.ApplyResolution(job, resolve.Result{}, errors.New("query catalog: connection refused"))

	row1 := mustGet(t, r, 1)
	assert.Equal(t, "A1", row1.Fields["sku"])
	assert.Empty(t, row1.Errors)
	assert.False(t, r.Loading())
}

func TestResolution_DeletedRowSkipped(t *testing.T) {
	r, _ := newTestReconciler(t, updateMode, 2)
	r.OnCellChanged(protocol.CellChanged{RowID: ptr(2), ColKey: "sku", Value: "A1"})
	job := r.TakeJobs()[0]
	r.OnRowsRemoved(protocol.RowsRemoved{RemovedIDs: []int64{2}})

	r.ApplyResolution(job, resolve.Result{
		Records: map[string]resolve.Record{"A1": {Code: "A1", Name: "Widget"}},
	}, nil)

	assert.Equal(t, []int64{1}, storeIDs(r))
}

func pasteCodes(n int) protocol.DataChanged {
	data := make([][]any, n)
	for i := range data {
		data[i] = row(fmt.Sprintf("C%03d", i))
	}
	return protocol.DataChanged{Data: data, MultiRowPaste: true, PasteInSku: true, Source: protocol.SourcePaste}
}

func TestBulkThresholdBoundary(t *testing.T) {
	tests := []struct {
		codes    int
		wantBulk bool
	}{
		{codes: 50, wantBulk: false},
		{codes: 51, wantBulk: true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d codes", tt.codes), func(t *testing.T) {
			r, _ := newTestReconciler(t, updateMode, 3)
			r.OnDataChanged(pasteCodes(tt.codes))

			jobs := r.TakeJobs()
			require.Len(t, jobs, 1)
			assert.Len(t, jobs[0].Codes, tt.codes)
			assert.Equal(t, tt.wantBulk, jobs[0].Bulk)
			assert.Equal(t, tt.wantBulk, r.TakeFlushRequest())
			assert.Equal(t, tt.codes, r.Store().Len())
		})
	}
}

func TestBulkSuppressionWindow(t *testing.T) {
	r, clock := newTestReconciler(t, updateMode, 3)
	r.Emit()

	r.OnDataChanged(pasteCodes(60))
	job := r.TakeJobs()[0]
	require.True(t, r.TakeFlushRequest())

	// the phase 1 snapshot goes out right away
	res := r.Emit()
	require.Equal(t, EmitSent, res.Outcome)
	assert.True(t, res.Snapshot.LoadingData)

	r.OpenSuppressionWindow()
	assert.Equal(t, StateAwaitingBulkResolution, r.State())
	until, open := r.SuppressedUntil()
	require.True(t, open)
	assert.Equal(t, clock.Now().Add(DefaultSuppressionWindow), until)

	r.OnCellChanged(protocol.CellChanged{RowID: ptr(1), ColKey: "cost", Value: 3.0})
	res = r.Emit()
	assert.Equal(t, EmitDeferred, res.Outcome)
	assert.Equal(t, until, res.Until)

	r.ApplyResolution(job, resolve.Result{}, nil)
	_, open = r.SuppressedUntil()
	assert.False(t, open)
	assert.Equal(t, StateIdle, r.State())

	res = r.Emit()
	require.Equal(t, EmitSent, res.Outcome)
	assert.False(t, res.Snapshot.LoadingData)
}

func TestBulkSuppressionWindowExpires(t *testing.T) {
	r, clock := newTestReconciler(t, updateMode, 3)
	r.OnDataChanged(pasteCodes(60))
	r.TakeJobs()
	r.TakeFlushRequest()
	r.Emit()
	r.OpenSuppressionWindow()

	r.OnCellChanged(protocol.CellChanged{RowID: ptr(1), ColKey: "cost", Value: 3.0})
	assert.Equal(t, EmitDeferred, r.Emit().Outcome)

	clock.Advance(DefaultSuppressionWindow)
	res := r.Emit()
	require.Equal(t, EmitSent, res.Outcome)
	assert.True(t, res.Snapshot.LoadingData, "lookup still in flight")
}

func TestAdvisories(t *testing.T) {
	r, clock := newTestReconciler(t, insertMode, 2)

	r.OnDataChanged(protocol.DataChanged{
		Data:   [][]any{row("A", nil, "22.000"), row("B", nil, "1.234,56")},
		RowIDs: []*int64{ptr(1), ptr(2)},
		Source: protocol.SourcePaste,
	})
	// the surface noticing the same paste does not raise a second one
	r.OnDecimalFormatDetected(protocol.DecimalFormatDetected{
		Samples:   []string{"22.000"},
		Suspected: protocol.SeparatorComma,
	})

	fresh := r.TakeNewAdvisories()
	require.Len(t, fresh, 1)
	assert.Equal(t, AdvisoryDecimalFormat, fresh[0].Kind)
	assert.Equal(t, []string{"22.000"}, fresh[0].Samples)
	assert.Equal(t, protocol.SeparatorComma, fresh[0].Suspected)
	assert.Empty(t, r.TakeNewAdvisories())

	// stored as typed
	assert.Equal(t, "22.000", mustGet(t, r, 1).Fields["cost"])

	assert.Len(t, r.Advisories(), 1)
	clock.Advance(DefaultAdvisoryTTL)
	assert.Empty(t, r.Advisories())
}

func TestAdvisories_OnePerPaste(t *testing.T) {
	detected := protocol.DecimalFormatDetected{
		Samples:   []string{"22.000"},
		Suspected: protocol.SeparatorComma,
	}
	pasted := protocol.DataChanged{
		Data:   [][]any{row("A", nil, "22.000")},
		RowIDs: []*int64{ptr(1)},
		Source: protocol.SourcePaste,
	}

	t.Run("surface detection before the paste", func(t *testing.T) {
		r, _ := newTestReconciler(t, insertMode, 1)
		r.OnDecimalFormatDetected(detected)
		r.OnDataChanged(pasted)
		assert.Len(t, r.TakeNewAdvisories(), 1)
	})

	t.Run("two surface detections", func(t *testing.T) {
		r, _ := newTestReconciler(t, insertMode, 1)
		r.OnDecimalFormatDetected(detected)
		r.OnDecimalFormatDetected(detected)
		assert.Len(t, r.TakeNewAdvisories(), 2)
	})

	t.Run("two pastes each with a detection", func(t *testing.T) {
		r, _ := newTestReconciler(t, insertMode, 1)
		r.OnDecimalFormatDetected(detected)
		r.OnDataChanged(pasted)
		r.OnDataChanged(pasted)
		r.OnDecimalFormatDetected(detected)
		assert.Len(t, r.TakeNewAdvisories(), 2)
	})

	t.Run("an edit in between ends the paste", func(t *testing.T) {
		r, _ := newTestReconciler(t, insertMode, 1)
		r.OnDataChanged(pasted)
		r.OnCellChanged(protocol.CellChanged{RowID: ptr(1), ColKey: "description", Value: "x"})
		r.OnDecimalFormatDetected(detected)
		assert.Len(t, r.TakeNewAdvisories(), 2)
	})
}

func TestAdvisories_InvisibleCharacters(t *testing.T) {
	r, _ := newTestReconciler(t, insertMode, 1)
	r.Emit()

	r.OnDataChanged(protocol.DataChanged{
		Data:   [][]any{row("A1\u200b")},
		RowIDs: []*int64{ptr(1)},
		Source: protocol.SourcePaste,
	})

	assert.Equal(t, "A1", mustGet(t, r, 1).Fields["sku"])
	fresh := r.TakeNewAdvisories()
	require.Len(t, fresh, 1)
	assert.Equal(t, AdvisoryInvisibleChar, fresh[0].Kind)
	assert.Equal(t, EmitSent, r.Emit().Outcome, "surface still shows the stripped characters")
}

package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindDirections(t *testing.T) {
	for _, k := range Kinds() {
		assert.NotEqual(t, DirUnknown, k.Direction(), "kind %s has no direction", k)
	}
	assert.Equal(t, HostToSurface, KindConfigureTable.Direction())
	assert.Equal(t, HostToSurface, KindApplyFormula.Direction())
	assert.Equal(t, SurfaceToHost, KindDataChanged.Direction())
	assert.Equal(t, SurfaceToHost, KindDecimalFormatDetected.Direction())
	assert.Equal(t, DirUnknown, Kind("bogus").Direction())
}

func TestEncodeDecodeConfigureTable(t *testing.T) {
	msg := ConfigureTable{
		Columns: []Column{
			{Key: "sku", Label: "SKU", Type: ColumnText},
			{Key: "price", Label: "Price", Type: ColumnNumber},
		},
		Data:          [][]any{{"A1", 10.5}, {"B2", nil}},
		RowIDs:        []int64{1, 2},
		RowHighlights: []Highlight{HighlightNone, HighlightDuplicate},
		LoadingData:   true,
	}

	raw, err := Encode(msg)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"type":"configure-table"`)
	assert.Contains(t, string(raw), `"rowHighlights":[null,"duplicate"]`)

	got, err := Decode(raw, HostToSurface)
	require.NoError(t, err)
	ct, ok := got.(ConfigureTable)
	require.True(t, ok)
	assert.Equal(t, []int64{1, 2}, ct.RowIDs)
	assert.Equal(t, []Highlight{HighlightNone, HighlightDuplicate}, ct.RowHighlights)
	assert.True(t, ct.LoadingData)
}

func TestEncodeRejectsMisalignedSnapshot(t *testing.T) {
	_, err := Encode(ConfigureTable{
		Columns:       []Column{{Key: "sku", Type: ColumnText}},
		Data:          [][]any{{"A"}, {"B"}},
		RowIDs:        []int64{1},
		RowHighlights: []Highlight{HighlightNone, HighlightNone},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeDataChangedWithNullIDs(t *testing.T) {
	raw := []byte(`{"type":"data-changed","payload":{"data":[["A",1],["B",2]],"rowIds":[7,null],"pasteInSku":true}}`)

	got, err := Decode(raw, SurfaceToHost)
	require.NoError(t, err)
	dc := got.(DataChanged)
	require.Len(t, dc.RowIDs, 2)
	require.NotNil(t, dc.RowIDs[0])
	assert.Equal(t, int64(7), *dc.RowIDs[0])
	assert.Nil(t, dc.RowIDs[1])
	assert.True(t, dc.PasteInSku)
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		dir  Direction
	}{
		{"not json", `{{`, SurfaceToHost},
		{"missing type", `{"payload":{}}`, SurfaceToHost},
		{"unknown type", `{"type":"explode"}`, SurfaceToHost},
		{"wrong direction", `{"type":"configure-table","payload":{"data":[],"rowIds":[],"rowHighlights":[]}}`, SurfaceToHost},
		{"host kind from host side ok but bad shape", `{"type":"focus-cell","payload":{"rowIndex":-1}}`, HostToSurface},
		{"payload type mismatch", `{"type":"rows-removed","payload":{"removedIds":"x"}}`, SurfaceToHost},
		{"empty removal", `{"type":"rows-removed","payload":{"removedIds":[]}}`, SurfaceToHost},
		{"rowIds not parallel", `{"type":"data-changed","payload":{"data":[["a"]],"rowIds":[1,2]}}`, SurfaceToHost},
		{"missing data", `{"type":"data-changed","payload":{}}`, SurfaceToHost},
		{"bad source", `{"type":"data-changed","payload":{"data":[],"source":"magic"}}`, SurfaceToHost},
		{"cell without key", `{"type":"cell-changed","payload":{"rowIndex":0}}`, SurfaceToHost},
		{"decimal bad separator", `{"type":"decimal-format-detected","payload":{"samples":["1.000"],"suspected":"semicolon"}}`, SurfaceToHost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.raw), tt.dir)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestDecodeEmptyPayloadKinds(t *testing.T) {
	got, err := Decode([]byte(`{"type":"toggle-select-all"}`), SurfaceToHost)
	require.NoError(t, err)
	assert.Equal(t, KindToggleSelectAll, got.Kind())

	got, err = Decode([]byte(`{"type":"clear-table","payload":null}`), DirUnknown)
	require.NoError(t, err)
	assert.Equal(t, KindClearTable, got.Kind())
}

type recordingHandler struct {
	seen []Kind
}

func (h *recordingHandler) OnDataChanged(DataChanged)     { h.seen = append(h.seen, KindDataChanged) }
func (h *recordingHandler) OnCellChanged(CellChanged)     { h.seen = append(h.seen, KindCellChanged) }
func (h *recordingHandler) OnRowsRemoved(RowsRemoved)     { h.seen = append(h.seen, KindRowsRemoved) }
func (h *recordingHandler) OnToggleSelectAll(ToggleSelectAll) {
	h.seen = append(h.seen, KindToggleSelectAll)
}
func (h *recordingHandler) OnFiltersChanged(FiltersChanged) {
	h.seen = append(h.seen, KindFiltersChanged)
}
func (h *recordingHandler) OnFilterApplied(FilterApplied) { h.seen = append(h.seen, KindFilterApplied) }
func (h *recordingHandler) OnDecimalFormatDetected(DecimalFormatDetected) {
	h.seen = append(h.seen, KindDecimalFormatDetected)
}

func TestDispatchCoversEverySurfaceKind(t *testing.T) {
	h := &recordingHandler{}
	msgs := []Message{
		DataChanged{Data: [][]any{}},
		CellChanged{ColKey: "sku"},
		RowsRemoved{RemovedIDs: []int64{1}},
		ToggleSelectAll{},
		FiltersChanged{},
		FilterApplied{VisibleRowIDs: []int64{}},
		DecimalFormatDetected{Samples: []string{"1.000"}, Suspected: SeparatorComma},
	}
	for _, m := range msgs {
		require.NoError(t, Dispatch(m, h))
	}

	var want []Kind
	for _, k := range Kinds() {
		if k.Direction() == SurfaceToHost {
			want = append(want, k)
		}
	}
	assert.Equal(t, want, h.seen)
}

func TestDispatchRejectsHostKinds(t *testing.T) {
	err := Dispatch(ClearTable{}, &recordingHandler{})
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestHighlightJSON(t *testing.T) {
	var hs []Highlight
	require.NoError(t, json.Unmarshal([]byte(`[null,"error","duplicate"]`), &hs))
	assert.Equal(t, []Highlight{HighlightNone, HighlightError, HighlightDuplicate}, hs)
}

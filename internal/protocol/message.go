// Package protocol defines the message channel between the host and the grid
// surface.
//
// Every message travels inside an Envelope whose "type" field is the
// discriminant. Direction is strict: a Kind is either host→surface or
// surface→host, never both. Decode validates the discriminant, the direction
// and the payload shape at the boundary so the rest of the host only ever sees
// well-formed, typed messages.
//
// The package has no behavior beyond encoding, decoding and dispatch.
package protocol

import "encoding/json"

// Kind is the message discriminant carried in the envelope "type" field.
type Kind string

const (
	// host → surface
	KindConfigureTable Kind = "configure-table"
	KindClearTable     Kind = "clear-table"
	KindFocusCell      Kind = "focus-cell"
	KindApplyFormula   Kind = "apply-formula"

	// surface → host
	KindDataChanged           Kind = "data-changed"
	KindCellChanged           Kind = "cell-changed"
	KindRowsRemoved           Kind = "rows-removed"
	KindToggleSelectAll       Kind = "toggle-select-all"
	KindFiltersChanged        Kind = "filters-changed"
	KindFilterApplied         Kind = "filter-applied"
	KindDecimalFormatDetected Kind = "decimal-format-detected"
)

// Direction tells which side of the channel may send a Kind.
type Direction int

const (
	DirUnknown Direction = iota
	HostToSurface
	SurfaceToHost
)

func (d Direction) String() string {
	switch d {
	case HostToSurface:
		return "host->surface"
	case SurfaceToHost:
		return "surface->host"
	default:
		return "unknown"
	}
}

var kindDirections = map[Kind]Direction{
	KindConfigureTable:        HostToSurface,
	KindClearTable:            HostToSurface,
	KindFocusCell:             HostToSurface,
	KindApplyFormula:          HostToSurface,
	KindDataChanged:           SurfaceToHost,
	KindCellChanged:           SurfaceToHost,
	KindRowsRemoved:           SurfaceToHost,
	KindToggleSelectAll:       SurfaceToHost,
	KindFiltersChanged:        SurfaceToHost,
	KindFilterApplied:         SurfaceToHost,
	KindDecimalFormatDetected: SurfaceToHost,
}

// Direction returns the only direction the kind may travel in.
func (k Kind) Direction() Direction {
	return kindDirections[k]
}

// Kinds returns every known kind. Order is stable.
func Kinds() []Kind {
	return []Kind{
		KindConfigureTable, KindClearTable, KindFocusCell, KindApplyFormula,
		KindDataChanged, KindCellChanged, KindRowsRemoved, KindToggleSelectAll,
		KindFiltersChanged, KindFilterApplied, KindDecimalFormatDetected,
	}
}

// Message is implemented by every payload type in this package and nowhere
// else.
type Message interface {
	Kind() Kind
	Validate() error
	sealed()
}

// ColumnType is the editor type of a column.
type ColumnType string

const (
	ColumnText     ColumnType = "text"
	ColumnNumber   ColumnType = "number"
	ColumnSelect   ColumnType = "select"
	ColumnCheckbox ColumnType = "checkbox"
)

// Valid reports whether t is one of the four known column types.
func (t ColumnType) Valid() bool {
	switch t {
	case ColumnText, ColumnNumber, ColumnSelect, ColumnCheckbox:
		return true
	}
	return false
}

// Column describes one grid column. Immutable for the lifetime of a session.
type Column struct {
	Key      string     `json:"key" yaml:"key"`
	Label    string     `json:"label" yaml:"label"`
	Type     ColumnType `json:"type" yaml:"type"`
	ReadOnly bool       `json:"readOnly,omitempty" yaml:"readOnly"`
	Options  []string   `json:"options,omitempty" yaml:"options"`
}

// Highlight is the per-row visual tag of a snapshot. The zero value means no
// highlight and is encoded as JSON null.
type Highlight string

const (
	HighlightNone      Highlight = ""
	HighlightDuplicate Highlight = "duplicate"
	HighlightError     Highlight = "error"
)

func (h Highlight) MarshalJSON() ([]byte, error) {
	if h == HighlightNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(h))
}

func (h *Highlight) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*h = HighlightNone
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*h = Highlight(s)
	return nil
}

// Separator names a decimal separator character.
type Separator string

const (
	SeparatorDot   Separator = "dot"
	SeparatorComma Separator = "comma"
)

// Source is the wire form of a change provenance reported by the surface.
type Source string

const (
	SourceEdit     Source = "edit"
	SourcePaste    Source = "paste"
	SourceAutofill Source = "autofill"
	SourceUndo     Source = "undo"
)

// ---------------------------------------------------------------------------
// host → surface
// ---------------------------------------------------------------------------

// ConfigureTable pushes a full snapshot for the surface to render.
// Data[i], RowIDs[i] and RowHighlights[i] always describe the same row.
type ConfigureTable struct {
	Columns       []Column    `json:"columns"`
	Data          [][]any     `json:"data"`
	RowIDs        []int64     `json:"rowIds"`
	RowHighlights []Highlight `json:"rowHighlights"`
	SelectAll     bool        `json:"selectAll"`
	LoadingData   bool        `json:"loadingData"`
}

// ClearTable resets the surface to empty.
type ClearTable struct{}

// FocusCell scrolls to a cell and annotates it.
type FocusCell struct {
	RowIndex int    `json:"rowIndex"`
	ColIndex int    `json:"colIndex"`
	Message  string `json:"message,omitempty"`
}

// ApplyFormula notifies the surface that the host has already evaluated a
// formula and written the results. It is not a request to recompute: the
// new values arrive in the configure-table that follows, and the surface
// only needs this message to report UpdatedRows.
type ApplyFormula struct {
	Formula     string `json:"formula"`
	UpdatedRows int    `json:"updatedRows"`
}

// ---------------------------------------------------------------------------
// surface → host
// ---------------------------------------------------------------------------

// DataChanged reports the surface's current matrix after edits or pastes.
// A nil entry in RowIDs marks a row the surface created without a host id.
type DataChanged struct {
	Data          [][]any  `json:"data"`
	RowIDs        []*int64 `json:"rowIds,omitempty"`
	PasteInSku    bool     `json:"pasteInSku,omitempty"`
	MultiRowPaste bool     `json:"multiRowPaste,omitempty"`
	Source        Source   `json:"source,omitempty"`
}

// CellChanged reports a single-cell edit.
type CellChanged struct {
	RowIndex int    `json:"rowIndex"`
	RowID    *int64 `json:"rowId,omitempty"`
	ColKey   string `json:"colKey"`
	Value    any    `json:"value"`
}

// RowsRemoved reports an explicit row deletion.
type RowsRemoved struct {
	RemovedIDs []int64 `json:"removedIds"`
}

// ToggleSelectAll requests select/deselect of every visible row.
type ToggleSelectAll struct{}

// FiltersChanged reports that the filter set changed. Active=false clears
// filtering on the host.
type FiltersChanged struct {
	FilteredRowCount int  `json:"filteredRowCount"`
	Active           bool `json:"active"`
}

// FilterApplied reports exactly which rows pass the active filters.
type FilterApplied struct {
	VisibleRowIDs []int64 `json:"visibleRowIds"`
}

// DecimalFormatDetected is the surface's advisory about an ambiguous paste.
type DecimalFormatDetected struct {
	Samples   []string  `json:"samples"`
	Suspected Separator `json:"suspected"`
}

func (ConfigureTable) Kind() Kind        { return KindConfigureTable }
func (ClearTable) Kind() Kind            { return KindClearTable }
func (FocusCell) Kind() Kind             { return KindFocusCell }
func (ApplyFormula) Kind() Kind          { return KindApplyFormula }
func (DataChanged) Kind() Kind           { return KindDataChanged }
func (CellChanged) Kind() Kind           { return KindCellChanged }
func (RowsRemoved) Kind() Kind           { return KindRowsRemoved }
func (ToggleSelectAll) Kind() Kind       { return KindToggleSelectAll }
func (FiltersChanged) Kind() Kind        { return KindFiltersChanged }
func (FilterApplied) Kind() Kind         { return KindFilterApplied }
func (DecimalFormatDetected) Kind() Kind { return KindDecimalFormatDetected }

func (ConfigureTable) sealed()        {}
func (ClearTable) sealed()            {}
func (FocusCell) sealed()             {}
func (ApplyFormula) sealed()          {}
func (DataChanged) sealed()           {}
func (CellChanged) sealed()           {}
func (RowsRemoved) sealed()           {}
func (ToggleSelectAll) sealed()       {}
func (FiltersChanged) sealed()        {}
func (FilterApplied) sealed()         {}
func (DecimalFormatDetected) sealed() {}

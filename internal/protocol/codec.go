package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformed wraps every decode and validation failure. Receivers log and
// drop malformed messages; they never propagate them further.
var ErrMalformed = errors.New("malformed message")

// Envelope is the wire frame for every message.
type Envelope struct {
	Type    Kind            `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Encode frames a message for the wire. Outgoing messages are validated too,
// so the host cannot emit a snapshot whose parallel arrays disagree.
func Encode(m Message) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: nil message", ErrMalformed)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.Kind(), err)
	}
	return json.Marshal(Envelope{Type: m.Kind(), Payload: payload})
}

// Decode parses and validates a frame that must travel in direction want.
// Pass DirUnknown to accept either direction.
func Decode(data []byte, want Direction) (Message, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	}

	dir := env.Type.Direction()
	if dir == DirUnknown {
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformed, env.Type)
	}
	if want != DirUnknown && dir != want {
		return nil, fmt.Errorf("%w: %s travels %s, not %s", ErrMalformed, env.Type, dir, want)
	}

	m, err := newMessage(env.Type)
	if err != nil {
		return nil, err
	}
	if len(env.Payload) > 0 && string(env.Payload) != "null" {
		if err := json.Unmarshal(env.Payload, m); err != nil {
			return nil, fmt.Errorf("%w: %s payload: %v", ErrMalformed, env.Type, err)
		}
	}

	msg := deref(m)
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return msg, nil
}

// newMessage returns a pointer to a zero payload for kind.
func newMessage(kind Kind) (any, error) {
	switch kind {
	case KindConfigureTable:
		return &ConfigureTable{}, nil
	case KindClearTable:
		return &ClearTable{}, nil
	case KindFocusCell:
		return &FocusCell{}, nil
	case KindApplyFormula:
		return &ApplyFormula{}, nil
	case KindDataChanged:
		return &DataChanged{}, nil
	case KindCellChanged:
		return &CellChanged{}, nil
	case KindRowsRemoved:
		return &RowsRemoved{}, nil
	case KindToggleSelectAll:
		return &ToggleSelectAll{}, nil
	case KindFiltersChanged:
		return &FiltersChanged{}, nil
	case KindFilterApplied:
		return &FilterApplied{}, nil
	case KindDecimalFormatDetected:
		return &DecimalFormatDetected{}, nil
	}
	return nil, fmt.Errorf("%w: unknown type %q", ErrMalformed, kind)
}

func deref(p any) Message {
	switch v := p.(type) {
	case *ConfigureTable:
		return *v
	case *ClearTable:
		return *v
	case *FocusCell:
		return *v
	case *ApplyFormula:
		return *v
	case *DataChanged:
		return *v
	case *CellChanged:
		return *v
	case *RowsRemoved:
		return *v
	case *ToggleSelectAll:
		return *v
	case *FiltersChanged:
		return *v
	case *FilterApplied:
		return *v
	case *DecimalFormatDetected:
		return *v
	}
	panic(fmt.Sprintf("protocol: unhandled payload %T", p))
}

func malformed(kind Kind, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrMalformed, kind, fmt.Sprintf(format, args...))
}

// Validate checks that the three parallel arrays have the same length and the
// column set is usable.
func (m ConfigureTable) Validate() error {
	if len(m.RowIDs) != len(m.Data) {
		return malformed(m.Kind(), "rowIds has %d entries for %d rows", len(m.RowIDs), len(m.Data))
	}
	if len(m.RowHighlights) != len(m.Data) {
		return malformed(m.Kind(), "rowHighlights has %d entries for %d rows", len(m.RowHighlights), len(m.Data))
	}
	for i, c := range m.Columns {
		if c.Key == "" {
			return malformed(m.Kind(), "column %d has no key", i)
		}
		if !c.Type.Valid() {
			return malformed(m.Kind(), "column %q has unknown type %q", c.Key, c.Type)
		}
	}
	for i, row := range m.Data {
		if len(row) != len(m.Columns) {
			return malformed(m.Kind(), "row %d has %d cells for %d columns", i, len(row), len(m.Columns))
		}
	}
	return nil
}

func (ClearTable) Validate() error { return nil }

func (m FocusCell) Validate() error {
	if m.RowIndex < 0 || m.ColIndex < 0 {
		return malformed(m.Kind(), "negative cell index (%d, %d)", m.RowIndex, m.ColIndex)
	}
	return nil
}

func (m ApplyFormula) Validate() error {
	if m.Formula == "" {
		return malformed(m.Kind(), "empty formula")
	}
	return nil
}

// Validate requires rowIds, when present, to be parallel to data.
func (m DataChanged) Validate() error {
	if m.Data == nil {
		return malformed(m.Kind(), "missing data")
	}
	if m.RowIDs != nil && len(m.RowIDs) != len(m.Data) {
		return malformed(m.Kind(), "rowIds has %d entries for %d rows", len(m.RowIDs), len(m.Data))
	}
	switch m.Source {
	case "", SourceEdit, SourcePaste, SourceAutofill, SourceUndo:
	default:
		return malformed(m.Kind(), "unknown source %q", m.Source)
	}
	return nil
}

func (m CellChanged) Validate() error {
	if m.ColKey == "" {
		return malformed(m.Kind(), "missing colKey")
	}
	if m.RowID == nil && m.RowIndex < 0 {
		return malformed(m.Kind(), "needs rowId or a non-negative rowIndex")
	}
	return nil
}

func (m RowsRemoved) Validate() error {
	if len(m.RemovedIDs) == 0 {
		return malformed(m.Kind(), "no removedIds")
	}
	return nil
}

func (ToggleSelectAll) Validate() error { return nil }

func (m FiltersChanged) Validate() error {
	if m.FilteredRowCount < 0 {
		return malformed(m.Kind(), "negative filteredRowCount")
	}
	return nil
}

func (m FilterApplied) Validate() error {
	if m.VisibleRowIDs == nil {
		return malformed(m.Kind(), "missing visibleRowIds")
	}
	return nil
}

func (m DecimalFormatDetected) Validate() error {
	if len(m.Samples) == 0 {
		return malformed(m.Kind(), "no samples")
	}
	switch m.Suspected {
	case SeparatorDot, SeparatorComma:
	default:
		return malformed(m.Kind(), "unknown separator %q", m.Suspected)
	}
	return nil
}

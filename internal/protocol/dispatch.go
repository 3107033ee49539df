package protocol

import "fmt"

// SurfaceHandler receives every surface→host kind. Adding a kind to the
// protocol adds a method here, so every handler fails to compile until it
// handles the new kind.
type SurfaceHandler interface {
	OnDataChanged(DataChanged)
	OnCellChanged(CellChanged)
	OnRowsRemoved(RowsRemoved)
	OnToggleSelectAll(ToggleSelectAll)
	OnFiltersChanged(FiltersChanged)
	OnFilterApplied(FilterApplied)
	OnDecimalFormatDetected(DecimalFormatDetected)
}

// Dispatch routes a decoded surface→host message to h. Host→surface kinds
// are rejected with ErrMalformed.
func Dispatch(m Message, h SurfaceHandler) error {
	switch v := m.(type) {
	case DataChanged:
		h.OnDataChanged(v)
	case CellChanged:
		h.OnCellChanged(v)
	case RowsRemoved:
		h.OnRowsRemoved(v)
	case ToggleSelectAll:
		h.OnToggleSelectAll(v)
	case FiltersChanged:
		h.OnFiltersChanged(v)
	case FilterApplied:
		h.OnFilterApplied(v)
	case DecimalFormatDetected:
		h.OnDecimalFormatDetected(v)
	default:
		return fmt.Errorf("%w: %T cannot be sent to the host", ErrMalformed, m)
	}
	return nil
}

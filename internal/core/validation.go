package core

// validation.go checks cell values against their column type.
//
// A failed check becomes the field's entry in Row.Errors, which blocks the
// row until the user edits the cell again. Empty cells are always valid;
// whether a value is required is a save-time concern.

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/gridhost/internal/paste"
	"github.com/JonMunkholm/gridhost/internal/protocol"
)

// ValidationError is a single invalid cell.
type ValidationError struct {
	Field   string // Column key
	Value   string // The invalid value as displayed
	Message string // Human-readable error message
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// ValidateCell checks v against col. Returns nil if valid.
func ValidateCell(v any, col protocol.Column) error {
	if isBlank(v) {
		return nil
	}

	switch col.Type {
	case protocol.ColumnNumber:
		if _, ok := paste.ParseNumber(v); !ok {
			return fmt.Errorf("invalid number format")
		}
	case protocol.ColumnCheckbox:
		if _, ok := ToBool(v); !ok {
			return fmt.Errorf("must be yes/no, true/false, or 1/0")
		}
	case protocol.ColumnSelect:
		if len(col.Options) > 0 {
			text := strings.TrimSpace(CellText(v))
			for _, opt := range col.Options {
				if strings.EqualFold(opt, text) {
					return nil
				}
			}
			return fmt.Errorf("value must be one of: %s", strings.Join(col.Options, ", "))
		}
	}
	return nil
}

// validateField sets or clears the error for one field of r and reports
// whether the error changed.
func validateField(r *Row, col protocol.Column) bool {
	prev, had := r.Errors[col.Key]
	err := ValidateCell(r.Fields[col.Key], col)
	if err == nil {
		if !had {
			return false
		}
		delete(r.Errors, col.Key)
		return true
	}
	msg := err.Error()
	r.Errors[col.Key] = msg
	return !had || prev != msg
}

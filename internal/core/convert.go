package core

// convert.go compares and coerces grid cell values.
//
// Cells arrive from JSON as string, float64, bool or nil, and users type the
// same value many ways: "12" and 12 are the same price, "" and null are both
// an empty cell, "yes" and true both tick a checkbox. Change detection must
// not flag those as edits.

import (
	"strconv"
	"strings"

	"github.com/JonMunkholm/gridhost/internal/paste"
)

// isBlank reports whether v is an empty cell.
func isBlank(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	}
	return false
}

// CellText renders v the way the grid displays it.
func CellText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return paste.FormatNumber(x)
	case float32:
		return paste.FormatNumber(float64(x))
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	}
	return ""
}

// ToBool reads a checkbox value. Accepts true/false, yes/no, t/f, y/n, 1/0.
func ToBool(v any) (value, ok bool) {
	switch x := v.(type) {
	case nil:
		return false, true
	case bool:
		return x, true
	case float64:
		return x != 0, x == 0 || x == 1
	case string:
		switch strings.TrimSpace(strings.ToLower(x)) {
		case "true", "t", "yes", "y", "1", "on", "x":
			return true, true
		case "false", "f", "no", "n", "0", "off", "":
			return false, true
		}
	}
	return false, false
}

// sameValue compares two cells by content rather than by Go type.
func sameValue(a, b any) bool {
	if isBlank(a) || isBlank(b) {
		return isBlank(a) && isBlank(b)
	}
	if ab, ok := a.(bool); ok {
		bb, ok := ToBool(b)
		return ok && ab == bb
	}
	if bb, ok := b.(bool); ok {
		ab, ok := ToBool(a)
		return ok && ab == bb
	}

	_, aText := a.(string)
	_, bText := b.(string)
	if aText && bText {
		return a.(string) == b.(string)
	}

	// a number and a string holding the same number are equal
	af, aok := paste.ParseNumber(a)
	bf, bok := paste.ParseNumber(b)
	if aok && bok {
		return af == bf
	}
	return CellText(a) == CellText(b)
}

// normalizeCell maps JSON-decoded values onto the types rows store.
func normalizeCell(v any) any {
	switch x := v.(type) {
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case string, float64, bool, nil:
		return x
	}
	return CellText(v)
}

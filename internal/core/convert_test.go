package core

import (
	"testing"

	"github.com/JonMunkholm/gridhost/internal/protocol"
)

// ----------------------------------------------------------------------------
// sameValue Tests
// ----------------------------------------------------------------------------

func TestSameValue(t *testing.T) {
	tests := []struct {
		name string
		a, b any
		want bool
	}{
		// Blanks
		{name: "nil and nil", a: nil, b: nil, want: true},
		{name: "nil and empty string", a: nil, b: "", want: true},
		{name: "nil and spaces", a: nil, b: "   ", want: true},
		{name: "nil and zero", a: nil, b: 0.0, want: false},
		{name: "empty and text", a: "", b: "x", want: false},

		// Numbers
		{name: "float and same float", a: 12.5, b: 12.5, want: true},
		{name: "float and numeric string", a: 12.0, b: "12", want: true},
		{name: "numeric string and float", a: "12,5", b: 12.5, want: true},
		{name: "int and float", a: 3, b: 3.0, want: true},
		{name: "different numbers", a: 1.0, b: 2.0, want: false},

		// Strings compare exactly
		{name: "same text", a: "A1", b: "A1", want: true},
		{name: "case differs", a: "a1", b: "A1", want: false},
		{name: "two numeric strings", a: "12", b: "12.0", want: false},

		// Checkboxes
		{name: "true and yes", a: true, b: "yes", want: true},
		{name: "false and 0", a: false, b: "0", want: true},
		{name: "true and false", a: true, b: false, want: false},
		{name: "bool and junk", a: true, b: "maybe", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sameValue(tt.a, tt.b); got != tt.want {
				t.Errorf("sameValue(%#v, %#v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// ToBool Tests
// ----------------------------------------------------------------------------

func TestToBool(t *testing.T) {
	tests := []struct {
		input     any
		wantValue bool
		wantOK    bool
	}{
		{input: nil, wantValue: false, wantOK: true},
		{input: true, wantValue: true, wantOK: true},
		{input: " Yes ", wantValue: true, wantOK: true},
		{input: "x", wantValue: true, wantOK: true},
		{input: "off", wantValue: false, wantOK: true},
		{input: "", wantValue: false, wantOK: true},
		{input: 1.0, wantValue: true, wantOK: true},
		{input: 0.0, wantValue: false, wantOK: true},
		{input: 2.0, wantValue: true, wantOK: false},
		{input: "maybe", wantValue: false, wantOK: false},
	}

	for _, tt := range tests {
		value, ok := ToBool(tt.input)
		if value != tt.wantValue || ok != tt.wantOK {
			t.Errorf("ToBool(%#v) = (%v, %v), want (%v, %v)", tt.input, value, ok, tt.wantValue, tt.wantOK)
		}
	}
}

// ----------------------------------------------------------------------------
// CellText / normalizeCell Tests
// ----------------------------------------------------------------------------

func TestCellText(t *testing.T) {
	tests := []struct {
		input any
		want  string
	}{
		{input: nil, want: ""},
		{input: "abc", want: "abc"},
		{input: true, want: "true"},
		{input: 21.0, want: "21"},
		{input: 10.5, want: "10.5"},
		{input: 7, want: "7"},
		{input: int64(8), want: "8"},
		{input: []int{1}, want: ""},
	}

	for _, tt := range tests {
		if got := CellText(tt.input); got != tt.want {
			t.Errorf("CellText(%#v) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestNormalizeCell(t *testing.T) {
	if got := normalizeCell(3); got != 3.0 {
		t.Errorf("normalizeCell(3) = %#v, want 3.0", got)
	}
	if got := normalizeCell(float32(1.5)); got != 1.5 {
		t.Errorf("normalizeCell(float32) = %#v, want 1.5", got)
	}
	if got := normalizeCell("a"); got != "a" {
		t.Errorf("normalizeCell(\"a\") = %#v", got)
	}
}

// ----------------------------------------------------------------------------
// ValidateCell Tests
// ----------------------------------------------------------------------------

func TestValidateCell(t *testing.T) {
	number := protocol.Column{Key: "price", Type: protocol.ColumnNumber}
	check := protocol.Column{Key: "active", Type: protocol.ColumnCheckbox}
	vat := protocol.Column{Key: "vat", Type: protocol.ColumnSelect, Options: []string{"0", "10.5", "21"}}
	text := protocol.Column{Key: "name", Type: protocol.ColumnText}

	tests := []struct {
		name    string
		value   any
		col     protocol.Column
		wantErr bool
	}{
		{name: "blank number", value: "", col: number, wantErr: false},
		{name: "number", value: 12.5, col: number, wantErr: false},
		{name: "formatted number", value: "$1.234,56", col: number, wantErr: false},
		{name: "text in number", value: "abc", col: number, wantErr: true},
		{name: "checkbox yes", value: "yes", col: check, wantErr: false},
		{name: "checkbox junk", value: "perhaps", col: check, wantErr: true},
		{name: "select option", value: "10.5", col: vat, wantErr: false},
		{name: "select option as number", value: 21.0, col: vat, wantErr: false},
		{name: "select unknown", value: "19", col: vat, wantErr: true},
		{name: "text anything", value: "whatever", col: text, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCell(tt.value, tt.col)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateCell(%#v) error = %v, wantErr %v", tt.value, err, tt.wantErr)
			}
		})
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := ValidationError{Field: "price", Value: "abc", Message: "invalid number format"}
	if got := err.Error(); got != "price: invalid number format" {
		t.Errorf("Error() = %q", got)
	}
	if got := (ValidationError{Message: "bad"}).Error(); got != "bad" {
		t.Errorf("Error() = %q", got)
	}
}

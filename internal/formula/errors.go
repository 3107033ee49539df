package formula

import "errors"

var (
	// ErrEmpty is returned for a blank formula.
	ErrEmpty = errors.New("formula is empty")

	// ErrSyntax wraps every lexing and parsing failure.
	ErrSyntax = errors.New("formula syntax error")

	// ErrLogicalWithoutComparison rejects formulas such as "price * AND"
	// that use AND/OR without any comparison to produce a boolean.
	ErrLogicalWithoutComparison = errors.New("formula uses AND/OR without a comparison")

	// ErrNonFinite is returned when a row evaluates to NaN or an infinity.
	ErrNonFinite = errors.New("formula result is not a finite number")

	// ErrNotNumeric is returned when a formula evaluates to a boolean.
	ErrNotNumeric = errors.New("formula result is not a number")
)

package resolve

// ErrCodeExists is the identifier error set in insert mode when a pasted code
// already names a catalog record.
const ErrCodeExists = "code already exists"

// Policy decides what a resolved or unresolved code does to its row.
type Policy int

const (
	// PolicyFlagExisting is used when creating records: a code that resolves
	// is a duplicate and gets an identifier error. No other field is touched.
	PolicyFlagExisting Policy = iota

	// PolicyOverwrite is used when editing existing records: a resolved code
	// overwrites the dependent fields and becomes the row's new baseline; an
	// unresolved code clears them.
	PolicyOverwrite
)

// Binding describes how lookup results land in a mode's columns.
type Binding struct {
	// Identifier is the column holding the code.
	Identifier string
	// Fields maps record field names (see Fields) to column keys.
	Fields map[string]string
	Policy Policy
}

// DependentColumns returns the columns a PolicyOverwrite merge will write,
// in record field order.
func (b Binding) DependentColumns() []string {
	var cols []string
	for _, f := range Fields() {
		if col, ok := b.Fields[f]; ok && col != "" {
			cols = append(cols, col)
		}
	}
	return cols
}

// RowPatch is the change one code's answer makes to every row holding it.
type RowPatch struct {
	Code  string
	Found bool

	// Set holds column values to write. Nil values clear the column.
	Set map[string]any

	// IdentifierError replaces the identifier column's error when
	// ClearError or a non-empty value is given.
	IdentifierError string
	ClearError      bool

	// ResetSnapshot makes the merged state the row's new baseline.
	ResetSnapshot bool
}

// Patch is the merge produced for a whole batch, keyed by normalized code.
type Patch struct {
	Rows               map[string]RowPatch
	TenantAbbreviation string
}

// For returns the patch for a raw code.
func (p Patch) For(code string) (RowPatch, bool) {
	rp, ok := p.Rows[NormalizeCode(code)]
	return rp, ok
}

// BuildPatch applies the binding's policy to res for every code. Applying the
// same patch twice gives the same rows.
func BuildPatch(b Binding, codes []string, res Result) Patch {
	patch := Patch{
		Rows:               make(map[string]RowPatch, len(codes)),
		TenantAbbreviation: res.TenantAbbreviation,
	}
	for _, code := range Codes(codes) {
		rec, found := res.Records[code]
		rp := RowPatch{Code: code, Found: found}

		switch b.Policy {
		case PolicyFlagExisting:
			if found {
				rp.IdentifierError = ErrCodeExists
			} else {
				rp.ClearError = true
			}

		case PolicyOverwrite:
			rp.Set = make(map[string]any, len(b.Fields))
			for _, f := range Fields() {
				col, ok := b.Fields[f]
				if !ok || col == "" {
					continue
				}
				if found {
					v, _ := rec.Field(f)
					rp.Set[col] = v
				} else {
					rp.Set[col] = nil
				}
			}
			if found {
				rp.ClearError = true
				rp.ResetSnapshot = true
			}
		}

		patch.Rows[code] = rp
	}
	return patch
}

package core

import (
	"fmt"
	"time"

	"github.com/JonMunkholm/gridhost/internal/protocol"
	"github.com/JonMunkholm/gridhost/internal/resolve"
)

// Provenance records why a row last changed. It replaces the loose string
// tags ("loadData", "formula-application", ...) the grid used to infer intent.
type Provenance int

const (
	ProvenanceSeed Provenance = iota
	ProvenanceEdit
	ProvenancePaste
	ProvenanceFormula
	ProvenanceLookup
	ProvenanceLoad
)

func (p Provenance) String() string {
	switch p {
	case ProvenanceSeed:
		return "seed"
	case ProvenanceEdit:
		return "edit"
	case ProvenancePaste:
		return "paste"
	case ProvenanceFormula:
		return "formula"
	case ProvenanceLookup:
		return "lookup"
	case ProvenanceLoad:
		return "load"
	}
	return fmt.Sprintf("provenance(%d)", int(p))
}

// MarshalText encodes the provenance by name.
func (p Provenance) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// provenanceOf maps the surface's change source to a provenance.
func provenanceOf(s protocol.Source) Provenance {
	if s == protocol.SourcePaste || s == protocol.SourceAutofill {
		return ProvenancePaste
	}
	return ProvenanceEdit
}

// FormulaBinding names the columns a formula reads and writes.
type FormulaBinding struct {
	Actual string `yaml:"actual" json:"actual"`
	Compra string `yaml:"compra" json:"compra"`
	Target string `yaml:"target" json:"target"`
}

// LookupPolicy is the YAML name of a resolve.Policy.
type LookupPolicy string

const (
	LookupFlagExisting LookupPolicy = "flag-existing"
	LookupOverwrite    LookupPolicy = "overwrite"
)

// ModeDefinition is one editing mode: its columns and how lookups and
// formulas land in them.
type ModeDefinition struct {
	Key     string            `yaml:"key" json:"key"`
	Label   string            `yaml:"label" json:"label"`
	Columns []protocol.Column `yaml:"columns" json:"columns"`

	// Identifier is the column holding the product code.
	Identifier string `yaml:"identifier" json:"identifier"`

	// Selection lists checkbox columns stored as row-id sets instead of row
	// fields. The first one is the row selection used by formulas and
	// toggle-select-all.
	Selection []string `yaml:"selection" json:"selection"`

	// Lookup maps record fields (name, group, brand, rate, taxRate) to
	// column keys.
	Lookup map[string]string `yaml:"lookup" json:"lookup,omitempty"`
	Policy LookupPolicy      `yaml:"policy" json:"policy"`

	Formula FormulaBinding `yaml:"formula" json:"formula"`
}

// ColumnIndex returns the position of key in Columns, or -1.
func (d ModeDefinition) ColumnIndex(key string) int {
	for i, c := range d.Columns {
		if c.Key == key {
			return i
		}
	}
	return -1
}

// Column returns the descriptor for key.
func (d ModeDefinition) Column(key string) (protocol.Column, bool) {
	if i := d.ColumnIndex(key); i >= 0 {
		return d.Columns[i], true
	}
	return protocol.Column{}, false
}

// IsSelection reports whether key is a selection column.
func (d ModeDefinition) IsSelection(key string) bool {
	for _, s := range d.Selection {
		if s == key {
			return true
		}
	}
	return false
}

// PrimarySelection returns the row selection column, or "".
func (d ModeDefinition) PrimarySelection() string {
	if len(d.Selection) == 0 {
		return ""
	}
	return d.Selection[0]
}

// DataColumns returns the keys of every non-selection column.
func (d ModeDefinition) DataColumns() []string {
	keys := make([]string, 0, len(d.Columns))
	for _, c := range d.Columns {
		if !d.IsSelection(c.Key) {
			keys = append(keys, c.Key)
		}
	}
	return keys
}

// Binding returns how lookup results merge into this mode.
func (d ModeDefinition) Binding() resolve.Binding {
	policy := resolve.PolicyOverwrite
	if d.Policy == LookupFlagExisting {
		policy = resolve.PolicyFlagExisting
	}
	return resolve.Binding{
		Identifier: d.Identifier,
		Fields:     d.Lookup,
		Policy:     policy,
	}
}

// Validate checks that every referenced column exists.
func (d ModeDefinition) Validate() error {
	if d.Key == "" {
		return fmt.Errorf("mode has no key")
	}
	seen := make(map[string]bool, len(d.Columns))
	for _, c := range d.Columns {
		if c.Key == "" {
			return fmt.Errorf("mode %s: column without key", d.Key)
		}
		if seen[c.Key] {
			return fmt.Errorf("mode %s: duplicate column %q", d.Key, c.Key)
		}
		if !c.Type.Valid() {
			return fmt.Errorf("mode %s: column %q has unknown type %q", d.Key, c.Key, c.Type)
		}
		seen[c.Key] = true
	}

	refs := []string{d.Identifier}
	refs = append(refs, d.Selection...)
	for _, col := range d.Lookup {
		refs = append(refs, col)
	}
	for _, col := range []string{d.Formula.Actual, d.Formula.Compra, d.Formula.Target} {
		if col != "" {
			refs = append(refs, col)
		}
	}
	for _, r := range refs {
		if !seen[r] {
			return fmt.Errorf("mode %s: column not found: %q", d.Key, r)
		}
	}

	for field := range d.Lookup {
		if _, ok := (resolve.Record{}).Field(field); !ok {
			return fmt.Errorf("mode %s: unknown lookup field %q", d.Key, field)
		}
	}
	switch d.Policy {
	case LookupFlagExisting, LookupOverwrite:
	default:
		return fmt.Errorf("mode %s: unknown lookup policy %q", d.Key, d.Policy)
	}
	return nil
}

// State is the reconciler's derived emission state.
type State string

const (
	StateIdle                   State = "idle"
	StateAwaitingBulkResolution State = "awaiting-bulk-resolution"
	StateSuppressed             State = "suppressed"
)

// AdvisoryKind classifies an advisory warning.
type AdvisoryKind string

const (
	AdvisoryDecimalFormat AdvisoryKind = "decimal-format"
	AdvisoryInvisibleChar AdvisoryKind = "invisible-characters"
)

// Advisory is a non-blocking warning shown for a while and then dismissed.
type Advisory struct {
	ID        int64              `json:"id"`
	Kind      AdvisoryKind       `json:"kind"`
	Message   string             `json:"message"`
	Samples   []string           `json:"samples,omitempty"`
	Suspected protocol.Separator `json:"suspected,omitempty"`
	CreatedAt time.Time          `json:"createdAt"`
	ExpiresAt time.Time          `json:"expiresAt"`
}

// RowError is one blocking error found by Validate.
type RowError struct {
	RowID    int64  `json:"rowId"`
	RowIndex int    `json:"rowIndex"`
	Column   string `json:"column"`
	Message  string `json:"message"`
}

// ChangedRow is a row that differs from its baseline.
type ChangedRow struct {
	ID     int64             `json:"id"`
	Fields map[string]any    `json:"fields"`
	Errors map[string]string `json:"errors,omitempty"`
	Source Provenance        `json:"source"`
}

// FormulaResult summarizes one formula application.
type FormulaResult struct {
	Formula string `json:"formula"`
	Targets int    `json:"targets"`
	Updated int    `json:"updated"`
	Skipped int    `json:"skipped"`
}

package core

// rowstore.go holds the canonical rows of one session.
//
// Row ids are allocated by the store and never handed out twice, even after
// the row they named is deleted. Order is the grid order.

// Row is one editable record.
type Row struct {
	ID     int64
	Fields map[string]any
	Errors map[string]string
	// Original is the baseline taken at load or at the last authoritative
	// merge. Changes are always derived by diffing against it.
	Original map[string]any
	Source   Provenance
}

func newRow(id int64, fields map[string]any, src Provenance) *Row {
	if fields == nil {
		fields = make(map[string]any)
	}
	return &Row{
		ID:       id,
		Fields:   fields,
		Errors:   make(map[string]string),
		Original: make(map[string]any),
		Source:   src,
	}
}

// HasChanges reports whether any of cols differs from the baseline.
func (r *Row) HasChanges(cols []string) bool {
	for _, c := range cols {
		if !sameValue(r.Fields[c], r.Original[c]) {
			return true
		}
	}
	return false
}

// ResetBaseline makes the current fields the new baseline.
func (r *Row) ResetBaseline() {
	r.Original = cloneFields(r.Fields)
}

// Empty reports whether every one of cols is blank.
func (r *Row) Empty(cols []string) bool {
	for _, c := range cols {
		if !isBlank(r.Fields[c]) {
			return false
		}
	}
	return true
}

func cloneFields(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneErrors(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// RowStore is an ordered set of rows indexed by id. It is not safe for
// concurrent use; the session loop is its only writer.
type RowStore struct {
	order  []*Row
	byID   map[int64]*Row
	nextID int64
}

// NewRowStore returns an empty store whose first id is 1.
func NewRowStore() *RowStore {
	return &RowStore{byID: make(map[int64]*Row), nextID: 1}
}

// Len returns the number of live rows.
func (s *RowStore) Len() int { return len(s.order) }

// Rows returns the live rows in grid order. The slice must not be modified.
func (s *RowStore) Rows() []*Row { return s.order }

// Get returns the live row with id.
func (s *RowStore) Get(id int64) (*Row, bool) {
	r, ok := s.byID[id]
	return r, ok
}

// At returns the row at position i in grid order.
func (s *RowStore) At(i int) (*Row, bool) {
	if i < 0 || i >= len(s.order) {
		return nil, false
	}
	return s.order[i], true
}

// Allocated reports whether id was ever handed out by this store.
func (s *RowStore) Allocated(id int64) bool {
	return id > 0 && id < s.nextID
}

// NewID allocates a fresh id.
func (s *RowStore) NewID() int64 {
	id := s.nextID
	s.nextID++
	return id
}

// Adopt reserves an id chosen elsewhere. It fails for ids already allocated.
func (s *RowStore) Adopt(id int64) bool {
	if id <= 0 || s.Allocated(id) {
		return false
	}
	s.nextID = id + 1
	return true
}

// Append adds a new row with a fresh id at the end.
func (s *RowStore) Append(fields map[string]any, src Provenance) *Row {
	r := newRow(s.NewID(), fields, src)
	s.order = append(s.order, r)
	s.byID[r.ID] = r
	return r
}

// Replace sets the live rows to rows, in order. Rows left out are deleted.
func (s *RowStore) Replace(rows []*Row) {
	s.order = rows
	s.byID = make(map[int64]*Row, len(rows))
	for _, r := range rows {
		s.byID[r.ID] = r
		if r.ID >= s.nextID {
			s.nextID = r.ID + 1
		}
	}
}

// Remove deletes the rows with the given ids and returns how many existed.
func (s *RowStore) Remove(ids ...int64) int {
	drop := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if _, ok := s.byID[id]; ok {
			drop[id] = true
			delete(s.byID, id)
		}
	}
	if len(drop) == 0 {
		return 0
	}
	kept := s.order[:0]
	for _, r := range s.order {
		if !drop[r.ID] {
			kept = append(kept, r)
		}
	}
	for i := len(kept); i < len(s.order); i++ {
		s.order[i] = nil
	}
	s.order = kept
	return len(drop)
}

// Reset deletes every row and seeds n blank ones. Ids keep counting up.
func (s *RowStore) Reset(n int) {
	s.order = nil
	s.byID = make(map[int64]*Row, n)
	for i := 0; i < n; i++ {
		s.Append(nil, ProvenanceSeed)
	}
}

// Package searchspace materializes contacts into the records compared by a deduplication run
package searchspace

import (
	"github.com/Ramsey-B/clover/pkg/models"
)

// SearchSpace is an insertion-ordered set of contact records keyed by contact id.
// It is built once per run; a pass that reads it concurrently must not mutate it.
type SearchSpace struct {
	ids     []string
	records map[string]models.ContactRecord
	// position of every id in ids, or -1 once removed
	index map[string]int
	size  int
}

// New creates an empty search space.
func New() *SearchSpace {
	return &SearchSpace{
		records: make(map[string]models.ContactRecord),
		index:   make(map[string]int),
	}
}

// Add inserts or replaces a record. Replacing keeps the original position.
func (s *SearchSpace) Add(record models.ContactRecord) {
	if pos, ok := s.index[record.ID]; ok && pos >= 0 {
		s.records[record.ID] = record
		return
	}
	s.index[record.ID] = len(s.ids)
	s.ids = append(s.ids, record.ID)
	s.records[record.ID] = record
	s.size++
}

// Get returns the record for id.
func (s *SearchSpace) Get(id string) (models.ContactRecord, bool) {
	r, ok := s.records[id]
	return r, ok
}

// Has reports whether id is in the space.
func (s *SearchSpace) Has(id string) bool {
	_, ok := s.records[id]
	return ok
}

// Len returns the number of records.
func (s *SearchSpace) Len() int {
	return s.size
}

// Remove deletes id from the space and reports whether it was present.
func (s *SearchSpace) Remove(id string) bool {
	pos, ok := s.index[id]
	if !ok || pos < 0 {
		return false
	}
	delete(s.records, id)
	s.index[id] = -1
	s.size--
	return true
}

// Range calls fn for every record in insertion order until fn returns false.
func (s *SearchSpace) Range(fn func(id string, record models.ContactRecord) bool) {
	for pos, id := range s.ids {
		if s.index[id] != pos {
			continue
		}
		r := s.records[id]
		if !fn(id, r) {
			return
		}
	}
}

// IDs returns the ids in insertion order.
func (s *SearchSpace) IDs() []string {
	ids := make([]string, 0, s.size)
	s.Range(func(id string, _ models.ContactRecord) bool {
		ids = append(ids, id)
		return true
	})
	return ids
}

// Clone returns an independent copy. Records are copied by value.
func (s *SearchSpace) Clone() *SearchSpace {
	c := New()
	s.Range(func(_ string, record models.ContactRecord) bool {
		c.Add(record)
		return true
	})
	return c
}

// Without returns a read-only view of s that hides every id for which exclude returns true.
func (s *SearchSpace) Without(exclude func(id string) bool) *View {
	return &View{space: s, exclude: exclude}
}

// View is a filtered, read-only window on a SearchSpace.
type View struct {
	space   *SearchSpace
	exclude func(id string) bool
}

// Range calls fn for every visible record in insertion order until fn returns false.
func (v *View) Range(fn func(id string, record models.ContactRecord) bool) {
	v.space.Range(func(id string, record models.ContactRecord) bool {
		if v.exclude != nil && v.exclude(id) {
			return true
		}
		return fn(id, record)
	})
}

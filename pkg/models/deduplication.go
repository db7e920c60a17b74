package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// DeduplicationStatus is the lifecycle state of a deduplication job.
type DeduplicationStatus string

const (
	DeduplicationStatusNew        DeduplicationStatus = "new"
	DeduplicationStatusProcessing DeduplicationStatus = "processing"
	DeduplicationStatusReview     DeduplicationStatus = "review"
)

var deduplicationTransitions = map[DeduplicationStatus][]DeduplicationStatus{
	DeduplicationStatusNew:        {DeduplicationStatusProcessing},
	DeduplicationStatusProcessing: {DeduplicationStatusReview, DeduplicationStatusNew},
	DeduplicationStatusReview:     {DeduplicationStatusProcessing},
}

// CanTransition reports whether a job may move from one status to another.
// A failed run moves processing back to new.
func (s DeduplicationStatus) CanTransition(to DeduplicationStatus) bool {
	for _, next := range deduplicationTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known status.
func (s DeduplicationStatus) Valid() bool {
	_, ok := deduplicationTransitions[s]
	return ok
}

// Deduplication is a deduplication job over all contacts or over a set of groups.
type Deduplication struct {
	ID                   string              `json:"id" db:"id"`
	Status               DeduplicationStatus `json:"status" db:"status"`
	LastDeduplication    *time.Time          `json:"last_deduplication,omitempty" db:"last_deduplication"`
	DuplicateContacts    string              `json:"duplicate_contacts" db:"duplicate_contacts"`
	DeduplicatedContacts string              `json:"deduplicated_contacts" db:"deduplicated_contacts"`
	MaxDisplay           int                 `json:"max_display" db:"max_display"`
	MinScoreDisplay      float64             `json:"min_score_display" db:"min_score_display"`
	CreatedAt            time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time           `json:"updated_at" db:"updated_at"`
	Groups               []string            `json:"groups" db:"-"`
}

// Duplicates decodes the stored duplicate map. An empty column is an empty map.
func (d *Deduplication) Duplicates() (DuplicateMap, error) {
	if d.DuplicateContacts == "" {
		return DuplicateMap{}, nil
	}
	var m DuplicateMap
	if err := json.Unmarshal([]byte(d.DuplicateContacts), &m); err != nil {
		return nil, fmt.Errorf("failed to decode duplicate contacts of deduplication %s: %w", d.ID, err)
	}
	return m, nil
}

// Resolved decodes the stored list of resolved pair keys.
func (d *Deduplication) Resolved() ([]string, error) {
	if d.DeduplicatedContacts == "" {
		return nil, nil
	}
	var keys []string
	if err := json.Unmarshal([]byte(d.DeduplicatedContacts), &keys); err != nil {
		return nil, fmt.Errorf("failed to decode deduplicated contacts of deduplication %s: %w", d.ID, err)
	}
	return keys, nil
}

// CreateDeduplicationRequest is the input for creating a deduplication job.
type CreateDeduplicationRequest struct {
	Groups          []string `json:"groups"`
	MaxDisplay      int      `json:"max_display" validate:"gte=0"`
	MinScoreDisplay float64  `json:"min_score_display" validate:"gte=0"`
}

// MatchCandidate is a scored candidate duplicate of a record.
type MatchCandidate struct {
	Score  float64       `json:"score"`
	Record ContactRecord `json:"record"`
}

// DuplicateMap maps a source contact id to its candidate ids and scores.
type DuplicateMap map[string]map[string]float64

// Add records a candidate for a source.
func (m DuplicateMap) Add(sourceID, candidateID string, score float64) {
	candidates, ok := m[sourceID]
	if !ok {
		candidates = make(map[string]float64)
		m[sourceID] = candidates
	}
	candidates[candidateID] = score
}

// Merge copies every entry of other into m.
func (m DuplicateMap) Merge(other DuplicateMap) {
	for source, candidates := range other {
		for candidate, score := range candidates {
			m.Add(source, candidate, score)
		}
	}
}

// Sources returns the source ids in ascending order.
func (m DuplicateMap) Sources() []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// PairCount returns the number of (source, candidate) pairs.
func (m DuplicateMap) PairCount() int {
	n := 0
	for _, candidates := range m {
		n += len(candidates)
	}
	return n
}

// PairKey is the key of a resolved pair in the deduplicated set.
func PairKey(a, b string) string {
	return a + "_" + b
}

// PairSet is a set of resolved pair keys.
type PairSet map[string]struct{}

// NewPairSet builds a set from pair keys.
func NewPairSet(keys ...string) PairSet {
	s := make(PairSet, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

// Has reports whether the exact key is in the set.
func (s PairSet) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// Contains reports whether the unordered pair (a, b) is in the set.
func (s PairSet) Contains(a, b string) bool {
	return s.Has(PairKey(a, b)) || s.Has(PairKey(b, a))
}

// DeduplicationCheckpoint is the partial result of a run after Processed of Total targets.
// Fingerprint identifies the targets and search space the run was started with.
type DeduplicationCheckpoint struct {
	JobID       string       `json:"job_id" msgpack:"job_id"`
	Processed   int          `json:"processed" msgpack:"processed"`
	Total       int          `json:"total" msgpack:"total"`
	Fingerprint string       `json:"fingerprint" msgpack:"fingerprint"`
	Duplicates  DuplicateMap `json:"duplicates" msgpack:"duplicates"`
}

package matching

import (
	"context"
	"math"
	"sort"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/models"
)

// Space is a read-only set of candidate records keyed by contact id.
type Space interface {
	// Range calls fn for every entry in a stable order until fn returns false.
	Range(fn func(id string, record models.ContactRecord) bool)
}

// Finder ranks the candidates of a search space against a record.
type Finder struct {
	logger ectologger.Logger
	scorer *Scorer
}

// NewFinder creates a new duplicate finder
func NewFinder(logger ectologger.Logger, scorer *Scorer) *Finder {
	return &Finder{
		logger: logger,
		scorer: scorer,
	}
}

// Scorer returns the scorer used by the finder.
func (f *Finder) Scorer() *Scorer {
	return f.scorer
}

// FindDuplicates scores record against every entry of space and returns the entries
// whose score, rounded to two decimals, is strictly above ratioLimit. Candidates are
// ordered by score descending, then by id ascending.
//
// The finder compares against every entry; excluding record itself from space is
// up to the caller.
func (f *Finder) FindDuplicates(ctx context.Context, record models.ContactRecord, space Space, ratioLimit float64) []models.MatchCandidate {
	candidates := make([]models.MatchCandidate, 0)
	if space == nil {
		return candidates
	}

	space.Range(func(id string, candidate models.ContactRecord) bool {
		if id == "" {
			f.logger.WithContext(ctx).WithField("source_id", record.ID).Warn("Skipping search space entry without an id")
			return true
		}

		score := RoundScore(f.scorer.Similar(record, candidate))
		if score > ratioLimit {
			candidate.ID = id
			candidates = append(candidates, models.MatchCandidate{Score: score, Record: candidate})
		}
		return true
	})

	SortCandidates(candidates)
	return candidates
}

// RoundScore rounds a score to two decimals.
func RoundScore(score float64) float64 {
	return math.Round(score*100) / 100
}

// SortCandidates sorts by score descending, then by candidate id ascending.
func SortCandidates(candidates []models.MatchCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Record.ID < candidates[j].Record.ID
	})
}

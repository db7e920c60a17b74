package deduplication

import (
	"context"
	"sort"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// ContactLookup loads contacts by id. Unknown ids are absent from the result.
type ContactLookup interface {
	GetByIDs(ctx context.Context, ids []string) (map[string]models.Contact, error)
}

// ReviewDuplicate is a candidate duplicate of a review entry
type ReviewDuplicate struct {
	ID       string          `json:"id"`
	Score    float64         `json:"score"`
	Contact  *models.Contact `json:"contact,omitempty"`
	Missing  bool            `json:"missing"`
	Resolved bool            `json:"resolved"`
}

// ReviewEntry is a source contact with its candidate duplicates
type ReviewEntry struct {
	ID         string            `json:"id"`
	Contact    *models.Contact   `json:"contact,omitempty"`
	Missing    bool              `json:"missing"`
	Duplicates []ReviewDuplicate `json:"duplicates"`
}

// ReviewPage is one page of a job's review data
type ReviewPage struct {
	DeduplicationID string        `json:"deduplication_id"`
	Page            int           `json:"page"`
	Pages           int           `json:"pages"`
	PerPage         int           `json:"per_page"`
	Total           int           `json:"total"`
	Entries         []ReviewEntry `json:"entries"`
}

// Reviewer builds review pages for jobs in review
type Reviewer struct {
	jobs     JobStore
	contacts ContactLookup
}

// NewReviewer creates a new Reviewer
func NewReviewer(jobs JobStore, contacts ContactLookup) *Reviewer {
	return &Reviewer{
		jobs:     jobs,
		contacts: contacts,
	}
}

// Review returns a page of the job's duplicates. Pages start at 1.
func (r *Reviewer) Review(ctx context.Context, jobID string, page int) (*ReviewPage, error) {
	ctx, span := tracing.StartSpan(ctx, "deduplication.Reviewer.Review")
	defer span.End()

	job, err := r.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return Review(ctx, job, page, r.contacts)
}

// Review returns a page of a job's duplicates.
//
// Sources whose own key "{id}_{id}" is resolved are hidden. Duplicates scoring below the job's
// min_score_display are hidden and the rest are ordered by score then id, both descending.
// Sources are ordered by id and paged by max_display. Contacts that no longer exist are flagged
// as missing.
func Review(ctx context.Context, job *models.Deduplication, page int, lookup ContactLookup) (*ReviewPage, error) {
	duplicates, err := job.Duplicates()
	if err != nil {
		return nil, err
	}
	resolvedKeys, err := job.Resolved()
	if err != nil {
		return nil, err
	}
	resolved := models.NewPairSet(resolvedKeys...)

	perPage := job.MaxDisplay
	if perPage <= 0 {
		perPage = 25
	}
	if page < 1 {
		page = 1
	}

	var visible []ReviewEntry
	for _, source := range duplicates.Sources() {
		if resolved.Has(models.PairKey(source, source)) {
			continue
		}
		entry := ReviewEntry{
			ID:         source,
			Duplicates: []ReviewDuplicate{},
		}
		for id, score := range duplicates[source] {
			if score < job.MinScoreDisplay {
				continue
			}
			entry.Duplicates = append(entry.Duplicates, ReviewDuplicate{
				ID:       id,
				Score:    score,
				Resolved: resolved.Has(models.PairKey(source, id)),
			})
		}
		sort.Slice(entry.Duplicates, func(i, j int) bool {
			a, b := entry.Duplicates[i], entry.Duplicates[j]
			if a.Score != b.Score {
				return a.Score > b.Score
			}
			return a.ID > b.ID
		})
		visible = append(visible, entry)
	}

	result := &ReviewPage{
		DeduplicationID: job.ID,
		Page:            page,
		Pages:           (len(visible) + perPage - 1) / perPage,
		PerPage:         perPage,
		Total:           len(visible),
		Entries:         []ReviewEntry{},
	}

	from := (page - 1) * perPage
	if from >= len(visible) {
		return result, nil
	}
	entries := visible[from:min(from+perPage, len(visible))]

	contacts, err := lookup.GetByIDs(ctx, pageContactIDs(entries))
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].Contact, entries[i].Missing = contactOrMissing(contacts, entries[i].ID)
		for j := range entries[i].Duplicates {
			d := &entries[i].Duplicates[j]
			d.Contact, d.Missing = contactOrMissing(contacts, d.ID)
		}
	}
	result.Entries = entries

	return result, nil
}

func pageContactIDs(entries []ReviewEntry) []string {
	seen := make(map[string]struct{})
	var ids []string
	add := func(id string) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, e := range entries {
		add(e.ID)
		for _, d := range e.Duplicates {
			add(d.ID)
		}
	}
	return ids
}

func contactOrMissing(contacts map[string]models.Contact, id string) (*models.Contact, bool) {
	c, ok := contacts[id]
	if !ok {
		return nil, true
	}
	return &c, false
}

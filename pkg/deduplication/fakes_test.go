package deduplication

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/events"
	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/redis"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func newTestFinder() *matching.Finder {
	return matching.NewFinder(testLogger(), matching.NewScorer(matching.DefaultConfig()))
}

func emailRecord(id, email string) models.ContactRecord {
	return models.ContactRecord{ID: id, Email: email}
}

func emailContact(id, email string) models.Contact {
	return models.Contact{ID: id, Email: email}
}

func notFound(id string) error {
	return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("%s not found", id))
}

type transition struct {
	from, to models.DeduplicationStatus
}

type fakeJobStore struct {
	mu          sync.Mutex
	jobs        map[string]*models.Deduplication
	transitions []transition
	listErr     error
}

func newFakeJobStore(jobs ...*models.Deduplication) *fakeJobStore {
	s := &fakeJobStore{jobs: make(map[string]*models.Deduplication)}
	for _, j := range jobs {
		s.jobs[j.ID] = j
	}
	return s
}

func (s *fakeJobStore) Get(_ context.Context, id string) (*models.Deduplication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, notFound(id)
	}
	cp := *j
	return &cp, nil
}

func (s *fakeJobStore) ListByStatus(_ context.Context, status models.DeduplicationStatus) ([]models.Deduplication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []models.Deduplication
	for _, j := range s.jobs {
		if j.Status == status {
			out = append(out, *j)
		}
	}
	return out, nil
}

func (s *fakeJobStore) UpdateStatus(_ context.Context, id string, from, to models.DeduplicationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return notFound(id)
	}
	if j.Status != from {
		return httperror.NewHTTPError(http.StatusConflict, "status changed")
	}
	j.Status = to
	s.transitions = append(s.transitions, transition{from, to})
	return nil
}

func (s *fakeJobStore) SaveResults(_ context.Context, id string, duplicates string, ranAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return notFound(id)
	}
	j.DuplicateContacts = duplicates
	j.LastDeduplication = &ranAt
	return nil
}

func (s *fakeJobStore) SaveResolved(_ context.Context, id string, resolved string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return notFound(id)
	}
	j.DeduplicatedContacts = resolved
	return nil
}

type fakeContactStore struct {
	contacts []models.Contact
	groups   map[string][]string
	listErr  error
}

func (s *fakeContactStore) List(context.Context) ([]models.Contact, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.contacts, nil
}

func (s *fakeContactStore) ListIDsInGroups(_ context.Context, groups []string) ([]string, error) {
	var ids []string
	for _, g := range groups {
		ids = append(ids, s.groups[g]...)
	}
	return ids, nil
}

func (s *fakeContactStore) GetByIDs(_ context.Context, ids []string) (map[string]models.Contact, error) {
	out := make(map[string]models.Contact)
	for _, id := range ids {
		for _, c := range s.contacts {
			if c.ID == id {
				out[id] = c
			}
		}
	}
	return out, nil
}

type fakeLocker struct {
	held map[string]bool
	keys []string
}

func (l *fakeLocker) WithLock(_ context.Context, key string, _ time.Duration, fn func() error) error {
	if l.held[key] {
		return redis.ErrLockNotAcquired
	}
	l.keys = append(l.keys, key)
	return fn()
}

type fakeCheckpoints struct {
	stored  map[string]*models.DeduplicationCheckpoint
	saved   []int
	deleted []string
}

func newFakeCheckpoints() *fakeCheckpoints {
	return &fakeCheckpoints{stored: make(map[string]*models.DeduplicationCheckpoint)}
}

func (c *fakeCheckpoints) Save(_ context.Context, cp *models.DeduplicationCheckpoint) error {
	dups := models.DuplicateMap{}
	dups.Merge(cp.Duplicates)
	c.stored[cp.JobID] = &models.DeduplicationCheckpoint{JobID: cp.JobID, Processed: cp.Processed, Total: cp.Total, Duplicates: dups}
	c.saved = append(c.saved, cp.Processed)
	return nil
}

func (c *fakeCheckpoints) Load(_ context.Context, jobID string) (*models.DeduplicationCheckpoint, error) {
	return c.stored[jobID], nil
}

func (c *fakeCheckpoints) Delete(_ context.Context, jobID string) error {
	delete(c.stored, jobID)
	c.deleted = append(c.deleted, jobID)
	return nil
}

type fakeEmitter struct {
	completed []events.DeduplicationCompleted
	failed    []events.DeduplicationFailed
	resolved  []events.DeduplicationResolved
}

func (e *fakeEmitter) EmitDeduplicationCompleted(_ context.Context, event events.DeduplicationCompleted) error {
	e.completed = append(e.completed, event)
	return nil
}

func (e *fakeEmitter) EmitDeduplicationFailed(_ context.Context, event events.DeduplicationFailed) error {
	e.failed = append(e.failed, event)
	return nil
}

func (e *fakeEmitter) EmitDeduplicationResolved(_ context.Context, event events.DeduplicationResolved) error {
	e.resolved = append(e.resolved, event)
	return nil
}

type fakeContactWriter struct {
	existing map[string]bool
	updated  map[string]models.ContactUpdate
	deleted  []string
	err      error
}

func newFakeContactWriter(ids ...string) *fakeContactWriter {
	w := &fakeContactWriter{existing: make(map[string]bool), updated: make(map[string]models.ContactUpdate)}
	for _, id := range ids {
		w.existing[id] = true
	}
	return w
}

func (w *fakeContactWriter) Update(_ context.Context, id string, update models.ContactUpdate) error {
	if w.err != nil {
		return w.err
	}
	if !w.existing[id] {
		return notFound(id)
	}
	w.updated[id] = update
	return nil
}

func (w *fakeContactWriter) Delete(_ context.Context, id string) error {
	if w.err != nil {
		return w.err
	}
	if !w.existing[id] {
		return notFound(id)
	}
	delete(w.existing, id)
	w.deleted = append(w.deleted, id)
	return nil
}

package deduplication

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/events"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Resolution actions
const (
	ActionDelete = "delete"
	ActionUpdate = "update"
	ActionIgnore = "ignore"
)

// ContactWriter changes contacts while resolving duplicates
type ContactWriter interface {
	Update(ctx context.Context, id string, update models.ContactUpdate) error
	Delete(ctx context.Context, id string) error
}

// ResolvedEmitter publishes resolution events
type ResolvedEmitter interface {
	EmitDeduplicationResolved(ctx context.Context, event events.DeduplicationResolved) error
}

// Resolution is a reviewer's decision for a set of pairs. Every key is "{source}_{contact}"
// and the action applies to the contact.
type Resolution struct {
	Update map[string]models.ContactUpdate `json:"update"`
	Delete []string                        `json:"delete"`
	Ignore []string                        `json:"ignore"`
}

// ResolveResult reports what a resolution did
type ResolveResult struct {
	Messages []string `json:"messages"`
	Errors   []string `json:"errors"`
	Resolved []string `json:"resolved"`
}

// Resolver applies resolutions to jobs in review
type Resolver struct {
	logger   ectologger.Logger
	jobs     JobStore
	contacts ContactWriter
	emitter  ResolvedEmitter
}

// NewResolver creates a new Resolver. The emitter is optional.
func NewResolver(logger ectologger.Logger, jobs JobStore, contacts ContactWriter, emitter ResolvedEmitter) *Resolver {
	return &Resolver{
		logger:   logger,
		jobs:     jobs,
		contacts: contacts,
		emitter:  emitter,
	}
}

// Resolve deletes, updates and ignores the contacts named by the resolution, then records
// every key as resolved on the job. A contact that no longer exists is reported in the
// result errors and does not fail the resolution.
func (r *Resolver) Resolve(ctx context.Context, jobID string, res Resolution) (*ResolveResult, error) {
	ctx, span := tracing.StartSpan(ctx, "deduplication.Resolver.Resolve")
	defer span.End()

	log := r.logger.WithContext(ctx).WithField("deduplication_id", jobID)

	job, err := r.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != models.DeduplicationStatusReview {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotInReview, jobID, job.Status)
	}
	previous, err := job.Resolved()
	if err != nil {
		return nil, err
	}

	result := &ResolveResult{Messages: []string{}, Errors: []string{}}
	var keys []string
	counts := map[string]int{}

	apply := func(action, key string, fn func(contactID string) error) error {
		contactID, ok := contactFromKey(key)
		if !ok {
			result.Errors = append(result.Errors, fmt.Sprintf("Invalid key %q", key))
			return nil
		}
		if err := fn(contactID); err != nil {
			if httperror.IsHTTPError(err) && httperror.GetStatusCode(err) == http.StatusNotFound {
				result.Errors = append(result.Errors, fmt.Sprintf("Couldn't %s Contact %s, Contact doesn't exist!", action, contactID))
				metrics.RecordResolution(action, false)
				counts["errors"]++
				keys = append(keys, key)
				return nil
			}
			metrics.RecordResolution(action, false)
			return err
		}
		metrics.RecordResolution(action, true)
		counts[action]++
		keys = append(keys, key)
		return nil
	}

	for _, key := range sortedUnique(res.Delete) {
		err := apply(ActionDelete, key, func(id string) error {
			if err := r.contacts.Delete(ctx, id); err != nil {
				return err
			}
			result.Messages = append(result.Messages, fmt.Sprintf("Deleted Contact %s", id))
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	updateKeys := make([]string, 0, len(res.Update))
	for key := range res.Update {
		updateKeys = append(updateKeys, key)
	}
	for _, key := range sortedUnique(updateKeys) {
		update := res.Update[key]
		err := apply(ActionUpdate, key, func(id string) error {
			if err := r.contacts.Update(ctx, id, update); err != nil {
				return err
			}
			result.Messages = append(result.Messages, fmt.Sprintf("Updated Contact %s", id))
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	for _, key := range sortedUnique(res.Ignore) {
		err := apply(ActionIgnore, key, func(id string) error {
			result.Messages = append(result.Messages, fmt.Sprintf("Ignored Contact %s", id))
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	result.Resolved = mergeKeys(keys, previous)
	data, err := json.Marshal(result.Resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to encode resolved contacts of deduplication %s: %w", jobID, err)
	}
	if err := r.jobs.SaveResolved(ctx, jobID, string(data)); err != nil {
		return nil, err
	}

	log.WithFields(map[string]any{
		"deleted": counts[ActionDelete],
		"updated": counts[ActionUpdate],
		"ignored": counts[ActionIgnore],
		"errors":  counts["errors"],
	}).Info("Resolved duplicates")

	if r.emitter != nil {
		if err := r.emitter.EmitDeduplicationResolved(ctx, events.DeduplicationResolved{
			DeduplicationID: jobID,
			Deleted:         counts[ActionDelete],
			Updated:         counts[ActionUpdate],
			Ignored:         counts[ActionIgnore],
			Errors:          counts["errors"],
		}); err != nil {
			log.WithError(err).Warn("Failed to emit deduplication resolved event")
		}
	}

	return result, nil
}

// contactFromKey returns the contact part of a "{source}_{contact}" key.
func contactFromKey(key string) (string, bool) {
	source, contact, ok := strings.Cut(key, "_")
	if !ok || source == "" || contact == "" {
		return "", false
	}
	return contact, true
}

func sortedUnique(keys []string) []string {
	out := uniqueTargets(keys)
	sort.Strings(out)
	return out
}

// mergeKeys returns the new keys followed by the previous keys that are not repeated.
func mergeKeys(added, previous []string) []string {
	return uniqueTargets(append(append([]string{}, added...), previous...))
}

package deduplication

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/events"
	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/searchspace"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// ContactStore reads the contacts a job runs over
type ContactStore interface {
	List(ctx context.Context) ([]models.Contact, error)
	ListIDsInGroups(ctx context.Context, groups []string) ([]string, error)
}

// JobStore persists deduplication jobs
type JobStore interface {
	Get(ctx context.Context, id string) (*models.Deduplication, error)
	ListByStatus(ctx context.Context, status models.DeduplicationStatus) ([]models.Deduplication, error)
	UpdateStatus(ctx context.Context, id string, from, to models.DeduplicationStatus) error
	SaveResults(ctx context.Context, id string, duplicates string, ranAt time.Time) error
	SaveResolved(ctx context.Context, id string, resolved string) error
}

// Locker serializes runs of the same job across workers
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func() error) error
}

// CheckpointStore keeps partial results of a running job
type CheckpointStore interface {
	Save(ctx context.Context, cp *models.DeduplicationCheckpoint) error
	Load(ctx context.Context, jobID string) (*models.DeduplicationCheckpoint, error)
	Delete(ctx context.Context, jobID string) error
}

// EventEmitter publishes job lifecycle events
type EventEmitter interface {
	EmitDeduplicationCompleted(ctx context.Context, event events.DeduplicationCompleted) error
	EmitDeduplicationFailed(ctx context.Context, event events.DeduplicationFailed) error
}

// RunnerOptions tune a Runner
type RunnerOptions struct {
	Workers         int
	CheckpointEvery int
	LockTTL         time.Duration
}

// RunResult summarizes a finished run
type RunResult struct {
	DeduplicationID string
	Targets         int
	Duplicates      models.DuplicateMap
	Duration        time.Duration
}

// Runner executes deduplication jobs end to end
type Runner struct {
	logger      ectologger.Logger
	contacts    ContactStore
	jobs        JobStore
	newBuilder  func() *searchspace.Builder
	finder      *matching.Finder
	locker      Locker
	checkpoints CheckpointStore
	emitter     EventEmitter
	opts        RunnerOptions
}

// RunnerDeps are the collaborators of a Runner. Locker, Checkpoints and Emitter are optional.
// NewBuilder is called once per run so no country cache outlives a run; it defaults to
// searchspace.NewBuilder.
type RunnerDeps struct {
	Contacts    ContactStore
	Jobs        JobStore
	NewBuilder  func() *searchspace.Builder
	Finder      *matching.Finder
	Locker      Locker
	Checkpoints CheckpointStore
	Emitter     EventEmitter
}

// NewRunner creates a new Runner
func NewRunner(logger ectologger.Logger, deps RunnerDeps, opts RunnerOptions) *Runner {
	if opts.LockTTL <= 0 {
		opts.LockTTL = 5 * time.Minute
	}
	newBuilder := deps.NewBuilder
	if newBuilder == nil {
		newBuilder = func() *searchspace.Builder {
			return searchspace.NewBuilder(logger, nil)
		}
	}
	return &Runner{
		logger:      logger,
		contacts:    deps.Contacts,
		jobs:        deps.Jobs,
		newBuilder:  newBuilder,
		finder:      deps.Finder,
		locker:      deps.Locker,
		checkpoints: deps.Checkpoints,
		emitter:     deps.Emitter,
		opts:        opts,
	}
}

// Run runs a job. The job moves to processing, its duplicates are stored and it moves to
// review. A failed run moves the job back to new.
func (r *Runner) Run(ctx context.Context, jobID string) (*RunResult, error) {
	ctx, span := tracing.StartSpan(ctx, "deduplication.Runner.Run")
	defer span.End()

	if r.locker == nil {
		return r.run(ctx, jobID)
	}

	var result *RunResult
	err := r.locker.WithLock(ctx, "deduplication:"+jobID, r.opts.LockTTL, func() error {
		var err error
		result, err = r.run(ctx, jobID)
		return err
	})
	if errors.Is(err, redis.ErrLockNotAcquired) {
		metrics.DeduplicationRunsTotal.WithLabelValues(metrics.StatusLocked).Inc()
		return nil, fmt.Errorf("%w: %s", ErrJobLocked, jobID)
	}
	return result, err
}

func (r *Runner) run(ctx context.Context, jobID string) (*RunResult, error) {
	log := r.logger.WithContext(ctx).WithField("deduplication_id", jobID)

	job, err := r.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !job.Status.CanTransition(models.DeduplicationStatusProcessing) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, job.Status, models.DeduplicationStatusProcessing)
	}
	if err := r.jobs.UpdateStatus(ctx, jobID, job.Status, models.DeduplicationStatusProcessing); err != nil {
		return nil, err
	}

	metrics.RunsInFlight.Inc()
	defer metrics.RunsInFlight.Dec()

	started := time.Now()
	log.WithField("groups", job.Groups).Info("Starting deduplication")

	result, err := r.execute(ctx, job, started)
	if err != nil {
		r.fail(ctx, jobID, err)
		metrics.RecordRun(metrics.StatusFailed, time.Since(started).Seconds(), 0, 0)
		return nil, err
	}

	result.Duration = time.Since(started)
	metrics.RecordRun(metrics.StatusSuccess, result.Duration.Seconds(), result.Targets, result.Duplicates.PairCount())

	if r.emitter != nil {
		if err := r.emitter.EmitDeduplicationCompleted(ctx, events.DeduplicationCompleted{
			DeduplicationID: jobID,
			Groups:          job.Groups,
			Targets:         result.Targets,
			Sources:         len(result.Duplicates),
			Pairs:           result.Duplicates.PairCount(),
			Duration:        result.Duration,
		}); err != nil {
			log.WithError(err).Warn("Failed to emit deduplication completed event")
		}
	}

	log.WithFields(map[string]any{
		"targets":  result.Targets,
		"sources":  len(result.Duplicates),
		"pairs":    result.Duplicates.PairCount(),
		"duration": result.Duration.String(),
	}).Info("Deduplication finished")

	return result, nil
}

func (r *Runner) execute(ctx context.Context, job *models.Deduplication, started time.Time) (*RunResult, error) {
	contacts, err := r.contacts.List(ctx)
	if err != nil {
		return nil, err
	}
	space := r.newBuilder().FromContacts(ctx, contacts)

	targets := space.IDs()
	if len(job.Groups) > 0 {
		targets, err = r.contacts.ListIDsInGroups(ctx, job.Groups)
		if err != nil {
			return nil, err
		}
	}

	excluded, err := r.excludedPairs(ctx, job)
	if err != nil {
		return nil, err
	}

	duplicates, err := r.scan(ctx, job.ID, space, targets, excluded)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(duplicates)
	if err != nil {
		return nil, fmt.Errorf("failed to encode duplicates of deduplication %s: %w", job.ID, err)
	}
	if err := r.jobs.SaveResults(ctx, job.ID, string(data), started); err != nil {
		return nil, err
	}
	if err := r.jobs.UpdateStatus(ctx, job.ID, models.DeduplicationStatusProcessing, models.DeduplicationStatusReview); err != nil {
		return nil, err
	}

	if r.checkpoints != nil {
		if err := r.checkpoints.Delete(ctx, job.ID); err != nil {
			r.logger.WithContext(ctx).WithError(err).WithField("deduplication_id", job.ID).Warn("Failed to delete checkpoint")
		}
	}

	return &RunResult{
		DeduplicationID: job.ID,
		Targets:         len(uniqueTargets(targets)),
		Duplicates:      duplicates,
	}, nil
}

func (r *Runner) scan(ctx context.Context, jobID string, space *searchspace.SearchSpace, targets []string, excluded models.PairSet) (models.DuplicateMap, error) {
	opts := Options{
		Workers:         r.opts.Workers,
		CheckpointEvery: r.opts.CheckpointEvery,
	}

	var resume *models.DeduplicationCheckpoint
	if r.checkpoints != nil {
		opts.OnCheckpoint = func(ctx context.Context, cp *models.DeduplicationCheckpoint) error {
			cp.JobID = jobID
			return r.checkpoints.Save(ctx, cp)
		}

		cp, err := r.checkpoints.Load(ctx, jobID)
		if err != nil {
			r.logger.WithContext(ctx).WithError(err).WithField("deduplication_id", jobID).Warn("Failed to load checkpoint, starting over")
		} else {
			resume = cp
		}
	}

	dedup := NewDeduplicator(r.logger, r.finder, opts)
	duplicates, err := dedup.RunTargets(ctx, space, targets, excluded, resume)
	if errors.Is(err, ErrCheckpointMismatch) {
		r.logger.WithContext(ctx).WithError(err).WithField("deduplication_id", jobID).Warn("Discarding stale checkpoint")
		return dedup.RunTargets(ctx, space, targets, excluded, nil)
	}
	return duplicates, err
}

// excludedPairs unions the resolved pairs of the job and of every job in review.
func (r *Runner) excludedPairs(ctx context.Context, job *models.Deduplication) (models.PairSet, error) {
	excluded := models.NewPairSet()

	own, err := job.Resolved()
	if err != nil {
		return nil, err
	}
	for _, key := range own {
		excluded[key] = struct{}{}
	}

	reviewing, err := r.jobs.ListByStatus(ctx, models.DeduplicationStatusReview)
	if err != nil {
		return nil, err
	}
	for _, other := range reviewing {
		keys, err := other.Resolved()
		if err != nil {
			r.logger.WithContext(ctx).WithError(err).WithField("deduplication_id", other.ID).Warn("Ignoring unreadable resolved pairs")
			continue
		}
		for _, key := range keys {
			excluded[key] = struct{}{}
		}
	}
	return excluded, nil
}

func (r *Runner) fail(ctx context.Context, jobID string, cause error) {
	ctx = context.WithoutCancel(ctx)
	log := r.logger.WithContext(ctx).WithField("deduplication_id", jobID)
	log.WithError(cause).Error("Deduplication failed")

	if err := r.jobs.UpdateStatus(ctx, jobID, models.DeduplicationStatusProcessing, models.DeduplicationStatusNew); err != nil {
		log.WithError(err).Error("Failed to reset deduplication status")
	}

	if r.emitter != nil {
		if err := r.emitter.EmitDeduplicationFailed(ctx, events.DeduplicationFailed{
			DeduplicationID: jobID,
			Error:           cause.Error(),
		}); err != nil {
			log.WithError(err).Warn("Failed to emit deduplication failed event")
		}
	}
}

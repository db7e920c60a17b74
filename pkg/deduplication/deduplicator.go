// Package deduplication runs duplicate detection over a set of contacts and manages the
// review and resolution of the duplicates it finds
package deduplication

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Gobusters/ectologger"
	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/errgroup"

	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/searchspace"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Options tune a Deduplicator.
type Options struct {
	// RatioLimit is the score a pair must exceed. Zero means the scorer's overall threshold.
	RatioLimit float64
	// Workers > 1 scans targets in parallel. The result is identical to a sequential scan.
	Workers int
	// CheckpointEvery calls OnCheckpoint after every n targets. Zero disables checkpoints.
	CheckpointEvery int
	OnCheckpoint    func(ctx context.Context, cp *models.DeduplicationCheckpoint) error
}

// Deduplicator finds the duplicate pairs among a set of target records.
type Deduplicator struct {
	logger ectologger.Logger
	finder *matching.Finder
	opts   Options
}

// NewDeduplicator creates a new deduplicator
func NewDeduplicator(logger ectologger.Logger, finder *matching.Finder, opts Options) *Deduplicator {
	if opts.RatioLimit <= 0 {
		opts.RatioLimit = finder.Scorer().Config().OverallThreshold
	}
	return &Deduplicator{
		logger: logger,
		finder: finder,
		opts:   opts,
	}
}

// Run compares every record against the others. Every unordered pair is scored once and
// pairs in excluded are left out.
func (d *Deduplicator) Run(ctx context.Context, records []models.ContactRecord, excluded models.PairSet) (models.DuplicateMap, error) {
	space := searchspace.New()
	for _, r := range records {
		space.Add(r)
	}
	return d.RunTargets(ctx, space, space.IDs(), excluded, nil)
}

// RunTargets scans the given targets against space. Each target is taken out of the
// space before its scan, so it is never compared against itself or against a target
// scanned before it. Targets missing from space are logged and skipped. A checkpoint
// resumes a previous run only when the targets and the space are unchanged.
//
// Errors are only returned for a cancelled context or a failing checkpoint callback.
func (d *Deduplicator) RunTargets(ctx context.Context, space *searchspace.SearchSpace, targets []string, excluded models.PairSet, resume *models.DeduplicationCheckpoint) (models.DuplicateMap, error) {
	ctx, span := tracing.StartSpan(ctx, "deduplication.Deduplicator.RunTargets")
	defer span.End()

	targets = uniqueTargets(targets)
	fingerprint, err := Fingerprint(space, targets)
	if err != nil {
		return nil, err
	}
	log := d.logger.WithContext(ctx).WithFields(map[string]any{
		"targets": len(targets),
		"space":   space.Len(),
		"workers": d.opts.Workers,
	})

	result := models.DuplicateMap{}
	start := 0
	if resume != nil && resume.Processed > 0 {
		if resume.Processed > len(targets) || resume.Total != len(targets) {
			return nil, fmt.Errorf("%w: checkpoint covers %d of %d targets, run has %d", ErrCheckpointMismatch, resume.Processed, resume.Total, len(targets))
		}
		if resume.Fingerprint != fingerprint {
			return nil, fmt.Errorf("%w: targets or contacts changed since the checkpoint", ErrCheckpointMismatch)
		}
		result.Merge(resume.Duplicates)
		start = resume.Processed
		log.WithField("processed", start).Info("Resuming deduplication from checkpoint")
	}

	log.Debug("Starting deduplication scan")

	scan := d.sequentialScan(space, targets, start)
	if d.opts.Workers > 1 {
		scan = d.parallelScan(space, targets)
	}

	chunk := d.opts.CheckpointEvery
	if chunk <= 0 {
		chunk = len(targets)
	}

	for from := start; from < len(targets); from += chunk {
		to := min(from+chunk, len(targets))

		found, err := scan(ctx, from, to)
		if err != nil {
			return nil, err
		}
		for i, candidates := range found {
			d.collect(ctx, result, targets[from+i], candidates, excluded)
		}

		if d.opts.CheckpointEvery > 0 && d.opts.OnCheckpoint != nil {
			cp := &models.DeduplicationCheckpoint{
				Processed:   to,
				Total:       len(targets),
				Fingerprint: fingerprint,
				Duplicates:  result,
			}
			if err := d.opts.OnCheckpoint(ctx, cp); err != nil {
				return nil, fmt.Errorf("failed to checkpoint deduplication: %w", err)
			}
		}
	}

	log.WithFields(map[string]any{
		"sources": len(result),
		"pairs":   result.PairCount(),
	}).Info("Finished deduplication scan")

	return result, nil
}

// scanFunc scans targets[from:to] and returns the candidates found for each of them.
// A nil entry marks a target that could not be scanned.
type scanFunc func(ctx context.Context, from, to int) ([][]models.MatchCandidate, error)

func (d *Deduplicator) sequentialScan(space *searchspace.SearchSpace, targets []string, start int) scanFunc {
	remaining := space.Clone()
	for _, id := range targets[:start] {
		remaining.Remove(id)
	}

	return func(ctx context.Context, from, to int) ([][]models.MatchCandidate, error) {
		found := make([][]models.MatchCandidate, to-from)
		for i := from; i < to; i++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			record, ok := remaining.Get(targets[i])
			if !ok {
				d.logger.WithContext(ctx).WithField("contact_id", targets[i]).Warn("Deduplication target is not in the search space")
				continue
			}
			remaining.Remove(targets[i])
			found[i-from] = d.finder.FindDuplicates(ctx, record, remaining, d.opts.RatioLimit)
		}
		return found, nil
	}
}

func (d *Deduplicator) parallelScan(space *searchspace.SearchSpace, targets []string) scanFunc {
	ordinal := make(map[string]int, len(targets))
	for i, id := range targets {
		ordinal[id] = i
	}

	return func(ctx context.Context, from, to int) ([][]models.MatchCandidate, error) {
		found := make([][]models.MatchCandidate, to-from)

		g, gCtx := errgroup.WithContext(ctx)
		g.SetLimit(d.opts.Workers)
		for i := from; i < to; i++ {
			g.Go(func() error {
				if err := gCtx.Err(); err != nil {
					return err
				}
				record, ok := space.Get(targets[i])
				if !ok {
					d.logger.WithContext(gCtx).WithField("contact_id", targets[i]).Warn("Deduplication target is not in the search space")
					return nil
				}
				// the view matches the sequential scan: this target and every target before it are gone
				view := space.Without(func(id string) bool {
					n, isTarget := ordinal[id]
					return isTarget && n <= i
				})
				found[i-from] = d.finder.FindDuplicates(gCtx, record, view, d.opts.RatioLimit)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return found, nil
	}
}

func (d *Deduplicator) collect(ctx context.Context, result models.DuplicateMap, sourceID string, candidates []models.MatchCandidate, excluded models.PairSet) {
	for _, c := range candidates {
		if excluded.Contains(sourceID, c.Record.ID) {
			d.logger.WithContext(ctx).WithFields(map[string]any{
				"source_id":    sourceID,
				"candidate_id": c.Record.ID,
				"score":        c.Score,
			}).Debug("Skipping resolved duplicate pair")
			metrics.ExcludedPairsSkipped.Inc()
			continue
		}
		result.Add(sourceID, c.Record.ID, c.Score)
	}
}

// Fingerprint hashes the ordered, de-duplicated targets and every record of space.
func Fingerprint(space *searchspace.SearchSpace, targets []string) (string, error) {
	targets = uniqueTargets(targets)
	h := xxhash.New()
	enc := msgpack.NewEncoder(h)

	if err := enc.EncodeArrayLen(len(targets)); err != nil {
		return "", fmt.Errorf("failed to fingerprint targets: %w", err)
	}
	for _, id := range targets {
		if err := enc.EncodeString(id); err != nil {
			return "", fmt.Errorf("failed to fingerprint targets: %w", err)
		}
	}

	var encErr error
	space.Range(func(_ string, record models.ContactRecord) bool {
		encErr = enc.Encode(record)
		return encErr == nil
	})
	if encErr != nil {
		return "", fmt.Errorf("failed to fingerprint search space: %w", encErr)
	}

	return strconv.FormatUint(h.Sum64(), 16), nil
}

func uniqueTargets(targets []string) []string {
	seen := make(map[string]struct{}, len(targets))
	out := make([]string, 0, len(targets))
	for _, id := range targets {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

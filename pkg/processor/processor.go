// Package processor turns deduplication requests read from Kafka into job runs.
package processor

import (
	"context"
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/deduplication"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// JobRunner runs a deduplication job
type JobRunner interface {
	Run(ctx context.Context, jobID string) (*deduplication.RunResult, error)
}

// Processor handles deduplication requests
type Processor struct {
	logger ectologger.Logger
	runner JobRunner
}

// NewProcessor creates a new Processor
func NewProcessor(logger ectologger.Logger, runner JobRunner) *Processor {
	return &Processor{
		logger: logger,
		runner: runner,
	}
}

// Handle runs the requested job. Requests that can never succeed are dropped so that the
// message is committed; any other failure is returned so that the message is retried.
func (p *Processor) Handle(ctx context.Context, msg *kafka.IncomingMessage) error {
	ctx, span := tracing.StartSpan(ctx, "processor.Processor.Handle")
	defer span.End()

	jobID := msg.Request.DeduplicationID
	log := p.logger.WithContext(ctx).WithFields(map[string]any{
		"deduplication_id": jobID,
		"offset":           msg.Offset,
	})

	result, err := p.runner.Run(ctx, jobID)
	switch {
	case err == nil:
		log.WithField("pairs", result.Duplicates.PairCount()).Info("Processed deduplication request")
		return nil
	case errors.Is(err, deduplication.ErrJobLocked):
		log.Info("Deduplication already running elsewhere, dropping request")
		return nil
	case errors.Is(err, deduplication.ErrInvalidTransition):
		log.WithError(err).Warn("Deduplication cannot be run in its current status, dropping request")
		return nil
	case httperror.IsHTTPError(err) && httperror.GetStatusCode(err) == http.StatusNotFound:
		log.WithError(err).Warn("Deduplication does not exist, dropping request")
		return nil
	default:
		return err
	}
}

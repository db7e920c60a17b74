// Package events publishes deduplication lifecycle events.
package events

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/kafka"
)

// Publisher writes an event payload under a key
type Publisher interface {
	Publish(ctx context.Context, key, eventType string, payload any) error
}

// DeduplicationCompleted is emitted when a job reaches review
type DeduplicationCompleted struct {
	DeduplicationID string        `json:"deduplication_id"`
	Groups          []string      `json:"groups,omitempty"`
	Targets         int           `json:"targets"`
	Sources         int           `json:"sources"`
	Pairs           int           `json:"pairs"`
	Duration        time.Duration `json:"duration_ns"`
	CompletedAt     time.Time     `json:"completed_at"`
}

// DeduplicationFailed is emitted when a run fails and the job goes back to new
type DeduplicationFailed struct {
	DeduplicationID string    `json:"deduplication_id"`
	Error           string    `json:"error"`
	FailedAt        time.Time `json:"failed_at"`
}

// DeduplicationResolved is emitted after a batch of resolutions is applied
type DeduplicationResolved struct {
	DeduplicationID string    `json:"deduplication_id"`
	Deleted         int       `json:"deleted"`
	Updated         int       `json:"updated"`
	Ignored         int       `json:"ignored"`
	Errors          int       `json:"errors"`
	ResolvedAt      time.Time `json:"resolved_at"`
}

// Emitter publishes events. A nil publisher turns every emit into a no-op.
type Emitter struct {
	publisher Publisher
	logger    ectologger.Logger
}

// NewEmitter creates a new Emitter
func NewEmitter(publisher Publisher, logger ectologger.Logger) *Emitter {
	return &Emitter{
		publisher: publisher,
		logger:    logger,
	}
}

// EmitDeduplicationCompleted publishes a completed event
func (e *Emitter) EmitDeduplicationCompleted(ctx context.Context, event DeduplicationCompleted) error {
	if event.CompletedAt.IsZero() {
		event.CompletedAt = time.Now().UTC()
	}
	return e.emit(ctx, event.DeduplicationID, kafka.EventDeduplicationCompleted, event)
}

// EmitDeduplicationFailed publishes a failed event
func (e *Emitter) EmitDeduplicationFailed(ctx context.Context, event DeduplicationFailed) error {
	if event.FailedAt.IsZero() {
		event.FailedAt = time.Now().UTC()
	}
	return e.emit(ctx, event.DeduplicationID, kafka.EventDeduplicationFailed, event)
}

// EmitDeduplicationResolved publishes a resolved event
func (e *Emitter) EmitDeduplicationResolved(ctx context.Context, event DeduplicationResolved) error {
	if event.ResolvedAt.IsZero() {
		event.ResolvedAt = time.Now().UTC()
	}
	return e.emit(ctx, event.DeduplicationID, kafka.EventDeduplicationResolved, event)
}

func (e *Emitter) emit(ctx context.Context, key, eventType string, payload any) error {
	if e == nil || e.publisher == nil {
		return nil
	}
	if err := e.publisher.Publish(ctx, key, eventType, payload); err != nil {
		e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"event_type":       eventType,
			"deduplication_id": key,
		}).Error("Failed to emit event")
		return err
	}
	return nil
}

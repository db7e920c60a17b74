package deduplication

import "errors"

var (
	// ErrInvalidTransition is returned when a job cannot move to the requested status.
	ErrInvalidTransition = errors.New("invalid deduplication status transition")
	// ErrJobLocked is returned when another worker is already running the job.
	ErrJobLocked = errors.New("deduplication job is already running")
	// ErrCheckpointMismatch is returned when a checkpoint does not belong to the current run.
	ErrCheckpointMismatch = errors.New("checkpoint does not match the run")
)

// ErrNotInReview is returned when resolving a job that has no results to review.
var ErrNotInReview = errors.New("deduplication job is not in review")

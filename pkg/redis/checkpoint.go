package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/Ramsey-B/clover/pkg/models"
)

// CheckpointStore keeps the partial results of running deduplication jobs
type CheckpointStore struct {
	client    *Client
	keyPrefix string
	ttl       time.Duration
}

// NewCheckpointStore creates a new CheckpointStore. Checkpoints expire after ttl.
func NewCheckpointStore(client *Client, keyPrefix string, ttl time.Duration) *CheckpointStore {
	if keyPrefix == "" {
		keyPrefix = "clover:checkpoint:"
	}
	return &CheckpointStore{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
	}
}

// Save stores the checkpoint of a job, replacing any previous one
func (s *CheckpointStore) Save(ctx context.Context, cp *models.DeduplicationCheckpoint) error {
	data, err := EncodeCheckpoint(cp)
	if err != nil {
		return err
	}
	if err := s.client.rdb.Set(ctx, s.keyPrefix+cp.JobID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save checkpoint of deduplication %s: %w", cp.JobID, err)
	}

	s.client.logger.WithContext(ctx).WithFields(map[string]any{
		"deduplication_id": cp.JobID,
		"processed":        cp.Processed,
		"total":            cp.Total,
	}).Debug("Saved checkpoint")
	return nil
}

// Load returns the checkpoint of a job, or nil when there is none
func (s *CheckpointStore) Load(ctx context.Context, jobID string) (*models.DeduplicationCheckpoint, error) {
	data, err := s.client.rdb.Get(ctx, s.keyPrefix+jobID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint of deduplication %s: %w", jobID, err)
	}
	return DecodeCheckpoint(data)
}

// Delete removes the checkpoint of a job
func (s *CheckpointStore) Delete(ctx context.Context, jobID string) error {
	return s.client.rdb.Del(ctx, s.keyPrefix+jobID).Err()
}

// EncodeCheckpoint serializes a checkpoint with msgpack
func EncodeCheckpoint(cp *models.DeduplicationCheckpoint) ([]byte, error) {
	data, err := msgpack.Marshal(cp)
	if err != nil {
		return nil, fmt.Errorf("failed to encode checkpoint: %w", err)
	}
	return data, nil
}

// DecodeCheckpoint deserializes a checkpoint written by EncodeCheckpoint
func DecodeCheckpoint(data []byte) (*models.DeduplicationCheckpoint, error) {
	var cp models.DeduplicationCheckpoint
	if err := msgpack.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	if cp.Duplicates == nil {
		cp.Duplicates = models.DuplicateMap{}
	}
	return &cp, nil
}

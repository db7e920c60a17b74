package kafka

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Header keys set on every message the service produces
const (
	HeaderEventType   = "event_type"
	HeaderTraceParent = "traceparent"
)

// Event types
const (
	EventDeduplicationRequested = "deduplication.requested"
	EventDeduplicationCompleted = "deduplication.completed"
	EventDeduplicationFailed    = "deduplication.failed"
	EventDeduplicationResolved  = "deduplication.resolved"
)

// ErrMissingDeduplicationID is returned for a request without a job id
var ErrMissingDeduplicationID = errors.New("deduplication_id is required")

// DeduplicationRequest asks a worker to run a deduplication job
type DeduplicationRequest struct {
	DeduplicationID string    `json:"deduplication_id"`
	RequestedAt     time.Time `json:"requested_at"`
}

// IncomingMessage is a fetched message with its headers decoded
type IncomingMessage struct {
	Key       string
	Value     []byte
	Headers   map[string]string
	Partition int
	Offset    int64
	Timestamp time.Time
	Topic     string

	Request *DeduplicationRequest
}

// EventType returns the event_type header
func (m *IncomingMessage) EventType() string {
	return m.Headers[HeaderEventType]
}

// ParseRequest decodes the message value into Request
func (m *IncomingMessage) ParseRequest() error {
	req, err := ParseDeduplicationRequest(m.Value)
	if err != nil {
		return err
	}
	m.Request = req
	return nil
}

// ParseDeduplicationRequest decodes and validates a deduplication request
func ParseDeduplicationRequest(data []byte) (*DeduplicationRequest, error) {
	var req DeduplicationRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse deduplication request: %w", err)
	}
	req.DeduplicationID = strings.TrimSpace(req.DeduplicationID)
	if req.DeduplicationID == "" {
		return nil, ErrMissingDeduplicationID
	}
	return &req, nil
}

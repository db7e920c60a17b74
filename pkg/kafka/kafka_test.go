package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

type fakeWriter struct {
	messages []kafka.Message
	err      error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

// fakeReader serves messages then reports io.EOF.
type fakeReader struct {
	mu        sync.Mutex
	messages  []kafka.Message
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return kafka.Message{}, err
	}
	if len(r.messages) == 0 {
		return kafka.Message{}, io.EOF
	}
	msg := r.messages[0]
	r.messages = r.messages[1:]
	return msg, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func TestParseDeduplicationRequest(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantID  string
		wantErr error
	}{
		{name: "valid", data: `{"deduplication_id":"job-1","requested_at":"2025-01-15T10:30:00Z"}`, wantID: "job-1"},
		{name: "trimmed id", data: `{"deduplication_id":"  job-2 "}`, wantID: "job-2"},
		{name: "missing id", data: `{"requested_at":"2025-01-15T10:30:00Z"}`, wantErr: ErrMissingDeduplicationID},
		{name: "not json", data: `job-1`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := ParseDeduplicationRequest([]byte(tt.data))
			if tt.wantID == "" {
				require.Error(t, err)
				if tt.wantErr != nil {
					assert.ErrorIs(t, err, tt.wantErr)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, req.DeduplicationID)
		})
	}
}

func TestProducer_PublishDeduplicationRequest(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "deduplication-requests", testLogger())

	require.NoError(t, p.PublishDeduplicationRequest(context.Background(), "job-1"))
	require.Len(t, w.messages, 1)

	msg := w.messages[0]
	assert.Equal(t, "deduplication-requests", msg.Topic)
	assert.Equal(t, "job-1", string(msg.Key))
	assert.Equal(t, HeaderEventType, msg.Headers[0].Key)
	assert.Equal(t, EventDeduplicationRequested, string(msg.Headers[0].Value))

	req, err := ParseDeduplicationRequest(msg.Value)
	require.NoError(t, err)
	assert.Equal(t, "job-1", req.DeduplicationID)
	assert.False(t, req.RequestedAt.IsZero())
}

func TestProducer_PublishError(t *testing.T) {
	boom := errors.New("broker down")
	p := newProducer(&fakeWriter{err: boom}, "events", testLogger())
	assert.ErrorIs(t, p.Publish(context.Background(), "k", "test", map[string]string{"a": "b"}), boom)
}

func TestProducer_PublishUnencodable(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "events", testLogger())
	assert.Error(t, p.Publish(context.Background(), "k", "test", func() {}))
	assert.Empty(t, w.messages)
}

func TestConsumer_CommitsHandledAndUnparseable(t *testing.T) {
	request, err := json.Marshal(DeduplicationRequest{DeduplicationID: "job-1"})
	require.NoError(t, err)
	failing, err := json.Marshal(DeduplicationRequest{DeduplicationID: "job-fail"})
	require.NoError(t, err)

	reader := &fakeReader{messages: []kafka.Message{
		{Offset: 1, Value: request, Headers: []kafka.Header{{Key: HeaderEventType, Value: []byte(EventDeduplicationRequested)}}},
		{Offset: 2, Value: []byte("garbage")},
		{Offset: 3, Value: failing},
	}}

	var handled []string
	var eventTypes []string
	handler := func(_ context.Context, msg *IncomingMessage) error {
		handled = append(handled, msg.Request.DeduplicationID)
		eventTypes = append(eventTypes, msg.EventType())
		if msg.Request.DeduplicationID == "job-fail" {
			return errors.New("failed")
		}
		return nil
	}

	c := newConsumer(reader, "deduplication-requests", testLogger(), handler)
	require.NoError(t, c.Start(context.Background()))
	// the fake reader returns io.EOF once drained, which ends the loop
	c.wg.Wait()
	require.NoError(t, c.Stop())

	assert.Equal(t, []string{"job-1", "job-fail"}, handled)
	assert.Equal(t, []string{EventDeduplicationRequested, ""}, eventTypes)
	assert.Equal(t, []int64{1, 2}, reader.committed)
	assert.True(t, c.Health())
}

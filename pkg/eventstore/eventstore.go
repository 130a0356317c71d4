// Package eventstore provides an append-only event log with per-stream
// optimistic concurrency and a global monotonic sequence, backed by either
// an in-memory map (tests) or postgres (production).
package eventstore

import (
	"context"
	"fmt"

	cn "github.com/harborgrid-justin/cadcore/common/constant"
	"github.com/harborgrid-justin/cadcore/pkg/cadmodel"
)

// NewStreamVersion is the expected_version sentinel meaning "this stream
// must not already exist".
const NewStreamVersion = 0

// AnyVersion means "append without checking the current version".
const AnyVersion = -1

// EventData is an event awaiting assignment of version/sequence.
type EventData struct {
	StreamID         string
	EventType        string
	Data             []byte
	ExpectedVersion  int64
	CorrelationID    string
	CausationID      string
	Metadata         map[string]string
}

// StreamSlice is a contiguous run of events read from one stream, along
// with that stream's current version at read time.
type StreamSlice struct {
	StreamID       string
	CurrentVersion uint64
	Events         []cadmodel.StoredEvent
}

// Store is the append/read contract. Implementations must make
// AppendEvents atomic: either every event in the batch lands, or none do.
type Store interface {
	AppendEvents(ctx context.Context, events []EventData) ([]cadmodel.StoredEvent, error)
	ReadStream(ctx context.Context, streamID string, fromVersion uint64, maxCount int) (StreamSlice, error)
	ReadStreamAll(ctx context.Context, streamID string) (StreamSlice, error)
	ReadAll(ctx context.Context, fromSequence uint64, maxCount int) ([]cadmodel.StoredEvent, error)
	GetStreamVersion(ctx context.Context, streamID string) (uint64, error)
	StreamExists(ctx context.Context, streamID string) (bool, error)
	DeleteStream(ctx context.Context, streamID string) error
	GetGlobalSequence(ctx context.Context) (uint64, error)
}

// ConcurrencyConflictError reports the expected vs. actual stream version.
type ConcurrencyConflictError struct {
	StreamID string
	Expected int64
	Actual   uint64
}

func (e *ConcurrencyConflictError) Error() string {
	return fmt.Sprintf("concurrency conflict on stream %s: expected version %d but stream is at %d",
		e.StreamID, e.Expected, e.Actual)
}

func (e *ConcurrencyConflictError) Unwrap() error { return cn.ErrConcurrencyConflict }

func newConcurrencyConflict(streamID string, expected int64, actual uint64) error {
	return &ConcurrencyConflictError{StreamID: streamID, Expected: expected, Actual: actual}
}

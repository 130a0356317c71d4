package eventstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harborgrid-justin/cadcore/pkg/cadmodel"
)

// InMemory is a mutex-guarded event store for tests and local development.
// It has no durability guarantee: events do not survive process restart.
type InMemory struct {
	mu             sync.RWMutex
	streams        map[string][]cadmodel.StoredEvent
	globalLog      []cadmodel.StoredEvent
	globalSequence uint64
	deleted        map[string]bool
}

// NewInMemory returns an empty in-memory event store.
func NewInMemory() *InMemory {
	return &InMemory{
		streams: make(map[string][]cadmodel.StoredEvent),
		deleted: make(map[string]bool),
	}
}

// Clear wipes all streams and resets the global sequence. Useful between
// test cases that share a store instance.
func (s *InMemory) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.streams = make(map[string][]cadmodel.StoredEvent)
	s.deleted = make(map[string]bool)
	s.globalLog = nil
	s.globalSequence = 0
}

func (s *InMemory) AppendEvents(_ context.Context, events []EventData) ([]cadmodel.StoredEvent, error) {
	if len(events) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	order := make([]string, 0, 4)
	byStream := make(map[string][]EventData)

	for _, e := range events {
		if _, ok := byStream[e.StreamID]; !ok {
			order = append(order, e.StreamID)
		}

		byStream[e.StreamID] = append(byStream[e.StreamID], e)
	}

	var stored []cadmodel.StoredEvent

	for _, streamID := range order {
		current := uint64(len(s.streams[streamID]))

		if first := byStream[streamID][0]; first.ExpectedVersion >= 0 {
			expected := uint64(first.ExpectedVersion)
			if expected != current {
				return nil, newConcurrencyConflict(streamID, first.ExpectedVersion, current)
			}
		}
	}

	for _, streamID := range order {
		streamEvents := byStream[streamID]
		current := uint64(len(s.streams[streamID]))

		for i, e := range streamEvents {
			s.globalSequence++
			version := current + uint64(i) + 1

			meta := cadmodel.EventMetadata{
				EventID:       uuid.NewString(),
				StreamID:      streamID,
				EventType:     e.EventType,
				Version:       version,
				Sequence:      s.globalSequence,
				Timestamp:     time.Now().UTC(),
				CorrelationID: e.CorrelationID,
				CausationID:   e.CausationID,
				Metadata:      e.Metadata,
				EventVersion:  "1",
			}

			se := cadmodel.StoredEvent{EventMetadata: meta, Payload: e.Data}

			s.streams[streamID] = append(s.streams[streamID], se)
			s.globalLog = append(s.globalLog, se)
			stored = append(stored, se)
		}

		delete(s.deleted, streamID)
	}

	return stored, nil
}

func (s *InMemory) ReadStream(_ context.Context, streamID string, fromVersion uint64, maxCount int) (StreamSlice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.deleted[streamID] {
		return StreamSlice{StreamID: streamID}, nil
	}

	stream := s.streams[streamID]

	startIdx := 0
	if fromVersion > 1 {
		startIdx = int(fromVersion - 1)
	}

	if startIdx > len(stream) {
		startIdx = len(stream)
	}

	end := len(stream)
	if maxCount >= 0 && startIdx+maxCount < end {
		end = startIdx + maxCount
	}

	events := append([]cadmodel.StoredEvent(nil), stream[startIdx:end]...)

	return StreamSlice{
		StreamID:       streamID,
		CurrentVersion: uint64(len(stream)),
		Events:         events,
	}, nil
}

func (s *InMemory) ReadStreamAll(ctx context.Context, streamID string) (StreamSlice, error) {
	return s.ReadStream(ctx, streamID, 0, -1)
}

func (s *InMemory) ReadAll(_ context.Context, fromSequence uint64, maxCount int) ([]cadmodel.StoredEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	startIdx := 0
	if fromSequence > 1 {
		startIdx = int(fromSequence - 1)
	}

	if startIdx > len(s.globalLog) {
		startIdx = len(s.globalLog)
	}

	end := len(s.globalLog)
	if maxCount >= 0 && startIdx+maxCount < end {
		end = startIdx + maxCount
	}

	return append([]cadmodel.StoredEvent(nil), s.globalLog[startIdx:end]...), nil
}

func (s *InMemory) GetStreamVersion(_ context.Context, streamID string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.deleted[streamID] {
		return 0, nil
	}

	return uint64(len(s.streams[streamID])), nil
}

func (s *InMemory) StreamExists(_ context.Context, streamID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.deleted[streamID] {
		return false, nil
	}

	_, ok := s.streams[streamID]

	return ok, nil
}

func (s *InMemory) DeleteStream(_ context.Context, streamID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deleted[streamID] = true

	return nil
}

func (s *InMemory) GetGlobalSequence(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.globalSequence, nil
}

package cadmodel

import "time"

// EventMetadata carries the envelope around an opaque event payload.
type EventMetadata struct {
	EventID       string            `json:"event_id"`
	StreamID      string            `json:"stream_id"`
	EventType     string            `json:"event_type"`
	Version       uint64            `json:"version"`
	Sequence      uint64            `json:"sequence"`
	Timestamp     time.Time         `json:"timestamp"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	CausationID   string            `json:"causation_id,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	EventVersion  string            `json:"event_version"`
}

// StoredEvent is event metadata plus its opaque serialized payload.
type StoredEvent struct {
	EventMetadata
	Payload []byte `json:"payload"`
}

// NewEvent constructs an event awaiting assignment of version/sequence by
// the event store. EventVersion defaults to "1" per the upcast tag
// convention.
func NewEvent(streamID, eventType string, payload []byte) StoredEvent {
	return StoredEvent{
		EventMetadata: EventMetadata{
			StreamID:     streamID,
			EventType:    eventType,
			Metadata:     make(map[string]string),
			EventVersion: "1",
		},
		Payload: payload,
	}
}

// Snapshot is a point-in-time serialization of an aggregate's state.
type Snapshot struct {
	AggregateID   string            `json:"aggregate_id"`
	AggregateType string            `json:"aggregate_type"`
	Version       uint64            `json:"version"`
	Data          []byte            `json:"data"`
	Timestamp     time.Time         `json:"timestamp"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

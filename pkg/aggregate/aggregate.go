// Package aggregate loads and saves event-sourced aggregates against an
// eventstore.Store, folding events to rebuild state and optionally
// consulting a snapshot store to skip full replay.
package aggregate

import (
	"context"
	"fmt"

	"github.com/harborgrid-justin/cadcore/pkg/cadmodel"
	"github.com/harborgrid-justin/cadcore/pkg/eventstore"
)

// Root is the contract an aggregate type must satisfy to be loaded and
// saved through Repository. ApplyEvent must be a pure state transition:
// given the same starting state and event, it always produces the same
// resulting state.
type Root interface {
	AggregateID() string
	Version() uint64
	ApplyEvent(eventType string, payload []byte) error
}

// Factory default-constructs a fresh, empty aggregate of type T.
type Factory[T Root] func() T

// Repository loads and saves aggregates of type T against an event
// store, optionally backed by a SnapshotStore for faster loads.
type Repository[T Root] struct {
	Store          eventstore.Store
	NewAggregate   Factory[T]
	Snapshots      SnapshotStore
	SnapshotPolicy SnapshotPolicy
	AggregateType  string
}

// NewRepository returns a repository with snapshotting disabled. Attach
// Snapshots and SnapshotPolicy afterward to enable it.
func NewRepository[T Root](store eventstore.Store, newAggregate Factory[T], aggregateType string) *Repository[T] {
	return &Repository[T]{
		Store:          store,
		NewAggregate:   newAggregate,
		SnapshotPolicy: Never{},
		AggregateType:  aggregateType,
	}
}

// Load rebuilds the aggregate identified by streamID. It returns
// (zero-value, false, nil) if the stream is empty and no snapshot exists.
func (r *Repository[T]) Load(ctx context.Context, streamID string) (T, bool, error) {
	var zero T

	if r.Snapshots != nil {
		snap, ok, err := r.Snapshots.Load(ctx, streamID)
		if err != nil {
			return zero, false, err
		}

		if ok {
			agg := r.NewAggregate()

			serializer, isSerializable := any(agg).(Serializable)
			if !isSerializable {
				return zero, false, fmt.Errorf("aggregate type %s does not implement Serializable", r.AggregateType)
			}

			if err := serializer.UnmarshalSnapshot(snap.Data); err != nil {
				return zero, false, fmt.Errorf("deserializing snapshot for %s: %w", streamID, err)
			}

			slice, err := r.Store.ReadStream(ctx, streamID, snap.Version+1, -1)
			if err != nil {
				return zero, false, err
			}

			for _, e := range slice.Events {
				if err := agg.ApplyEvent(e.EventType, e.Payload); err != nil {
					return zero, false, fmt.Errorf("applying event %s v%d: %w", e.EventType, e.Version, err)
				}
			}

			return agg, true, nil
		}
	}

	slice, err := r.Store.ReadStreamAll(ctx, streamID)
	if err != nil {
		return zero, false, err
	}

	if len(slice.Events) == 0 {
		return zero, false, nil
	}

	agg := r.NewAggregate()

	for _, e := range slice.Events {
		if err := agg.ApplyEvent(e.EventType, e.Payload); err != nil {
			return zero, false, fmt.Errorf("applying event %s v%d: %w", e.EventType, e.Version, err)
		}
	}

	return agg, true, nil
}

// ProducedEvent is an event produced by a command handler, not yet
// stamped with a version or sequence.
type ProducedEvent struct {
	EventType string
	Payload   []byte
}

// Save appends produced events under expectedVersion and, if the
// attached snapshot policy fires, persists a new snapshot. events must
// already have been folded into aggregate by the caller.
func (r *Repository[T]) Save(ctx context.Context, agg T, events []ProducedEvent, expectedVersion int64, correlationID, causationID string) error {
	if len(events) == 0 {
		return nil
	}

	data := make([]eventstore.EventData, len(events))
	for i, e := range events {
		ev := expectedVersion
		if i > 0 {
			ev = eventstore.AnyVersion
		}

		data[i] = eventstore.EventData{
			StreamID:        agg.AggregateID(),
			EventType:       e.EventType,
			Data:            e.Payload,
			ExpectedVersion: ev,
			CorrelationID:   correlationID,
			CausationID:     causationID,
		}
	}

	if _, err := r.Store.AppendEvents(ctx, data); err != nil {
		return err
	}

	if r.Snapshots == nil {
		return nil
	}

	lastSnap, hasSnap, err := r.Snapshots.Load(ctx, agg.AggregateID())
	if err != nil {
		return err
	}

	var lastSnapVersion *uint64
	if hasSnap {
		v := lastSnap.Version
		lastSnapVersion = &v
	}

	if r.SnapshotPolicy.ShouldSnapshot(agg.Version(), lastSnapVersion) {
		return r.createSnapshot(ctx, agg)
	}

	return nil
}

// CreateSnapshot forces a snapshot regardless of policy.
func (r *Repository[T]) CreateSnapshot(ctx context.Context, agg T) error {
	return r.createSnapshot(ctx, agg)
}

func (r *Repository[T]) createSnapshot(ctx context.Context, agg T) error {
	serializer, ok := any(agg).(Serializable)
	if !ok {
		return fmt.Errorf("aggregate type %s does not implement Serializable", r.AggregateType)
	}

	data, err := serializer.MarshalSnapshot()
	if err != nil {
		return fmt.Errorf("serializing aggregate %s for snapshot: %w", agg.AggregateID(), err)
	}

	return r.Snapshots.Save(ctx, cadmodel.Snapshot{
		AggregateID:   agg.AggregateID(),
		AggregateType: r.AggregateType,
		Version:       agg.Version(),
		Data:          data,
		Metadata:      map[string]string{},
	})
}

// Serializable lets an aggregate opt into snapshotting by marshaling its
// full state.
type Serializable interface {
	MarshalSnapshot() ([]byte, error)
	UnmarshalSnapshot(data []byte) error
}

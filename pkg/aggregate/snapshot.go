package aggregate

import (
	"context"
	"sort"
	"sync"

	"github.com/harborgrid-justin/cadcore/pkg/cadmodel"
)

// SnapshotStore persists and retrieves point-in-time aggregate snapshots.
type SnapshotStore interface {
	Save(ctx context.Context, snapshot cadmodel.Snapshot) error
	Load(ctx context.Context, aggregateID string) (cadmodel.Snapshot, bool, error)
	LoadAtVersion(ctx context.Context, aggregateID string, version uint64) (cadmodel.Snapshot, bool, error)
	Delete(ctx context.Context, aggregateID string) error
	Versions(ctx context.Context, aggregateID string) ([]uint64, error)
}

// SnapshotPolicy decides whether a new snapshot should be taken after a
// successful save. lastSnapshotVersion is nil when no snapshot exists yet.
type SnapshotPolicy interface {
	ShouldSnapshot(currentVersion uint64, lastSnapshotVersion *uint64) bool
}

// Never disables snapshotting entirely.
type Never struct{}

func (Never) ShouldSnapshot(uint64, *uint64) bool { return false }

// Always snapshots after every save once the aggregate has at least one
// event. Intended for tests, not production traffic.
type Always struct{}

func (Always) ShouldSnapshot(currentVersion uint64, _ *uint64) bool { return currentVersion > 0 }

// EveryNEvents snapshots once the gap between the current version and
// the last snapshot reaches Interval events.
type EveryNEvents struct {
	Interval uint64
}

func (p EveryNEvents) ShouldSnapshot(currentVersion uint64, lastSnapshotVersion *uint64) bool {
	if currentVersion == 0 {
		return false
	}

	if lastSnapshotVersion == nil {
		return currentVersion >= p.Interval
	}

	return currentVersion-*lastSnapshotVersion >= p.Interval
}

// InMemorySnapshotStore keeps every snapshot version per aggregate in
// memory, ordered by version. Used for tests.
type InMemorySnapshotStore struct {
	mu        sync.RWMutex
	snapshots map[string][]cadmodel.Snapshot
}

// NewInMemorySnapshotStore returns an empty store.
func NewInMemorySnapshotStore() *InMemorySnapshotStore {
	return &InMemorySnapshotStore{snapshots: make(map[string][]cadmodel.Snapshot)}
}

func (s *InMemorySnapshotStore) Save(_ context.Context, snapshot cadmodel.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.snapshots[snapshot.AggregateID]

	filtered := list[:0]
	for _, existing := range list {
		if existing.Version != snapshot.Version {
			filtered = append(filtered, existing)
		}
	}

	filtered = append(filtered, snapshot)
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].Version < filtered[j].Version })

	s.snapshots[snapshot.AggregateID] = filtered

	return nil
}

func (s *InMemorySnapshotStore) Load(_ context.Context, aggregateID string) (cadmodel.Snapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.snapshots[aggregateID]
	if len(list) == 0 {
		return cadmodel.Snapshot{}, false, nil
	}

	return list[len(list)-1], true, nil
}

func (s *InMemorySnapshotStore) LoadAtVersion(_ context.Context, aggregateID string, version uint64) (cadmodel.Snapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best cadmodel.Snapshot
	found := false

	for _, snap := range s.snapshots[aggregateID] {
		if snap.Version <= version {
			best = snap
			found = true
		}
	}

	return best, found, nil
}

func (s *InMemorySnapshotStore) Delete(_ context.Context, aggregateID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.snapshots, aggregateID)

	return nil
}

func (s *InMemorySnapshotStore) Versions(_ context.Context, aggregateID string) ([]uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions := make([]uint64, 0, len(s.snapshots[aggregateID]))
	for _, snap := range s.snapshots[aggregateID] {
		versions = append(versions, snap.Version)
	}

	return versions, nil
}

package replay_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborgrid-justin/cadcore/pkg/cadmodel"
	"github.com/harborgrid-justin/cadcore/pkg/eventstore"
	"github.com/harborgrid-justin/cadcore/pkg/replay"
)

type countingHandler struct {
	mu    sync.Mutex
	count int
}

func (h *countingHandler) Handle(_ context.Context, _ cadmodel.StoredEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.count++

	return nil
}

func (h *countingHandler) OnStart(_ context.Context) error    { return nil }
func (h *countingHandler) OnComplete(_ context.Context) error { return nil }

func (h *countingHandler) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.count
}

func seedEvents(t *testing.T, store *eventstore.InMemory, n int, sameStream bool) {
	t.Helper()

	ctx := context.Background()

	for i := 0; i < n; i++ {
		streamID := "stream-1"
		if !sameStream {
			streamID = "stream-" + string(rune('a'+i))
		}

		_, err := store.AppendEvents(ctx, []eventstore.EventData{{
			StreamID:        streamID,
			EventType:       "TestEvent",
			Data:            []byte{byte(i)},
			ExpectedVersion: eventstore.AnyVersion,
		}})
		require.NoError(t, err)
	}
}

func TestEngine_ReplayAllProcessesEveryEvent(t *testing.T) {
	store := eventstore.NewInMemory()
	seedEvents(t, store, 10, false)

	engine := replay.NewEngine(store)
	handler := &countingHandler{}

	replayID, err := engine.ReplayAll(context.Background(), handler, 0, 0, 5)
	require.NoError(t, err)
	assert.Equal(t, 10, handler.Count())

	progress, ok := engine.GetProgress(replayID)
	require.True(t, ok)
	assert.Equal(t, replay.StatusCompleted, progress.Status)
	assert.Equal(t, uint64(10), progress.Processed)
}

func TestEngine_ReplayStreamRespectsVersionRange(t *testing.T) {
	store := eventstore.NewInMemory()
	seedEvents(t, store, 5, true)

	engine := replay.NewEngine(store)
	handler := &countingHandler{}

	_, err := engine.ReplayStream(context.Background(), "stream-1", handler, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, handler.Count())

	ranged := &countingHandler{}

	_, err = engine.ReplayStream(context.Background(), "stream-1", ranged, 2, 4)
	require.NoError(t, err)
	assert.Equal(t, 3, ranged.Count())
}

func TestEngine_PartialReplayBySequenceRange(t *testing.T) {
	store := eventstore.NewInMemory()
	seedEvents(t, store, 10, false)

	engine := replay.NewEngine(store)
	handler := &countingHandler{}

	_, err := engine.ReplayAll(context.Background(), handler, 3, 7, 10)
	require.NoError(t, err)
	assert.Equal(t, 5, handler.Count())
}

type markerUpcaster struct{}

func (markerUpcaster) CanUpcast(eventType, version string) bool {
	return eventType == "TestEvent" && version == "1"
}

func (markerUpcaster) Upcast(_ context.Context, event cadmodel.StoredEvent) ([]byte, string, error) {
	return append(append([]byte(nil), event.Payload...), 99), "2", nil
}

func TestUpcasterChain_AppliesMatchingUpcaster(t *testing.T) {
	chain := replay.NewUpcasterChain()
	chain.Add(markerUpcaster{})

	event := cadmodel.StoredEvent{
		EventMetadata: cadmodel.EventMetadata{EventType: "TestEvent", EventVersion: "1"},
		Payload:       []byte{1, 2, 3},
	}

	upcasted, err := chain.Upcast(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 99}, upcasted.Payload)
	assert.Equal(t, "2", upcasted.EventVersion)
}

func TestProgress_PercentageAndEstimate(t *testing.T) {
	p := replay.Progress{TotalEvents: 100, Processed: 25, Status: replay.StatusRunning}
	assert.Equal(t, 25.0, p.Percentage())

	empty := replay.Progress{TotalEvents: 0}
	assert.Equal(t, 100.0, empty.Percentage())
}

func TestEngine_HandlerErrorsAreCountedNotFatal(t *testing.T) {
	store := eventstore.NewInMemory()
	seedEvents(t, store, 3, false)

	engine := replay.NewEngine(store)
	handler := &failingHandler{failOn: 1}

	replayID, err := engine.ReplayAll(context.Background(), handler, 0, 0, 10)
	require.NoError(t, err)

	progress, ok := engine.GetProgress(replayID)
	require.True(t, ok)
	assert.Equal(t, uint64(1), progress.Failed)
	assert.Equal(t, uint64(2), progress.Processed)
}

type failingHandler struct {
	mu      sync.Mutex
	seen    int
	failOn  int
}

func (h *failingHandler) Handle(_ context.Context, _ cadmodel.StoredEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seen++
	if h.seen-1 == h.failOn {
		return assertError{}
	}

	return nil
}

func (h *failingHandler) OnStart(_ context.Context) error    { return nil }
func (h *failingHandler) OnComplete(_ context.Context) error { return nil }

type assertError struct{}

func (assertError) Error() string { return "simulated handler failure" }

package eventstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborgrid-justin/cadcore/pkg/eventstore"
)

func TestInMemory_AppendEventsAssignsVersionsAndSequence(t *testing.T) {
	store := eventstore.NewInMemory()
	ctx := context.Background()

	stored, err := store.AppendEvents(ctx, []eventstore.EventData{
		{StreamID: "s-1", EventType: "Created", Data: []byte("a"), ExpectedVersion: eventstore.NewStreamVersion},
		{StreamID: "s-1", EventType: "Updated", Data: []byte("b"), ExpectedVersion: eventstore.AnyVersion},
	})
	require.NoError(t, err)
	require.Len(t, stored, 2)

	assert.Equal(t, uint64(1), stored[0].Version)
	assert.Equal(t, uint64(2), stored[1].Version)
	assert.Equal(t, uint64(1), stored[0].Sequence)
	assert.Equal(t, uint64(2), stored[1].Sequence)
}

func TestInMemory_AppendEventsRejectsWrongExpectedVersion(t *testing.T) {
	store := eventstore.NewInMemory()
	ctx := context.Background()

	_, err := store.AppendEvents(ctx, []eventstore.EventData{
		{StreamID: "s-1", EventType: "Created", Data: []byte("a"), ExpectedVersion: eventstore.NewStreamVersion},
	})
	require.NoError(t, err)

	_, err = store.AppendEvents(ctx, []eventstore.EventData{
		{StreamID: "s-1", EventType: "Updated", Data: []byte("b"), ExpectedVersion: eventstore.NewStreamVersion},
	})

	var conflict *eventstore.ConcurrencyConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "s-1", conflict.StreamID)
	assert.Equal(t, int64(0), conflict.Expected)
	assert.Equal(t, uint64(1), conflict.Actual)
}

func TestInMemory_AppendEventsGroupsMultiStreamBatchAtomically(t *testing.T) {
	store := eventstore.NewInMemory()
	ctx := context.Background()

	stored, err := store.AppendEvents(ctx, []eventstore.EventData{
		{StreamID: "s-1", EventType: "A", ExpectedVersion: eventstore.NewStreamVersion},
		{StreamID: "s-2", EventType: "A", ExpectedVersion: eventstore.NewStreamVersion},
		{StreamID: "s-1", EventType: "B", ExpectedVersion: eventstore.AnyVersion},
	})
	require.NoError(t, err)
	require.Len(t, stored, 3)

	v1, err := store.GetStreamVersion(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), v1)

	v2, err := store.GetStreamVersion(ctx, "s-2")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v2)
}

func TestInMemory_ReadStreamRespectsFromVersionAndMaxCount(t *testing.T) {
	store := eventstore.NewInMemory()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := store.AppendEvents(ctx, []eventstore.EventData{
			{StreamID: "s-1", EventType: "E", ExpectedVersion: eventstore.AnyVersion},
		})
		require.NoError(t, err)
	}

	slice, err := store.ReadStream(ctx, "s-1", 3, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), slice.CurrentVersion)
	require.Len(t, slice.Events, 2)
	assert.Equal(t, uint64(3), slice.Events[0].Version)
	assert.Equal(t, uint64(4), slice.Events[1].Version)
}

func TestInMemory_DeleteStreamTombstonesButAppendRevives(t *testing.T) {
	store := eventstore.NewInMemory()
	ctx := context.Background()

	_, err := store.AppendEvents(ctx, []eventstore.EventData{
		{StreamID: "s-1", EventType: "E", ExpectedVersion: eventstore.NewStreamVersion},
	})
	require.NoError(t, err)

	require.NoError(t, store.DeleteStream(ctx, "s-1"))

	exists, err := store.StreamExists(ctx, "s-1")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = store.AppendEvents(ctx, []eventstore.EventData{
		{StreamID: "s-1", EventType: "Revived", ExpectedVersion: eventstore.AnyVersion},
	})
	require.NoError(t, err)

	exists, err = store.StreamExists(ctx, "s-1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestInMemory_ReadAllPaginatesGlobalLog(t *testing.T) {
	store := eventstore.NewInMemory()
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := store.AppendEvents(ctx, []eventstore.EventData{
			{StreamID: "s-1", EventType: "E", ExpectedVersion: eventstore.AnyVersion},
		})
		require.NoError(t, err)
	}

	page, err := store.ReadAll(ctx, 1, 4)
	require.NoError(t, err)
	require.Len(t, page, 4)
	assert.Equal(t, uint64(1), page[0].Sequence)
	assert.Equal(t, uint64(4), page[3].Sequence)

	seq, err := store.GetGlobalSequence(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), seq)
}

func TestInMemory_ClearResetsEverything(t *testing.T) {
	store := eventstore.NewInMemory()
	ctx := context.Background()

	_, err := store.AppendEvents(ctx, []eventstore.EventData{
		{StreamID: "s-1", EventType: "E", ExpectedVersion: eventstore.NewStreamVersion},
	})
	require.NoError(t, err)

	store.Clear()

	seq, err := store.GetGlobalSequence(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), seq)

	exists, err := store.StreamExists(ctx, "s-1")
	require.NoError(t, err)
	assert.False(t, exists)
}

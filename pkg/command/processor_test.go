package command_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborgrid-justin/cadcore/pkg/cadmodel"
	"github.com/harborgrid-justin/cadcore/pkg/command"
)

func newTestProcessor() *command.Processor {
	registry := command.NewRegistry()
	registry.Register(newLineCommand())

	return command.NewProcessor(registry)
}

func TestProcessor_ExecuteUndoRedo(t *testing.T) {
	ctx := cadmodel.NewCommandContext()
	proc := newTestProcessor()

	require.NoError(t, proc.Execute("LINE 0 0 10 10", ctx))
	assert.Equal(t, 1, ctx.Document.Count())

	require.NoError(t, proc.Execute("UNDO", ctx))
	assert.Equal(t, 0, ctx.Document.Count())

	require.NoError(t, proc.Execute("REDO", ctx))
	assert.Equal(t, 1, ctx.Document.Count())
}

func TestProcessor_RepeatLast(t *testing.T) {
	ctx := cadmodel.NewCommandContext()
	proc := newTestProcessor()

	require.NoError(t, proc.Execute("LINE 0 0 1 1", ctx))
	require.NoError(t, proc.Execute("", ctx))

	assert.Equal(t, 2, ctx.Document.Count())
}

func TestProcessor_UnknownCommandSuggestsFuzzyMatch(t *testing.T) {
	ctx := cadmodel.NewCommandContext()
	proc := newTestProcessor()

	err := proc.Execute("LIEN", ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Did you mean")
}

func TestProcessor_ExecuteQueueGroupsAndStopsOnError(t *testing.T) {
	ctx := cadmodel.NewCommandContext()
	proc := newTestProcessor()

	ok1 := newLineCommand()
	ok2 := newLineCommand()
	proc.QueueCommand(ok1)
	proc.QueueCommand(ok2)

	require.NoError(t, proc.ExecuteQueue(ctx))
	assert.Equal(t, 2, ctx.Document.Count())
	assert.Equal(t, 0, proc.QueueSize())

	desc, err := proc.History().Undo(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Batch operations", desc)
	assert.Equal(t, 0, ctx.Document.Count())

	proc.QueueCommand(newLineCommand())
	proc.QueueCommand(&failingCommand{})
	proc.QueueCommand(newLineCommand())

	require.Error(t, proc.ExecuteQueue(ctx))
	assert.Equal(t, 1, ctx.Document.Count())
	assert.Equal(t, 0, proc.QueueSize())

	desc, err = proc.History().Undo(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Batch operations", desc)
	assert.Equal(t, 0, ctx.Document.Count())
}

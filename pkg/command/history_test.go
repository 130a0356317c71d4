package command_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborgrid-justin/cadcore/pkg/cadmodel"
	"github.com/harborgrid-justin/cadcore/pkg/command"
)

func TestUndoStack_PushUndoRedo(t *testing.T) {
	ctx := cadmodel.NewCommandContext()
	stack := command.NewUndoStack()

	cmd := newLineCommand()
	require.NoError(t, cmd.Execute(ctx))
	stack.Push(cmd, cmd.CreateMemento(ctx), cmd.Name())

	assert.Equal(t, 1, ctx.Document.Count())
	assert.True(t, stack.CanUndo())
	assert.False(t, stack.CanRedo())

	desc, err := stack.Undo(ctx)
	require.NoError(t, err)
	assert.Equal(t, "LINE", desc)
	assert.Equal(t, 0, ctx.Document.Count())
	assert.True(t, stack.CanRedo())

	desc, err = stack.Redo(ctx)
	require.NoError(t, err)
	assert.Equal(t, "LINE", desc)
	assert.Equal(t, 1, ctx.Document.Count())
}

func TestUndoStack_PushClearsRedo(t *testing.T) {
	ctx := cadmodel.NewCommandContext()
	stack := command.NewUndoStack()

	a := newLineCommand()
	require.NoError(t, a.Execute(ctx))
	stack.Push(a, nil, "A")

	_, err := stack.Undo(ctx)
	require.NoError(t, err)
	assert.True(t, stack.CanRedo())

	b := newLineCommand()
	require.NoError(t, b.Execute(ctx))
	stack.Push(b, nil, "B")

	assert.False(t, stack.CanRedo())
}

func TestUndoStack_Grouping(t *testing.T) {
	ctx := cadmodel.NewCommandContext()
	stack := command.NewUndoStack()

	stack.BeginGroup("Move and copy")

	a := newLineCommand()
	require.NoError(t, a.Execute(ctx))
	stack.Push(a, nil, "MOVE")

	b := newLineCommand()
	require.NoError(t, b.Execute(ctx))
	stack.Push(b, nil, "COPY")

	stack.EndGroup()

	assert.Equal(t, 2, ctx.Document.Count())

	desc, err := stack.Undo(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Move and copy", desc)
	assert.Equal(t, 0, ctx.Document.Count())
	assert.False(t, stack.CanUndo())
	assert.True(t, stack.CanRedo())
	assert.Len(t, stack.RedoList(), 1)
}

func TestUndoStack_MaxUndoLevels(t *testing.T) {
	ctx := cadmodel.NewCommandContext()
	stack := command.NewUndoStackWithConfig(command.HistoryConfig{MaxUndoLevels: 2})

	for i := 0; i < 5; i++ {
		cmd := newLineCommand()
		require.NoError(t, cmd.Execute(ctx))
		stack.Push(cmd, nil, "LINE")
		assert.LessOrEqual(t, len(stack.UndoList()), 2)
	}

	assert.Len(t, stack.UndoList(), 2)
}

func TestUndoStack_NothingToUndoRedo(t *testing.T) {
	ctx := cadmodel.NewCommandContext()
	stack := command.NewUndoStack()

	_, err := stack.Undo(ctx)
	assert.Error(t, err)

	_, err = stack.Redo(ctx)
	assert.Error(t, err)
}

func TestUndoStack_UnreversibleCommandNotPushed(t *testing.T) {
	ctx := cadmodel.NewCommandContext()
	stack := command.NewUndoStack()

	cmd := &unreversibleCommand{}
	require.NoError(t, cmd.Execute(ctx))

	if cmd.CanUndo() {
		stack.Push(cmd, nil, cmd.Name())
	}

	assert.False(t, stack.CanUndo())
}

package command_test

import (
	"github.com/harborgrid-justin/cadcore/pkg/cadmodel"
	"github.com/harborgrid-justin/cadcore/pkg/command"
)

// lineMemento captures the single entity ID created by lineCommand so
// undo can remove exactly that entity, regardless of what else happened
// to the document since.
type lineMemento struct {
	id cadmodel.EntityID
}

func (m lineMemento) Description() string { return "line state" }

// lineCommand is a minimal reversible command used across tests: it adds
// one entity on Execute and removes it on Undo.
type lineCommand struct {
	command.BaseCommand
	createdID cadmodel.EntityID
}

func newLineCommand() *lineCommand {
	return &lineCommand{}
}

func (c *lineCommand) Name() string { return "LINE" }

func (c *lineCommand) Execute(ctx *cadmodel.CommandContext) error {
	c.createdID = ctx.Document.AddEntity([]byte("line"))
	c.SetState(command.StateCompleted)

	return nil
}

func (c *lineCommand) Undo(ctx *cadmodel.CommandContext) error {
	ctx.Document.RemoveEntity(c.createdID)
	return nil
}

func (c *lineCommand) Redo(ctx *cadmodel.CommandContext) error {
	ctx.Document.AddEntityWithID(c.createdID, []byte("line"))
	c.SetState(command.StateCompleted)

	return nil
}

func (c *lineCommand) Clone() command.Command {
	clone := *c
	return &clone
}

// unreversibleCommand never participates in history.
type unreversibleCommand struct {
	command.BaseCommand
}

func (c *unreversibleCommand) Name() string                        { return "REGEN" }
func (c *unreversibleCommand) CanUndo() bool                       { return false }
func (c *unreversibleCommand) Execute(_ *cadmodel.CommandContext) error { return nil }
func (c *unreversibleCommand) Undo(_ *cadmodel.CommandContext) error    { return nil }
func (c *unreversibleCommand) Redo(_ *cadmodel.CommandContext) error    { return nil }
func (c *unreversibleCommand) Clone() command.Command {
	clone := *c
	return &clone
}

// failingCommand always fails in Execute.
type failingCommand struct {
	command.BaseCommand
}

func (c *failingCommand) Name() string { return "FAIL" }
func (c *failingCommand) Execute(_ *cadmodel.CommandContext) error {
	return command.InvalidState("forced failure")
}
func (c *failingCommand) Undo(_ *cadmodel.CommandContext) error { return nil }
func (c *failingCommand) Redo(_ *cadmodel.CommandContext) error { return nil }
func (c *failingCommand) Clone() command.Command {
	clone := *c
	return &clone
}

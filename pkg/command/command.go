// Package command implements the CAD command engine: a stateful,
// memento-based execute/undo/redo pipeline with groupable compound
// operations and bounded history. It is single-threaded per Processor —
// at most one command is "current" at a time, matching the way a CAD
// application owns one Document per interactive session.
package command

import "github.com/harborgrid-justin/cadcore/pkg/cadmodel"

// State is the lifecycle of a Command, including the multi-step states
// driven by the input state machine.
type State int

const (
	// StateAwaitingInput means the command has not started consuming input.
	StateAwaitingInput State = iota
	// StateAwaitingParameter means the command is waiting on a named parameter.
	StateAwaitingParameter
	// StateExecuting means the command's execute phase is running.
	StateExecuting
	// StateCompleted means the command finished successfully.
	StateCompleted
	// StateCancelled means the user cancelled the command.
	StateCancelled
	// StateFailed means execute/undo/redo returned an error.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAwaitingInput:
		return "AwaitingInput"
	case StateAwaitingParameter:
		return "AwaitingParameter"
	case StateExecuting:
		return "Executing"
	case StateCompleted:
		return "Completed"
	case StateCancelled:
		return "Cancelled"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Memento is opaque state captured before a command executes and consumed
// on undo. Each command type defines its own concrete Memento; the engine
// only needs the accessor below, so history storage does not need a
// closed sum type over every command's state shape.
type Memento interface {
	// Description summarizes the captured state for UI/logging purposes.
	Description() string
}

// Prompt describes the parameter a multi-step command is currently
// awaiting, surfaced by State() as StateAwaitingParameter.
type Prompt struct {
	Name string
}

// Command is the capability set every CAD operation implements. The
// registry holds template instances and clones them per execution
// (Clone), so a Command's exported methods operate on its own clone's
// internal state, never the template's.
type Command interface {
	// Name is the canonical, upper-case command name.
	Name() string
	// Aliases are additional upper-case names that resolve to this command.
	Aliases() []string
	// Description is a one-line help string.
	Description() string
	// Usage is the argument syntax shown in help.
	Usage() string

	// Execute performs the operation, advancing State to Completed or Failed.
	Execute(ctx *cadmodel.CommandContext) error
	// Undo reverses Execute; afterward the document must be observationally
	// identical to its state prior to Execute on the same entities.
	Undo(ctx *cadmodel.CommandContext) error
	// Redo re-applies the command after Undo. BaseCommand supplies no
	// default, so every command implements it, either by re-running
	// Execute or by a cheaper re-application.
	Redo(ctx *cadmodel.CommandContext) error
	// CanUndo declares whether this command participates in history at all.
	CanUndo() bool

	// State reports the command's current lifecycle state.
	State() State
	// ProcessInput feeds one free-form chunk into a multi-step command.
	ProcessInput(text string, ctx *cadmodel.CommandContext) error

	// CreateMemento captures pre-execution state, if the command needs more
	// than Undo alone provides. Returns nil when not applicable.
	CreateMemento(ctx *cadmodel.CommandContext) Memento
	// RestoreMemento replays a previously captured Memento ahead of Undo.
	RestoreMemento(m Memento, ctx *cadmodel.CommandContext) error

	// Clone mints a fresh instance carrying only static metadata — the
	// registry holds templates, executions operate on clones.
	Clone() Command
}

// BaseCommand implements the optional parts of Command (multi-step input,
// memento support) with the defaults the original contract specifies, so
// concrete commands only need to embed it and implement Name, Execute,
// Undo, Redo and Clone.
type BaseCommand struct {
	state State
}

// State returns the embedding command's current state.
func (b *BaseCommand) State() State { return b.state }

// SetState is used by concrete commands to transition their own state.
func (b *BaseCommand) SetState(s State) { b.state = s }

// ProcessInput is a no-op default for single-step commands.
func (b *BaseCommand) ProcessInput(_ string, _ *cadmodel.CommandContext) error { return nil }

// CreateMemento returns nil by default; override when Undo alone cannot
// reconstruct prior state.
func (b *BaseCommand) CreateMemento(_ *cadmodel.CommandContext) Memento { return nil }

// RestoreMemento is a no-op default.
func (b *BaseCommand) RestoreMemento(_ Memento, _ *cadmodel.CommandContext) error { return nil }

// CanUndo defaults to true; commands that are not reversible (REGEN,
// selection-only operations, ...) override this to false.
func (b *BaseCommand) CanUndo() bool { return true }

// Aliases defaults to none.
func (b *BaseCommand) Aliases() []string { return nil }

// Description defaults to empty.
func (b *BaseCommand) Description() string { return "" }

// Usage defaults to empty.
func (b *BaseCommand) Usage() string { return "" }

package command

import (
	"strings"

	"github.com/harborgrid-justin/cadcore/pkg/cadmodel"
	"github.com/harborgrid-justin/cadcore/pkg/input"
)

const batchGroupDescription = "Batch operations"

// Processor drives command lookup, execution, undo/redo, queueing, and
// the active multi-step command. It is single-threaded: at most one
// command is "current" at a time.
type Processor struct {
	registry *Registry
	history  *UndoStack

	queue          []Command
	currentCommand Command
	lastCommand    Command
}

// NewProcessor returns a processor with a default-configured history.
func NewProcessor(registry *Registry) *Processor {
	return &Processor{registry: registry, history: NewUndoStack()}
}

// NewProcessorWithHistory returns a processor with a caller-supplied
// history stack.
func NewProcessorWithHistory(registry *Registry, history *UndoStack) *Processor {
	return &Processor{registry: registry, history: history}
}

// Execute tokenizes commandLine and runs the named command, routing the
// reserved names UNDO, REDO, REPEAT, and empty input internally.
func (p *Processor) Execute(commandLine string, ctx *cadmodel.CommandContext) error {
	parser := input.NewParser(commandLine)

	name, ok := parser.Next()
	if !ok {
		name = ""
	}

	switch strings.ToUpper(name) {
	case "UNDO":
		_, err := p.history.Undo(ctx)
		return err
	case "REDO":
		_, err := p.history.Redo(ctx)
		return err
	case "REPEAT", "":
		return p.RepeatLast(ctx)
	}

	cmd, ok := p.registry.CloneCommand(name)
	if !ok {
		suggestions := p.registry.FuzzyMatch(name, 2)
		if len(suggestions) > 0 {
			return InvalidInput("unknown command: " + name + ". Did you mean: " + strings.Join(suggestions, ", ") + "?")
		}

		return InvalidInput("unknown command: " + name)
	}

	for parser.HasMore() {
		key, value, err := parser.ParseOption()
		if err != nil {
			break
		}

		ctx.Options[key] = value
	}

	memento := cmd.CreateMemento(ctx)

	if err := cmd.Execute(ctx); err != nil {
		return err
	}

	if cmd.CanUndo() {
		p.history.Push(cmd.Clone(), memento, cmd.Name())
	}

	p.lastCommand = cmd.Clone()
	p.currentCommand = cmd

	return nil
}

// ProcessInput feeds one chunk into the active multi-step command. On a
// transition to Completed, Failed, or Cancelled, the active command is
// cleared; Failed/Cancelled propagate as errors.
func (p *Processor) ProcessInput(text string, ctx *cadmodel.CommandContext) error {
	if p.currentCommand == nil {
		return InvalidState("no active command")
	}

	if err := p.currentCommand.ProcessInput(text, ctx); err != nil {
		return err
	}

	switch p.currentCommand.State() {
	case StateCompleted:
		p.currentCommand = nil
	case StateFailed:
		p.currentCommand = nil
		return InvalidState("command failed")
	case StateCancelled:
		p.currentCommand = nil
		return Cancelled()
	}

	return nil
}

// RepeatLast re-clones and runs the last successfully executed command.
func (p *Processor) RepeatLast(ctx *cadmodel.CommandContext) error {
	if p.lastCommand == nil {
		return InvalidState("no previous command to repeat")
	}

	cmd := p.lastCommand.Clone()
	memento := cmd.CreateMemento(ctx)

	if err := cmd.Execute(ctx); err != nil {
		return err
	}

	if cmd.CanUndo() {
		p.history.Push(cmd.Clone(), memento, cmd.Name())
	}

	p.lastCommand = cmd

	return nil
}

// CancelCurrent drops the active multi-step command.
func (p *Processor) CancelCurrent() error {
	if p.currentCommand == nil {
		return InvalidState("no active command to cancel")
	}

	p.currentCommand = nil

	return nil
}

// QueueCommand appends cmd to the batch queue.
func (p *Processor) QueueCommand(cmd Command) {
	p.queue = append(p.queue, cmd)
}

// ClearQueue empties the batch queue.
func (p *Processor) ClearQueue() { p.queue = nil }

// QueueSize returns the number of commands pending in the batch queue.
func (p *Processor) QueueSize() int { return len(p.queue) }

// ExecuteQueue runs every queued command inside a single history group.
// On the first error, the remaining queue is dropped and the error is
// returned; commands already executed remain in history. The group is
// always closed, success or failure.
func (p *Processor) ExecuteQueue(ctx *cadmodel.CommandContext) error {
	p.history.BeginGroup(batchGroupDescription)
	defer p.history.EndGroup()

	for len(p.queue) > 0 {
		cmd := p.queue[0]
		p.queue = p.queue[1:]

		memento := cmd.CreateMemento(ctx)

		if err := cmd.Execute(ctx); err != nil {
			p.queue = nil
			return err
		}

		if cmd.CanUndo() {
			p.history.Push(cmd, memento, cmd.Name())
		}
	}

	return nil
}

// CurrentState reports the active command's state, if any.
func (p *Processor) CurrentState() (State, bool) {
	if p.currentCommand == nil {
		return 0, false
	}

	return p.currentCommand.State(), true
}

// CurrentCommandName reports the active command's name, if any.
func (p *Processor) CurrentCommandName() (string, bool) {
	if p.currentCommand == nil {
		return "", false
	}

	return p.currentCommand.Name(), true
}

// Registry returns the processor's command registry.
func (p *Processor) Registry() *Registry { return p.registry }

// History returns the processor's undo/redo stack.
func (p *Processor) History() *UndoStack { return p.history }

// BeginGroup opens a history group for a compound operation.
func (p *Processor) BeginGroup(description string) { p.history.BeginGroup(description) }

// EndGroup closes the active history group.
func (p *Processor) EndGroup() { p.history.EndGroup() }

// Autocomplete delegates to the registry.
func (p *Processor) Autocomplete(partial string) []string { return p.registry.Autocomplete(partial) }

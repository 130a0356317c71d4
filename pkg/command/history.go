package command

import (
	"time"

	"github.com/harborgrid-justin/cadcore/pkg/cadmodel"
)

// GroupID identifies a set of history entries undone/redone as one unit.
type GroupID uint64

// EntryID identifies a HistoryEntry for the lifetime of the stack, stable
// across eviction — group membership is tracked by EntryID, not by
// position, so eviction from the front never silently detaches an entry
// from its group.
type EntryID uint64

// HistoryConfig bounds the undo stack's size.
type HistoryConfig struct {
	// MaxUndoLevels caps the number of undo entries retained; 0 means unlimited.
	MaxUndoLevels int
	// MaxMemoryBytes caps estimated history memory usage; 0 means unlimited.
	MaxMemoryBytes int
}

// DefaultHistoryConfig matches common CAD-session defaults.
func DefaultHistoryConfig() HistoryConfig {
	return HistoryConfig{MaxUndoLevels: 100, MaxMemoryBytes: 100_000_000}
}

const (
	estimatedEntryBytes   = 128
	estimatedMementoBytes = 1024
)

// HistoryEntry records one executed command for undo/redo purposes.
type HistoryEntry struct {
	ID          EntryID
	Command     Command
	Memento     Memento
	Timestamp   time.Time
	Description string
	GroupID     *GroupID
}

// group tracks entries by ID rather than by stack position.
type group struct {
	id      GroupID
	desc    string
	members map[EntryID]struct{}
}

// UndoStack is the engine's bounded, groupable undo/redo history.
type UndoStack struct {
	config HistoryConfig

	undo []HistoryEntry
	redo []HistoryEntry

	groups      map[GroupID]*group
	nextGroupID GroupID
	activeGroup *GroupID

	nextEntryID EntryID
	memBytes    int
}

// NewUndoStack returns a stack with default limits.
func NewUndoStack() *UndoStack {
	return NewUndoStackWithConfig(DefaultHistoryConfig())
}

// NewUndoStackWithConfig returns a stack with caller-supplied limits.
func NewUndoStackWithConfig(cfg HistoryConfig) *UndoStack {
	return &UndoStack{
		config:      cfg,
		groups:      make(map[GroupID]*group),
		nextGroupID: 1,
		nextEntryID: 1,
	}
}

// Push records a newly executed command, clearing the redo stack and
// enforcing configured limits. If a group is active, the entry joins it.
func (s *UndoStack) Push(cmd Command, memento Memento, description string) {
	s.redo = nil

	entry := HistoryEntry{
		ID:          s.nextEntryID,
		Command:     cmd,
		Memento:     memento,
		Timestamp:   time.Now(),
		Description: description,
	}
	s.nextEntryID++

	if s.activeGroup != nil {
		gid := *s.activeGroup
		entry.GroupID = &gid
		s.groups[gid].members[entry.ID] = struct{}{}
	}

	s.memBytes += estimatedEntryBytes
	if memento != nil {
		s.memBytes += estimatedMementoBytes
	}

	s.undo = append(s.undo, entry)
	s.enforceLimits()
}

// Undo pops the most recent entry (or its whole group) and reverses it.
func (s *UndoStack) Undo(ctx *cadmodel.CommandContext) (string, error) {
	if len(s.undo) == 0 {
		return "", InvalidState("Nothing to undo")
	}

	last := s.undo[len(s.undo)-1]
	if last.GroupID != nil {
		return s.undoGroup(*last.GroupID, ctx)
	}

	s.undo = s.undo[:len(s.undo)-1]

	if err := s.reverseOne(&last, ctx); err != nil {
		return "", err
	}

	s.redo = append(s.redo, last)

	return last.Description, nil
}

func (s *UndoStack) undoGroup(gid GroupID, ctx *cadmodel.CommandContext) (string, error) {
	g, ok := s.groups[gid]
	if !ok {
		return "", GroupNotFound()
	}

	desc := g.desc
	count := len(g.members)

	for i := 0; i < count; i++ {
		if len(s.undo) == 0 {
			break
		}

		entry := s.undo[len(s.undo)-1]
		s.undo = s.undo[:len(s.undo)-1]

		if err := s.reverseOne(&entry, ctx); err != nil {
			return "", err
		}

		s.redo = append(s.redo, entry)
	}

	return desc, nil
}

func (s *UndoStack) reverseOne(entry *HistoryEntry, ctx *cadmodel.CommandContext) error {
	if entry.Memento != nil {
		if err := entry.Command.RestoreMemento(entry.Memento, ctx); err != nil {
			return err
		}

		entry.Memento = nil
	}

	return entry.Command.Undo(ctx)
}

// Redo reapplies the most recently undone entry (or its whole group).
func (s *UndoStack) Redo(ctx *cadmodel.CommandContext) (string, error) {
	if len(s.redo) == 0 {
		return "", InvalidState("Nothing to redo")
	}

	last := s.redo[len(s.redo)-1]
	if last.GroupID != nil {
		return s.redoGroup(*last.GroupID, ctx)
	}

	s.redo = s.redo[:len(s.redo)-1]

	if err := last.Command.Redo(ctx); err != nil {
		return "", err
	}

	s.undo = append(s.undo, last)

	return last.Description, nil
}

func (s *UndoStack) redoGroup(gid GroupID, ctx *cadmodel.CommandContext) (string, error) {
	g, ok := s.groups[gid]
	if !ok {
		return "", GroupNotFound()
	}

	desc := g.desc
	count := len(g.members)

	entries := make([]HistoryEntry, 0, count)
	for i := 0; i < count; i++ {
		if len(s.redo) == 0 {
			break
		}

		entries = append(entries, s.redo[len(s.redo)-1])
		s.redo = s.redo[:len(s.redo)-1]
	}

	for i := len(entries) - 1; i >= 0; i-- {
		if err := entries[i].Command.Redo(ctx); err != nil {
			return "", err
		}

		s.undo = append(s.undo, entries[i])
	}

	return desc, nil
}

// BeginGroup opens a new active group; subsequent pushes join it until
// EndGroup is called.
func (s *UndoStack) BeginGroup(description string) GroupID {
	id := s.nextGroupID
	s.nextGroupID++

	s.groups[id] = &group{id: id, desc: description, members: make(map[EntryID]struct{})}
	s.activeGroup = &id

	return id
}

// EndGroup closes the active group, if any.
func (s *UndoStack) EndGroup() {
	s.activeGroup = nil
}

// CanUndo reports whether the undo stack has at least one entry.
func (s *UndoStack) CanUndo() bool { return len(s.undo) > 0 }

// CanRedo reports whether the redo stack has at least one entry.
func (s *UndoStack) CanRedo() bool { return len(s.redo) > 0 }

// UndoDescription returns the description of the next undo, if any.
func (s *UndoStack) UndoDescription() (string, bool) {
	if len(s.undo) == 0 {
		return "", false
	}

	return s.undo[len(s.undo)-1].Description, true
}

// RedoDescription returns the description of the next redo, if any.
func (s *UndoStack) RedoDescription() (string, bool) {
	if len(s.redo) == 0 {
		return "", false
	}

	return s.redo[len(s.redo)-1].Description, true
}

// UndoList returns descriptions of all undoable entries, oldest first.
func (s *UndoStack) UndoList() []string {
	out := make([]string, len(s.undo))
	for i, e := range s.undo {
		out[i] = e.Description
	}

	return out
}

// RedoList returns descriptions of all redoable entries, oldest first.
func (s *UndoStack) RedoList() []string {
	out := make([]string, len(s.redo))
	for i, e := range s.redo {
		out[i] = e.Description
	}

	return out
}

// MemoryUsage returns the stack's estimated memory footprint in bytes.
func (s *UndoStack) MemoryUsage() int { return s.memBytes }

// Clear empties both stacks and all groups.
func (s *UndoStack) Clear() {
	s.undo = nil
	s.redo = nil
	s.groups = make(map[GroupID]*group)
	s.activeGroup = nil
	s.memBytes = 0
}

// ClearRedo empties only the redo stack.
func (s *UndoStack) ClearRedo() {
	s.redo = nil
}

func (s *UndoStack) enforceLimits() {
	if s.config.MaxUndoLevels > 0 {
		for len(s.undo) > s.config.MaxUndoLevels {
			s.evictFront()
		}
	}

	if s.config.MaxMemoryBytes > 0 {
		for s.memBytes > s.config.MaxMemoryBytes && len(s.undo) > 0 {
			s.evictFront()
		}
	}
}

func (s *UndoStack) evictFront() {
	evicted := s.undo[0]
	s.undo = s.undo[1:]

	s.memBytes -= estimatedEntryBytes
	if evicted.Memento != nil {
		s.memBytes -= estimatedMementoBytes
	}

	if s.memBytes < 0 {
		s.memBytes = 0
	}

	if evicted.GroupID != nil {
		if g, ok := s.groups[*evicted.GroupID]; ok {
			delete(g.members, evicted.ID)

			if len(g.members) == 0 {
				delete(s.groups, *evicted.GroupID)
			}
		}
	}
}

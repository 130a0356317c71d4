// Package cadmodel holds the entities shared by the command engine and the
// input state machine: the Document an executing command mutates, its
// entities, and the selection the user is currently working with.
package cadmodel

import "fmt"

// EntityID identifies an Entity within a Document. IDs are never reused,
// even after deletion.
type EntityID uint64

// Entity is an opaque application payload. The command engine never
// inspects its contents; geometry evaluation lives outside this module.
type Entity struct {
	ID      EntityID
	Layer   string
	Payload []byte
}

// Document is the mapping of EntityID to Entity plus layer bookkeeping.
// next_id strictly exceeds every issued ID.
type Document struct {
	entities     map[EntityID]Entity
	nextID       EntityID
	layers       []string
	currentLayer string
}

// NewDocument returns an empty document with a default layer "0".
func NewDocument() *Document {
	return &Document{
		entities:     make(map[EntityID]Entity),
		nextID:       1,
		layers:       []string{"0"},
		currentLayer: "0",
	}
}

// NextID previews the ID that would be issued by the next AddEntity call.
func (d *Document) NextID() EntityID {
	return d.nextID
}

// AddEntity inserts payload under a freshly issued ID on the current layer
// and returns that ID.
func (d *Document) AddEntity(payload []byte) EntityID {
	id := d.nextID
	d.nextID++

	d.entities[id] = Entity{ID: id, Layer: d.currentLayer, Payload: payload}

	return id
}

// AddEntityWithID inserts payload under a caller-chosen ID, used by redo to
// restore the exact ID an entity had before it was undone. It advances
// next_id if necessary to preserve the "never reused" invariant.
func (d *Document) AddEntityWithID(id EntityID, payload []byte) {
	d.entities[id] = Entity{ID: id, Layer: d.currentLayer, Payload: payload}

	if id >= d.nextID {
		d.nextID = id + 1
	}
}

// RemoveEntity deletes an entity by ID. It is a no-op if the ID is absent.
func (d *Document) RemoveEntity(id EntityID) (Entity, bool) {
	e, ok := d.entities[id]
	if ok {
		delete(d.entities, id)
	}

	return e, ok
}

// GetEntity returns the entity for id, if present.
func (d *Document) GetEntity(id EntityID) (Entity, bool) {
	e, ok := d.entities[id]
	return e, ok
}

// Count returns the number of live entities.
func (d *Document) Count() int {
	return len(d.entities)
}

// Layers returns the ordered set of layer names.
func (d *Document) Layers() []string {
	out := make([]string, len(d.layers))
	copy(out, d.layers)

	return out
}

// CurrentLayer returns the active layer name.
func (d *Document) CurrentLayer() string {
	return d.currentLayer
}

// SetCurrentLayer switches the active layer, creating it if unseen.
func (d *Document) SetCurrentLayer(name string) {
	for _, l := range d.layers {
		if l == name {
			d.currentLayer = name
			return
		}
	}

	d.layers = append(d.layers, name)
	d.currentLayer = name
}

// String renders a brief summary, useful in test failure output.
func (d *Document) String() string {
	return fmt.Sprintf("Document{entities=%d, nextID=%d, layer=%q}", len(d.entities), d.nextID, d.currentLayer)
}

// SelectionSet is an ordered, duplicate-free sequence of EntityIDs.
type SelectionSet struct {
	order []EntityID
	seen  map[EntityID]struct{}
}

// NewSelectionSet returns an empty selection.
func NewSelectionSet() *SelectionSet {
	return &SelectionSet{seen: make(map[EntityID]struct{})}
}

// Add appends id if it is not already present.
func (s *SelectionSet) Add(id EntityID) {
	if _, ok := s.seen[id]; ok {
		return
	}

	s.seen[id] = struct{}{}
	s.order = append(s.order, id)
}

// Remove drops id from the selection.
func (s *SelectionSet) Remove(id EntityID) {
	if _, ok := s.seen[id]; !ok {
		return
	}

	delete(s.seen, id)

	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Contains reports whether id is selected.
func (s *SelectionSet) Contains(id EntityID) bool {
	_, ok := s.seen[id]
	return ok
}

// IDs returns the selection in insertion order.
func (s *SelectionSet) IDs() []EntityID {
	out := make([]EntityID, len(s.order))
	copy(out, s.order)

	return out
}

// Len returns the number of selected entities.
func (s *SelectionSet) Len() int {
	return len(s.order)
}

// Clear empties the selection.
func (s *SelectionSet) Clear() {
	s.order = nil
	s.seen = make(map[EntityID]struct{})
}

// CommandContext is the mutable execution environment a Command operates on.
type CommandContext struct {
	Document    *Document
	Selection   *SelectionSet
	Options     map[string]string
	Interactive bool
}

// NewCommandContext returns a context wrapping a fresh document and
// selection.
func NewCommandContext() *CommandContext {
	return &CommandContext{
		Document:  NewDocument(),
		Selection: NewSelectionSet(),
		Options:   make(map[string]string),
	}
}

package host

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Memory is an in-memory Collection. It implements the full host boundary
// with map-backed storage and auto-incremented ids, and is used by tests and
// by tooling that needs a collection without a host application attached.
type Memory struct {
	mu sync.RWMutex

	notes      map[int64]*Note
	cards      map[int64]*Card
	schemas    map[int64]*Schema
	containers map[int64]*Container

	nextNoteID      int64
	nextCardID      int64
	nextContainerID int64
	modCounter      int64
}

// NewMemory returns an empty in-memory collection.
func NewMemory() *Memory {
	return &Memory{
		notes:           make(map[int64]*Note),
		cards:           make(map[int64]*Card),
		schemas:         make(map[int64]*Schema),
		containers:      make(map[int64]*Container),
		nextNoteID:      1,
		nextCardID:      1,
		nextContainerID: 1,
	}
}

func (m *Memory) nextMod() int64 {
	m.modCounter++
	return m.modCounter
}

// Note returns a copy of the note with the given id.
func (m *Memory) Note(id int64) (*Note, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.notes[id]
	if !ok {
		return nil, false
	}
	return copyNote(n), true
}

// NewNote returns an unsaved note shaped after the given schema.
func (m *Memory) NewNote(schemaID int64) (*Note, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	schema, ok := m.schemas[schemaID]
	if !ok {
		return nil, false
	}
	fields := make([]Field, 0, len(schema.Fields))
	for _, f := range schema.FieldsByOrd() {
		fields = append(fields, Field{Name: f.Name})
	}
	return &Note{SchemaID: schemaID, Fields: fields}, true
}

// AddNotes inserts notes, assigning ids and creating one card per template.
func (m *Memory) AddNotes(_ context.Context, notes []*Note, containerID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.containers[containerID]; !ok {
		return fmt.Errorf("container %d does not exist", containerID)
	}
	for _, note := range notes {
		note.ID = m.nextNoteID
		m.nextNoteID++
		note.Mod = m.nextMod()
		m.notes[note.ID] = copyNote(note)

		templateCount := 1
		if schema, ok := m.schemas[note.SchemaID]; ok && len(schema.Templates) > 0 {
			templateCount = len(schema.Templates)
		}
		for i := 0; i < templateCount; i++ {
			card := &Card{ID: m.nextCardID, NoteID: note.ID, ContainerID: containerID}
			m.nextCardID++
			m.cards[card.ID] = card
		}
	}
	return nil
}

// UpdateNotes persists changes to existing notes and bumps their Mod values.
func (m *Memory) UpdateNotes(_ context.Context, notes []*Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, note := range notes {
		if _, ok := m.notes[note.ID]; !ok {
			return fmt.Errorf("note %d does not exist", note.ID)
		}
		note.Mod = m.nextMod()
		m.notes[note.ID] = copyNote(note)
	}
	return nil
}

// RemoveNotes deletes notes and their cards, ignoring unknown ids.
func (m *Memory) RemoveNotes(_ context.Context, ids []int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for _, id := range ids {
		if _, ok := m.notes[id]; !ok {
			continue
		}
		delete(m.notes, id)
		for cid, card := range m.cards {
			if card.NoteID == id {
				delete(m.cards, cid)
			}
		}
		removed++
	}
	return removed, nil
}

// SetNoteSchema moves a note to another schema, carrying values over by name.
func (m *Memory) SetNoteSchema(_ context.Context, noteID, schemaID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	note, ok := m.notes[noteID]
	if !ok {
		return fmt.Errorf("note %d does not exist", noteID)
	}
	schema, ok := m.schemas[schemaID]
	if !ok {
		return fmt.Errorf("schema %d does not exist", schemaID)
	}
	if note.SchemaID == schemaID {
		return nil
	}
	old := make(map[string]string, len(note.Fields))
	for _, f := range note.Fields {
		old[f.Name] = f.Value
	}
	fields := make([]Field, 0, len(schema.Fields))
	for _, sf := range schema.FieldsByOrd() {
		fields = append(fields, Field{Name: sf.Name, Value: old[sf.Name]})
	}
	note.SchemaID = schemaID
	note.Fields = fields
	note.Mod = m.nextMod()
	return nil
}

// ExistingNoteIDs filters ids down to those present in the collection.
func (m *Memory) ExistingNoteIDs(ids []int64) []int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := m.notes[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// NoteIDsWithReviews returns the subset of ids with reviewed cards.
func (m *Memory) NoteIDsWithReviews(ids []int64) (map[int64]struct{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	want := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	out := make(map[int64]struct{})
	for _, card := range m.cards {
		if !card.Reviewed {
			continue
		}
		if _, ok := want[card.NoteID]; ok {
			out[card.NoteID] = struct{}{}
		}
	}
	return out, nil
}

// CardsOfNote returns copies of the note's cards sorted by id.
func (m *Memory) CardsOfNote(noteID int64) []Card {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Card
	for _, card := range m.cards {
		if card.NoteID == noteID {
			out = append(out, *card)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SuspendCards marks cards as suspended.
func (m *Memory) SuspendCards(_ context.Context, cardIDs []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range cardIDs {
		if card, ok := m.cards[id]; ok {
			card.Suspended = true
		}
	}
	return nil
}

// MarkReviewed records review history for a card. Test helper.
func (m *Memory) MarkReviewed(cardID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if card, ok := m.cards[cardID]; ok {
		card.Reviewed = true
	}
}

// Schema returns a copy of the schema with the given id.
func (m *Memory) Schema(id int64) (*Schema, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.schemas[id]
	if !ok {
		return nil, false
	}
	return copySchema(s), true
}

// CreateSchema adds a schema under the id carried by the value.
func (m *Memory) CreateSchema(_ context.Context, schema *Schema) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.schemas[schema.ID]; ok {
		return fmt.Errorf("schema %d already exists", schema.ID)
	}
	m.schemas[schema.ID] = copySchema(schema)
	return nil
}

// UpdateSchema replaces the stored schema.
func (m *Memory) UpdateSchema(_ context.Context, schema *Schema) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.schemas[schema.ID]; !ok {
		return fmt.Errorf("schema %d does not exist", schema.ID)
	}
	m.schemas[schema.ID] = copySchema(schema)
	return nil
}

// SchemaNameExists reports whether another schema already uses the name.
func (m *Memory) SchemaNameExists(name string, excludeID int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for id, s := range m.schemas {
		if id != excludeID && s.Name == name {
			return true
		}
	}
	return false
}

// Container returns a copy of the container with the given id.
func (m *Memory) Container(id int64) (*Container, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.containers[id]
	if !ok {
		return nil, false
	}
	cp := *c
	return &cp, true
}

// ContainerByName resolves a full container path.
func (m *Memory) ContainerByName(name string) (*Container, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.containers {
		if c.Name == name {
			cp := *c
			return &cp, true
		}
	}
	return nil, false
}

// CreateContainer ensures the full path exists and returns the leaf id.
func (m *Memory) CreateContainer(_ context.Context, name string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createContainerLocked(name)
}

func (m *Memory) createContainerLocked(name string) (int64, error) {
	if name == "" {
		return 0, fmt.Errorf("container name must not be empty")
	}
	parts := strings.Split(name, "::")
	var leafID int64
	for i := range parts {
		path := strings.Join(parts[:i+1], "::")
		if existing := m.containerByNameLocked(path); existing != nil {
			leafID = existing.ID
			continue
		}
		c := &Container{ID: m.nextContainerID, Name: path}
		m.nextContainerID++
		m.containers[c.ID] = c
		leafID = c.ID
	}
	return leafID, nil
}

func (m *Memory) containerByNameLocked(name string) *Container {
	for _, c := range m.containers {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// CreateFilteredContainer creates a filtered container. Test helper.
func (m *Memory) CreateFilteredContainer(name string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := &Container{ID: m.nextContainerID, Name: name, Filtered: true}
	m.nextContainerID++
	m.containers[c.ID] = c
	return c.ID
}

// RemoveContainers deletes containers, ignoring unknown ids.
func (m *Memory) RemoveContainers(_ context.Context, ids []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.containers, id)
	}
	return nil
}

// ChildContainers returns all descendants of the given container.
func (m *Memory) ChildContainers(rootID int64) []Container {
	m.mu.RLock()
	defer m.mu.RUnlock()
	root, ok := m.containers[rootID]
	if !ok {
		return nil
	}
	prefix := root.Name + "::"
	var out []Container
	for _, c := range m.containers {
		if strings.HasPrefix(c.Name, prefix) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// CardCount counts cards homed in the container, see Collection.
func (m *Memory) CardCount(containerID int64, includeSubtree bool) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.containers[containerID]; !ok {
		return 0, fmt.Errorf("container %d does not exist", containerID)
	}
	return len(m.cardsInLocked(containerID, includeSubtree)), nil
}

// CardsInContainer returns cards homed in the container, see Collection.
func (m *Memory) CardsInContainer(containerID int64, includeSubtree bool) []Card {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cards := m.cardsInLocked(containerID, includeSubtree)
	out := make([]Card, 0, len(cards))
	for _, c := range cards {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Memory) cardsInLocked(containerID int64, includeSubtree bool) []*Card {
	member := map[int64]struct{}{containerID: {}}
	if includeSubtree {
		root := m.containers[containerID]
		if root != nil {
			prefix := root.Name + "::"
			for id, c := range m.containers {
				if strings.HasPrefix(c.Name, prefix) {
					member[id] = struct{}{}
				}
			}
		}
	}
	var out []*Card
	for _, card := range m.cards {
		home := card.ContainerID
		if c, ok := m.containers[card.ContainerID]; ok && c.Filtered && card.OriginContainerID != 0 {
			home = card.OriginContainerID
		}
		if _, ok := member[home]; ok {
			out = append(out, card)
		}
	}
	return out
}

// MoveCards re-homes cards into the given container.
func (m *Memory) MoveCards(_ context.Context, cardIDs []int64, containerID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.containers[containerID]; !ok {
		return fmt.Errorf("container %d does not exist", containerID)
	}
	for _, id := range cardIDs {
		if card, ok := m.cards[id]; ok {
			card.ContainerID = containerID
		}
	}
	return nil
}

// SetCardOrigins changes only the origin container of the given cards.
func (m *Memory) SetCardOrigins(_ context.Context, cardIDs []int64, containerID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.containers[containerID]; !ok {
		return fmt.Errorf("container %d does not exist", containerID)
	}
	for _, id := range cardIDs {
		if card, ok := m.cards[id]; ok {
			card.OriginContainerID = containerID
		}
	}
	return nil
}

// ParkCard moves a card into a filtered container, remembering its origin.
// Test helper mirroring the host's filtered-study behavior.
func (m *Memory) ParkCard(cardID, filteredContainerID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	card, ok := m.cards[cardID]
	if !ok {
		return
	}
	if card.OriginContainerID == 0 {
		card.OriginContainerID = card.ContainerID
	}
	card.ContainerID = filteredContainerID
}

func copyNote(n *Note) *Note {
	cp := *n
	cp.Fields = make([]Field, len(n.Fields))
	copy(cp.Fields, n.Fields)
	cp.Tags = make([]string, len(n.Tags))
	copy(cp.Tags, n.Tags)
	return &cp
}

func copySchema(s *Schema) *Schema {
	cp := *s
	cp.Fields = make([]SchemaField, len(s.Fields))
	copy(cp.Fields, s.Fields)
	cp.Templates = make([]Template, len(s.Templates))
	copy(cp.Templates, s.Templates)
	return &cp
}

var _ Collection = (*Memory)(nil)

package host

import "context"

// OriginFieldName is the reserved schema field holding the record's remote id.
// It is always the last field of a synchronized schema, is invisible to
// protection logic and never appears in outbound proposals.
const OriginFieldName = "notehub_id"

// Field is one named field value of a record. Field order is significant and
// follows the record's schema.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Note is a record in the host collection.
type Note struct {
	// ID is the host-assigned local id. Zero until the note is added.
	ID int64
	// SchemaID references the note's record type.
	SchemaID int64
	// GUID is the content-identity string used for duplicate detection.
	GUID string
	// Fields holds the field values in schema order, origin-id field last.
	Fields []Field
	// Tags is the note's tag set.
	Tags []string
	// Mod is the host's modification counter, bumped on every write.
	Mod int64
}

// FieldValue returns the value of the named field, or "" if absent.
func (n *Note) FieldValue(name string) string {
	for _, f := range n.Fields {
		if f.Name == name {
			return f.Value
		}
	}
	return ""
}

// SetFieldValue overwrites the named field in place. Returns false if the
// note's schema has no such field.
func (n *Note) SetFieldValue(name, value string) bool {
	for i := range n.Fields {
		if n.Fields[i].Name == name {
			n.Fields[i].Value = value
			return true
		}
	}
	return false
}

// Card is one reviewable sub-item of a note. A note has one card per schema
// template.
type Card struct {
	ID     int64
	NoteID int64
	// ContainerID is the container the card currently sits in. For cards
	// pulled into a filtered container this is the filtered container's id.
	ContainerID int64
	// OriginContainerID is the container the card returns to when it leaves a
	// filtered container. Zero when the card is not parked anywhere.
	OriginContainerID int64
	// Suspended marks the card as excluded from review scheduling.
	Suspended bool
	// Reviewed reports whether the card has real review history.
	Reviewed bool
}

// SchemaField is one field slot of a schema. Ord is the storage ordinal;
// content is addressed by ordinal, not by name, which is why reconciliation
// must preserve ordinals for same-named fields.
type SchemaField struct {
	Name string `json:"name"`
	Ord  int    `json:"ord"`
}

// Template is one render template of a schema. Each template produces one
// card per note.
type Template struct {
	Name  string `json:"name"`
	Front string `json:"front"`
	Back  string `json:"back"`
}

// Schema is a record-type definition: an ordered field layout plus render
// templates.
type Schema struct {
	ID        int64         `json:"id"`
	Name      string        `json:"name"`
	Fields    []SchemaField `json:"fields"`
	Templates []Template    `json:"templates"`
	CSS       string        `json:"css"`
}

// FieldNames returns the schema's field names sorted by ordinal.
func (s *Schema) FieldNames() []string {
	names := make([]string, len(s.Fields))
	ordered := s.FieldsByOrd()
	for i, f := range ordered {
		names[i] = f.Name
	}
	return names
}

// FieldsByOrd returns the schema's fields sorted by ordinal.
func (s *Schema) FieldsByOrd() []SchemaField {
	out := make([]SchemaField, len(s.Fields))
	copy(out, s.Fields)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].Ord > out[j].Ord; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// Container is a grouping unit of the host's own hierarchy ("deck" in host
// terms). Names are `::`-delimited paths.
type Container struct {
	ID       int64
	Name     string
	Filtered bool
}

// Collection is the host application's document store. All mutation happens
// through these primitives; implementations are expected to be used from a
// single writer at a time (see the package documentation).
type Collection interface {
	// Note returns the note with the given local id.
	Note(id int64) (*Note, bool)

	// NewNote returns an unsaved note shaped after the given schema: empty
	// field values in schema order. ok is false if the schema is unknown.
	NewNote(schemaID int64) (*Note, bool)

	// AddNotes inserts notes into the collection, assigning local ids and
	// creating one card per schema template inside containerID. The passed
	// notes have their ID and Mod fields updated in place.
	AddNotes(ctx context.Context, notes []*Note, containerID int64) error

	// UpdateNotes persists field/tag/guid changes of existing notes and bumps
	// their Mod counters in place.
	UpdateNotes(ctx context.Context, notes []*Note) error

	// RemoveNotes deletes notes and their cards. Unknown ids are ignored;
	// the count of actually removed notes is returned.
	RemoveNotes(ctx context.Context, ids []int64) (int, error)

	// SetNoteSchema moves a note to another schema. Field values are carried
	// over by name; fields absent from the new schema are dropped and new
	// fields start empty.
	SetNoteSchema(ctx context.Context, noteID, schemaID int64) error

	// ExistingNoteIDs filters ids down to those present in the collection.
	ExistingNoteIDs(ids []int64) []int64

	// NoteIDsWithReviews returns the subset of ids whose cards have real
	// review history.
	NoteIDsWithReviews(ids []int64) (map[int64]struct{}, error)

	// CardsOfNote returns the note's cards.
	CardsOfNote(noteID int64) []Card

	// SuspendCards marks the given cards as suspended.
	SuspendCards(ctx context.Context, cardIDs []int64) error

	// Schema returns the schema with the given id.
	Schema(id int64) (*Schema, bool)

	// CreateSchema adds a schema under the id carried by the value.
	CreateSchema(ctx context.Context, schema *Schema) error

	// UpdateSchema replaces the stored schema with the given value. The field
	// count must match the template expectations of the host; a mismatch is
	// returned as an error with no partial application.
	UpdateSchema(ctx context.Context, schema *Schema) error

	// SchemaNameExists reports whether another schema already uses the name.
	SchemaNameExists(name string, excludeID int64) bool

	// Container returns the container with the given id.
	Container(id int64) (*Container, bool)

	// ContainerByName resolves a full `::`-delimited container path.
	ContainerByName(name string) (*Container, bool)

	// CreateContainer ensures the full container path exists, creating
	// missing ancestors, and returns the leaf container's id.
	CreateContainer(ctx context.Context, name string) (int64, error)

	// RemoveContainers deletes containers. Ids that no longer exist are
	// ignored (an earlier removal in the same sweep may have cascaded).
	RemoveContainers(ctx context.Context, ids []int64) error

	// ChildContainers returns all descendants of the given container.
	ChildContainers(rootID int64) []Container

	// CardCount counts the cards homed in the container, optionally including
	// descendants. Cards parked in a filtered container count toward their
	// origin container, not the filtered one.
	CardCount(containerID int64, includeSubtree bool) (int, error)

	// CardsInContainer returns the cards homed in the container (counting
	// parked cards by origin), optionally including descendants.
	CardsInContainer(containerID int64, includeSubtree bool) []Card

	// MoveCards re-homes cards into the given container.
	MoveCards(ctx context.Context, cardIDs []int64, containerID int64) error

	// SetCardOrigins changes only the origin container of cards currently
	// parked in a filtered container.
	SetCardOrigins(ctx context.Context, cardIDs []int64, containerID int64) error
}

package subdeck

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"notehub-sync/core/host"
	"notehub-sync/feature/protect"
)

func setupCollection(t *testing.T) (*host.Memory, int64) {
	mem := host.NewMemory()
	require.NoError(t, mem.CreateSchema(context.Background(), &host.Schema{
		ID:   1,
		Name: "Basic",
		Fields: []host.SchemaField{
			{Name: "Front", Ord: 0},
			{Name: host.OriginFieldName, Ord: 1},
		},
		Templates: []host.Template{{Name: "Card 1", Front: "{{Front}}", Back: ""}},
	}))
	rootID, err := mem.CreateContainer(context.Background(), "Root")
	require.NoError(t, err)
	return mem, rootID
}

func addNote(t *testing.T, mem *host.Memory, containerID int64, tags ...string) *host.Note {
	note, ok := mem.NewNote(1)
	require.True(t, ok)
	note.Tags = tags
	require.NoError(t, mem.AddNotes(context.Background(), []*host.Note{note}, containerID))
	return note
}

func TestReconcileMovesCardsIntoTaggedContainers(t *testing.T) {
	mem, rootID := setupCollection(t)
	r := New(mem, zap.NewNop())

	nested := addNote(t, mem, rootID, protect.TagSubdeck+"::A::B")
	single := addNote(t, mem, rootID, protect.TagSubdeck+"::A")

	err := r.Reconcile(context.Background(), rootID, []int64{nested.ID, single.ID})
	require.NoError(t, err)

	deep, ok := mem.ContainerByName("Root::A::B")
	require.True(t, ok)
	mid, ok := mem.ContainerByName("Root::A")
	require.True(t, ok)

	assert.Equal(t, deep.ID, mem.CardsOfNote(nested.ID)[0].ContainerID)
	assert.Equal(t, mid.ID, mem.CardsOfNote(single.ID)[0].ContainerID)
}

func TestReconcileNeverMovesUntaggedRecords(t *testing.T) {
	mem, rootID := setupCollection(t)
	r := New(mem, zap.NewNop())

	// The user sorted these cards into their own subcontainer by hand.
	manualID, err := mem.CreateContainer(context.Background(), "Root::Pharm")
	require.NoError(t, err)
	plain := addNote(t, mem, manualID, "anatomy")
	bare := addNote(t, mem, manualID, protect.TagSubdeck)
	tagged := addNote(t, mem, rootID, protect.TagSubdeck+"::A")

	err = r.Reconcile(context.Background(), rootID, []int64{plain.ID, bare.ID, tagged.ID})
	require.NoError(t, err)

	assert.Equal(t, manualID, mem.CardsOfNote(plain.ID)[0].ContainerID)
	assert.Equal(t, manualID, mem.CardsOfNote(bare.ID)[0].ContainerID)
	dest, ok := mem.ContainerByName("Root::A")
	require.True(t, ok)
	assert.Equal(t, dest.ID, mem.CardsOfNote(tagged.ID)[0].ContainerID)
}

func TestReconcileLeavesParkedCardsInFilteredContainer(t *testing.T) {
	mem, rootID := setupCollection(t)
	r := New(mem, zap.NewNop())

	note := addNote(t, mem, rootID, protect.TagSubdeck+"::A")
	card := mem.CardsOfNote(note.ID)[0]
	filteredID := mem.CreateFilteredContainer("Cram")
	mem.ParkCard(card.ID, filteredID)

	err := r.Reconcile(context.Background(), rootID, []int64{note.ID})
	require.NoError(t, err)

	dest, ok := mem.ContainerByName("Root::A")
	require.True(t, ok)
	moved := mem.CardsOfNote(note.ID)[0]
	assert.Equal(t, filteredID, moved.ContainerID)
	assert.Equal(t, dest.ID, moved.OriginContainerID)
}

func TestReconcileRemovesEmptiedSubcontainers(t *testing.T) {
	mem, rootID := setupCollection(t)
	r := New(mem, zap.NewNop())

	oldID, err := mem.CreateContainer(context.Background(), "Root::Old")
	require.NoError(t, err)
	note := addNote(t, mem, oldID, protect.TagSubdeck+"::Fresh")

	require.NoError(t, r.Reconcile(context.Background(), rootID, []int64{note.ID}))

	_, ok := mem.ContainerByName("Root::Old")
	assert.False(t, ok)
	fresh, ok := mem.ContainerByName("Root::Fresh")
	require.True(t, ok)
	assert.Equal(t, fresh.ID, mem.CardsOfNote(note.ID)[0].ContainerID)
}

func TestReconcileIsIdempotent(t *testing.T) {
	mem, rootID := setupCollection(t)
	r := New(mem, zap.NewNop())
	note := addNote(t, mem, rootID, protect.TagSubdeck+"::A::B")

	require.NoError(t, r.Reconcile(context.Background(), rootID, []int64{note.ID}))
	first := mem.CardsOfNote(note.ID)[0]

	require.NoError(t, r.Reconcile(context.Background(), rootID, []int64{note.ID}))
	second := mem.CardsOfNote(note.ID)[0]

	assert.Equal(t, first, second)
}

func TestFlatten(t *testing.T) {
	mem, rootID := setupCollection(t)
	r := New(mem, zap.NewNop())
	note := addNote(t, mem, rootID, protect.TagSubdeck+"::A::B")
	require.NoError(t, r.Reconcile(context.Background(), rootID, []int64{note.ID}))

	require.NoError(t, r.Flatten(context.Background(), rootID))

	assert.Equal(t, rootID, mem.CardsOfNote(note.ID)[0].ContainerID)
	_, ok := mem.ContainerByName("Root::A")
	assert.False(t, ok)
	_, ok = mem.ContainerByName("Root::A::B")
	assert.False(t, ok)
}

package protect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubdeckTag(t *testing.T) {
	tag, ok := SubdeckTag([]string{"anatomy", "NoteHub_Subdeck::Deck::Sub"})
	assert.True(t, ok)
	assert.Equal(t, "NoteHub_Subdeck::Deck::Sub", tag)

	_, ok = SubdeckTag([]string{"anatomy"})
	assert.False(t, ok)
}

func TestHasSubdeckTags(t *testing.T) {
	assert.True(t, HasSubdeckTags([]string{"NoteHub_Subdeck::Deck::Sub"}))
	assert.True(t, HasSubdeckTags([]string{"NoteHub_Subdeck::Deck"}))
	// A bare namespace tag carries no placement.
	assert.False(t, HasSubdeckTags([]string{"NoteHub_Subdeck"}))
	assert.False(t, HasSubdeckTags([]string{"anatomy"}))
}

func TestContainerNameForTag(t *testing.T) {
	t.Run("SingleSegment", func(t *testing.T) {
		name, ok := ContainerNameForTag("Root", "NoteHub_Subdeck::A")
		assert.True(t, ok)
		assert.Equal(t, "Root::A", name)
	})

	t.Run("Nested", func(t *testing.T) {
		name, ok := ContainerNameForTag("Root", "NoteHub_Subdeck::A::B")
		assert.True(t, ok)
		assert.Equal(t, "Root::A::B", name)
	})

	t.Run("NoSeparatorIsInvalid", func(t *testing.T) {
		_, ok := ContainerNameForTag("Root", "NoteHub_Subdeck")
		assert.False(t, ok)
	})

	t.Run("EmptyPathIsInvalid", func(t *testing.T) {
		_, ok := ContainerNameForTag("Root", "NoteHub_Subdeck::")
		assert.False(t, ok)
	})
}

func TestTagForContainerName(t *testing.T) {
	t.Run("SpacesBecomeUnderscores", func(t *testing.T) {
		got := TagForContainerName("My Deck::Sub Deck")
		assert.Equal(t, "NoteHub_Subdeck::My_Deck::Sub_Deck", got)
	})

	t.Run("ApostrophesRemoved", func(t *testing.T) {
		got := TagForContainerName("Doctor's Notes")
		assert.Equal(t, "NoteHub_Subdeck::Doctors_Notes", got)
	})

	t.Run("SpacesAroundSeparatorsCollapsed", func(t *testing.T) {
		got := TagForContainerName("A :: B")
		assert.Equal(t, "NoteHub_Subdeck::A::B", got)
	})

	t.Run("CommaAndPlusSpacing", func(t *testing.T) {
		got := TagForContainerName("Head, Neck + Thorax")
		assert.Equal(t, "NoteHub_Subdeck::Head,Neck+Thorax", got)
	})

	t.Run("UnderscoreRunsCollapsed", func(t *testing.T) {
		got := TagForContainerName("A  B")
		assert.Equal(t, "NoteHub_Subdeck::A_B", got)
	})
}

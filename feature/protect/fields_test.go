package protect

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"notehub-sync/core/host"
)

func TestFieldsProtectedByTags(t *testing.T) {
	fields := []string{"Front", "Back", "Extra Notes", host.OriginFieldName}

	t.Run("SingleField", func(t *testing.T) {
		got := FieldsProtectedByTags([]string{"NoteHub_Protect::Front"}, fields)
		assert.Equal(t, []string{"Front"}, got)
	})

	t.Run("UnderscoreMatchesSpace", func(t *testing.T) {
		got := FieldsProtectedByTags([]string{"NoteHub_Protect::Extra_Notes"}, fields)
		assert.Equal(t, []string{"Extra Notes"}, got)
	})

	t.Run("CaseInsensitive", func(t *testing.T) {
		got := FieldsProtectedByTags([]string{"notehub_protect::front"}, fields)
		assert.Equal(t, []string{"Front"}, got)
	})

	t.Run("ProtectAllExcludesOriginField", func(t *testing.T) {
		got := FieldsProtectedByTags([]string{"NoteHub_Protect::All"}, fields)
		assert.Equal(t, []string{"Front", "Back", "Extra Notes"}, got)
	})

	t.Run("NoProtectionTags", func(t *testing.T) {
		got := FieldsProtectedByTags([]string{"anatomy", "leech"}, fields)
		assert.Empty(t, got)
	})

	t.Run("UnknownFieldTagIgnored", func(t *testing.T) {
		got := FieldsProtectedByTags([]string{"NoteHub_Protect::Bogus"}, fields)
		assert.Empty(t, got)
	})
}

func TestResolve(t *testing.T) {
	fields := []string{"Front", "Back", host.OriginFieldName}

	t.Run("CombinesConfiguredAndTags", func(t *testing.T) {
		spec := Resolve([]string{"NoteHub_Protect::Back"}, fields, []string{"Front"})
		assert.True(t, spec.Protects("Front"))
		assert.True(t, spec.Protects("Back"))
		assert.False(t, spec.Protects(host.OriginFieldName))
		assert.False(t, spec.All())
	})

	t.Run("ProtectAll", func(t *testing.T) {
		spec := Resolve([]string{"NoteHub_Protect::All"}, fields, nil)
		assert.True(t, spec.All())
		assert.True(t, spec.Protects("Front"))
		assert.True(t, spec.Protects("Back"))
		assert.False(t, spec.Protects(host.OriginFieldName))
	})

	t.Run("Empty", func(t *testing.T) {
		spec := Resolve(nil, fields, nil)
		assert.False(t, spec.Protects("Front"))
		assert.Empty(t, spec.FieldNames())
	})

	t.Run("NormalizedLookup", func(t *testing.T) {
		spec := Resolve(nil, fields, []string{"Extra Notes"})
		assert.True(t, spec.Protects("extra_notes"))
	})
}

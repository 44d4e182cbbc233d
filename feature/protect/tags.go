package protect

import "strings"

const (
	// TagProtect is the root of the field-protection tag namespace.
	TagProtect = "NoteHub_Protect"
	// TagProtectAll shields every field of the record.
	TagProtectAll = TagProtect + "::All"
	// TagOptional is the root of the opt-in tag-group namespace.
	TagOptional = "NoteHub_Optional"
	// TagDeleted marks a record the remote deleted but the host kept.
	TagDeleted = "NoteHub_Deleted"
	// TagSubdeck is the root of the hierarchy tag namespace.
	TagSubdeck = "NoteHub_Subdeck"
	// TagInstruction marks informational records exempt from suspension
	// policies.
	TagInstruction = "NoteHub_Instructions"
	// TagUpdate is the root of the update-marker namespace: tags that flag
	// what the last sync changed.
	TagUpdate = "NoteHub_Update"
	// TagNewRecord marks a record created by a non-first sync.
	TagNewRecord = TagUpdate + "::New_Note"
)

// engine-owned top-level tags, not used by the remote authority
var engineInternalTags = []string{
	TagProtect,
	TagDeleted,
	TagUpdate,
	"autoopen",
}

// tags the host application manages itself; merges must never drop them
var hostInternalTags = []string{"leech", "marked"}

var internalTags = append(append([]string{}, engineInternalTags...), hostInternalTags...)

// IsInternalTag reports whether the tag is a housekeeping tag (the tag itself
// or anything below it in the `::` hierarchy), case-insensitively.
func IsInternalTag(tag string) bool {
	lower := strings.ToLower(tag)
	for _, internal := range internalTags {
		if strings.EqualFold(tag, internal) {
			return true
		}
		if strings.HasPrefix(lower, strings.ToLower(internal)+"::") {
			return true
		}
	}
	return false
}

// IsOptionalTag reports whether the tag belongs to the opt-in namespace.
func IsOptionalTag(tag string) bool {
	prefix := TagOptional + "::"
	return len(tag) >= len(prefix) && strings.EqualFold(tag[:len(prefix)], prefix)
}

// IsTagForGroup reports whether the tag belongs to one opt-in group.
func IsTagForGroup(tag, groupName string) bool {
	prefix := OptionalTagPrefixForGroup(groupName)
	return len(tag) >= len(prefix) && strings.EqualFold(tag[:len(prefix)], prefix)
}

// OptionalTagPrefixForGroup returns the tag prefix of one opt-in group.
func OptionalTagPrefixForGroup(groupName string) string {
	return TagOptional + "::" + strings.ReplaceAll(groupName, " ", "_") + "::"
}

// IsTagProtected reports whether a tag is shielded by the collection's
// protected tag list. Protected tags cannot contain "::"; a tag is protected
// when any of its `::` segments equals a protected tag, case-insensitively.
func IsTagProtected(tag string, protectedTags []string) bool {
	segments := strings.Split(tag, "::")
	for _, protected := range protectedTags {
		for _, segment := range segments {
			if strings.EqualFold(segment, protected) {
				return true
			}
		}
	}
	return false
}

// HasTag reports case-insensitive membership of tag in tags.
func HasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

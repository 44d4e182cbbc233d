package protect

import (
	"sort"
	"strings"

	"notehub-sync/core/host"
)

// FieldsProtectedByTags returns the subset of fieldNames shielded by
// protection tags. Tag leaves and field names are compared with underscores
// treated as spaces and case folded, because tags cannot contain spaces. The
// protect-all tag shields every field except the origin-id field.
func FieldsProtectedByTags(tags []string, fieldNames []string) []string {
	if HasTag(tags, TagProtectAll) {
		result := make([]string, 0, len(fieldNames))
		for _, name := range fieldNames {
			if name != host.OriginFieldName {
				result = append(result, name)
			}
		}
		return result
	}

	prefix := strings.ToLower(TagProtect + "::")
	var leaves []string
	for _, tag := range tags {
		if strings.HasPrefix(strings.ToLower(tag), prefix) {
			leaves = append(leaves, normalizeFieldName(tag[len(prefix):]))
		}
	}
	if len(leaves) == 0 {
		return nil
	}

	var result []string
	for _, name := range fieldNames {
		normalized := normalizeFieldName(name)
		for _, leaf := range leaves {
			if normalized == leaf {
				result = append(result, name)
				break
			}
		}
	}
	return result
}

func normalizeFieldName(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, "_", " "))
}

// Spec is the resolved protection decision for one record: which fields an
// incoming update must not overwrite. It is computed once per record at the
// import boundary and consulted everywhere else.
type Spec struct {
	fields map[string]struct{}
	all    bool
}

// Resolve combines the collection-configured protected fields with the
// record's own protection tags.
func Resolve(tags []string, fieldNames []string, configured []string) Spec {
	spec := Spec{fields: make(map[string]struct{})}
	if HasTag(tags, TagProtectAll) {
		spec.all = true
		return spec
	}
	for _, name := range configured {
		spec.fields[normalizeFieldName(name)] = struct{}{}
	}
	for _, name := range FieldsProtectedByTags(tags, fieldNames) {
		spec.fields[normalizeFieldName(name)] = struct{}{}
	}
	return spec
}

// Protects reports whether the named field must keep its local value.
func (s Spec) Protects(fieldName string) bool {
	if s.all {
		return fieldName != host.OriginFieldName
	}
	_, ok := s.fields[normalizeFieldName(fieldName)]
	return ok
}

// All reports whether every field is protected.
func (s Spec) All() bool {
	return s.all
}

// FieldNames returns the protected names in sorted normalized form.
func (s Spec) FieldNames() []string {
	names := make([]string, 0, len(s.fields))
	for name := range s.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

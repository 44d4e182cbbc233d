package protect

import (
	"regexp"
	"strings"
)

// SubdeckTag returns the record's hierarchy tag. A record carries at most one;
// if several are present the first wins.
func SubdeckTag(tags []string) (string, bool) {
	prefix := strings.ToLower(TagSubdeck)
	for _, tag := range tags {
		if strings.HasPrefix(strings.ToLower(tag), prefix) {
			return tag, true
		}
	}
	return "", false
}

// HasSubdeckTags reports whether any tag carries a hierarchy placement
// (namespace plus at least one path segment).
func HasSubdeckTags(tags []string) bool {
	for _, tag := range tags {
		t, ok := SubdeckTag([]string{tag})
		if ok && strings.Contains(t, "::") {
			return true
		}
	}
	return false
}

// ContainerNameForTag translates a hierarchy tag into a full container path
// under the given root. The tag form is "NoteHub_Subdeck::<path>"; the path
// is appended below the root name, so the same tag resolves correctly even
// after the user renames the root container locally. ok is false for a bare
// namespace tag with no path.
func ContainerNameForTag(rootName, tag string) (string, bool) {
	idx := strings.Index(tag, "::")
	if idx < 0 {
		return "", false
	}
	suffix := tag[idx+2:]
	if suffix == "" {
		return "", false
	}
	return rootName + "::" + suffix, true
}

var (
	spacesBeforeSep = regexp.MustCompile(` +::`)
	spacesAfterSep  = regexp.MustCompile(`:: +`)
	underscoreRuns  = regexp.MustCompile(`_+`)
)

// TagForContainerName converts a container path into a clean hierarchy tag.
// Container names may contain characters tags cannot (spaces, apostrophes);
// the result is normalized so round-tripping through the host tag store is
// stable.
func TagForContainerName(containerName string) string {
	result := TagSubdeck + "::" + containerName

	result = strings.ReplaceAll(result, "'", "")

	result = strings.TrimSpace(result)
	result = spacesBeforeSep.ReplaceAllString(result, "::")
	result = spacesAfterSep.ReplaceAllString(result, "::")

	result = strings.ReplaceAll(result, ", ", ",")

	result = strings.ReplaceAll(result, " +", "+")
	result = strings.ReplaceAll(result, "+ ", "+")

	result = strings.ReplaceAll(result, " ", "_")

	result = underscoreRuns.ReplaceAllString(result, "_")

	return result
}

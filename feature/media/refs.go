package media

import (
	"regexp"
	"strings"

	"notehub-sync/core/host"
)

var (
	srcDoubleQuotedRe = regexp.MustCompile(`(?i)(?:src|data)="([^"]+)"`)
	srcSingleQuotedRe = regexp.MustCompile(`(?i)(?:src|data)='([^']+)'`)
	soundRe           = regexp.MustCompile(`\[sound:([^\]]+)\]`)
)

// NamesFromHTML extracts the media file names referenced by one field value:
// src/data attributes and [sound:…] directives. Remote URLs are not local
// media and are skipped. Order of first appearance is kept, duplicates are
// dropped.
func NamesFromHTML(value string) []string {
	var names []string
	seen := make(map[string]struct{})
	add := func(matches [][]string) {
		for _, m := range matches {
			name := m[1]
			if strings.Contains(name, "://") {
				continue
			}
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	add(srcDoubleQuotedRe.FindAllStringSubmatch(value, -1))
	add(srcSingleQuotedRe.FindAllStringSubmatch(value, -1))
	add(soundRe.FindAllStringSubmatch(value, -1))
	return names
}

// NamesFromNote extracts every media name referenced by the record's fields.
func NamesFromNote(note *host.Note) []string {
	var names []string
	seen := make(map[string]struct{})
	for _, f := range note.Fields {
		if f.Name == host.OriginFieldName {
			continue
		}
		for _, name := range NamesFromHTML(f.Value) {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	return names
}

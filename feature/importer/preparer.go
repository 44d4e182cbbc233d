package importer

import (
	"sort"

	"notehub-sync/core/feed"
	"notehub-sync/core/host"
	"notehub-sync/feature/protect"
)

// Preparer computes the post-merge state of one record. It never mutates the
// note it is given and never touches the host collection.
type Preparer struct {
	protectedFields map[int64][]string
	protectedTags   []string
}

// NewPreparer returns a Preparer for one collection's protection settings.
// protectedFields maps schema ids to field names the remote forbids
// overwriting; protectedTags are plain tag names preserved during merges.
func NewPreparer(protectedFields map[int64][]string, protectedTags []string) *Preparer {
	return &Preparer{
		protectedFields: protectedFields,
		protectedTags:   protectedTags,
	}
}

// Prepare merges an incoming payload into a copy of the note and reports
// whether anything changed. The caller persists the returned note only when
// changed is true.
func (p *Preparer) Prepare(note *host.Note, payload feed.RecordPayload) (*host.Note, bool) {
	prepared := cloneNote(note)

	changedGUID := p.prepareGUID(prepared, payload.GUID)
	changedOrigin := p.prepareOriginField(prepared, payload.RemoteID.String())
	changedFields := p.prepareFields(prepared, payload.Fields)
	changedTags := p.prepareTags(prepared, payload.Tags)

	return prepared, changedGUID || changedOrigin || changedFields || changedTags
}

func (p *Preparer) prepareGUID(note *host.Note, guid string) bool {
	if note.GUID == guid {
		return false
	}
	note.GUID = guid
	return true
}

// prepareOriginField keeps the origin-id field equal to the remote id. It is
// exempt from protection, including protect-all.
func (p *Preparer) prepareOriginField(note *host.Note, remoteID string) bool {
	if note.FieldValue(host.OriginFieldName) == remoteID {
		return false
	}
	return note.SetFieldValue(host.OriginFieldName, remoteID)
}

func (p *Preparer) prepareFields(note *host.Note, incoming []host.Field) bool {
	if protect.HasTag(note.Tags, protect.TagProtectAll) {
		return false
	}

	fieldNames := make([]string, 0, len(note.Fields))
	for _, f := range note.Fields {
		fieldNames = append(fieldNames, f.Name)
	}
	spec := protect.Resolve(note.Tags, fieldNames, p.protectedFields[note.SchemaID])

	// Only fields the payload carries are merged; local fields the remote
	// does not deliver keep their content.
	changed := false
	for _, f := range incoming {
		if f.Name == host.OriginFieldName {
			continue
		}
		if spec.Protects(f.Name) {
			continue
		}
		if note.FieldValue(f.Name) != f.Value {
			if note.SetFieldValue(f.Name, f.Value) {
				changed = true
			}
		}
	}
	return changed
}

func (p *Preparer) prepareTags(note *host.Note, incoming []string) bool {
	merged := MergeTags(note.Tags, incoming, p.protectedTags)
	if tagSetsEqual(note.Tags, merged) {
		return false
	}
	note.Tags = merged
	return true
}

// MergeTags computes the inbound tag merge: the union of the current tags
// that are protected, internal or optional with the full incoming set. Plain
// tags absent from the incoming set are dropped. This asymmetry (the outbound
// diff treats tags symmetrically) is intentional, the remote tag set is
// authoritative for everything it governs.
//
// Protected tags cannot contain "::"; a current tag is protected when any of
// its `::` segments equals a protected tag, case-insensitively.
func MergeTags(current, incoming, protectedTags []string) []string {
	keep := make(map[string]struct{})

	for _, tag := range current {
		if protect.IsTagProtected(tag, protectedTags) || protect.IsInternalTag(tag) || protect.IsOptionalTag(tag) {
			keep[tag] = struct{}{}
		}
	}
	for _, tag := range incoming {
		keep[tag] = struct{}{}
	}

	result := make([]string, 0, len(keep))
	for tag := range keep {
		result = append(result, tag)
	}
	sort.Strings(result)
	return result
}

func tagSetsEqual(a, b []string) bool {
	setA := make(map[string]struct{}, len(a))
	for _, t := range a {
		setA[t] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, t := range b {
		setB[t] = struct{}{}
	}
	if len(setA) != len(setB) {
		return false
	}
	for t := range setA {
		if _, ok := setB[t]; !ok {
			return false
		}
	}
	return true
}

func cloneNote(n *host.Note) *host.Note {
	cp := *n
	cp.Fields = make([]host.Field, len(n.Fields))
	copy(cp.Fields, n.Fields)
	cp.Tags = make([]string, len(n.Tags))
	copy(cp.Tags, n.Tags)
	return &cp
}

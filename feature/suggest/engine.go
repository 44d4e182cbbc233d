package suggest

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"notehub-sync/core/feed"
	"notehub-sync/core/host"
	"notehub-sync/core/index"
	"notehub-sync/feature/protect"
)

// Options carry the submission metadata shared by every proposal in a batch.
type Options struct {
	// ChangeKind is the author-declared reason for the edit.
	ChangeKind feed.UpdateKind
	// Comment is free text attached to every proposal.
	Comment string
	// ProtectedTags is the collection's protected tag list; protected tags
	// never appear in outbound tag deltas.
	ProtectedTags []string
}

// Result partitions one batch of records. A record lands in exactly one list.
type Result struct {
	// NewRecords are proposals for records the local index does not know.
	NewRecords []feed.NewRecordProposal
	// Changes are proposals for records that already exist remotely.
	Changes []feed.ChangeProposal
	// NoChanges are local ids whose records match the shadow state.
	NoChanges []int64
	// Missing are local ids with no record in the host collection.
	Missing []int64
}

// Engine diffs local records against the index shadow.
type Engine struct {
	col   host.Collection
	store *index.Store
	log   *zap.Logger
}

// New wires an engine to the host collection and the local index.
func New(col host.Collection, store *index.Store, log *zap.Logger) *Engine {
	return &Engine{col: col, store: store, log: log}
}

// Proposals diffs the given records of one collection. Records without a
// shadow row become new-record proposals; the rest become change proposals or
// are reported as unchanged.
func (e *Engine) Proposals(collectionID uuid.UUID, localIDs []int64, opts Options) (*Result, error) {
	shadows, err := e.store.ShadowsForLocalIDs(collectionID, localIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load shadow state: %w", err)
	}

	result := &Result{}
	for _, localID := range localIDs {
		note, ok := e.col.Note(localID)
		if !ok {
			result.Missing = append(result.Missing, localID)
			continue
		}

		shadow, known := shadows[localID]
		if !known {
			proposal, err := e.newRecordProposal(collectionID, note, opts)
			if err != nil {
				return nil, err
			}
			result.NewRecords = append(result.NewRecords, proposal)
			continue
		}

		change := e.changeProposal(note, shadow, opts)
		if len(change.FieldsChanged) == 0 && len(change.TagsAdded) == 0 && len(change.TagsRemoved) == 0 {
			result.NoChanges = append(result.NoChanges, localID)
			continue
		}
		result.Changes = append(result.Changes, change)
	}

	e.log.Info("Computed proposals",
		zap.String("collection_id", collectionID.String()),
		zap.Int("new", len(result.NewRecords)),
		zap.Int("changed", len(result.Changes)),
		zap.Int("unchanged", len(result.NoChanges)),
		zap.Int("missing", len(result.Missing)))
	return result, nil
}

func (e *Engine) newRecordProposal(collectionID uuid.UUID, note *host.Note, opts Options) (feed.NewRecordProposal, error) {
	schema, ok := e.col.Schema(note.SchemaID)
	if !ok {
		return feed.NewRecordProposal{}, fmt.Errorf("record %d references unknown schema %d", note.ID, note.SchemaID)
	}
	return feed.NewRecordProposal{
		CollectionID: collectionID,
		RemoteID:     uuid.New(),
		LocalID:      note.ID,
		Fields:       outboundFields(note),
		Tags:         outboundTags(note.Tags, opts.ProtectedTags),
		GUID:         note.GUID,
		SchemaName:   schema.Name,
		Comment:      opts.Comment,
	}, nil
}

func (e *Engine) changeProposal(note *host.Note, shadow *index.ShadowNote, opts Options) feed.ChangeProposal {
	localFields := outboundFields(note)

	var changed []host.Field
	for i, f := range localFields {
		if i >= len(shadow.Fields) {
			changed = append(changed, f)
			continue
		}
		if f.Value != shadow.Fields[i].Value {
			changed = append(changed, f)
		}
	}

	localTags := outboundTags(note.Tags, opts.ProtectedTags)
	shadowTags := outboundTags(shadow.Tags, opts.ProtectedTags)

	return feed.ChangeProposal{
		RemoteID:      shadow.RemoteID,
		LocalID:       note.ID,
		FieldsChanged: changed,
		TagsAdded:     subtract(localTags, shadowTags),
		TagsRemoved:   subtract(shadowTags, localTags),
		ChangeKind:    opts.ChangeKind,
		Comment:       opts.Comment,
	}
}

// outboundFields strips the origin-id field; it never leaves the host.
func outboundFields(note *host.Note) []host.Field {
	fields := make([]host.Field, 0, len(note.Fields))
	for _, f := range note.Fields {
		if f.Name == host.OriginFieldName {
			continue
		}
		fields = append(fields, f)
	}
	return fields
}

// outboundTags drops housekeeping, opt-in and protected tags. They are local
// concerns and never appear in a proposal, in either direction.
func outboundTags(tags, protectedTags []string) []string {
	var out []string
	for _, tag := range tags {
		if protect.IsInternalTag(tag) || protect.IsOptionalTag(tag) {
			continue
		}
		if protect.IsTagProtected(tag, protectedTags) {
			continue
		}
		out = append(out, tag)
	}
	return out
}

func subtract(a, b []string) []string {
	present := make(map[string]struct{}, len(b))
	for _, tag := range b {
		present[tag] = struct{}{}
	}
	var out []string
	for _, tag := range a {
		if _, ok := present[tag]; !ok {
			out = append(out, tag)
		}
	}
	return out
}

package importer

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"notehub-sync/core/feed"
	"notehub-sync/core/host"
	"notehub-sync/core/index"
	"notehub-sync/feature/protect"
)

// ImportParams carries everything one collection import needs. The caller
// resolves configuration and feed data; the importer only mutates.
type ImportParams struct {
	CollectionID   uuid.UUID
	CollectionName string

	// Notes is the batch of record payloads to apply.
	Notes []feed.RecordPayload
	// Schemas are the remote record-type definitions referenced by the batch.
	Schemas map[int64]*host.Schema
	// ProtectedFields maps schema ids to field names shielded by collection
	// configuration.
	ProtectedFields map[int64][]string
	// ProtectedTags are plain tag names preserved during merges.
	ProtectedTags []string

	// ContainerID is the destination for created records. Zero means create a
	// container named after the collection.
	ContainerID int64
	// FirstImport enables the shadow cleanup and destination-container
	// consolidation passes.
	FirstImport bool

	DeletePolicy    index.DeletePolicy
	SuspendNewNotes bool
	SuspendExisting index.SuspendExistingPolicy
}

// ImportResult summarizes one collection import. The id lists are disjoint.
type ImportResult struct {
	CollectionID uuid.UUID
	// ContainerID is the destination container actually in effect after the
	// import, which may differ from the requested one on a first import.
	ContainerID   int64
	Created       []int64
	Updated       []int64
	Deleted       []int64
	MarkedDeleted []int64
	// Skipped are records whose local id is claimed by another collection.
	Skipped     []int64
	Unchanged   []int64
	FirstImport bool
}

// Importer applies remote record batches to the host collection.
type Importer struct {
	col     host.Collection
	store   *index.Store
	schemas *SchemaReconciler
	log     *zap.Logger
}

// New wires an importer to the host collection and the local index.
func New(col host.Collection, store *index.Store, log *zap.Logger) *Importer {
	return &Importer{
		col:     col,
		store:   store,
		schemas: NewSchemaReconciler(col, store, log),
		log:     log,
	}
}

// prepared pairs a computed note state with the payload it came from.
type prepared struct {
	payload feed.RecordPayload
	note    *host.Note
}

// ImportCollection applies one batch for one collection. The phase order is
// fixed: index upsert, schema reconciliation, record preparation, then
// updates, creates, deletes and delete-markings, then mod bookkeeping and
// suspensions. Re-applying the same batch is idempotent.
func (im *Importer) ImportCollection(ctx context.Context, params ImportParams) (*ImportResult, error) {
	im.log.Info("Importing collection",
		zap.String("collection_id", params.CollectionID.String()),
		zap.String("name", params.CollectionName),
		zap.Int("notes_count", len(params.Notes)),
		zap.Bool("first_import", params.FirstImport))

	result := &ImportResult{
		CollectionID: params.CollectionID,
		FirstImport:  params.FirstImport,
	}

	containerID, err := im.ensureContainer(ctx, params)
	if err != nil {
		return nil, err
	}
	result.ContainerID = containerID

	if params.FirstImport {
		// Stale rows from an earlier subscription of the same collection must
		// not shadow or conflict with this import.
		if err := im.store.ClearCollectionData(ctx, params.CollectionID); err != nil {
			return nil, err
		}
	}

	if err := im.schemas.Ensure(ctx, params.CollectionID, params.Schemas); err != nil {
		return nil, err
	}

	upsert, err := im.store.UpsertBatch(ctx, params.CollectionID, params.Notes)
	if err != nil {
		return nil, err
	}
	skippedSet := make(map[uuid.UUID]struct{}, len(upsert.Skipped))
	for _, id := range upsert.Skipped {
		skippedSet[id] = struct{}{}
	}
	var batch []feed.RecordPayload
	for _, payload := range params.Notes {
		if _, ok := skippedSet[payload.RemoteID]; ok {
			result.Skipped = append(result.Skipped, payload.LocalID)
			continue
		}
		batch = append(batch, payload)
	}
	if len(upsert.Skipped) > 0 {
		im.log.Warn("Skipped records claimed by another collection",
			zap.Int("count", len(upsert.Skipped)))
	}

	if err := im.resetDriftedSchemas(ctx, batch, upsert.LocalIDs); err != nil {
		return nil, err
	}

	creates, updates, deletes, err := im.classify(batch, upsert.LocalIDs, params, result)
	if err != nil {
		return nil, err
	}
	im.log.Info("Prepared records",
		zap.Int("to_create", len(creates)),
		zap.Int("to_update", len(updates)),
		zap.Int("to_delete", len(deletes)),
		zap.Int("unchanged", len(result.Unchanged)))

	// Capture pre-change card sets; the suspension policy is evaluated
	// against prior state.
	cardsBefore := make(map[int64][]host.Card, len(updates))
	for _, u := range updates {
		cardsBefore[u.note.ID] = im.col.CardsOfNote(u.note.ID)
	}

	if err := im.applyUpdates(ctx, updates, result); err != nil {
		return nil, err
	}
	if err := im.applyCreates(ctx, creates, containerID, result); err != nil {
		return nil, err
	}
	if err := im.applyDeletes(ctx, deletes, upsert.LocalIDs, params.DeletePolicy, result); err != nil {
		return nil, err
	}

	if err := im.recordMods(ctx, creates, updates); err != nil {
		return nil, err
	}

	if err := im.suspendNewCards(ctx, creates, updates, cardsBefore, params); err != nil {
		return nil, err
	}

	if params.FirstImport {
		affected := append(append([]int64{}, result.Created...), result.Updated...)
		affected = append(affected, result.Unchanged...)
		finalID, err := im.cleanupFirstImport(ctx, affected, containerID)
		if err != nil {
			return nil, err
		}
		result.ContainerID = finalID
	}

	im.log.Info("Import summary",
		zap.Int("created", len(result.Created)),
		zap.Int("updated", len(result.Updated)),
		zap.Int("deleted", len(result.Deleted)),
		zap.Int("marked_deleted", len(result.MarkedDeleted)),
		zap.Int("skipped", len(result.Skipped)),
		zap.Int("unchanged", len(result.Unchanged)))
	return result, nil
}

// ensureContainer resolves the destination container, creating one under a
// collision-free name when none is configured or the configured one vanished.
func (im *Importer) ensureContainer(ctx context.Context, params ImportParams) (int64, error) {
	if params.ContainerID != 0 {
		if _, ok := im.col.Container(params.ContainerID); ok {
			return params.ContainerID, nil
		}
	}
	name := params.CollectionName
	if _, taken := im.col.ContainerByName(name); taken {
		name = fmt.Sprintf("%s (NoteHub)", params.CollectionName)
		for n := 2; ; n++ {
			if _, taken := im.col.ContainerByName(name); !taken {
				break
			}
			name = fmt.Sprintf("%s (NoteHub %d)", params.CollectionName, n)
		}
	}
	id, err := im.col.CreateContainer(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("failed to create destination container: %w", err)
	}
	im.log.Info("Created destination container",
		zap.Int64("container_id", id), zap.String("name", name))
	return id, nil
}

// resetDriftedSchemas moves any local record back to the schema the remote
// says it should have. A record must never silently drift to an unrelated
// schema.
func (im *Importer) resetDriftedSchemas(ctx context.Context, batch []feed.RecordPayload, localIDs map[uuid.UUID]int64) error {
	for _, payload := range batch {
		localID := localIDs[payload.RemoteID]
		if localID == 0 {
			continue
		}
		note, ok := im.col.Note(localID)
		if !ok || note.SchemaID == payload.SchemaID {
			continue
		}
		im.log.Warn("Resetting drifted record schema",
			zap.Int64("local_id", note.ID),
			zap.Int64("from", note.SchemaID),
			zap.Int64("to", payload.SchemaID))
		if err := im.col.SetNoteSchema(ctx, note.ID, payload.SchemaID); err != nil {
			return fmt.Errorf("failed to reset schema of record %d: %w", note.ID, err)
		}
	}
	return nil
}

func (im *Importer) classify(batch []feed.RecordPayload, localIDs map[uuid.UUID]int64, params ImportParams, result *ImportResult) (creates, updates []prepared, deletes []feed.RecordPayload, err error) {
	preparer := NewPreparer(params.ProtectedFields, params.ProtectedTags)
	for _, payload := range batch {
		if payload.LastUpdateKind == feed.UpdateKindDelete {
			deletes = append(deletes, payload)
			continue
		}

		note, exists := lookupNote(im.col, localIDs[payload.RemoteID])
		if !exists {
			base, ok := im.col.NewNote(payload.SchemaID)
			if !ok {
				return nil, nil, nil, fmt.Errorf("record %s references unknown schema %d",
					payload.RemoteID, payload.SchemaID)
			}
			note, _ := preparer.Prepare(base, payload)
			if !params.FirstImport {
				addMarkerTag(note, protect.TagNewRecord)
			}
			creates = append(creates, prepared{payload: payload, note: note})
			continue
		}

		merged, changed := preparer.Prepare(note, payload)
		if changed {
			if !params.FirstImport {
				if marker, ok := updateMarkerTags[payload.LastUpdateKind]; ok {
					addMarkerTag(merged, marker)
				}
			}
			updates = append(updates, prepared{payload: payload, note: merged})
		} else {
			result.Unchanged = append(result.Unchanged, note.ID)
		}
	}
	return creates, updates, deletes, nil
}

// updateMarkerTags flag, per update kind, what the last sync changed. They
// are only added on non-first imports; a first import would mark everything.
var updateMarkerTags = map[feed.UpdateKind]string{
	feed.UpdateKindNewContent:      protect.TagUpdate + "::Content::New",
	feed.UpdateKindUpdatedContent:  protect.TagUpdate + "::Content::Updated",
	feed.UpdateKindSpellingGrammar: protect.TagUpdate + "::Spelling/Grammar",
	feed.UpdateKindNewTags:         protect.TagUpdate + "::New_tags",
	feed.UpdateKindOther:           protect.TagUpdate + "::Other",
}

func addMarkerTag(note *host.Note, marker string) {
	if !protect.HasTag(note.Tags, marker) {
		note.Tags = append(note.Tags, marker)
	}
}

func lookupNote(col host.Collection, localID int64) (*host.Note, bool) {
	if localID == 0 {
		return nil, false
	}
	return col.Note(localID)
}

func (im *Importer) applyUpdates(ctx context.Context, updates []prepared, result *ImportResult) error {
	if len(updates) == 0 {
		return nil
	}
	notes := make([]*host.Note, len(updates))
	for i, u := range updates {
		notes[i] = u.note
	}
	if err := im.col.UpdateNotes(ctx, notes); err != nil {
		return fmt.Errorf("failed to update records: %w", err)
	}
	for _, u := range updates {
		result.Updated = append(result.Updated, u.note.ID)
	}
	return nil
}

// applyCreates bulk-inserts new records and stores the host-assigned local
// ids in the index, keeping the remote id correspondence intact.
func (im *Importer) applyCreates(ctx context.Context, creates []prepared, containerID int64, result *ImportResult) error {
	if len(creates) == 0 {
		return nil
	}
	notes := make([]*host.Note, len(creates))
	for i, c := range creates {
		notes[i] = c.note
	}
	if err := im.col.AddNotes(ctx, notes, containerID); err != nil {
		return fmt.Errorf("failed to create records: %w", err)
	}
	for _, c := range creates {
		if err := im.store.SetLocalID(ctx, c.payload.RemoteID, c.note.ID); err != nil {
			return err
		}
		result.Created = append(result.Created, c.note.ID)
	}
	return nil
}

// applyDeletes removes or marks records the remote deleted, per the
// collection's delete policy. Records already gone locally are absorbed.
func (im *Importer) applyDeletes(ctx context.Context, deletes []feed.RecordPayload, localIDs map[uuid.UUID]int64, policy index.DeletePolicy, result *ImportResult) error {
	if len(deletes) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(deletes))
	for _, payload := range deletes {
		if id := localIDs[payload.RemoteID]; id != 0 {
			ids = append(ids, id)
		}
	}
	existing := im.col.ExistingNoteIDs(ids)
	if len(existing) == 0 {
		return nil
	}

	var toRemove, toMark []int64
	switch policy {
	case index.NeverDelete:
		toMark = existing
	default:
		reviewed, err := im.col.NoteIDsWithReviews(existing)
		if err != nil {
			return fmt.Errorf("failed to look up review history: %w", err)
		}
		for _, id := range existing {
			if _, ok := reviewed[id]; ok {
				toMark = append(toMark, id)
			} else {
				toRemove = append(toRemove, id)
			}
		}
	}

	if len(toRemove) > 0 {
		removed, err := im.col.RemoveNotes(ctx, toRemove)
		if err != nil {
			return fmt.Errorf("failed to delete records: %w", err)
		}
		im.log.Info("Deleted records", zap.Int("count", removed))
		result.Deleted = append(result.Deleted, toRemove...)
	}
	if len(toMark) > 0 {
		if err := im.markDeleted(ctx, toMark); err != nil {
			return err
		}
		result.MarkedDeleted = append(result.MarkedDeleted, toMark...)
	}
	return nil
}

// markDeleted tags records as deleted and clears their origin-id field
// instead of destroying study history.
func (im *Importer) markDeleted(ctx context.Context, ids []int64) error {
	var notes []*host.Note
	for _, id := range ids {
		note, ok := im.col.Note(id)
		if !ok {
			// Vanished mid-batch; nothing left to mark.
			continue
		}
		if !protect.HasTag(note.Tags, protect.TagDeleted) {
			note.Tags = append(note.Tags, protect.TagDeleted)
		}
		note.SetFieldValue(host.OriginFieldName, "")
		notes = append(notes, note)
	}
	if len(notes) == 0 {
		return nil
	}
	if err := im.col.UpdateNotes(ctx, notes); err != nil {
		return fmt.Errorf("failed to mark records as deleted: %w", err)
	}
	im.log.Info("Marked records as deleted", zap.Int("count", len(notes)))
	return nil
}

// recordMods stores the post-import host modification counters so the next
// local-change scan can tell user edits apart from this import's writes.
func (im *Importer) recordMods(ctx context.Context, creates, updates []prepared) error {
	mods := make(map[uuid.UUID]int64, len(creates)+len(updates))
	for _, c := range creates {
		mods[c.payload.RemoteID] = c.note.Mod
	}
	for _, u := range updates {
		mods[u.payload.RemoteID] = u.note.Mod
	}
	if len(mods) == 0 {
		return nil
	}
	return im.store.SetMods(ctx, mods)
}

func (im *Importer) suspendNewCards(ctx context.Context, creates, updates []prepared, cardsBefore map[int64][]host.Card, params ImportParams) error {
	var toSuspend []int64
	for _, c := range creates {
		after := im.col.CardsOfNote(c.note.ID)
		toSuspend = append(toSuspend, cardsToSuspend(
			c.note.Tags, nil, after, params.SuspendNewNotes, params.SuspendExisting)...)
	}
	for _, u := range updates {
		after := im.col.CardsOfNote(u.note.ID)
		toSuspend = append(toSuspend, cardsToSuspend(
			u.note.Tags, cardsBefore[u.note.ID], after, params.SuspendNewNotes, params.SuspendExisting)...)
	}
	if len(toSuspend) == 0 {
		return nil
	}
	if err := im.col.SuspendCards(ctx, toSuspend); err != nil {
		return fmt.Errorf("failed to suspend cards: %w", err)
	}
	im.log.Info("Suspended cards", zap.Int("count", len(toSuspend)))
	return nil
}

// cleanupFirstImport consolidates a first import: when every affected
// pre-existing card already lived under one common ancestor container, the
// freshly created destination container is redundant. Its cards move to the
// ancestor and it is removed.
func (im *Importer) cleanupFirstImport(ctx context.Context, affectedNoteIDs []int64, createdID int64) (int64, error) {
	containerIDs := make(map[int64]struct{})
	for _, noteID := range affectedNoteIDs {
		for _, card := range im.col.CardsOfNote(noteID) {
			home := card.ContainerID
			if c, ok := im.col.Container(home); ok && c.Filtered {
				if card.OriginContainerID != 0 {
					home = card.OriginContainerID
				} else {
					continue
				}
			}
			containerIDs[home] = struct{}{}
		}
	}
	delete(containerIDs, createdID)
	if len(containerIDs) == 0 {
		return createdID, nil
	}

	var names []string
	for id := range containerIDs {
		c, ok := im.col.Container(id)
		if !ok {
			continue
		}
		names = append(names, c.Name)
	}
	ancestorName := commonAncestorName(names)
	if ancestorName == "" {
		return createdID, nil
	}
	ancestor, ok := im.col.ContainerByName(ancestorName)
	if !ok {
		return createdID, nil
	}

	cards := im.col.CardsInContainer(createdID, true)
	if len(cards) > 0 {
		ids := make([]int64, len(cards))
		for i, card := range cards {
			ids[i] = card.ID
		}
		if err := im.col.MoveCards(ctx, ids, ancestor.ID); err != nil {
			return 0, fmt.Errorf("failed to move cards to ancestor container: %w", err)
		}
		im.log.Info("Moved new cards to common ancestor container",
			zap.Int64("container_id", ancestor.ID))
	}
	if ancestor.ID != createdID {
		if err := im.col.RemoveContainers(ctx, []int64{createdID}); err != nil {
			return 0, fmt.Errorf("failed to remove redundant container: %w", err)
		}
		im.log.Info("Removed redundant destination container",
			zap.Int64("container_id", createdID))
	}
	return ancestor.ID, nil
}

// commonAncestorName returns the deepest container path shared by all names,
// or "" when they share no root.
func commonAncestorName(names []string) string {
	if len(names) == 0 {
		return ""
	}
	common := strings.Split(names[0], "::")
	for _, name := range names[1:] {
		segments := strings.Split(name, "::")
		if len(segments) < len(common) {
			common = common[:len(segments)]
		}
		for i := range common {
			if common[i] != segments[i] {
				common = common[:i]
				break
			}
		}
		if len(common) == 0 {
			return ""
		}
	}
	return strings.Join(common, "::")
}

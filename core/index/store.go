package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"notehub-sync/core/feed"
	"notehub-sync/core/host"
)

// Store wraps the shadow database. All queries about last-synced remote state
// go through it.
type Store struct {
	db *gorm.DB
}

// New migrates the shadow tables and returns a Store.
func New(db *gorm.DB) (*Store, error) {
	err := db.AutoMigrate(&NoteRow{}, &SchemaRow{}, &MediaRow{}, &CollectionRow{})
	if err != nil {
		return nil, fmt.Errorf("failed to migrate index tables: %w", err)
	}
	return &Store{db: db}, nil
}

func notDeleted(db *gorm.DB) *gorm.DB {
	return db.Where("deleted = ?", false)
}

// UpsertResult reports how an upsert batch partitioned.
type UpsertResult struct {
	// Upserted are the remote ids written into the shadow.
	Upserted []uuid.UUID
	// Skipped are the remote ids whose local id is actively claimed by a row
	// of a different collection. They are left out of the shadow entirely.
	Skipped []uuid.UUID
	// LocalIDs maps every upserted remote id to its effective local id: the
	// payload's when set, otherwise the id already recorded in the shadow.
	// Zero means the record has never been materialized locally.
	LocalIDs map[uuid.UUID]int64
}

// UpsertBatch writes a feed chunk into the shadow. Payloads whose local id is
// already owned by another collection's active row are skipped, not written;
// tombstoned rows do not block. The origin-id field is stripped before
// storage. A payload carrying no local id keeps the shadow's recorded one, so
// a re-delivered record is never mistaken for an unmaterialized one.
func (s *Store) UpsertBatch(ctx context.Context, collectionID uuid.UUID, payloads []feed.RecordPayload) (*UpsertResult, error) {
	result := &UpsertResult{LocalIDs: make(map[uuid.UUID]int64, len(payloads))}
	for _, p := range payloads {
		localID := p.LocalID
		if localID == 0 {
			var existing NoteRow
			err := s.db.WithContext(ctx).
				Where("remote_id = ?", p.RemoteID.String()).
				First(&existing).Error
			switch {
			case err == nil:
				localID = existing.LocalID
			case errors.Is(err, gorm.ErrRecordNotFound):
			default:
				return nil, fmt.Errorf("failed to look up shadow row: %w", err)
			}
		}
		if localID != 0 {
			var count int64
			err := s.db.WithContext(ctx).Model(&NoteRow{}).
				Scopes(notDeleted).
				Where("local_id = ? AND collection_id <> ? AND remote_id <> ?",
					localID, collectionID.String(), p.RemoteID.String()).
				Count(&count).Error
			if err != nil {
				return nil, fmt.Errorf("failed to check local id ownership: %w", err)
			}
			if count > 0 {
				result.Skipped = append(result.Skipped, p.RemoteID)
				continue
			}
		}

		fields := make([]host.Field, 0, len(p.Fields))
		for _, f := range p.Fields {
			if f.Name == host.OriginFieldName {
				continue
			}
			fields = append(fields, f)
		}
		encoded, err := json.Marshal(fields)
		if err != nil {
			return nil, fmt.Errorf("failed to encode fields: %w", err)
		}

		row := NoteRow{
			RemoteID:       p.RemoteID.String(),
			CollectionID:   collectionID.String(),
			LocalID:        localID,
			SchemaID:       p.SchemaID,
			GUID:           p.GUID,
			Fields:         string(encoded),
			Tags:           strings.Join(p.Tags, " "),
			LastUpdateKind: string(p.LastUpdateKind),
			// A remote deletion is stored as a tombstone right away.
			Deleted: p.LastUpdateKind == feed.UpdateKindDelete,
		}
		err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "remote_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"collection_id", "local_id", "schema_id", "guid",
				"fields", "tags", "last_update_kind", "deleted",
			}),
		}).Create(&row).Error
		if err != nil {
			return nil, fmt.Errorf("failed to upsert shadow row: %w", err)
		}
		result.Upserted = append(result.Upserted, p.RemoteID)
		result.LocalIDs[p.RemoteID] = localID
	}
	return result, nil
}

// SetLocalID records the host-assigned local id for a freshly created record.
func (s *Store) SetLocalID(ctx context.Context, remoteID uuid.UUID, localID int64) error {
	res := s.db.WithContext(ctx).Model(&NoteRow{}).
		Where("remote_id = ?", remoteID.String()).
		Update("local_id", localID)
	if res.Error != nil {
		return fmt.Errorf("failed to set local id: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("no shadow row for remote id %s", remoteID)
	}
	return nil
}

// SetMods records the host Mod counters observed right after an import, so a
// later local-change scan can tell user edits apart from import writes.
func (s *Store) SetMods(ctx context.Context, mods map[uuid.UUID]int64) error {
	for remoteID, mod := range mods {
		err := s.db.WithContext(ctx).Model(&NoteRow{}).
			Where("remote_id = ?", remoteID.String()).
			Update("mod", mod).Error
		if err != nil {
			return fmt.Errorf("failed to set mod counter: %w", err)
		}
	}
	return nil
}

// Shadow returns the active shadow of one remote record.
func (s *Store) Shadow(remoteID uuid.UUID) (*ShadowNote, bool, error) {
	var row NoteRow
	err := s.db.Scopes(notDeleted).Where("remote_id = ?", remoteID.String()).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load shadow row: %w", err)
	}
	shadow, err := decodeRow(&row)
	if err != nil {
		return nil, false, err
	}
	return shadow, true, nil
}

// ShadowByLocalID returns the active shadow claiming the given local id
// within one collection.
func (s *Store) ShadowByLocalID(collectionID uuid.UUID, localID int64) (*ShadowNote, bool, error) {
	var row NoteRow
	err := s.db.Scopes(notDeleted).
		Where("collection_id = ? AND local_id = ?", collectionID.String(), localID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load shadow row: %w", err)
	}
	shadow, err := decodeRow(&row)
	if err != nil {
		return nil, false, err
	}
	return shadow, true, nil
}

// ShadowsForLocalIDs bulk-loads active shadows keyed by local id.
func (s *Store) ShadowsForLocalIDs(collectionID uuid.UUID, localIDs []int64) (map[int64]*ShadowNote, error) {
	var rows []NoteRow
	err := s.db.Scopes(notDeleted).
		Where("collection_id = ? AND local_id IN ?", collectionID.String(), localIDs).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load shadow rows: %w", err)
	}
	out := make(map[int64]*ShadowNote, len(rows))
	for i := range rows {
		shadow, err := decodeRow(&rows[i])
		if err != nil {
			return nil, err
		}
		out[shadow.LocalID] = shadow
	}
	return out, nil
}

// LocalIDs returns the local ids of all active records of a collection.
func (s *Store) LocalIDs(collectionID uuid.UUID) ([]int64, error) {
	var ids []int64
	err := s.db.Model(&NoteRow{}).Scopes(notDeleted).
		Where("collection_id = ? AND local_id <> 0", collectionID.String()).
		Pluck("local_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list local ids: %w", err)
	}
	return ids, nil
}

// DeactivateNotes tombstones shadow rows. The rows stay for id-ownership
// history but stop participating in lookups and conflicts.
func (s *Store) DeactivateNotes(ctx context.Context, remoteIDs []uuid.UUID) error {
	if len(remoteIDs) == 0 {
		return nil
	}
	keys := make([]string, len(remoteIDs))
	for i, id := range remoteIDs {
		keys[i] = id.String()
	}
	err := s.db.WithContext(ctx).Model(&NoteRow{}).
		Where("remote_id IN ?", keys).
		Update("deleted", true).Error
	if err != nil {
		return fmt.Errorf("failed to deactivate shadow rows: %w", err)
	}
	return nil
}

// ClearCollectionData removes a collection's shadow and schema rows but keeps
// its configuration. Used before a re-subscription's first import so stale
// rows from an earlier subscription cannot produce phantom conflicts.
func (s *Store) ClearCollectionData(ctx context.Context, collectionID uuid.UUID) error {
	key := collectionID.String()
	db := s.db.WithContext(ctx)
	if err := db.Where("collection_id = ?", key).Delete(&NoteRow{}).Error; err != nil {
		return fmt.Errorf("failed to clear shadow rows: %w", err)
	}
	if err := db.Where("collection_id = ?", key).Delete(&SchemaRow{}).Error; err != nil {
		return fmt.Errorf("failed to clear schema rows: %w", err)
	}
	return nil
}

// RemoveCollection drops every trace of a collection from the shadow.
func (s *Store) RemoveCollection(ctx context.Context, collectionID uuid.UUID) error {
	key := collectionID.String()
	db := s.db.WithContext(ctx)
	if err := db.Where("collection_id = ?", key).Delete(&NoteRow{}).Error; err != nil {
		return fmt.Errorf("failed to remove shadow rows: %w", err)
	}
	if err := db.Where("collection_id = ?", key).Delete(&SchemaRow{}).Error; err != nil {
		return fmt.Errorf("failed to remove schema rows: %w", err)
	}
	if err := db.Where("collection_id = ?", key).Delete(&MediaRow{}).Error; err != nil {
		return fmt.Errorf("failed to remove media rows: %w", err)
	}
	if err := db.Where("collection_id = ?", key).Delete(&CollectionRow{}).Error; err != nil {
		return fmt.Errorf("failed to remove collection row: %w", err)
	}
	return nil
}

// ConflictingCollections returns every other collection owning a local id
// that this collection also owns.
func (s *Store) ConflictingCollections(collectionID uuid.UUID) ([]uuid.UUID, error) {
	pairs, err := s.conflictPairs(collectionID)
	if err != nil {
		return nil, err
	}
	out := make([]uuid.UUID, 0, len(pairs))
	for _, other := range sortedKeys(pairs) {
		id, err := uuid.Parse(other)
		if err != nil {
			return nil, fmt.Errorf("failed to parse collection id %q: %w", other, err)
		}
		out = append(out, id)
	}
	return out, nil
}

// NextConflict returns one conflicting collection and the local ids shared
// with it, so an operator can resolve conflicts pair by pair. ok is false
// when the collection has no conflicts.
func (s *Store) NextConflict(collectionID uuid.UUID) (uuid.UUID, []int64, bool, error) {
	pairs, err := s.conflictPairs(collectionID)
	if err != nil {
		return uuid.Nil, nil, false, err
	}
	keys := sortedKeys(pairs)
	if len(keys) == 0 {
		return uuid.Nil, nil, false, nil
	}
	other, err := uuid.Parse(keys[0])
	if err != nil {
		return uuid.Nil, nil, false, fmt.Errorf("failed to parse collection id %q: %w", keys[0], err)
	}
	ids := pairs[keys[0]]
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return other, ids, true, nil
}

// conflictPairs maps other-collection id to the local ids claimed by both it
// and the given collection.
func (s *Store) conflictPairs(collectionID uuid.UUID) (map[string][]int64, error) {
	ids, err := s.LocalIDs(collectionID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []NoteRow
	err = s.db.Scopes(notDeleted).
		Where("local_id IN ? AND collection_id <> ?", ids, collectionID.String()).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query conflicting rows: %w", err)
	}
	pairs := make(map[string][]int64)
	for _, row := range rows {
		pairs[row.CollectionID] = append(pairs[row.CollectionID], row.LocalID)
	}
	return pairs, nil
}

func sortedKeys(m map[string][]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// UpsertSchemas stores record-type definitions delivered by the remote.
func (s *Store) UpsertSchemas(ctx context.Context, collectionID uuid.UUID, schemas map[int64]*host.Schema) error {
	for id, schema := range schemas {
		layout, err := json.Marshal(schema)
		if err != nil {
			return fmt.Errorf("failed to encode schema layout: %w", err)
		}
		row := SchemaRow{
			SchemaID:     id,
			CollectionID: collectionID.String(),
			Name:         schema.Name,
			Layout:       string(layout),
		}
		err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "schema_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"collection_id", "name", "layout"}),
		}).Create(&row).Error
		if err != nil {
			return fmt.Errorf("failed to upsert schema row: %w", err)
		}
	}
	return nil
}

// Schema returns the stored record-type definition.
func (s *Store) Schema(schemaID int64) (*host.Schema, bool, error) {
	var row SchemaRow
	err := s.db.Where("schema_id = ?", schemaID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load schema row: %w", err)
	}
	var schema host.Schema
	if err := json.Unmarshal([]byte(row.Layout), &schema); err != nil {
		return nil, false, fmt.Errorf("failed to decode schema layout: %w", err)
	}
	return &schema, true, nil
}

// SchemaIDs returns the ids of every schema tracked for a collection.
func (s *Store) SchemaIDs(collectionID uuid.UUID) ([]int64, error) {
	var ids []int64
	err := s.db.Model(&SchemaRow{}).
		Where("collection_id = ?", collectionID.String()).
		Pluck("schema_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list schema ids: %w", err)
	}
	return ids, nil
}

// UpsertMedia refreshes the tracked-media table from remote metadata.
func (s *Store) UpsertMedia(ctx context.Context, collectionID uuid.UUID, infos []feed.MediaInfo) error {
	for _, info := range infos {
		row := MediaRow{
			Name:                     info.Name,
			CollectionID:             collectionID.String(),
			ContentHash:              info.ContentHash,
			Modified:                 info.Modified,
			ReferencedOnAcceptedNote: info.ReferencedOnAcceptedNote,
			ExistsOnStorage:          info.ExistsOnStorage,
			DownloadEnabled:          info.DownloadEnabled,
		}
		err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "name"}, {Name: "collection_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"content_hash", "modified", "referenced_on_accepted_note",
				"exists_on_storage", "download_enabled",
			}),
		}).Create(&row).Error
		if err != nil {
			return fmt.Errorf("failed to upsert media row: %w", err)
		}
	}
	return nil
}

// Media lists the tracked media of a collection.
func (s *Store) Media(collectionID uuid.UUID) ([]MediaRow, error) {
	var rows []MediaRow
	err := s.db.Where("collection_id = ?", collectionID.String()).
		Order("name").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list media rows: %w", err)
	}
	return rows, nil
}

// DownloadableMedia lists tracked media eligible for download.
func (s *Store) DownloadableMedia(collectionID uuid.UUID) ([]MediaRow, error) {
	var rows []MediaRow
	err := s.db.
		Where("collection_id = ? AND download_enabled = ? AND exists_on_storage = ?",
			collectionID.String(), true, true).
		Order("name").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list downloadable media: %w", err)
	}
	return rows, nil
}

// SaveCollection creates or replaces a collection's sync configuration.
func (s *Store) SaveCollection(ctx context.Context, row *CollectionRow) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "collection_id"}},
		UpdateAll: true,
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("failed to save collection config: %w", err)
	}
	return nil
}

// Collection loads a collection's sync configuration.
func (s *Store) Collection(collectionID uuid.UUID) (*CollectionRow, bool, error) {
	var row CollectionRow
	err := s.db.Where("collection_id = ?", collectionID.String()).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load collection config: %w", err)
	}
	return &row, true, nil
}

// Collections lists every subscribed collection, ordered by name.
func (s *Store) Collections() ([]CollectionRow, error) {
	var rows []CollectionRow
	if err := s.db.Order("name").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	return rows, nil
}

// SetLatestUpdate advances the feed cursor after a fully-applied chunk.
func (s *Store) SetLatestUpdate(ctx context.Context, collectionID uuid.UUID, cursor time.Time) error {
	err := s.db.WithContext(ctx).Model(&CollectionRow{}).
		Where("collection_id = ?", collectionID.String()).
		Update("latest_update", cursor).Error
	if err != nil {
		return fmt.Errorf("failed to advance cursor: %w", err)
	}
	return nil
}

// SetFirstImportDone marks that the collection's first import completed.
func (s *Store) SetFirstImportDone(ctx context.Context, collectionID uuid.UUID) error {
	err := s.db.WithContext(ctx).Model(&CollectionRow{}).
		Where("collection_id = ?", collectionID.String()).
		Update("first_import_done", true).Error
	if err != nil {
		return fmt.Errorf("failed to mark first import: %w", err)
	}
	return nil
}

func decodeRow(row *NoteRow) (*ShadowNote, error) {
	remoteID, err := uuid.Parse(row.RemoteID)
	if err != nil {
		return nil, fmt.Errorf("failed to parse remote id %q: %w", row.RemoteID, err)
	}
	collectionID, err := uuid.Parse(row.CollectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to parse collection id %q: %w", row.CollectionID, err)
	}
	fields, err := row.FieldList()
	if err != nil {
		return nil, fmt.Errorf("failed to decode fields of %s: %w", row.RemoteID, err)
	}
	return &ShadowNote{
		RemoteID:       remoteID,
		CollectionID:   collectionID,
		LocalID:        row.LocalID,
		SchemaID:       row.SchemaID,
		GUID:           row.GUID,
		Fields:         fields,
		Tags:           row.TagList(),
		LastUpdateKind: row.LastUpdateKind,
		Mod:            row.Mod,
	}, nil
}

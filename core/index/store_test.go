package index

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"notehub-sync/core/feed"
	"notehub-sync/core/host"
)

func setupStore(t *testing.T, name string) *Store {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	store, err := New(db)
	require.NoError(t, err)
	return store
}

func payload(remoteID uuid.UUID, localID int64, fields ...string) feed.RecordPayload {
	p := feed.RecordPayload{
		RemoteID: remoteID,
		LocalID:  localID,
		SchemaID: 1,
		GUID:     "g-" + remoteID.String()[:8],
		Tags:     []string{"alpha"},
	}
	for i, v := range fields {
		p.Fields = append(p.Fields, host.Field{Name: fmt.Sprintf("F%d", i), Value: v})
	}
	return p
}

func TestUpsertBatch_NewRows(t *testing.T) {
	store := setupStore(t, "upsert_new")
	ctx := context.Background()
	coll := uuid.New()

	batch := []feed.RecordPayload{
		payload(uuid.New(), 0, "a"),
		payload(uuid.New(), 0, "b"),
	}
	result, err := store.UpsertBatch(ctx, coll, batch)
	require.NoError(t, err)
	assert.Len(t, result.Upserted, 2)
	assert.Empty(t, result.Skipped)
}

func TestUpsertBatch_SkipsForeignLocalID(t *testing.T) {
	store := setupStore(t, "upsert_conflict")
	ctx := context.Background()
	collA := uuid.New()
	collB := uuid.New()

	owned := payload(uuid.New(), 42, "a")
	_, err := store.UpsertBatch(ctx, collA, []feed.RecordPayload{owned})
	require.NoError(t, err)

	intruder := payload(uuid.New(), 42, "b")
	result, err := store.UpsertBatch(ctx, collB, []feed.RecordPayload{intruder})
	require.NoError(t, err)
	assert.Empty(t, result.Upserted)
	assert.Equal(t, []uuid.UUID{intruder.RemoteID}, result.Skipped)

	// Same remote id re-upserting its own local id is never a conflict.
	result, err = store.UpsertBatch(ctx, collA, []feed.RecordPayload{owned})
	require.NoError(t, err)
	assert.Len(t, result.Upserted, 1)
}

func TestUpsertBatch_TombstoneDoesNotBlock(t *testing.T) {
	store := setupStore(t, "upsert_tombstone")
	ctx := context.Background()
	collA := uuid.New()
	collB := uuid.New()

	old := payload(uuid.New(), 7, "a")
	_, err := store.UpsertBatch(ctx, collA, []feed.RecordPayload{old})
	require.NoError(t, err)
	require.NoError(t, store.DeactivateNotes(ctx, []uuid.UUID{old.RemoteID}))

	claim := payload(uuid.New(), 7, "b")
	result, err := store.UpsertBatch(ctx, collB, []feed.RecordPayload{claim})
	require.NoError(t, err)
	assert.Len(t, result.Upserted, 1)
	assert.Empty(t, result.Skipped)
}

func TestUpsertBatch_StripsOriginField(t *testing.T) {
	store := setupStore(t, "upsert_origin")
	ctx := context.Background()
	coll := uuid.New()

	p := payload(uuid.New(), 0, "a")
	p.Fields = append(p.Fields, host.Field{Name: host.OriginFieldName, Value: p.RemoteID.String()})
	_, err := store.UpsertBatch(ctx, coll, []feed.RecordPayload{p})
	require.NoError(t, err)

	shadow, ok, err := store.Shadow(p.RemoteID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, shadow.Fields, 1)
	assert.Equal(t, "F0", shadow.Fields[0].Name)
}

func TestSetLocalIDAndShadowLookups(t *testing.T) {
	store := setupStore(t, "local_ids")
	ctx := context.Background()
	coll := uuid.New()

	p := payload(uuid.New(), 0, "front", "back")
	_, err := store.UpsertBatch(ctx, coll, []feed.RecordPayload{p})
	require.NoError(t, err)

	require.NoError(t, store.SetLocalID(ctx, p.RemoteID, 101))

	shadow, ok, err := store.ShadowByLocalID(coll, 101)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, p.RemoteID, shadow.RemoteID)
	assert.Equal(t, "back", shadow.Fields[1].Value)
	assert.Equal(t, []string{"alpha"}, shadow.Tags)

	ids, err := store.LocalIDs(coll)
	require.NoError(t, err)
	assert.Equal(t, []int64{101}, ids)

	err = store.SetLocalID(ctx, uuid.New(), 5)
	assert.Error(t, err)
}

func TestSetMods(t *testing.T) {
	store := setupStore(t, "set_mods")
	ctx := context.Background()
	coll := uuid.New()

	p := payload(uuid.New(), 3, "a")
	_, err := store.UpsertBatch(ctx, coll, []feed.RecordPayload{p})
	require.NoError(t, err)

	require.NoError(t, store.SetMods(ctx, map[uuid.UUID]int64{p.RemoteID: 99}))
	shadow, ok, err := store.Shadow(p.RemoteID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(99), shadow.Mod)
}

func TestConflictDetector(t *testing.T) {
	store := setupStore(t, "conflicts")
	ctx := context.Background()
	collA := uuid.New()
	collB := uuid.New()

	// Both rows actively claim local id 11. The second upsert is made under
	// the same remote id to bypass the skip, simulating pre-existing drift.
	shared := payload(uuid.New(), 11, "a")
	_, err := store.UpsertBatch(ctx, collA, []feed.RecordPayload{shared})
	require.NoError(t, err)
	require.NoError(t, store.db.Create(&NoteRow{
		RemoteID:     uuid.New().String(),
		CollectionID: collB.String(),
		LocalID:      11,
	}).Error)

	fromA, err := store.ConflictingCollections(collA)
	require.NoError(t, err)
	fromB, err := store.ConflictingCollections(collB)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{collB}, fromA)
	assert.Equal(t, []uuid.UUID{collA}, fromB)

	other, localIDs, ok, err := store.NextConflict(collA)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, collB, other)
	assert.Equal(t, []int64{11}, localIDs)

	_, _, ok, err = store.NextConflict(uuid.New())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSchemaRoundTrip(t *testing.T) {
	store := setupStore(t, "schemas")
	ctx := context.Background()
	coll := uuid.New()

	schema := &host.Schema{
		ID:   5,
		Name: "Basic",
		Fields: []host.SchemaField{
			{Name: "Front", Ord: 0},
			{Name: "Back", Ord: 1},
		},
		Templates: []host.Template{{Name: "Card 1", Front: "{{Front}}", Back: "{{Back}}"}},
	}
	require.NoError(t, store.UpsertSchemas(ctx, coll, map[int64]*host.Schema{5: schema}))

	got, ok, err := store.Schema(5)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, schema.Name, got.Name)
	assert.Equal(t, schema.Fields, got.Fields)

	ids, err := store.SchemaIDs(coll)
	require.NoError(t, err)
	assert.Equal(t, []int64{5}, ids)

	_, ok, err = store.Schema(999)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCollectionConfigAndCursor(t *testing.T) {
	store := setupStore(t, "coll_config")
	ctx := context.Background()
	coll := uuid.New()

	row := &CollectionRow{
		CollectionID:    coll.String(),
		Name:            "Anatomy",
		ContainerID:     12,
		SubdecksEnabled: true,
		SuspendExisting: SuspendIfSiblingsSuspended,
		DeletePolicy:    DeleteIfNoReviews,
	}
	require.NoError(t, store.SaveCollection(ctx, row))

	cursor := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.SetLatestUpdate(ctx, coll, cursor))
	require.NoError(t, store.SetFirstImportDone(ctx, coll))

	got, ok, err := store.Collection(coll)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Anatomy", got.Name)
	assert.True(t, got.FirstImportDone)
	assert.True(t, got.LatestUpdate.Equal(cursor))

	all, err := store.Collections()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRemoveCollection(t *testing.T) {
	store := setupStore(t, "remove_coll")
	ctx := context.Background()
	coll := uuid.New()

	p := payload(uuid.New(), 0, "a")
	_, err := store.UpsertBatch(ctx, coll, []feed.RecordPayload{p})
	require.NoError(t, err)
	require.NoError(t, store.UpsertMedia(ctx, coll, []feed.MediaInfo{{Name: "img.png"}}))
	require.NoError(t, store.SaveCollection(ctx, &CollectionRow{CollectionID: coll.String(), Name: "X"}))

	require.NoError(t, store.RemoveCollection(ctx, coll))

	_, ok, err := store.Shadow(p.RemoteID)
	require.NoError(t, err)
	assert.False(t, ok)
	media, err := store.Media(coll)
	require.NoError(t, err)
	assert.Empty(t, media)
	_, ok, err = store.Collection(coll)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDownloadableMedia(t *testing.T) {
	store := setupStore(t, "media_filter")
	ctx := context.Background()
	coll := uuid.New()

	err := store.UpsertMedia(ctx, coll, []feed.MediaInfo{
		{Name: "a.png", ExistsOnStorage: true, DownloadEnabled: true},
		{Name: "b.png", ExistsOnStorage: false, DownloadEnabled: true},
		{Name: "c.png", ExistsOnStorage: true, DownloadEnabled: false},
	})
	require.NoError(t, err)

	rows, err := store.DownloadableMedia(coll)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "a.png", rows[0].Name)
}

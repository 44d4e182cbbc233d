package syncer

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"notehub-sync/core/feed"
	"notehub-sync/core/host"
	"notehub-sync/core/index"
	"notehub-sync/feature/protect"
)

type fakePager struct {
	chunks []*feed.Chunk
	next   int
	// cancelAfter cancels the context after returning that many chunks.
	cancelAfter int
	cancel      context.CancelFunc
}

func (p *fakePager) Next(context.Context) (*feed.Chunk, bool, error) {
	if p.next >= len(p.chunks) {
		return nil, false, nil
	}
	chunk := p.chunks[p.next]
	p.next++
	if p.cancel != nil && p.next == p.cancelAfter {
		p.cancel()
	}
	return chunk, true, nil
}

type fakeClient struct {
	schemas    map[int64]*host.Schema
	pagers     map[uuid.UUID]*fakePager
	updatesErr map[uuid.UUID]error
}

func (c *fakeClient) Updates(_ context.Context, collectionID uuid.UUID, _ time.Time) (feed.Pager, error) {
	if err := c.updatesErr[collectionID]; err != nil {
		return nil, err
	}
	return c.pagers[collectionID], nil
}

func (c *fakeClient) Schemas(context.Context, uuid.UUID) (map[int64]*host.Schema, error) {
	return c.schemas, nil
}

func (c *fakeClient) SubmitProposals(context.Context, []feed.NewRecordProposal, []feed.ChangeProposal) (map[int64][]string, error) {
	return nil, nil
}

func (c *fakeClient) Media(context.Context, uuid.UUID) ([]feed.MediaInfo, error) {
	return nil, nil
}

func testSchema() *host.Schema {
	return &host.Schema{
		ID:   1,
		Name: "Basic",
		Fields: []host.SchemaField{
			{Name: "Front", Ord: 0},
			{Name: "Back", Ord: 1},
			{Name: host.OriginFieldName, Ord: 2},
		},
		Templates: []host.Template{{Name: "Card 1", Front: "{{Front}}", Back: "{{Back}}"}},
	}
}

func testChunk(latest time.Time, tags []string) *feed.Chunk {
	return &feed.Chunk{
		Notes: []feed.RecordPayload{{
			RemoteID: uuid.New(),
			SchemaID: 1,
			Fields: []host.Field{
				{Name: "Front", Value: "Q"},
				{Name: "Back", Value: "A"},
			},
			Tags:           tags,
			GUID:           uuid.NewString(),
			LastUpdateKind: feed.UpdateKindNewContent,
		}},
		LatestUpdate: latest,
		HasNext:      true,
	}
}

func newTestStore(t *testing.T, name string) *index.Store {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	store, err := index.New(db)
	require.NoError(t, err)
	return store
}

func saveCollection(t *testing.T, store *index.Store, collectionID uuid.UUID, subdecks bool) *index.CollectionRow {
	row := &index.CollectionRow{
		CollectionID:    collectionID.String(),
		Name:            "Biology",
		SubdecksEnabled: subdecks,
		SuspendExisting: index.SuspendNever,
		DeletePolicy:    index.DeleteIfNoReviews,
	}
	require.NoError(t, store.SaveCollection(context.Background(), row))
	return row
}

func TestSyncAllAppliesEveryChunk(t *testing.T) {
	store := newTestStore(t, "syncer_all")
	mem := host.NewMemory()
	collectionID := uuid.New()
	saveCollection(t, store, collectionID, false)

	t1 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	client := &fakeClient{
		schemas: map[int64]*host.Schema{1: testSchema()},
		pagers: map[uuid.UUID]*fakePager{
			collectionID: {chunks: []*feed.Chunk{testChunk(t1, nil), testChunk(t2, nil)}},
		},
	}

	backups := 0
	s := New(mem, store, client, func(context.Context) error { backups++; return nil }, zap.NewNop())

	batch, err := s.SyncAll(context.Background())
	require.NoError(t, err)

	require.Len(t, batch.Results, 1)
	result := batch.Results[0]
	assert.True(t, result.Completed)
	assert.Equal(t, 2, result.Chunks)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 1, backups)

	row, ok, err := store.Collection(collectionID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, row.FirstImportDone)
	assert.NotZero(t, row.ContainerID)
	assert.WithinDuration(t, t2, row.LatestUpdate, time.Second)
}

func TestSyncCancellationBetweenChunksKeepsAppliedChunks(t *testing.T) {
	store := newTestStore(t, "syncer_cancel")
	mem := host.NewMemory()
	collectionID := uuid.New()
	row := saveCollection(t, store, collectionID, false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	t1 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	client := &fakeClient{
		schemas: map[int64]*host.Schema{1: testSchema()},
		pagers: map[uuid.UUID]*fakePager{
			collectionID: {
				chunks:      []*feed.Chunk{testChunk(t1, nil), testChunk(t2, nil)},
				cancelAfter: 1,
				cancel:      cancel,
			},
		},
	}
	s := New(mem, store, client, nil, zap.NewNop())

	result, err := s.SyncCollection(ctx, row)
	require.NoError(t, err)

	// Cancellation is not an error, and it is distinguishable from a
	// completed sync with zero changes.
	assert.False(t, result.Completed)
	assert.Equal(t, 1, result.Chunks)
	assert.Equal(t, 1, result.Created)

	saved, ok, err := store.Collection(collectionID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.WithinDuration(t, t1, saved.LatestUpdate, time.Second)
}

func TestSyncAllFailFastPreservesEarlierResults(t *testing.T) {
	store := newTestStore(t, "syncer_failfast")
	mem := host.NewMemory()
	okID := uuid.New()
	badID := uuid.New()
	saveCollection(t, store, okID, false)
	bad := saveCollection(t, store, badID, false)
	bad.Name = "Chemistry"
	require.NoError(t, store.SaveCollection(context.Background(), bad))

	t1 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	client := &fakeClient{
		schemas: map[int64]*host.Schema{1: testSchema()},
		pagers: map[uuid.UUID]*fakePager{
			okID: {chunks: []*feed.Chunk{testChunk(t1, nil)}},
		},
		updatesErr: map[uuid.UUID]error{badID: fmt.Errorf("boom")},
	}
	s := New(mem, store, client, nil, zap.NewNop())

	batch, err := s.SyncAll(context.Background())
	require.Error(t, err)

	completed := 0
	for _, r := range batch.Results {
		if r.Completed {
			completed++
			assert.Equal(t, okID, r.CollectionID)
			assert.Equal(t, 1, r.Created)
		}
	}
	assert.Equal(t, 1, completed)
}

func TestSyncReconcilesHierarchyForAffectedRecords(t *testing.T) {
	store := newTestStore(t, "syncer_subdecks")
	mem := host.NewMemory()
	collectionID := uuid.New()
	row := saveCollection(t, store, collectionID, true)

	t1 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	client := &fakeClient{
		schemas: map[int64]*host.Schema{1: testSchema()},
		pagers: map[uuid.UUID]*fakePager{
			collectionID: {chunks: []*feed.Chunk{testChunk(t1, []string{protect.TagSubdeck + "::Heart"})}},
		},
	}
	s := New(mem, store, client, nil, zap.NewNop())

	result, err := s.SyncCollection(context.Background(), row)
	require.NoError(t, err)
	require.True(t, result.Completed)

	sub, ok := mem.ContainerByName("Biology::Heart")
	require.True(t, ok)
	cards := mem.CardsInContainer(sub.ID, false)
	assert.Len(t, cards, 1)
}

package syncer

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"notehub-sync/core/feed"
	"notehub-sync/core/host"
	"notehub-sync/core/index"
	"notehub-sync/feature/importer"
	"notehub-sync/feature/subdeck"
)

// BackupFunc snapshots the host collection. It runs before the first
// mutating phase of a batch sync.
type BackupFunc func(ctx context.Context) error

// CollectionResult aggregates one collection's sync over all chunks.
type CollectionResult struct {
	CollectionID uuid.UUID
	// Completed is false when cancellation stopped the paging loop early.
	// Chunks applied before the stop stay applied.
	Completed     bool
	Chunks        int
	Created       int
	Updated       int
	Deleted       int
	MarkedDeleted int
	Skipped       int
	Unchanged     int
}

// BatchResult carries the per-collection results of one sync call. On
// failure it holds the results of the collections that finished before the
// failing one.
type BatchResult struct {
	Results []CollectionResult
}

// Syncer drives imports for every subscribed collection.
type Syncer struct {
	col      host.Collection
	store    *index.Store
	client   feed.Client
	importer *importer.Importer
	subdecks *subdeck.Reconciler
	backup   BackupFunc
	log      *zap.Logger
}

// New wires a syncer. backup may be nil when the environment provides no
// snapshot facility.
func New(col host.Collection, store *index.Store, client feed.Client, backup BackupFunc, log *zap.Logger) *Syncer {
	return &Syncer{
		col:      col,
		store:    store,
		client:   client,
		importer: importer.New(col, store, log),
		subdecks: subdeck.New(col, log),
		backup:   backup,
		log:      log,
	}
}

// SyncAll syncs every subscribed collection sequentially. A collection
// failure aborts the rest of the batch; earlier results are preserved in the
// returned BatchResult. A cancelled collection ends the batch without error.
func (s *Syncer) SyncAll(ctx context.Context) (*BatchResult, error) {
	rows, err := s.store.Collections()
	if err != nil {
		return nil, err
	}
	batch := &BatchResult{}
	if len(rows) == 0 {
		return batch, nil
	}

	if err := s.runBackup(ctx); err != nil {
		return batch, err
	}
	for i := range rows {
		result, err := s.syncCollection(ctx, &rows[i])
		if result != nil {
			batch.Results = append(batch.Results, *result)
		}
		if err != nil {
			return batch, fmt.Errorf("failed to sync collection %s: %w", rows[i].CollectionID, err)
		}
		if result != nil && !result.Completed {
			break
		}
	}
	return batch, nil
}

// SyncCollection syncs one collection, including the backup hook.
func (s *Syncer) SyncCollection(ctx context.Context, row *index.CollectionRow) (*CollectionResult, error) {
	if err := s.runBackup(ctx); err != nil {
		return nil, err
	}
	return s.syncCollection(ctx, row)
}

func (s *Syncer) runBackup(ctx context.Context) error {
	if s.backup == nil {
		return nil
	}
	if err := s.backup(ctx); err != nil {
		return fmt.Errorf("failed to back up collection: %w", err)
	}
	s.log.Info("Collection backup taken")
	return nil
}

func (s *Syncer) syncCollection(ctx context.Context, row *index.CollectionRow) (*CollectionResult, error) {
	collectionID, err := uuid.Parse(row.CollectionID)
	if err != nil {
		return nil, fmt.Errorf("invalid collection id %q: %w", row.CollectionID, err)
	}
	result := &CollectionResult{CollectionID: collectionID}

	s.log.Info("Syncing collection",
		zap.String("collection_id", row.CollectionID),
		zap.String("name", row.Name),
		zap.Time("since", row.LatestUpdate))

	schemas, err := s.client.Schemas(ctx, collectionID)
	if err != nil {
		return result, fmt.Errorf("failed to fetch schemas: %w", err)
	}
	pager, err := s.client.Updates(ctx, collectionID, row.LatestUpdate)
	if err != nil {
		return result, fmt.Errorf("failed to open update feed: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			s.log.Warn("Sync cancelled between chunks",
				zap.String("collection_id", row.CollectionID),
				zap.Int("chunks_applied", result.Chunks))
			return result, nil
		default:
		}

		chunk, ok, err := pager.Next(ctx)
		if err != nil {
			return result, fmt.Errorf("failed to fetch update chunk: %w", err)
		}
		if !ok {
			break
		}

		// The chunk is the unit of atomicity: once application starts it
		// runs to completion, so cancellation can only land at a chunk
		// boundary.
		if err := s.applyChunk(context.WithoutCancel(ctx), row, collectionID, schemas, chunk, result); err != nil {
			return result, err
		}
	}

	result.Completed = true
	return result, nil
}

// applyChunk imports one feed page and advances the cursor. The cursor moves
// only after everything in the chunk is applied, so a retry after a failure
// re-fetches the same page.
func (s *Syncer) applyChunk(ctx context.Context, row *index.CollectionRow, collectionID uuid.UUID, schemas map[int64]*host.Schema, chunk *feed.Chunk, result *CollectionResult) error {
	imported, err := s.importer.ImportCollection(ctx, importer.ImportParams{
		CollectionID:    collectionID,
		CollectionName:  row.Name,
		Notes:           chunk.Notes,
		Schemas:         schemas,
		ProtectedFields: chunk.ProtectedFields,
		ProtectedTags:   chunk.ProtectedTags,
		ContainerID:     row.ContainerID,
		FirstImport:     !row.FirstImportDone,
		DeletePolicy:    row.DeletePolicy,
		SuspendNewNotes: row.SuspendNewNotes,
		SuspendExisting: row.SuspendExisting,
	})
	if err != nil {
		return err
	}

	result.Chunks++
	result.Created += len(imported.Created)
	result.Updated += len(imported.Updated)
	result.Deleted += len(imported.Deleted)
	result.MarkedDeleted += len(imported.MarkedDeleted)
	result.Skipped += len(imported.Skipped)
	result.Unchanged += len(imported.Unchanged)

	if imported.ContainerID != row.ContainerID {
		row.ContainerID = imported.ContainerID
		if err := s.store.SaveCollection(ctx, row); err != nil {
			return fmt.Errorf("failed to save destination container: %w", err)
		}
	}
	if !row.FirstImportDone {
		if err := s.store.SetFirstImportDone(ctx, collectionID); err != nil {
			return err
		}
		row.FirstImportDone = true
	}

	if row.SubdecksEnabled {
		affected := append(append([]int64{}, imported.Created...), imported.Updated...)
		if len(affected) > 0 {
			if err := s.subdecks.Reconcile(ctx, row.ContainerID, affected); err != nil {
				return fmt.Errorf("failed to reconcile hierarchy: %w", err)
			}
		}
	}

	if err := s.store.SetLatestUpdate(ctx, collectionID, chunk.LatestUpdate); err != nil {
		return err
	}
	row.LatestUpdate = chunk.LatestUpdate
	return nil
}

package media

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"

	"notehub-sync/core/feed"
	"notehub-sync/core/host"
	"notehub-sync/core/index"
	"notehub-sync/core/storage"
)

// Manager syncs media files between the host's media folder, the local
// index and the object store.
type Manager struct {
	store   *index.Store
	objects storage.Client
	feed    feed.Client
	bucket  string
	log     *zap.Logger
}

// New wires a manager. bucket is the object-store bucket holding all media.
func New(store *index.Store, objects storage.Client, feedClient feed.Client, bucket string, log *zap.Logger) *Manager {
	return &Manager{
		store:   store,
		objects: objects,
		feed:    feedClient,
		bucket:  bucket,
		log:     log,
	}
}

// Refresh mirrors the collection's remote media manifest into the index and
// returns the number of tracked files.
func (m *Manager) Refresh(ctx context.Context, collectionID uuid.UUID) (int, error) {
	infos, err := m.feed.Media(ctx, collectionID)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch media manifest: %w", err)
	}
	if err := m.store.UpsertMedia(ctx, collectionID, infos); err != nil {
		return 0, err
	}
	m.log.Info("Refreshed media manifest",
		zap.String("collection_id", collectionID.String()),
		zap.Int("tracked", len(infos)))
	return len(infos), nil
}

// DownloadReport summarizes one download pass.
type DownloadReport struct {
	Downloaded int
	UpToDate   int
	// Failed lists files whose download failed; failures are absorbed.
	Failed []string
}

// DownloadMissing fetches tracked, download-enabled files into dir, skipping
// files already present with a matching content hash.
func (m *Manager) DownloadMissing(ctx context.Context, collectionID uuid.UUID, dir string) (*DownloadReport, error) {
	rows, err := m.store.DownloadableMedia(collectionID)
	if err != nil {
		return nil, err
	}

	report := &DownloadReport{}
	for _, row := range rows {
		path := filepath.Join(dir, row.Name)
		if hash, err := fileHash(path); err == nil && strings.EqualFold(hash, row.ContentHash) {
			report.UpToDate++
			continue
		}
		if err := m.download(ctx, objectKey(collectionID, row.Name), path); err != nil {
			m.log.Warn("Failed to download media file",
				zap.String("name", row.Name), zap.Error(err))
			report.Failed = append(report.Failed, row.Name)
			continue
		}
		report.Downloaded++
	}
	m.log.Info("Downloaded missing media",
		zap.String("collection_id", collectionID.String()),
		zap.Int("downloaded", report.Downloaded),
		zap.Int("up_to_date", report.UpToDate),
		zap.Int("failed", len(report.Failed)))
	return report, nil
}

func (m *Manager) download(ctx context.Context, key, path string) error {
	obj, err := m.objects.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return err
	}
	defer obj.Close()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, obj); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

// UploadReport summarizes one upload pass.
type UploadReport struct {
	Uploaded int
	Skipped  int
	// Missing lists referenced files absent from the local folder.
	Missing []string
}

// UploadReferenced uploads the media files referenced by the given records
// that the object store does not hold yet. Files whose stored content hash
// already matches the local file are skipped.
func (m *Manager) UploadReferenced(ctx context.Context, collectionID uuid.UUID, notes []*host.Note, dir string) (*UploadReport, error) {
	seen := make(map[string]struct{})
	var names []string
	for _, note := range notes {
		for _, name := range NamesFromNote(note) {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	sort.Strings(names)

	report := &UploadReport{}
	for _, name := range names {
		path := filepath.Join(dir, name)
		hash, err := fileHash(path)
		if err != nil {
			report.Missing = append(report.Missing, name)
			continue
		}

		key := objectKey(collectionID, name)
		if stat, err := m.objects.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{}); err == nil {
			if strings.EqualFold(stat.UserMetadata["Content-Hash"], hash) {
				report.Skipped++
				continue
			}
		}

		if err := m.upload(ctx, key, path, hash); err != nil {
			return report, fmt.Errorf("failed to upload %s: %w", name, err)
		}
		report.Uploaded++
	}
	m.log.Info("Uploaded referenced media",
		zap.String("collection_id", collectionID.String()),
		zap.Int("uploaded", report.Uploaded),
		zap.Int("skipped", report.Skipped),
		zap.Int("missing", len(report.Missing)))
	return report, nil
}

func (m *Manager) upload(ctx context.Context, key, path, hash string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}
	_, err = m.objects.PutObject(ctx, m.bucket, key, f, info.Size(), minio.PutObjectOptions{
		UserMetadata: map[string]string{"Content-Hash": hash},
	})
	return err
}

// objectKey namespaces media by collection, mirroring the remote layout.
func objectKey(collectionID uuid.UUID, name string) string {
	return collectionID.String() + "/" + name
}

func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

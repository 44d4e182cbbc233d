// Package storage provides an abstraction layer for the media object store.
//
// It wraps the MinIO Go client to provide a simplified interface for the
// operations media synchronization needs: downloading referenced files,
// uploading locally-added ones, and comparing stored content against the
// tracked hashes. The abstraction supports both AWS S3 and self-hosted MinIO
// instances.
//
// # Client Interface
//
// The Client interface abstracts the underlying storage provider, making it
// easier to mock storage interactions for unit testing (as seen in
// core/storage/mocks).
//
// # Operations
//
//   - BucketExists: Verifies access to the media bucket.
//   - PutObject: Uploads content (with size and options).
//   - GetObject: Retrieves content as a stream.
//   - StatObject: Fetches metadata for hash comparison.
//   - ListObjects: Lists objects under a prefix.
//   - RemoveObject: Deletes a single object.
//
// # Usage
//
//	client, err := storage.NewClient(config)
//	exists, err := client.BucketExists(ctx, "media")
package storage

// Package media keeps the host's media folder in step with a collection's
// tracked media files.
//
// The remote manifest is mirrored into the local index; downloads cover
// tracked, download-enabled files that are absent or stale on disk, compared
// by content hash. Uploads cover files referenced by local records that the
// object store does not hold yet. Per-file failures are reported, never
// fatal, so one broken file cannot stall the rest of a sync.
package media

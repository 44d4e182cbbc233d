// Package index implements the local shadow database: the last-synced remote
// state of every record, the record-type layouts, tracked media, and the
// per-collection sync configuration, all persisted through GORM in a SQLite
// file next to the host collection.
//
// The shadow is keyed by remote id. Rows carry the host-assigned local id once
// a record is materialized, which lets the diff engine compare the live note
// against the state the remote last delivered. Deactivated rows stay around as
// tombstones so a later re-import of the same collection does not treat old
// records as conflicts.
package index

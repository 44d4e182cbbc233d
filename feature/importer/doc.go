// Package importer turns batches of remote record payloads into local
// create/update/delete/no-op operations.
//
// The import pipeline per collection: upsert the batch into the local index
// (detecting cross-collection id conflicts), reconcile record-type schemas,
// prepare every record against the protection policy, apply the resulting
// operations to the host collection in a fixed phase order, then record the
// host modification counters back into the index so later local-change scans
// stay accurate.
//
// Preparation is pure: Preparer computes a record's new state without
// touching the host; the engine persists prepared state afterwards. Applying
// the same batch twice is idempotent, the second pass classifies everything
// as no-change.
package importer

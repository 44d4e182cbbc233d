// Package suggest computes outbound change proposals: the difference between
// a locally edited record and the last-synced remote state held in the local
// index.
//
// Field deltas are positional against the shadow's stored values. Tag deltas
// are symmetric set differences, with housekeeping, opt-in and protected tags
// excluded from both directions. Records unknown to the index become
// new-record proposals with a client-generated remote id; known records with
// zero deltas are reported as "no changes" rather than silently dropped.
package suggest

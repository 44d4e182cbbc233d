// Package subdeck mirrors the remote container hierarchy locally.
//
// Records carry their placement as a hierarchy tag; the reconciler resolves
// each tag to a container path under the collection's root container, creates
// the containers that are missing, relocates the records' cards and sweeps
// subcontainers that ended up empty. Cards parked in a filtered container are
// never pulled out of it; only their origin container changes. Flatten is the
// inverse operation for users who turn the feature off.
package subdeck

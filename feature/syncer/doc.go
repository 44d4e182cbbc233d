// Package syncer orchestrates the sync of all subscribed collections.
//
// Collections are processed strictly sequentially. Each collection's update
// feed is consumed page by page; a chunk is the unit of atomicity, the cursor
// only advances after a chunk is fully applied. Cancellation is checked
// between chunks and yields a not-completed result rather than an error, so
// "cancelled" stays distinguishable from "completed with zero changes". A
// failure aborts the remaining collections but preserves the results
// accumulated so far.
package syncer

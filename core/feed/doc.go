// Package feed defines the wire types exchanged with the NoteHub remote
// authority: paged record-update chunks flowing inbound, and change/new-record
// proposals flowing outbound.
//
// The package contains no transport logic. The Client interface is the
// boundary behind which pagination, retries and authentication live; the
// reconciliation core only consumes chunks and treats the `since` cursor as
// opaque.
package feed

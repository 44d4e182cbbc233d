// Package protect implements the tag vocabulary and the protection policy of
// the sync engine.
//
// A reserved tag namespace controls merge behavior: NoteHub_Protect::<Field>
// shields a single field from incoming updates, NoteHub_Protect::All shields
// every field, and NoteHub_Optional::<Group>::<tag> marks opt-in tag groups
// that merges must never remove. Internal housekeeping tags (both the
// engine's own and the host's) survive merges and never appear in outbound
// proposals.
//
// The package also owns the hierarchy tag grammar
// (NoteHub_Subdeck::<collection>[::<subdeck>]*) used by the subdeck feature
// to derive container placements.
//
// Everything here is pure computation over tag and field-name sets.
package protect

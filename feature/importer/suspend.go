package importer

import (
	"notehub-sync/core/host"
	"notehub-sync/core/index"
	"notehub-sync/feature/protect"
)

// cardsToSuspend decides which of a record's newly-appeared cards get
// suspended. before is the record's card set captured prior to any mutation,
// because "siblings suspended" is a property of prior state. Instruction
// records are always exempt.
func cardsToSuspend(tags []string, before, after []host.Card, suspendNewNotes bool, existingPolicy index.SuspendExistingPolicy) []int64 {
	if protect.HasTag(tags, protect.TagInstruction) {
		return nil
	}

	beforeIDs := make(map[int64]struct{}, len(before))
	for _, card := range before {
		beforeIDs[card.ID] = struct{}{}
	}
	newCards := func() []int64 {
		var ids []int64
		for _, card := range after {
			if _, ok := beforeIDs[card.ID]; !ok {
				ids = append(ids, card.ID)
			}
		}
		return ids
	}

	if len(before) > 0 {
		// The record already existed in the host.
		switch existingPolicy {
		case index.SuspendAlways:
			return newCards()
		case index.SuspendIfSiblingsSuspended:
			for _, card := range before {
				if !card.Suspended {
					return nil
				}
			}
			return newCards()
		default:
			return nil
		}
	}

	if suspendNewNotes {
		return newCards()
	}
	return nil
}

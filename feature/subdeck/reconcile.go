package subdeck

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"notehub-sync/core/host"
	"notehub-sync/feature/protect"
)

// Reconciler moves cards into the containers named by their records'
// hierarchy tags.
type Reconciler struct {
	col host.Collection
	log *zap.Logger
}

// New wires a reconciler to the host collection.
func New(col host.Collection, log *zap.Logger) *Reconciler {
	return &Reconciler{col: col, log: log}
}

// Reconcile places the given records under the root container according to
// their hierarchy tags. Records without a placement tag are left where the
// user put them. Missing containers are created up front so every move
// targets an existing container; subcontainers left empty afterwards are
// removed.
func (r *Reconciler) Reconcile(ctx context.Context, rootContainerID int64, noteIDs []int64) error {
	root, ok := r.col.Container(rootContainerID)
	if !ok {
		return fmt.Errorf("root container %d does not exist", rootContainerID)
	}

	groups := make(map[string][]int64)
	for _, noteID := range noteIDs {
		note, ok := r.col.Note(noteID)
		if !ok {
			continue
		}
		// Untagged records never move; relocating them would undo the
		// user's own container organization.
		tag, ok := protect.SubdeckTag(note.Tags)
		if !ok {
			continue
		}
		dest, ok := protect.ContainerNameForTag(root.Name, tag)
		if !ok {
			continue
		}
		groups[dest] = append(groups[dest], noteID)
	}
	if len(groups) == 0 {
		return nil
	}

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	containerIDs := make(map[string]int64, len(names))
	for _, name := range names {
		id, err := r.col.CreateContainer(ctx, name)
		if err != nil {
			return fmt.Errorf("failed to create container %q: %w", name, err)
		}
		containerIDs[name] = id
	}

	for _, name := range names {
		var cards []host.Card
		for _, noteID := range groups[name] {
			cards = append(cards, r.col.CardsOfNote(noteID)...)
		}
		if err := r.relocate(ctx, cards, containerIDs[name]); err != nil {
			return err
		}
	}
	r.log.Info("Reconciled container hierarchy",
		zap.String("root", root.Name),
		zap.Int("notes", len(noteIDs)),
		zap.Int("containers", len(names)))

	return r.sweepEmpty(ctx, rootContainerID)
}

// Flatten moves every card under the root back into the root container and
// removes the subcontainers.
func (r *Reconciler) Flatten(ctx context.Context, rootContainerID int64) error {
	root, ok := r.col.Container(rootContainerID)
	if !ok {
		return fmt.Errorf("root container %d does not exist", rootContainerID)
	}

	cards := r.col.CardsInContainer(rootContainerID, true)
	if err := r.relocate(ctx, cards, rootContainerID); err != nil {
		return err
	}

	children := r.col.ChildContainers(rootContainerID)
	if len(children) > 0 {
		ids := make([]int64, len(children))
		for i, c := range children {
			ids[i] = c.ID
		}
		if err := r.col.RemoveContainers(ctx, ids); err != nil {
			return fmt.Errorf("failed to remove subcontainers: %w", err)
		}
	}
	r.log.Info("Flattened container hierarchy",
		zap.String("root", root.Name),
		zap.Int("removed", len(children)))
	return nil
}

// relocate re-homes cards into dest. Cards sitting in a filtered container
// stay there; only their origin container is rewritten.
func (r *Reconciler) relocate(ctx context.Context, cards []host.Card, destID int64) error {
	var move, repark []int64
	for _, card := range cards {
		home := card.ContainerID
		parked := false
		if c, ok := r.col.Container(card.ContainerID); ok && c.Filtered && card.OriginContainerID != 0 {
			home = card.OriginContainerID
			parked = true
		}
		if home == destID {
			continue
		}
		if parked {
			repark = append(repark, card.ID)
		} else {
			move = append(move, card.ID)
		}
	}
	if len(move) > 0 {
		if err := r.col.MoveCards(ctx, move, destID); err != nil {
			return fmt.Errorf("failed to move cards: %w", err)
		}
	}
	if len(repark) > 0 {
		if err := r.col.SetCardOrigins(ctx, repark, destID); err != nil {
			return fmt.Errorf("failed to rewrite card origins: %w", err)
		}
	}
	return nil
}

// sweepEmpty removes subcontainers whose whole subtree holds no cards.
func (r *Reconciler) sweepEmpty(ctx context.Context, rootContainerID int64) error {
	var empty []int64
	for _, child := range r.col.ChildContainers(rootContainerID) {
		count, err := r.col.CardCount(child.ID, true)
		if err != nil {
			continue
		}
		if count == 0 {
			empty = append(empty, child.ID)
		}
	}
	if len(empty) == 0 {
		return nil
	}
	if err := r.col.RemoveContainers(ctx, empty); err != nil {
		return fmt.Errorf("failed to remove empty subcontainers: %w", err)
	}
	r.log.Info("Removed empty subcontainers", zap.Int("count", len(empty)))
	return nil
}

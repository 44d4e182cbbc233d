package importer

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"notehub-sync/core/host"
	"notehub-sync/core/index"
)

// SchemaConflictError reports a record-type mismatch the reconciler cannot
// fix without destroying local state. It aborts the collection's import.
type SchemaConflictError struct {
	SchemaIDs []int64
	Reason    string
}

func (e *SchemaConflictError) Error() string {
	return fmt.Sprintf("schema conflict on %v: %s", e.SchemaIDs, e.Reason)
}

// SchemaReconciler brings the host's record-type registry in line with the
// remote definitions before any record is prepared against them.
type SchemaReconciler struct {
	col   host.Collection
	store *index.Store
	log   *zap.Logger
}

// NewSchemaReconciler wires a reconciler to the host and the local index.
func NewSchemaReconciler(col host.Collection, store *index.Store, log *zap.Logger) *SchemaReconciler {
	return &SchemaReconciler{col: col, store: store, log: log}
}

// Ensure stores the remote schemas in the index, creates the ones the host
// lacks and realigns the rest: name, field set and order, templates, CSS.
// Local-only fields survive realignment; same-named fields keep their
// ordinals so field content stays attached to the right slot.
func (r *SchemaReconciler) Ensure(ctx context.Context, collectionID uuid.UUID, remote map[int64]*host.Schema) error {
	if err := r.store.UpsertSchemas(ctx, collectionID, remote); err != nil {
		return fmt.Errorf("failed to store remote schemas: %w", err)
	}

	for id, remoteSchema := range remote {
		local, ok := r.col.Schema(id)
		if !ok {
			created := *remoteSchema
			created.Templates, _ = withTemplateMarkers(remoteSchema.Templates)
			if err := r.col.CreateSchema(ctx, &created); err != nil {
				return fmt.Errorf("failed to create schema %d: %w", id, err)
			}
			r.log.Info("Created missing schema",
				zap.Int64("schema_id", id),
				zap.String("name", remoteSchema.Name))
			continue
		}
		if err := r.reconcileExisting(ctx, local, remoteSchema); err != nil {
			return err
		}
	}
	return nil
}

func (r *SchemaReconciler) reconcileExisting(ctx context.Context, local, remote *host.Schema) error {
	updated := *local
	changed := false

	if local.Name != remote.Name {
		updated.Name = r.uniqueName(remote.Name, local.ID)
		changed = true
		r.log.Info("Renaming schema",
			zap.Int64("schema_id", local.ID),
			zap.String("name", updated.Name))
	}

	if fieldsNeedRealignment(local, remote) {
		updated.Fields = realignFields(local.Fields, remote.Fields)
		changed = true
		r.log.Info("Realigning schema fields",
			zap.Int64("schema_id", local.ID),
			zap.Strings("fields", fieldNamesOf(updated.Fields)))
	}

	if len(local.Templates) != len(remote.Templates) {
		return &SchemaConflictError{
			SchemaIDs: []int64{local.ID},
			Reason: fmt.Sprintf("template count changed from %d to %d",
				len(local.Templates), len(remote.Templates)),
		}
	}
	marked, _ := withTemplateMarkers(remote.Templates)
	if !templatesEqual(local.Templates, marked) || local.CSS != remote.CSS {
		updated.Templates = marked
		updated.CSS = remote.CSS
		changed = true
	}

	if !changed {
		return nil
	}
	if err := r.col.UpdateSchema(ctx, &updated); err != nil {
		return fmt.Errorf("failed to update schema %d: %w", local.ID, err)
	}
	return nil
}

// uniqueName disambiguates a schema rename that would collide with another
// schema's name.
func (r *SchemaReconciler) uniqueName(name string, excludeID int64) string {
	if !r.col.SchemaNameExists(name, excludeID) {
		return name
	}
	candidate := name + " (remote)"
	for n := 2; r.col.SchemaNameExists(candidate, excludeID); n++ {
		candidate = fmt.Sprintf("%s (remote %d)", name, n)
	}
	return candidate
}

// fieldsNeedRealignment reports whether the local field layout deviates from
// the remote one: the remote fields must appear in the local layout in the
// same relative order, and the origin-id field must be last.
func fieldsNeedRealignment(local, remote *host.Schema) bool {
	localNames := local.FieldNames()
	remoteNames := remote.FieldNames()

	remoteSet := make(map[string]struct{}, len(remoteNames))
	for _, name := range remoteNames {
		remoteSet[name] = struct{}{}
	}
	var commonInLocalOrder []string
	for _, name := range localNames {
		if _, ok := remoteSet[name]; ok {
			commonInLocalOrder = append(commonInLocalOrder, name)
		}
	}
	if len(commonInLocalOrder) != len(remoteNames) {
		return true
	}
	for i := range remoteNames {
		if commonInLocalOrder[i] != remoteNames[i] {
			return true
		}
	}
	return len(localNames) == 0 || localNames[len(localNames)-1] != host.OriginFieldName
}

// realignFields merges the current and remote field lists into a new layout:
// same-named fields keep their current ordinal so stored content stays in the
// right slot, genuinely new fields get an ordinal beyond the current range so
// they start empty, local-only fields are appended, and the origin-id field
// stays last.
func realignFields(current, remote []host.SchemaField) []host.SchemaField {
	currentOrdByName := make(map[string]int, len(current))
	for _, f := range current {
		currentOrdByName[strings.ToLower(f.Name)] = f.Ord
	}

	merged := make([]host.SchemaField, len(remote))
	copy(merged, remote)
	for i := range merged {
		if ord, ok := currentOrdByName[strings.ToLower(merged[i].Name)]; ok {
			merged[i].Ord = ord
		} else {
			merged[i].Ord = len(current) + 1
		}
	}

	mergedNames := make(map[string]struct{}, len(merged))
	for _, f := range merged {
		mergedNames[strings.ToLower(f.Name)] = struct{}{}
	}
	var localOnly []host.SchemaField
	for _, f := range current {
		if _, ok := mergedNames[strings.ToLower(f.Name)]; !ok {
			localOnly = append(localOnly, f)
		}
	}

	// The remote layout carries the origin-id field last; keep it there.
	originField := merged[len(merged)-1]
	result := make([]host.SchemaField, 0, len(merged)+len(localOnly))
	result = append(result, merged[:len(merged)-1]...)
	result = append(result, localOnly...)
	result = append(result, originField)
	return result
}

// Every synchronized template carries a versioned back-side snippet linking
// the card to its remote record.
const templateSnippetVersion = 1

var (
	templateSnippet = fmt.Sprintf(
		"\n<!-- notehub snippet v%d -->\n{{#%s}}<a class=\"notehub-link\" href=\"https://app.notehub.example/records/{{text:%s}}\">View on NoteHub</a>{{/%s}}\n<!-- notehub snippet end -->",
		templateSnippetVersion, host.OriginFieldName, host.OriginFieldName, host.OriginFieldName)

	templateSnippetRe = regexp.MustCompile(`(?s)\n?<!-- notehub snippet v\d+ -->.*?<!-- notehub snippet end -->`)
)

// withTemplateMarkers ensures every template's back side ends with the
// current snippet, replacing any older version. changed is false when every
// template already carries the current one.
func withTemplateMarkers(templates []host.Template) ([]host.Template, bool) {
	out := make([]host.Template, len(templates))
	copy(out, templates)
	changed := false
	for i := range out {
		back := templateSnippetRe.ReplaceAllString(out[i].Back, "")
		back += templateSnippet
		if back != out[i].Back {
			out[i].Back = back
			changed = true
		}
	}
	return out, changed
}

func templatesEqual(a, b []host.Template) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func fieldNamesOf(fields []host.SchemaField) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}

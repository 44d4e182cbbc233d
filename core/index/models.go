package index

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"notehub-sync/core/host"
)

// NoteRow is the shadow of one remote record.
type NoteRow struct {
	RemoteID     string `gorm:"primaryKey;column:remote_id;type:varchar(36)"`
	CollectionID string `gorm:"column:collection_id;type:varchar(36);index"`
	LocalID      int64  `gorm:"column:local_id;index"`
	SchemaID     int64  `gorm:"column:schema_id"`
	GUID         string `gorm:"column:guid;type:varchar(64)"`
	// Fields is the JSON-encoded ordered field list as last delivered by the
	// remote, origin-id field stripped.
	Fields string `gorm:"column:fields;type:text"`
	// Tags is the space-joined remote tag set.
	Tags           string `gorm:"column:tags;type:text"`
	LastUpdateKind string `gorm:"column:last_update_kind;type:varchar(32)"`
	// Mod is the host Mod value recorded right after the last applied import.
	Mod int64 `gorm:"column:mod"`
	// Deleted marks the row as a tombstone. Tombstones never block upserts
	// from other collections and are excluded from shadow reads.
	Deleted bool `gorm:"column:deleted;default:false"`
}

// TableName implements the GORM naming convention override.
func (NoteRow) TableName() string { return "notes" }

// FieldList decodes the stored field list.
func (r *NoteRow) FieldList() ([]host.Field, error) {
	if r.Fields == "" {
		return nil, nil
	}
	var fields []host.Field
	if err := json.Unmarshal([]byte(r.Fields), &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// TagList splits the stored tag string.
func (r *NoteRow) TagList() []string {
	return strings.Fields(r.Tags)
}

// SchemaRow stores one record-type definition as delivered by the remote.
type SchemaRow struct {
	SchemaID     int64  `gorm:"primaryKey;column:schema_id"`
	CollectionID string `gorm:"column:collection_id;type:varchar(36);index"`
	Name         string `gorm:"column:name;type:varchar(255)"`
	// Layout is the JSON-encoded host.Schema.
	Layout string `gorm:"column:layout;type:text"`
}

// TableName implements the GORM naming convention override.
func (SchemaRow) TableName() string { return "schemas" }

// MediaRow tracks one media file referenced by a collection.
type MediaRow struct {
	Name                     string    `gorm:"primaryKey;column:name;type:varchar(255)"`
	CollectionID             string    `gorm:"primaryKey;column:collection_id;type:varchar(36)"`
	ContentHash              string    `gorm:"column:content_hash;type:varchar(64)"`
	Modified                 time.Time `gorm:"column:modified"`
	ReferencedOnAcceptedNote bool      `gorm:"column:referenced_on_accepted_note"`
	ExistsOnStorage          bool      `gorm:"column:exists_on_storage"`
	DownloadEnabled          bool      `gorm:"column:download_enabled"`
}

// TableName implements the GORM naming convention override.
func (MediaRow) TableName() string { return "media" }

// DeletePolicy controls what happens to locally present records the remote
// has deleted.
type DeletePolicy string

const (
	// DeleteIfNoReviews removes the record unless any of its cards has review
	// history; reviewed records are marked instead.
	DeleteIfNoReviews DeletePolicy = "delete_if_no_reviews"
	// NeverDelete always marks instead of removing.
	NeverDelete DeletePolicy = "never_delete"
)

// SuspendExistingPolicy controls suspension of cards on updated records.
type SuspendExistingPolicy string

const (
	// SuspendNever leaves updated records' cards untouched.
	SuspendNever SuspendExistingPolicy = "never"
	// SuspendAlways suspends new cards of updated records.
	SuspendAlways SuspendExistingPolicy = "always"
	// SuspendIfSiblingsSuspended suspends new cards only when every
	// pre-existing card of the record was already suspended.
	SuspendIfSiblingsSuspended SuspendExistingPolicy = "if_siblings_suspended"
)

// CollectionRow is the per-collection sync configuration and cursor.
type CollectionRow struct {
	CollectionID string `gorm:"primaryKey;column:collection_id;type:varchar(36)"`
	Name         string `gorm:"column:name;type:varchar(255)"`
	// ContainerID is the host container new records are created in.
	ContainerID int64 `gorm:"column:container_id"`
	// LatestUpdate is the feed cursor of the last fully-applied chunk.
	LatestUpdate    time.Time             `gorm:"column:latest_update"`
	SubdecksEnabled bool                  `gorm:"column:subdecks_enabled"`
	SuspendNewNotes bool                  `gorm:"column:suspend_new_notes"`
	SuspendExisting SuspendExistingPolicy `gorm:"column:suspend_existing;type:varchar(32);default:never"`
	DeletePolicy    DeletePolicy          `gorm:"column:delete_policy;type:varchar(32);default:delete_if_no_reviews"`
	FirstImportDone bool                  `gorm:"column:first_import_done"`
}

// TableName implements the GORM naming convention override.
func (CollectionRow) TableName() string { return "collections" }

// ShadowNote is the decoded read model of a NoteRow.
type ShadowNote struct {
	RemoteID       uuid.UUID
	CollectionID   uuid.UUID
	LocalID        int64
	SchemaID       int64
	GUID           string
	Fields         []host.Field
	Tags           []string
	LastUpdateKind string
	Mod            int64
}

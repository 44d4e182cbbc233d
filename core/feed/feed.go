package feed

import (
	"context"
	"time"

	"github.com/google/uuid"

	"notehub-sync/core/host"
)

// UpdateKind describes why a record last changed on the remote authority.
type UpdateKind string

const (
	// UpdateKindNone means the record has no recorded update reason.
	UpdateKindNone UpdateKind = ""
	// UpdateKindNewContent marks a record whose content was added or replaced.
	UpdateKindNewContent UpdateKind = "new_content"
	// UpdateKindUpdatedContent marks an in-place content revision.
	UpdateKindUpdatedContent UpdateKind = "updated_content"
	// UpdateKindSpellingGrammar marks a minor textual correction.
	UpdateKindSpellingGrammar UpdateKind = "spelling_grammar"
	// UpdateKindNewTags marks a tag-only change.
	UpdateKindNewTags UpdateKind = "new_tags"
	// UpdateKindOther marks any change that fits no other kind.
	UpdateKindOther UpdateKind = "other"
	// UpdateKindDelete marks a record that was deleted on the remote authority.
	UpdateKindDelete UpdateKind = "delete"
)

// RecordPayload is one record as delivered by the remote update feed.
type RecordPayload struct {
	// RemoteID is the stable id assigned by the remote authority.
	RemoteID uuid.UUID `json:"remote_id"`

	// LocalID is the id of the record in the host collection. Zero means the
	// record has not been materialized locally yet.
	LocalID int64 `json:"local_id,omitempty"`

	// SchemaID references the record type the fields are laid out against.
	SchemaID int64 `json:"schema_id"`

	// Fields are the record's field values in schema order.
	Fields []host.Field `json:"fields"`

	// Tags is the remote-authoritative tag set.
	Tags []string `json:"tags"`

	// GUID is the content-identity string used for duplicate detection.
	GUID string `json:"guid"`

	// LastUpdateKind describes why the record last changed. UpdateKindDelete
	// turns the payload into a deletion instruction.
	LastUpdateKind UpdateKind `json:"last_update_kind"`
}

// Chunk is one page of the remote update feed.
type Chunk struct {
	// Notes are the record payloads contained in this page.
	Notes []RecordPayload `json:"notes"`

	// ProtectedFields maps schema ids to field names the remote authority
	// forbids overwriting locally.
	ProtectedFields map[int64][]string `json:"protected_fields"`

	// ProtectedTags are tag leaf names preserved during merges.
	ProtectedTags []string `json:"protected_tags"`

	// LatestUpdate is the cursor to hand back on the next fetch.
	LatestUpdate time.Time `json:"latest_update"`

	// HasNext reports whether more pages follow.
	HasNext bool `json:"has_next"`
}

// MediaInfo describes one media file tracked for a collection.
type MediaInfo struct {
	Name                     string    `json:"name"`
	ContentHash              string    `json:"file_content_hash"`
	Modified                 time.Time `json:"modified"`
	ReferencedOnAcceptedNote bool      `json:"referenced_on_accepted_note"`
	ExistsOnStorage          bool      `json:"exists_on_storage"`
	DownloadEnabled          bool      `json:"download_enabled"`
}

// ChangeProposal is an outbound suggestion describing how a record that
// already exists remotely was edited locally.
type ChangeProposal struct {
	RemoteID      uuid.UUID    `json:"remote_id"`
	LocalID       int64        `json:"local_id"`
	FieldsChanged []host.Field `json:"fields_changed"`
	TagsAdded     []string     `json:"tags_added"`
	TagsRemoved   []string     `json:"tags_removed"`
	ChangeKind    UpdateKind   `json:"change_kind"`
	Comment       string       `json:"comment"`
}

// NewRecordProposal is an outbound suggestion for a record unknown to the
// remote authority. RemoteID is client-generated.
type NewRecordProposal struct {
	CollectionID uuid.UUID    `json:"collection_id"`
	RemoteID     uuid.UUID    `json:"remote_id"`
	LocalID      int64        `json:"local_id"`
	Fields       []host.Field `json:"fields"`
	Tags         []string     `json:"tags"`
	GUID         string       `json:"guid"`
	SchemaName   string       `json:"schema_name"`
	Comment      string       `json:"comment"`
}

// Pager iterates the paged update feed for one collection. Next returns the
// next chunk, or ok=false once the feed is exhausted.
type Pager interface {
	Next(ctx context.Context) (chunk *Chunk, ok bool, err error)
}

// Client is the boundary to the remote authority. Implementations own
// pagination, retries and authentication; the core never inspects cursors.
type Client interface {
	// Updates opens the paged update feed for a collection. The since cursor
	// is the LatestUpdate value of the last fully-applied chunk.
	Updates(ctx context.Context, collectionID uuid.UUID, since time.Time) (Pager, error)

	// Schemas fetches the record-type definitions used by a collection,
	// keyed by schema id.
	Schemas(ctx context.Context, collectionID uuid.UUID) (map[int64]*host.Schema, error)

	// SubmitProposals sends outbound suggestions in bulk. The result maps
	// local record ids to remote-reported errors.
	SubmitProposals(ctx context.Context, newRecords []NewRecordProposal, changes []ChangeProposal) (map[int64][]string, error)

	// Media fetches the metadata of every media file tracked for a
	// collection.
	Media(ctx context.Context, collectionID uuid.UUID) ([]MediaInfo, error)
}

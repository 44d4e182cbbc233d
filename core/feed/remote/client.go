package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"notehub-sync/core/feed"
	"notehub-sync/core/host"
)

// Client talks to the NoteHub HTTP API. It implements feed.Client.
type Client struct {
	baseURL  string
	token    string
	pageSize int
	http     *http.Client
}

// NewClient creates an API client from configuration.
func NewClient(cfg Config) *Client {
	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = 30
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 2000
	}
	return &Client{
		baseURL:  cfg.BaseURL,
		token:    cfg.Token,
		pageSize: pageSize,
		http:     &http.Client{Timeout: time.Duration(timeout) * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Token "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s returned status %d: %s", method, path, resp.StatusCode, payload)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response of %s %s: %w", method, path, err)
	}
	return nil
}

// pager fetches feed pages lazily. The since cursor advances to each chunk's
// LatestUpdate, so a retried Next call after an error re-requests the same
// page.
type pager struct {
	client       *Client
	collectionID uuid.UUID
	since        time.Time
	done         bool
}

func (p *pager) Next(ctx context.Context) (*feed.Chunk, bool, error) {
	if p.done {
		return nil, false, nil
	}
	query := url.Values{}
	query.Set("size", strconv.Itoa(p.client.pageSize))
	if !p.since.IsZero() {
		query.Set("since", p.since.UTC().Format(time.RFC3339Nano))
	}
	var chunk feed.Chunk
	path := fmt.Sprintf("/collections/%s/updates", p.collectionID)
	if err := p.client.do(ctx, http.MethodGet, path, query, nil, &chunk); err != nil {
		return nil, false, err
	}
	p.since = chunk.LatestUpdate
	p.done = !chunk.HasNext
	return &chunk, true, nil
}

// Updates opens the paged update feed for a collection.
func (c *Client) Updates(_ context.Context, collectionID uuid.UUID, since time.Time) (feed.Pager, error) {
	return &pager{client: c, collectionID: collectionID, since: since}, nil
}

// Schemas fetches the record-type definitions used by a collection.
func (c *Client) Schemas(ctx context.Context, collectionID uuid.UUID) (map[int64]*host.Schema, error) {
	var schemas []*host.Schema
	path := fmt.Sprintf("/collections/%s/schemas", collectionID)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &schemas); err != nil {
		return nil, err
	}
	out := make(map[int64]*host.Schema, len(schemas))
	for _, s := range schemas {
		out[s.ID] = s
	}
	return out, nil
}

type bulkProposalRequest struct {
	NewRecords []feed.NewRecordProposal `json:"new_records"`
	Changes    []feed.ChangeProposal    `json:"changes"`
}

type bulkProposalResponse struct {
	Errors map[string][]string `json:"errors"`
}

// SubmitProposals sends outbound suggestions in bulk. The returned map keys
// are local record ids of rejected proposals.
func (c *Client) SubmitProposals(ctx context.Context, newRecords []feed.NewRecordProposal, changes []feed.ChangeProposal) (map[int64][]string, error) {
	if len(newRecords) == 0 && len(changes) == 0 {
		return nil, nil
	}
	var resp bulkProposalResponse
	body := bulkProposalRequest{NewRecords: newRecords, Changes: changes}
	if err := c.do(ctx, http.MethodPost, "/suggestions/bulk", nil, body, &resp); err != nil {
		return nil, err
	}
	out := make(map[int64][]string, len(resp.Errors))
	for key, messages := range resp.Errors {
		localID, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse local id %q in response: %w", key, err)
		}
		out[localID] = messages
	}
	return out, nil
}

// Media fetches the metadata of every media file tracked for a collection.
func (c *Client) Media(ctx context.Context, collectionID uuid.UUID) ([]feed.MediaInfo, error) {
	var infos []feed.MediaInfo
	path := fmt.Sprintf("/collections/%s/media", collectionID)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &infos); err != nil {
		return nil, err
	}
	return infos, nil
}

var _ feed.Client = (*Client)(nil)

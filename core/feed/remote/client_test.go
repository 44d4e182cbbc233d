package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notehub-sync/core/feed"
	"notehub-sync/core/host"
)

func TestPagerIteratesUntilLastPage(t *testing.T) {
	coll := uuid.New()
	page := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, fmt.Sprintf("/collections/%s/updates", coll), r.URL.Path)
		assert.Equal(t, "Token secret", r.Header.Get("Authorization"))
		page++
		chunk := feed.Chunk{
			Notes:        []feed.RecordPayload{{RemoteID: uuid.New()}},
			LatestUpdate: time.Date(2026, 8, page, 0, 0, 0, 0, time.UTC),
			HasNext:      page < 3,
		}
		require.NoError(t, json.NewEncoder(w).Encode(chunk))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Token: "secret", PageSize: 10})
	pager, err := client.Updates(context.Background(), coll, time.Time{})
	require.NoError(t, err)

	var chunks int
	for {
		chunk, ok, err := pager.Next(context.Background())
		require.NoError(t, err)
		if !ok {
			break
		}
		chunks++
		assert.Len(t, chunk.Notes, 1)
	}
	assert.Equal(t, 3, chunks)
	assert.Equal(t, 3, page)
}

func TestSchemas(t *testing.T) {
	coll := uuid.New()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		schemas := []*host.Schema{
			{ID: 1, Name: "Basic"},
			{ID: 2, Name: "Cloze"},
		}
		require.NoError(t, json.NewEncoder(w).Encode(schemas))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})
	schemas, err := client.Schemas(context.Background(), coll)
	require.NoError(t, err)
	require.Len(t, schemas, 2)
	assert.Equal(t, "Cloze", schemas[2].Name)
}

func TestSubmitProposals(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/suggestions/bulk", r.URL.Path)
		var req struct {
			NewRecords []feed.NewRecordProposal `json:"new_records"`
			Changes    []feed.ChangeProposal    `json:"changes"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Len(t, req.NewRecords, 1)
		assert.Len(t, req.Changes, 1)
		fmt.Fprint(w, `{"errors":{"55":["field Front must not be empty"]}}`)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})
	errs, err := client.SubmitProposals(context.Background(),
		[]feed.NewRecordProposal{{LocalID: 54}},
		[]feed.ChangeProposal{{LocalID: 55}})
	require.NoError(t, err)
	assert.Equal(t, map[int64][]string{55: {"field Front must not be empty"}}, errs)
}

func TestSubmitProposals_EmptyIsNoop(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:0"})
	errs, err := client.SubmitProposals(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, errs)
}

func TestDoSurfacesHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})
	_, err := client.Media(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
}

package httpserver

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shunguan/voteable/internal/domain"
)

func TestCreateVotee(t *testing.T) {
	ts := newTestServer(t)
	postID := uuid.New()

	v := ts.createVotee(t, "comment", map[string]uuid.UUID{"post_id": postID})

	assert.NotEqual(t, uuid.Nil, v.ID)
	assert.Equal(t, "comment", v.Type)
	assert.Equal(t, postID, v.Refs["post_id"])
	assert.Equal(t, domain.VoteAggregate{}, v.Votes)
}

func TestCreateVotee_ParentTypeIsKnown(t *testing.T) {
	ts := newTestServer(t)

	v := ts.createVotee(t, "post", nil)
	assert.Equal(t, "post", v.Type)
}

func TestCreateVotee_Rejected(t *testing.T) {
	tests := []struct {
		name     string
		body     any
		wantCode string
	}{
		{"unknown type", map[string]any{"type": "article"}, "not_voteable"},
		{"missing type", map[string]any{"refs": map[string]string{}}, "validation"},
		{"malformed json", `{"type":`, "validation"},
		{"malformed ref", `{"type":"comment","refs":{"post_id":"nope"}}`, "validation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)

			rec := ts.do(t, http.MethodPost, "/api/votees", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.wantCode, decode[errorBody](t, rec).Code)
		})
	}
}

func TestGetVotee_NotFound(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/votees/"+uuid.NewString(), nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decode[errorBody](t, rec)
	assert.Equal(t, "not_found", body.Type)
	assert.Equal(t, "votee_not_found", body.Code)
}

func TestGetVotee_InvalidID(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/votees/not-a-uuid", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteVotee(t *testing.T) {
	ts := newTestServer(t)
	v := ts.createVotee(t, "comment", nil)

	rec := ts.do(t, http.MethodDelete, "/api/votees/"+v.ID.String(), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/votees/"+v.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/api/votees/"+v.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

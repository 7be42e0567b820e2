package httpserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/shunguan/voteable/internal/adapter/metrics"
	"github.com/shunguan/voteable/internal/app"
	"github.com/shunguan/voteable/internal/domain"
	"github.com/shunguan/voteable/internal/platform/config"
	"github.com/shunguan/voteable/internal/voteable"
	"github.com/shunguan/voteable/internal/voting"
)

type testServer struct {
	*Server
	store       *voting.MemoryStore
	reg         *prometheus.Registry
	httpMetrics *metrics.HTTPMetrics
}

type serverOption func(*config.Config, *[]HealthCheck)

func withHealthChecks(checks ...HealthCheck) serverOption {
	return func(_ *config.Config, hc *[]HealthCheck) { *hc = checks }
}

func withVoteRateLimit(perSecond float64, burst int) serverOption {
	return func(cfg *config.Config, _ *[]HealthCheck) {
		cfg.VoteRateLimit = perSecond
		cfg.VoteRateBurst = burst
	}
}

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()

	cfg := &config.Config{
		Port:          "0",
		VoteRateLimit: 1000,
		VoteRateBurst: 1000,
	}
	var checks []HealthCheck
	for _, opt := range opts {
		opt(cfg, &checks)
	}

	clock := clockwork.NewFakeClock()
	store := voting.NewMemoryStore(clock)
	registry := voteable.NewBuilder().
		Register("comment", "comment", 1, -1).
		Register("comment", "post", 2, -2).
		Build()
	engine := voting.NewEngine(store, registry, clock, nil, voting.DefaultConfig())
	svc := app.NewService(store, engine, registry, clock)

	reg := metrics.NewRegistry()
	httpMetrics := metrics.NewHTTPMetrics(reg)

	srv := NewServer(cfg, svc, httpMetrics, metrics.Handler(reg), checks, clock)
	return &testServer{Server: srv, store: store, reg: reg, httpMetrics: httpMetrics}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) createVotee(t *testing.T, voteeType string, refs map[string]uuid.UUID) domain.Votee {
	t.Helper()

	rec := ts.do(t, http.MethodPost, "/api/votees", map[string]any{"type": voteeType, "refs": refs})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var v domain.Votee
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func (ts *testServer) getVotee(t *testing.T, id uuid.UUID) domain.Votee {
	t.Helper()

	rec := ts.do(t, http.MethodGet, "/api/votees/"+id.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var v domain.Votee
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

type errorBody struct {
	Error string `json:"error"`
	Type  string `json:"type"`
	Code  string `json:"code"`
}

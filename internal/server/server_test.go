package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freetoair/catalog/internal/catalog"
	"freetoair/catalog/internal/config"
	"freetoair/catalog/internal/database"
	"freetoair/catalog/internal/models"
	"freetoair/catalog/internal/server/api"
)

// stubProber lets each test decide which stream URLs count as reachable.
type stubProber struct {
	reachable map[string]bool
}

func (p *stubProber) Probe(_ context.Context, url string) bool {
	return p.reachable[url]
}

type testEnv struct {
	server *httptest.Server
	store  catalog.ChannelStore
	prober *stubProber
	apiKey string
}

func newTestEnv(t *testing.T, freeKey, proKey string) *testEnv {
	t.Helper()

	dbCfg := database.NewConfig(filepath.Join(t.TempDir(), "catalog.db"))
	db, err := database.NewDB(dbCfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := catalog.NewStore(db)
	prober := &stubProber{reachable: make(map[string]bool)}

	cfg := config.DefaultConfig()
	cfg.FreeAPIKey = freeKey
	cfg.ProAPIKey = proKey

	handler := Handler(db, store, prober, cfg, zerolog.Nop())
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	return &testEnv{server: ts, store: store, prober: prober, apiKey: freeKey}
}

func (e *testEnv) request(t *testing.T, method, path string, body []byte, apiKey string) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func channelPayload(id, country, language, streamURL string) []byte {
	payload := fmt.Sprintf(`{
		"id": %q,
		"name": "Channel %s",
		"country": %q,
		"language": %q,
		"category": "News",
		"stream_url": %q
	}`, id, id, country, language, streamURL)
	return []byte(payload)
}

func TestCreateChannelLifecycle(t *testing.T) {
	env := newTestEnv(t, "free-key", "pro-key")

	streamURL := "https://example.com/streams/bbc.m3u8"
	env.prober.reachable[streamURL] = true
	body := channelPayload("bbc_world", "UK", "English", streamURL)

	resp, data := env.request(t, http.MethodPost, "/v1/channels", body, env.apiKey)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))

	var created api.CreateResponse
	require.NoError(t, json.Unmarshal(data, &created))
	assert.Equal(t, "created", created.Status)
	assert.Equal(t, "bbc_world", created.ID)
	require.NotNil(t, created.Channel)
	assert.True(t, created.Channel.IsActive)

	// Same id again is an idempotent success, not a conflict.
	resp, data = env.request(t, http.MethodPost, "/v1/channels", body, env.apiKey)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	var dup api.CreateResponse
	require.NoError(t, json.Unmarshal(data, &dup))
	assert.Equal(t, "duplicate", dup.Status)

	count, err := env.store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCreateChannelUnreachableStreamRejected(t *testing.T) {
	env := newTestEnv(t, "free-key", "")

	// The prober has no verdict for this URL, so it is unreachable.
	body := channelPayload("dead_air", "UK", "English", "https://example.com/streams/dead.m3u8")
	resp, data := env.request(t, http.MethodPost, "/v1/channels", body, env.apiKey)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(data), "not reachable")

	count, err := env.store.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count, "rejected channels never reach the store")
}

func TestCreateChannelInvalidPayloads(t *testing.T) {
	env := newTestEnv(t, "free-key", "")

	tests := []struct {
		name string
		body []byte
	}{
		{"malformed json", []byte(`{"id": "x"`)},
		{"missing id", channelPayload("", "UK", "English", "https://example.com/s.m3u8")},
		{"relative stream url", channelPayload("x", "UK", "English", "streams/x.m3u8")},
		{"ftp stream url", channelPayload("x", "UK", "English", "ftp://example.com/x.m3u8")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := env.request(t, http.MethodPost, "/v1/channels", tt.body, env.apiKey)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestListEndpoints(t *testing.T) {
	env := newTestEnv(t, "free-key", "")
	ctx := context.Background()

	seed := []struct{ id, country, language, category string }{
		{"bbc_world", "UK", "English", "News"},
		{"france_24", "France", "French", "News"},
		{"dw_news", "Germany", "German", "News"},
		{"sky_sports", "UK", "English", "Sports"},
	}
	for _, s := range seed {
		ch := models.NewChannel()
		ch.ID = s.id
		ch.Name = "Channel " + s.id
		ch.Country = s.country
		ch.Language = s.language
		ch.Category = s.category
		ch.StreamURL = "https://example.com/streams/" + s.id + ".m3u8"
		_, err := env.store.InsertIfAbsent(ctx, ch)
		require.NoError(t, err)
	}

	resp, data := env.request(t, http.MethodGet, "/v1/channels", nil, env.apiKey)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var all []models.Channel
	require.NoError(t, json.Unmarshal(data, &all))
	assert.Len(t, all, 4)

	// Country filter is case-insensitive exact match.
	resp, data = env.request(t, http.MethodGet, "/v1/channels/country/france", nil, env.apiKey)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var byCountry []models.Channel
	require.NoError(t, json.Unmarshal(data, &byCountry))
	require.Len(t, byCountry, 1)
	assert.Equal(t, "france_24", byCountry[0].ID)

	resp, data = env.request(t, http.MethodGet, "/v1/channels/language/GERMAN", nil, env.apiKey)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var byLanguage []models.Channel
	require.NoError(t, json.Unmarshal(data, &byLanguage))
	require.Len(t, byLanguage, 1)
	assert.Equal(t, "dw_news", byLanguage[0].ID)

	resp, data = env.request(t, http.MethodGet, "/v1/channels/category/sports", nil, env.apiKey)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var byCategory []models.Channel
	require.NoError(t, json.Unmarshal(data, &byCategory))
	require.Len(t, byCategory, 1)
	assert.Equal(t, "sky_sports", byCategory[0].ID)

	// An unknown country is an empty result, not an error.
	resp, data = env.request(t, http.MethodGet, "/v1/channels/country/Atlantis", nil, env.apiKey)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var empty []models.Channel
	require.NoError(t, json.Unmarshal(data, &empty))
	assert.Empty(t, empty)
}

func TestAPIKeyGate(t *testing.T) {
	env := newTestEnv(t, "free-key", "pro-key")

	resp, data := env.request(t, http.MethodGet, "/v1/channels", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, string(data), "API key required")

	resp, data = env.request(t, http.MethodGet, "/v1/channels", nil, "wrong-key")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, string(data), "Invalid API key")

	resp, _ = env.request(t, http.MethodGet, "/v1/channels", nil, "free-key")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.request(t, http.MethodGet, "/v1/channels", nil, "pro-key")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGateDisabledAllowsAnonymous(t *testing.T) {
	env := newTestEnv(t, "", "")

	resp, _ := env.request(t, http.MethodGet, "/v1/channels", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealthAndMetricsAreUngated(t *testing.T) {
	env := newTestEnv(t, "free-key", "")

	resp, data := env.request(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(data))

	resp, data = env.request(t, http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), "catalog_")
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, "free-key", "")

	resp, _ := env.request(t, http.MethodDelete, "/v1/channels", nil, env.apiKey)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

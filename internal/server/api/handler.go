package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/hlog"

	"freetoair/catalog/internal/catalog"
	"freetoair/catalog/internal/metrics"
	"freetoair/catalog/internal/models"
	"freetoair/catalog/internal/probe"
)

const maxBodyBytes = 64 * 1024

// CreateResponse reports the outcome of a channel creation request.
type CreateResponse struct {
	Status  string          `json:"status"` // "created" or "duplicate"
	ID      string          `json:"id"`
	Channel *models.Channel `json:"channel,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// ChannelsHandler holds dependencies for the channel endpoints.
type ChannelsHandler struct {
	store  catalog.ChannelStore
	prober probe.Prober
}

// NewChannelsHandler creates a new handler instance.
func NewChannelsHandler(store catalog.ChannelStore, prober probe.Prober) *ChannelsHandler {
	return &ChannelsHandler{
		store:  store,
		prober: prober,
	}
}

// CreateChannel handles POST /v1/channels. The request is validated and
// its stream URL probed before anything touches the store; creating an
// existing id is an idempotent success, never an overwrite.
func (h *ChannelsHandler) CreateChannel(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	var ch models.Channel
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&ch); err != nil {
		log.Warn().Err(err).Msg("Invalid channel payload")
		writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	if err := ch.Validate(); err != nil {
		log.Warn().Err(err).Str("channel_id", ch.ID).Msg("Channel validation failed")
		writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	// Pre-creation reachability check. A dead stream never enters the
	// catalog; the reconciler owns all later flips.
	if !h.prober.Probe(r.Context(), ch.StreamURL) {
		log.Info().Str("channel_id", ch.ID).Str("url", ch.StreamURL).Msg("Rejected channel with unreachable stream")
		metrics.RecordCreation("rejected")
		writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "stream URL is not reachable"})
		return
	}

	now := time.Now()
	ch.IsActive = true
	ch.CreatedAt = now
	ch.UpdatedAt = now
	ch.LastCheckedAt = nil

	created, err := h.store.InsertIfAbsent(r.Context(), &ch)
	if err != nil {
		log.Error().Err(err).Str("channel_id", ch.ID).Msg("Failed to insert channel")
		writeJSON(w, r, http.StatusServiceUnavailable, errorResponse{Error: "catalog store unavailable, retry later"})
		return
	}

	if !created {
		log.Info().Str("channel_id", ch.ID).Msg("Duplicate channel id, keeping existing record")
		metrics.RecordCreation("duplicate")
		writeJSON(w, r, http.StatusOK, CreateResponse{Status: "duplicate", ID: ch.ID})
		return
	}

	log.Info().Str("channel_id", ch.ID).Msg("Channel created")
	metrics.RecordCreation("created")
	writeJSON(w, r, http.StatusCreated, CreateResponse{Status: "created", ID: ch.ID, Channel: &ch})
}

// ListChannels handles GET /v1/channels.
func (h *ChannelsHandler) ListChannels(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	channels, err := h.store.ListAll(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list channels")
		writeJSON(w, r, http.StatusServiceUnavailable, errorResponse{Error: "catalog store unavailable, retry later"})
		return
	}

	writeJSON(w, r, http.StatusOK, channels)
}

// ListByCountry handles GET /v1/channels/country/{country}.
func (h *ChannelsHandler) ListByCountry(w http.ResponseWriter, r *http.Request) {
	h.listFiltered(w, r, r.PathValue("country"), h.store.ListByCountry)
}

// ListByLanguage handles GET /v1/channels/language/{language}.
func (h *ChannelsHandler) ListByLanguage(w http.ResponseWriter, r *http.Request) {
	h.listFiltered(w, r, r.PathValue("language"), h.store.ListByLanguage)
}

// ListByCategory handles GET /v1/channels/category/{category}.
func (h *ChannelsHandler) ListByCategory(w http.ResponseWriter, r *http.Request) {
	h.listFiltered(w, r, r.PathValue("category"), h.store.ListByCategory)
}

func (h *ChannelsHandler) listFiltered(w http.ResponseWriter, r *http.Request, value string,
	list func(ctx context.Context, value string) ([]models.Channel, error)) {
	log := hlog.FromRequest(r)

	if value == "" {
		writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "filter value is required"})
		return
	}

	channels, err := list(r.Context(), value)
	if err != nil {
		log.Error().Err(err).Str("filter", value).Msg("Failed to list channels")
		writeJSON(w, r, http.StatusServiceUnavailable, errorResponse{Error: "catalog store unavailable, retry later"})
		return
	}

	writeJSON(w, r, http.StatusOK, channels)
}

// writeJSON marshals the payload before touching the response so a
// marshal failure can still produce a clean 500.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	log := hlog.FromRequest(r)

	jsonBytes, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Error marshaling JSON response")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(jsonBytes); err != nil {
		log.Error().Err(err).Msg("Error writing JSON response body to client")
	}
}

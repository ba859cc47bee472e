package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"freetoair/catalog/internal/catalog"
	"freetoair/catalog/internal/config"
	"freetoair/catalog/internal/database"
	"freetoair/catalog/internal/probe"
	"freetoair/catalog/internal/server/api"
	"freetoair/catalog/internal/server/auth"
)

// Handler assembles the full HTTP surface: the key-gated channel API under
// /v1/, plus ungated health and metrics endpoints, all wrapped in the
// request logging chain.
func Handler(db *database.DB, store catalog.ChannelStore, prober probe.Prober, cfg *config.Config, logger zerolog.Logger) http.Handler {
	gate := auth.NewGate(cfg.FreeAPIKey, cfg.ProAPIKey)
	channelsHandler := api.NewChannelsHandler(store, prober)

	apiMux := http.NewServeMux()
	apiMux.HandleFunc("POST /v1/channels", channelsHandler.CreateChannel)
	apiMux.HandleFunc("GET /v1/channels", channelsHandler.ListChannels)
	apiMux.HandleFunc("GET /v1/channels/country/{country}", channelsHandler.ListByCountry)
	apiMux.HandleFunc("GET /v1/channels/language/{language}", channelsHandler.ListByLanguage)
	apiMux.HandleFunc("GET /v1/channels/category/{category}", channelsHandler.ListByCategory)

	if gate.Enabled() {
		logger.Info().Msg("API key authentication enabled")
	} else {
		logger.Info().Msg("API key authentication disabled")
	}

	mux := http.NewServeMux()
	mux.Handle("/v1/", gate.Middleware(apiMux))
	mux.HandleFunc("GET /health", healthCheckHandler(db))
	mux.Handle("GET /metrics", promhttp.Handler())

	// Set up middleware chain for logging and request tracking
	h := hlog.NewHandler(logger)(mux)
	h = hlog.MethodHandler("method")(h)
	h = hlog.URLHandler("url")(h)
	h = hlog.RemoteAddrHandler("remote_addr")(h)
	h = hlog.UserAgentHandler("user_agent")(h)
	h = hlog.RequestIDHandler("req_id", "Request-Id")(h)
	h = hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		idReq, _ := hlog.IDFromRequest(r)

		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Str("req_id", idReq.String()).
			Msg("HTTP Request")
	})(h)

	return h
}

// RunServer starts the HTTP server and blocks until ctx is cancelled or
// the listener fails. On cancellation in-flight requests get a 30 second
// drain window before the server is forced closed.
func RunServer(ctx context.Context, db *database.DB, store catalog.ChannelStore, prober probe.Prober, cfg *config.Config, logger zerolog.Logger) error {
	logger = logger.With().Str("service", "catalog-api").Logger()

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           Handler(db, store, prober, cfg, logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("address", httpServer.Addr).Msg("API Server starting")
		err := httpServer.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed to start: %w", err)

	case <-ctx.Done():
		logger.Info().Msg("Shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("HTTP server shutdown error")
			if err := httpServer.Close(); err != nil {
				logger.Error().Err(err).Msg("HTTP server force close error")
			}
		} else {
			logger.Info().Msg("HTTP server shutdown complete.")
		}
		if err := <-serverErr; err != nil {
			logger.Error().Err(err).Msg("ListenAndServe error during shutdown")
		}
	}

	logger.Info().Msg("Server exiting.")
	return nil
}

// healthCheckHandler responds to health check requests, pinging the
// database so a wedged store shows up as unhealthy.
func healthCheckHandler(db *database.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := hlog.FromRequest(r)
		log.Debug().Msg("Health check request received")

		if err := db.PingContext(r.Context()); err != nil {
			log.Error().Err(err).Msg("Health check database ping failed")
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("Error writing health check response")
		}
	}
}

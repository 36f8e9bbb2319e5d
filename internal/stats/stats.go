// Package stats exposes a small read-only HTTP endpoint with operational
// counters. The exact payload shape is a convenience for dashboards, not a
// stable API.
package stats

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/bastionbot/bastion/internal/storage"
)

// Counters are the process-lifetime counters incremented by the security
// handlers.
type Counters struct {
	AntiNukeTriggers   atomic.Int64
	ActionsIntercepted atomic.Int64
}

// PendingCounter reports outstanding owner confirmations.
type PendingCounter interface {
	Count() int
}

type response struct {
	GuildCount           int   `json:"guild_count"`
	ActiveQuarantines    int   `json:"active_quarantines"`
	AntiNukeTriggers     int64 `json:"antinuke_triggers"`
	ActionsIntercepted   int64 `json:"actions_intercepted"`
	PendingConfirmations int   `json:"pending_confirmations"`
	UptimeSeconds        int64 `json:"uptime_seconds"`
}

// Run serves GET /stats until ctx is done. Call from main.
func Run(ctx context.Context, addr string, db *storage.DB, counters *Counters, pending PendingCounter, log zerolog.Logger) {
	started := time.Now()

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Get("/stats", func(w http.ResponseWriter, req *http.Request) {
		guilds, err := db.CountGuilds()
		if err != nil {
			log.Error().Err(err).Msg("stats: failed to count guilds")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		quarantines, err := db.CountActiveQuarantines()
		if err != nil {
			log.Error().Err(err).Msg("stats: failed to count quarantines")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response{
			GuildCount:           guilds,
			ActiveQuarantines:    quarantines,
			AntiNukeTriggers:     counters.AntiNukeTriggers.Load(),
			ActionsIntercepted:   counters.ActionsIntercepted.Load(),
			PendingConfirmations: pending.Count(),
			UptimeSeconds:        int64(time.Since(started).Seconds()),
		})
	})

	srv := &http.Server{Addr: addr, Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("stats endpoint listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("stats endpoint failed")
	}
}

package api

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rpupo63/blog-backend/database"
	"github.com/rpupo63/blog-backend/errs"
)

type healthHandler struct {
	responder   Responder
	logger      zerolog.Logger
	database    database.Database
	startupTime time.Time
}

func newHealthHandler(db database.Database, startupTime time.Time) healthHandler {
	logger := log.With().Str("handlerName", "healthHandler").Logger()

	return healthHandler{
		responder:   NewResponder(logger),
		logger:      logger,
		database:    db,
		startupTime: startupTime,
	}
}

// healthz reports liveness, uptime and whether the database answers.
func (h healthHandler) healthz() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.database.Ping(r.Context()); err != nil {
			h.responder.WriteError(w, errs.NewDatabaseError("ping", "database", err))
			return
		}

		h.responder.WriteJSON(w, map[string]any{
			"status":         "ok",
			"uptime_seconds": int64(time.Since(h.startupTime).Seconds()),
		})
	}
}

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rpupo63/blog-backend/errs"
)

type adminHandler struct {
	responder Responder
	logger    zerolog.Logger
	blocklist *ipBlocklist
}

func newAdminHandler(blocklist *ipBlocklist) adminHandler {
	logger := log.With().Str("handlerName", "adminHandler").Logger()

	return adminHandler{
		responder: NewResponder(logger),
		logger:    logger,
		blocklist: blocklist,
	}
}

func (h adminHandler) listBlockedIPs() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.responder.WriteJSON(w, map[string][]string{"blocked_ips": h.blocklist.List()})
	}
}

func (h adminHandler) blockIP() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req blockedIPRequest
		if err := decodeJSON(w, r, &req); err != nil {
			h.responder.WriteError(w, err)
			return
		}
		if req.IP == "" {
			h.responder.WriteError(w, errs.NewMissingRequiredFieldError("ip"))
			return
		}
		if !h.blocklist.Block(req.IP) {
			h.responder.WriteError(w, errs.NewInvalidFieldError("ip", "not an IP address"))
			return
		}

		h.logger.Warn().Str("ip", normalizeIP(req.IP)).Msg("client blocked")
		h.responder.WriteJSONStatus(w, http.StatusCreated, map[string][]string{"blocked_ips": h.blocklist.List()})
	}
}

func (h adminHandler) unblockIP() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := chi.URLParam(r, "ip")
		if !h.blocklist.Unblock(ip) {
			h.responder.WriteError(w, errs.NewNotFoundError("ip is not blocked"))
			return
		}

		h.logger.Info().Str("ip", ip).Msg("client unblocked")
		h.responder.WriteNoContent(w)
	}
}

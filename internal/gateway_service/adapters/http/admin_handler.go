// Package http exposes the thin administrative surface: every endpoint is a
// direct pass-through to a core operation and carries no logic of its own.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agendazap/notification-gateway/internal/gateway_service/app"
	"github.com/agendazap/notification-gateway/internal/gateway_service/domain"
)

// connectionAdmin is what the handler needs from the connection manager.
type connectionAdmin interface {
	State() app.ConnState
	PairingPayload() string
	ReconnectAttempts() int
	Restart()
	Disconnect()
	ForceNewPairing()
}

// adHocSender is what the handler needs from the send pipeline.
type adHocSender interface {
	Send(ctx context.Context, rawPhone, body string) (string, error)
}

type AdminHandler struct {
	conn     connectionAdmin
	pipeline adHocSender
	logger   *slog.Logger
}

func NewAdminHandler(conn connectionAdmin, pipeline adHocSender, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{conn: conn, pipeline: pipeline, logger: logger.With("component", "admin_http")}
}

func (h *AdminHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.health)
	r.Get("/status", h.status)
	r.Get("/pairing", h.pairing)
	r.Post("/restart", h.restart)
	r.Post("/disconnect", h.disconnect)
	r.Post("/force-new-pairing", h.forceNewPairing)
	r.Post("/send", h.send)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func (h *AdminHandler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *AdminHandler) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"connection_state":   h.conn.State(),
		"awaiting_pairing":   h.conn.State() == app.StateAwaitingPairing,
		"reconnect_attempts": h.conn.ReconnectAttempts(),
	})
}

func (h *AdminHandler) pairing(w http.ResponseWriter, r *http.Request) {
	code := h.conn.PairingPayload()
	if code == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no pairing in progress"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"pairing_code": code})
}

func (h *AdminHandler) restart(w http.ResponseWriter, r *http.Request) {
	h.conn.Restart()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "restarting"})
}

func (h *AdminHandler) disconnect(w http.ResponseWriter, r *http.Request) {
	h.conn.Disconnect()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "disconnecting"})
}

func (h *AdminHandler) forceNewPairing(w http.ResponseWriter, r *http.Request) {
	h.conn.ForceNewPairing()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "re-pairing"})
}

type sendRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// send is the ad-hoc escape hatch; it bypasses domain dispatch but still goes
// through the pipeline, so rate limiting and pre-send persistence hold.
func (h *AdminHandler) send(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if req.Phone == "" || req.Message == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "phone and message are required"})
		return
	}

	messageID, err := h.pipeline.Send(r.Context(), req.Phone, req.Message)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "ad-hoc send failed", "error", err)
		status := http.StatusBadGateway
		if errors.Is(err, domain.ErrInvalidRecipient) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message_id": messageID})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

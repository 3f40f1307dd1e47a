// Package handlers agrupa handlers HTTP administrativos e de exemplo.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JeanGrijp/api-guardian/internal/core/ports"
)

// AdminHandler expõe as operações administrativas de bloqueio e suporte.
// Identifiers travel in the path in their canonical "scope:value" form.
type AdminHandler struct {
	admin  ports.Admin
	logger *zap.Logger
}

func NewAdminHandler(admin ports.Admin, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{admin: admin, logger: logger}
}

// Routes registra as rotas administrativas no roteador informado.
func (h *AdminHandler) Routes(r chi.Router) {
	r.Post("/blocks", h.blockIdentifier)
	r.Get("/blocks/{identifier}", h.isBlocked)
	r.Delete("/blocks/{identifier}", h.unblockIdentifier)
	r.Get("/stats/{identifier}", h.getStats)
	r.Delete("/limits/{identifier}", h.resetLimit)
}

type blockRequest struct {
	Identifier      string `json:"identifier"`
	Reason          string `json:"reason"`
	DurationSeconds int    `json:"duration_seconds"`
}

func (h *AdminHandler) blockIdentifier(w http.ResponseWriter, r *http.Request) {
	var req blockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Identifier == "" || req.DurationSeconds <= 0 {
		http.Error(w, "identifier and a positive duration_seconds are required", http.StatusBadRequest)
		return
	}

	duration := time.Duration(req.DurationSeconds) * time.Second
	if err := h.admin.BlockIdentifier(r.Context(), req.Identifier, req.Reason, duration); err != nil {
		h.logger.Error("manual block failed", zap.String("identifier", req.Identifier), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) isBlocked(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "identifier")

	status, err := h.admin.IsBlocked(r.Context(), identifier)
	if err != nil {
		h.logger.Error("block lookup failed", zap.String("identifier", identifier), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"identifier": identifier,
		"blocked":    status.Blocked,
		"reason":     status.Reason,
		"blocked_at": nullableTime(status.BlockedAt),
		"expires_at": nullableTime(status.ExpiresAt),
	})
}

func (h *AdminHandler) unblockIdentifier(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "identifier")

	if err := h.admin.UnblockIdentifier(r.Context(), identifier); err != nil {
		h.logger.Error("unblock failed", zap.String("identifier", identifier), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) getStats(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "identifier")

	windowSeconds := 60
	if raw := r.URL.Query().Get("window_seconds"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "window_seconds must be a positive integer", http.StatusBadRequest)
			return
		}
		windowSeconds = parsed
	}

	stats, err := h.admin.GetStats(r.Context(), identifier, time.Duration(windowSeconds)*time.Second)
	if err != nil {
		h.logger.Error("stats lookup failed", zap.String("identifier", identifier), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"identifier":            stats.Identifier,
		"window_seconds":        int(stats.Window.Seconds()),
		"current_window_count":  stats.CurrentWindowCount,
		"previous_window_count": stats.PreviousWindowCount,
		"trend":                 stats.Trend,
	})
}

func (h *AdminHandler) resetLimit(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "identifier")

	if err := h.admin.ResetLimit(r.Context(), identifier); err != nil {
		h.logger.Error("limit reset failed", zap.String("identifier", identifier), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

package httpx

import (
	"log/slog"
	"net/http"

	domainauth "github.com/target/opsconsole/internal/domain/auth"
	"github.com/target/opsconsole/internal/ports"
)

// SessionHandlers serves token validation for console clients.
type SessionHandlers struct {
	Validator ports.TokenValidator
	Logger    *slog.Logger
}

type validateRequest struct {
	Token string `json:"token"`
}

// Validate handles POST /api/session/validate.
func (h *SessionHandlers) Validate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	identity, err := h.Validator.Validate(r.Context(), req.Token)
	if err != nil {
		if _, ok := domainauth.AsRejection(err); !ok && h.Logger != nil {
			h.Logger.ErrorContext(r.Context(), "validate session", "error", err)
		}
		writeRejection(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, identity)
}

// Me handles GET /api/me.
func (h *SessionHandlers) Me(w http.ResponseWriter, _ *http.Request, identity domainauth.Identity) {
	WriteJSON(w, http.StatusOK, identity)
}

// Preflight answers OPTIONS after the CORS middleware has set its headers.
func Preflight(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNoContent)
}

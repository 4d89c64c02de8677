package httpx

import (
	"errors"
	"net/http"
	"strings"

	domainauth "github.com/target/opsconsole/internal/domain/auth"
	apperrors "github.com/target/opsconsole/internal/errors"
	"github.com/target/opsconsole/internal/ports"
)

// DirectoryHandlers serves support lookups against the user directory.
type DirectoryHandlers struct {
	Directory ports.DirectoryResolver
}

type directoryUser struct {
	ID          string            `json:"id"`
	Email       string            `json:"email"`
	DisplayName string            `json:"displayName"`
	Roles       []domainauth.Role `json:"roles"`
}

// Lookup handles GET /api/directory/lookup?email=, used to diagnose
// provider identities that have no local account.
func (h *DirectoryHandlers) Lookup(w http.ResponseWriter, r *http.Request, _ domainauth.Identity) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		err := apperrors.Validation("email is required")
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: string(err.Code), Err: err})
		return
	}

	rec, err := h.Directory.ResolveUser(r.Context(), email)
	switch {
	case errors.Is(err, domainauth.ErrUserNotFound):
		WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: string(apperrors.ErrCodeNotFound), Err: err})
		return
	case apperrors.IsValidation(err):
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: string(apperrors.ErrCodeValidation), Err: err})
		return
	case err != nil:
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: string(domainauth.FailureDirectoryUnavailable),
			Err:     errors.New(directoryFailureMessage(err)),
		})
		return
	}

	roles := rec.Roles
	if roles == nil {
		roles = []domainauth.Role{}
	}
	WriteJSON(w, http.StatusOK, directoryUser{
		ID:          rec.ID,
		Email:       rec.Email,
		DisplayName: rec.DisplayName(),
		Roles:       roles,
	})
}

// directoryFailureMessage describes a lookup failure without leaking driver detail.
func directoryFailureMessage(err error) string {
	switch {
	case apperrors.IsTimeout(err):
		return "user directory timed out"
	case apperrors.IsUnavailable(err):
		return "user directory unreachable"
	default:
		return "user directory unavailable"
	}
}

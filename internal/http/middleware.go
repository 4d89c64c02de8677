package httpx

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	domainauth "github.com/target/opsconsole/internal/domain/auth"
	"github.com/target/opsconsole/internal/ports"
)

const maxRequestIDLen = 64

// RequestID assigns every request a correlation id, reusing a sane inbound X-Request-ID.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(HeaderRequestID))
		if id == "" || len(id) > maxRequestIDLen || strings.ContainsAny(id, "\r\n") {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(WithRequestID(r.Context(), id)))
	})
}

// Logging returns a middleware that logs HTTP requests and responses.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &respWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			}
			if id, ok := RequestIDFromContext(r.Context()); ok {
				attrs = append(attrs, slog.String("request_id", id))
			}
			logger.LogAttrs(r.Context(), slog.LevelInfo, "http", attrs...)
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Recover returns a middleware that turns panics into a JSON 500.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.ErrorContext(r.Context(), "panic",
						slog.Any("error", err),
						slog.String("path", r.URL.Path),
						slog.String("method", r.Method),
						slog.String("stack", string(debug.Stack())))
					WriteError(w, ErrorParams{
						Code:    http.StatusInternalServerError,
						ErrCode: "internal_error",
						Err:     errors.New("internal server error"),
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// IdentityHandlerFunc serves a protected operation for an explicit caller identity.
type IdentityHandlerFunc func(w http.ResponseWriter, r *http.Request, identity domainauth.Identity)

// RequireIdentity validates the request's bearer token and passes the resulting
// identity to next. With roles, the caller must hold at least one of them.
func RequireIdentity(v ports.TokenValidator, roles ...domainauth.Role) func(IdentityHandlerFunc) http.Handler {
	return func(next IdentityHandlerFunc) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				WriteError(w, ErrorParams{
					Code:    http.StatusUnauthorized,
					ErrCode: "authentication_required",
					Err:     errors.New("bearer token required"),
				})
				return
			}

			identity, err := v.Validate(r.Context(), token)
			if err != nil {
				writeRejection(w, err)
				return
			}

			if !domainauth.Authorize(&identity, roles...) {
				WriteError(w, ErrorParams{
					Code:    http.StatusForbidden,
					ErrCode: "insufficient_permissions",
					Err:     errors.New("insufficient permissions"),
				})
				return
			}
			next(w, r, identity)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// rejectionMessages are the client-facing texts per failure kind; causes stay in logs.
var rejectionMessages = map[domainauth.FailureKind]string{
	domainauth.FailureNoToken:              "token is required",
	domainauth.FailureInvalidToken:         "token rejected by identity provider",
	domainauth.FailureMalformedResponse:    "identity provider returned an unusable response",
	domainauth.FailureIncompleteClaims:     "identity provider did not supply an email claim",
	domainauth.FailureNoLocalAccount:       "no local account for this identity",
	domainauth.FailureProviderUnreachable:  "identity provider unavailable",
	domainauth.FailureDirectoryUnavailable: "user directory unavailable",
}

// statusForKind maps a failure kind to its HTTP status.
func statusForKind(kind domainauth.FailureKind) int {
	switch kind {
	case domainauth.FailureNoToken:
		return http.StatusBadRequest
	case domainauth.FailureInvalidToken, domainauth.FailureMalformedResponse, domainauth.FailureIncompleteClaims:
		return http.StatusUnauthorized
	case domainauth.FailureNoLocalAccount:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeRejection(w http.ResponseWriter, err error) {
	rej, ok := domainauth.AsRejection(err)
	if !ok {
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "internal_error", Err: err})
		return
	}

	code := statusForKind(rej.Kind)
	msg, known := rejectionMessages[rej.Kind]
	if !known {
		WriteError(w, ErrorParams{Code: code, ErrCode: "internal_error", Err: rej})
		return
	}

	body := ErrorBody{Error: string(rej.Kind), Message: msg}
	if rej.Kind == domainauth.FailureNoLocalAccount {
		body.KeycloakEmail = rej.Email
	}
	WriteJSON(w, code, body)
}

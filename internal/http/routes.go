package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	domainauth "github.com/target/opsconsole/internal/domain/auth"
	"github.com/target/opsconsole/internal/ports"
)

// RouterServices holds what the HTTP router needs.
type RouterServices struct {
	Validator ports.TokenValidator
	Directory ports.DirectoryResolver
	// Health is pinged by /healthz when set.
	Health         Pinger
	AllowedOrigins []string
	Logger         *slog.Logger
}

// CORSOptions returns the policy for browser clients of the validate endpoint.
func CORSOptions(origins []string) cors.Options {
	return cors.Options{
		AllowedOrigins:     origins,
		AllowedMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:     []string{"Content-Type", "Authorization", HeaderRequestID},
		ExposedHeaders:     []string{HeaderRequestID},
		AllowCredentials:   false,
		MaxAge:             300,
		OptionsPassthrough: true,
	}
}

// NewRouter builds the API router.
func NewRouter(s RouterServices) http.Handler {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(middleware.RealIP)
	r.Use(Logging(logger))
	r.Use(Recover(logger))
	r.Use(cors.Handler(CORSOptions(s.AllowedOrigins)))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "not_found", Err: errors.New("route not found")})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		WriteError(w, ErrorParams{Code: http.StatusMethodNotAllowed, ErrCode: "method_not_allowed", Err: errors.New("method not allowed")})
	})

	health := healthHandler(s.Health)
	r.Get("/healthz", health)
	r.Head("/healthz", health)

	sessions := &SessionHandlers{Validator: s.Validator, Logger: logger}
	requireIdentity := RequireIdentity(s.Validator)
	requireAdmin := RequireIdentity(s.Validator, domainauth.RoleAdmin)

	r.Route("/api", func(r chi.Router) {
		r.Options("/*", Preflight)
		r.Post("/session/validate", sessions.Validate)
		r.Method(http.MethodGet, "/me", requireIdentity(sessions.Me))
		if s.Directory != nil {
			directory := &DirectoryHandlers{Directory: s.Directory}
			r.Method(http.MethodGet, "/directory/lookup", requireAdmin(directory.Lookup))
		}
	})

	return r
}

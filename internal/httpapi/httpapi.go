package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"pideci/backend/internal/domain"
	"pideci/backend/internal/observability"
	"pideci/backend/internal/service"
	"pideci/backend/internal/store"
)

const maxBodyBytes = 1 << 20

// Reports serves the read-only aggregate views.
type Reports interface {
	SalesStatistics(ctx context.Context) (domain.SalesStatistics, error)
	Dashboard(ctx context.Context) (domain.DashboardSummary, error)
}

type Options struct {
	AllowedOrigin string
	CookieSecure  bool
	Logger        *slog.Logger
	Metrics       *observability.Metrics
	// Health reports whether backing stores are reachable; nil means always healthy.
	Health func(ctx context.Context) error
}

type API struct {
	service       *service.Service
	reports       Reports
	auth          *AuthManager
	allowedOrigin string
	cookieSecure  bool
	csrfSecret    []byte
	logger        *slog.Logger
	metrics       *observability.Metrics
	health        func(ctx context.Context) error
	secure        *secure.Secure
}

func New(svc *service.Service, reports Reports, auth *AuthManager, opts Options) *API {
	csrfSecret := make([]byte, 32)
	if _, err := rand.Read(csrfSecret); err != nil {
		// crypto/rand does not fail on supported platforms.
		csrfSecret = []byte("csrf-fallback-secret-change-me!!")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	origin := strings.TrimSpace(opts.AllowedOrigin)
	if origin == "" {
		origin = "*"
	}
	return &API{
		service:       svc,
		reports:       reports,
		auth:          auth,
		allowedOrigin: origin,
		cookieSecure:  opts.CookieSecure,
		csrfSecret:    csrfSecret,
		logger:        logger,
		metrics:       opts.Metrics,
		health:        opts.Health,
		secure: secure.New(secure.Options{
			FrameDeny:             true,
			ContentTypeNosniff:    true,
			BrowserXssFilter:      true,
			ReferrerPolicy:        "strict-origin-when-cross-origin",
			ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		}),
	}
}

func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(a.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(a.metrics.Middleware)
	r.Use(a.withMiddleware)
	r.Use(a.checkCSRF)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, errors.New("route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
	})

	r.Get("/healthz", a.handleHealth)
	r.Method(http.MethodGet, "/metrics", a.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.With(httprate.Limit(5, time.Minute,
			httprate.WithKeyFuncs(func(r *http.Request) (string, error) { return clientKey(r), nil }),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
			}),
		)).Post("/auth/login", a.handleLogin)
		r.Post("/auth/logout", a.handleLogout)
		r.Get("/auth/csrf-token", a.handleCSRFToken)

		r.Group(func(r chi.Router) {
			r.Use(a.requireAuth)
			r.Get("/auth/me", a.handleMe)

			a.mountSessions(r)
			a.mountCatalog(r)
			a.mountStock(r)
			a.mountOrders(r)
			a.mountSales(r)
			a.mountExpenses(r)
			a.mountReports(r)
			a.mountUsers(r)
		})
	})

	return r
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if a.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.health(ctx); err != nil {
			a.logger.WarnContext(r.Context(), "health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"ok": false,
				"at": time.Now().UTC().Format(time.RFC3339),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := a.secure.Process(w, r); err != nil {
			a.logger.WarnContext(r.Context(), "secure headers blocked request", "error", err)
			writeError(w, http.StatusBadRequest, errors.New("request blocked"))
			return
		}
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-CSRF-Token")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		if a.allowedOrigin != "*" {
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		w.Header().Set("Vary", "Origin")

		if unsafeMethods[r.Method] && r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		startedAt := time.Now()
		next.ServeHTTP(ww, r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		a.logger.LogAttrs(r.Context(), slog.LevelInfo, "http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			slog.Duration("duration", time.Since(startedAt)),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// statusFor maps domain and persistence errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errUnauthorized), errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrPastSessionReadOnly), errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrNoActiveSession),
		errors.Is(err, store.ErrConflict),
		errors.Is(err, store.ErrInvalidState):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err with its mapped status. Server errors are logged with the
// request id; the client only sees a generic message.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		a.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
	}
	writeError(w, status, err)
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("%w: request body too large", service.ErrValidation)
		}
		return fmt.Errorf("%w: invalid JSON body: %v", service.ErrValidation, err)
	}
	return nil
}

func writeError(w http.ResponseWriter, status int, err error) {
	// 4xx messages are user-facing; 5xx ones may carry SQL or file paths.
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeDeleted(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

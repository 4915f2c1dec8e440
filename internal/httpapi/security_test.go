package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pideci/backend/internal/domain"
	"pideci/backend/internal/seed"
)

func TestMiddlewareSetsSecurityHeaders(t *testing.T) {
	ts := newTestAPI(t)
	rec := ts.do(t, http.MethodGet, "/healthz", "", nil)

	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	require.NotEmpty(t, rec.Header().Get("Referrer-Policy"))
	require.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORSAllowsCredentialsForFixedOrigin(t *testing.T) {
	ts := newTestAPI(t)
	api := New(ts.svc, nil, NewAuthManager("x", time.Hour), Options{AllowedOrigin: "https://kasa.example", Logger: quiet})

	req := httptest.NewRequest(http.MethodOptions, "/api/sales", nil)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "https://kasa.example", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestLoginRateLimitReturns429(t *testing.T) {
	ts := newTestAPI(t)
	body, _ := json.Marshal(domain.LoginRequest{Username: seed.AdminUsername, Password: "wrong-pass"})

	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "127.0.0.1:5000"
		rec := httptest.NewRecorder()
		ts.handler.ServeHTTP(rec, req)

		if i < 5 {
			require.Equal(t, http.StatusUnauthorized, rec.Code, "attempt %d before the limit", i+1)
		} else {
			require.Equal(t, http.StatusTooManyRequests, rec.Code)
		}
	}

	// Another client is not affected.
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "127.0.0.2:5000"
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJSONBodyTooLargeRejected(t *testing.T) {
	ts := newTestAPI(t)
	veryLong := strings.Repeat("a", (1<<20)+1024)
	body := fmt.Sprintf(`{"username":"%s","password":"x"}`, veryLong)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, errorMessage(t, rec), "too large")
}

func TestBodyCapIgnoresContentType(t *testing.T) {
	ts := newTestAPI(t)
	body := fmt.Sprintf(`{"username":"%s","password":"x"}`, strings.Repeat("a", (1<<20)+1024))

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, errorMessage(t, rec), "too large")
}

func TestMutationsRequireCSRFToken(t *testing.T) {
	ts := newTestAPI(t)
	token := ts.login(t, seed.AdminUsername, adminPassword)

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/start-day", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/sessions/start-day", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", "forged")
	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	csrf := ts.do(t, http.MethodGet, "/api/auth/csrf-token", "", nil)
	require.Equal(t, http.StatusOK, csrf.Code)
	issued := decode[map[string]string](t, csrf)["csrfToken"]
	require.True(t, ts.api.validateCSRFToken(issued))

	req = httptest.NewRequest(http.MethodPost, "/api/sessions/start-day", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", issued)
	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestCSRFTokenAcceptsPreviousHour(t *testing.T) {
	ts := newTestAPI(t)
	previous := time.Now().UTC().Truncate(time.Hour).Add(-time.Hour).Unix()
	stale := time.Now().UTC().Truncate(time.Hour).Add(-2 * time.Hour).Unix()

	require.True(t, ts.api.validateCSRFToken(ts.api.csrfTokenForHour(previous)))
	require.False(t, ts.api.validateCSRFToken(ts.api.csrfTokenForHour(stale)))
	require.False(t, ts.api.validateCSRFToken(""))
}

func TestServerErrorsHideDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, http.StatusInternalServerError, errors.New("pq: relation \"sales\" does not exist"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "internal server error", errorMessage(t, rec))
}

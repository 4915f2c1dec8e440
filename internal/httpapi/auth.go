package httpapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"pideci/backend/internal/domain"
	"pideci/backend/internal/rbac"
	"pideci/backend/internal/service"
	"pideci/backend/internal/store"
)

const (
	sessionCookie = "pos_session"
	tokenIssuer   = "pideci"
)

var errUnauthorized = errors.New("authentication required")

// AuthManager signs and verifies access tokens. Credentials and
// permissions live in the service; a token only names the user.
type AuthManager struct {
	secret   []byte
	tokenTTL time.Duration
	now      func() time.Time
}

type accessClaims struct {
	jwtlib.RegisteredClaims
	Username string `json:"username"`
	Role     string `json:"role"`
}

func NewAuthManager(secret string, tokenTTL time.Duration) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	return &AuthManager{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		now:      time.Now,
	}
}

func (a *AuthManager) Issue(profile domain.UserProfile) (string, time.Time, error) {
	issuedAt := a.now().UTC()
	expiresAt := issuedAt.Add(a.tokenTTL)
	claims := accessClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   profile.ID,
			IssuedAt:  jwtlib.NewNumericDate(issuedAt),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    tokenIssuer,
		},
		Username: profile.Username,
		Role:     profile.Role,
	}
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// ParseToken returns the user id the token was issued to.
func (a *AuthManager) ParseToken(tokenStr string) (string, error) {
	parser := jwtlib.NewParser(
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithIssuer(tokenIssuer),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithTimeFunc(a.now),
	)
	var claims accessClaims
	_, err := parser.ParseWithClaims(tokenStr, &claims, func(*jwtlib.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: invalid or expired token", errUnauthorized)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: token has no subject", errUnauthorized)
	}
	return claims.Subject, nil
}

func bearerOrCookie(r *http.Request) string {
	authorization := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
		return strings.TrimSpace(authorization[len("Bearer "):])
	}
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		return cookie.Value
	}
	return ""
}

// requireAuth resolves the caller and reloads their permissions, so a
// deleted user or an edited role takes effect on the next request.
func (a *API) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerOrCookie(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, errUnauthorized)
			return
		}
		userID, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		profile, err := a.service.Profile(r.Context(), userID)
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, fmt.Errorf("%w: account no longer exists", errUnauthorized))
			return
		}
		if err != nil {
			a.fail(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(service.WithActor(r.Context(), profile.Actor())))
	})
}

// requirePermission lets the request through when the caller holds any of
// perms.
func requirePermission(perms ...rbac.Permission) func(http.Handler) http.Handler {
	required := rbac.NewSet(perms...)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := service.ActorFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, errUnauthorized)
				return
			}
			if !rbac.HasAny(required, actor.Permissions) {
				writeError(w, http.StatusForbidden, fmt.Errorf("%w: missing permission", service.ErrForbidden))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: username and password are required", service.ErrValidation))
		return
	}

	profile, err := a.service.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	token, expiresAt, err := a.auth.Issue(profile)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   a.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, domain.LoginResponse{
		AccessToken: token,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
		User:        profile,
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	actor, _ := service.ActorFromContext(r.Context())
	profile, err := a.service.Profile(r.Context(), actor.UserID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (a *API) handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"csrfToken": a.generateCSRFToken(),
	})
}

// csrfTokenForHour signs the unix hour with the per-process secret.
func (a *API) csrfTokenForHour(hour int64) string {
	mac := hmac.New(sha256.New, a.csrfSecret)
	mac.Write([]byte(strconv.FormatInt(hour, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

func currentHour() int64 {
	return time.Now().UTC().Truncate(time.Hour).Unix()
}

func (a *API) generateCSRFToken() string {
	return a.csrfTokenForHour(currentHour())
}

// validateCSRFToken accepts tokens from this hour and the one before it.
func (a *API) validateCSRFToken(token string) bool {
	if token == "" {
		return false
	}
	hour := currentHour()
	for _, h := range []int64{hour, hour - int64(time.Hour/time.Second)} {
		if hmac.Equal([]byte(token), []byte(a.csrfTokenForHour(h))) {
			return true
		}
	}
	return false
}

var unsafeMethods = map[string]bool{
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// Login runs before a client holds a token.
var csrfExemptPaths = []string{
	"/api/auth/login",
}

func (a *API) checkCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !unsafeMethods[r.Method] || slices.Contains(csrfExemptPaths, r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		if !a.validateCSRFToken(strings.TrimSpace(r.Header.Get("X-CSRF-Token"))) {
			writeError(w, http.StatusForbidden, errors.New("missing or invalid CSRF token"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientKey is the rate limit key: the remote IP without its port.
func clientKey(r *http.Request) string {
	remote := strings.TrimSpace(r.RemoteAddr)
	if remote == "" {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(remote); err == nil {
		return host
	}
	return remote
}

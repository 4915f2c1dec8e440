package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pideci/backend/internal/domain"
	"pideci/backend/internal/rbac"
	"pideci/backend/internal/seed"
)

func TestAuthManagerTokenRoundTrip(t *testing.T) {
	auth := NewAuthManager("test-secret-key-that-is-long-enough", time.Hour)
	token, expiresAt, err := auth.Issue(domain.UserProfile{ID: "user-1", Username: "kasa", Role: "cashier"})
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	subject, err := auth.ParseToken(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", subject)
}

func TestAuthManagerRejectsExpiredAndForeignTokens(t *testing.T) {
	auth := NewAuthManager("test-secret-key-that-is-long-enough", time.Minute)
	auth.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _, err := auth.Issue(domain.UserProfile{ID: "user-1"})
	require.NoError(t, err)

	auth.now = time.Now
	_, err = auth.ParseToken(expired)
	require.ErrorIs(t, err, errUnauthorized)

	other := NewAuthManager("another-secret-key-also-long-enough", time.Hour)
	foreign, _, err := other.Issue(domain.UserProfile{ID: "user-1"})
	require.NoError(t, err)
	_, err = auth.ParseToken(foreign)
	require.ErrorIs(t, err, errUnauthorized)

	_, err = auth.ParseToken("not-a-jwt")
	require.ErrorIs(t, err, errUnauthorized)
}

func TestLoginSetsSessionCookie(t *testing.T) {
	ts := newTestAPI(t)
	rec := ts.do(t, http.MethodPost, "/api/auth/login", "", domain.LoginRequest{Username: seed.AdminUsername, Password: adminPassword})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[domain.LoginResponse](t, rec)
	require.NotEmpty(t, resp.AccessToken)
	require.Equal(t, rbac.AdminRole, resp.User.Role)
	require.True(t, resp.User.Permissions.Has(rbac.Users))

	var session *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookie {
			session = c
		}
	}
	require.NotNil(t, session)
	require.True(t, session.HttpOnly)
	require.Equal(t, resp.AccessToken, session.Value)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(session)
	me := httptest.NewRecorder()
	ts.handler.ServeHTTP(me, req)
	require.Equal(t, http.StatusOK, me.Code, me.Body.String())
	require.Equal(t, seed.AdminUsername, decode[domain.UserProfile](t, me).Username)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	ts := newTestAPI(t)

	rec := ts.do(t, http.MethodPost, "/api/auth/login", "", domain.LoginRequest{Username: seed.AdminUsername, Password: "wrong-pass"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/auth/login", "", domain.LoginRequest{Username: "nobody", Password: "whatever"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/auth/login", "", domain.LoginRequest{Username: seed.AdminUsername})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogoutExpiresCookie(t *testing.T) {
	ts := newTestAPI(t)
	rec := ts.do(t, http.MethodPost, "/api/auth/logout", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, sessionCookie, cookies[0].Name)
	require.Negative(t, cookies[0].MaxAge)
}

func TestRoutesRequireAuthentication(t *testing.T) {
	ts := newTestAPI(t)

	rec := ts.do(t, http.MethodGet, "/api/products", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/products", "garbage", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPermissionsGateRoutes(t *testing.T) {
	ts := newTestAPI(t)
	admin := ts.login(t, seed.AdminUsername, adminPassword)

	rec := ts.do(t, http.MethodGet, "/api/roles", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var kitchenRole domain.Role
	for _, role := range decode[[]domain.Role](t, rec) {
		if role.Name == "kitchen" {
			kitchenRole = role
		}
	}
	require.NotEmpty(t, kitchenRole.ID)

	rec = ts.do(t, http.MethodPost, "/api/users", admin, domain.UserCreateRequest{Username: "mutfak", Password: "mutfak-pass", RoleID: kitchenRole.ID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	cook := decode[domain.UserProfile](t, rec)

	kitchen := ts.login(t, "mutfak", "mutfak-pass")
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/kitchen/active-orders", kitchen, nil).Code)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/products", kitchen, nil).Code)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/sessions/active", kitchen, nil).Code)

	rec = ts.do(t, http.MethodPost, "/api/sales", kitchen, domain.SaleCreateRequest{})
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, http.StatusForbidden, ts.do(t, http.MethodGet, "/api/users", kitchen, nil).Code)
	require.Equal(t, http.StatusForbidden, ts.do(t, http.MethodPost, "/api/sessions/start-day", kitchen, nil).Code)
	require.Equal(t, http.StatusForbidden, ts.do(t, http.MethodDelete, "/api/products/x", kitchen, nil).Code)

	rec = ts.do(t, http.MethodDelete, "/api/users/"+cook.ID, admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/api/kitchen/active-orders", kitchen, nil).Code)
}

func TestAdminCannotDeleteSelfOrAdminRole(t *testing.T) {
	ts := newTestAPI(t)
	token := ts.login(t, seed.AdminUsername, adminPassword)

	rec := ts.do(t, http.MethodGet, "/api/auth/me", token, nil)
	me := decode[domain.UserProfile](t, rec)

	rec = ts.do(t, http.MethodDelete, "/api/users/"+me.ID, token, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/api/roles/"+me.RoleID, token, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/permissions", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode[[]rbac.Descriptor](t, rec), len(rbac.All()))
}

func TestClientKeyStripsPort(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.7:51234"
	require.Equal(t, "10.0.0.7", clientKey(req))

	req.RemoteAddr = "[2001:db8::1]:443"
	require.Equal(t, "2001:db8::1", clientKey(req))

	req.RemoteAddr = ""
	require.Equal(t, "unknown", clientKey(req))
}

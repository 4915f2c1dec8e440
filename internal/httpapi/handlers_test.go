package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pideci/backend/internal/cache"
	"pideci/backend/internal/domain"
	"pideci/backend/internal/reporting"
	"pideci/backend/internal/seed"
	"pideci/backend/internal/service"
	"pideci/backend/internal/store/memory"
)

const adminPassword = "admin-test-pass"

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type testServer struct {
	api     *API
	handler http.Handler
	svc     *service.Service
	now     time.Time
}

// newTestAPI wires the real service, reporting engine and seeded memory store
// so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *testServer {
	t.Helper()

	ts := &testServer{now: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return ts.now }

	repo := memory.New()
	engine := reporting.NewEngine(repo, cache.Noop{}, time.Minute, time.UTC).WithClock(clock).WithLogger(quiet)
	ts.svc = service.New(repo,
		service.WithClock(clock),
		service.WithLocation(time.UTC),
		service.WithLogger(quiet),
		service.WithStatsInvalidator(engine),
	)
	require.NoError(t, seed.Run(context.Background(), ts.svc, seed.Options{AdminPassword: adminPassword, DemoMenu: true}, quiet))

	auth := NewAuthManager("test-secret-key-that-is-long-enough", time.Hour)
	ts.api = New(ts.svc, engine, auth, Options{AllowedOrigin: "*", Logger: quiet})
	ts.handler = ts.api.Handler()
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if method != http.MethodGet {
		req.Header.Set("X-CSRF-Token", ts.api.generateCSRFToken())
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) login(t *testing.T, username, password string) string {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/auth/login", "", domain.LoginRequest{Username: username, Password: password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[domain.LoginResponse](t, rec).AccessToken
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, rec)["error"]
}

func productByName(t *testing.T, ts *testServer, token, name string) domain.Product {
	t.Helper()
	rec := ts.do(t, http.MethodGet, "/api/products", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	for _, p := range decode[[]domain.Product](t, rec) {
		if p.Name == name {
			return p
		}
	}
	t.Fatalf("product %q not seeded", name)
	return domain.Product{}
}

func TestHandleHealth(t *testing.T) {
	ts := newTestAPI(t)
	rec := ts.do(t, http.MethodGet, "/healthz", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, decode[map[string]any](t, rec)["ok"])
}

func TestHandleHealthReportsBackendFailure(t *testing.T) {
	ts := newTestAPI(t)
	api := New(ts.svc, nil, NewAuthManager("x", time.Hour), Options{
		Logger: quiet,
		Health: func(context.Context) error { return io.ErrUnexpectedEOF },
	})
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSalesStatisticsReflectNewSale(t *testing.T) {
	ts := newTestAPI(t)
	token := ts.login(t, seed.AdminUsername, adminPassword)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/sessions/start-day", token, nil).Code)

	rec := ts.do(t, http.MethodGet, "/api/reports/sales-statistics", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	empty := decode[domain.SalesStatistics](t, rec)
	require.Nil(t, empty.BestSelling)
	require.Empty(t, empty.AllProducts)

	pide := productByName(t, ts, token, "Kuşbaşılı Pide")
	rec = ts.do(t, http.MethodPost, "/api/sales", token, domain.SaleCreateRequest{
		Items: []domain.SaleLineRequest{{ProductID: pide.ID, Quantity: 2}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/api/reports/sales-statistics", token, nil)
	stats := decode[domain.SalesStatistics](t, rec)
	require.NotNil(t, stats.BestSelling)
	require.Equal(t, pide.ID, stats.BestSelling.ProductID)
	require.Equal(t, "360.00", stats.BestSelling.Revenue.String())
	require.Equal(t, pide.ID, stats.TodaysMostPopular.ProductID)

	rec = ts.do(t, http.MethodGet, "/api/reports/dashboard", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode[domain.DashboardSummary](t, rec)
	require.Equal(t, 1, summary.SaleCount)
	require.Equal(t, "360.00", summary.SalesTotal.String())
}

// A cashier sells a stocked drink straight from the POS screen.
func TestDirectSaleDeductsLinkedStock(t *testing.T) {
	ts := newTestAPI(t)
	token := ts.login(t, seed.AdminUsername, adminPassword)

	rec := ts.do(t, http.MethodPost, "/api/sessions/start-day", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	session := decode[domain.BusinessSession](t, rec)
	require.Equal(t, "2026-03-14", session.Date)
	require.True(t, session.IsActive)

	rec = ts.do(t, http.MethodPost, "/api/stock", token, map[string]any{"name": "Ayran", "quantity": 10})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	stock := decode[domain.Stock](t, rec)

	ayran := productByName(t, ts, token, "Ayran")
	rec = ts.do(t, http.MethodPut, "/api/products/"+ayran.ID, token, map[string]any{"stockItemId": stock.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/api/sales", token, domain.SaleCreateRequest{
		Items: []domain.SaleLineRequest{{ProductID: ayran.ID, Quantity: 3}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	receipt := decode[domain.SaleReceipt](t, rec)
	require.Equal(t, "30.00", receipt.Sale.Total.String())
	require.Equal(t, session.ID, receipt.Sale.SessionID)
	require.Empty(t, receipt.StockWarnings)

	rec = ts.do(t, http.MethodGet, "/api/stock/"+stock.ID, token, nil)
	require.Equal(t, 7, decode[domain.Stock](t, rec).Quantity)

	rec = ts.do(t, http.MethodGet, "/api/sales", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode[[]domain.Sale](t, rec), 1)

	rec = ts.do(t, http.MethodGet, "/api/sales/"+receipt.Sale.ID+"/items", token, nil)
	items := decode[[]domain.SaleItem](t, rec)
	require.Len(t, items, 1)
	require.Equal(t, "Ayran", items[0].ProductName)
}

// A table order is taken, marked ready by the kitchen and closed into a sale.
func TestTableOrderClosesIntoSale(t *testing.T) {
	ts := newTestAPI(t)
	token := ts.login(t, seed.AdminUsername, adminPassword)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/sessions/start-day", token, nil).Code)

	rec := ts.do(t, http.MethodPost, "/api/tables", token, domain.TableCreateRequest{Name: "Masa 1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	table := decode[domain.RestaurantTable](t, rec)

	rec = ts.do(t, http.MethodGet, "/api/tables/"+table.ID+"/active-order", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "null", string(bytes.TrimSpace(rec.Body.Bytes())))

	rec = ts.do(t, http.MethodPost, "/api/orders", token, domain.OrderCreateRequest{TableID: table.ID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	order := decode[domain.Order](t, rec)

	rec = ts.do(t, http.MethodPost, "/api/orders", token, domain.OrderCreateRequest{TableID: table.ID})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	pide := productByName(t, ts, token, "Kıymalı Pide")
	soda := productByName(t, ts, token, "Soda")
	for _, line := range []domain.OrderItemCreateRequest{
		{ProductID: pide.ID, Quantity: 2},
		{ProductID: soda.ID, Quantity: 1},
	} {
		rec = ts.do(t, http.MethodPost, "/api/orders/"+order.ID+"/items", token, line)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec = ts.do(t, http.MethodGet, "/api/orders/"+order.ID, token, nil)
	require.Equal(t, "340.00", decode[domain.Order](t, rec).Total.String())

	rec = ts.do(t, http.MethodGet, "/api/kitchen/active-orders", token, nil)
	kitchen := decode[[]domain.KitchenOrder](t, rec)
	require.Len(t, kitchen, 1)
	require.Equal(t, "Masa 1", kitchen[0].Table.Name)
	require.Len(t, kitchen[0].Items, 2)

	rec = ts.do(t, http.MethodPost, "/api/orders/"+order.ID+"/close-bill", token, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code, "active orders cannot be billed")

	rec = ts.do(t, http.MethodPut, "/api/orders/"+order.ID, token, map[string]any{"status": "completed"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, domain.OrderCompleted, decode[domain.Order](t, rec).Status)

	rec = ts.do(t, http.MethodPost, "/api/orders/"+order.ID+"/close-bill", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[domain.CloseBillResult](t, rec)
	require.True(t, result.Success)
	require.Equal(t, "340.00", result.Sale.Total.String())
	require.Len(t, result.Items, 2)

	rec = ts.do(t, http.MethodGet, "/api/tables/"+table.ID+"/active-order", token, nil)
	require.Equal(t, "null", string(bytes.TrimSpace(rec.Body.Bytes())))

	rec = ts.do(t, http.MethodGet, "/api/orders/"+order.ID, token, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/sales", token, nil)
	require.Len(t, decode[[]domain.Sale](t, rec), 1)
}

func TestLedgerNeedsActiveSession(t *testing.T) {
	ts := newTestAPI(t)
	token := ts.login(t, seed.AdminUsername, adminPassword)

	rec := ts.do(t, http.MethodGet, "/api/sessions/active", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "null", string(bytes.TrimSpace(rec.Body.Bytes())))

	ayran := productByName(t, ts, token, "Ayran")
	sale := domain.SaleCreateRequest{Items: []domain.SaleLineRequest{{ProductID: ayran.ID, Quantity: 1}}}

	rec = ts.do(t, http.MethodPost, "/api/sales", token, sale)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, errorMessage(t, rec), "no active session")

	rec = ts.do(t, http.MethodGet, "/api/expenses", token, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/sessions/start-day", token, nil).Code)
	rec = ts.do(t, http.MethodPost, "/api/expenses", token, map[string]any{"category": "Un", "amount": "75.50"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/api/sessions/end-day", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.False(t, decode[domain.BusinessSession](t, rec).IsActive)

	rec = ts.do(t, http.MethodPost, "/api/sales", token, sale)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/sessions/end-day", token, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestYesterdaysSessionIsReadOnly(t *testing.T) {
	ts := newTestAPI(t)
	token := ts.login(t, seed.AdminUsername, adminPassword)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/sessions/start-day", token, nil).Code)

	ts.now = ts.now.Add(24 * time.Hour)
	rec := ts.do(t, http.MethodPost, "/api/expenses", token, map[string]any{"category": "Un", "amount": "10"})
	require.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
}

func TestRequestValidation(t *testing.T) {
	ts := newTestAPI(t)
	token := ts.login(t, seed.AdminUsername, adminPassword)

	rec := ts.do(t, http.MethodPost, "/api/categories", token, map[string]any{"name": "Tatlı", "colour": "red"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, errorMessage(t, rec), "invalid JSON body")

	rec = ts.do(t, http.MethodPost, "/api/categories", token, map[string]any{"name": ""})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/products/does-not-exist", token, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/nowhere", token, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStockAdjustAndDeduct(t *testing.T) {
	ts := newTestAPI(t)
	token := ts.login(t, seed.AdminUsername, adminPassword)

	rec := ts.do(t, http.MethodPost, "/api/stock", token, map[string]any{"name": "Kaşar", "quantity": 4, "alertThreshold": 3})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	row := decode[domain.Stock](t, rec)

	rec = ts.do(t, http.MethodPost, "/api/stock/"+row.ID+"/adjust", token, map[string]any{"delta": 2})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 6, decode[domain.StockAdjustResult](t, rec).Stock.Quantity)

	rec = ts.do(t, http.MethodPost, "/api/stock/deduct", token, map[string]any{"name": "Kaşar", "quantity": 9})
	require.Equal(t, http.StatusOK, rec.Code)
	result := decode[domain.StockAdjustResult](t, rec)
	require.Equal(t, 0, result.Stock.Quantity)
	require.NotNil(t, result.Warning)
	require.Equal(t, 6, result.Warning.Available)

	rec = ts.do(t, http.MethodGet, "/api/stock/alerts", token, nil)
	require.Len(t, decode[[]domain.Stock](t, rec), 1)

	rec = ts.do(t, http.MethodPut, "/api/stock/"+row.ID, token, map[string]any{"quantity": -1})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/api/stock/"+row.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, decode[map[string]any](t, rec)["success"])
}

func TestStatusForMapsDomainErrors(t *testing.T) {
	cases := map[error]int{
		service.ErrValidation:          http.StatusBadRequest,
		service.ErrNoActiveSession:     http.StatusBadRequest,
		service.ErrPastSessionReadOnly: http.StatusForbidden,
		service.ErrForbidden:           http.StatusForbidden,
		service.ErrInvalidCredentials:  http.StatusUnauthorized,
		errUnauthorized:                http.StatusUnauthorized,
		io.EOF:                         http.StatusInternalServerError,
	}
	for err, want := range cases {
		require.Equal(t, want, statusFor(err), err.Error())
	}
}

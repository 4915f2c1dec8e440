package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pideci/backend/internal/domain"
	"pideci/backend/internal/money"
	"pideci/backend/internal/rbac"
	"pideci/backend/internal/store"
	"pideci/backend/internal/store/memory"
)

var istanbul = time.FixedZone("TRT", 3*60*60)

type fixture struct {
	svc   *Service
	repo  *memory.Store
	now   time.Time
	stats *countingInvalidator
}

type countingInvalidator struct{ calls int }

func (c *countingInvalidator) Invalidate(context.Context) { c.calls++ }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:  memory.New(),
		now:   time.Date(2026, 3, 14, 12, 30, 0, 0, istanbul),
		stats: &countingInvalidator{},
	}
	f.svc = New(f.repo,
		WithClock(func() time.Time { return f.now }),
		WithLocation(istanbul),
		WithStatsInvalidator(f.stats),
	)
	return f
}

func (f *fixture) startDay(t *testing.T) domain.BusinessSession {
	t.Helper()
	session, err := f.svc.StartDay(context.Background())
	require.NoError(t, err)
	return session
}

func (f *fixture) stockedProduct(t *testing.T, name, price string, qty int) (domain.Product, domain.Stock) {
	t.Helper()
	ctx := context.Background()
	row, err := f.svc.UpsertStock(ctx, domain.StockUpsertRequest{Name: name + " stock", Quantity: qty})
	require.NoError(t, err)
	product, err := f.svc.CreateProduct(ctx, domain.ProductCreateRequest{
		Name:        name,
		Price:       money.MustParse(price),
		StockItemID: &row.ID,
	})
	require.NoError(t, err)
	return product, row
}

func TestStartDayCreatesTodaysSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	active, err := f.svc.GetActiveSession(ctx)
	require.NoError(t, err)
	require.Nil(t, active)

	session := f.startDay(t)
	require.Equal(t, "2026-03-14", session.Date)
	require.Equal(t, "Cumartesi - 2026-03-14", session.Name)
	require.True(t, session.IsActive)

	active, err = f.svc.GetActiveSession(ctx)
	require.NoError(t, err)
	require.Equal(t, session.ID, active.ID)

	again := f.startDay(t)
	require.Equal(t, session.ID, again.ID)

	sessions, err := f.svc.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
}

func TestTodayFollowsBusinessTimezone(t *testing.T) {
	f := newFixture(t)
	// 22:30 UTC on the 14th is already the 15th in Istanbul.
	f.now = time.Date(2026, 3, 14, 22, 30, 0, 0, time.UTC)
	require.Equal(t, "2026-03-15", f.svc.Today())
	require.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, istanbul), f.svc.StartOfToday())
}

func TestEndDayLeavesNoActiveSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.startDay(t)

	ended, err := f.svc.EndDay(ctx)
	require.NoError(t, err)
	require.Equal(t, session.ID, ended.ID)
	require.False(t, ended.IsActive)

	active, err := f.svc.GetActiveSession(ctx)
	require.NoError(t, err)
	require.Nil(t, active)

	_, err = f.svc.EndDay(ctx)
	require.ErrorIs(t, err, ErrNoActiveSession)

	resumed := f.startDay(t)
	require.Equal(t, session.ID, resumed.ID)
	require.True(t, resumed.IsActive)
}

func TestEnsureTodayIsIdempotentAndRespectsEndDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, created, err := f.svc.EnsureToday(ctx)
	require.NoError(t, err)
	require.True(t, created)
	require.True(t, first.IsActive)

	_, err = f.svc.EndDay(ctx)
	require.NoError(t, err)

	second, created, err := f.svc.EnsureToday(ctx)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ID, second.ID)

	active, err := f.svc.GetActiveSession(ctx)
	require.NoError(t, err)
	require.Nil(t, active, "a manually ended day stays ended")

	f.now = f.now.Add(24 * time.Hour)
	next, created, err := f.svc.EnsureToday(ctx)
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, "2026-03-15", next.Date)
}

func TestCreateSessionKeepsSingleActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.CreateSession(ctx, domain.SessionCreateRequest{Date: "2026-03-13", Name: "Friday", IsActive: true})
	require.NoError(t, err)
	b, err := f.svc.CreateSession(ctx, domain.SessionCreateRequest{Date: "2026-03-14", Name: "Saturday", IsActive: true})
	require.NoError(t, err)

	_, err = f.svc.ActivateSession(ctx, a.ID)
	require.NoError(t, err)

	sessions, err := f.svc.ListSessions(ctx)
	require.NoError(t, err)
	activeCount := 0
	for _, s := range sessions {
		if s.IsActive {
			activeCount++
			require.Equal(t, a.ID, s.ID)
		}
	}
	require.Equal(t, 1, activeCount)

	require.ErrorIs(t, f.svc.DeleteSession(ctx, a.ID), store.ErrInvalidState)
	require.NoError(t, f.svc.DeleteSession(ctx, b.ID))

	_, err = f.svc.ActivateSession(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = f.svc.CreateSession(ctx, domain.SessionCreateRequest{Date: "14/03/2026", Name: "bad"})
	require.ErrorIs(t, err, ErrValidation)
}

func TestDirectSaleDeductsStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.startDay(t)
	product, row := f.stockedProduct(t, "Kıymalı Pide", "100", 10)

	receipt, err := f.svc.CreateSale(ctx, domain.SaleCreateRequest{
		Items: []domain.SaleLineRequest{{ProductID: product.ID, Quantity: 3}},
	})
	require.NoError(t, err)
	require.Equal(t, "300.00", receipt.Sale.Total.String())
	require.Len(t, receipt.Items, 1)
	require.Equal(t, "Kıymalı Pide", receipt.Items[0].ProductName)
	require.Empty(t, receipt.StockWarnings)
	require.Equal(t, 1, f.stats.calls)

	after, err := f.svc.GetStock(ctx, row.ID)
	require.NoError(t, err)
	require.Equal(t, 7, after.Quantity)
}

func TestSaleClampsStockAtZero(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.startDay(t)
	product, row := f.stockedProduct(t, "Ayran", "10", 2)

	receipt, err := f.svc.CreateSale(ctx, domain.SaleCreateRequest{
		Items: []domain.SaleLineRequest{{ProductID: product.ID, Quantity: 5}},
	})
	require.NoError(t, err)
	require.Equal(t, []domain.StockWarning{{
		StockItemID: row.ID,
		Name:        row.Name,
		Requested:   5,
		Available:   2,
	}}, receipt.StockWarnings)

	after, err := f.svc.GetStock(ctx, row.ID)
	require.NoError(t, err)
	require.Zero(t, after.Quantity)
}

func TestSaleRejectsUnknownProductAndEmptyCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.startDay(t)

	_, err := f.svc.CreateSale(ctx, domain.SaleCreateRequest{})
	require.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.CreateSale(ctx, domain.SaleCreateRequest{
		Items: []domain.SaleLineRequest{{ProductID: "nope", Quantity: 1}},
	})
	require.ErrorIs(t, err, store.ErrNotFound)

	sales, err := f.svc.ListSales(ctx, LedgerQuery{})
	require.NoError(t, err)
	require.Empty(t, sales)
}

func TestLedgerRequiresTodaysActiveSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	product, _ := f.stockedProduct(t, "Soda", "40", 5)
	sale := domain.SaleCreateRequest{Items: []domain.SaleLineRequest{{ProductID: product.ID, Quantity: 1}}}
	expense := domain.ExpenseCreateRequest{Category: "Gas", Amount: money.MustParse("50")}

	_, err := f.svc.CreateSale(ctx, sale)
	require.ErrorIs(t, err, ErrNoActiveSession)
	_, err = f.svc.CreateExpense(ctx, expense)
	require.ErrorIs(t, err, ErrNoActiveSession)

	past, err := f.svc.CreateSession(ctx, domain.SessionCreateRequest{Date: "2026-03-10", Name: "Old", IsActive: true})
	require.NoError(t, err)
	_, err = f.svc.ActivateSession(ctx, past.ID)
	require.NoError(t, err)

	_, err = f.svc.CreateSale(ctx, sale)
	require.ErrorIs(t, err, ErrPastSessionReadOnly)
	_, err = f.svc.CreateExpense(ctx, expense)
	require.ErrorIs(t, err, ErrPastSessionReadOnly)

	// reading a past day is still allowed
	sales, err := f.svc.ListSales(ctx, LedgerQuery{SessionID: past.ID})
	require.NoError(t, err)
	require.Empty(t, sales)
}

func TestDeleteSaleOnlyWithinTodaysSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.startDay(t)
	product, row := f.stockedProduct(t, "Cantık", "75", 10)

	receipt, err := f.svc.CreateSale(ctx, domain.SaleCreateRequest{
		Items: []domain.SaleLineRequest{{ProductID: product.ID, Quantity: 2}},
	})
	require.NoError(t, err)

	_, err = f.svc.CreateSession(ctx, domain.SessionCreateRequest{Date: "2026-03-14", Name: "Evening", IsActive: true})
	require.NoError(t, err)
	err = f.svc.DeleteSale(ctx, receipt.Sale.ID)
	require.ErrorIs(t, err, ErrPastSessionReadOnly)

	_, err = f.svc.ActivateSession(ctx, first.ID)
	require.NoError(t, err)
	require.NoError(t, f.svc.DeleteSale(ctx, receipt.Sale.ID))
	require.ErrorIs(t, f.svc.DeleteSale(ctx, receipt.Sale.ID), store.ErrNotFound)

	// stock is not restored by deleting the sale
	after, err := f.svc.GetStock(ctx, row.ID)
	require.NoError(t, err)
	require.Equal(t, 8, after.Quantity)
}

func TestOrderLifecycleAndCloseBill(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.startDay(t)
	product, row := f.stockedProduct(t, "Kuşbaşılı Pide", "100", 10)

	table, err := f.svc.CreateTable(ctx, domain.TableCreateRequest{Name: "Masa 1"})
	require.NoError(t, err)
	require.Equal(t, 1, table.OrderNumber)

	order, err := f.svc.CreateOrder(ctx, domain.OrderCreateRequest{TableID: table.ID})
	require.NoError(t, err)
	require.Equal(t, domain.OrderActive, order.Status)

	_, err = f.svc.CreateOrder(ctx, domain.OrderCreateRequest{TableID: table.ID})
	require.ErrorIs(t, err, store.ErrConflict)

	_, err = f.svc.AddOrderItem(ctx, order.ID, domain.OrderItemCreateRequest{ProductID: product.ID, Quantity: 2})
	require.NoError(t, err)
	current, err := f.svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, "200.00", current.Total.String())

	_, err = f.svc.AddOrderItem(ctx, order.ID, domain.OrderItemCreateRequest{ProductID: product.ID, Quantity: 1})
	require.NoError(t, err)
	items, err := f.svc.ListOrderItems(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	current, err = f.svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, "300.00", current.Total.String())

	kitchen, err := f.svc.KitchenOrders(ctx)
	require.NoError(t, err)
	require.Len(t, kitchen, 1)
	require.Equal(t, table.ID, kitchen[0].Table.ID)
	require.Len(t, kitchen[0].Items, 2)

	_, err = f.svc.CloseBill(ctx, order.ID)
	require.ErrorIs(t, err, store.ErrInvalidState)

	completed, err := f.svc.UpdateOrder(ctx, order.ID, domain.OrderPatch{Status: domain.Some(domain.OrderCompleted)})
	require.NoError(t, err)
	require.Equal(t, domain.OrderCompleted, completed.Status)

	_, err = f.svc.UpdateOrder(ctx, order.ID, domain.OrderPatch{Status: domain.Some(domain.OrderActive)})
	require.ErrorIs(t, err, store.ErrInvalidState)

	kitchen, err = f.svc.KitchenOrders(ctx)
	require.NoError(t, err)
	require.Empty(t, kitchen)

	occupying, err := f.svc.GetActiveOrderForTable(ctx, table.ID)
	require.NoError(t, err)
	require.Equal(t, order.ID, occupying.ID)

	result, err := f.svc.CloseBill(ctx, order.ID)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, session.ID, result.Sale.SessionID)
	require.Equal(t, "300.00", result.Sale.Total.String())
	require.Len(t, result.Items, 2)
	for i, item := range result.Items {
		require.Equal(t, items[i].ProductID, item.ProductID)
		require.Equal(t, items[i].ProductName, item.ProductName)
		require.Equal(t, items[i].Quantity, item.Quantity)
		require.True(t, items[i].Price.Equal(item.Price))
		require.True(t, items[i].Total.Equal(item.Total))
	}

	_, err = f.svc.GetOrder(ctx, order.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	free, err := f.svc.GetActiveOrderForTable(ctx, table.ID)
	require.NoError(t, err)
	require.Nil(t, free)

	after, err := f.svc.GetStock(ctx, row.ID)
	require.NoError(t, err)
	require.Equal(t, 7, after.Quantity, "closing the bill deducts stock once")

	sales, err := f.svc.ListSales(ctx, LedgerQuery{})
	require.NoError(t, err)
	require.Len(t, sales, 1)
}

func TestCloseBillNeedsWritableSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	product, _ := f.stockedProduct(t, "Peynirli Pide", "150", 3)
	table, err := f.svc.CreateTable(ctx, domain.TableCreateRequest{Name: "Masa 2", OrderNumber: 2})
	require.NoError(t, err)
	order, err := f.svc.CreateOrder(ctx, domain.OrderCreateRequest{TableID: table.ID})
	require.NoError(t, err)
	_, err = f.svc.AddOrderItem(ctx, order.ID, domain.OrderItemCreateRequest{ProductID: product.ID, Quantity: 1})
	require.NoError(t, err)
	_, err = f.svc.CompleteOrder(ctx, order.ID)
	require.NoError(t, err)

	_, err = f.svc.CloseBill(ctx, order.ID)
	require.ErrorIs(t, err, ErrNoActiveSession)

	_, err = f.svc.GetOrder(ctx, order.ID)
	require.NoError(t, err, "a refused close keeps the order")
}

func TestOrderItemEditsRecomputeTotal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	product, _ := f.stockedProduct(t, "Kaşarlı Pide", "150", 0)
	table, err := f.svc.CreateTable(ctx, domain.TableCreateRequest{Name: "Bahçe"})
	require.NoError(t, err)
	order, err := f.svc.CreateOrder(ctx, domain.OrderCreateRequest{TableID: table.ID})
	require.NoError(t, err)

	item, err := f.svc.AddOrderItem(ctx, order.ID, domain.OrderItemCreateRequest{ProductID: product.ID, Quantity: 1})
	require.NoError(t, err)

	_, err = f.svc.AddOrderItem(ctx, order.ID, domain.OrderItemCreateRequest{ProductID: product.ID, Quantity: 0})
	require.ErrorIs(t, err, ErrValidation)
	_, err = f.svc.AddOrderItem(ctx, order.ID, domain.OrderItemCreateRequest{ProductID: "missing", Quantity: 1})
	require.ErrorIs(t, err, store.ErrNotFound)

	updated, err := f.svc.UpdateOrderItem(ctx, item.ID, domain.OrderItemPatch{
		Quantity: domain.Some(3),
		Price:    domain.Some(money.MustParse("120")),
	})
	require.NoError(t, err)
	require.Equal(t, "360.00", updated.Total.String())
	current, err := f.svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, "360.00", current.Total.String())

	_, err = f.svc.UpdateOrderItem(ctx, item.ID, domain.OrderItemPatch{Quantity: domain.Some(0)})
	require.ErrorIs(t, err, ErrValidation)

	require.NoError(t, f.svc.RemoveOrderItem(ctx, item.ID))
	current, err = f.svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.True(t, current.Total.IsZero())

	require.NoError(t, f.svc.CancelOrder(ctx, order.ID))
	require.NoError(t, f.svc.DeleteTable(ctx, table.ID))
}

func TestStockAdjustmentsClampAndValidate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	row, err := f.svc.UpsertStock(ctx, domain.StockUpsertRequest{Name: "Un", Quantity: 5})
	require.NoError(t, err)
	row, err = f.svc.UpsertStock(ctx, domain.StockUpsertRequest{Name: "Un", Quantity: 3, AlertThreshold: ptr(10)})
	require.NoError(t, err)
	require.Equal(t, 8, row.Quantity)

	low, err := f.svc.ListLowStock(ctx)
	require.NoError(t, err)
	require.Len(t, low, 1)

	result, err := f.svc.DeductStockByName(ctx, "Un", 10)
	require.NoError(t, err)
	require.Zero(t, result.Stock.Quantity)
	require.NotNil(t, result.Warning)
	require.Equal(t, 8, result.Warning.Available)

	result, err = f.svc.AdjustStock(ctx, row.ID, 4)
	require.NoError(t, err)
	require.Equal(t, 4, result.Stock.Quantity)
	require.Nil(t, result.Warning)

	_, err = f.svc.UpdateStock(ctx, row.ID, domain.StockPatch{Quantity: domain.Some(-1)})
	require.ErrorIs(t, err, ErrValidation)
	_, err = f.svc.DeductStockByName(ctx, "Un", 0)
	require.ErrorIs(t, err, ErrValidation)
	_, err = f.svc.AdjustStockByName(ctx, "Şeker", -1)
	require.ErrorIs(t, err, store.ErrNotFound)

	cleared, err := f.svc.UpdateStock(ctx, row.ID, domain.StockPatch{AlertThreshold: domain.Null[int]()})
	require.NoError(t, err)
	require.Nil(t, cleared.AlertThreshold)
}

func TestExpensesFollowSessionRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.startDay(t)

	_, err := f.svc.CreateExpense(ctx, domain.ExpenseCreateRequest{Category: "Gas", Amount: money.Zero})
	require.ErrorIs(t, err, ErrValidation)

	expense, err := f.svc.CreateExpense(ctx, domain.ExpenseCreateRequest{Category: " Gas ", Amount: money.MustParse("80.5")})
	require.NoError(t, err)
	require.Equal(t, "Gas", expense.Category)

	listed, err := f.svc.ListExpenses(ctx, LedgerQuery{DateFrom: "2026-03-14", DateTo: "2026-03-14"})
	require.NoError(t, err)
	require.Len(t, listed, 1)

	listed, err = f.svc.ListExpenses(ctx, LedgerQuery{DateFrom: "2026-03-15"})
	require.NoError(t, err)
	require.Empty(t, listed)

	_, err = f.svc.ListExpenses(ctx, LedgerQuery{DateFrom: "yesterday"})
	require.ErrorIs(t, err, ErrValidation)

	require.NoError(t, f.svc.DeleteExpense(ctx, expense.ID))
}

func TestUsersAndAuthentication(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	admin, created, err := f.svc.EnsureRole(ctx, rbac.AdminRole, "Full access", rbac.All())
	require.NoError(t, err)
	require.True(t, created)
	_, created, err = f.svc.EnsureRole(ctx, rbac.AdminRole, "Full access", rbac.All())
	require.NoError(t, err)
	require.False(t, created)

	user, err := f.svc.CreateUser(ctx, domain.UserCreateRequest{Username: " Ayse ", Password: "secret-pass", RoleID: admin.ID})
	require.NoError(t, err)
	require.Equal(t, "ayse", user.Username)

	_, err = f.svc.CreateUser(ctx, domain.UserCreateRequest{Username: "ayse", Password: "secret-pass", RoleID: admin.ID})
	require.ErrorIs(t, err, store.ErrConflict)
	_, err = f.svc.CreateUser(ctx, domain.UserCreateRequest{Username: "x", Password: "short", RoleID: admin.ID})
	require.ErrorIs(t, err, ErrValidation)

	profile, err := f.svc.Authenticate(ctx, "AYSE", "secret-pass")
	require.NoError(t, err)
	require.Equal(t, rbac.AdminRole, profile.Role)
	require.True(t, profile.Permissions.Has(rbac.Users))

	_, err = f.svc.Authenticate(ctx, "ayse", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.svc.Authenticate(ctx, "nobody", "secret-pass")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	self := WithActor(ctx, profile.Actor())
	require.ErrorIs(t, f.svc.DeleteUser(self, user.ID), ErrValidation)
	require.ErrorIs(t, f.svc.DeleteRole(self, admin.ID), ErrForbidden)

	_, err = f.svc.UpdateRole(self, admin.ID, domain.RolePatch{Permissions: domain.Some([]string{"sales"})})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestPlainTextPasswordIsUpgradedOnLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	role, _, err := f.svc.EnsureRole(ctx, "cashier", "", rbac.NewSet(rbac.Sales))
	require.NoError(t, err)
	account, err := f.repo.CreateUser(ctx, domain.UserAccount{Username: "legacy", Password: "plain-text", RoleID: role.ID})
	require.NoError(t, err)

	_, err = f.svc.Authenticate(ctx, "legacy", "plain-text")
	require.NoError(t, err)

	stored, err := f.repo.GetUser(ctx, account.ID)
	require.NoError(t, err)
	require.True(t, isPasswordHash(stored.Password))

	_, err = f.svc.Authenticate(ctx, "legacy", "plain-text")
	require.NoError(t, err)
}

func TestRolesRejectUnknownPermissionsAndHeldDeletes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateRole(ctx, domain.RoleRequest{Name: "waiter", Permissions: []string{"teleport"}})
	require.ErrorIs(t, err, ErrValidation)

	waiter, err := f.svc.CreateRole(ctx, domain.RoleRequest{Name: "waiter", Permissions: []string{"orders", "kitchen"}})
	require.NoError(t, err)
	require.True(t, rbac.HasAny(rbac.NewSet(rbac.Orders), waiter.Permissions))

	_, err = f.svc.CreateUser(ctx, domain.UserCreateRequest{Username: "mehmet", Password: "secret-pass", RoleID: waiter.ID})
	require.NoError(t, err)

	err = f.svc.DeleteRole(ctx, waiter.ID)
	require.ErrorIs(t, err, store.ErrConflict)
	require.False(t, errors.Is(err, ErrForbidden))
}

func ptr[T any](v T) *T { return &v }

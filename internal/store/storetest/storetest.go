// Package storetest holds the behaviour every store.Repository must show.
// Each implementation's tests call Run with a constructor for a fresh, empty
// repository.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pideci/backend/internal/domain"
	"pideci/backend/internal/money"
	"pideci/backend/internal/rbac"
	"pideci/backend/internal/store"
	"pideci/backend/internal/xid"
)

type Factory func(t *testing.T) store.Repository

func Run(t *testing.T, newRepo Factory) {
	t.Run("CreateSessionAssignsID", func(t *testing.T) { testCreateSessionAssignsID(t, newRepo(t)) })
	t.Run("SingleActiveSession", func(t *testing.T) { testSingleActiveSession(t, newRepo(t)) })
	t.Run("DeleteSessionCascades", func(t *testing.T) { testDeleteSessionCascades(t, newRepo(t)) })
	t.Run("OrderTotalsFollowItems", func(t *testing.T) { testOrderTotals(t, newRepo(t)) })
	t.Run("TableOccupancy", func(t *testing.T) { testTableOccupancy(t, newRepo(t)) })
	t.Run("CloseOrderRoundTrip", func(t *testing.T) { testCloseOrder(t, newRepo(t)) })
	t.Run("CreateSaleDeductsStock", func(t *testing.T) { testCreateSaleDeductsStock(t, newRepo(t)) })
	t.Run("StockLedger", func(t *testing.T) { testStockLedger(t, newRepo(t)) })
	t.Run("CatalogUnlinking", func(t *testing.T) { testCatalogUnlinking(t, newRepo(t)) })
	t.Run("LedgerFilter", func(t *testing.T) { testLedgerFilter(t, newRepo(t)) })
	t.Run("RepeatedReadsAgree", func(t *testing.T) { testRepeatedReadsAgree(t, newRepo(t)) })
	t.Run("UsersAndRoles", func(t *testing.T) { testUsersAndRoles(t, newRepo(t)) })
}

var base = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func newSession(t *testing.T, repo store.Repository, date string, active bool) domain.BusinessSession {
	t.Helper()
	created, err := repo.CreateSession(context.Background(), domain.BusinessSession{
		ID:        xid.New(),
		Date:      date,
		Name:      "Day " + date,
		IsActive:  active,
		CreatedAt: base,
	})
	require.NoError(t, err)
	return *created
}

func newStock(t *testing.T, repo store.Repository, name string, qty int) domain.Stock {
	t.Helper()
	row, err := repo.UpsertStockByName(context.Background(), domain.StockUpsertRequest{Name: name, Quantity: qty}, xid.New())
	require.NoError(t, err)
	return *row
}

func newProduct(t *testing.T, repo store.Repository, name, price string, stockID *string) domain.Product {
	t.Helper()
	p, err := repo.CreateProduct(context.Background(), domain.Product{
		ID:          xid.New(),
		Name:        name,
		Price:       money.MustParse(price),
		StockItemID: stockID,
	})
	require.NoError(t, err)
	return *p
}

func newTable(t *testing.T, repo store.Repository, name string, number int) domain.RestaurantTable {
	t.Helper()
	table, err := repo.CreateTable(context.Background(), domain.RestaurantTable{
		ID:          xid.New(),
		Name:        name,
		OrderNumber: number,
		CreatedAt:   base,
	})
	require.NoError(t, err)
	return *table
}

func newOrder(t *testing.T, repo store.Repository, tableID string) domain.Order {
	t.Helper()
	order, err := repo.CreateOrder(context.Background(), domain.Order{
		ID:        xid.New(),
		TableID:   tableID,
		Status:    domain.OrderActive,
		CreatedAt: base,
		UpdatedAt: base,
	})
	require.NoError(t, err)
	return *order
}

func addItem(t *testing.T, repo store.Repository, orderID string, p domain.Product, qty int) domain.OrderItem {
	t.Helper()
	item, err := repo.AddOrderItem(context.Background(), domain.OrderItem{
		ID:          xid.New(),
		OrderID:     orderID,
		ProductID:   p.ID,
		ProductName: p.Name,
		Quantity:    qty,
		Price:       p.Price,
	}, base)
	require.NoError(t, err)
	return *item
}

func requireOrderTotalMatchesItems(t *testing.T, repo store.Repository, orderID string) domain.Order {
	t.Helper()
	ctx := context.Background()
	order, err := repo.GetOrder(ctx, orderID)
	require.NoError(t, err)
	items, err := repo.ListOrderItems(ctx, orderID)
	require.NoError(t, err)
	sum := money.Zero
	for _, item := range items {
		require.Equal(t, item.Price.Mul(item.Quantity).String(), item.Total.String())
		sum = sum.Add(item.Total)
	}
	require.Equal(t, sum.String(), order.Total.String())
	return *order
}

func countActive(t *testing.T, repo store.Repository) int {
	t.Helper()
	sessions, err := repo.ListSessions(context.Background())
	require.NoError(t, err)
	active := 0
	for _, s := range sessions {
		if s.IsActive {
			active++
		}
	}
	return active
}

func testSingleActiveSession(t *testing.T, repo store.Repository) {
	ctx := context.Background()

	_, err := repo.GetActiveSession(ctx)
	require.ErrorIs(t, err, store.ErrNotFound)

	first := newSession(t, repo, "2026-03-13", true)
	second := newSession(t, repo, "2026-03-14", true)
	require.Equal(t, 1, countActive(t, repo))

	active, err := repo.GetActiveSession(ctx)
	require.NoError(t, err)
	require.Equal(t, second.ID, active.ID)

	activated, err := repo.ActivateSession(ctx, first.ID)
	require.NoError(t, err)
	require.True(t, activated.IsActive)
	require.Equal(t, 1, countActive(t, repo))

	_, err = repo.ActivateSession(ctx, xid.New())
	require.ErrorIs(t, err, store.ErrNotFound)

	newSession(t, repo, "2026-03-15", false)
	require.Equal(t, 1, countActive(t, repo))

	sessions, err := repo.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	require.Equal(t, "2026-03-15", sessions[0].Date)

	byDate, err := repo.FindSessionByDate(ctx, "2026-03-14")
	require.NoError(t, err)
	require.Equal(t, second.ID, byDate.ID)
	_, err = repo.FindSessionByDate(ctx, "2020-01-01")
	require.ErrorIs(t, err, store.ErrNotFound)

	changed, err := repo.DeactivateSessions(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, changed)
	require.Zero(t, countActive(t, repo))
}

func testCreateSessionAssignsID(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	first, err := repo.CreateSession(ctx, domain.BusinessSession{Date: "2026-03-13", Name: "Day 1", CreatedAt: base})
	require.NoError(t, err)
	second, err := repo.CreateSession(ctx, domain.BusinessSession{Date: "2026-03-14", Name: "Day 2", IsActive: true, CreatedAt: base})
	require.NoError(t, err)

	require.NotEmpty(t, first.ID)
	require.NotEmpty(t, second.ID)
	require.NotEqual(t, first.ID, second.ID)

	got, err := repo.GetSession(ctx, second.ID)
	require.NoError(t, err)
	require.True(t, got.IsActive)
}

func testDeleteSessionCascades(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	old := newSession(t, repo, "2026-03-13", false)
	current := newSession(t, repo, "2026-03-14", true)
	p := newProduct(t, repo, "Ayran", "10", nil)

	receipt, err := repo.CreateSale(ctx, domain.Sale{ID: xid.New(), SessionID: old.ID, Date: base, Total: money.MustParse("10")},
		[]domain.SaleItem{{ProductID: p.ID, ProductName: p.Name, Quantity: 1, Price: p.Price, Total: p.Price}})
	require.NoError(t, err)
	_, err = repo.CreateExpense(ctx, domain.Expense{ID: xid.New(), SessionID: old.ID, Date: base, Category: "Gas", Amount: money.MustParse("50")})
	require.NoError(t, err)

	require.ErrorIs(t, repo.DeleteSession(ctx, current.ID), store.ErrInvalidState)
	require.NoError(t, repo.DeleteSession(ctx, old.ID))
	require.ErrorIs(t, repo.DeleteSession(ctx, old.ID), store.ErrNotFound)

	_, err = repo.GetSale(ctx, receipt.Sale.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
	expenses, err := repo.ListExpenses(ctx, domain.LedgerFilter{SessionID: old.ID})
	require.NoError(t, err)
	require.Empty(t, expenses)
}

func testOrderTotals(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	table := newTable(t, repo, "Masa 1", 1)
	pide := newProduct(t, repo, "Kıymalı Pide", "100", nil)
	order := newOrder(t, repo, table.ID)
	require.Equal(t, "0.00", order.Total.String())

	first := addItem(t, repo, order.ID, pide, 2)
	require.Equal(t, "200.00", first.Total.String())
	require.Equal(t, "200.00", requireOrderTotalMatchesItems(t, repo, order.ID).Total.String())

	second := addItem(t, repo, order.ID, pide, 1)
	items, err := repo.ListOrderItems(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, first.ID, items[0].ID)
	require.Equal(t, "300.00", requireOrderTotalMatchesItems(t, repo, order.ID).Total.String())

	second.Quantity = 4
	second.Price = money.MustParse("90")
	updated, err := repo.UpdateOrderItem(ctx, second, base.Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, "360.00", updated.Total.String())
	require.Equal(t, "560.00", requireOrderTotalMatchesItems(t, repo, order.ID).Total.String())

	require.NoError(t, repo.DeleteOrderItem(ctx, first.ID, base.Add(2*time.Minute)))
	require.Equal(t, "360.00", requireOrderTotalMatchesItems(t, repo, order.ID).Total.String())
	require.ErrorIs(t, repo.DeleteOrderItem(ctx, first.ID, base), store.ErrNotFound)

	_, err = repo.AddOrderItem(ctx, domain.OrderItem{ID: xid.New(), OrderID: xid.New(), ProductID: pide.ID, ProductName: pide.Name, Quantity: 1, Price: pide.Price}, base)
	require.ErrorIs(t, err, store.ErrNotFound)

	// Reads without writes in between are stable.
	again, err := repo.ListOrderItems(ctx, order.ID)
	require.NoError(t, err)
	once, err := repo.ListOrderItems(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, once, again)
}

func testTableOccupancy(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	table := newTable(t, repo, "Bahçe 2", 2)
	order := newOrder(t, repo, table.ID)

	_, err := repo.CreateOrder(ctx, domain.Order{ID: xid.New(), TableID: table.ID, Status: domain.OrderActive, CreatedAt: base, UpdatedAt: base})
	require.ErrorIs(t, err, store.ErrConflict)
	_, err = repo.CreateOrder(ctx, domain.Order{ID: xid.New(), TableID: xid.New(), Status: domain.OrderActive, CreatedAt: base, UpdatedAt: base})
	require.ErrorIs(t, err, store.ErrNotFound)

	occupying, err := repo.GetOccupyingOrder(ctx, table.ID)
	require.NoError(t, err)
	require.Equal(t, order.ID, occupying.ID)

	completed, err := repo.SetOrderStatus(ctx, order.ID, domain.OrderActive, domain.OrderCompleted, base.Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, domain.OrderCompleted, completed.Status)
	_, err = repo.SetOrderStatus(ctx, order.ID, domain.OrderActive, domain.OrderCompleted, base)
	require.ErrorIs(t, err, store.ErrInvalidState)

	// A completed order still occupies its table.
	require.ErrorIs(t, repo.DeleteTable(ctx, table.ID), store.ErrConflict)
	_, err = repo.CreateOrder(ctx, domain.Order{ID: xid.New(), TableID: table.ID, Status: domain.OrderActive, CreatedAt: base, UpdatedAt: base})
	require.ErrorIs(t, err, store.ErrConflict)

	active, err := repo.ListOrdersByStatus(ctx, domain.OrderActive)
	require.NoError(t, err)
	require.Empty(t, active)

	require.NoError(t, repo.DeleteOrder(ctx, order.ID))
	_, err = repo.GetOccupyingOrder(ctx, table.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, repo.DeleteTable(ctx, table.ID))
}

func testCloseOrder(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	session := newSession(t, repo, "2026-03-14", true)
	dough := newStock(t, repo, "Hamur", 2)
	pide := newProduct(t, repo, "Kaşarlı Pide", "150", &dough.ID)
	ayran := newProduct(t, repo, "Ayran", "10", nil)
	table := newTable(t, repo, "Masa 3", 3)
	order := newOrder(t, repo, table.ID)
	addItem(t, repo, order.ID, pide, 2)
	addItem(t, repo, order.ID, ayran, 3)
	addItem(t, repo, order.ID, pide, 1)
	before := requireOrderTotalMatchesItems(t, repo, order.ID)
	orderItems, err := repo.ListOrderItems(ctx, order.ID)
	require.NoError(t, err)

	_, err = repo.CloseOrder(ctx, order.ID, domain.Sale{ID: xid.New(), SessionID: session.ID, Date: base})
	require.ErrorIs(t, err, store.ErrInvalidState)

	_, err = repo.SetOrderStatus(ctx, order.ID, domain.OrderActive, domain.OrderCompleted, base)
	require.NoError(t, err)

	receipt, err := repo.CloseOrder(ctx, order.ID, domain.Sale{ID: xid.New(), SessionID: session.ID, Date: base})
	require.NoError(t, err)
	require.Equal(t, before.Total.String(), receipt.Sale.Total.String())
	require.Equal(t, session.ID, receipt.Sale.SessionID)

	saleItems, err := repo.ListSaleItems(ctx, receipt.Sale.ID)
	require.NoError(t, err)
	require.Len(t, saleItems, len(orderItems))
	for i := range orderItems {
		require.Equal(t, orderItems[i].ProductID, saleItems[i].ProductID)
		require.Equal(t, orderItems[i].ProductName, saleItems[i].ProductName)
		require.Equal(t, orderItems[i].Quantity, saleItems[i].Quantity)
		require.Equal(t, orderItems[i].Price.String(), saleItems[i].Price.String())
		require.Equal(t, orderItems[i].Total.String(), saleItems[i].Total.String())
	}

	_, err = repo.GetOrder(ctx, order.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = repo.GetOccupyingOrder(ctx, table.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	// Three pide against two units of dough: clamp and warn once.
	row, err := repo.GetStock(ctx, dough.ID)
	require.NoError(t, err)
	require.Zero(t, row.Quantity)
	require.Len(t, receipt.StockWarnings, 1)
	require.Equal(t, domain.StockWarning{StockItemID: dough.ID, Name: "Hamur", Requested: 3, Available: 2}, receipt.StockWarnings[0])

	_, err = repo.CloseOrder(ctx, order.ID, domain.Sale{ID: xid.New(), SessionID: session.ID, Date: base})
	require.ErrorIs(t, err, store.ErrNotFound)
}

func testCreateSaleDeductsStock(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	session := newSession(t, repo, "2026-03-14", true)
	s := newStock(t, repo, "Kola", 10)
	p := newProduct(t, repo, "Kola 33cl", "100", &s.ID)

	items := []domain.SaleItem{{ID: xid.New(), ProductID: p.ID, ProductName: p.Name, Quantity: 3, Price: p.Price, Total: p.Price.Mul(3)}}
	receipt, err := repo.CreateSale(ctx, domain.Sale{ID: xid.New(), SessionID: session.ID, Date: base, Total: money.MustParse("300")}, items)
	require.NoError(t, err)
	require.Equal(t, "300.00", receipt.Sale.Total.String())
	require.Empty(t, receipt.StockWarnings)
	require.Len(t, receipt.Items, 1)
	require.Equal(t, receipt.Sale.ID, receipt.Items[0].SaleID)

	row, err := repo.GetStock(ctx, s.ID)
	require.NoError(t, err)
	require.Equal(t, 7, row.Quantity)

	_, err = repo.CreateSale(ctx, domain.Sale{ID: xid.New(), SessionID: xid.New(), Date: base, Total: money.MustParse("100")}, items[:0])
	require.ErrorIs(t, err, store.ErrNotFound)

	// Deleting the sale leaves the stock where it is.
	require.NoError(t, repo.DeleteSale(ctx, receipt.Sale.ID))
	row, err = repo.GetStock(ctx, s.ID)
	require.NoError(t, err)
	require.Equal(t, 7, row.Quantity)
	_, err = repo.ListSaleItems(ctx, receipt.Sale.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func testStockLedger(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	threshold := 5
	price := money.MustParse("12.5")

	row, err := repo.UpsertStockByName(ctx, domain.StockUpsertRequest{Name: "Un", Quantity: 8, AlertThreshold: &threshold}, xid.New())
	require.NoError(t, err)
	require.Equal(t, 8, row.Quantity)
	require.Nil(t, row.Price)

	again, err := repo.UpsertStockByName(ctx, domain.StockUpsertRequest{Name: "Un", Quantity: 4, Price: &price}, xid.New())
	require.NoError(t, err)
	require.Equal(t, row.ID, again.ID)
	require.Equal(t, 12, again.Quantity)
	require.Equal(t, "12.50", again.Price.String())
	require.Equal(t, 5, *again.AlertThreshold)

	adjusted, err := repo.AdjustStock(ctx, row.ID, -8)
	require.NoError(t, err)
	require.Equal(t, 4, adjusted.Stock.Quantity)
	require.Nil(t, adjusted.Warning)

	low, err := repo.ListLowStock(ctx)
	require.NoError(t, err)
	require.Len(t, low, 1)

	byName, err := repo.AdjustStockByName(ctx, "Un", -10)
	require.NoError(t, err)
	require.Zero(t, byName.Stock.Quantity)
	require.NotNil(t, byName.Warning)
	require.Equal(t, 4, byName.Warning.Available)

	_, err = repo.AdjustStockByName(ctx, "Yok", 1)
	require.ErrorIs(t, err, store.ErrNotFound)

	other := newStock(t, repo, "Tuz", 1)
	other.Name = "Un"
	_, err = repo.UpdateStock(ctx, other)
	require.ErrorIs(t, err, store.ErrConflict)

	zero := 0
	other.Name = "Tuz"
	other.AlertThreshold = &zero
	updated, err := repo.UpdateStock(ctx, other)
	require.NoError(t, err)
	require.Equal(t, 0, *updated.AlertThreshold)

	low, err = repo.ListLowStock(ctx)
	require.NoError(t, err)
	require.Len(t, low, 1)
	require.Equal(t, "Un", low[0].Name)

	linked := newProduct(t, repo, "Simit", "15", &row.ID)
	require.NoError(t, repo.DeleteStock(ctx, row.ID))
	p, err := repo.GetProduct(ctx, linked.ID)
	require.NoError(t, err)
	require.Nil(t, p.StockItemID)
}

func testCatalogUnlinking(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	category, err := repo.CreateCategory(ctx, domain.Category{ID: xid.New(), Name: "Pide", CreatedAt: base})
	require.NoError(t, err)
	_, err = repo.CreateCategory(ctx, domain.Category{ID: xid.New(), Name: "Pide", CreatedAt: base})
	require.ErrorIs(t, err, store.ErrConflict)

	p, err := repo.CreateProduct(ctx, domain.Product{ID: xid.New(), Name: "Peynirli Pide", Price: money.MustParse("150"), CategoryID: &category.ID})
	require.NoError(t, err)

	missing := xid.New()
	_, err = repo.CreateProduct(ctx, domain.Product{ID: xid.New(), Name: "Ghost", Price: money.MustParse("1"), StockItemID: &missing})
	require.ErrorIs(t, err, store.ErrNotFound)

	found, err := repo.GetProductsByIDs(ctx, []string{p.ID, missing})
	require.NoError(t, err)
	require.Len(t, found, 1)

	require.NoError(t, repo.DeleteCategory(ctx, category.ID))
	reloaded, err := repo.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	require.Nil(t, reloaded.CategoryID)

	require.NoError(t, repo.DeleteProduct(ctx, p.ID))
	require.ErrorIs(t, repo.DeleteProduct(ctx, p.ID), store.ErrNotFound)
}

func testLedgerFilter(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	session := newSession(t, repo, "2026-03-14", true)
	other := newSession(t, repo, "2026-03-13", false)

	for i, at := range []time.Time{base, base.Add(2 * time.Hour), base.Add(26 * time.Hour)} {
		_, err := repo.CreateSale(ctx, domain.Sale{ID: xid.New(), SessionID: session.ID, Date: at, Total: money.FromInt(int64(i + 1))}, nil)
		require.NoError(t, err)
	}
	_, err := repo.CreateSale(ctx, domain.Sale{ID: xid.New(), SessionID: other.ID, Date: base, Total: money.FromInt(9)}, nil)
	require.NoError(t, err)

	all, err := repo.ListSales(ctx, domain.LedgerFilter{SessionID: session.ID})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "3.00", all[0].Total.String())

	window, err := repo.ListSales(ctx, domain.LedgerFilter{SessionID: session.ID, From: base.Add(time.Hour), To: base.Add(3 * time.Hour)})
	require.NoError(t, err)
	require.Len(t, window, 1)
	require.Equal(t, "2.00", window[0].Total.String())

	lines, err := repo.ListSaleLines(ctx)
	require.NoError(t, err)
	require.Empty(t, lines)

	_, err = repo.CreateExpense(ctx, domain.Expense{ID: xid.New(), SessionID: session.ID, Date: base, Category: "Market", Amount: money.MustParse("75.25")})
	require.NoError(t, err)
	expenses, err := repo.ListExpenses(ctx, domain.LedgerFilter{SessionID: session.ID, From: base})
	require.NoError(t, err)
	require.Len(t, expenses, 1)
	require.Equal(t, "75.25", expenses[0].Amount.String())
	require.ErrorIs(t, repo.DeleteExpense(ctx, xid.New()), store.ErrNotFound)
	require.NoError(t, repo.DeleteExpense(ctx, expenses[0].ID))
}

// Rows sharing a timestamp must still come back in the same order.
func testRepeatedReadsAgree(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	session := newSession(t, repo, "2026-03-14", true)
	for _, name := range []string{"Un", "Kola", "Ayran", "Peynir"} {
		newStock(t, repo, name, 5)
	}
	for i, tableName := range []string{"Bahçe 1", "Bahçe 2", "Salon 1", "Salon 2"} {
		_, err := repo.CreateSale(ctx, domain.Sale{ID: xid.New(), SessionID: session.ID, Date: base, Total: money.FromInt(int64(i + 1))}, nil)
		require.NoError(t, err)
		table := newTable(t, repo, tableName, i+1)
		newOrder(t, repo, table.ID)
	}

	filter := domain.LedgerFilter{SessionID: session.ID}
	sales, err := repo.ListSales(ctx, filter)
	require.NoError(t, err)
	require.Len(t, sales, 4)
	again, err := repo.ListSales(ctx, filter)
	require.NoError(t, err)
	require.Equal(t, sales, again)

	stock, err := repo.ListStock(ctx)
	require.NoError(t, err)
	require.Len(t, stock, 4)
	stockAgain, err := repo.ListStock(ctx)
	require.NoError(t, err)
	require.Equal(t, stock, stockAgain)

	orders, err := repo.ListOrders(ctx, "")
	require.NoError(t, err)
	require.Len(t, orders, 4)
	ordersAgain, err := repo.ListOrders(ctx, "")
	require.NoError(t, err)
	require.Equal(t, orders, ordersAgain)
}

func testUsersAndRoles(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	role, err := repo.CreateRole(ctx, domain.Role{ID: xid.New(), Name: "garson", Permissions: rbac.NewSet(rbac.Orders, rbac.Kitchen), CreatedAt: base})
	require.NoError(t, err)
	_, err = repo.CreateRole(ctx, domain.Role{ID: xid.New(), Name: "Garson", Permissions: rbac.NewSet(), CreatedAt: base})
	require.ErrorIs(t, err, store.ErrConflict)

	byName, err := repo.GetRoleByName(ctx, "garson")
	require.NoError(t, err)
	require.True(t, byName.Permissions.Has(rbac.Kitchen))

	role.Permissions = rbac.NewSet(rbac.Orders)
	updated, err := repo.UpdateRole(ctx, *role)
	require.NoError(t, err)
	require.False(t, updated.Permissions.Has(rbac.Kitchen))

	user, err := repo.CreateUser(ctx, domain.UserAccount{ID: xid.New(), Username: " Ali ", Password: "hash", RoleID: role.ID, CreatedAt: base})
	require.NoError(t, err)
	require.Equal(t, "ali", user.Username)
	_, err = repo.CreateUser(ctx, domain.UserAccount{ID: xid.New(), Username: "ali", Password: "hash", RoleID: role.ID, CreatedAt: base})
	require.ErrorIs(t, err, store.ErrConflict)

	found, err := repo.GetUserByUsername(ctx, "ALI")
	require.NoError(t, err)
	require.Equal(t, user.ID, found.ID)

	require.NoError(t, repo.UpdateUserPassword(ctx, user.ID, "hash2"))
	reloaded, err := repo.GetUser(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, "hash2", reloaded.Password)

	require.ErrorIs(t, repo.DeleteRole(ctx, role.ID), store.ErrConflict)
	require.NoError(t, repo.DeleteUser(ctx, user.ID))
	require.NoError(t, repo.DeleteRole(ctx, role.ID))
	require.ErrorIs(t, repo.DeleteUser(ctx, user.ID), store.ErrNotFound)
}

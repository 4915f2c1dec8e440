package store

import (
	"context"
	"errors"
	"time"

	"pideci/backend/internal/domain"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
)

type SessionStore interface {
	ListSessions(ctx context.Context) ([]domain.BusinessSession, error)
	GetSession(ctx context.Context, id string) (*domain.BusinessSession, error)
	// GetActiveSession returns ErrNotFound when no session is active.
	GetActiveSession(ctx context.Context) (*domain.BusinessSession, error)
	// FindSessionByDate returns the newest session for the calendar day.
	FindSessionByDate(ctx context.Context, date string) (*domain.BusinessSession, error)
	// CreateSession deactivates every other session first when the new one is active.
	CreateSession(ctx context.Context, session domain.BusinessSession) (*domain.BusinessSession, error)
	ActivateSession(ctx context.Context, id string) (*domain.BusinessSession, error)
	// DeactivateSessions clears the active flag and returns how many rows changed.
	DeactivateSessions(ctx context.Context) (int, error)
	// DeleteSession removes a non-active session with its sales and expenses.
	DeleteSession(ctx context.Context, id string) error
}

type CatalogStore interface {
	ListCategories(ctx context.Context) ([]domain.Category, error)
	GetCategory(ctx context.Context, id string) (*domain.Category, error)
	CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error)
	UpdateCategory(ctx context.Context, category domain.Category) (*domain.Category, error)
	// DeleteCategory unlinks products and stock rows that reference it.
	DeleteCategory(ctx context.Context, id string) error

	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error
}

type StockStore interface {
	ListStock(ctx context.Context) ([]domain.Stock, error)
	GetStock(ctx context.Context, id string) (*domain.Stock, error)
	GetStockByName(ctx context.Context, name string) (*domain.Stock, error)
	UpsertStockByName(ctx context.Context, req domain.StockUpsertRequest, newID string) (*domain.Stock, error)
	UpdateStock(ctx context.Context, stock domain.Stock) (*domain.Stock, error)
	// AdjustStock adds delta to the quantity, clamping the result at zero.
	AdjustStock(ctx context.Context, id string, delta int) (*domain.StockAdjustResult, error)
	AdjustStockByName(ctx context.Context, name string, delta int) (*domain.StockAdjustResult, error)
	// DeleteStock unlinks products that deduct from the row.
	DeleteStock(ctx context.Context, id string) error
	ListLowStock(ctx context.Context) ([]domain.Stock, error)
}

type TableStore interface {
	ListTables(ctx context.Context) ([]domain.RestaurantTable, error)
	GetTable(ctx context.Context, id string) (*domain.RestaurantTable, error)
	CreateTable(ctx context.Context, table domain.RestaurantTable) (*domain.RestaurantTable, error)
	UpdateTable(ctx context.Context, table domain.RestaurantTable) (*domain.RestaurantTable, error)
	// DeleteTable returns ErrConflict while an occupying order exists.
	DeleteTable(ctx context.Context, id string) error
	NextOrderNumber(ctx context.Context) (int, error)
}

type OrderStore interface {
	// ListOrders returns every order, or only the table's when tableID is set.
	ListOrders(ctx context.Context, tableID string) ([]domain.Order, error)
	ListOrdersByStatus(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error)
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	GetOccupyingOrder(ctx context.Context, tableID string) (*domain.Order, error)
	// CreateOrder returns ErrConflict when the table is already occupied.
	CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error)
	// SetOrderStatus returns ErrInvalidState unless the order is currently in from.
	SetOrderStatus(ctx context.Context, id string, from, to domain.OrderStatus, at time.Time) (*domain.Order, error)
	DeleteOrder(ctx context.Context, id string) error

	ListOrderItems(ctx context.Context, orderID string) ([]domain.OrderItem, error)
	GetOrderItem(ctx context.Context, id string) (*domain.OrderItem, error)
	// Item mutations recompute the item total and the order total in one unit.
	AddOrderItem(ctx context.Context, item domain.OrderItem, at time.Time) (*domain.OrderItem, error)
	UpdateOrderItem(ctx context.Context, item domain.OrderItem, at time.Time) (*domain.OrderItem, error)
	DeleteOrderItem(ctx context.Context, id string, at time.Time) error

	// CloseOrder converts a completed order into a sale under sale.SessionID,
	// deducts linked stock and deletes the order, all or nothing.
	CloseOrder(ctx context.Context, orderID string, sale domain.Sale) (*domain.SaleReceipt, error)
}

type SaleStore interface {
	ListSales(ctx context.Context, filter domain.LedgerFilter) ([]domain.Sale, error)
	GetSale(ctx context.Context, id string) (*domain.Sale, error)
	ListSaleItems(ctx context.Context, saleID string) ([]domain.SaleItem, error)
	ListSaleLines(ctx context.Context) ([]domain.SaleLine, error)
	// CreateSale persists the sale and its items and deducts linked stock in one unit.
	CreateSale(ctx context.Context, sale domain.Sale, items []domain.SaleItem) (*domain.SaleReceipt, error)
	DeleteSale(ctx context.Context, id string) error

	ListExpenses(ctx context.Context, filter domain.LedgerFilter) ([]domain.Expense, error)
	GetExpense(ctx context.Context, id string) (*domain.Expense, error)
	CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error)
	DeleteExpense(ctx context.Context, id string) error
}

type UserStore interface {
	ListRoles(ctx context.Context) ([]domain.Role, error)
	GetRole(ctx context.Context, id string) (*domain.Role, error)
	GetRoleByName(ctx context.Context, name string) (*domain.Role, error)
	CreateRole(ctx context.Context, role domain.Role) (*domain.Role, error)
	UpdateRole(ctx context.Context, role domain.Role) (*domain.Role, error)
	// DeleteRole returns ErrConflict while users hold the role.
	DeleteRole(ctx context.Context, id string) error

	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	GetUser(ctx context.Context, id string) (*domain.UserAccount, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error)
	CreateUser(ctx context.Context, user domain.UserAccount) (*domain.UserAccount, error)
	DeleteUser(ctx context.Context, id string) error
	UpdateUserPassword(ctx context.Context, id string, password string) error
}

type Repository interface {
	SessionStore
	CatalogStore
	StockStore
	TableStore
	OrderStore
	SaleStore
	UserStore
}

// ApplyDelta adds delta to a stock quantity with the zero floor every
// deduction path shares. short is how many units could not be covered.
func ApplyDelta(quantity, delta int) (next int, short int) {
	next = quantity + delta
	if next < 0 {
		return 0, -next
	}
	return next, 0
}

// Deduction is a pending stock decrement collected from sale lines.
type Deduction struct {
	StockItemID string
	Quantity    int
}

// CollectDeductions sums sold quantities per linked stock row, preserving
// first-seen order. Products without a stock link are skipped.
func CollectDeductions(items []domain.SaleItem, products map[string]domain.Product) []Deduction {
	index := make(map[string]int)
	out := make([]Deduction, 0, len(items))
	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok || product.StockItemID == nil || *product.StockItemID == "" {
			continue
		}
		stockID := *product.StockItemID
		if i, seen := index[stockID]; seen {
			out[i].Quantity += item.Quantity
			continue
		}
		index[stockID] = len(out)
		out = append(out, Deduction{StockItemID: stockID, Quantity: item.Quantity})
	}
	return out
}

// Warning builds the warning for a clamped deduction, or nil when covered.
func Warning(stock domain.Stock, requested, short int) *domain.StockWarning {
	if short <= 0 {
		return nil
	}
	return &domain.StockWarning{
		StockItemID: stock.ID,
		Name:        stock.Name,
		Requested:   requested,
		Available:   requested - short,
	}
}

package domain

import (
	"time"

	"pideci/backend/internal/money"
	"pideci/backend/internal/rbac"
)

// DateLayout is the calendar-day format used for business sessions.
const DateLayout = "2006-01-02"

type BusinessSession struct {
	ID        string    `json:"id"`
	Date      string    `json:"date"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

type SessionCreateRequest struct {
	Date     string `json:"date" validate:"required,datetime=2006-01-02"`
	Name     string `json:"name" validate:"required,max=120"`
	IsActive bool   `json:"isActive"`
}

type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type CategoryRequest struct {
	Name string `json:"name" validate:"required,max=120"`
}

type Product struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Price       money.Amount `json:"price"`
	CategoryID  *string      `json:"categoryId"`
	StockItemID *string      `json:"stockItemId"`
}

type ProductCreateRequest struct {
	Name        string       `json:"name" validate:"required,max=120"`
	Price       money.Amount `json:"price"`
	CategoryID  *string      `json:"categoryId"`
	StockItemID *string      `json:"stockItemId"`
}

type ProductPatch struct {
	Name        Optional[string]       `json:"name"`
	Price       Optional[money.Amount] `json:"price"`
	CategoryID  Optional[string]       `json:"categoryId"`
	StockItemID Optional[string]       `json:"stockItemId"`
}

type Stock struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	Quantity       int           `json:"quantity"`
	Price          *money.Amount `json:"price"`
	CategoryID     *string       `json:"categoryId"`
	AlertThreshold *int          `json:"alertThreshold"`
}

// LowStock reports whether the row is at or below a positive alert threshold.
func (s Stock) LowStock() bool {
	return s.AlertThreshold != nil && *s.AlertThreshold > 0 && s.Quantity <= *s.AlertThreshold
}

// StockUpsertRequest adds Quantity to the row named Name, creating it when
// missing. Optional fields overlay the existing row when provided.
type StockUpsertRequest struct {
	Name           string        `json:"name" validate:"required,max=120"`
	Quantity       int           `json:"quantity"`
	Price          *money.Amount `json:"price"`
	CategoryID     *string       `json:"categoryId"`
	AlertThreshold *int          `json:"alertThreshold" validate:"omitempty,gte=0"`
}

type StockPatch struct {
	Name           Optional[string]       `json:"name"`
	Quantity       Optional[int]          `json:"quantity"`
	Price          Optional[money.Amount] `json:"price"`
	CategoryID     Optional[string]       `json:"categoryId"`
	AlertThreshold Optional[int]          `json:"alertThreshold"`
}

type StockAdjustRequest struct {
	Name  string `json:"name"`
	Delta int    `json:"delta"`
}

// StockWarning is raised when a deduction asked for more than was on hand.
// The row is clamped at zero.
type StockWarning struct {
	StockItemID string `json:"stockItemId"`
	Name        string `json:"name"`
	Requested   int    `json:"requested"`
	Available   int    `json:"available"`
}

type StockAdjustResult struct {
	Stock   Stock         `json:"stock"`
	Warning *StockWarning `json:"warning,omitempty"`
}

type RestaurantTable struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	OrderNumber int       `json:"orderNumber"`
	CreatedAt   time.Time `json:"createdAt"`
}

type TableCreateRequest struct {
	Name        string `json:"name" validate:"required,max=60"`
	OrderNumber int    `json:"orderNumber" validate:"gte=0"`
}

type TablePatch struct {
	Name        Optional[string] `json:"name"`
	OrderNumber Optional[int]    `json:"orderNumber"`
}

type OrderStatus string

const (
	OrderActive    OrderStatus = "active"
	OrderCompleted OrderStatus = "completed"
)

// Occupying reports whether an order in this status blocks its table.
func (s OrderStatus) Occupying() bool {
	return s == OrderActive || s == OrderCompleted
}

type Order struct {
	ID        string       `json:"id"`
	TableID   string       `json:"tableId"`
	Status    OrderStatus  `json:"status"`
	Total     money.Amount `json:"total"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

type OrderItem struct {
	ID          string       `json:"id"`
	OrderID     string       `json:"orderId"`
	ProductID   string       `json:"productId"`
	ProductName string       `json:"productName"`
	Quantity    int          `json:"quantity"`
	Price       money.Amount `json:"price"`
	Total       money.Amount `json:"total"`
}

type OrderCreateRequest struct {
	TableID string `json:"tableId" validate:"required"`
}

type OrderPatch struct {
	Status Optional[OrderStatus] `json:"status"`
}

type OrderItemCreateRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

type OrderItemPatch struct {
	Quantity Optional[int]          `json:"quantity"`
	Price    Optional[money.Amount] `json:"price"`
}

type KitchenOrder struct {
	Order Order            `json:"order"`
	Table *RestaurantTable `json:"table"`
	Items []OrderItem      `json:"items"`
}

type Sale struct {
	ID        string       `json:"id"`
	SessionID string       `json:"sessionId"`
	Date      time.Time    `json:"date"`
	Total     money.Amount `json:"total"`
}

type SaleItem struct {
	ID          string       `json:"id"`
	SaleID      string       `json:"saleId"`
	ProductID   string       `json:"productId"`
	ProductName string       `json:"productName"`
	Quantity    int          `json:"quantity"`
	Price       money.Amount `json:"price"`
	Total       money.Amount `json:"total"`
}

type SaleLineRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

type SaleCreateRequest struct {
	Items []SaleLineRequest `json:"items" validate:"required,min=1,dive"`
}

// SaleReceipt is what a recorded sale hands back: the sale, its frozen lines
// and any stock rows that could not cover the sold quantity.
type SaleReceipt struct {
	Sale          Sale           `json:"sale"`
	Items         []SaleItem     `json:"items"`
	StockWarnings []StockWarning `json:"stockWarnings"`
}

type CloseBillResult struct {
	Success       bool           `json:"success"`
	Sale          Sale           `json:"sale"`
	Items         []SaleItem     `json:"items"`
	StockWarnings []StockWarning `json:"stockWarnings"`
}

// SaleLine is a sale item joined with its sale's timestamp.
type SaleLine struct {
	SaleItem
	SaleDate time.Time
}

// LedgerFilter narrows sales and expenses to a session and an optional time
// window. Zero From/To leave that side open.
type LedgerFilter struct {
	SessionID string
	From      time.Time
	To        time.Time
}

func (f LedgerFilter) Contains(at time.Time) bool {
	if !f.From.IsZero() && at.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && at.After(f.To) {
		return false
	}
	return true
}

type Expense struct {
	ID        string       `json:"id"`
	SessionID string       `json:"sessionId"`
	Date      time.Time    `json:"date"`
	Category  string       `json:"category"`
	Amount    money.Amount `json:"amount"`
}

type ExpenseCreateRequest struct {
	Category string       `json:"category" validate:"required,max=120"`
	Amount   money.Amount `json:"amount"`
}

type ProductStat struct {
	ProductID   string       `json:"productId"`
	ProductName string       `json:"productName"`
	Quantity    int          `json:"quantity"`
	Revenue     money.Amount `json:"revenue"`
}

type SalesStatistics struct {
	BestSelling       *ProductStat  `json:"bestSelling"`
	LeastSelling      *ProductStat  `json:"leastSelling"`
	TodaysMostPopular *ProductStat  `json:"todaysMostPopular"`
	AllProducts       []ProductStat `json:"allProducts"`
}

type DashboardSummary struct {
	Session       *BusinessSession `json:"session"`
	SaleCount     int              `json:"saleCount"`
	SalesTotal    money.Amount     `json:"salesTotal"`
	ExpensesTotal money.Amount     `json:"expensesTotal"`
	NetProfit     money.Amount     `json:"netProfit"`
	LowStockCount int              `json:"lowStockCount"`
	ActiveOrders  int              `json:"activeOrders"`
}

type Role struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Permissions rbac.Set  `json:"permissions"`
	CreatedAt   time.Time `json:"createdAt"`
}

type RoleRequest struct {
	Name        string   `json:"name" validate:"required,max=60"`
	Description string   `json:"description" validate:"max=255"`
	Permissions []string `json:"permissions"`
}

type RolePatch struct {
	Name        Optional[string]   `json:"name"`
	Description Optional[string]   `json:"description"`
	Permissions Optional[[]string] `json:"permissions"`
}

// UserAccount is the persistence model for credentials. The password hash
// never leaves the process.
type UserAccount struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Password  string    `json:"-"`
	RoleID    string    `json:"roleId"`
	CreatedAt time.Time `json:"createdAt"`
}

type UserCreateRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	RoleID   string `json:"roleId" validate:"required"`
}

type UserProfile struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	RoleID      string    `json:"roleId"`
	Role        string    `json:"role"`
	Permissions rbac.Set  `json:"permissions"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (p UserProfile) Actor() Actor {
	return Actor{UserID: p.ID, Username: p.Username, Role: p.Role, Permissions: p.Permissions}
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string      `json:"accessToken"`
	ExpiresAt   string      `json:"expiresAt"`
	User        UserProfile `json:"user"`
}

// Actor is the authenticated caller attached to a request context.
type Actor struct {
	UserID      string
	Username    string
	Role        string
	Permissions rbac.Set
}

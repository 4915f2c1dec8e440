package sqlite

import (
	"encoding/json"
	"time"

	"pideci/backend/internal/domain"
	"pideci/backend/internal/money"
	"pideci/backend/internal/rbac"
)

type sessionRow struct {
	ID        string `gorm:"primaryKey;size:36"`
	Date      string `gorm:"size:10;not null;index"`
	Name      string `gorm:"not null"`
	IsActive  bool   `gorm:"not null;index"`
	CreatedAt time.Time
}

func (sessionRow) TableName() string { return "business_sessions" }

func (r sessionRow) toDomain() domain.BusinessSession {
	return domain.BusinessSession{ID: r.ID, Date: r.Date, Name: r.Name, IsActive: r.IsActive, CreatedAt: r.CreatedAt}
}

type categoryRow struct {
	ID        string `gorm:"primaryKey;size:36"`
	Name      string `gorm:"not null"`
	CreatedAt time.Time
}

func (categoryRow) TableName() string { return "categories" }

func (r categoryRow) toDomain() domain.Category {
	return domain.Category{ID: r.ID, Name: r.Name, CreatedAt: r.CreatedAt}
}

type productRow struct {
	ID          string       `gorm:"primaryKey;size:36"`
	Name        string       `gorm:"not null"`
	Price       money.Amount `gorm:"type:text;not null"`
	CategoryID  *string      `gorm:"size:36;index"`
	StockItemID *string      `gorm:"size:36;index"`
}

func (productRow) TableName() string { return "products" }

func (r productRow) toDomain() domain.Product {
	return domain.Product{ID: r.ID, Name: r.Name, Price: r.Price, CategoryID: r.CategoryID, StockItemID: r.StockItemID}
}

func productFromDomain(p domain.Product) productRow {
	return productRow{ID: p.ID, Name: p.Name, Price: p.Price, CategoryID: p.CategoryID, StockItemID: p.StockItemID}
}

type stockRow struct {
	ID             string        `gorm:"primaryKey;size:36"`
	Name           string        `gorm:"not null;uniqueIndex"`
	Quantity       int           `gorm:"not null"`
	Price          *money.Amount `gorm:"type:text"`
	CategoryID     *string       `gorm:"size:36;index"`
	AlertThreshold *int
}

func (stockRow) TableName() string { return "stock" }

func (r stockRow) toDomain() domain.Stock {
	return domain.Stock{
		ID:             r.ID,
		Name:           r.Name,
		Quantity:       r.Quantity,
		Price:          r.Price,
		CategoryID:     r.CategoryID,
		AlertThreshold: r.AlertThreshold,
	}
}

func stockFromDomain(s domain.Stock) stockRow {
	return stockRow{
		ID:             s.ID,
		Name:           s.Name,
		Quantity:       s.Quantity,
		Price:          s.Price,
		CategoryID:     s.CategoryID,
		AlertThreshold: s.AlertThreshold,
	}
}

type tableRow struct {
	ID          string `gorm:"primaryKey;size:36"`
	Name        string `gorm:"not null"`
	OrderNumber int    `gorm:"not null"`
	CreatedAt   time.Time
}

func (tableRow) TableName() string { return "restaurant_tables" }

func (r tableRow) toDomain() domain.RestaurantTable {
	return domain.RestaurantTable{ID: r.ID, Name: r.Name, OrderNumber: r.OrderNumber, CreatedAt: r.CreatedAt}
}

type orderRow struct {
	ID        string       `gorm:"primaryKey;size:36"`
	TableID   string       `gorm:"size:36;not null;index"`
	Status    string       `gorm:"size:16;not null;index"`
	Total     money.Amount `gorm:"type:text;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (orderRow) TableName() string { return "orders" }

func (r orderRow) toDomain() domain.Order {
	return domain.Order{
		ID:        r.ID,
		TableID:   r.TableID,
		Status:    domain.OrderStatus(r.Status),
		Total:     r.Total,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

type orderItemRow struct {
	ID          string       `gorm:"primaryKey;size:36"`
	OrderID     string       `gorm:"size:36;not null;index"`
	ProductID   string       `gorm:"size:36;not null"`
	ProductName string       `gorm:"not null"`
	Quantity    int          `gorm:"not null"`
	Price       money.Amount `gorm:"type:text;not null"`
	Total       money.Amount `gorm:"type:text;not null"`
}

func (orderItemRow) TableName() string { return "order_items" }

func (r orderItemRow) toDomain() domain.OrderItem {
	return domain.OrderItem{
		ID:          r.ID,
		OrderID:     r.OrderID,
		ProductID:   r.ProductID,
		ProductName: r.ProductName,
		Quantity:    r.Quantity,
		Price:       r.Price,
		Total:       r.Total,
	}
}

type saleRow struct {
	ID        string       `gorm:"primaryKey;size:36"`
	SessionID string       `gorm:"size:36;not null;index"`
	Date      time.Time    `gorm:"not null;index"`
	Total     money.Amount `gorm:"type:text;not null"`
}

func (saleRow) TableName() string { return "sales" }

func (r saleRow) toDomain() domain.Sale {
	return domain.Sale{ID: r.ID, SessionID: r.SessionID, Date: r.Date, Total: r.Total}
}

type saleItemRow struct {
	ID          string       `gorm:"primaryKey;size:36"`
	SaleID      string       `gorm:"size:36;not null;index"`
	ProductID   string       `gorm:"size:36;not null"`
	ProductName string       `gorm:"not null"`
	Quantity    int          `gorm:"not null"`
	Price       money.Amount `gorm:"type:text;not null"`
	Total       money.Amount `gorm:"type:text;not null"`
}

func (saleItemRow) TableName() string { return "sale_items" }

func (r saleItemRow) toDomain() domain.SaleItem {
	return domain.SaleItem{
		ID:          r.ID,
		SaleID:      r.SaleID,
		ProductID:   r.ProductID,
		ProductName: r.ProductName,
		Quantity:    r.Quantity,
		Price:       r.Price,
		Total:       r.Total,
	}
}

func saleItemFromDomain(i domain.SaleItem) saleItemRow {
	return saleItemRow{
		ID:          i.ID,
		SaleID:      i.SaleID,
		ProductID:   i.ProductID,
		ProductName: i.ProductName,
		Quantity:    i.Quantity,
		Price:       i.Price,
		Total:       i.Total,
	}
}

type expenseRow struct {
	ID        string       `gorm:"primaryKey;size:36"`
	SessionID string       `gorm:"size:36;not null;index"`
	Date      time.Time    `gorm:"not null;index"`
	Category  string       `gorm:"not null"`
	Amount    money.Amount `gorm:"type:text;not null"`
}

func (expenseRow) TableName() string { return "expenses" }

func (r expenseRow) toDomain() domain.Expense {
	return domain.Expense{ID: r.ID, SessionID: r.SessionID, Date: r.Date, Category: r.Category, Amount: r.Amount}
}

type roleRow struct {
	ID          string `gorm:"primaryKey;size:36"`
	Name        string `gorm:"not null"`
	Description string `gorm:"not null;default:''"`
	Permissions string `gorm:"type:text;not null"`
	CreatedAt   time.Time
}

func (roleRow) TableName() string { return "roles" }

func (r roleRow) toDomain() (domain.Role, error) {
	perms := rbac.NewSet()
	if r.Permissions != "" {
		if err := json.Unmarshal([]byte(r.Permissions), &perms); err != nil {
			return domain.Role{}, err
		}
	}
	return domain.Role{ID: r.ID, Name: r.Name, Description: r.Description, Permissions: perms, CreatedAt: r.CreatedAt}, nil
}

func roleFromDomain(role domain.Role) (roleRow, error) {
	perms, err := json.Marshal(role.Permissions)
	if err != nil {
		return roleRow{}, err
	}
	return roleRow{
		ID:          role.ID,
		Name:        role.Name,
		Description: role.Description,
		Permissions: string(perms),
		CreatedAt:   utc(role.CreatedAt),
	}, nil
}

type userRow struct {
	ID        string `gorm:"primaryKey;size:36"`
	Username  string `gorm:"not null;uniqueIndex"`
	Password  string `gorm:"not null"`
	RoleID    string `gorm:"size:36;not null;index"`
	CreatedAt time.Time
}

func (userRow) TableName() string { return "users" }

func (r userRow) toDomain() domain.UserAccount {
	return domain.UserAccount{ID: r.ID, Username: r.Username, Password: r.Password, RoleID: r.RoleID, CreatedAt: r.CreatedAt}
}

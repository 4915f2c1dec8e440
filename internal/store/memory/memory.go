package memory

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"pideci/backend/internal/domain"
	"pideci/backend/internal/money"
	"pideci/backend/internal/store"
	"pideci/backend/internal/xid"
)

// Store keeps everything in maps behind one mutex. Every multi-step
// operation runs inside a single critical section, which gives it the same
// all-or-nothing behaviour the SQL stores get from transactions.
type Store struct {
	mu         sync.RWMutex
	sessions   map[string]domain.BusinessSession
	categories map[string]domain.Category
	products   map[string]domain.Product
	stock      map[string]domain.Stock
	tables     map[string]domain.RestaurantTable
	orders     map[string]domain.Order
	orderItems map[string][]domain.OrderItem
	itemOrder  map[string]string
	sales      map[string]domain.Sale
	saleItems  map[string][]domain.SaleItem
	expenses   map[string]domain.Expense
	roles      map[string]domain.Role
	users      map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		sessions:   make(map[string]domain.BusinessSession),
		categories: make(map[string]domain.Category),
		products:   make(map[string]domain.Product),
		stock:      make(map[string]domain.Stock),
		tables:     make(map[string]domain.RestaurantTable),
		orders:     make(map[string]domain.Order),
		orderItems: make(map[string][]domain.OrderItem),
		itemOrder:  make(map[string]string),
		sales:      make(map[string]domain.Sale),
		saleItems:  make(map[string][]domain.SaleItem),
		expenses:   make(map[string]domain.Expense),
		roles:      make(map[string]domain.Role),
		users:      make(map[string]domain.UserAccount),
	}
}

func (s *Store) Close() error {
	return nil
}

// Sessions

func (s *Store) ListSessions(_ context.Context) ([]domain.BusinessSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := slices.Collect(maps.Values(s.sessions))
	slices.SortFunc(sessions, newestSessionFirst)
	return sessions, nil
}

func newestSessionFirst(a, b domain.BusinessSession) int {
	if c := cmp.Compare(b.Date, a.Date); c != 0 {
		return c
	}
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(b.ID, a.ID)
}

func (s *Store) GetSession(_ context.Context, id string) (*domain.BusinessSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &session, nil
}

func (s *Store) GetActiveSession(_ context.Context) (*domain.BusinessSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, session := range s.sessions {
		if session.IsActive {
			return &session, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) FindSessionByDate(_ context.Context, date string) (*domain.BusinessSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *domain.BusinessSession
	for _, session := range s.sessions {
		if session.Date != date {
			continue
		}
		if found == nil || newestSessionFirst(session, *found) < 0 {
			candidate := session
			found = &candidate
		}
	}
	if found == nil {
		return nil, store.ErrNotFound
	}
	return found, nil
}

func (s *Store) CreateSession(_ context.Context, session domain.BusinessSession) (*domain.BusinessSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session.ID == "" {
		session.ID = xid.New()
	}
	if session.IsActive {
		s.deactivateLocked()
	}
	s.sessions[session.ID] = session
	return &session, nil
}

func (s *Store) ActivateSession(_ context.Context, id string) (*domain.BusinessSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	s.deactivateLocked()
	session.IsActive = true
	s.sessions[id] = session
	return &session, nil
}

func (s *Store) DeactivateSessions(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.deactivateLocked(), nil
}

func (s *Store) deactivateLocked() int {
	changed := 0
	for id, session := range s.sessions {
		if session.IsActive {
			session.IsActive = false
			s.sessions[id] = session
			changed++
		}
	}
	return changed
}

func (s *Store) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return store.ErrNotFound
	}
	if session.IsActive {
		return store.ErrInvalidState
	}
	for saleID, sale := range s.sales {
		if sale.SessionID == id {
			delete(s.sales, saleID)
			delete(s.saleItems, saleID)
		}
	}
	for expenseID, expense := range s.expenses {
		if expense.SessionID == id {
			delete(s.expenses, expenseID)
		}
	}
	delete(s.sessions, id)
	return nil
}

// Categories

func (s *Store) ListCategories(_ context.Context) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	categories := slices.Collect(maps.Values(s.categories))
	slices.SortFunc(categories, func(a, b domain.Category) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return categories, nil
}

func (s *Store) GetCategory(_ context.Context, id string) (*domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	category, ok := s.categories[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &category, nil
}

func (s *Store) CreateCategory(_ context.Context, category domain.Category) (*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.categoryNameTakenLocked(category.Name, "") {
		return nil, store.ErrConflict
	}
	if category.ID == "" {
		category.ID = xid.New()
	}
	s.categories[category.ID] = category
	return &category, nil
}

func (s *Store) UpdateCategory(_ context.Context, category domain.Category) (*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.categories[category.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if s.categoryNameTakenLocked(category.Name, category.ID) {
		return nil, store.ErrConflict
	}
	existing.Name = category.Name
	s.categories[category.ID] = existing
	return &existing, nil
}

func (s *Store) categoryNameTakenLocked(name, exceptID string) bool {
	for id, c := range s.categories {
		if id != exceptID && strings.EqualFold(c.Name, name) {
			return true
		}
	}
	return false
}

func (s *Store) DeleteCategory(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[id]; !ok {
		return store.ErrNotFound
	}
	for pid, p := range s.products {
		if p.CategoryID != nil && *p.CategoryID == id {
			p.CategoryID = nil
			s.products[pid] = p
		}
	}
	for sid, row := range s.stock {
		if row.CategoryID != nil && *row.CategoryID == id {
			row.CategoryID = nil
			s.stock[sid] = row
		}
	}
	delete(s.categories, id)
	return nil
}

// Products

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := slices.Collect(maps.Values(s.products))
	slices.SortFunc(products, func(a, b domain.Product) int {
		if c := cmp.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return products, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &product, nil
}

func (s *Store) GetProductsByIDs(_ context.Context, ids []string) (map[string]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	found := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			found[id] = p
		}
	}
	return found, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkProductRefsLocked(product); err != nil {
		return nil, err
	}
	if product.ID == "" {
		product.ID = xid.New()
	}
	s.products[product.ID] = product
	return &product, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[product.ID]; !ok {
		return nil, store.ErrNotFound
	}
	if err := s.checkProductRefsLocked(product); err != nil {
		return nil, err
	}
	s.products[product.ID] = product
	return &product, nil
}

func (s *Store) checkProductRefsLocked(product domain.Product) error {
	if product.CategoryID != nil {
		if _, ok := s.categories[*product.CategoryID]; !ok {
			return store.ErrNotFound
		}
	}
	if product.StockItemID != nil {
		if _, ok := s.stock[*product.StockItemID]; !ok {
			return store.ErrNotFound
		}
	}
	return nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.products, id)
	return nil
}

// Stock

func (s *Store) ListStock(_ context.Context) ([]domain.Stock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := slices.Collect(maps.Values(s.stock))
	slices.SortFunc(rows, func(a, b domain.Stock) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return rows, nil
}

func (s *Store) GetStock(_ context.Context, id string) (*domain.Stock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.stock[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &row, nil
}

func (s *Store) GetStockByName(_ context.Context, name string) (*domain.Stock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.stockByNameLocked(name)
	if !ok {
		return nil, store.ErrNotFound
	}
	return &row, nil
}

func (s *Store) stockByNameLocked(name string) (domain.Stock, bool) {
	for _, row := range s.stock {
		if row.Name == name {
			return row, true
		}
	}
	return domain.Stock{}, false
}

func (s *Store) UpsertStockByName(_ context.Context, req domain.StockUpsertRequest, newID string) (*domain.Stock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.CategoryID != nil {
		if _, ok := s.categories[*req.CategoryID]; !ok {
			return nil, store.ErrNotFound
		}
	}

	row, exists := s.stockByNameLocked(req.Name)
	if !exists {
		if newID == "" {
			newID = xid.New()
		}
		row = domain.Stock{ID: newID, Name: req.Name}
	}
	row.Quantity, _ = store.ApplyDelta(row.Quantity, req.Quantity)
	if req.Price != nil {
		price := *req.Price
		row.Price = &price
	}
	if req.CategoryID != nil {
		categoryID := *req.CategoryID
		row.CategoryID = &categoryID
	}
	if req.AlertThreshold != nil {
		threshold := *req.AlertThreshold
		row.AlertThreshold = &threshold
	}
	s.stock[row.ID] = row
	return &row, nil
}

func (s *Store) UpdateStock(_ context.Context, row domain.Stock) (*domain.Stock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.stock[row.ID]; !ok {
		return nil, store.ErrNotFound
	}
	if other, ok := s.stockByNameLocked(row.Name); ok && other.ID != row.ID {
		return nil, store.ErrConflict
	}
	if row.CategoryID != nil {
		if _, ok := s.categories[*row.CategoryID]; !ok {
			return nil, store.ErrNotFound
		}
	}
	s.stock[row.ID] = row
	return &row, nil
}

func (s *Store) AdjustStock(_ context.Context, id string, delta int) (*domain.StockAdjustResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.stock[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return s.adjustLocked(row, delta), nil
}

func (s *Store) AdjustStockByName(_ context.Context, name string, delta int) (*domain.StockAdjustResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.stockByNameLocked(name)
	if !ok {
		return nil, store.ErrNotFound
	}
	return s.adjustLocked(row, delta), nil
}

func (s *Store) adjustLocked(row domain.Stock, delta int) *domain.StockAdjustResult {
	next, short := store.ApplyDelta(row.Quantity, delta)
	warning := store.Warning(row, -delta, short)
	row.Quantity = next
	s.stock[row.ID] = row
	return &domain.StockAdjustResult{Stock: row, Warning: warning}
}

func (s *Store) DeleteStock(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.stock[id]; !ok {
		return store.ErrNotFound
	}
	for pid, p := range s.products {
		if p.StockItemID != nil && *p.StockItemID == id {
			p.StockItemID = nil
			s.products[pid] = p
		}
	}
	delete(s.stock, id)
	return nil
}

func (s *Store) ListLowStock(_ context.Context) ([]domain.Stock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	low := make([]domain.Stock, 0)
	for _, row := range s.stock {
		if row.LowStock() {
			low = append(low, row)
		}
	}
	slices.SortFunc(low, func(a, b domain.Stock) int {
		if c := cmp.Compare(a.Quantity, b.Quantity); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return low, nil
}

// deductLocked applies the sale's stock effect. Rows that were deleted since
// the product was linked are skipped.
func (s *Store) deductLocked(items []domain.SaleItem) []domain.StockWarning {
	warnings := make([]domain.StockWarning, 0)
	for _, d := range store.CollectDeductions(items, s.products) {
		row, ok := s.stock[d.StockItemID]
		if !ok {
			continue
		}
		next, short := store.ApplyDelta(row.Quantity, -d.Quantity)
		if w := store.Warning(row, d.Quantity, short); w != nil {
			warnings = append(warnings, *w)
		}
		row.Quantity = next
		s.stock[row.ID] = row
	}
	return warnings
}

// Tables

func (s *Store) ListTables(_ context.Context) ([]domain.RestaurantTable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tables := slices.Collect(maps.Values(s.tables))
	slices.SortFunc(tables, func(a, b domain.RestaurantTable) int {
		if c := cmp.Compare(a.OrderNumber, b.OrderNumber); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return tables, nil
}

func (s *Store) GetTable(_ context.Context, id string) (*domain.RestaurantTable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	table, ok := s.tables[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &table, nil
}

func (s *Store) CreateTable(_ context.Context, table domain.RestaurantTable) (*domain.RestaurantTable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if table.ID == "" {
		table.ID = xid.New()
	}
	s.tables[table.ID] = table
	return &table, nil
}

func (s *Store) UpdateTable(_ context.Context, table domain.RestaurantTable) (*domain.RestaurantTable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tables[table.ID]; !ok {
		return nil, store.ErrNotFound
	}
	s.tables[table.ID] = table
	return &table, nil
}

func (s *Store) DeleteTable(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tables[id]; !ok {
		return store.ErrNotFound
	}
	if _, occupied := s.occupyingLocked(id); occupied {
		return store.ErrConflict
	}
	delete(s.tables, id)
	return nil
}

func (s *Store) NextOrderNumber(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	next := 1
	for _, t := range s.tables {
		if t.OrderNumber >= next {
			next = t.OrderNumber + 1
		}
	}
	return next, nil
}

// Orders

func (s *Store) ListOrders(_ context.Context, tableID string) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := make([]domain.Order, 0, len(s.orders))
	for _, o := range s.orders {
		if tableID == "" || o.TableID == tableID {
			orders = append(orders, o)
		}
	}
	slices.SortFunc(orders, newestOrderFirst)
	return orders, nil
}

func (s *Store) ListOrdersByStatus(_ context.Context, status domain.OrderStatus) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := make([]domain.Order, 0)
	for _, o := range s.orders {
		if o.Status == status {
			orders = append(orders, o)
		}
	}
	// Oldest first so the kitchen works the queue in arrival order.
	slices.SortFunc(orders, func(a, b domain.Order) int { return newestOrderFirst(b, a) })
	return orders, nil
}

func newestOrderFirst(a, b domain.Order) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(b.ID, a.ID)
}

func (s *Store) GetOrder(_ context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &order, nil
}

func (s *Store) GetOccupyingOrder(_ context.Context, tableID string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.occupyingLocked(tableID)
	if !ok {
		return nil, store.ErrNotFound
	}
	return &order, nil
}

func (s *Store) occupyingLocked(tableID string) (domain.Order, bool) {
	for _, o := range s.orders {
		if o.TableID == tableID && o.Status.Occupying() {
			return o, true
		}
	}
	return domain.Order{}, false
}

func (s *Store) CreateOrder(_ context.Context, order domain.Order) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tables[order.TableID]; !ok {
		return nil, store.ErrNotFound
	}
	if _, occupied := s.occupyingLocked(order.TableID); occupied {
		return nil, store.ErrConflict
	}
	if order.ID == "" {
		order.ID = xid.New()
	}
	order.Total = money.Zero
	s.orders[order.ID] = order
	s.orderItems[order.ID] = nil
	return &order, nil
}

func (s *Store) SetOrderStatus(_ context.Context, id string, from, to domain.OrderStatus, at time.Time) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if order.Status != from {
		return nil, store.ErrInvalidState
	}
	order.Status = to
	order.UpdatedAt = at
	s.orders[id] = order
	return &order, nil
}

func (s *Store) DeleteOrder(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[id]; !ok {
		return store.ErrNotFound
	}
	s.deleteOrderLocked(id)
	return nil
}

func (s *Store) deleteOrderLocked(id string) {
	for _, item := range s.orderItems[id] {
		delete(s.itemOrder, item.ID)
	}
	delete(s.orderItems, id)
	delete(s.orders, id)
}

func (s *Store) ListOrderItems(_ context.Context, orderID string) ([]domain.OrderItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.orders[orderID]; !ok {
		return nil, store.ErrNotFound
	}
	return append([]domain.OrderItem{}, s.orderItems[orderID]...), nil
}

func (s *Store) GetOrderItem(_ context.Context, id string) (*domain.OrderItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, _, ok := s.findItemLocked(id)
	if !ok {
		return nil, store.ErrNotFound
	}
	return &item, nil
}

func (s *Store) findItemLocked(id string) (domain.OrderItem, int, bool) {
	orderID, ok := s.itemOrder[id]
	if !ok {
		return domain.OrderItem{}, -1, false
	}
	for i, item := range s.orderItems[orderID] {
		if item.ID == id {
			return item, i, true
		}
	}
	return domain.OrderItem{}, -1, false
}

func (s *Store) AddOrderItem(_ context.Context, item domain.OrderItem, at time.Time) (*domain.OrderItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[item.OrderID]; !ok {
		return nil, store.ErrNotFound
	}
	if item.ID == "" {
		item.ID = xid.New()
	}
	item.Total = item.Price.Mul(item.Quantity)
	s.orderItems[item.OrderID] = append(s.orderItems[item.OrderID], item)
	s.itemOrder[item.ID] = item.OrderID
	s.recomputeLocked(item.OrderID, at)
	return &item, nil
}

func (s *Store) UpdateOrderItem(_ context.Context, item domain.OrderItem, at time.Time) (*domain.OrderItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, idx, ok := s.findItemLocked(item.ID)
	if !ok {
		return nil, store.ErrNotFound
	}
	existing.Quantity = item.Quantity
	existing.Price = item.Price
	existing.Total = existing.Price.Mul(existing.Quantity)
	s.orderItems[existing.OrderID][idx] = existing
	s.recomputeLocked(existing.OrderID, at)
	return &existing, nil
}

func (s *Store) DeleteOrderItem(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, idx, ok := s.findItemLocked(id)
	if !ok {
		return store.ErrNotFound
	}
	s.orderItems[existing.OrderID] = slices.Delete(s.orderItems[existing.OrderID], idx, idx+1)
	delete(s.itemOrder, id)
	s.recomputeLocked(existing.OrderID, at)
	return nil
}

func (s *Store) recomputeLocked(orderID string, at time.Time) {
	order := s.orders[orderID]
	total := money.Zero
	for _, item := range s.orderItems[orderID] {
		total = total.Add(item.Total)
	}
	order.Total = total
	order.UpdatedAt = at
	s.orders[orderID] = order
}

func (s *Store) CloseOrder(_ context.Context, orderID string, sale domain.Sale) (*domain.SaleReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if order.Status != domain.OrderCompleted {
		return nil, store.ErrInvalidState
	}
	if sale.ID == "" {
		sale.ID = xid.New()
	}
	sale.Total = order.Total

	items := make([]domain.SaleItem, 0, len(s.orderItems[orderID]))
	for _, oi := range s.orderItems[orderID] {
		items = append(items, domain.SaleItem{
			ID:          xid.New(),
			SaleID:      sale.ID,
			ProductID:   oi.ProductID,
			ProductName: oi.ProductName,
			Quantity:    oi.Quantity,
			Price:       oi.Price,
			Total:       oi.Total,
		})
	}

	receipt := s.insertSaleLocked(sale, items)
	s.deleteOrderLocked(orderID)
	return receipt, nil
}

// Sales and expenses

func (s *Store) ListSales(_ context.Context, filter domain.LedgerFilter) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0)
	for _, sale := range s.sales {
		if filter.SessionID != "" && sale.SessionID != filter.SessionID {
			continue
		}
		if !filter.Contains(sale.Date) {
			continue
		}
		sales = append(sales, sale)
	}
	slices.SortFunc(sales, func(a, b domain.Sale) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return sales, nil
}

func (s *Store) GetSale(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.sales[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &sale, nil
}

func (s *Store) ListSaleItems(_ context.Context, saleID string) ([]domain.SaleItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.sales[saleID]; !ok {
		return nil, store.ErrNotFound
	}
	return append([]domain.SaleItem{}, s.saleItems[saleID]...), nil
}

func (s *Store) ListSaleLines(_ context.Context) ([]domain.SaleLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lines := make([]domain.SaleLine, 0)
	for saleID, items := range s.saleItems {
		sale := s.sales[saleID]
		for _, item := range items {
			lines = append(lines, domain.SaleLine{SaleItem: item, SaleDate: sale.Date})
		}
	}
	return lines, nil
}

func (s *Store) CreateSale(_ context.Context, sale domain.Sale, items []domain.SaleItem) (*domain.SaleReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sale.SessionID]; !ok {
		return nil, store.ErrNotFound
	}
	if sale.ID == "" {
		sale.ID = xid.New()
	}
	frozen := make([]domain.SaleItem, len(items))
	for i, item := range items {
		if item.ID == "" {
			item.ID = xid.New()
		}
		item.SaleID = sale.ID
		frozen[i] = item
	}
	return s.insertSaleLocked(sale, frozen), nil
}

func (s *Store) insertSaleLocked(sale domain.Sale, items []domain.SaleItem) *domain.SaleReceipt {
	s.sales[sale.ID] = sale
	s.saleItems[sale.ID] = items
	warnings := s.deductLocked(items)
	return &domain.SaleReceipt{Sale: sale, Items: slices.Clone(items), StockWarnings: warnings}
}

func (s *Store) DeleteSale(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sales[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.sales, id)
	delete(s.saleItems, id)
	return nil
}

func (s *Store) ListExpenses(_ context.Context, filter domain.LedgerFilter) ([]domain.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expenses := make([]domain.Expense, 0)
	for _, e := range s.expenses {
		if filter.SessionID != "" && e.SessionID != filter.SessionID {
			continue
		}
		if !filter.Contains(e.Date) {
			continue
		}
		expenses = append(expenses, e)
	}
	slices.SortFunc(expenses, func(a, b domain.Expense) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return expenses, nil
}

func (s *Store) GetExpense(_ context.Context, id string) (*domain.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.expenses[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &e, nil
}

func (s *Store) CreateExpense(_ context.Context, expense domain.Expense) (*domain.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[expense.SessionID]; !ok {
		return nil, store.ErrNotFound
	}
	if expense.ID == "" {
		expense.ID = xid.New()
	}
	s.expenses[expense.ID] = expense
	return &expense, nil
}

func (s *Store) DeleteExpense(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.expenses[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.expenses, id)
	return nil
}

// Roles and users

func cloneRole(r domain.Role) domain.Role {
	r.Permissions = maps.Clone(r.Permissions)
	return r
}

func (s *Store) ListRoles(_ context.Context) ([]domain.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	roles := make([]domain.Role, 0, len(s.roles))
	for _, r := range s.roles {
		roles = append(roles, cloneRole(r))
	}
	slices.SortFunc(roles, func(a, b domain.Role) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return roles, nil
}

func (s *Store) GetRole(_ context.Context, id string) (*domain.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.roles[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	r = cloneRole(r)
	return &r, nil
}

func (s *Store) GetRoleByName(_ context.Context, name string) (*domain.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.roles {
		if strings.EqualFold(r.Name, name) {
			r = cloneRole(r)
			return &r, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateRole(_ context.Context, role domain.Role) (*domain.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.roleNameTakenLocked(role.Name, "") {
		return nil, store.ErrConflict
	}
	if role.ID == "" {
		role.ID = xid.New()
	}
	role = cloneRole(role)
	s.roles[role.ID] = role
	out := cloneRole(role)
	return &out, nil
}

func (s *Store) UpdateRole(_ context.Context, role domain.Role) (*domain.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.roles[role.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if s.roleNameTakenLocked(role.Name, role.ID) {
		return nil, store.ErrConflict
	}
	role.CreatedAt = existing.CreatedAt
	role = cloneRole(role)
	s.roles[role.ID] = role
	out := cloneRole(role)
	return &out, nil
}

func (s *Store) roleNameTakenLocked(name, exceptID string) bool {
	for id, r := range s.roles {
		if id != exceptID && strings.EqualFold(r.Name, name) {
			return true
		}
	}
	return false
}

func (s *Store) DeleteRole(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.roles[id]; !ok {
		return store.ErrNotFound
	}
	for _, u := range s.users {
		if u.RoleID == id {
			return store.ErrConflict
		}
	}
	delete(s.roles, id)
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := slices.Collect(maps.Values(s.users))
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmp.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) GetUser(_ context.Context, id string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	username = strings.ToLower(strings.TrimSpace(username))
	for _, u := range s.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) (*domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	for _, u := range s.users {
		if u.Username == user.Username {
			return nil, store.ErrConflict
		}
	}
	if _, ok := s.roles[user.RoleID]; !ok {
		return nil, store.ErrNotFound
	}
	if user.ID == "" {
		user.ID = xid.New()
	}
	s.users[user.ID] = user
	return &user, nil
}

func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *Store) UpdateUserPassword(_ context.Context, id string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.Password = password
	s.users[id] = u
	return nil
}

var _ store.Repository = (*Store)(nil)

// Package reporting aggregates the sale ledger into product statistics and
// the dashboard summary. Statistics are cached per business day.
package reporting

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"pideci/backend/internal/cache"
	"pideci/backend/internal/domain"
	"pideci/backend/internal/store"
)

const statsKeyPrefix = "pideci:stats:"

// Reader is the slice of the repository the reports read from.
type Reader interface {
	ListSaleLines(ctx context.Context) ([]domain.SaleLine, error)
	GetActiveSession(ctx context.Context) (*domain.BusinessSession, error)
	ListSales(ctx context.Context, filter domain.LedgerFilter) ([]domain.Sale, error)
	ListExpenses(ctx context.Context, filter domain.LedgerFilter) ([]domain.Expense, error)
	ListLowStock(ctx context.Context) ([]domain.Stock, error)
	ListOrdersByStatus(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error)
}

type Engine struct {
	repo     Reader
	cache    cache.Cache
	cacheTTL time.Duration
	location *time.Location
	now      func() time.Time
	logger   *slog.Logger

	// generation counts invalidations. A read that overlapped one does not
	// write its result back.
	mu         sync.Mutex
	generation uint64
}

func NewEngine(repo Reader, cacheStore cache.Cache, cacheTTL time.Duration, loc *time.Location) *Engine {
	if cacheStore == nil {
		cacheStore = cache.Noop{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{
		repo:     repo,
		cache:    cacheStore,
		cacheTTL: cacheTTL,
		location: loc,
		now:      time.Now,
		logger:   slog.Default(),
	}
}

// WithClock swaps the time source, for tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

func (e *Engine) WithLogger(logger *slog.Logger) *Engine {
	if logger != nil {
		e.logger = logger
	}
	return e
}

func (e *Engine) startOfToday() time.Time {
	now := e.now().In(e.location)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, e.location)
}

// cacheKey carries the business date so yesterday's numbers age out at
// midnight without an explicit flush.
func (e *Engine) cacheKey() string {
	return statsKeyPrefix + e.startOfToday().Format(domain.DateLayout)
}

// SalesStatistics ranks every product ever sold, across all sessions.
func (e *Engine) SalesStatistics(ctx context.Context) (domain.SalesStatistics, error) {
	key := e.cacheKey()
	var cached domain.SalesStatistics
	if ok, err := e.cache.Get(ctx, key, &cached); err == nil && ok {
		return cached, nil
	} else if err != nil {
		e.logger.WarnContext(ctx, "stats cache read failed", "key", key, "error", err)
	}

	e.mu.Lock()
	started := e.generation
	e.mu.Unlock()

	lines, err := e.repo.ListSaleLines(ctx)
	if err != nil {
		return domain.SalesStatistics{}, err
	}
	stats := Summarize(lines, e.startOfToday())

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.generation != started {
		return stats, nil
	}
	if err := e.cache.Set(ctx, key, stats, e.cacheTTL); err != nil {
		e.logger.WarnContext(ctx, "stats cache write failed", "key", key, "error", err)
	}
	return stats, nil
}

// Invalidate drops today's cached statistics and stops any statistics read
// already in flight from caching what it computed.
func (e *Engine) Invalidate(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.generation++

	key := e.cacheKey()
	if err := e.cache.Delete(ctx, key); err != nil {
		e.logger.WarnContext(ctx, "stats cache invalidate failed", "key", key, "error", err)
	}
}

// Summarize aggregates sale lines per product. Lines dated at or after
// startOfToday also count towards today's ranking.
func Summarize(lines []domain.SaleLine, startOfToday time.Time) domain.SalesStatistics {
	all := make(map[string]*domain.ProductStat)
	today := make(map[string]*domain.ProductStat)
	for _, line := range lines {
		accumulate(all, line.SaleItem)
		if !line.SaleDate.Before(startOfToday) {
			accumulate(today, line.SaleItem)
		}
	}

	ranked := rank(all)
	stats := domain.SalesStatistics{AllProducts: ranked}
	if len(ranked) > 0 {
		best, least := ranked[0], ranked[len(ranked)-1]
		stats.BestSelling = &best
		stats.LeastSelling = &least
	}
	if todays := rank(today); len(todays) > 0 {
		top := todays[0]
		stats.TodaysMostPopular = &top
	}
	return stats
}

func accumulate(into map[string]*domain.ProductStat, item domain.SaleItem) {
	stat, ok := into[item.ProductID]
	if !ok {
		stat = &domain.ProductStat{ProductID: item.ProductID, ProductName: item.ProductName}
		into[item.ProductID] = stat
	}
	stat.Quantity += item.Quantity
	stat.Revenue = stat.Revenue.Add(item.Total)
}

// rank orders by quantity, highest first, breaking ties by name.
func rank(stats map[string]*domain.ProductStat) []domain.ProductStat {
	out := make([]domain.ProductStat, 0, len(stats))
	for _, stat := range stats {
		out = append(out, *stat)
	}
	slices.SortFunc(out, func(a, b domain.ProductStat) int {
		if c := cmp.Compare(b.Quantity, a.Quantity); c != 0 {
			return c
		}
		if c := cmp.Compare(a.ProductName, b.ProductName); c != 0 {
			return c
		}
		return cmp.Compare(a.ProductID, b.ProductID)
	})
	return out
}

// Dashboard summarises the active session. Without one, only the stock and
// order counters are filled in.
func (e *Engine) Dashboard(ctx context.Context) (domain.DashboardSummary, error) {
	var (
		summary domain.DashboardSummary
		session *domain.BusinessSession
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		active, err := e.repo.GetActiveSession(gctx)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		session = active
		return err
	})
	g.Go(func() error {
		low, err := e.repo.ListLowStock(gctx)
		summary.LowStockCount = len(low)
		return err
	})
	g.Go(func() error {
		orders, err := e.repo.ListOrdersByStatus(gctx, domain.OrderActive)
		summary.ActiveOrders = len(orders)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.DashboardSummary{}, err
	}

	summary.Session = session
	if session == nil {
		return summary, nil
	}

	filter := domain.LedgerFilter{SessionID: session.ID}
	var (
		sales    []domain.Sale
		expenses []domain.Expense
	)
	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sales, err = e.repo.ListSales(gctx, filter)
		return err
	})
	g.Go(func() error {
		var err error
		expenses, err = e.repo.ListExpenses(gctx, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.DashboardSummary{}, err
	}

	for _, sale := range sales {
		summary.SalesTotal = summary.SalesTotal.Add(sale.Total)
	}
	for _, expense := range expenses {
		summary.ExpensesTotal = summary.ExpensesTotal.Add(expense.Amount)
	}
	summary.SaleCount = len(sales)
	summary.NetProfit = summary.SalesTotal.Sub(summary.ExpensesTotal)
	return summary, nil
}

package reporting

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"pideci/backend/internal/cache"
	"pideci/backend/internal/domain"
	"pideci/backend/internal/money"
	"pideci/backend/internal/store/memory"
)

var (
	loc      = time.FixedZone("TRT", 3*60*60)
	clockNow = time.Date(2026, 3, 14, 15, 0, 0, 0, loc)
	midnight = time.Date(2026, 3, 14, 0, 0, 0, 0, loc)
)

func line(productID, name string, qty int, price string, at time.Time) domain.SaleLine {
	p := money.MustParse(price)
	return domain.SaleLine{
		SaleItem: domain.SaleItem{
			ProductID:   productID,
			ProductName: name,
			Quantity:    qty,
			Price:       p,
			Total:       p.Mul(qty),
		},
		SaleDate: at,
	}
}

func TestSummarizeRanksByQuantityThenName(t *testing.T) {
	yesterday := midnight.Add(-2 * time.Hour)
	stats := Summarize([]domain.SaleLine{
		line("p1", "Soda", 2, "40", yesterday),
		line("p2", "Ayran", 2, "10", yesterday),
		line("p3", "Kıymalı Pide", 5, "150", yesterday),
		line("p1", "Soda", 1, "40", midnight.Add(time.Hour)),
	}, midnight)

	require.Len(t, stats.AllProducts, 3)
	require.Equal(t, "p3", stats.AllProducts[0].ProductID)
	require.Equal(t, "p1", stats.AllProducts[1].ProductID)
	require.Equal(t, 3, stats.AllProducts[1].Quantity)
	require.Equal(t, "120.00", stats.AllProducts[1].Revenue.String())
	require.Equal(t, "p2", stats.AllProducts[2].ProductID)

	require.Equal(t, "p3", stats.BestSelling.ProductID)
	require.Equal(t, "p2", stats.LeastSelling.ProductID)
	require.Equal(t, "p1", stats.TodaysMostPopular.ProductID)
	require.Equal(t, 1, stats.TodaysMostPopular.Quantity)
}

func TestSummarizeTiesBreakByName(t *testing.T) {
	stats := Summarize([]domain.SaleLine{
		line("b", "Soda", 1, "40", midnight),
		line("a", "Ayran", 1, "10", midnight),
	}, midnight)
	require.Equal(t, "Ayran", stats.BestSelling.ProductName)
	require.Equal(t, "Soda", stats.LeastSelling.ProductName)
	require.Equal(t, "Ayran", stats.TodaysMostPopular.ProductName)
}

func TestSummarizeEmpty(t *testing.T) {
	stats := Summarize(nil, midnight)
	require.NotNil(t, stats.AllProducts)
	require.Empty(t, stats.AllProducts)
	require.Nil(t, stats.BestSelling)
	require.Nil(t, stats.LeastSelling)
	require.Nil(t, stats.TodaysMostPopular)
}

func seedSale(t *testing.T, repo *memory.Store, sessionID string, qty int) {
	t.Helper()
	price := money.MustParse("150")
	_, err := repo.CreateSale(context.Background(), domain.Sale{
		SessionID: sessionID,
		Date:      clockNow.UTC(),
		Total:     price.Mul(qty),
	}, []domain.SaleItem{{
		ProductID:   "pide",
		ProductName: "Kaşarlı Pide",
		Quantity:    qty,
		Price:       price,
		Total:       price.Mul(qty),
	}})
	require.NoError(t, err)
}

func TestStatisticsAreCachedUntilInvalidated(t *testing.T) {
	mr := miniredis.RunT(t)
	redis := cache.NewRedis(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = redis.Close() })
	ctx := context.Background()

	repo := memory.New()
	session, err := repo.CreateSession(ctx, domain.BusinessSession{Date: "2026-03-14", Name: "Cumartesi - 2026-03-14", IsActive: true})
	require.NoError(t, err)
	seedSale(t, repo, session.ID, 2)

	engine := NewEngine(repo, redis, time.Minute, loc).WithClock(func() time.Time { return clockNow })

	first, err := engine.SalesStatistics(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, first.BestSelling.Quantity)
	require.True(t, mr.Exists("pideci:stats:2026-03-14"))

	seedSale(t, repo, session.ID, 3)
	cached, err := engine.SalesStatistics(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, cached.BestSelling.Quantity)
	require.Equal(t, "300.00", cached.BestSelling.Revenue.String())

	engine.Invalidate(ctx)
	require.False(t, mr.Exists("pideci:stats:2026-03-14"))

	fresh, err := engine.SalesStatistics(ctx)
	require.NoError(t, err)
	require.Equal(t, 5, fresh.BestSelling.Quantity)
	require.Equal(t, 5, fresh.TodaysMostPopular.Quantity)
}

// saleDuringRead records a sale while the engine is reading the ledger.
type saleDuringRead struct {
	*memory.Store
	during func()
}

func (r *saleDuringRead) ListSaleLines(ctx context.Context) ([]domain.SaleLine, error) {
	lines, err := r.Store.ListSaleLines(ctx)
	if r.during != nil {
		r.during()
		r.during = nil
	}
	return lines, err
}

func TestStatisticsReadOverlappingInvalidateIsNotCached(t *testing.T) {
	mr := miniredis.RunT(t)
	redis := cache.NewRedis(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = redis.Close() })
	ctx := context.Background()

	repo := memory.New()
	session, err := repo.CreateSession(ctx, domain.BusinessSession{Date: "2026-03-14", Name: "Cumartesi - 2026-03-14", IsActive: true})
	require.NoError(t, err)
	seedSale(t, repo, session.ID, 2)

	reader := &saleDuringRead{Store: repo}
	engine := NewEngine(reader, redis, time.Minute, loc).WithClock(func() time.Time { return clockNow })
	reader.during = func() {
		seedSale(t, repo, session.ID, 3)
		engine.Invalidate(ctx)
	}

	stale, err := engine.SalesStatistics(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, stale.BestSelling.Quantity)
	require.False(t, mr.Exists("pideci:stats:2026-03-14"))

	fresh, err := engine.SalesStatistics(ctx)
	require.NoError(t, err)
	require.Equal(t, 5, fresh.BestSelling.Quantity)
	require.True(t, mr.Exists("pideci:stats:2026-03-14"))
}

func TestStatisticsSurviveCacheOutage(t *testing.T) {
	mr := miniredis.RunT(t)
	redis := cache.NewRedis(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = redis.Close() })
	mr.Close()

	engine := NewEngine(memory.New(), redis, time.Minute, loc).WithClock(func() time.Time { return clockNow })
	stats, err := engine.SalesStatistics(context.Background())
	require.NoError(t, err)
	require.Empty(t, stats.AllProducts)
}

func TestDashboardSummarisesActiveSession(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	engine := NewEngine(repo, nil, 0, loc).WithClock(func() time.Time { return clockNow })

	empty, err := engine.Dashboard(ctx)
	require.NoError(t, err)
	require.Nil(t, empty.Session)
	require.Zero(t, empty.SaleCount)

	session, err := repo.CreateSession(ctx, domain.BusinessSession{Date: "2026-03-14", Name: "today", IsActive: true})
	require.NoError(t, err)
	seedSale(t, repo, session.ID, 2)
	_, err = repo.CreateExpense(ctx, domain.Expense{
		SessionID: session.ID,
		Date:      clockNow.UTC(),
		Category:  "Gas",
		Amount:    money.MustParse("75.50"),
	})
	require.NoError(t, err)
	threshold := 5
	_, err = repo.UpsertStockByName(ctx, domain.StockUpsertRequest{Name: "Un", Quantity: 2, AlertThreshold: &threshold}, "")
	require.NoError(t, err)

	summary, err := engine.Dashboard(ctx)
	require.NoError(t, err)
	require.Equal(t, session.ID, summary.Session.ID)
	require.Equal(t, 1, summary.SaleCount)
	require.Equal(t, "300.00", summary.SalesTotal.String())
	require.Equal(t, "75.50", summary.ExpensesTotal.String())
	require.Equal(t, "224.50", summary.NetProfit.String())
	require.Equal(t, 1, summary.LowStockCount)
	require.Zero(t, summary.ActiveOrders)
}

package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"pideci/backend/internal/domain"
)

func TestApplyDeltaClampsAtZero(t *testing.T) {
	next, short := ApplyDelta(10, -3)
	require.Equal(t, 7, next)
	require.Zero(t, short)

	next, short = ApplyDelta(2, -5)
	require.Zero(t, next)
	require.Equal(t, 3, short)

	next, short = ApplyDelta(0, 4)
	require.Equal(t, 4, next)
	require.Zero(t, short)
}

func TestCollectDeductionsGroupsByStockRow(t *testing.T) {
	flour := "stock-flour"
	products := map[string]domain.Product{
		"p1": {ID: "p1", StockItemID: &flour},
		"p2": {ID: "p2", StockItemID: &flour},
		"p3": {ID: "p3"},
	}
	items := []domain.SaleItem{
		{ProductID: "p1", Quantity: 2},
		{ProductID: "p3", Quantity: 9},
		{ProductID: "p2", Quantity: 1},
		{ProductID: "gone", Quantity: 4},
	}

	got := CollectDeductions(items, products)
	require.Equal(t, []Deduction{{StockItemID: flour, Quantity: 3}}, got)
}

func TestWarning(t *testing.T) {
	row := domain.Stock{ID: "s1", Name: "Ayran"}
	require.Nil(t, Warning(row, 3, 0))

	w := Warning(row, 5, 2)
	require.NotNil(t, w)
	require.Equal(t, 3, w.Available)
	require.Equal(t, 5, w.Requested)
}

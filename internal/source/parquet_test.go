package source

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderdash/internal/engine"
	"orderdash/internal/models"
)

func ptr[T any](v T) *T { return &v }

func TestParquetRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.parquet")
	rows := []OrderRow{
		{
			OrderID:           ptr("o1"),
			OrderStatus:       ptr("delivered"),
			PurchaseTimestamp: ptr("2017-10-02 10:56:33"),
			DeliveredCustomer: ptr("2017-10-10 21:25:13"),
			EstimatedDelivery: ptr("2017-10-18 00:00:00"),
			DeliveryTime:      ptr(8.5),
			PurchaseMonth:     ptr("2017-10"),
		},
		{
			OrderID:           ptr("o2"),
			OrderStatus:       ptr("canceled"),
			PurchaseTimestamp: ptr("2017-11-18 19:28:06"),
			EstimatedDelivery: ptr("2017-12-15 00:00:00"),
			PurchaseMonth:     ptr("2017-11"),
		},
	}
	require.NoError(t, WriteParquet(path, rows))

	store, err := LoadParquet(path)
	require.NoError(t, err)
	assert.Equal(t, 2, store.Len())

	monthly, err := store.MonthlyOrders()
	require.NoError(t, err)
	assert.Equal(t, []models.MonthlyOrders{
		{Month: "2017-10", TotalOrders: 1},
		{Month: "2017-11", TotalOrders: 1},
	}, monthly)

	delta, err := store.DeliveryDelta(engine.SkipMalformed)
	require.NoError(t, err)
	assert.Equal(t, []int{7}, delta.Days)
	assert.Equal(t, 1, delta.ExcludedRows)

	daily, err := store.DailyOrders(engine.DailyOptions{SumColumn: engine.ColDeliveryTime})
	require.NoError(t, err)
	assert.Equal(t, 8.5, daily.Days[0].Revenue)
}

func TestLoadParquetMissingFile(t *testing.T) {
	_, err := LoadParquet(filepath.Join(t.TempDir(), "none.parquet"))
	assert.Error(t, err)
}

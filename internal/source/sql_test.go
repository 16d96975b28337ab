package source

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderdash/internal/engine"
	"orderdash/internal/models"
)

func memoryDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := OpenSQL(context.Background(), "sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	db.MustExec(`CREATE TABLE orders (
		order_id TEXT,
		order_status TEXT,
		order_purchase_timestamp TEXT,
		order_delivered_customer_date TEXT,
		order_estimated_delivery_date TEXT,
		delivery_time REAL
	)`)
	db.MustExec(`INSERT INTO orders VALUES
		('o1', 'delivered', '2018-01-01 09:00:00', '2018-01-05 10:00:00', '2018-01-10 00:00:00', 4.5),
		('o1', 'delivered', '2018-01-01 09:00:00', '2018-01-05 10:00:00', '2018-01-10 00:00:00', 4.5),
		('o2', 'canceled',  '2018-01-02 18:30:00', NULL, '2018-01-20 00:00:00', NULL),
		('o3', 'shipped',   '2018-02-11 07:00:00', NULL, '2018-02-25 00:00:00', NULL)`)
	return db
}

func TestQuerySQL(t *testing.T) {
	db := memoryDB(t)

	store, err := QuerySQL(context.Background(), db, "")
	require.NoError(t, err)
	assert.Equal(t, 4, store.Len())
	assert.True(t, store.HasColumn(engine.ColDeliveredCustomer))

	daily, err := store.DailyOrders(engine.DailyOptions{SumColumn: engine.ColDeliveryTime})
	require.NoError(t, err)
	assert.Equal(t, []models.DailyOrder{
		{Day: "2018-01-01", OrderCount: 1, Revenue: 9},
		{Day: "2018-01-02", OrderCount: 1, Revenue: 0},
		{Day: "2018-02-11", OrderCount: 1, Revenue: 0},
	}, daily.Days)

	delta, err := store.DeliveryDelta(engine.SkipMalformed)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 4}, delta.Days)
	assert.Equal(t, 2, delta.ExcludedRows)
}

func TestQuerySQLCustomQuery(t *testing.T) {
	db := memoryDB(t)

	store, err := QuerySQL(context.Background(), db,
		"SELECT order_id, order_status FROM orders WHERE order_status <> 'shipped'")
	require.NoError(t, err)
	assert.Equal(t, []string{engine.ColOrderID, engine.ColOrderStatus}, store.Columns())

	_, err = store.DailyOrders(engine.DailyOptions{})
	assert.ErrorIs(t, err, engine.ErrMissingColumn)

	_, err = QuerySQL(context.Background(), db, "SELECT * FROM missing_table")
	assert.Error(t, err)
}

func TestCellString(t *testing.T) {
	assert.Equal(t, "", cellString(nil))
	assert.Equal(t, "abc", cellString([]byte("abc")))
	assert.Equal(t, "42", cellString(int64(42)))
	assert.Equal(t, "0.25", cellString(0.25))
	assert.Equal(t, "true", cellString(true))
}

package source

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/parquet-go/parquet-go"

	"orderdash/internal/engine"
)

// OrderRow is the Parquet layout of the orders dataset. Timestamps are
// stored as text in the same layouts the CSV export uses.
type OrderRow struct {
	OrderID           *string  `parquet:"order_id,optional"`
	OrderStatus       *string  `parquet:"order_status,optional"`
	PurchaseTimestamp *string  `parquet:"order_purchase_timestamp,optional"`
	DeliveredCustomer *string  `parquet:"order_delivered_customer_date,optional"`
	EstimatedDelivery *string  `parquet:"order_estimated_delivery_date,optional"`
	DeliveryTime      *float64 `parquet:"delivery_time,optional"`
	PurchaseMonth     *string  `parquet:"purchase_month,optional"`
}

var parquetColumns = []string{
	engine.ColOrderID,
	engine.ColOrderStatus,
	engine.ColPurchaseTimestamp,
	engine.ColDeliveredCustomer,
	engine.ColEstimatedDelivery,
	engine.ColDeliveryTime,
	engine.ColPurchaseMonth,
}

// LoadParquet reads an orders Parquet file. Missing optional values become
// null cells.
func LoadParquet(path string) (*engine.ColumnStore, error) {
	rows, err := parquet.ReadFile[OrderRow](path)
	if err != nil {
		return nil, fmt.Errorf("read parquet: %w", err)
	}
	return FromOrderRows(rows), nil
}

// WriteParquet stores rows in the layout LoadParquet reads.
func WriteParquet(path string, rows []OrderRow) error {
	if err := parquet.WriteFile(path, rows); err != nil {
		return fmt.Errorf("write parquet: %w", err)
	}
	return nil
}

// FromOrderRows builds a store from typed rows. purchase_month is left out
// when no row carries it so that it can be derived from the timestamp.
func FromOrderRows(rows []OrderRow) *engine.ColumnStore {
	columns := parquetColumns
	hasMonth := slices.ContainsFunc(rows, func(r OrderRow) bool { return r.PurchaseMonth != nil })
	if !hasMonth {
		columns = columns[:len(columns)-1]
	}
	b := engine.NewBuilder(columns...)
	for _, r := range rows {
		delivery := ""
		if r.DeliveryTime != nil {
			delivery = strconv.FormatFloat(*r.DeliveryTime, 'f', -1, 64)
		}
		b.Append(
			deref(r.OrderID),
			deref(r.OrderStatus),
			deref(r.PurchaseTimestamp),
			deref(r.DeliveredCustomer),
			deref(r.EstimatedDelivery),
			delivery,
			deref(r.PurchaseMonth),
		)
	}
	return b.Build()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

package models

import "time"

// DashboardData bundles every derived view of one snapshot.
// A view that could not be computed is nil and listed in Unavailable.
type DashboardData struct {
	Rows              int                 `json:"rows"`
	Summary           *Summary            `json:"summary,omitempty"`
	DailyOrders       *DailyOrdersTable   `json:"daily_orders,omitempty"`
	StatusCounts      []StatusCount       `json:"status_counts,omitempty"`
	StatusShares      []StatusShare       `json:"status_shares,omitempty"`
	MonthlyOrders     []MonthlyOrders     `json:"monthly_orders,omitempty"`
	DeliveryDelta     *DeliveryDeltaTable `json:"delivery_delta,omitempty"`
	DeliveryHistogram []HistogramBin      `json:"delivery_histogram,omitempty"`
	Unavailable       map[string]string   `json:"unavailable,omitempty"`
}

type DailyOrder struct {
	Day        string  `json:"day"`
	OrderCount int     `json:"order_count"`
	Revenue    float64 `json:"revenue"`
}

// DailyOrdersTable is the daily view. SkippedRows counts rows dropped
// because their purchase timestamp did not parse.
type DailyOrdersTable struct {
	Days        []DailyOrder `json:"days"`
	SkippedRows int          `json:"skipped_rows"`
}

type StatusCount struct {
	Status      string `json:"order_status"`
	TotalOrders int    `json:"total_orders"`
}

type StatusShare struct {
	Status      string  `json:"order_status"`
	TotalOrders int     `json:"total_orders"`
	Percent     float64 `json:"percent"`
	Label       string  `json:"label"`
}

type MonthlyOrders struct {
	Month       string `json:"purchase_month"`
	TotalOrders int    `json:"total_orders"`
}

// DeliveryDeltaTable holds estimated-minus-delivered days per eligible row.
// Positive values are early deliveries.
type DeliveryDeltaTable struct {
	Days         []int `json:"days"`
	ExcludedRows int   `json:"excluded_rows"`
	SkippedRows  int   `json:"skipped_rows"`
}

type HistogramBin struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}

type Summary struct {
	TotalOrders    int     `json:"total_orders"`
	TotalRevenue   float64 `json:"total_revenue"`
	RevenueDisplay string  `json:"revenue_display,omitempty"`
	Currency       string  `json:"currency,omitempty"`
}

// Meta describes the loaded snapshot.
type Meta struct {
	Rows          int        `json:"rows"`
	Columns       []string   `json:"columns"`
	FirstPurchase *time.Time `json:"first_purchase,omitempty"`
	LastPurchase  *time.Time `json:"last_purchase,omitempty"`
	LoadedAt      time.Time  `json:"loaded_at"`
}

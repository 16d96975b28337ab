package engine

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"time"

	"github.com/hashicorp/go-multierror"

	"orderdash/internal/models"
)

// Column names of the orders dataset.
const (
	ColOrderID           = "order_id"
	ColPurchaseTimestamp = "order_purchase_timestamp"
	ColOrderStatus       = "order_status"
	ColEstimatedDelivery = "order_estimated_delivery_date"
	ColDeliveredCustomer = "order_delivered_customer_date"
	ColDeliveryTime      = "delivery_time"
	ColPurchaseMonth     = "purchase_month"
)

// DefaultHistogramBins matches the delivery histogram of the dashboards.
const DefaultHistogramBins = 30

// DailyOptions configures DailyOrders.
type DailyOptions struct {
	// CountColumn is distinct-counted per day. Defaults to order_id.
	CountColumn string
	// SumColumn is summed per day and reported as revenue. Empty means
	// no revenue column; every day then reports 0.
	SumColumn string
	Malformed MalformedPolicy
}

// DailyOrders buckets rows by purchase day. Days without rows are absent.
func (cs *ColumnStore) DailyOrders(opts DailyOptions) (*models.DailyOrdersTable, error) {
	countName := opts.CountColumn
	if countName == "" {
		countName = ColOrderID
	}
	ts, err := cs.Column(ColPurchaseTimestamp)
	if err != nil {
		return nil, err
	}
	ids, err := cs.Column(countName)
	if err != nil {
		return nil, err
	}
	var sum *Column
	var nums []float64
	if opts.SumColumn != "" {
		if sum, err = cs.Column(opts.SumColumn); err != nil {
			return nil, err
		}
		nums = sum.numbers()
	}

	// Timestamp dictionary ID -> day bucket. -1 marks values that do not parse.
	times, ok := ts.timestamps()
	dayOf := make([]int32, len(ts.Dict))
	dayIndex := make(map[string]int32)
	var dayKeys []string
	for id := range ts.Dict {
		if !ok[id] {
			dayOf[id] = -1
			continue
		}
		key := times[id].Format(dayLayout)
		d, seen := dayIndex[key]
		if !seen {
			d = int32(len(dayKeys))
			dayKeys = append(dayKeys, key)
			dayIndex[key] = d
		}
		dayOf[id] = d
	}

	counts := make([]int, len(dayKeys))
	revenue := make([]float64, len(dayKeys))
	present := make([]bool, len(dayKeys))
	distinct := make(map[uint64]struct{})
	skipped := 0

	for row := 0; row < cs.rows; row++ {
		tid := ts.IDs[row]
		if tid < 0 {
			continue
		}
		d := dayOf[tid]
		if d < 0 {
			if opts.Malformed == RejectMalformed {
				return nil, ts.malformed(row)
			}
			skipped++
			continue
		}
		present[d] = true
		if sum != nil {
			if sid := sum.IDs[row]; sid >= 0 {
				revenue[d] += nums[sid]
			}
		}
		if oid := ids.IDs[row]; oid >= 0 {
			key := uint64(d)<<32 | uint64(uint32(oid))
			if _, dup := distinct[key]; !dup {
				distinct[key] = struct{}{}
				counts[d]++
			}
		}
	}

	table := &models.DailyOrdersTable{Days: make([]models.DailyOrder, 0), SkippedRows: skipped}
	for d, key := range dayKeys {
		if present[d] {
			table.Days = append(table.Days, models.DailyOrder{Day: key, OrderCount: counts[d], Revenue: revenue[d]})
		}
	}
	sort.Slice(table.Days, func(i, j int) bool { return table.Days[i].Day < table.Days[j].Day })
	return table, nil
}

// groupCount counts non-null rows per dictionary value and returns the
// values that occur, in order of first appearance within the rows.
func (cs *ColumnStore) groupCount(name string) (*Column, []int32, []int, error) {
	col, err := cs.Column(name)
	if err != nil {
		return nil, nil, nil, err
	}
	counts := make([]int, len(col.Dict))
	var order []int32
	for _, id := range col.IDs {
		if id < 0 {
			continue
		}
		if counts[id] == 0 {
			order = append(order, id)
		}
		counts[id]++
	}
	return col, order, counts, nil
}

// OrderStatusCounts counts rows per order_status, largest first.
// Equal counts keep the order in which the statuses first appear.
func (cs *ColumnStore) OrderStatusCounts() ([]models.StatusCount, error) {
	col, order, counts, err := cs.groupCount(ColOrderStatus)
	if err != nil {
		return nil, err
	}
	out := make([]models.StatusCount, 0, len(order))
	for _, id := range order {
		out = append(out, models.StatusCount{Status: col.Dict[id], TotalOrders: counts[id]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TotalOrders > out[j].TotalOrders })
	return out, nil
}

// MonthlyOrders counts rows per purchase_month, earliest first.
func (cs *ColumnStore) MonthlyOrders() ([]models.MonthlyOrders, error) {
	col, order, counts, err := cs.groupCount(ColPurchaseMonth)
	if err != nil {
		return nil, err
	}
	out := make([]models.MonthlyOrders, 0, len(order))
	for _, id := range order {
		out = append(out, models.MonthlyOrders{Month: col.Dict[id], TotalOrders: counts[id]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out, nil
}

// DeliveryDelta returns estimated minus delivered date in whole days for
// every row that has both dates. Partial days round toward the past, so a
// delivery twelve hours after the estimate counts as one day late.
func (cs *ColumnStore) DeliveryDelta(policy MalformedPolicy) (*models.DeliveryDeltaTable, error) {
	est, err := cs.Column(ColEstimatedDelivery)
	if err != nil {
		return nil, err
	}
	del, err := cs.Column(ColDeliveredCustomer)
	if err != nil {
		return nil, err
	}
	estTimes, estOK := est.timestamps()
	delTimes, delOK := del.timestamps()

	table := &models.DeliveryDeltaTable{Days: make([]int, 0)}
	for row := 0; row < cs.rows; row++ {
		eid, did := est.IDs[row], del.IDs[row]
		if eid < 0 || did < 0 {
			table.ExcludedRows++
			continue
		}
		var bad *Column
		switch {
		case !estOK[eid]:
			bad = est
		case !delOK[did]:
			bad = del
		}
		if bad != nil {
			if policy == RejectMalformed {
				return nil, bad.malformed(row)
			}
			table.SkippedRows++
			continue
		}
		table.Days = append(table.Days, floorDays(estTimes[eid].Sub(delTimes[did])))
	}
	return table, nil
}

func floorDays(d time.Duration) int {
	day := 24 * time.Hour
	n := d / day
	if d%day < 0 {
		n--
	}
	return int(n)
}

// Summarize totals the daily view the way the dashboard header does.
func Summarize(daily *models.DailyOrdersTable) models.Summary {
	var s models.Summary
	if daily == nil {
		return s
	}
	for _, d := range daily.Days {
		s.TotalOrders += d.OrderCount
		s.TotalRevenue += d.Revenue
	}
	return s
}

// StatusDistribution drops the excluded statuses and expresses the rest as
// shares of their combined total. Input order is preserved.
func StatusDistribution(counts []models.StatusCount, exclude ...string) []models.StatusShare {
	kept := make([]models.StatusCount, 0, len(counts))
	total := 0
	for _, c := range counts {
		if slices.Contains(exclude, c.Status) {
			continue
		}
		kept = append(kept, c)
		total += c.TotalOrders
	}
	out := make([]models.StatusShare, 0, len(kept))
	for _, c := range kept {
		pct := 0.0
		if total > 0 {
			pct = float64(c.TotalOrders) / float64(total) * 100
		}
		out = append(out, models.StatusShare{
			Status:      c.Status,
			TotalOrders: c.TotalOrders,
			Percent:     pct,
			Label:       fmt.Sprintf("%s: %d (%.1f%%)", c.Status, c.TotalOrders, pct),
		})
	}
	return out
}

// DeliveryHistogram splits days into equal-width bins over [min, max].
// Every bin is half open except the last, which also holds max.
func DeliveryHistogram(days []int, bins int) []models.HistogramBin {
	if len(days) == 0 {
		return []models.HistogramBin{}
	}
	if bins <= 0 {
		bins = DefaultHistogramBins
	}
	lo := float64(slices.Min(days))
	hi := float64(slices.Max(days))
	if lo == hi {
		lo -= 0.5
		hi += 0.5
	}
	width := (hi - lo) / float64(bins)
	out := make([]models.HistogramBin, bins)
	for i := range out {
		out[i].Lower = lo + float64(i)*width
		out[i].Upper = lo + float64(i+1)*width
	}
	out[bins-1].Upper = hi
	for _, d := range days {
		i := int(math.Floor((float64(d) - lo) / width))
		i = min(max(i, 0), bins-1)
		out[i].Count++
	}
	return out
}

// FilterByPurchaseDate keeps rows purchased on or between the calendar days
// of start and end. A zero bound leaves that side open. Rows with a null or
// unparseable purchase timestamp are dropped.
func (cs *ColumnStore) FilterByPurchaseDate(start, end time.Time) (*ColumnStore, error) {
	ts, err := cs.Column(ColPurchaseTimestamp)
	if err != nil {
		return nil, err
	}
	var from, to string
	if !start.IsZero() {
		from = start.Format(dayLayout)
	}
	if !end.IsZero() {
		to = end.Format(dayLayout)
	}
	times, ok := ts.timestamps()
	keep := make([]bool, len(ts.Dict))
	for id := range ts.Dict {
		if !ok[id] {
			continue
		}
		day := times[id].Format(dayLayout)
		keep[id] = (from == "" || day >= from) && (to == "" || day <= to)
	}
	rows := make([]int, 0, cs.rows)
	for row, id := range ts.IDs {
		if id >= 0 && keep[id] {
			rows = append(rows, row)
		}
	}
	return cs.selectRows(rows), nil
}

// PurchaseDateRange returns the earliest and latest parseable purchase
// timestamps. ok is false when there are none.
func (cs *ColumnStore) PurchaseDateRange() (first, last time.Time, ok bool, err error) {
	ts, err := cs.Column(ColPurchaseTimestamp)
	if err != nil {
		return first, last, false, err
	}
	times, valid := ts.timestamps()
	used := make([]bool, len(ts.Dict))
	for _, id := range ts.IDs {
		if id >= 0 {
			used[id] = true
		}
	}
	for id, t := range times {
		if !valid[id] || !used[id] {
			continue
		}
		if !ok || t.Before(first) {
			first = t
		}
		if !ok || t.After(last) {
			last = t
		}
		ok = true
	}
	return first, last, ok, nil
}

// WithPurchaseMonth returns a store carrying a purchase_month column
// (YYYY-MM of the purchase timestamp). A store that already has one is
// returned unchanged.
func (cs *ColumnStore) WithPurchaseMonth() (*ColumnStore, error) {
	if cs.HasColumn(ColPurchaseMonth) {
		return cs, nil
	}
	ts, err := cs.Column(ColPurchaseTimestamp)
	if err != nil {
		return nil, err
	}
	times, ok := ts.timestamps()
	enc := newDictEncoder()
	monthOf := make([]int32, len(ts.Dict))
	for id := range ts.Dict {
		monthOf[id] = -1
		if ok[id] {
			monthOf[id] = enc.encode(times[id].Format(monthLayout))
		}
	}
	ids := make([]int32, cs.rows)
	for row, id := range ts.IDs {
		ids[row] = -1
		if id >= 0 {
			ids[row] = monthOf[id]
		}
	}
	return cs.withColumn(&Column{Name: ColPurchaseMonth, IDs: ids, Dict: enc.dict}), nil
}

// AggregateOptions configures Aggregate.
type AggregateOptions struct {
	Daily         DailyOptions
	StatusExclude []string
	HistogramBins int
}

// Aggregate computes every dashboard view. Views fail independently: a
// failed view is left empty, named in Unavailable, and its error is part of
// the returned *multierror.Error.
func (cs *ColumnStore) Aggregate(opts AggregateOptions) (*models.DashboardData, error) {
	data := &models.DashboardData{Rows: cs.rows}
	var result *multierror.Error
	fail := func(view string, err error) {
		if data.Unavailable == nil {
			data.Unavailable = make(map[string]string)
		}
		data.Unavailable[view] = err.Error()
		result = multierror.Append(result, fmt.Errorf("%s: %w", view, err))
	}

	if daily, err := cs.DailyOrders(opts.Daily); err != nil {
		fail("daily_orders", err)
	} else {
		data.DailyOrders = daily
		summary := Summarize(daily)
		data.Summary = &summary
	}

	if counts, err := cs.OrderStatusCounts(); err != nil {
		fail("status_counts", err)
	} else {
		data.StatusCounts = counts
		data.StatusShares = StatusDistribution(counts, opts.StatusExclude...)
	}

	if monthly, err := cs.MonthlyOrders(); err != nil {
		fail("monthly_orders", err)
	} else {
		data.MonthlyOrders = monthly
	}

	if delta, err := cs.DeliveryDelta(opts.Daily.Malformed); err != nil {
		fail("delivery_delta", err)
	} else {
		data.DeliveryDelta = delta
		data.DeliveryHistogram = DeliveryHistogram(delta.Days, opts.HistogramBins)
	}

	return data, result.ErrorOrNil()
}

package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"orderdash/internal/engine"
	"orderdash/internal/format"
	"orderdash/internal/models"
)

const dateLayout = "2006-01-02"

// snapshot is one loaded dataset and when it was loaded.
type snapshot struct {
	store    *engine.ColumnStore
	loadedAt time.Time
}

type Handler struct {
	data     atomic.Pointer[snapshot]
	opts     engine.AggregateOptions
	currency *format.Currency
	log      zerolog.Logger
}

// NewHandler creates a handler. store may be nil; data routes answer 503
// until SetData is called.
func NewHandler(store *engine.ColumnStore, opts engine.AggregateOptions, currency *format.Currency, log zerolog.Logger) *Handler {
	h := &Handler{opts: opts, currency: currency, log: log}
	if store != nil {
		h.SetData(store)
	}
	return h
}

// SetData swaps in a new snapshot. Requests already running keep the old one.
func (h *Handler) SetData(store *engine.ColumnStore) {
	h.data.Store(&snapshot{store: store, loadedAt: time.Now()})
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	api := e.Group("/api")
	api.GET("/health", h.Health)
	api.GET("/meta", h.GetMeta)
	api.GET("/orders/daily", h.GetDailyOrders)
	api.GET("/orders/status", h.GetStatusCounts)
	api.GET("/orders/status/distribution", h.GetStatusDistribution)
	api.GET("/orders/monthly", h.GetMonthlyOrders)
	api.GET("/delivery/delta", h.GetDeliveryDelta)
	api.GET("/dashboard", h.GetDashboard)
}

// --- HELPERS ---

func (h *Handler) current() (*snapshot, error) {
	s := h.data.Load()
	if s == nil {
		return nil, echo.NewHTTPError(http.StatusServiceUnavailable, "dataset is still loading")
	}
	return s, nil
}

// rangedStore returns the snapshot narrowed to the start/end query params.
func (h *Handler) rangedStore(c echo.Context) (*engine.ColumnStore, error) {
	s, err := h.current()
	if err != nil {
		return nil, err
	}
	start, err := dateParam(c, "start")
	if err != nil {
		return nil, err
	}
	end, err := dateParam(c, "end")
	if err != nil {
		return nil, err
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "end must not be before start")
	}
	if start.IsZero() && end.IsZero() {
		return s.store, nil
	}
	store, err := s.store.FilterByPurchaseDate(start, end)
	if err != nil {
		return nil, h.aggregationError(c, err)
	}
	return store, nil
}

func dateParam(c echo.Context, name string) (time.Time, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, echo.NewHTTPError(http.StatusBadRequest, name+" must be YYYY-MM-DD")
	}
	return t, nil
}

func getPaginationParams(c echo.Context, defaultLimit int) (int, int) {
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit <= 0 {
		limit = defaultLimit
	}
	offset, err := strconv.Atoi(c.QueryParam("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}

// aggregationError turns engine failures into the empty-state response the
// front end shows in place of a chart.
func (h *Handler) aggregationError(c echo.Context, err error) error {
	h.log.Warn().Err(err).Str("path", c.Path()).Msg("aggregation failed")
	switch {
	case errors.Is(err, engine.ErrMissingColumn):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "data not available: "+err.Error())
	case errors.Is(err, engine.ErrMalformedInput):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "data could not be read: "+err.Error())
	}
	return err
}

func (h *Handler) summarize(daily *models.DailyOrdersTable) models.Summary {
	s := engine.Summarize(daily)
	if h.currency != nil {
		h.currency.Annotate(&s)
	}
	return s
}

// --- HANDLERS ---

func (h *Handler) Health(c echo.Context) error {
	status := "ok"
	if h.data.Load() == nil {
		status = "loading"
	}
	return c.JSON(http.StatusOK, map[string]string{"status": status})
}

func (h *Handler) GetMeta(c echo.Context) error {
	s, err := h.current()
	if err != nil {
		return err
	}
	meta := models.Meta{
		Rows:     s.store.Len(),
		Columns:  s.store.Columns(),
		LoadedAt: s.loadedAt,
	}
	if first, last, ok, err := s.store.PurchaseDateRange(); err == nil && ok {
		meta.FirstPurchase = &first
		meta.LastPurchase = &last
	}
	return respond(c, meta)
}

// daily orders plus the headline totals
func (h *Handler) GetDailyOrders(c echo.Context) error {
	store, err := h.rangedStore(c)
	if err != nil {
		return err
	}
	daily, err := store.DailyOrders(h.opts.Daily)
	if err != nil {
		return h.aggregationError(c, err)
	}
	summary := h.summarize(daily)

	total := len(daily.Days)
	limit, offset := getPaginationParams(c, total)
	page := []models.DailyOrder{}
	if offset < total {
		page = daily.Days[offset : offset+min(limit, total-offset)]
	}

	return respond(c, map[string]interface{}{
		"data":         page,
		"summary":      summary,
		"skipped_rows": daily.SkippedRows,
		"total":        total,
		"limit":        limit,
		"offset":       offset,
	})
}

func (h *Handler) GetStatusCounts(c echo.Context) error {
	store, err := h.rangedStore(c)
	if err != nil {
		return err
	}
	counts, err := store.OrderStatusCounts()
	if err != nil {
		return h.aggregationError(c, err)
	}
	return respond(c, counts)
}

// shares without the excluded statuses; ?exclude= overrides the configured list
func (h *Handler) GetStatusDistribution(c echo.Context) error {
	store, err := h.rangedStore(c)
	if err != nil {
		return err
	}
	counts, err := store.OrderStatusCounts()
	if err != nil {
		return h.aggregationError(c, err)
	}
	exclude := h.opts.StatusExclude
	if raw, ok := c.QueryParams()["exclude"]; ok {
		exclude = nil
		for _, v := range raw {
			for _, s := range strings.Split(v, ",") {
				if s = strings.TrimSpace(s); s != "" {
					exclude = append(exclude, s)
				}
			}
		}
	}
	return respond(c, engine.StatusDistribution(counts, exclude...))
}

func (h *Handler) GetMonthlyOrders(c echo.Context) error {
	store, err := h.rangedStore(c)
	if err != nil {
		return err
	}
	monthly, err := store.MonthlyOrders()
	if err != nil {
		return h.aggregationError(c, err)
	}
	return respond(c, monthly)
}

func (h *Handler) GetDeliveryDelta(c echo.Context) error {
	store, err := h.rangedStore(c)
	if err != nil {
		return err
	}
	bins := h.opts.HistogramBins
	if raw := c.QueryParam("bins"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			return echo.NewHTTPError(http.StatusBadRequest, "bins must be between 1 and 500")
		}
		bins = n
	}
	delta, err := store.DeliveryDelta(h.opts.Daily.Malformed)
	if err != nil {
		return h.aggregationError(c, err)
	}
	return respond(c, map[string]interface{}{
		"delta":     delta,
		"histogram": engine.DeliveryHistogram(delta.Days, bins),
	})
}

// every view at once; views that fail are listed under "unavailable"
func (h *Handler) GetDashboard(c echo.Context) error {
	store, err := h.rangedStore(c)
	if err != nil {
		return err
	}
	data, err := store.Aggregate(h.opts)
	if err != nil {
		h.log.Warn().Err(err).Msg("dashboard rendered with unavailable views")
	}
	if data.Summary != nil && h.currency != nil {
		h.currency.Annotate(data.Summary)
	}
	return respond(c, data)
}

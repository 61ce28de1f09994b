package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jing2uo/valuedb/calc"
	"github.com/jing2uo/valuedb/database"
	"github.com/jing2uo/valuedb/model"
	"github.com/jing2uo/valuedb/utils"
	"github.com/rs/zerolog/log"
)

// Store 只读接口所需的数据
type Store interface {
	database.Source
	database.SnapshotStore
}

type APIHandler struct {
	db      Store
	actions *calc.ActionRegistry
	now     func() time.Time
}

func SetupRoutes(r *gin.RouterGroup, db Store) *APIHandler {
	handler := &APIHandler{
		db:      db,
		actions: calc.NewActionRegistry(db),
		now:     time.Now,
	}

	snapshots := r.Group("/snapshots")
	{
		snapshots.GET("", handler.ListSnapshotsByDate)
		snapshots.GET("/:ticker", handler.ListSnapshotsByTicker)
	}

	bundles := r.Group("/bundles")
	{
		bundles.GET("", handler.ListBundles)
		bundles.GET("/:name", handler.GetBundleSeries)
	}

	r.GET("/returns/:ticker", handler.GetReturns)
	return handler
}

// NewRouter 含 /healthz 与请求日志的完整路由
func NewRouter(db Store) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	SetupRoutes(r.Group(""), db)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
	return r
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("http request")
	}
}

// dateRange 默认 to 为今天, from 为 to 前一年
func (h *APIHandler) dateRange(c *gin.Context) (from, to time.Time, ok bool) {
	to = utils.TruncateDay(h.now())
	if s := c.Query("to"); s != "" {
		t, err := utils.ParseDate(s)
		if err != nil {
			badRequest(c, err)
			return from, to, false
		}
		to = t
	}
	from = to.AddDate(-1, 0, 0)
	if s := c.Query("from"); s != "" {
		t, err := utils.ParseDate(s)
		if err != nil {
			badRequest(c, err)
			return from, to, false
		}
		from = t
	}
	if from.After(to) {
		badRequest(c, errors.New("from must not be after to"))
		return from, to, false
	}
	return from, to, true
}

func (h *APIHandler) ListSnapshotsByTicker(c *gin.Context) {
	ticker, ok := utils.NormalizeTicker(c.Param("ticker"))
	if !ok {
		badRequest(c, errors.New("invalid ticker"))
		return
	}
	from, to, ok := h.dateRange(c)
	if !ok {
		return
	}

	snaps, err := h.db.SnapshotsByTicker(c.Request.Context(), ticker, from, to)
	if err != nil {
		serverError(c, err)
		return
	}
	if snaps == nil {
		snaps = []model.ValuationSnapshot{}
	}
	c.JSON(http.StatusOK, gin.H{"ticker": ticker, "snapshots": snaps})
}

func (h *APIHandler) ListSnapshotsByDate(c *gin.Context) {
	s := c.Query("date")
	if s == "" {
		badRequest(c, errors.New("date is required"))
		return
	}
	d, err := utils.ParseDate(s)
	if err != nil {
		badRequest(c, err)
		return
	}

	snaps, err := h.db.SnapshotsByDate(c.Request.Context(), d)
	if err != nil {
		serverError(c, err)
		return
	}
	if snaps == nil {
		snaps = []model.ValuationSnapshot{}
	}
	c.JSON(http.StatusOK, gin.H{"date": d.Format(utils.DateLayout), "snapshots": snaps})
}

func (h *APIHandler) ListBundles(c *gin.Context) {
	out := make([]gin.H, 0, len(calc.PremadeBundles))
	for _, name := range calc.BundleNames() {
		out = append(out, gin.H{"name": name, "tickers": calc.PremadeBundles[name]})
	}
	c.JSON(http.StatusOK, gin.H{"bundles": out})
}

func (h *APIHandler) GetBundleSeries(c *gin.Context) {
	name, tickers, ok := calc.LookupBundle(c.Param("name"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown bundle", "available": calc.BundleNames()})
		return
	}
	from, to, ok := h.dateRange(c)
	if !ok {
		return
	}

	var all []model.ValuationSnapshot
	for _, t := range tickers {
		snaps, err := h.db.SnapshotsByTicker(c.Request.Context(), t, from, to)
		if err != nil {
			serverError(c, err)
			return
		}
		all = append(all, snaps...)
	}
	c.JSON(http.StatusOK, gin.H{"bundle": name, "tickers": tickers, "series": calc.AggregateBundle(name, all)})
}

func (h *APIHandler) GetReturns(c *gin.Context) {
	ticker, ok := utils.NormalizeTicker(c.Param("ticker"))
	if !ok {
		badRequest(c, errors.New("invalid ticker"))
		return
	}
	from, to, ok := h.dateRange(c)
	if !ok {
		return
	}

	res, err := h.actions.Returns(c.Request.Context(), h.db, ticker, from, to)
	if err != nil {
		if errors.Is(err, calc.ErrInsufficientPrices) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func serverError(c *gin.Context, err error) {
	log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gitlab.com/maplesense1/irr.soil_server/src/production/IRR.ApiService/middleware"
	"gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Dashboard/refresh"
	view "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Dashboard/view"
	logger "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Logger"
)

// DashboardController serves views over the current snapshot
type DashboardController struct {
	store     *refresh.Store
	refresher *refresh.Refresher
	pageSize  int
	logger    *logger.Logger
}

// NewDashboardController creates a new dashboard controller
func NewDashboardController(store *refresh.Store, refresher *refresh.Refresher, pageSize int, logger *logger.Logger) *DashboardController {
	if pageSize <= 0 {
		pageSize = view.DefaultPageSize
	}
	return &DashboardController{
		store:     store,
		refresher: refresher,
		pageSize:  pageSize,
		logger:    logger.WithComponent("dashboard-controller"),
	}
}

// RegisterRoutes registers the dashboard routes with Gin
func (c *DashboardController) RegisterRoutes(router *gin.Engine) {
	dashboard := router.Group("/dashboard")
	{
		dashboard.GET("/summary", c.Summary)
		dashboard.GET("/table", c.Table)
		dashboard.GET("/chart", c.Chart)
		dashboard.POST("/refresh", c.Refresh)
	}
}

// Summary returns the latest reading and humidity stats over all loaded readings
func (c *DashboardController) Summary(ctx *gin.Context) {
	snap, ok := c.snapshot(ctx)
	if !ok {
		return
	}
	ctx.JSON(http.StatusOK, c.summaryBody(snap))
}

// Table returns one page of the filtered, sorted reading table. Each response
// carries filter_key; a client that sends it back alongside changed filter
// bounds is moved to page 1, matching TableState.SetFilter.
func (c *DashboardController) Table(ctx *gin.Context) {
	snap, ok := c.snapshot(ctx)
	if !ok {
		return
	}

	filter, ok := c.filter(ctx)
	if !ok {
		return
	}
	sortState, err := view.ParseSortState(ctx.Query("sort"), ctx.Query("dir"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	page, ok := positiveQuery(ctx, "page", 1)
	if !ok {
		return
	}
	pageSize, ok := positiveQuery(ctx, "page_size", c.pageSize)
	if !ok {
		return
	}

	if prev, sent := ctx.GetQuery("filter_key"); sent && prev != filter.Key() {
		page = 1
	}

	state := view.NewTableState(pageSize).SetFilter(filter).SetPage(page)
	state.Sort = sortState
	ctx.JSON(http.StatusOK, state.Render(snap.Readings))
}

// Chart returns the filtered humidity series
func (c *DashboardController) Chart(ctx *gin.Context) {
	snap, ok := c.snapshot(ctx)
	if !ok {
		return
	}
	filter, ok := c.filter(ctx)
	if !ok {
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"filter": filter,
		"points": view.ChartSeries(snap.Readings, filter),
	})
}

// Refresh reloads every reading now
func (c *DashboardController) Refresh(ctx *gin.Context) {
	if err := c.refresher.Refresh(ctx.Request.Context()); err != nil {
		c.logger.WithRequestID(middleware.GetRequestID(ctx)).WarnWithError(err, "On-demand refresh failed")
		ctx.JSON(http.StatusBadGateway, gin.H{"error": "failed to load readings"})
		return
	}
	snap, _ := c.store.Snapshot()
	ctx.JSON(http.StatusOK, c.summaryBody(snap))
}

func (c *DashboardController) snapshot(ctx *gin.Context) (view.Snapshot, bool) {
	snap, ok := c.store.Snapshot()
	if !ok {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "readings not loaded yet"})
		return view.Snapshot{}, false
	}
	return snap, true
}

func (c *DashboardController) summaryBody(snap view.Snapshot) gin.H {
	body := gin.H{
		"latest":     snap.Latest,
		"stats":      snap.Stats,
		"fetched_at": snap.FetchedAt,
		"generation": c.store.Generation(),
	}
	if err := c.store.LastError(); err != nil {
		body["refresh_error"] = err.Error()
	}
	return body
}

func (c *DashboardController) filter(ctx *gin.Context) (view.Filter, bool) {
	f, err := view.ParseFilter(ctx.Query("start"), ctx.Query("end"), ctx.Query("min"), ctx.Query("max"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return view.Filter{}, false
	}
	return f, true
}

func positiveQuery(ctx *gin.Context, key string, def int) (int, bool) {
	raw := ctx.Query(key)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + key})
		return 0, false
	}
	return n, true
}

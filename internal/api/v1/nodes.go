package api

import (
	"bytes"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/WullT/P8-Tools/internal/datastore"
	"github.com/WullT/P8-Tools/internal/errors"
	"github.com/WullT/P8-Tools/internal/flowering"
	"github.com/WullT/P8-Tools/internal/suncalc"
)

// IntervalResponse is one flowering interval with a readable duration
type IntervalResponse struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Duration string    `json:"duration"`
	Seconds  float64   `json:"seconds"`
}

// DaylightResponse holds the sun events of a node and the derived hour bounds
type DaylightResponse struct {
	NodeID    string                `json:"node_id"`
	Date      string                `json:"date"`
	Events    suncalc.SunEventTimes `json:"events"`
	StartHour int                   `json:"start_hour"`
	EndHour   int                   `json:"end_hour"`
}

func (c *Controller) initNodeRoutes() {
	c.Group.GET("/nodes", c.GetNodes)
	c.Group.GET("/nodes/:node/dates", c.GetNodeDates)
	c.Group.GET("/nodes/:node/intervals", c.GetNodeIntervals)
	c.Group.GET("/nodes/:node/daylight", c.GetNodeDaylight)
}

// GetNodes returns per-node classification counts. Results are cached until
// the TTL expires or a label changes.
func (c *Controller) GetNodes(ctx echo.Context) error {
	if cached, ok := c.nodeCache.Get(nodesCacheKey); ok {
		return ctx.JSON(http.StatusOK, cached)
	}

	aggregates, err := c.DS.AggregateByNode(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "failed to aggregate nodes", statusFromError(err))
	}
	if aggregates == nil {
		aggregates = []datastore.NodeAggregate{}
	}
	c.nodeCache.SetDefault(nodesCacheKey, aggregates)
	return ctx.JSON(http.StatusOK, aggregates)
}

// GetNodeDates returns the capture days of a node as YYYY-MM-DD strings
func (c *Controller) GetNodeDates(ctx echo.Context) error {
	dates, err := c.DS.NodeDates(ctx.Request().Context(), ctx.Param("node"))
	if err != nil {
		return c.HandleError(ctx, err, "failed to list node dates", statusFromError(err))
	}
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = d.Format(time.DateOnly)
	}
	return ctx.JSON(http.StatusOK, out)
}

// GetNodeIntervals returns the flowering intervals of a node as JSON, or as
// CSV with format=csv
func (c *Controller) GetNodeIntervals(ctx echo.Context) error {
	nodeID := ctx.Param("node")
	intervals, err := c.Analyzer.NodeIntervals(ctx.Request().Context(), nodeID)
	if err != nil {
		return c.HandleError(ctx, err, "failed to detect intervals", statusFromError(err))
	}

	if ctx.QueryParam("format") == "csv" {
		var buf bytes.Buffer
		if err := flowering.WriteCSV(&buf, intervals); err != nil {
			return c.HandleError(ctx, err, "failed to render csv", http.StatusInternalServerError)
		}
		ctx.Response().Header().Set(echo.HeaderContentDisposition,
			`attachment; filename="`+nodeID+`_intervals.csv"`)
		return ctx.Blob(http.StatusOK, "text/csv", buf.Bytes())
	}

	out := make([]IntervalResponse, len(intervals))
	for i, iv := range intervals {
		out[i] = IntervalResponse{
			Start:    iv.Start,
			End:      iv.End,
			Duration: flowering.FormatDuration(iv.Duration),
			Seconds:  iv.Duration.Seconds(),
		}
	}
	return ctx.JSON(http.StatusOK, out)
}

// GetNodeDaylight returns civil dawn and dusk of a node on date (default today)
func (c *Controller) GetNodeDaylight(ctx echo.Context) error {
	nodeID := ctx.Param("node")
	day, err := parseDate("date", ctx.QueryParam("date"))
	if err != nil {
		return c.HandleError(ctx, err, "invalid date", http.StatusBadRequest)
	}
	if day.IsZero() {
		day = time.Now().UTC()
	}

	loc, err := c.nodeLocation(nodeID)
	if err != nil {
		return c.HandleError(ctx, err, "daylight unavailable", statusFromError(err))
	}
	events, err := c.SunCalc.SunEvents(loc.Latitude, loc.Longitude, day)
	if err != nil {
		return c.HandleError(ctx, err, "failed to calculate sun events", http.StatusUnprocessableEntity)
	}
	start, end, err := c.SunCalc.DaylightHours(loc.Latitude, loc.Longitude, day)
	if err != nil {
		return c.HandleError(ctx, err, "failed to calculate daylight", http.StatusUnprocessableEntity)
	}
	return ctx.JSON(http.StatusOK, DaylightResponse{
		NodeID:    nodeID,
		Date:      day.Format(time.DateOnly),
		Events:    events,
		StartHour: start,
		EndHour:   end,
	})
}

type location struct {
	Latitude, Longitude float64
}

func (c *Controller) nodeLocation(nodeID string) (location, error) {
	if c.SunCalc == nil {
		return location{}, errors.Newf("daylight calculation is not enabled").
			Component("api").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if nodeID == "" {
		return location{}, badRequest("node", "daylight selection needs a node")
	}
	loc, ok := c.Settings.LocationOf(nodeID)
	if !ok {
		return location{}, errors.Newf("node %s has no configured location", nodeID).
			Component("api").
			Category(errors.CategoryNotFound).
			Context("node_id", nodeID).
			Build()
	}
	return location{Latitude: loc.Latitude, Longitude: loc.Longitude}, nil
}

func (c *Controller) daylightHours(nodeID string, day time.Time) (start, end int, err error) {
	loc, err := c.nodeLocation(nodeID)
	if err != nil {
		return 0, 0, err
	}
	return c.SunCalc.DaylightHours(loc.Latitude, loc.Longitude, day)
}

package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/WullT/P8-Tools/internal/datastore"
	"github.com/WullT/P8-Tools/internal/selection"
)

// ImageResponse is the JSON form of one image record
type ImageResponse struct {
	Filename  string                   `json:"filename"`
	Path      string                   `json:"path"`
	NodeID    string                   `json:"node_id"`
	Date      time.Time                `json:"date"`
	Flower    datastore.Classification `json:"flower"`
	Favorite  bool                     `json:"favorite"`
	Available bool                     `json:"available"`
}

func newImageResponse(rec *datastore.ImageRecord) ImageResponse {
	return ImageResponse{
		Filename:  rec.Filename,
		Path:      rec.Path,
		NodeID:    rec.NodeID,
		Date:      rec.Date.UTC(),
		Flower:    rec.Flower,
		Favorite:  rec.IsFavorite(),
		Available: rec.Available,
	}
}

// QueryResponse echoes the effective selection after normalization
type QueryResponse struct {
	NodeID    string     `json:"node_id,omitempty"`
	StartHour *int       `json:"start_hour,omitempty"`
	EndHour   *int       `json:"end_hour,omitempty"`
	From      *time.Time `json:"from,omitempty"`
	To        *time.Time `json:"to,omitempty"`
	Status    string     `json:"status"`
}

// SelectionResponse is the result of GET /images
type SelectionResponse struct {
	Query  QueryResponse   `json:"query"`
	Count  int             `json:"count"`
	Images []ImageResponse `json:"images"`
}

// NavigateResponse is the image reached by GET /images/navigate
type NavigateResponse struct {
	Index int           `json:"index"`
	Count int           `json:"count"`
	Image ImageResponse `json:"image"`
}

// ClassificationRequest is the body of PUT /images/:filename/classification
type ClassificationRequest struct {
	Flower datastore.Classification `json:"flower"`
}

// FavoriteRequest is the body of PUT /images/:filename/favorite
type FavoriteRequest struct {
	Favorite bool `json:"favorite"`
}

func (c *Controller) initImageRoutes() {
	c.Group.GET("/images", c.SelectImages)
	c.Group.GET("/images/navigate", c.NavigateImages)
	c.Group.GET("/images/:filename", c.GetImage)
	c.Group.PUT("/images/:filename/classification", c.SetClassification)
	c.Group.PUT("/images/:filename/favorite", c.SetFavorite)
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func newQueryResponse(q selection.Query) QueryResponse {
	return QueryResponse{
		NodeID:    q.NodeID,
		StartHour: q.StartHour,
		EndHour:   q.EndHour,
		From:      optionalTime(q.From),
		To:        optionalTime(q.To),
		Status:    q.Status.String(),
	}
}

func parseHour(ctx echo.Context, name string) (*int, error) {
	v := ctx.QueryParam(name)
	if v == "" {
		return nil, nil
	}
	h, err := strconv.Atoi(v)
	if err != nil {
		return nil, badRequest(name, "%s must be an hour, got %q", name, v)
	}
	return &h, nil
}

// parseDate accepts a calendar date or an RFC3339 timestamp
func parseDate(name, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, v, time.UTC); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, badRequest(name, "%s must be YYYY-MM-DD or RFC3339, got %q", name, v)
	}
	return t.UTC(), nil
}

// parseQuery reads a selection from the query string. daylight=true replaces
// the hour bounds with the civil dawn and dusk hours of the node.
func (c *Controller) parseQuery(ctx echo.Context) (selection.Query, error) {
	var (
		q   selection.Query
		err error
	)
	q.NodeID = strings.TrimSpace(ctx.QueryParam("node"))
	if q.StartHour, err = parseHour(ctx, "start_hour"); err != nil {
		return q, err
	}
	if q.EndHour, err = parseHour(ctx, "end_hour"); err != nil {
		return q, err
	}
	if q.From, err = parseDate("from", ctx.QueryParam("from")); err != nil {
		return q, err
	}
	if q.To, err = parseDate("to", ctx.QueryParam("to")); err != nil {
		return q, err
	}
	if q.Status, err = selection.ParseStatus(ctx.QueryParam("status")); err != nil {
		return q, err
	}

	if ctx.QueryParam("daylight") == "true" {
		day := q.From
		if v := ctx.QueryParam("date"); v != "" {
			if day, err = parseDate("date", v); err != nil {
				return q, err
			}
		}
		if day.IsZero() {
			day = time.Now().UTC()
		}
		start, end, err := c.daylightHours(q.NodeID, day)
		if err != nil {
			return q, err
		}
		q.StartHour, q.EndHour = selection.Hour(start), selection.Hour(end)
		q.ExplicitHours = true
	}
	return q, nil
}

// SelectImages returns the available images matching the query string,
// ordered by node and capture time
func (c *Controller) SelectImages(ctx echo.Context) error {
	q, err := c.parseQuery(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "invalid selection", statusFromError(err))
	}

	res, err := c.Engine.Select(ctx.Request().Context(), q)
	if err != nil {
		return c.HandleError(ctx, err, "selection failed", statusFromError(err))
	}

	images := make([]ImageResponse, len(res.Images))
	for i := range res.Images {
		images[i] = newImageResponse(&res.Images[i])
	}
	return ctx.JSON(http.StatusOK, SelectionResponse{
		Query:  newQueryResponse(res.Query),
		Count:  res.Len(),
		Images: images,
	})
}

// NavigateImages moves through a selection relative to the image named by
// current. move is one of first, next, prev, skip or random; skip takes n.
func (c *Controller) NavigateImages(ctx echo.Context) error {
	q, err := c.parseQuery(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "invalid selection", statusFromError(err))
	}
	res, err := c.Engine.Select(ctx.Request().Context(), q)
	if err != nil {
		return c.HandleError(ctx, err, "selection failed", statusFromError(err))
	}
	if res.Empty() {
		return c.HandleError(ctx, nil, "selection is empty", http.StatusNotFound)
	}

	cursor := selection.NewCursor(res)
	if current := ctx.QueryParam("current"); current != "" {
		cursor.Seek(current)
	}

	var rec datastore.ImageRecord
	switch move := ctx.QueryParam("move"); move {
	case "", "current":
		rec, _ = cursor.Current()
	case "first":
		rec, _ = cursor.First()
	case "next":
		rec, _ = cursor.Next()
	case "prev":
		rec, _ = cursor.Prev()
	case "random":
		rec, _ = cursor.Random()
	case "skip":
		n, err := strconv.Atoi(ctx.QueryParam("n"))
		if err != nil {
			return c.HandleError(ctx, badRequest("n", "n must be an integer"), "invalid skip", http.StatusBadRequest)
		}
		rec, _ = cursor.Skip(n)
	default:
		err := badRequest("move", "unknown move %q", move)
		return c.HandleError(ctx, err, "invalid move", http.StatusBadRequest)
	}

	return ctx.JSON(http.StatusOK, NavigateResponse{
		Index: cursor.Index(),
		Count: cursor.Len(),
		Image: newImageResponse(&rec),
	})
}

// GetImage returns one image record by filename
func (c *Controller) GetImage(ctx echo.Context) error {
	rec, err := c.DS.GetImage(ctx.Request().Context(), ctx.Param("filename"))
	if err != nil {
		return c.HandleError(ctx, err, "failed to get image", statusFromError(err))
	}
	return ctx.JSON(http.StatusOK, newImageResponse(&rec))
}

// SetClassification stores the flower label of one image
func (c *Controller) SetClassification(ctx echo.Context) error {
	var req ClassificationRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "invalid request body", http.StatusBadRequest)
	}

	filename := ctx.Param("filename")
	if err := c.DS.SetClassification(ctx.Request().Context(), filename, req.Flower); err != nil {
		return c.HandleError(ctx, err, "failed to set classification", statusFromError(err))
	}
	c.invalidateNodes()
	return c.GetImage(ctx)
}

// SetFavorite sets or clears the favorite flag of one image
func (c *Controller) SetFavorite(ctx echo.Context) error {
	var req FavoriteRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "invalid request body", http.StatusBadRequest)
	}

	filename := ctx.Param("filename")
	if err := c.DS.SetFavorite(ctx.Request().Context(), filename, req.Favorite); err != nil {
		return c.HandleError(ctx, err, "failed to set favorite", statusFromError(err))
	}
	return c.GetImage(ctx)
}

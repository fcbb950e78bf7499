package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/WullT/P8-Tools/internal/annotation"
	"github.com/WullT/P8-Tools/internal/datastore"
)

// AnnotationResponse is one stored box with its normalized form
type AnnotationResponse struct {
	Type        string                   `json:"type"`
	AnnotType   int                      `json:"annot_type"`
	Box         annotation.Box           `json:"box"`
	Normalized  annotation.NormalizedBox `json:"normalized"`
	ImageWidth  int                      `json:"image_width"`
	ImageHeight int                      `json:"image_height"`
}

// AnnotationsRequest is the body of PUT /images/:filename/annotations/:type.
// Shapes are the rectangles as drawn; an empty list clears the type.
type AnnotationsRequest struct {
	ImageWidth  int                `json:"image_width"`
	ImageHeight int                `json:"image_height"`
	Shapes      []annotation.Shape `json:"shapes"`
}

func (c *Controller) initAnnotationRoutes() {
	c.Group.GET("/images/:filename/annotations", c.GetAnnotations)
	c.Group.PUT("/images/:filename/annotations/:type", c.ReplaceAnnotations)
	c.Group.GET("/images/:filename/labels", c.GetLabels)
}

func (c *Controller) annotationsOf(ctx echo.Context) ([]datastore.AnnotationRecord, error) {
	var annotType *datastore.AnnotationType
	if v := ctx.QueryParam("type"); v != "" {
		t, err := datastore.ParseAnnotationType(v)
		if err != nil {
			return nil, err
		}
		annotType = &t
	}
	return c.DS.QueryAnnotations(ctx.Request().Context(), ctx.Param("filename"), annotType)
}

// GetAnnotations lists the boxes of an image, optionally of one type
func (c *Controller) GetAnnotations(ctx echo.Context) error {
	records, err := c.annotationsOf(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "failed to query annotations", statusFromError(err))
	}
	return c.writeAnnotations(ctx, records)
}

func (c *Controller) writeAnnotations(ctx echo.Context, records []datastore.AnnotationRecord) error {
	out := make([]AnnotationResponse, 0, len(records))
	for _, rec := range records {
		box := annotation.BoxFromRecord(rec)
		nb, err := annotation.Normalize(box, rec.ImageWidth, rec.ImageHeight)
		if err != nil {
			return c.HandleError(ctx, err, "stored annotation is invalid", http.StatusInternalServerError)
		}
		out = append(out, AnnotationResponse{
			Type:        rec.AnnotType.String(),
			AnnotType:   int(rec.AnnotType),
			Box:         box,
			Normalized:  nb,
			ImageWidth:  rec.ImageWidth,
			ImageHeight: rec.ImageHeight,
		})
	}
	return ctx.JSON(http.StatusOK, out)
}

// ReplaceAnnotations replaces every box of one type on an image
func (c *Controller) ReplaceAnnotations(ctx echo.Context) error {
	annotType, err := datastore.ParseAnnotationType(ctx.Param("type"))
	if err != nil {
		return c.HandleError(ctx, err, "invalid annotation type", http.StatusBadRequest)
	}
	var req AnnotationsRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "invalid request body", http.StatusBadRequest)
	}

	reqCtx := ctx.Request().Context()
	filename := ctx.Param("filename")
	if _, err := c.DS.GetImage(reqCtx, filename); err != nil {
		return c.HandleError(ctx, err, "failed to get image", statusFromError(err))
	}

	records, err := annotation.ToRecords(filename, annotType, annotation.FromShapes(req.Shapes), req.ImageWidth, req.ImageHeight)
	if err != nil {
		return c.HandleError(ctx, err, "invalid annotations", statusFromError(err))
	}
	if err := c.DS.ReplaceAnnotations(reqCtx, filename, annotType, records); err != nil {
		return c.HandleError(ctx, err, "failed to save annotations", statusFromError(err))
	}

	return c.writeAnnotations(ctx, records)
}

// GetLabels renders the YOLO label file of an image as plain text
func (c *Controller) GetLabels(ctx echo.Context) error {
	records, err := c.DS.QueryAnnotations(ctx.Request().Context(), ctx.Param("filename"), nil)
	if err != nil {
		return c.HandleError(ctx, err, "failed to query annotations", statusFromError(err))
	}
	lines, err := annotation.LabelLines(records, c.classes)
	if err != nil {
		return c.HandleError(ctx, err, "failed to render labels", statusFromError(err))
	}
	return ctx.String(http.StatusOK, annotation.LabelFile(lines))
}

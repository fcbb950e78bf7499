package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/WullT/P8-Tools/internal/conf"
	"github.com/WullT/P8-Tools/internal/errors"
)

func (c *Controller) initJobRoutes() {
	c.Group.POST("/scan", c.RunScan)
	c.Group.POST("/export", c.RunExport)
}

func jobBusy(job string) error {
	return errors.Newf("a scan or export is already running").
		Component("api").
		Category(errors.CategoryConflict).
		Context("job", job).
		Build()
}

func jobDisabled(job string) error {
	return errors.Newf("%s is not enabled on this server", job).
		Component("api").
		Category(errors.CategoryConfiguration).
		Context("job", job).
		Build()
}

// RunScan rescans the image base directory and returns the scan report
func (c *Controller) RunScan(ctx echo.Context) error {
	if c.Scanner == nil {
		return c.HandleError(ctx, jobDisabled("scan"), "scan unavailable", http.StatusServiceUnavailable)
	}
	if !c.jobMu.TryLock() {
		return c.HandleError(ctx, jobBusy("scan"), "job running", http.StatusConflict)
	}
	defer c.jobMu.Unlock()

	report, err := c.Scanner.Scan(ctx.Request().Context(), conf.GetBasePath(c.Settings.Main.BasePath))
	if err != nil {
		return c.HandleError(ctx, err, "scan failed", statusFromError(err))
	}
	c.invalidateNodes()
	return ctx.JSON(http.StatusOK, report)
}

// RunExport writes YOLO labels for every annotated image and returns the report
func (c *Controller) RunExport(ctx echo.Context) error {
	if c.Exporter == nil {
		return c.HandleError(ctx, jobDisabled("export"), "export unavailable", http.StatusServiceUnavailable)
	}
	if !c.jobMu.TryLock() {
		return c.HandleError(ctx, jobBusy("export"), "job running", http.StatusConflict)
	}
	defer c.jobMu.Unlock()

	report, err := c.Exporter.Run(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "export failed", statusFromError(err))
	}
	return ctx.JSON(http.StatusOK, report)
}

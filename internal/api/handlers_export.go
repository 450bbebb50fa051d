package api

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/pharrrodev/type2lyfe-sub001/internal/models"
	"github.com/pharrrodev/type2lyfe-sub001/internal/services"
)

func (handler *Handler) ExportCSV(c *fiber.Ctx) error {
	user, exportRange, status, message := handler.exportUserAndRange(c)
	if status != 0 {
		return apiError(c, status, message)
	}

	rows, err := handler.exportService.BuildCSVRows(user.ID, exportRange, handler.location)
	if err != nil {
		handler.logger.Error("export failed", "user_id", user.ID, "err", err)
		return apiError(c, fiber.StatusInternalServerError, "failed to fetch logs")
	}

	var output bytes.Buffer
	writer := csv.NewWriter(&output)
	if err := writer.Write(services.ExportCSVHeaders); err != nil {
		return apiError(c, fiber.StatusInternalServerError, "failed to build export")
	}
	for _, row := range rows {
		if err := writer.Write(row.Columns()); err != nil {
			return apiError(c, fiber.StatusInternalServerError, "failed to build export")
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return apiError(c, fiber.StatusInternalServerError, "failed to build export")
	}

	now := handler.now().In(handler.location)
	setExportAttachmentHeaders(c, "text/csv", buildExportFilename(now, "csv"))
	return c.Send(output.Bytes())
}

func (handler *Handler) ExportSummary(c *fiber.Ctx) error {
	user, exportRange, status, message := handler.exportUserAndRange(c)
	if status != 0 {
		return apiError(c, status, message)
	}

	summary, err := handler.exportService.BuildSummary(user.ID, exportRange, handler.location)
	if err != nil {
		return apiError(c, fiber.StatusInternalServerError, "failed to fetch logs")
	}
	return c.JSON(fiber.Map{
		"total_entries": summary.TotalEntries,
		"has_data":      summary.HasData,
		"date_from":     summary.DateFrom,
		"date_to":       summary.DateTo,
	})
}

func (handler *Handler) exportUserAndRange(c *fiber.Ctx) (*models.User, services.ExportRange, int, string) {
	user, ok := currentUser(c)
	if !ok || user == nil {
		return nil, services.ExportRange{}, fiber.StatusUnauthorized, "unauthorized"
	}

	exportRange, err := services.ParseExportRange(c.Query("from"), c.Query("to"), handler.location)
	switch {
	case errors.Is(err, services.ErrExportFromDateInvalid):
		return nil, services.ExportRange{}, fiber.StatusBadRequest, "invalid from date"
	case errors.Is(err, services.ErrExportToDateInvalid):
		return nil, services.ExportRange{}, fiber.StatusBadRequest, "invalid to date"
	case err != nil:
		return nil, services.ExportRange{}, fiber.StatusBadRequest, "invalid range"
	}
	return user, exportRange, 0, ""
}

func buildExportFilename(now time.Time, extension string) string {
	return fmt.Sprintf("type2lyfe-export-%s.%s", now.Format("2006-01-02"), extension)
}

func setExportAttachmentHeaders(c *fiber.Ctx, contentType string, filename string) {
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%s", filename))
}

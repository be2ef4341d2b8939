package report

import (
	"fmt"

	common_api "go-reports/internal/common/api"
	"go-reports/internal/evaluation/model"
	"go-reports/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type ReportController struct {
	ReportService ReportService
}

func NewReportController(reportService ReportService) *ReportController {
	return &ReportController{ReportService: reportService}
}

// Create godoc
// @Summary Save a report definition
// @Tags reports
// @Accept json
// @Produce json
// @Param report body ReportDefinition true "Report definition"
// @Success 201 {object} ReportDefinition
// @Failure 400 {object} map[string]interface{}
// @Router /api/reports [post]
func (c *ReportController) Create(ctx *fiber.Ctx) error {
	var report ReportDefinition
	if err := ctx.BodyParser(&report); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if err := c.ReportService.CreateReport(ctx.UserContext(), middleware.CurrentUserID(ctx), &report); err != nil {
		return common_api.ErrorHandler(ctx, err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(report)
}

// List godoc
// @Summary List the caller's reports
// @Tags reports
// @Produce json
// @Success 200 {array} ReportDefinition
// @Router /api/reports [get]
func (c *ReportController) List(ctx *fiber.Ctx) error {
	reports, err := c.ReportService.ListReports(ctx.UserContext(), middleware.CurrentUserID(ctx))
	if err != nil {
		return common_api.ErrorHandler(ctx, err)
	}
	return ctx.JSON(reports)
}

// Get godoc
// @Summary Get a report definition
// @Tags reports
// @Produce json
// @Param id path string true "Report ID"
// @Success 200 {object} ReportDefinition
// @Failure 403 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/reports/{id} [get]
func (c *ReportController) Get(ctx *fiber.Ctx) error {
	report, err := c.ReportService.GetReport(ctx.UserContext(), middleware.CurrentUserID(ctx), ctx.Params("id"))
	if err != nil {
		return common_api.ErrorHandler(ctx, err)
	}
	return ctx.JSON(report)
}

// Delete godoc
// @Summary Delete a report definition
// @Tags reports
// @Param id path string true "Report ID"
// @Success 204
// @Router /api/reports/{id} [delete]
func (c *ReportController) Delete(ctx *fiber.Ctx) error {
	if err := c.ReportService.DeleteReport(ctx.UserContext(), middleware.CurrentUserID(ctx), ctx.Params("id")); err != nil {
		return common_api.ErrorHandler(ctx, err)
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

// Evaluate godoc
// @Summary Evaluate a saved report
// @Description POST accepts additional filters in the body; they apply to process reports only.
// @Tags reports
// @Accept json
// @Produce json
// @Param id path string true "Report ID"
// @Param X-Timezone header string false "IANA timezone of date buckets"
// @Param recordLimit query int false "Raw data page size"
// @Param pageToken query string false "Raw data continuation token"
// @Param options body EvaluationOptions false "Additional filters"
// @Success 200 {object} AuthorizedResult
// @Failure 400 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/reports/{id}/evaluate [post]
func (c *ReportController) Evaluate(ctx *fiber.Ctx) error {
	var opts EvaluationOptions
	if ctx.Method() == fiber.MethodPost && len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&opts); err != nil {
			return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
	}
	applyQueryOptions(ctx, &opts)

	result, err := c.ReportService.EvaluateSaved(ctx.UserContext(), middleware.CurrentUserID(ctx), ctx.Params("id"), opts)
	if err != nil {
		return common_api.ErrorHandler(ctx, err)
	}
	return ctx.JSON(result)
}

type adHocRequest struct {
	Report  ReportDefinition `json:"report"`
	Filters []model.Filter   `json:"filters"`
}

// EvaluateAdHoc godoc
// @Summary Evaluate an unsaved report definition
// @Tags reports
// @Accept json
// @Produce json
// @Param X-Timezone header string false "IANA timezone of date buckets"
// @Param request body adHocRequest true "Report definition and additional filters"
// @Success 200 {object} AuthorizedResult
// @Failure 400 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Router /api/reports/evaluate [post]
func (c *ReportController) EvaluateAdHoc(ctx *fiber.Ctx) error {
	var req adHocRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	opts := EvaluationOptions{Filters: req.Filters}
	applyQueryOptions(ctx, &opts)

	result, err := c.ReportService.EvaluateAdHoc(ctx.UserContext(), middleware.CurrentUserID(ctx), &req.Report, opts)
	if err != nil {
		return common_api.ErrorHandler(ctx, err)
	}
	return ctx.JSON(result)
}

// Export godoc
// @Summary Export a report result
// @Tags reports
// @Produce text/csv
// @Param id path string true "Report ID"
// @Param format query string false "csv or xlsx" default(csv)
// @Success 200 {file} file
// @Router /api/reports/{id}/export [get]
func (c *ReportController) Export(ctx *fiber.Ctx) error {
	format := ExportFormat(ctx.Query("format", string(FormatCSV)))

	data, filename, err := c.ReportService.Export(ctx.UserContext(), middleware.CurrentUserID(ctx), ctx.Params("id"), format)
	if err != nil {
		return common_api.ErrorHandler(ctx, err)
	}

	ctx.Set("Content-Type", format.ContentType())
	ctx.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	return ctx.Send(data)
}

func applyQueryOptions(ctx *fiber.Ctx, opts *EvaluationOptions) {
	if limit := ctx.QueryInt("recordLimit"); limit > 0 {
		opts.RecordLimit = limit
	}
	if token := ctx.Query("pageToken"); token != "" {
		opts.PageToken = token
	}
	opts.Timezone = ctx.Get(middleware.TimezoneHeader)
}

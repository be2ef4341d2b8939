package report

import (
	"go-reports/internal/config"
	"go-reports/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type ReportApi struct {
	ReportController *ReportController
	Config           *config.Config
}

func NewReportApi(reportController *ReportController, config *config.Config) *ReportApi {
	return &ReportApi{
		ReportController: reportController,
		Config:           config,
	}
}

func (api *ReportApi) Setup(app *fiber.App) {
	group := app.Group("/api/reports", middleware.AuthMiddleware(api.Config.SkipAuth))

	group.Post("/", api.ReportController.Create)
	group.Get("/", api.ReportController.List)
	group.Post("/evaluate", api.ReportController.EvaluateAdHoc)
	group.Get("/:id", api.ReportController.Get)
	group.Delete("/:id", api.ReportController.Delete)
	group.Get("/:id/evaluate", api.ReportController.Evaluate)
	group.Post("/:id/evaluate", api.ReportController.Evaluate)
	group.Get("/:id/export", api.ReportController.Export)
}

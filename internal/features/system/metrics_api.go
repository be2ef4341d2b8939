package system

import (
	"go-reports/internal/metrics"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
)

type MetricsApi struct {
	collector *metrics.Collector
}

func NewMetricsApi(collector *metrics.Collector) *MetricsApi {
	return &MetricsApi{collector: collector}
}

// Setup exposes the Prometheus registry of the engine.
func (h *MetricsApi) Setup(app *fiber.App) {
	app.Get("/metrics", adaptor.HTTPHandler(h.collector.Handler()))
}

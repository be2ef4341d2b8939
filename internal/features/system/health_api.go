package system

import (
	"context"
	"time"

	"go-reports/internal/config"

	"github.com/gofiber/fiber/v2"
)

// Pinger is the database check behind readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthApi struct {
	db       Pinger
	settings *config.SettingsHolder
}

func NewHealthApi(db Pinger, settings *config.SettingsHolder) *HealthApi {
	return &HealthApi{db: db, settings: settings}
}

// Setup registers health check routes
func (h *HealthApi) Setup(app *fiber.App) {
	app.Get("/health", h.HealthCheck)
	app.Get("/health/ready", h.Ready)
}

// HealthCheck godoc
// @Summary      Health Check
// @Description  Check if the server is up
// @Tags         health
// @Produce      plain
// @Success      200  {string}  string  "OK"
// @Router       /health [get]
func (h *HealthApi) HealthCheck(c *fiber.Ctx) error {
	return c.SendString("OK")
}

// Ready godoc
// @Summary      Readiness Check
// @Description  Check the database and report the engine settings in effect
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      503  {object}  map[string]interface{}
// @Router       /health/ready [get]
func (h *HealthApi) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":   "unavailable",
			"database": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"status":   "ready",
		"database": "ok",
		"engine":   h.settings.Load(),
	})
}

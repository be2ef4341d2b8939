package settings

import (
	common_api "go-reports/internal/common/api"

	"github.com/gofiber/fiber/v2"
)

type SettingsController struct {
	Service SettingsService
}

func NewSettingsController(service SettingsService) *SettingsController {
	return &SettingsController{
		Service: service,
	}
}

// GetEngineSettings godoc
// @Summary Get engine settings
// @Description Get the stored engine overrides and the settings currently in effect
// @Tags settings
// @Produce json
// @Success 200 {object} EngineSettingsResponse
// @Failure 500 {object} map[string]interface{}
// @Router /api/settings/engine [get]
func (c *SettingsController) GetEngineSettings(ctx *fiber.Ctx) error {
	settings, err := c.Service.GetEngineSettings(ctx.UserContext())
	if err != nil {
		return common_api.ErrorHandler(ctx, err)
	}
	return ctx.JSON(settings)
}

// UpdateEngineSettings godoc
// @Summary Update engine settings
// @Description Replace the engine overrides. Fields left out fall back to the environment defaults.
// @Tags settings
// @Accept json
// @Produce json
// @Param overrides body EngineOverrides true "Engine overrides"
// @Success 200 {object} EngineSettingsResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/settings/engine [put]
func (c *SettingsController) UpdateEngineSettings(ctx *fiber.Ctx) error {
	var overrides EngineOverrides
	if err := ctx.BodyParser(&overrides); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	settings, err := c.Service.UpdateEngineOverrides(ctx.UserContext(), overrides)
	if err != nil {
		return common_api.ErrorHandler(ctx, err)
	}
	return ctx.JSON(settings)
}

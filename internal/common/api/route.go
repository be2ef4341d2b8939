package api

import (
	"errors"

	"go-reports/pkg/apperrors"

	"github.com/gofiber/fiber/v2"
)

// Route is implemented by every feature api and registered at startup.
type Route interface {
	Setup(app *fiber.App)
}

// ErrorHandler renders errors returned by handlers as {"error": ..., "details": ...}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}

	body := fiber.Map{"error": err.Error()}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		body["error"] = appErr.Message
		body["kind"] = appErr.Kind
		if appErr.Details != "" {
			body["details"] = appErr.Details
		}
	}
	return c.Status(apperrors.StatusCode(err)).JSON(body)
}

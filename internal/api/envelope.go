package api

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/ishaanrender/scrapegoat-render/internal/apierr"
)

// Envelope is the uniform response shape every handler returns.
type Envelope struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Data    any            `json:"data,omitempty"`
	Errors  map[string]any `json:"errors,omitempty"`
}

func ok(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(Envelope{Success: true, Data: data})
}

func okMessage(c *fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(Envelope{Success: true, Message: message, Data: data})
}

func fail(c *fiber.Ctx, status int, message string, errs map[string]any) error {
	return c.Status(status).JSON(Envelope{Success: false, Message: message, Errors: errs})
}

// respondError maps the error taxonomy onto HTTP statuses: validation
// failures are 422, admission refusals 429 with a Retry-After hint,
// upstream rendering/extraction/transform failures 502, and anything
// else a sanitized 500.
func respondError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch apierr.KindOf(err) {
	case apierr.KindValidation:
		status = fiber.StatusUnprocessableEntity
	case apierr.KindAdmission:
		status = fiber.StatusTooManyRequests
	case apierr.KindRendering, apierr.KindExtraction, apierr.KindTransform:
		status = fiber.StatusBadGateway
	}

	var adm *apierr.AdmissionError
	if errors.As(err, &adm) {
		c.Set("Retry-After", strconv.Itoa(adm.RetryAfterSeconds))
		return fail(c, status, err.Error(), map[string]any{
			"retry_after_seconds": adm.RetryAfterSeconds,
		})
	}
	if status == fiber.StatusInternalServerError {
		return fail(c, status, "internal error", nil)
	}
	return fail(c, status, err.Error(), nil)
}

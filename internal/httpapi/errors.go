package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kohakuhub/hub/internal/apperr"
)

// WithError maps err's apperr type to the §6/§7 header contract: an
// empty body plus X-Error-Code/X-Error-Message, adapted from the
// teacher's errors.go#WithError type switch from a JSON ResponseError
// body to this spec's headers-only contract.
func WithError(c *fiber.Ctx, err error) error {
	status := apperr.StatusCode(err)

	c.Set("X-Error-Code", apperr.Code(err))
	c.Set("X-Error-Message", apperr.Message(err))

	return c.Status(status).Send(nil)
}

// errorHandler is installed as the fiber.Config ErrorHandler so that
// any handler returning a plain error (not already written via
// WithError) still gets the header contract instead of fiber's default
// JSON error body.
func errorHandler(c *fiber.Ctx, err error) error {
	if fe, ok := err.(*fiber.Error); ok {
		c.Set("X-Error-Code", "BadRequest")
		c.Set("X-Error-Message", fe.Message)

		return c.Status(fe.Code).Send(nil)
	}

	return WithError(c, err)
}

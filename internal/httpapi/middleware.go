// Package httpapi is the thin HTTP surface of spec §4.J: each route
// parses path/query/body, resolves an auth.Identity, calls the owning
// component, and maps the result to the HF-compatible response/header
// contract of §6. No business logic lives here. Grounded on the
// teacher's common/net/http middleware set (withCORS, withCorrelationID,
// withLogging) and bootstrap/http router assembly, generalized from
// Casdoor JWT auth to this domain's composite Authorization header.
package httpapi

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/google/uuid"

	"github.com/kohakuhub/hub/internal/logging"
)

const headerCorrelationID = "X-Request-Id"

// WithCorrelationID stamps every request/response pair with an id a
// client or log aggregator can use to join the two, mirroring the
// teacher's withCorrelationID.go.
func WithCorrelationID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		cid := c.Get(headerCorrelationID)
		if cid == "" {
			cid = uuid.NewString()
		}

		c.Set(headerCorrelationID, cid)
		c.Locals("correlation_id", cid)

		return c.Next()
	}
}

// WithCORS mirrors the teacher's permissive default CORS policy — this
// hub's API is consumed by browser-based model/dataset UIs and CLI
// clients alike.
func WithCORS() fiber.Handler {
	return cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET, HEAD, POST, PUT, DELETE, PATCH, OPTIONS",
		AllowHeaders: "Accept, Content-Type, Content-Length, Authorization, X-Request-Id",
	})
}

// WithLogging logs one structured line per request, generalized from
// the teacher's CLF-style withLogging.go to the zap-backed
// logging.Logger already used across this module.
func WithLogging(logger logging.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		logger.Infof("http: %s %s status=%d duration=%s request_id=%s",
			c.Method(), c.Path(), c.Response().StatusCode(), time.Since(start), c.Locals("correlation_id"))

		return err
	}
}

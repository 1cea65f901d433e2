package httpapi

import (
	"github.com/gofiber/fiber/v2"
)

// adminQueryRequest is the body of POST /api/admin/query.
type adminQueryRequest struct {
	Secret string `json:"secret" validate:"required"`
	SQL    string `json:"sql" validate:"required"`
}

// AdminQuery implements the admin console route (spec §9): a nil
// Admin console means the feature is disabled for this deployment,
// which surfaces as 503, distinct from 401/403 so an operator can tell
// "not configured" from "wrong secret".
func (h *Handlers) AdminQuery(c *fiber.Ctx) error {
	if h.Admin == nil {
		return c.SendStatus(fiber.StatusServiceUnavailable)
	}

	var req adminQueryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}

	if err := ValidateStruct(req); err != nil {
		return WithError(c, err)
	}

	rows, err := h.Admin.Query(c.Context(), req.Secret, req.SQL)
	if err != nil {
		return WithError(c, err)
	}

	return c.JSON(fiber.Map{"rows": rows})
}

package httpapi

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"gopkg.in/yaml.v3"

	"github.com/kohakuhub/hub/internal/apperr"
)

// version is the hub's own wire version, reported on /api/version the
// way the teacher's Version handler reports its build version.
const version = "1.0.0"

// WhoAmI implements `GET /api/whoami-v2`.
func (h *Handlers) WhoAmI(c *fiber.Ctx) error {
	identity := identityFrom(c)
	if identity.Anonymous() {
		return WithError(c, apperr.NewUnauthorized("Unauthorized", "login required"))
	}

	return c.JSON(fiber.Map{
		"name":  identity.User.Username,
		"email": identity.User.Email,
		"site": fiber.Map{
			"name":    h.Config.SiteName,
			"api":     "kohakuhub",
			"version": version,
		},
	})
}

// Version implements `GET /api/version`.
func (h *Handlers) Version(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"api":     "kohakuhub",
		"version": version,
		"name":    h.Config.SiteName,
	})
}

// validateYAMLRequest is the body of POST /api/validate-yaml.
type validateYAMLRequest struct {
	Content string `json:"content"`
}

// ValidateYAML implements `POST /api/validate-yaml`: parses the README
// front matter the way the original hub validates a model/dataset card,
// without enforcing any particular schema (no tag/license registry is
// carried by this hub, spec's Non-goals scope out the web UI that would
// consume one).
func (h *Handlers) ValidateYAML(c *fiber.Ctx) error {
	var req validateYAMLRequest
	if err := c.BodyParser(&req); err != nil {
		return c.JSON(fiber.Map{"warnings": []string{}, "errors": []string{"malformed request body"}})
	}

	var doc map[string]any
	if err := yaml.Unmarshal([]byte(req.Content), &doc); err != nil {
		return c.JSON(fiber.Map{"warnings": []string{}, "errors": []string{err.Error()}})
	}

	return c.JSON(fiber.Map{"warnings": []string{}, "errors": []string{}})
}

// validateNameRequest is the body of POST /api/validate/check-name.
type validateNameRequest struct {
	Name string `json:"name" validate:"required"`
}

// ValidateCheckName implements `POST /api/validate/check-name`: it
// reports whether name is non-empty, all lowercase and free of
// whitespace. repos/create does not apply this rule; it checks only
// the name's length.
func (h *Handlers) ValidateCheckName(c *fiber.Ctx) error {
	var req validateNameRequest
	if err := c.BodyParser(&req); err != nil {
		return WithError(c, err)
	}

	if err := ValidateStruct(req); err != nil {
		return WithError(c, err)
	}

	valid := req.Name == strings.ToLower(req.Name) && !strings.ContainsAny(req.Name, " \t\n") && req.Name != ""

	return c.JSON(fiber.Map{"valid": valid})
}

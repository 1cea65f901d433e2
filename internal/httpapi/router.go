package httpapi

import (
	"github.com/gofiber/fiber/v2"
)

// NewRouter assembles the full HF-compatible surface of spec §6 onto a
// fresh *fiber.App, grounded on the teacher's bootstrap/http#NewRouter
// assembly (middleware chain first, routes grouped by resource next).
func NewRouter(h *Handlers) *fiber.App {
	f := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	f.Use(WithCorrelationID())
	f.Use(WithCORS())
	f.Use(WithLogging(h.Logger))
	f.Use(h.WithAuth)

	f.Get("/health", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	f.Get("/api/version", h.Version)
	f.Get("/api/whoami-v2", h.WhoAmI)
	f.Post("/api/validate-yaml", h.ValidateYAML)
	f.Post("/api/validate/check-name", h.ValidateCheckName)

	f.Post("/api/repos/create", h.CreateRepo)
	f.Delete("/api/repos/delete", h.DeleteRepo)

	f.Get("/api/:type/:namespace/:name/tree/:revision/*", h.Tree)
	f.Get("/api/:type/:namespace/:name/tree/:revision", h.Tree)
	f.Get("/api/:type/:namespace/:name/commits/:branch", h.Commits)
	f.Post("/api/:type/:namespace/:name/commit/:revision", h.Commit)
	f.Get("/api/:type/:namespace/:name/xet-read-token/:revision/*", h.XetReadToken)
	f.Get("/api/:type/:namespace/:name", h.GetRepo)
	f.Get("/api/:type", h.ListRepos)

	// Global, not repo-scoped: locates any File row with this hash
	// across every repository (spec §4.G/§6).
	f.Get("/cas/reconstructions/:sha256", h.Reconstruct)

	f.Post("/api/admin/query", h.AdminQuery)

	f.Post("/:type/:namespace/:name.git/info/lfs/objects/batch", h.LFSBatch)
	f.Post("/:type/:namespace/:name.git/info/lfs/verify", h.LFSVerify)
	f.Post("/:type/:namespace/:name.git/info/lfs/complete-multipart", h.LFSCompleteMultipart)

	f.Get("/:type/:namespace/:name/resolve/:revision/*", h.ResolveFile)
	f.Head("/:type/:namespace/:name/resolve/:revision/*", h.ResolveFile)

	return f
}

package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kohakuhub/hub/internal/platform/launcher"
)

// Server wraps the HTTP surface as a launcher.App, grounded on the
// teacher's bootstrap/server.go#Server.Run, simplified since this
// module has no telemetry shutdown manager to hand off to.
type Server struct {
	app  *fiber.App
	addr string
}

// NewServer builds a Server listening on addr (e.g. ":8000").
func NewServer(app *fiber.App, addr string) *Server {
	return &Server{app: app, addr: addr}
}

// Run starts the HTTP server and blocks until it stops (error or
// Listen returning on shutdown), satisfying launcher.App.
func (s *Server) Run(l *launcher.Launcher) error {
	return s.app.Listen(s.addr)
}

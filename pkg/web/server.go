// Package web exposes the teleoperation control surface over HTTP and
// websockets: REST endpoints for one-shot target updates and status, a
// ws input stream for continuous drags, and a ws diagnostics broadcast.
package web

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/robokit/go-teleop/internal/log"
	"github.com/robokit/go-teleop/pkg/hub"
	"github.com/robokit/go-teleop/pkg/pose"
	"github.com/robokit/go-teleop/pkg/teleop"
)

// statusInterval is how often diagnostics are broadcast to ws clients.
const statusInterval = 200 * time.Millisecond

// ControlSurface is the session API the server drives. Implemented by
// *teleop.Session.
type ControlSurface interface {
	SetTarget(partial pose.Partial, mode teleop.Mode)
	SmoothedPose() pose.Pose
	Diagnostics() teleop.Diagnostics
}

// Server is the teleop control and diagnostics server.
type Server struct {
	app     *fiber.App
	port    string
	session ControlSurface

	statusHub *hub.Hub
	stop      chan struct{}
}

// NewServer creates the server for the given session.
func NewServer(port string, session ControlSurface) *Server {
	s := &Server{
		port:      port,
		session:   session,
		statusHub: hub.New("status"),
		stop:      make(chan struct{}),
	}

	app := fiber.New(fiber.Config{
		AppName:               "go-teleop",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/pose", s.handlePose)
	api.Post("/target", s.handleTarget)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/control", websocket.New(s.handleControlWS))
	app.Get("/ws/status", websocket.New(s.handleStatusWS))

	s.app = app
	return s
}

// Start runs the hub, the status broadcast loop and the listener.
// Blocks until Shutdown.
func (s *Server) Start() error {
	go s.statusHub.Run()
	go s.statusLoop()

	log.Info("control surface listening", "port", s.port)
	return s.app.Listen(":" + s.port)
}

// StartAsync starts the server in a goroutine.
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			log.Error("web server failed", "err", err)
		}
	}()
}

// Shutdown stops the listener, the status loop and the hub.
func (s *Server) Shutdown() error {
	close(s.stop)
	s.statusHub.Stop()
	return s.app.Shutdown()
}

// statusUpdate is one diagnostics broadcast frame.
type statusUpdate struct {
	teleop.Diagnostics
	Ghost pose.Pose `json:"ghost"`
}

// statusLoop pushes diagnostics and the interpolated ghost pose to
// subscribed clients.
func (s *Server) statusLoop() {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if s.statusHub.ClientCount() == 0 {
				continue
			}
			s.statusHub.BroadcastJSON(statusUpdate{
				Diagnostics: s.session.Diagnostics(),
				Ghost:       s.session.SmoothedPose(),
			})
		}
	}
}

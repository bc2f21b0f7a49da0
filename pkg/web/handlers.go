package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/robokit/go-teleop/internal/log"
	"github.com/robokit/go-teleop/pkg/hub"
	"github.com/robokit/go-teleop/pkg/pose"
	"github.com/robokit/go-teleop/pkg/teleop"
)

// TargetRequest is a pose update from an input surface. Absent groups
// are carried forward from the last full target.
type TargetRequest struct {
	pose.Partial
	Mode string `json:"mode"` // "continuous" (default) or "commit"
}

// handleStatus returns the session diagnostics.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.session.Diagnostics())
}

// handlePose returns the interpolated ghost pose.
func (s *Server) handlePose(c *fiber.Ctx) error {
	return c.JSON(s.session.SmoothedPose())
}

// handleTarget applies a one-shot target update. Commit mode gives
// click-to-set its low-latency path.
func (s *Server) handleTarget(c *fiber.Ctx) error {
	var req TargetRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	s.session.SetTarget(req.Partial, teleop.ParseMode(req.Mode))
	return c.JSON(fiber.Map{"status": "ok"})
}

// handleControlWS streams continuous target updates from a dragging
// client. One message per input event; the session's smoothing and
// throttling absorb any rate.
func (s *Server) handleControlWS(c *websocket.Conn) {
	defer c.Close()
	for {
		var req TargetRequest
		if err := c.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("control ws closed", "err", err)
			}
			return
		}
		s.session.SetTarget(req.Partial, teleop.ParseMode(req.Mode))
	}
}

// handleStatusWS subscribes a client to the diagnostics broadcast.
func (s *Server) handleStatusWS(c *websocket.Conn) {
	client := hub.NewClient(s.statusHub, c)
	client.Run()
}

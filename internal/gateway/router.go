// ABOUTME: Routing policy for transport messages on top of the robot routing filter
// ABOUTME: Decides whether a robot-targeted message with no listening session is still answered

package gateway

import (
	"github.com/2389/barista-gateway/internal/inbound"
	"github.com/2389/barista-gateway/internal/routing"
)

// route selects the sessions for msg. It reports false when the message
// should not be processed at all: a robot-targeted message that matches no
// session while routing.publish_unmatched is off.
func (g *Gateway) route(msg inbound.Message) (routing.Targets, bool) {
	targets := routing.Select(msg.RobotID, msg.HasRobot, g.sessions)

	switch {
	case targets.Broadcast:
		g.logger.Debug("broadcasting transport message", "topic", msg.Topic, "sessions", len(targets.Sessions))
	case targets.Unmatched():
		if !g.config.Routing.ShouldPublishUnmatched() {
			g.logger.Info("skipping message with no matching session", "topic", msg.Topic, "robot_id", msg.RobotID)
			return targets, false
		}
		g.logger.Info("no session for robot; replying on transport only", "topic", msg.Topic, "robot_id", msg.RobotID)
	default:
		g.logger.Debug("routing transport message", "topic", msg.Topic, "robot_id", msg.RobotID, "sessions", len(targets.Sessions))
	}

	return targets, true
}

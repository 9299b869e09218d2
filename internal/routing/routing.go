// ABOUTME: Robot routing filter selecting which sessions receive an inbound message
// ABOUTME: Robot-targeted messages go to matching sessions only; untargeted ones broadcast

package routing

import (
	"github.com/2389/barista-gateway/internal/session"
)

// Lookup is the part of the session registry routing needs.
type Lookup interface {
	SessionsForRobot(robotID string) []*session.Session
	All() []*session.Session
}

// Targets is the routed session set for one inbound message.
type Targets struct {
	Sessions []*session.Session
	// Broadcast is true when the message carried no robot identifier.
	Broadcast bool
	RobotID   string
}

// Empty reports whether no session was selected.
func (t Targets) Empty() bool {
	return len(t.Sessions) == 0
}

// Unmatched reports a robot-targeted message that no session listens for.
func (t Targets) Unmatched() bool {
	return !t.Broadcast && t.Empty()
}

// Select picks the sessions for a message. With a robot identifier it
// returns exactly the sessions assigned to it, possibly none. Without one
// it returns every live session.
func Select(robotID string, hasRobot bool, reg Lookup) Targets {
	if !hasRobot {
		return Targets{Sessions: reg.All(), Broadcast: true}
	}
	return Targets{Sessions: reg.SessionsForRobot(robotID), RobotID: robotID}
}

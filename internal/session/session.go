// ABOUTME: Interactive session: robot assignment, conversation history and outbound frame queue
// ABOUTME: Deliver never blocks; a full or closed outbox is reported as a per-recipient error

package session

import (
	"errors"
	"time"

	"github.com/2389/barista-gateway/internal/conversation"
)

// outboxSize is the frame buffer for each session.
// Matches the broadcaster subscriber buffer (64 frames).
const outboxSize = 64

// ErrSessionClosed is returned when delivering to a session that has been closed.
var ErrSessionClosed = errors.New("session closed")

// ErrOutboxFull is returned when a session's writer is not keeping up.
var ErrOutboxFull = errors.New("session outbox full")

// FrameKind distinguishes text frames from binary audio frames.
type FrameKind int

const (
	FrameText FrameKind = iota
	FrameBinary
)

// Frame is one outbound message for a session's connection.
type Frame struct {
	Kind FrameKind
	Data []byte
}

// TextFrame wraps a string as a text frame.
func TextFrame(text string) Frame {
	return Frame{Kind: FrameText, Data: []byte(text)}
}

// BinaryFrame wraps bytes as a binary frame.
func BinaryFrame(data []byte) Frame {
	return Frame{Kind: FrameBinary, Data: data}
}

// Session is one live interactive connection. All fields except the outbox
// channel are owned by the scheduler goroutine.
type Session struct {
	ID        string
	CreatedAt time.Time

	robotID string
	history *conversation.History
	outbox  chan Frame
	closed  bool
	pending map[string]struct{}
}

// RobotID returns the robot the session is assigned to.
func (s *Session) RobotID() string {
	return s.robotID
}

// History returns the session's conversation.
func (s *Session) History() *conversation.History {
	return s.history
}

// Outbox returns the channel the connection writer drains. It is closed when
// the session is closed.
func (s *Session) Outbox() <-chan Frame {
	return s.outbox
}

// Closed reports whether the session has been closed.
func (s *Session) Closed() bool {
	return s.closed
}

// Deliver queues a frame for the connection writer without blocking.
func (s *Session) Deliver(frame Frame) error {
	if s.closed {
		return ErrSessionClosed
	}
	select {
	case s.outbox <- frame:
		return nil
	default:
		return ErrOutboxFull
	}
}

// Pending returns the number of in-flight turns tracked for the session.
func (s *Session) Pending() int {
	return len(s.pending)
}

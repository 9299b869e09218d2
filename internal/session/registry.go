// ABOUTME: Session registry: lifecycle, lookup and robot assignment of interactive sessions
// ABOUTME: Owned by the scheduler goroutine; replaces ambient global session maps

package session

import (
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/2389/barista-gateway/internal/conversation"
)

// ErrSessionNotFound indicates the specified session is not registered.
var ErrSessionNotFound = errors.New("session not found")

// Registry tracks live sessions and their robot assignments.
//
// Registry has no lock. It is owned by the scheduler and must only be used
// from tasks running on the scheduler goroutine.
type Registry struct {
	sessions     map[string]*Session
	defaultRobot string
	systemPrompt string
	historyLimit int
	logger       *slog.Logger
}

// Config holds the values every new session starts from.
type Config struct {
	DefaultRobot string
	SystemPrompt string
	HistoryLimit int
}

// NewRegistry creates an empty registry. Pass nil logger for default.
func NewRegistry(cfg Config, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		sessions:     make(map[string]*Session),
		defaultRobot: cfg.DefaultRobot,
		systemPrompt: cfg.SystemPrompt,
		historyLimit: cfg.HistoryLimit,
		logger:       logger.With("component", "sessions"),
	}
}

// Open creates a session assigned to the current default robot, with its
// history seeded by the system prompt.
func (r *Registry) Open() *Session {
	s := &Session{
		ID:        uuid.New().String(),
		CreatedAt: time.Now(),
		robotID:   r.defaultRobot,
		history:   conversation.NewWithSystem(r.systemPrompt, r.historyLimit),
		outbox:    make(chan Frame, outboxSize),
		pending:   make(map[string]struct{}),
	}
	r.sessions[s.ID] = s

	r.logger.Info("session opened",
		"session_id", s.ID,
		"robot_id", s.robotID,
		"total_sessions", len(r.sessions),
	)
	return s
}

// Close removes the session and all of its state, including pending turn
// correlation, and closes its outbox.
func (r *Registry) Close(id string) {
	s, ok := r.sessions[id]
	if !ok {
		return
	}
	delete(r.sessions, id)

	s.closed = true
	clear(s.pending)
	close(s.outbox)

	r.logger.Info("session closed",
		"session_id", id,
		"robot_id", s.robotID,
		"total_sessions", len(r.sessions),
	)
}

// Get returns the live session with the given id.
func (r *Registry) Get(id string) (*Session, bool) {
	s, ok := r.sessions[id]
	return s, ok
}

// SetRobot reassigns a session to a robot.
func (r *Registry) SetRobot(id, robotID string) error {
	s, ok := r.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	s.robotID = robotID
	r.logger.Info("session robot assigned", "session_id", id, "robot_id", robotID)
	return nil
}

// SessionsForRobot returns the sessions whose assignment equals robotID.
// There is no fallback: an unknown robot yields no sessions.
func (r *Registry) SessionsForRobot(robotID string) []*Session {
	var out []*Session
	for _, s := range r.sessions {
		if s.robotID == robotID {
			out = append(out, s)
		}
	}
	sortByAge(out)
	return out
}

// All returns every live session.
func (r *Registry) All() []*Session {
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	sortByAge(out)
	return out
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	return len(r.sessions)
}

// Assignments returns a copy of the session -> robot mapping.
func (r *Registry) Assignments() map[string]string {
	out := make(map[string]string, len(r.sessions))
	for id, s := range r.sessions {
		out[id] = s.robotID
	}
	return out
}

// DefaultRobot returns the robot new sessions are assigned to.
func (r *Registry) DefaultRobot() string {
	return r.defaultRobot
}

// SetDefaultRobot changes the robot future sessions start with. Existing
// sessions keep their assignment.
func (r *Registry) SetDefaultRobot(robotID string) {
	r.defaultRobot = robotID
	r.logger.Info("default robot changed", "robot_id", robotID)
}

// Track records an in-flight turn for the session.
func (r *Registry) Track(id, token string) error {
	s, ok := r.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	s.pending[token] = struct{}{}
	return nil
}

// Resolve clears an in-flight turn. It returns false when the session was
// closed, or the token was dropped, while the turn was in flight.
func (r *Registry) Resolve(id, token string) bool {
	s, ok := r.sessions[id]
	if !ok {
		return false
	}
	if _, ok := s.pending[token]; !ok {
		return false
	}
	delete(s.pending, token)
	return true
}

// sortByAge orders sessions oldest first so fan-out order is stable.
func sortByAge(sessions []*Session) {
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
}

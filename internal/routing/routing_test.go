// ABOUTME: Tests for robot routing selection
// ABOUTME: Covers targeted, unmatched and broadcast messages

package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/barista-gateway/internal/session"
)

func newRegistry(t *testing.T) (*session.Registry, *session.Session, *session.Session) {
	t.Helper()
	reg := session.NewRegistry(session.Config{DefaultRobot: "wro1", SystemPrompt: "seed", HistoryLimit: 100}, nil)
	a := reg.Open()
	b := reg.Open()
	require.NoError(t, reg.SetRobot(a.ID, "r1"))
	require.NoError(t, reg.SetRobot(b.ID, "r2"))
	return reg, a, b
}

func TestSelect_Targeted(t *testing.T) {
	reg, a, _ := newRegistry(t)

	targets := Select("r1", true, reg)

	require.Len(t, targets.Sessions, 1)
	assert.Equal(t, a.ID, targets.Sessions[0].ID)
	assert.False(t, targets.Broadcast)
	assert.False(t, targets.Unmatched())
	assert.Equal(t, "r1", targets.RobotID)
}

func TestSelect_Unmatched(t *testing.T) {
	reg, _, _ := newRegistry(t)

	targets := Select("r9", true, reg)

	assert.True(t, targets.Empty())
	assert.True(t, targets.Unmatched())
}

func TestSelect_EmptyRobotIDIsStillTargeted(t *testing.T) {
	reg, _, _ := newRegistry(t)

	targets := Select("", true, reg)

	assert.True(t, targets.Unmatched())
}

func TestSelect_Broadcast(t *testing.T) {
	reg, _, _ := newRegistry(t)

	targets := Select("", false, reg)

	assert.True(t, targets.Broadcast)
	assert.Len(t, targets.Sessions, 2)
	assert.False(t, targets.Unmatched())
}

func TestSelect_BroadcastWithNoSessions(t *testing.T) {
	reg := session.NewRegistry(session.Config{DefaultRobot: "wro1", HistoryLimit: 100}, nil)

	targets := Select("", false, reg)

	assert.True(t, targets.Empty())
	assert.False(t, targets.Unmatched())
}

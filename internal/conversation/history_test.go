// ABOUTME: Tests for the bounded conversation history
// ABOUTME: Covers seed preservation, trimming bounds, idempotence and snapshot isolation

package conversation

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistory_NewSeedsSystemTurn(t *testing.T) {
	h := NewWithSystem("be nice", 0)

	require.Equal(t, 1, h.Len())
	assert.Equal(t, Turn{Role: RoleSystem, Text: "be nice"}, h.Seed())
	assert.Equal(t, DefaultLimit, h.Limit())
	assert.Equal(t, 99, h.Remaining())
}

func TestHistory_AppendKeepsOrder(t *testing.T) {
	h := NewWithSystem("seed", 10)
	h.Append(RoleUser, "hi")
	h.Append(RoleAssistant, "hello")

	turns := h.Snapshot()
	require.Len(t, turns, 3)
	assert.Equal(t, RoleUser, turns[1].Role)
	assert.Equal(t, "hi", turns[1].Text)
	assert.Equal(t, RoleAssistant, turns[2].Role)
	assert.Equal(t, Turn{Role: RoleAssistant, Text: "hello"}, h.Last())
}

func TestHistory_BoundAndSeedHoldAfterEveryAppend(t *testing.T) {
	seed := Turn{Role: RoleSystem, Text: "seed"}
	h := New(seed, DefaultLimit)

	for i := range 350 {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		h.Append(role, fmt.Sprintf("turn-%d", i))

		require.LessOrEqual(t, h.Len(), DefaultLimit, "after append %d", i)
		require.Equal(t, seed, h.Seed(), "after append %d", i)
	}

	turns := h.Snapshot()
	require.Len(t, turns, DefaultLimit)
	// Seed plus the most recent 99 turns
	assert.Equal(t, "turn-251", turns[1].Text)
	assert.Equal(t, "turn-349", turns[len(turns)-1].Text)
	assert.Equal(t, 0, h.Remaining())
}

func TestHistory_TrimIsIdempotent(t *testing.T) {
	h := NewWithSystem("seed", 5)
	for i := range 12 {
		h.Append(RoleUser, fmt.Sprintf("m%d", i))
	}
	before := h.Snapshot()

	h.Trim()
	h.Trim()

	assert.Equal(t, before, h.Snapshot())
}

func TestHistory_TrimUnderLimitIsNoop(t *testing.T) {
	h := NewWithSystem("seed", 5)
	h.Append(RoleUser, "a")
	before := h.Snapshot()

	h.Trim()

	assert.Equal(t, before, h.Snapshot())
}

func TestHistory_SnapshotIsIsolated(t *testing.T) {
	h := NewWithSystem("seed", 5)
	h.Append(RoleUser, "a")

	snap := h.Snapshot()
	snap[1].Text = "mutated"
	h.Append(RoleAssistant, "b")

	assert.Equal(t, "a", h.Snapshot()[1].Text)
	assert.Len(t, snap, 2)
}

func TestHistory_SeparateHistoriesDoNotShareBuffers(t *testing.T) {
	a := NewWithSystem("seed", 3)
	b := NewWithSystem("seed", 3)
	for i := range 6 {
		a.Append(RoleUser, fmt.Sprintf("a%d", i))
		b.Append(RoleUser, fmt.Sprintf("b%d", i))
	}

	for _, turn := range a.Snapshot()[1:] {
		assert.Contains(t, turn.Text, "a")
	}
	for _, turn := range b.Snapshot()[1:] {
		assert.Contains(t, turn.Text, "b")
	}
}

// ABOUTME: Bounded ordered turn history shared by sessions and the transport conversation
// ABOUTME: Index 0 is always the seed turn; trimming drops the oldest middle turns

package conversation

// DefaultLimit is the maximum number of turns kept, seed included.
const DefaultLimit = 100

// Role identifies who produced a turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry in a conversation.
type Turn struct {
	Role Role
	Text string
}

// History is an ordered, bounded sequence of turns. The first turn is the
// seed and survives every trim.
//
// History is not safe for concurrent use. Histories are owned by the session
// runtime and only touched from its goroutine; model calls receive a Snapshot.
type History struct {
	turns []Turn
	limit int
}

// New creates a history seeded with the given turn. A limit below 1 selects
// DefaultLimit.
func New(seed Turn, limit int) *History {
	if limit < 1 {
		limit = DefaultLimit
	}
	turns := make([]Turn, 1, 16)
	turns[0] = seed
	return &History{turns: turns, limit: limit}
}

// NewWithSystem creates a history seeded with a system prompt.
func NewWithSystem(prompt string, limit int) *History {
	return New(Turn{Role: RoleSystem, Text: prompt}, limit)
}

// Append adds a turn at the tail and trims the history back to its limit.
func (h *History) Append(role Role, text string) {
	h.turns = append(h.turns, Turn{Role: role, Text: text})
	h.Trim()
}

// Trim keeps the seed plus the most recent limit-1 turns. Trimming a
// history that is already within its limit does nothing.
func (h *History) Trim() {
	if len(h.turns) <= h.limit {
		return
	}
	kept := make([]Turn, 0, h.limit)
	kept = append(kept, h.turns[0])
	kept = append(kept, h.turns[len(h.turns)-(h.limit-1):]...)
	h.turns = kept
}

// Len returns the number of turns, seed included.
func (h *History) Len() int {
	return len(h.turns)
}

// Limit returns the maximum number of turns kept.
func (h *History) Limit() int {
	return h.limit
}

// Seed returns the first turn.
func (h *History) Seed() Turn {
	return h.turns[0]
}

// Last returns the most recent turn.
func (h *History) Last() Turn {
	return h.turns[len(h.turns)-1]
}

// Snapshot returns a copy of the turns that is safe to hand to another goroutine.
func (h *History) Snapshot() []Turn {
	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Remaining reports how many non-seed slots are still free before trimming starts.
func (h *History) Remaining() int {
	used := len(h.turns) - 1
	return max(0, h.limit-1-used)
}

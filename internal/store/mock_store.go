// ABOUTME: In-memory Store implementation used when no database is configured and in tests
// ABOUTME: Mirrors SQLiteStore ordering, filtering and cursor semantics

package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MockStore is an in-memory Store implementation.
type MockStore struct {
	mu     sync.RWMutex
	events map[string]*Event // keyed by event ID
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		events: make(map[string]*Event),
	}
}

// SaveEvent stores a copy of the event.
func (m *MockStore) SaveEvent(ctx context.Context, event *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.events[event.ID]; exists {
		return fmt.Errorf("inserting event: duplicate event_id %q", event.ID)
	}

	// Make a copy to avoid external modification
	e := *event
	m.events[e.ID] = &e
	return nil
}

// GetEvent retrieves an event by ID.
func (m *MockStore) GetEvent(ctx context.Context, id string) (*Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.events[id]
	if !ok {
		return nil, ErrNotFound
	}

	// Return a copy
	result := *e
	return &result, nil
}

// ListEvents returns a filtered page of events, oldest first.
func (m *MockStore) ListEvents(ctx context.Context, p ListParams) (*ListResult, error) {
	p.Limit = normalizeLimit(p.Limit)

	var cursorKey string
	if p.Cursor != "" {
		ts, id, err := decodeCursor(p.Cursor)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
		}
		cursorKey = formatTime(ts) + "|" + id
	}

	m.mu.RLock()
	var matched []Event
	for _, e := range m.events {
		if p.Direction != "" && e.Direction != p.Direction {
			continue
		}
		if p.Kind != "" && e.Kind != p.Kind {
			continue
		}
		if p.RobotID != "" && e.RobotID != p.RobotID {
			continue
		}
		if cursorKey != "" && sortKey(e) <= cursorKey {
			continue
		}
		matched = append(matched, *e)
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return sortKey(&matched[i]) < sortKey(&matched[j])
	})

	if len(matched) > p.Limit+1 {
		matched = matched[:p.Limit+1]
	}
	return paginate(matched, p.Limit), nil
}

// Len returns the number of stored events.
func (m *MockStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events)
}

// Close is a no-op.
func (m *MockStore) Close() error {
	return nil
}

// sortKey orders events by timestamp then ID, matching the SQL ordering.
func sortKey(e *Event) string {
	return formatTime(e.Timestamp) + "|" + e.ID
}

// Compile-time interface checks
var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*MockStore)(nil)
)

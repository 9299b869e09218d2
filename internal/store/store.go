// ABOUTME: Store interface and data types for the transport event ledger
// ABOUTME: Defines Event, list parameters and the Store interface implemented by SQLite and memory stores

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested event does not exist
var ErrNotFound = errors.New("not found")

// ErrInvalidCursor is returned when a list cursor cannot be decoded
var ErrInvalidCursor = errors.New("invalid cursor")

// Direction records which way a transport message travelled
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Kind categorizes a transport message
type Kind string

const (
	KindAction      Kind = "action"
	KindCoffeeStart Kind = "coffee_start"
	KindReply       Kind = "reply"
	KindProbe       Kind = "probe"
	KindNotify      Kind = "notify"
)

// Event is one transport message recorded in the ledger.
type Event struct {
	ID        string
	Direction Direction
	Topic     string
	Kind      Kind
	RobotID   string // empty when the message targets no robot
	Token     string // correlation token, empty when the message carries none
	Payload   string
	Timestamp time.Time
}

// ListParams filters and pages ledger queries. Zero values match everything.
type ListParams struct {
	Direction Direction
	Kind      Kind
	RobotID   string
	Limit     int    // 1-500, defaults to 50
	Cursor    string // Opaque cursor from a previous result
}

// ListResult is one page of ledger events, oldest first.
type ListResult struct {
	Events     []Event
	NextCursor string
	HasMore    bool
}

// Store persists the transport ledger.
type Store interface {
	SaveEvent(ctx context.Context, event *Event) error
	GetEvent(ctx context.Context, id string) (*Event, error)
	ListEvents(ctx context.Context, p ListParams) (*ListResult, error)
	Close() error
}

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// normalizeLimit applies the default and cap to a page size.
func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

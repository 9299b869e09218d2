// ABOUTME: Ledger operations for transport events on the SQLite store
// ABOUTME: Save, fetch and cursor-paginated listing with direction, kind and robot filters

package store

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

const eventColumns = `event_id, direction, topic, kind, robot_id, token, payload, timestamp`

// SaveEvent persists a ledger event to the database
func (s *SQLiteStore) SaveEvent(ctx context.Context, event *Event) error {
	query := `INSERT INTO transport_events (` + eventColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		string(event.Direction),
		event.Topic,
		string(event.Kind),
		nullString(event.RobotID),
		nullString(event.Token),
		event.Payload,
		formatTime(event.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}

	s.logger.Debug("saved ledger event",
		"event_id", event.ID,
		"direction", event.Direction,
		"kind", event.Kind,
		"topic", event.Topic,
	)
	return nil
}

// GetEvent retrieves a single event by ID
func (s *SQLiteStore) GetEvent(ctx context.Context, id string) (*Event, error) {
	query := `SELECT ` + eventColumns + ` FROM transport_events WHERE event_id = ?`

	event, err := scanEvent(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying event: %w", err)
	}
	return event, nil
}

// ListEvents retrieves events with pagination support.
// Events are returned in chronological order (oldest first).
func (s *SQLiteStore) ListEvents(ctx context.Context, p ListParams) (*ListResult, error) {
	p.Limit = normalizeLimit(p.Limit)

	var cursorTS time.Time
	var cursorID string
	if p.Cursor != "" {
		var err error
		cursorTS, cursorID, err = decodeCursor(p.Cursor)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
		}
	}

	// Build the query dynamically based on which parameters are set
	var args []any
	query := `SELECT ` + eventColumns + ` FROM transport_events WHERE 1=1`

	if p.Direction != "" {
		query += ` AND direction = ?`
		args = append(args, string(p.Direction))
	}
	if p.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(p.Kind))
	}
	if p.RobotID != "" {
		query += ` AND robot_id = ?`
		args = append(args, p.RobotID)
	}
	if p.Cursor != "" {
		ts := formatTime(cursorTS)
		query += ` AND (timestamp > ? OR (timestamp = ? AND event_id > ?))`
		args = append(args, ts, ts, cursorID)
	}

	// Order by timestamp, then event_id for deterministic pagination
	query += ` ORDER BY timestamp ASC, event_id ASC LIMIT ?`
	// Fetch limit+1 to detect if there are more results
	args = append(args, p.Limit+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning event row: %w", err)
		}
		events = append(events, *event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating event rows: %w", err)
	}

	return paginate(events, p.Limit), nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*Event, error) {
	event := &Event{}
	var direction, kind, timestampStr string
	var robotID, token sql.NullString

	if err := row.Scan(
		&event.ID,
		&direction,
		&event.Topic,
		&kind,
		&robotID,
		&token,
		&event.Payload,
		&timestampStr,
	); err != nil {
		return nil, err
	}

	event.Direction = Direction(direction)
	event.Kind = Kind(kind)
	event.RobotID = robotID.String
	event.Token = token.String

	var err error
	event.Timestamp, err = time.Parse(timeLayout, timestampStr)
	if err != nil {
		return nil, fmt.Errorf("parsing timestamp: %w", err)
	}
	return event, nil
}

// paginate trims a limit+1 result set and builds the next cursor.
func paginate(events []Event, limit int) *ListResult {
	hasMore := len(events) > limit
	if hasMore {
		events = events[:limit]
	}

	result := &ListResult{
		Events:  events,
		HasMore: hasMore,
	}
	if hasMore && len(events) > 0 {
		last := events[len(events)-1]
		result.NextCursor = encodeCursor(last.Timestamp, last.ID)
	}
	return result
}

// encodeCursor creates an opaque cursor string from a timestamp and event ID.
// Format is base64(timestamp|event_id)
func encodeCursor(ts time.Time, id string) string {
	data := fmt.Sprintf("%s|%s", formatTime(ts), id)
	return base64.StdEncoding.EncodeToString([]byte(data))
}

// decodeCursor parses an opaque cursor string into a timestamp and event ID.
func decodeCursor(cursor string) (time.Time, string, error) {
	decoded, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("invalid cursor encoding: %w", err)
	}

	tsPart, id, ok := strings.Cut(string(decoded), "|")
	if !ok {
		return time.Time{}, "", fmt.Errorf("invalid cursor format: expected timestamp|event_id")
	}

	ts, err := time.Parse(timeLayout, tsPart)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("invalid cursor timestamp: %w", err)
	}

	return ts, id, nil
}

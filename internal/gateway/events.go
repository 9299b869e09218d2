// ABOUTME: Read-only HTTP access to the transport event ledger
// ABOUTME: GET /events lists with filters and cursor paging, GET /events/{id} fetches one

package gateway

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/2389/barista-gateway/internal/store"
)

// EventResponse is one ledger event in API responses.
type EventResponse struct {
	ID        string `json:"id"`
	Direction string `json:"direction"`
	Topic     string `json:"topic"`
	Kind      string `json:"kind"`
	RobotID   string `json:"robot_id,omitempty"`
	Token     string `json:"token,omitempty"`
	Payload   string `json:"payload"`
	Timestamp string `json:"timestamp"`
}

// ListEventsResponse is the JSON response for GET /events.
type ListEventsResponse struct {
	Events     []EventResponse `json:"events"`
	NextCursor string          `json:"next_cursor,omitempty"`
	HasMore    bool            `json:"has_more"`
}

func toEventResponse(e *store.Event) EventResponse {
	return EventResponse{
		ID:        e.ID,
		Direction: string(e.Direction),
		Topic:     e.Topic,
		Kind:      string(e.Kind),
		RobotID:   e.RobotID,
		Token:     e.Token,
		Payload:   e.Payload,
		Timestamp: e.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}

// handleListEvents handles GET /events?direction=&kind=&robot_id=&limit=&cursor=.
func (g *Gateway) handleListEvents(w http.ResponseWriter, r *http.Request) {
	if g.store == nil {
		g.sendJSONError(w, http.StatusNotFound, "event ledger is disabled")
		return
	}

	q := r.URL.Query()
	params := store.ListParams{
		Direction: store.Direction(q.Get("direction")),
		Kind:      store.Kind(q.Get("kind")),
		RobotID:   q.Get("robot_id"),
		Cursor:    q.Get("cursor"),
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			g.sendJSONError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		params.Limit = limit
	}

	result, err := g.store.ListEvents(r.Context(), params)
	if errors.Is(err, store.ErrInvalidCursor) {
		g.sendJSONError(w, http.StatusBadRequest, "invalid cursor")
		return
	}
	if err != nil {
		g.logger.Error("listing events", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	resp := ListEventsResponse{
		Events:     make([]EventResponse, 0, len(result.Events)),
		NextCursor: result.NextCursor,
		HasMore:    result.HasMore,
	}
	for i := range result.Events {
		resp.Events = append(resp.Events, toEventResponse(&result.Events[i]))
	}
	g.writeJSON(w, http.StatusOK, resp)
}

// handleGetEvent handles GET /events/{id}.
func (g *Gateway) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	if g.store == nil {
		g.sendJSONError(w, http.StatusNotFound, "event ledger is disabled")
		return
	}

	event, err := g.store.GetEvent(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		g.sendJSONError(w, http.StatusNotFound, "event not found")
		return
	}
	if err != nil {
		g.logger.Error("getting event", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "failed to get event")
		return
	}
	g.writeJSON(w, http.StatusOK, toEventResponse(event))
}

// ABOUTME: Tests for the event ledger HTTP endpoints
// ABOUTME: Covers listing with filters and paging, single lookups, and the disabled ledger

package gateway

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/barista-gateway/internal/store"
)

func seedEvents(t *testing.T, ledger store.Store) {
	t.Helper()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seed := []store.Event{
		{ID: "e1", Direction: store.DirectionInbound, Topic: "robot/notify", Kind: store.KindNotify, RobotID: "r1", Payload: "hi"},
		{ID: "e2", Direction: store.DirectionOutbound, Topic: "robot/reply", Kind: store.KindReply, Token: "t2", Payload: `{"type":"reply"}`},
		{ID: "e3", Direction: store.DirectionOutbound, Topic: "robot/events", Kind: store.KindAction, RobotID: "r1", Payload: `{"action":"ready"}`},
	}
	for i := range seed {
		seed[i].Timestamp = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, ledger.SaveEvent(context.Background(), &seed[i]))
	}
}

func TestEventsAPI_List(t *testing.T) {
	ledger := store.NewMockStore()
	seedEvents(t, ledger)
	h := newHarness(t, nil, WithStore(ledger))
	srv := newAPIServer(t, h)

	var all ListEventsResponse
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/events", &all))
	require.Len(t, all.Events, 3)
	assert.Equal(t, "e1", all.Events[0].ID)
	assert.Equal(t, "inbound", all.Events[0].Direction)
	assert.Equal(t, "2026-03-01T12:00:00Z", all.Events[0].Timestamp)
	assert.False(t, all.HasMore)

	var outbound ListEventsResponse
	getJSON(t, srv.URL+"/events?direction=outbound", &outbound)
	assert.Len(t, outbound.Events, 2)

	var robot ListEventsResponse
	getJSON(t, srv.URL+"/events?robot_id=r1&kind=action", &robot)
	require.Len(t, robot.Events, 1)
	assert.Equal(t, "e3", robot.Events[0].ID)
}

func TestEventsAPI_Paging(t *testing.T) {
	ledger := store.NewMockStore()
	seedEvents(t, ledger)
	h := newHarness(t, nil, WithStore(ledger))
	srv := newAPIServer(t, h)

	var first ListEventsResponse
	getJSON(t, srv.URL+"/events?limit=2", &first)
	require.Len(t, first.Events, 2)
	assert.True(t, first.HasMore)
	require.NotEmpty(t, first.NextCursor)

	var second ListEventsResponse
	getJSON(t, srv.URL+"/events?limit=2&cursor="+url.QueryEscape(first.NextCursor), &second)
	require.Len(t, second.Events, 1)
	assert.Equal(t, "e3", second.Events[0].ID)
	assert.False(t, second.HasMore)
}

func TestEventsAPI_BadQuery(t *testing.T) {
	h := newHarness(t, nil, WithStore(store.NewMockStore()))
	srv := newAPIServer(t, h)

	tests := []struct {
		name  string
		query string
	}{
		{name: "non numeric limit", query: "?limit=abc"},
		{name: "zero limit", query: "?limit=0"},
		{name: "garbage cursor", query: "?cursor=not-a-cursor"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp OKResponse
			assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/events"+tt.query, &resp))
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestEventsAPI_Get(t *testing.T) {
	ledger := store.NewMockStore()
	seedEvents(t, ledger)
	h := newHarness(t, nil, WithStore(ledger))
	srv := newAPIServer(t, h)

	var got EventResponse
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/events/e2", &got))
	assert.Equal(t, "reply", got.Kind)
	assert.Equal(t, "t2", got.Token)
	assert.Equal(t, `{"type":"reply"}`, got.Payload)

	var missing OKResponse
	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/events/nope", &missing))
	assert.Equal(t, "event not found", missing.Error)
}

func TestEventsAPI_Disabled(t *testing.T) {
	h := newHarness(t, nil)
	srv := newAPIServer(t, h)

	var resp OKResponse
	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/events", &resp))
	assert.Equal(t, "event ledger is disabled", resp.Error)
	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/events/e1", &resp))
}

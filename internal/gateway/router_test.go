// ABOUTME: Tests for the transport routing policy
// ABOUTME: Covers targeted, broadcast and unmatched messages with publish_unmatched on and off

package gateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/2389/barista-gateway/internal/inbound"
	"github.com/2389/barista-gateway/internal/routing"
)

func TestRoute(t *testing.T) {
	h := newHarness(t, nil)
	a := h.openSession(t, "r1")
	b := h.openSession(t, "r2")

	tests := []struct {
		name      string
		payload   string
		wantIDs   []string
		broadcast bool
	}{
		{name: "targeted", payload: `{"robot_id":"r2","text":"hi"}`, wantIDs: []string{b.ID}},
		{name: "no robot id broadcasts", payload: `{"text":"hi"}`, wantIDs: []string{a.ID, b.ID}, broadcast: true},
		{name: "plain text broadcasts", payload: "hi", wantIDs: []string{a.ID, b.ID}, broadcast: true},
		{name: "unmatched robot", payload: `{"robot_id":"r9","text":"hi"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := inbound.Parse("robot/notify", []byte(tt.payload))

			var targets routing.Targets
			var ok bool
			h.do(t, func(context.Context) { targets, ok = h.gw.route(msg) })

			assert.True(t, ok, "publish_unmatched defaults to true")
			assert.Equal(t, tt.broadcast, targets.Broadcast)
			var ids []string
			for _, s := range targets.Sessions {
				ids = append(ids, s.ID)
			}
			assert.ElementsMatch(t, tt.wantIDs, ids)
		})
	}
}

func TestRoute_UnmatchedStillRepliesByDefault(t *testing.T) {
	h := newHarness(t, nil)
	a := h.openSession(t, "r1")

	h.bridge.deliver(t, "robot/notify", `{"robot_id":"ghost","text":"hi"}`)
	h.idle(t)

	texts, _ := drain(a)
	assert.Empty(t, texts, "other robots' sessions are not addressed")
	assert.EqualValues(t, 1, h.model.calls.Load())
	assert.Len(t, h.bridge.on("robot/reply"), 1)
	assert.Zero(t, h.synth.calls.Load(), "no session means no speech")
}

func TestRoute_UnmatchedSkippedWhenDisabled(t *testing.T) {
	cfg := testConfig()
	off := false
	cfg.Routing.PublishUnmatched = &off
	h := newHarness(t, cfg)
	h.openSession(t, "r1")

	h.bridge.deliver(t, "robot/notify", `{"robot_id":"ghost","text":"hi"}`)
	h.idle(t)

	assert.Zero(t, h.model.calls.Load())
	assert.Empty(t, h.bridge.on("robot/reply"))

	// Broadcasts are unaffected by the setting.
	h.bridge.deliver(t, "robot/notify", `{"text":"hi"}`)
	h.idle(t)
	assert.EqualValues(t, 1, h.model.calls.Load())
}

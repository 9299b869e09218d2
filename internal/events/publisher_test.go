// ABOUTME: Tests for the event publisher and ready hook
// ABOUTME: Covers action and dual ready publishing, reply envelopes, ledger recording and hook delivery

package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/barista-gateway/internal/scheduler"
	"github.com/2389/barista-gateway/internal/store"
)

type published struct {
	Topic   string
	Payload []byte
}

type fakeTransport struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (f *fakeTransport) Publish(topic string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, published{Topic: topic, Payload: payload})
	return nil
}

func (f *fakeTransport) all() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]published(nil), f.msgs...)
}

// syncDetacher runs jobs inline and remembers their names.
type syncDetacher struct {
	mu   sync.Mutex
	jobs []string
	errs []error
}

func (d *syncDetacher) Go(name string, job scheduler.Job) {
	err := job(context.Background())
	d.mu.Lock()
	defer d.mu.Unlock()
	d.jobs = append(d.jobs, name)
	d.errs = append(d.errs, err)
}

func (d *syncDetacher) count(name string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, j := range d.jobs {
		if j == name {
			n++
		}
	}
	return n
}

func newTestPublisher(t *testing.T, hook *ReadyHook, ledger store.Store) (*Publisher, *fakeTransport, *syncDetacher) {
	t.Helper()
	transport := &fakeTransport{}
	detach := &syncDetacher{}
	p := NewPublisher(transport, detach, Config{
		ActionTopic:  "robot/events",
		ReplyTopic:   "robot/reply",
		DefaultRobot: func() string { return "wro1" },
		Hook:         hook,
		Ledger:       ledger,
	}, nil)
	return p, transport, detach
}

func decode(t *testing.T, payload []byte) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(payload, &m))
	return m
}

func TestPublishAction_NonReady(t *testing.T) {
	p, transport, detach := newTestPublisher(t, NewReadyHook("", 0), nil)

	p.PublishAction(t.Context(), "brew_americano", "lab1")

	msgs := transport.all()
	require.Len(t, msgs, 1)
	assert.Equal(t, "robot/events", msgs[0].Topic)
	assert.JSONEq(t, `{"action":"brew_americano","robot_id":"lab1"}`, string(msgs[0].Payload))
	assert.Equal(t, 0, detach.count("ready-hook"))
}

func TestPublishAction_EmptyRobotUsesDefault(t *testing.T) {
	p, transport, _ := newTestPublisher(t, nil, nil)

	p.PublishAction(t.Context(), "brew_americano", "")

	msgs := transport.all()
	require.Len(t, msgs, 1)
	assert.Equal(t, "wro1", decode(t, msgs[0].Payload)["robot_id"])
}

func TestPublishAction_ReadyIsDualPublishWithOneHookCall(t *testing.T) {
	bodies := make(chan ReadyNotice, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		data, _ := io.ReadAll(r.Body)
		var body ReadyNotice
		assert.NoError(t, json.Unmarshal(data, &body))
		bodies <- body
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	p, transport, detach := newTestPublisher(t, NewReadyHook(srv.URL, time.Second), nil)
	before := time.Now().Unix()

	p.PublishAction(t.Context(), "ready", "r1")

	msgs := transport.all()
	require.Len(t, msgs, 2)
	assert.JSONEq(t, `{"action":"ready","robot_id":"r1"}`, string(msgs[0].Payload))

	start := decode(t, msgs[1].Payload)
	assert.Equal(t, "robot/events", msgs[1].Topic)
	assert.Equal(t, "coffee", start["event"])
	assert.Equal(t, "start", start["value"])
	assert.Equal(t, "r1", start["robot_id"])
	assert.Len(t, start["ts"], 32)

	assert.Equal(t, 1, detach.count("ready-hook"))
	require.Len(t, bodies, 1)
	body := <-bodies
	assert.Equal(t, "ready", body.Event)
	assert.GreaterOrEqual(t, body.TS, before)
}

func TestPublishAction_HookFailureIsContained(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p, transport, detach := newTestPublisher(t, NewReadyHook(srv.URL, time.Second), nil)

	p.PublishAction(t.Context(), "ready", "r1")

	assert.Len(t, transport.all(), 2)
	require.Len(t, detach.errs, 1)
	assert.ErrorContains(t, detach.errs[0], "502")
}

func TestPublishAction_TransportFailureIsLoggedOnly(t *testing.T) {
	p, transport, _ := newTestPublisher(t, nil, nil)
	transport.err = errors.New("not connected")

	assert.NotPanics(t, func() {
		p.PublishAction(t.Context(), "ready", "r1")
	})
}

func TestPublishReply(t *testing.T) {
	p, transport, _ := newTestPublisher(t, nil, nil)

	token := p.PublishReply(t.Context(), "robot/notify", "Hello!")

	msgs := transport.all()
	require.Len(t, msgs, 1)
	assert.Equal(t, "robot/reply", msgs[0].Topic)
	got := decode(t, msgs[0].Payload)
	assert.Equal(t, map[string]any{"type": "reply", "reply_to": "robot/notify", "text": "Hello!", "ts": token}, got)
}

func TestPublisher_RecordsLedger(t *testing.T) {
	ledger := store.NewMockStore()
	p, _, _ := newTestPublisher(t, nil, ledger)

	p.RecordInbound("robot/notify", "r1", []byte(`{"text":"hi"}`))
	p.PublishAction(t.Context(), "ready", "r1")
	p.PublishReply(t.Context(), "robot/notify", "hi")
	require.NoError(t, p.PublishRaw("robot/events", store.KindProbe, "", []byte("connection_test")))

	result, err := ledger.ListEvents(t.Context(), store.ListParams{})
	require.NoError(t, err)
	require.Len(t, result.Events, 5)

	kinds := map[store.Kind]int{}
	for _, e := range result.Events {
		kinds[e.Kind]++
	}
	assert.Equal(t, map[store.Kind]int{
		store.KindNotify:      1,
		store.KindAction:      1,
		store.KindCoffeeStart: 1,
		store.KindReply:       1,
		store.KindProbe:       1,
	}, kinds)

	inbound, err := ledger.ListEvents(t.Context(), store.ListParams{Direction: store.DirectionInbound})
	require.NoError(t, err)
	require.Len(t, inbound.Events, 1)
	assert.Equal(t, "r1", inbound.Events[0].RobotID)
}

func TestNewToken(t *testing.T) {
	a, b := NewToken(), NewToken()
	assert.Len(t, a, 32)
	assert.NotContains(t, a, "-")
	assert.NotEqual(t, a, b)
}

func TestReadyHook_Disabled(t *testing.T) {
	assert.False(t, NewReadyHook("", time.Second).Enabled())
	var nilHook *ReadyHook
	assert.False(t, nilHook.Enabled())
}

// ABOUTME: Per-turn state machine shared by transport, interactive and test turns
// ABOUTME: Direct matchers answer without the model; otherwise the model runs on the worker pool

package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/2389/barista-gateway/internal/conversation"
	"github.com/2389/barista-gateway/internal/events"
	"github.com/2389/barista-gateway/internal/inbound"
	"github.com/2389/barista-gateway/internal/intent"
	"github.com/2389/barista-gateway/internal/routing"
	"github.com/2389/barista-gateway/internal/scheduler"
	"github.com/2389/barista-gateway/internal/session"
)

type turnState string

const (
	stateReceived      turnState = "RECEIVED"
	stateDirectReply   turnState = "DIRECT_REPLY"
	stateModelCall     turnState = "MODEL_CALL"
	stateClassified    turnState = "ACTION_CLASSIFIED"
	stateSideEffect    turnState = "SIDE_EFFECT_DISPATCH"
	stateReplyDelivery turnState = "REPLY_DELIVERY"
	stateSpeech        turnState = "SPEECH_SCHEDULE"
	stateDone          turnState = "DONE"
)

const (
	originTransport = "transport"
	originSession   = "session"
	originTest      = "test"
)

// turn is one inbound utterance on its way to a reply.
type turn struct {
	token     string
	origin    string
	history   *conversation.History
	targets   []*session.Session
	replyTo   string
	robotID   string
	input     intent.Input
	extractor *intent.Extractor
	// sessionID is set for interactive turns; their results are dropped if
	// the session closes while the model is running.
	sessionID string
	done      func(intent.Result)
}

func (t *turn) finish(r intent.Result) {
	if t.done != nil {
		t.done(r)
	}
}

func (g *Gateway) trace(t *turn, state turnState, attrs ...any) {
	g.logger.Debug("turn",
		append([]any{"token", t.token, "origin", t.origin, "state", string(state)}, attrs...)...)
}

// runTurn drives a turn from RECEIVED to DONE. It runs on the scheduler
// goroutine; the model call is the only part that leaves it.
func (g *Gateway) runTurn(ctx context.Context, t *turn) {
	g.trace(t, stateReceived, "text", t.input.UserText)

	t.history.Append(conversation.RoleUser, t.input.UserText)
	g.logger.Debug("context remaining", "token", t.token, "remaining", t.history.Remaining())

	if r, name, ok := t.extractor.Direct(t.input); ok {
		g.trace(t, stateDirectReply, "matcher", name)
		g.finishTurn(ctx, t, r)
		return
	}

	if t.sessionID != "" {
		if err := g.sessions.Track(t.sessionID, t.token); err != nil {
			g.logger.Warn("session gone before model call", "token", t.token, "session_id", t.sessionID)
			t.finish(intent.Result{})
			return
		}
	}

	snapshot := t.history.Snapshot()
	g.trace(t, stateModelCall, "turns", len(snapshot))

	scheduler.Await(g.sched, "model",
		func(ctx context.Context) (string, error) {
			return g.completer.Complete(ctx, snapshot)
		},
		func(ctx context.Context, text string, err error) {
			if t.sessionID != "" && !g.sessions.Resolve(t.sessionID, t.token) {
				g.logger.Info("session closed during model call; dropping reply",
					"token", t.token, "session_id", t.sessionID)
				t.finish(intent.Result{})
				return
			}

			if err != nil {
				g.logger.Warn("model call failed", "token", t.token, "error", err)
				g.finishTurn(ctx, t, t.extractor.Failed())
				return
			}

			in := t.input
			in.ModelText = text
			r, name := t.extractor.Classify(in)
			g.trace(t, stateClassified, "matcher", name, "action", r.Action)
			g.finishTurn(ctx, t, r)
		})
}

// finishTurn dispatches the turn's action, if any, then delivers the reply.
func (g *Gateway) finishTurn(ctx context.Context, t *turn, r intent.Result) {
	if r.Action != "" {
		g.trace(t, stateSideEffect, "action", r.Action, "robot_id", t.robotID)
		g.publisher.PublishAction(ctx, r.Action, t.robotID)
	}

	g.trace(t, stateReplyDelivery, "recipients", len(t.targets))
	g.fanout(ctx, t, r.Text)

	g.trace(t, stateDone)
	t.finish(r)
}

// enqueueShared queues a turn on the shared history. The next queued turn
// reaches RECEIVED only once the previous one has reached DONE, so user and
// assistant turns are appended in arrival order.
func (g *Gateway) enqueueShared(ctx context.Context, t *turn) {
	done := t.done
	t.done = func(r intent.Result) {
		g.sharedBusy = false
		if done != nil {
			done(r)
		}
		g.drainShared(ctx)
	}
	g.sharedQueue = append(g.sharedQueue, t)
	g.drainShared(ctx)
}

func (g *Gateway) drainShared(ctx context.Context) {
	// Direct replies finish synchronously and call back in here.
	if g.sharedDraining {
		return
	}
	g.sharedDraining = true
	defer func() { g.sharedDraining = false }()

	for !g.sharedBusy && len(g.sharedQueue) > 0 {
		next := g.sharedQueue[0]
		g.sharedQueue[0] = nil
		g.sharedQueue = g.sharedQueue[1:]
		g.sharedBusy = true
		g.runTurn(ctx, next)
	}
}

// transportTurn answers a routed transport message on the shared history.
func (g *Gateway) transportTurn(ctx context.Context, msg inbound.Message, targets routing.Targets) {
	g.enqueueShared(ctx, &turn{
		token:     events.NewToken(),
		origin:    originTransport,
		history:   g.shared,
		targets:   targets.Sessions,
		replyTo:   msg.Topic,
		robotID:   targets.RobotID,
		input:     intent.Input{UserText: msg.Text, Message: &msg},
		extractor: g.transportChain,
	})
}

// HandleSessionInput processes one text frame from an interactive session.
// It runs on the scheduler goroutine and calls done exactly once, when the
// turn has reached DONE or was dropped. No error escapes.
func (g *Gateway) HandleSessionInput(ctx context.Context, sessionID, raw string, done func()) {
	if done == nil {
		done = func() {}
	}

	s, ok := g.sessions.Get(sessionID)
	if !ok {
		g.logger.Warn("input for unknown session", "session_id", sessionID)
		done()
		return
	}

	if g.handleControl(s, raw) {
		done()
		return
	}

	if strings.TrimSpace(raw) == "" {
		g.logger.Debug("ignoring blank session input", "session_id", sessionID)
		done()
		return
	}

	g.runTurn(ctx, &turn{
		token:     events.NewToken(),
		origin:    originSession,
		history:   s.History(),
		targets:   []*session.Session{s},
		robotID:   s.RobotID(),
		input:     intent.Input{UserText: raw},
		extractor: g.interactive,
		sessionID: s.ID,
		done:      func(intent.Result) { done() },
	})
}

// broadcastPrompt asks the model on the shared history and sends the answer
// to every live session. done receives the answer.
func (g *Gateway) broadcastPrompt(ctx context.Context, message string, done func(intent.Result)) {
	g.enqueueShared(ctx, &turn{
		token:     events.NewToken(),
		origin:    originTest,
		history:   g.shared,
		targets:   g.sessions.All(),
		input:     intent.Input{UserText: message},
		extractor: intent.NewExtractor(nil, nil),
		done:      done,
	})
}

type robotIDSet struct {
	Type    string `json:"type"`
	RobotID string `json:"robot_id"`
}

// handleControl consumes JSON control frames. It reports false for anything
// that is not a recognized control frame, which is then a user utterance.
func (g *Gateway) handleControl(s *session.Session, raw string) bool {
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return false
	}

	kind, _ := obj["type"].(string)
	switch kind {
	case "user_meta":
		g.logger.Debug("user metadata received", "session_id", s.ID)
		return true

	case "set_robot_id":
		robotID := g.sessions.DefaultRobot()
		switch v := obj["robot_id"].(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				robotID = v
			}
		case nil:
		default:
			robotID = fmt.Sprint(v)
		}

		if err := g.sessions.SetRobot(s.ID, robotID); err != nil {
			g.logger.Warn("setting session robot", "session_id", s.ID, "error", err)
			return true
		}

		ack, err := json.Marshal(robotIDSet{Type: "robot_id_set", RobotID: robotID})
		if err != nil {
			g.logger.Error("encoding robot_id_set", "error", err)
			return true
		}
		if err := s.Deliver(session.TextFrame(string(ack))); err != nil {
			g.logger.Warn("robot_id_set delivery failed", "session_id", s.ID, "error", err)
		}
		return true
	}

	return false
}

// ABOUTME: Event publisher building outbound action, coffee-start and reply messages
// ABOUTME: Publishing never blocks the caller; ledger writes and the ready hook run detached

package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/2389/barista-gateway/internal/scheduler"
	"github.com/2389/barista-gateway/internal/store"
)

// Transport publishes raw payloads to the broker without blocking.
type Transport interface {
	Publish(topic string, payload []byte) error
}

// Detacher runs best-effort background jobs.
type Detacher interface {
	Go(name string, job scheduler.Job)
}

// Config holds the publisher's topics and collaborators.
type Config struct {
	ActionTopic string
	ReplyTopic  string
	// DefaultRobot resolves the robot for actions without one. It is called
	// on the caller's goroutine.
	DefaultRobot func() string
	Hook         *ReadyHook
	// Ledger is optional.
	Ledger store.Store
}

// Publisher builds and publishes outbound transport messages.
type Publisher struct {
	transport Transport
	detach    Detacher
	cfg       Config
	logger    *slog.Logger
}

// NewPublisher creates a publisher. Pass nil logger for default.
func NewPublisher(transport Transport, detach Detacher, cfg Config, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DefaultRobot == nil {
		cfg.DefaultRobot = func() string { return "" }
	}
	return &Publisher{
		transport: transport,
		detach:    detach,
		cfg:       cfg,
		logger:    logger.With("component", "events"),
	}
}

// PublishAction emits {action, robot_id} to the action topic. A ready action
// also emits a coffee-start event to the same topic and schedules the ready
// hook. An empty robotID falls back to the default robot.
func (p *Publisher) PublishAction(ctx context.Context, action, robotID string) {
	if robotID == "" {
		robotID = p.cfg.DefaultRobot()
	}

	p.publish(p.cfg.ActionTopic, store.KindAction, robotID, "", Action{Action: action, RobotID: robotID})

	if action != "ready" {
		return
	}

	start := NewCoffeeStart(robotID)
	p.publish(p.cfg.ActionTopic, store.KindCoffeeStart, robotID, start.TS, start)
	p.scheduleReadyHook(time.Now())
}

// PublishReply emits the reply envelope for a message received on replyTo.
// It returns the envelope's correlation token.
func (p *Publisher) PublishReply(ctx context.Context, replyTo, text string) string {
	reply := NewReply(replyTo, text)
	p.publish(p.cfg.ReplyTopic, store.KindReply, "", reply.TS, reply)
	return reply.TS
}

// PublishRaw emits an arbitrary payload and records it under kind.
func (p *Publisher) PublishRaw(topic string, kind store.Kind, robotID string, payload []byte) error {
	err := p.transport.Publish(topic, payload)
	if err != nil {
		p.logger.Warn("publish failed", "topic", topic, "kind", kind, "error", err)
		return err
	}
	p.record(store.DirectionOutbound, topic, kind, robotID, "", payload)
	return nil
}

// RecordInbound adds a received message to the ledger.
func (p *Publisher) RecordInbound(topic, robotID string, payload []byte) {
	p.record(store.DirectionInbound, topic, store.KindNotify, robotID, "", payload)
}

func (p *Publisher) publish(topic string, kind store.Kind, robotID, token string, msg any) {
	payload, err := json.Marshal(msg)
	if err != nil {
		p.logger.Error("encoding outbound message", "kind", kind, "error", err)
		return
	}

	if err := p.transport.Publish(topic, payload); err != nil {
		p.logger.Warn("publish failed", "topic", topic, "kind", kind, "error", err)
		return
	}
	p.logger.Info("published", "topic", topic, "kind", kind, "robot_id", robotID, "ts", token)
	p.record(store.DirectionOutbound, topic, kind, robotID, token, payload)
}

func (p *Publisher) record(dir store.Direction, topic string, kind store.Kind, robotID, token string, payload []byte) {
	if p.cfg.Ledger == nil {
		return
	}
	event := &store.Event{
		ID:        NewToken(),
		Direction: dir,
		Topic:     topic,
		Kind:      kind,
		RobotID:   robotID,
		Token:     token,
		Payload:   string(payload),
		Timestamp: time.Now(),
	}
	p.detach.Go("ledger", func(ctx context.Context) error {
		return p.cfg.Ledger.SaveEvent(ctx, event)
	})
}

func (p *Publisher) scheduleReadyHook(at time.Time) {
	hook := p.cfg.Hook
	if !hook.Enabled() {
		p.logger.Debug("ready hook not configured; skipping")
		return
	}
	p.detach.Go("ready-hook", func(ctx context.Context) error {
		status, err := hook.Notify(ctx, at)
		if err != nil {
			return err
		}
		p.logger.Info("ready hook delivered", "status", status)
		return nil
	})
}

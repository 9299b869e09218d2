// ABOUTME: Transport-originated message intake with redelivery deduplication
// ABOUTME: Defines the Bridge surface the gateway needs from the MQTT client

package gateway

import (
	"context"
	"log/slog"

	"github.com/2389/barista-gateway/internal/config"
	"github.com/2389/barista-gateway/internal/inbound"
	"github.com/2389/barista-gateway/internal/scheduler"
	"github.com/2389/barista-gateway/internal/transport"
)

// Bridge is the transport connection the gateway publishes through.
type Bridge interface {
	Connect()
	Reconnect(broker string)
	Publish(topic string, payload []byte) error
	Connected() bool
	WaitConnected(ctx context.Context) bool
	Broker() string
	Close()
}

// BridgeFactory builds the gateway's bridge. The bridge must run handle on
// the scheduler goroutine, never on its own callback goroutines.
type BridgeFactory func(cfg config.MQTTConfig, sched *scheduler.Scheduler, handle transport.Handler, logger *slog.Logger) Bridge

func newMQTTBridge(cfg config.MQTTConfig, sched *scheduler.Scheduler, handle transport.Handler, logger *slog.Logger) Bridge {
	return transport.NewBridge(cfg, sched, handle, logger)
}

// HandleTransportMessage processes one inbound transport message. It runs on
// the scheduler goroutine. Redeliveries of a message id already seen on the
// same topic are dropped. No error escapes: every failure is logged.
func (g *Gateway) HandleTransportMessage(ctx context.Context, msg inbound.Message) {
	if g.dedupe.Duplicate(msg.Topic, msg.ID) {
		g.logger.Debug("duplicate transport message ignored", "topic", msg.Topic, "id", msg.ID)
		return
	}

	g.publisher.RecordInbound(msg.Topic, msg.RobotID, []byte(msg.Raw))

	targets, ok := g.route(msg)
	if !ok {
		return
	}
	g.transportTurn(ctx, msg, targets)
}

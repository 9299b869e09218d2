// ABOUTME: WebSocket endpoint for interactive sessions using gorilla/websocket
// ABOUTME: One reader and one writer goroutine per connection; state changes go through the scheduler

package gateway

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/2389/barista-gateway/internal/session"
)

const (
	writeWait      = 10 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 64 << 10
)

// handleWebSocket handles GET /ws. The connection lives as long as its
// session: a new session is opened on connect and closed on disconnect.
func (g *Gateway) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	var sess *session.Session
	if err := g.sched.Do(r.Context(), func(context.Context) {
		sess = g.sessions.Open()
	}); err != nil {
		g.logger.Warn("cannot open session", "error", err)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "gateway not ready"),
			time.Now().Add(writeWait))
		return
	}

	ctx, cancel := context.WithCancel(g.baseCtx)
	defer cancel()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		g.writeLoop(ctx, conn, sess)
	}()

	g.readLoop(ctx, conn, sess)

	// Closing the session closes its outbox, which ends the writer. If the
	// scheduler is already gone the context cancel below ends it instead.
	if err := g.sched.Do(context.Background(), func(context.Context) {
		g.sessions.Close(sess.ID)
	}); err != nil {
		g.logger.Debug("session close skipped", "session_id", sess.ID, "error", err)
	}
	cancel()
	<-writerDone
}

// readLoop feeds text frames to the scheduler one at a time. It waits for
// each turn to finish before reading the next frame, so a session's turns
// are handled in arrival order.
func (g *Gateway) readLoop(ctx context.Context, conn *websocket.Conn, sess *session.Session) {
	conn.SetReadLimit(maxMessageSize)

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				g.logger.Warn("websocket read failed", "session_id", sess.ID, "error", err)
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}

		done := make(chan struct{})
		finish := sync.OnceFunc(func() { close(done) })
		text := string(data)
		if !g.sched.Submit(func(taskCtx context.Context) {
			g.HandleSessionInput(taskCtx, sess.ID, text, finish)
		}) {
			g.logger.Warn("scheduler not running; closing session", "session_id", sess.ID)
			return
		}

		select {
		case <-done:
		case <-ctx.Done():
			return
		}
	}
}

// writeLoop drains the session outbox onto the connection and keeps the
// connection alive with pings.
func (g *Gateway) writeLoop(ctx context.Context, conn *websocket.Conn, sess *session.Session) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-sess.Outbox():
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(writeWait))
				return
			}
			if err := writeFrame(conn, frame); err != nil {
				g.logger.Warn("websocket write failed", "session_id", sess.ID, "error", err)
				// Unblocks the reader.
				_ = conn.Close()
				return
			}

		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				_ = conn.Close()
				return
			}

		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "gateway shutting down"),
				time.Now().Add(writeWait))
			_ = conn.Close()
			return
		}
	}
}

var errUnknownFrame = errors.New("unknown frame kind")

func writeFrame(conn *websocket.Conn, frame session.Frame) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	switch frame.Kind {
	case session.FrameText:
		return conn.WriteMessage(websocket.TextMessage, frame.Data)
	case session.FrameBinary:
		return conn.WriteMessage(websocket.BinaryMessage, frame.Data)
	default:
		return errUnknownFrame
	}
}

// ABOUTME: Broadcast fanout of a finished turn: history, reply envelope, session delivery, speech
// ABOUTME: Per-recipient failures are logged and skipped

package gateway

import (
	"context"

	"github.com/2389/barista-gateway/internal/conversation"
	"github.com/2389/barista-gateway/internal/scheduler"
	"github.com/2389/barista-gateway/internal/session"
	"github.com/2389/barista-gateway/internal/speech"
)

// fanout records the assistant turn and sends text everywhere the turn is
// routed: the reply topic for transport turns, then each target session.
// Speech is scheduled when at least one session was targeted.
func (g *Gateway) fanout(ctx context.Context, t *turn, text string) {
	t.history.Append(conversation.RoleAssistant, text)

	if t.replyTo != "" {
		token := g.publisher.PublishReply(ctx, t.replyTo, text)
		g.logger.Debug("reply envelope published", "token", t.token, "reply_ts", token, "reply_to", t.replyTo)
	}

	ids := make([]string, 0, len(t.targets))
	for _, s := range t.targets {
		ids = append(ids, s.ID)
		if err := s.Deliver(session.TextFrame(text)); err != nil {
			g.logger.Warn("session delivery failed", "token", t.token, "session_id", s.ID, "error", err)
		}
	}

	if len(ids) > 0 {
		g.trace(t, stateSpeech, "sessions", len(ids))
		g.scheduleSpeech(t.token, text, ids)
	}
}

// scheduleSpeech synthesizes text on the worker pool and sends the audio to
// the sessions that are still open when it is ready.
func (g *Gateway) scheduleSpeech(token, text string, sessionIDs []string) {
	if g.speaker == nil {
		return
	}

	scheduler.Await(g.sched, "speech",
		func(ctx context.Context) ([]byte, error) {
			return speech.Speak(ctx, g.speaker, text)
		},
		func(_ context.Context, audio []byte, err error) {
			if err != nil {
				g.logger.Warn("speech synthesis failed", "token", token, "error", err)
				return
			}
			if len(audio) == 0 {
				return
			}
			for _, id := range sessionIDs {
				s, ok := g.sessions.Get(id)
				if !ok {
					continue
				}
				if err := s.Deliver(session.BinaryFrame(audio)); err != nil {
					g.logger.Warn("audio delivery failed", "token", token, "session_id", id, "error", err)
				}
			}
		})
}

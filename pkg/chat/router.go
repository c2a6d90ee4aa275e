package chat

import (
	"context"
	"errors"
	"sync"

	"github.com/lessonworks/sage/pkg/logger"
	"github.com/lessonworks/sage/pkg/ws"
)

// Transport is the persistent-connection side the router sends through.
type Transport interface {
	Send(v any) error
	Connected() bool
}

// RestChat is the request/response fallback.
type RestChat interface {
	Chat(ctx context.Context, deploymentID string, req ChatRequest) (ChatResponse, error)
}

// Router picks the transport for each outgoing message and maps both paths
// to the same outcome: an assistant message, delivered either asynchronously
// through the stream reconciler (persistent path) or as the returned value
// (fallback path).
type Router struct {
	conn       Transport
	rest       RestChat
	life       *Lifecycle
	deployment string

	mu         sync.Mutex
	persistent bool
}

func NewRouter(conn Transport, rest RestChat, life *Lifecycle, deploymentID string, persistent bool) *Router {
	return &Router{
		conn:       conn,
		rest:       rest,
		life:       life,
		deployment: deploymentID,
		persistent: persistent,
	}
}

// PersistentEnabled reports whether the persistent transport may still be
// used this session.
func (r *Router) PersistentEnabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.persistent
}

// DisablePersistent permanently routes the rest of the session over the
// fallback transport.
func (r *Router) DisablePersistent() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.persistent {
		logger.Info("persistent transport disabled for this session")
		r.persistent = false
	}
}

// Send routes one outgoing message. A nil message with nil error means the
// reply will arrive asynchronously over the persistent connection; otherwise
// the returned message is the finalized reply from the fallback path.
func (r *Router) Send(ctx context.Context, text string, history [][2]string, conversationID *int64) (*Message, error) {
	if r.PersistentEnabled() && r.conn.Connected() {
		err := r.conn.Send(ws.NewChatPayload(text, history, conversationID))
		if err == nil {
			return nil, nil
		}
		// A send on a not-open connection is retried over the fallback
		// rather than surfaced.
		if !errors.Is(err, ws.ErrNotConnected) {
			logger.Warn("persistent send failed, falling back: %v", err)
		}
	}

	resp, err := r.rest.Chat(ctx, r.deployment, ChatRequest{
		Message:        text,
		History:        history,
		ConversationID: conversationID,
	})
	if err != nil {
		return nil, err
	}

	if resp.ConversationID != nil {
		r.life.Bind(*resp.ConversationID)
	}

	msg := NewAssistantMessage(resp.Response, resp.Sources)
	return &msg, nil
}

// HandleUpstreamError inspects an error frame. Authentication and session
// failures disable the persistent transport for the rest of the session and
// are not surfaced; anything else is the caller's to report.
func (r *Router) HandleUpstreamError(message string) bool {
	if IsAuthFailureMessage(message) {
		r.DisablePersistent()
		return true
	}
	return false
}

package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lessonworks/sage/pkg/logger"
	"github.com/lessonworks/sage/pkg/ws"
)

// Connection is the persistent-connection surface the session drives.
// Satisfied by *ws.Manager.
type Connection interface {
	Connect(ctx context.Context) error
	Send(v any) error
	Disconnect()
	Connected() bool
	Events() <-chan ws.Event
	Errs() <-chan error
}

// SessionConfig carries everything needed to stand up a session.
type SessionConfig struct {
	ServerURL    string
	DeploymentID string
	Token        string
	Streaming    bool
	RestTimeout  time.Duration
}

// Session orchestrates the transcript, the reconciler, the conversation
// lifecycle, and the transport router for one chat view. All transcript
// mutation is serialized through the session's lock; callbacks fire on the
// session's own goroutines.
type Session struct {
	mu         sync.Mutex
	transcript *Transcript
	rec        *Reconciler
	conn       Connection
	router     *Router
	life       *Lifecycle
	closed     bool
	done       chan struct{}

	onUpdate func()
	onNotice func(error)
}

// NewSession builds a session from config, wiring the default client and
// connection manager.
func NewSession(cfg SessionConfig) *Session {
	timeout := cfg.RestTimeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	client := NewClientWithTimeout(cfg.ServerURL, cfg.Token, timeout)
	conn := ws.NewManager(ws.Config{
		ServerURL:    cfg.ServerURL,
		DeploymentID: cfg.DeploymentID,
	}, ws.StaticToken(cfg.Token))

	return NewSessionWith(conn, client, cfg.DeploymentID, cfg.Streaming)
}

// NewSessionWith wires a session from explicit collaborators.
func NewSessionWith(conn Connection, client *Client, deploymentID string, streaming bool) *Session {
	life := NewLifecycle(client, deploymentID)
	s := &Session{
		transcript: NewTranscript(),
		conn:       conn,
		life:       life,
		router:     NewRouter(conn, client, life, deploymentID, streaming),
		done:       make(chan struct{}),
	}
	s.rec = NewReconciler(s.transcript, s.handleUpstreamError)
	return s
}

// OnUpdate registers a callback fired after every transcript mutation.
func (s *Session) OnUpdate(fn func()) {
	s.onUpdate = fn
}

// OnNotice registers a callback for non-fatal, dismissible errors.
func (s *Session) OnNotice(fn func(error)) {
	s.onNotice = fn
}

// Start opens the persistent connection when streaming is enabled and begins
// consuming events. Connection problems never fail the session; it degrades
// to the fallback transport.
func (s *Session) Start(ctx context.Context) {
	if s.router.PersistentEnabled() {
		if err := s.conn.Connect(ctx); err != nil {
			var authErr *ws.AuthError
			if errors.As(err, &authErr) {
				// Handled internally: fallback only, no user-facing error.
				s.router.DisablePersistent()
			} else {
				logger.Warn("persistent connect failed: %v", err)
				s.notice(err)
			}
		}
	}
	go s.pump()
}

// Send submits one user message. The user entry is appended immediately; the
// assistant reply lands either via streaming events or, on the fallback
// path, before this call returns.
func (s *Session) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("session closed")
	}
	// History and the conversation id are derived before this message joins
	// the transcript.
	conversationID := s.life.Ensure(ctx, s.transcript)
	history := Pairs(s.transcript)
	s.transcript.Append(NewUserMessage(text))
	s.mu.Unlock()
	s.update()

	msg, err := s.router.Send(ctx, text, history, conversationID)
	if err != nil {
		return err
	}
	if msg == nil {
		return nil // reply arrives via the event pump
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.transcript.Append(*msg)
	s.mu.Unlock()
	s.update()
	return nil
}

// Messages returns a copy of the transcript.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.Messages()
}

// ConversationID returns the bound conversation id, nil when none yet.
func (s *Session) ConversationID() *int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.life.ID()
}

// Close tears the session down: pending reconnects and the heartbeat are
// cancelled synchronously and late events no longer touch the transcript.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.conn.Disconnect()
	close(s.done)
}

// pump is the session's event loop: the only goroutine that feeds protocol
// events into the reconciler.
func (s *Session) pump() {
	for {
		select {
		case ev := <-s.conn.Events():
			if ev.Type == ws.EventError {
				// Never a transcript mutation; no need for the lock.
				s.handleUpstreamError(ev.Message)
				continue
			}
			s.mu.Lock()
			if s.closed {
				s.mu.Unlock()
				return
			}
			mutated := s.rec.Apply(ev)
			s.mu.Unlock()
			if mutated {
				s.update()
			}
		case err := <-s.conn.Errs():
			s.mu.Lock()
			if s.closed {
				s.mu.Unlock()
				return
			}
			s.mu.Unlock()
			var authErr *ws.AuthError
			if errors.As(err, &authErr) {
				s.router.DisablePersistent()
			} else {
				s.notice(err)
			}
		case <-s.done:
			return
		}
	}
}

// handleUpstreamError receives explicit error frames from the reconciler.
func (s *Session) handleUpstreamError(message string) {
	if s.router.HandleUpstreamError(message) {
		// The session is no longer valid for the persistent transport;
		// tear the connection down so no reconnect is ever scheduled for it.
		s.conn.Disconnect()
		return
	}
	s.notice(&UpstreamError{Message: message})
}

func (s *Session) update() {
	if s.onUpdate != nil {
		s.onUpdate()
	}
}

func (s *Session) notice(err error) {
	if s.onNotice != nil {
		s.onNotice(err)
	}
}

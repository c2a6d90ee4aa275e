package ws

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lessonworks/sage/pkg/logger"
)

// State is the connection lifecycle state. Only the Manager transitions it.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateReconnecting
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// CredentialProvider supplies the session token used for the handshake.
// Injected so non-browser callers can provide the value explicitly.
type CredentialProvider interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a CredentialProvider wrapping a fixed token.
type StaticToken string

func (t StaticToken) Token(ctx context.Context) (string, error) {
	return string(t), nil
}

// Config holds connection settings.
type Config struct {
	// ServerURL is the HTTP base URL of the chat backend; the socket scheme
	// is substituted at dial time.
	ServerURL string

	// DeploymentID scopes the connection path to one assistant deployment.
	DeploymentID string

	HandshakeTimeout  time.Duration
	HeartbeatInterval time.Duration

	// Reconnect backoff: min(BaseDelay << attempt, MaxDelay), at most
	// MaxAttempts scheduled reconnects before giving up.
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
}

func (c Config) withDefaults() Config {
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	if c.BaseDelay == 0 {
		c.BaseDelay = time.Second
	}
	if c.MaxDelay == 0 {
		c.MaxDelay = 10 * time.Second
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 5
	}
	return c
}

// Manager owns one persistent connection per session: dial, heartbeat,
// reconnect with backoff, teardown. Inbound frames are decoded into Events;
// terminal failures are delivered on Errs.
type Manager struct {
	cfg   Config
	creds CredentialProvider

	mu         sync.Mutex
	state      State
	conn       *websocket.Conn
	attempts   int
	everOpened bool
	closed     bool
	reconnect  *time.Timer
	hbStop     chan struct{}

	events chan Event
	errs   chan error
	done   chan struct{}
}

// NewManager creates a connection manager. Connect must be called before any
// Send.
func NewManager(cfg Config, creds CredentialProvider) *Manager {
	return &Manager{
		cfg:    cfg.withDefaults(),
		creds:  creds,
		state:  StateIdle,
		events: make(chan Event, 64),
		errs:   make(chan error, 4),
		done:   make(chan struct{}),
	}
}

// Events delivers decoded inbound frames in arrival order.
func (m *Manager) Events() <-chan Event { return m.events }

// Errs delivers terminal connection failures (auth rejection, exhausted
// reconnects).
func (m *Manager) Errs() <-chan error { return m.errs }

// Connected reports whether the connection is open and sendable.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateOpen
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connect dials the backend. A failed very first dial means the server
// rejected the handshake and is reported as an auth failure with no retries.
// A missing credential fails the call without an auth-kind error.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return fmt.Errorf("connection manager closed")
	}
	if m.state == StateOpen || m.state == StateConnecting {
		m.mu.Unlock()
		return nil
	}
	m.state = StateConnecting
	m.mu.Unlock()

	token, err := m.creds.Token(ctx)
	if err != nil {
		m.mu.Lock()
		m.state = StateIdle
		m.mu.Unlock()
		return fmt.Errorf("credential provider: %w", err)
	}

	dialer := websocket.Dialer{HandshakeTimeout: m.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, m.dialURL(token), nil)
	if err != nil {
		m.mu.Lock()
		defer m.mu.Unlock()
		if !m.everOpened {
			m.state = StateFailed
			return &AuthError{Reason: "handshake rejected", Err: err}
		}
		m.state = StateIdle
		return &ConnectionError{Err: err}
	}

	m.handleOpen(conn)
	return nil
}

// Send writes a payload to the open connection. It fails immediately, without
// queueing, when the connection is not open.
func (m *Manager) Send(v any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateOpen || m.conn == nil {
		return ErrNotConnected
	}
	if err := m.conn.WriteJSON(v); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Disconnect synchronously cancels any pending reconnect, stops the
// heartbeat, and closes the connection. Events arriving afterwards are
// discarded.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	if m.reconnect != nil {
		m.reconnect.Stop()
		m.reconnect = nil
	}
	m.stopHeartbeatLocked()
	if m.conn != nil {
		_ = m.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		_ = m.conn.Close()
		m.conn = nil
	}
	m.state = StateIdle
	close(m.done)
}

func (m *Manager) dialURL(token string) string {
	u := strings.Replace(m.cfg.ServerURL, "http://", "ws://", 1)
	u = strings.Replace(u, "https://", "wss://", 1)
	u = strings.TrimRight(u, "/") + "/api/deployments/" + m.cfg.DeploymentID + "/chat/ws"
	if token != "" {
		u += "?token=" + url.QueryEscape(token)
	}
	return u
}

func (m *Manager) handleOpen(conn *websocket.Conn) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		conn.Close()
		return
	}
	m.conn = conn
	m.state = StateOpen
	m.attempts = 0
	m.everOpened = true
	m.hbStop = make(chan struct{})
	stop := m.hbStop
	m.mu.Unlock()

	logger.Info("websocket open: %s", m.cfg.DeploymentID)
	go m.readLoop(conn)
	go m.heartbeat(stop)
}

func (m *Manager) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			code := -1
			if ce, ok := err.(*websocket.CloseError); ok {
				code = ce.Code
			}
			m.handleClose(code, err)
			return
		}

		ev, err := DecodeEvent(data)
		if err != nil {
			// Malformed frames are dropped as if they never arrived.
			logger.Debug("dropping frame: %v", err)
			continue
		}

		select {
		case m.events <- ev:
		case <-m.done:
			return
		}
	}
}

func (m *Manager) heartbeat(stop chan struct{}) {
	ticker := time.NewTicker(m.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := m.Send(pingPayload{Type: "ping"}); err != nil {
				return
			}
		case <-stop:
			return
		}
	}
}

// handleClose runs the close side of the state machine. code is the close
// code from the peer, or -1 when the connection dropped without one.
func (m *Manager) handleClose(code int, cause error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopHeartbeatLocked()
	m.conn = nil

	if m.closed || m.state == StateFailed {
		return
	}

	if isAuthClose(code) {
		logger.Warn("websocket closed with auth code %d", code)
		m.state = StateFailed
		m.emitErrLocked(&AuthError{Reason: fmt.Sprintf("server closed connection (code %d)", code), Err: cause})
		return
	}

	if m.attempts < m.cfg.MaxAttempts {
		delay := backoffDelay(m.cfg.BaseDelay, m.cfg.MaxDelay, m.attempts)
		logger.Info("websocket closed (code %d), reconnecting in %s", code, delay)
		m.state = StateReconnecting
		m.attempts++
		m.reconnect = time.AfterFunc(delay, m.redial)
		return
	}

	logger.Error("websocket reconnect attempts exhausted")
	m.state = StateFailed
	m.emitErrLocked(&ConnectionError{Err: fmt.Errorf("reconnect attempts exhausted: %w", cause)})
}

func (m *Manager) redial() {
	m.mu.Lock()
	if m.closed || m.state != StateReconnecting {
		m.mu.Unlock()
		return
	}
	m.state = StateConnecting
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.HandshakeTimeout)
	defer cancel()

	token, err := m.creds.Token(ctx)
	if err != nil {
		logger.Warn("credential provider during reconnect: %v", err)
		m.retryOrFail(err)
		return
	}

	dialer := websocket.Dialer{HandshakeTimeout: m.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, m.dialURL(token), nil)
	if err != nil {
		m.retryOrFail(err)
		return
	}

	m.handleOpen(conn)
}

// retryOrFail is the dial-failure counterpart of handleClose: no close code,
// so it can only schedule another attempt or give up.
func (m *Manager) retryOrFail(cause error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if m.attempts < m.cfg.MaxAttempts {
		delay := backoffDelay(m.cfg.BaseDelay, m.cfg.MaxDelay, m.attempts)
		logger.Info("reconnect dial failed, retrying in %s: %v", delay, cause)
		m.state = StateReconnecting
		m.attempts++
		m.reconnect = time.AfterFunc(delay, m.redial)
		return
	}
	m.state = StateFailed
	m.emitErrLocked(&ConnectionError{Err: fmt.Errorf("reconnect attempts exhausted: %w", cause)})
}

func (m *Manager) stopHeartbeatLocked() {
	if m.hbStop != nil {
		close(m.hbStop)
		m.hbStop = nil
	}
}

func (m *Manager) emitErrLocked(err error) {
	select {
	case m.errs <- err:
	default:
		logger.Warn("dropping connection error: %v", err)
	}
}

// backoffDelay returns min(base << attempt, max).
func backoffDelay(base, max time.Duration, attempt int) time.Duration {
	d := base << uint(attempt)
	if d > max || d <= 0 {
		return max
	}
	return d
}

// isAuthClose reports whether a close code means the server rejected the
// session rather than the connection merely dropping.
func isAuthClose(code int) bool {
	switch code {
	case websocket.CloseProtocolError, websocket.ClosePolicyViolation:
		return true
	case 4001, 4002, 4003:
		return true
	}
	return false
}

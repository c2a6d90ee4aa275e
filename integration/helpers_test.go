package integration

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// testBackend is an in-process stand-in for the chat server: one websocket
// endpoint that streams replies and the request/response endpoints the
// fallback path uses.
type testBackend struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader

	token   string
	chunks  []string
	reply   string
	sources []string

	restChats int32
	created   int32
}

func newTestBackend() *testBackend {
	b := &testBackend{
		token:   "good-token",
		chunks:  []string{"Hi", " the", "re!"},
		reply:   "Hi there!",
		sources: []string{"guide.pdf"},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/deployments/dep-1/chat/ws", b.handleWS)
	mux.HandleFunc("/api/deployments/dep-1/chat", b.handleChat)
	mux.HandleFunc("/api/deployments/dep-1/conversations", b.handleConversations)
	b.srv = httptest.NewServer(mux)
	return b
}

func (b *testBackend) Close() { b.srv.Close() }

func (b *testBackend) URL() string { return b.srv.URL }

func (b *testBackend) RestChats() int { return int(atomic.LoadInt32(&b.restChats)) }

func (b *testBackend) Created() int { return int(atomic.LoadInt32(&b.created)) }

func (b *testBackend) handleWS(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("token") != b.token {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	conn.WriteJSON(map[string]string{"type": "auth_success"})

	for {
		var frame map[string]any
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		switch frame["type"] {
		case "ping":
			conn.WriteJSON(map[string]string{"type": "pong"})
		case "chat":
			conn.WriteJSON(map[string]any{"type": "typing"})
			for _, chunk := range b.chunks {
				time.Sleep(2 * time.Millisecond)
				conn.WriteJSON(map[string]any{"type": "stream", "chunk": chunk})
			}
			conn.WriteJSON(map[string]any{
				"type":     "response",
				"response": b.reply,
				"sources":  b.sources,
			})
		}
	}
}

func (b *testBackend) handleChat(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&b.restChats, 1)
	json.NewEncoder(w).Encode(map[string]any{
		"response": b.reply,
		"sources":  b.sources,
	})
}

func (b *testBackend) handleConversations(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&b.created, 1)
	json.NewEncoder(w).Encode(map[string]any{
		"id":            7,
		"deployment_id": "dep-1",
	})
}

package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientChat(t *testing.T) {
	t.Run("should post the message with auth and history", func(t *testing.T) {
		var gotPath, gotAuth string
		var gotBody ChatRequest
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotAuth = r.Header.Get("Authorization")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			json.NewEncoder(w).Encode(ChatResponse{Response: "Hi there!", Sources: []string{"a.pdf"}})
		}))
		defer srv.Close()

		client := NewClient(srv.URL, "tok-123")
		resp, err := client.Chat(context.Background(), "dep-1", ChatRequest{
			Message: "Hello",
			History: [][2]string{{"earlier", "reply"}},
		})

		require.NoError(t, err)
		assert.Equal(t, "/api/deployments/dep-1/chat", gotPath)
		assert.Equal(t, "Bearer tok-123", gotAuth)
		assert.Equal(t, "Hello", gotBody.Message)
		assert.Equal(t, [][2]string{{"earlier", "reply"}}, gotBody.History)
		assert.Equal(t, "Hi there!", resp.Response)
		assert.Equal(t, []string{"a.pdf"}, resp.Sources)
	})

	t.Run("should default nil history to an empty array on the wire", func(t *testing.T) {
		var raw map[string]json.RawMessage
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
			json.NewEncoder(w).Encode(ChatResponse{Response: "ok"})
		}))
		defer srv.Close()

		client := NewClient(srv.URL, "tok")
		_, err := client.Chat(context.Background(), "dep-1", ChatRequest{Message: "hi"})

		require.NoError(t, err)
		assert.JSONEq(t, "[]", string(raw["history"]))
	})

	t.Run("should surface the status code on failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		client := NewClient(srv.URL, "tok")
		_, err := client.Chat(context.Background(), "dep-1", ChatRequest{Message: "hi"})

		var restErr *RestError
		require.ErrorAs(t, err, &restErr)
		assert.Equal(t, http.StatusBadGateway, restErr.StatusCode)
	})
}

func TestClientConversations(t *testing.T) {
	t.Run("should create a conversation", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/api/deployments/dep-1/conversations", r.URL.Path)
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			json.NewEncoder(w).Encode(Conversation{ID: 42, DeploymentID: "dep-1", Title: body["title"]})
		}))
		defer srv.Close()

		client := NewClient(srv.URL, "tok")
		conv, err := client.CreateConversation(context.Background(), "dep-1", "Chat 2026-08-29")

		require.NoError(t, err)
		assert.Equal(t, int64(42), conv.ID)
		assert.Equal(t, "Chat 2026-08-29", conv.Title)
	})

	t.Run("should list conversations", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			json.NewEncoder(w).Encode([]Conversation{{ID: 2}, {ID: 1}})
		}))
		defer srv.Close()

		client := NewClient(srv.URL, "tok")
		convs, err := client.ListConversations(context.Background(), "dep-1")

		require.NoError(t, err)
		require.Len(t, convs, 2)
		assert.Equal(t, int64(2), convs[0].ID)
	})

	t.Run("should fetch conversation messages", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/conversations/42/messages", r.URL.Path)
			json.NewEncoder(w).Encode([]Message{
				{Role: RoleUser, Content: "q"},
				{Role: RoleAssistant, Content: "a"},
			})
		}))
		defer srv.Close()

		client := NewClient(srv.URL, "tok")
		msgs, err := client.Messages(context.Background(), 42)

		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.True(t, msgs[0].IsUser())
	})

	t.Run("should delete a conversation", func(t *testing.T) {
		var gotMethod, gotPath string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotMethod = r.Method
			gotPath = r.URL.Path
			w.WriteHeader(http.StatusNoContent)
		}))
		defer srv.Close()

		client := NewClient(srv.URL, "tok")
		require.NoError(t, client.DeleteConversation(context.Background(), 42))
		assert.Equal(t, http.MethodDelete, gotMethod)
		assert.Equal(t, "/api/conversations/42", gotPath)
	})
}

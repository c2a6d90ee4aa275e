package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client talks to the chat backend over plain HTTP: the request/response
// chat fallback plus conversation management.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(baseURL, token string) *Client {
	return NewClientWithTimeout(baseURL, token, 60*time.Second)
}

func NewClientWithTimeout(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ChatRequest is one fallback chat call.
type ChatRequest struct {
	Message        string      `json:"message"`
	History        [][2]string `json:"history"`
	ConversationID *int64      `json:"conversation_id,omitempty"`
}

// ChatResponse is the complete reply; no streaming phase on this path.
type ChatResponse struct {
	Response       string   `json:"response"`
	Sources        []string `json:"sources,omitempty"`
	ConversationID *int64   `json:"conversation_id,omitempty"`
}

// Chat sends a message over the fallback transport and awaits the full
// response.
func (c *Client) Chat(ctx context.Context, deploymentID string, req ChatRequest) (ChatResponse, error) {
	if req.History == nil {
		req.History = [][2]string{}
	}
	var resp ChatResponse
	err := c.post(ctx, fmt.Sprintf("%s/api/deployments/%s/chat", c.baseURL, deploymentID), req, &resp)
	return resp, err
}

// CreateConversation creates a conversation container for a deployment.
func (c *Client) CreateConversation(ctx context.Context, deploymentID, title string) (*Conversation, error) {
	var conv Conversation
	body := map[string]string{"title": title}
	url := fmt.Sprintf("%s/api/deployments/%s/conversations", c.baseURL, deploymentID)
	if err := c.post(ctx, url, body, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// ListConversations returns the deployment's conversations, newest first.
func (c *Client) ListConversations(ctx context.Context, deploymentID string) ([]Conversation, error) {
	var convs []Conversation
	url := fmt.Sprintf("%s/api/deployments/%s/conversations", c.baseURL, deploymentID)
	if err := c.get(ctx, url, &convs); err != nil {
		return nil, err
	}
	return convs, nil
}

// Messages returns the ordered messages of a conversation.
func (c *Client) Messages(ctx context.Context, conversationID int64) ([]Message, error) {
	var msgs []Message
	url := fmt.Sprintf("%s/api/conversations/%d/messages", c.baseURL, conversationID)
	if err := c.get(ctx, url, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// DeleteConversation removes a conversation and its messages.
func (c *Client) DeleteConversation(ctx context.Context, conversationID int64) error {
	url := fmt.Sprintf("%s/api/conversations/%d", c.baseURL, conversationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, nil)
}

func (c *Client) post(ctx context.Context, url string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &RestError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &RestError{StatusCode: resp.StatusCode}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &RestError{Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

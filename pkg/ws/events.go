package ws

import (
	"encoding/json"
	"fmt"
)

// Inbound event types sent by the chat backend. Every frame is a JSON text
// frame tagged with a "type" field.
const (
	EventAuthSuccess = "auth_success"
	EventTyping      = "typing"
	EventStream      = "stream"
	EventResponse    = "response"
	EventSources     = "sources"
	EventError       = "error"
	EventPong        = "pong"
)

// Event is the decoded form of an inbound frame. Only the fields relevant to
// the tagged type are populated.
type Event struct {
	Type     string
	Chunk    string   // stream
	Response string   // response
	Sources  []string // stream, response, sources
	Message  string   // error
}

type inboundFrame struct {
	Type     string   `json:"type"`
	Chunk    string   `json:"chunk,omitempty"`
	Response string   `json:"response,omitempty"`
	Sources  []string `json:"sources,omitempty"`
	Message  string   `json:"message,omitempty"`
}

// DecodeEvent parses an inbound frame. Frames with an unknown or missing type
// are rejected so the read loop can drop them.
func DecodeEvent(data []byte) (Event, error) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return Event{}, fmt.Errorf("malformed frame: %w", err)
	}

	switch frame.Type {
	case EventAuthSuccess, EventTyping, EventStream, EventResponse, EventSources, EventError, EventPong:
	default:
		return Event{}, fmt.Errorf("unknown frame type %q", frame.Type)
	}

	return Event{
		Type:     frame.Type,
		Chunk:    frame.Chunk,
		Response: frame.Response,
		Sources:  frame.Sources,
		Message:  frame.Message,
	}, nil
}

// ChatPayload is the outbound chat frame.
type ChatPayload struct {
	Type           string      `json:"type"`
	Message        string      `json:"message"`
	History        [][2]string `json:"history"`
	ConversationID *int64      `json:"conversation_id,omitempty"`
}

// NewChatPayload builds a chat frame for one outgoing user message.
func NewChatPayload(message string, history [][2]string, conversationID *int64) ChatPayload {
	if history == nil {
		history = [][2]string{}
	}
	return ChatPayload{
		Type:           "chat",
		Message:        message,
		History:        history,
		ConversationID: conversationID,
	}
}

type pingPayload struct {
	Type string `json:"type"`
}

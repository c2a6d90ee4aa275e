package chat

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Message is one transcript entry. Streaming messages are mutated in place
// until finalized; everything else is immutable once created.
type Message struct {
	ID          string    `json:"id"`
	Role        string    `json:"role"`
	Content     string    `json:"content"`
	Sources     []string  `json:"sources,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	IsStreaming bool      `json:"is_streaming,omitempty"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

func NewUserMessage(content string) Message {
	return Message{
		ID:        uuid.New().String(),
		Role:      RoleUser,
		Content:   strings.TrimSpace(content),
		Timestamp: time.Now(),
	}
}

func NewAssistantMessage(content string, sources []string) Message {
	return Message{
		ID:        uuid.New().String(),
		Role:      RoleAssistant,
		Content:   content,
		Sources:   sources,
		Timestamp: time.Now(),
	}
}

func newStreamingMessage(content string, sources []string) Message {
	msg := NewAssistantMessage(content, sources)
	msg.IsStreaming = true
	return msg
}

func (m Message) IsUser() bool {
	return m.Role == RoleUser
}

func (m Message) IsAssistant() bool {
	return m.Role == RoleAssistant
}

func (m Message) IsEmpty() bool {
	return strings.TrimSpace(m.Content) == ""
}

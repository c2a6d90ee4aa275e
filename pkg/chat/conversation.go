package chat

import (
	"context"
	"sync"
	"time"

	"github.com/lessonworks/sage/pkg/logger"
)

// Conversation is the server-side container grouping one deployment's
// messages.
type Conversation struct {
	ID           int64     `json:"id"`
	DeploymentID string    `json:"deployment_id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

// ConversationCreator is the slice of the management API the lifecycle needs.
type ConversationCreator interface {
	CreateConversation(ctx context.Context, deploymentID, title string) (*Conversation, error)
}

// Lifecycle binds a session to one conversation id. The id is created lazily
// before the first message and never reassigned for the session. Safe for
// concurrent use: the router adopts server-minted ids from its own goroutine.
type Lifecycle struct {
	api        ConversationCreator
	deployment string

	mu sync.Mutex
	id *int64
}

func NewLifecycle(api ConversationCreator, deploymentID string) *Lifecycle {
	return &Lifecycle{api: api, deployment: deploymentID}
}

// Ensure returns the bound conversation id, creating a conversation first
// when the session is fresh (no id, empty transcript). Idempotent: repeated
// calls with an unchanged transcript never create a second conversation. The
// id may stay nil when creation fails; the server then mints one on the
// request/response path.
func (l *Lifecycle) Ensure(ctx context.Context, t *Transcript) *int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.id != nil || !t.IsEmpty() {
		return l.id
	}

	title := "Chat " + time.Now().Format("2006-01-02")
	conv, err := l.api.CreateConversation(ctx, l.deployment, title)
	if err != nil {
		logger.Warn("conversation create failed, deferring to server: %v", err)
		return nil
	}

	l.id = &conv.ID
	logger.Debug("conversation %d bound to session", conv.ID)
	return l.id
}

// Bind adopts a server-minted conversation id if none is bound yet.
func (l *Lifecycle) Bind(id int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.id == nil {
		l.id = &id
	}
}

// ID returns the bound conversation id, nil when none.
func (l *Lifecycle) ID() *int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.id
}

// Pairs builds the wire history: each user message paired with the assistant
// message that immediately follows it, a trailing unanswered user message
// paired with an empty string. Both transports consume this format.
func Pairs(t *Transcript) [][2]string {
	messages := t.Messages()
	pairs := make([][2]string, 0, len(messages)/2+1)

	for i := 0; i < len(messages); i++ {
		if !messages[i].IsUser() {
			continue
		}
		reply := ""
		if i+1 < len(messages) && messages[i+1].IsAssistant() {
			reply = messages[i+1].Content
		}
		pairs = append(pairs, [2]string{messages[i].Content, reply})
	}
	return pairs
}

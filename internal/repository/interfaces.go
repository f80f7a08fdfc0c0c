package repository

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// Conversation is the per host object settings record. Nil override
// fields defer to the global configuration.
type Conversation struct {
	ID               string    `db:"id" json:"id"`
	Online           bool      `db:"online" json:"online"`
	Provider         *string   `db:"provider" json:"provider"`
	Model            *string   `db:"model" json:"model"`
	APIKey           *string   `db:"api_key" json:"-"`
	CustomURL        *string   `db:"custom_url" json:"custom_url"`
	SystemPrompt     *string   `db:"system_prompt" json:"system_prompt"`
	Disclaimer       *string   `db:"disclaimer" json:"disclaimer"`
	StreamingEnabled *bool     `db:"streaming_enabled" json:"streaming_enabled"`
	CharLimit        *int      `db:"char_limit" json:"char_limit"`
	MemoryWindow     *int      `db:"memory_window" json:"memory_window"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// Chat is one thread between a user and a conversation.
type Chat struct {
	ID             string    `db:"id" json:"id"`
	ConversationID string    `db:"conversation_id" json:"obj_id"`
	UserID         string    `db:"user_id" json:"user_id"`
	Title          string    `db:"title" json:"title"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	LastUpdate     time.Time `db:"last_update" json:"last_update"`
}

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single immutable turn in a chat.
type Message struct {
	ID        string    `db:"id" json:"id"`
	ChatID    string    `db:"chat_id" json:"chat_id"`
	Role      string    `db:"role" json:"role"`
	Content   string    `db:"content" json:"content"`
	Timestamp time.Time `db:"created_at" json:"timestamp"`
}

// ConfigRepository stores global settings as raw text values.
type ConfigRepository interface {
	Get(ctx context.Context, name string) (value string, found bool, err error)
	GetAll(ctx context.Context) (map[string]string, error)
	Upsert(ctx context.Context, name, value string) error
	Delete(ctx context.Context, name string) error
}

// ConversationRepository defines conversation storage operations.
type ConversationRepository interface {
	Create(ctx context.Context, conversation *Conversation) error
	Get(ctx context.Context, id string) (*Conversation, error)
	List(ctx context.Context) ([]*Conversation, error)
	Update(ctx context.Context, conversation *Conversation) error
	// Delete removes the conversation with all of its chats and messages.
	Delete(ctx context.Context, id string) error
}

// ChatRepository defines chat session storage operations.
type ChatRepository interface {
	Create(ctx context.Context, chat *Chat) error
	Get(ctx context.Context, id string) (*Chat, error)
	// ListByUser returns the user's chats, most recently updated first.
	ListByUser(ctx context.Context, conversationID, userID string) ([]*Chat, error)
	// Delete removes the chat and its messages.
	Delete(ctx context.Context, id string) error
}

// MessageRepository defines message storage operations.
type MessageRepository interface {
	// Append inserts the message and bumps the owning chat's last_update.
	// A non-empty title replaces the chat title in the same transaction.
	Append(ctx context.Context, message *Message, title string) error
	// ListByChat returns the chat's messages in conversation order.
	ListByChat(ctx context.Context, chatID string) ([]*Message, error)
}

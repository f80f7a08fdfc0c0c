package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/agentx/aichat/internal/repository"
)

// ChatRepository implements repository.ChatRepository
type ChatRepository struct {
	db *sqlx.DB
}

// NewChatRepository creates a new chat repository
func NewChatRepository(db *sqlx.DB) repository.ChatRepository {
	return &ChatRepository{db: db}
}

// Create inserts a chat, assigning its ID and timestamps
func (r *ChatRepository) Create(ctx context.Context, chat *repository.Chat) error {
	chat.ID = uuid.New().String()
	now := timestamp(time.Now())
	chat.CreatedAt = now
	chat.LastUpdate = now

	query := `
		INSERT INTO chats (id, conversation_id, user_id, title, created_at, last_update)
		VALUES (:id, :conversation_id, :user_id, :title, :created_at, :last_update)
	`

	_, err := r.db.NamedExecContext(ctx, query, chat)
	return err
}

// Get retrieves a chat by ID
func (r *ChatRepository) Get(ctx context.Context, id string) (*repository.Chat, error) {
	var chat repository.Chat
	query := r.db.Rebind(`
		SELECT id, conversation_id, user_id, title, created_at, last_update
		FROM chats
		WHERE id = ?
	`)

	err := r.db.GetContext(ctx, &chat, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return &chat, nil
}

// ListByUser retrieves a user's chats, newest activity first
func (r *ChatRepository) ListByUser(ctx context.Context, conversationID, userID string) ([]*repository.Chat, error) {
	chats := []*repository.Chat{}
	query := r.db.Rebind(`
		SELECT id, conversation_id, user_id, title, created_at, last_update
		FROM chats
		WHERE conversation_id = ? AND user_id = ?
		ORDER BY last_update DESC, created_at DESC
	`)

	if err := r.db.SelectContext(ctx, &chats, query, conversationID, userID); err != nil {
		return nil, err
	}

	return chats, nil
}

// Delete removes a chat and, through the foreign key, its messages
func (r *ChatRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, r.db.Rebind("DELETE FROM chats WHERE id = ?"), id)
	if err != nil {
		return err
	}

	return requireRow(result)
}

package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/agentx/aichat/internal/repository"
)

// MessageRepository implements repository.MessageRepository
type MessageRepository struct {
	db *sqlx.DB
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *sqlx.DB) repository.MessageRepository {
	return &MessageRepository{db: db}
}

// Append inserts the message and touches the chat in one transaction.
// IDs are UUIDv7 so messages sharing a timestamp keep insertion order.
func (r *MessageRepository) Append(ctx context.Context, message *repository.Message, title string) (err error) {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("failed to generate message id: %w", err)
	}
	message.ID = id.String()
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now()
	}
	message.Timestamp = timestamp(message.Timestamp)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	insert := `
		INSERT INTO messages (id, chat_id, role, content, created_at)
		VALUES (:id, :chat_id, :role, :content, :created_at)
	`
	if _, err = tx.NamedExecContext(ctx, insert, message); err != nil {
		return err
	}

	if title != "" {
		_, err = tx.ExecContext(ctx,
			tx.Rebind("UPDATE chats SET last_update = ?, title = ? WHERE id = ?"),
			message.Timestamp, title, message.ChatID)
	} else {
		_, err = tx.ExecContext(ctx,
			tx.Rebind("UPDATE chats SET last_update = ? WHERE id = ?"),
			message.Timestamp, message.ChatID)
	}
	if err != nil {
		return err
	}

	return tx.Commit()
}

// ListByChat retrieves the chat's messages in conversation order
func (r *MessageRepository) ListByChat(ctx context.Context, chatID string) ([]*repository.Message, error) {
	messages := []*repository.Message{}
	query := r.db.Rebind(`
		SELECT id, chat_id, role, content, created_at
		FROM messages
		WHERE chat_id = ?
		ORDER BY created_at ASC, id ASC
	`)

	if err := r.db.SelectContext(ctx, &messages, query, chatID); err != nil {
		return nil, err
	}

	return messages, nil
}

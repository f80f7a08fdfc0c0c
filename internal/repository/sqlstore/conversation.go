package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/agentx/aichat/internal/repository"
)

const conversationColumns = `id, online, provider, model, api_key, custom_url, system_prompt,
	disclaimer, streaming_enabled, char_limit, memory_window, created_at, updated_at`

// ConversationRepository implements repository.ConversationRepository
type ConversationRepository struct {
	db *sqlx.DB
}

// NewConversationRepository creates a new conversation repository
func NewConversationRepository(db *sqlx.DB) repository.ConversationRepository {
	return &ConversationRepository{db: db}
}

// Create inserts a conversation. CreatedAt and UpdatedAt are set here.
func (r *ConversationRepository) Create(ctx context.Context, conversation *repository.Conversation) error {
	now := timestamp(time.Now())
	conversation.CreatedAt = now
	conversation.UpdatedAt = now

	query := `
		INSERT INTO conversations (` + conversationColumns + `)
		VALUES (:id, :online, :provider, :model, :api_key, :custom_url, :system_prompt,
			:disclaimer, :streaming_enabled, :char_limit, :memory_window, :created_at, :updated_at)
	`

	_, err := r.db.NamedExecContext(ctx, query, conversation)
	return err
}

// Get retrieves a conversation by ID
func (r *ConversationRepository) Get(ctx context.Context, id string) (*repository.Conversation, error) {
	var conversation repository.Conversation
	query := r.db.Rebind("SELECT " + conversationColumns + " FROM conversations WHERE id = ?")

	err := r.db.GetContext(ctx, &conversation, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return &conversation, nil
}

// List retrieves all conversations
func (r *ConversationRepository) List(ctx context.Context) ([]*repository.Conversation, error) {
	var conversations []*repository.Conversation
	query := "SELECT " + conversationColumns + " FROM conversations ORDER BY created_at ASC"

	if err := r.db.SelectContext(ctx, &conversations, query); err != nil {
		return nil, err
	}

	return conversations, nil
}

// Update overwrites every mutable column of the conversation
func (r *ConversationRepository) Update(ctx context.Context, conversation *repository.Conversation) error {
	conversation.UpdatedAt = timestamp(time.Now())

	query := `
		UPDATE conversations SET
			online = :online,
			provider = :provider,
			model = :model,
			api_key = :api_key,
			custom_url = :custom_url,
			system_prompt = :system_prompt,
			disclaimer = :disclaimer,
			streaming_enabled = :streaming_enabled,
			char_limit = :char_limit,
			memory_window = :memory_window,
			updated_at = :updated_at
		WHERE id = :id
	`

	result, err := r.db.NamedExecContext(ctx, query, conversation)
	if err != nil {
		return err
	}

	return requireRow(result)
}

// Delete removes a conversation. Chats and messages go with it through
// the ON DELETE CASCADE foreign keys.
func (r *ConversationRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, r.db.Rebind("DELETE FROM conversations WHERE id = ?"), id)
	if err != nil {
		return err
	}

	return requireRow(result)
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// timestamp normalizes times to UTC at microsecond precision so values
// round-trip identically through every supported driver.
func timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

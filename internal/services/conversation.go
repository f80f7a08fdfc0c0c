package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/agentx/aichat/internal/auth"
	"github.com/agentx/aichat/internal/models"
	"github.com/agentx/aichat/internal/providers"
	"github.com/agentx/aichat/internal/repository"
)

// Caller identifies the host user behind a request.
type Caller struct {
	UserID string
	Admin  bool
}

// FrontendConfig is the payload the chat frontend loads on start.
type FrontendConfig struct {
	Disclaimer       string            `json:"disclaimer"`
	PromptSelection  string            `json:"prompt_selection"`
	CharactersLimit  int               `json:"characters_limit"`
	NMemoryMessages  int               `json:"n_memory_messages"`
	StreamingEnabled bool              `json:"streaming_enabled"`
	Lang             string            `json:"lang"`
	Translations     map[string]string `json:"translations"`
}

// ConversationInput carries the editable conversation fields. A nil
// override clears it; a nil APIKey keeps the stored key and an empty one
// removes it.
type ConversationInput struct {
	ID               string  `json:"id"`
	Online           *bool   `json:"online"`
	Provider         *string `json:"provider"`
	Model            *string `json:"model"`
	APIKey           *string `json:"api_key"`
	CustomURL        *string `json:"custom_url"`
	SystemPrompt     *string `json:"system_prompt"`
	Disclaimer       *string `json:"disclaimer"`
	StreamingEnabled *bool   `json:"streaming_enabled"`
	CharLimit        *int    `json:"char_limit"`
	MemoryWindow     *int    `json:"memory_window"`
}

// ConversationView is a conversation as shown on the settings form.
type ConversationView struct {
	ID        string    `json:"id"`
	Online    bool      `json:"online"`
	Overrides Overrides `json:"overrides"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ConversationService drives conversations, their chats and each turn
// sent to the configured LLM provider.
type ConversationService struct {
	conversations repository.ConversationRepository
	chats         repository.ChatRepository
	messages      repository.MessageRepository
	resolver      *ConfigResolver
	registry      *providers.Registry
	sealer        *auth.KeySealer
	language      string
	logger        *logrus.Logger
}

// NewConversationService creates a new conversation service
func NewConversationService(
	conversations repository.ConversationRepository,
	chats repository.ChatRepository,
	messages repository.MessageRepository,
	resolver *ConfigResolver,
	registry *providers.Registry,
	sealer *auth.KeySealer,
	language string,
	logger *logrus.Logger,
) *ConversationService {
	return &ConversationService{
		conversations: conversations,
		chats:         chats,
		messages:      messages,
		resolver:      resolver,
		registry:      registry,
		sealer:        sealer,
		language:      language,
		logger:        logger,
	}
}

// Config returns the frontend configuration of a conversation
func (s *ConversationService) Config(ctx context.Context, caller Caller, conversationID string) (*FrontendConfig, error) {
	conv, err := s.access(ctx, caller, conversationID)
	if err != nil {
		return nil, err
	}

	settings, err := s.resolver.Effective(ctx, conv)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve settings: %w", err)
	}

	lang, catalogue := Translations(s.language)
	return &FrontendConfig{
		Disclaimer:       settings.Disclaimer,
		PromptSelection:  settings.SystemPrompt,
		CharactersLimit:  settings.CharLimit,
		NMemoryMessages:  settings.MemoryWindow,
		StreamingEnabled: settings.StreamingEnabled,
		Lang:             lang,
		Translations:     catalogue,
	}, nil
}

// CreateConversation registers a host object. An empty ID is generated.
func (s *ConversationService) CreateConversation(ctx context.Context, in ConversationInput) (*ConversationView, error) {
	if in.ID == "" {
		in.ID = uuid.New().String()
	}

	if _, err := s.conversations.Get(ctx, in.ID); err == nil {
		return nil, models.NewValidationError("conversation %s already exists", in.ID)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, models.NewPersistenceError("failed to load conversation", err)
	}

	conv := &repository.Conversation{ID: in.ID}
	if err := s.apply(conv, in); err != nil {
		return nil, err
	}

	if err := s.conversations.Create(ctx, conv); err != nil {
		return nil, models.NewPersistenceError("failed to create conversation", err)
	}

	s.logger.WithField("conversation_id", conv.ID).Info("Conversation created")
	return s.view(conv), nil
}

// GetConversation returns the conversation with its own overrides only
func (s *ConversationService) GetConversation(ctx context.Context, id string) (*ConversationView, error) {
	conv, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(conv), nil
}

// ListConversations returns every conversation
func (s *ConversationService) ListConversations(ctx context.Context) ([]*ConversationView, error) {
	list, err := s.conversations.List(ctx)
	if err != nil {
		return nil, models.NewPersistenceError("failed to list conversations", err)
	}

	views := make([]*ConversationView, len(list))
	for i, conv := range list {
		views[i] = s.view(conv)
	}
	return views, nil
}

// UpdateConversation replaces the conversation's overrides with in
func (s *ConversationService) UpdateConversation(ctx context.Context, id string, in ConversationInput) (*ConversationView, error) {
	conv, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.apply(conv, in); err != nil {
		return nil, err
	}

	if err := s.conversations.Update(ctx, conv); err != nil {
		return nil, storageError("conversation", err)
	}

	s.logger.WithField("conversation_id", conv.ID).Info("Conversation updated")
	return s.view(conv), nil
}

// DeleteConversation removes the conversation with all chats and messages
func (s *ConversationService) DeleteConversation(ctx context.Context, id string) error {
	if err := s.conversations.Delete(ctx, id); err != nil {
		return storageError("conversation", err)
	}

	s.logger.WithField("conversation_id", id).Info("Conversation deleted")
	return nil
}

func (s *ConversationService) apply(conv *repository.Conversation, in ConversationInput) error {
	if in.Provider != nil && *in.Provider != "" && !s.registry.Has(*in.Provider) {
		return models.NewValidationError("unknown provider %q", *in.Provider)
	}
	if in.CharLimit != nil && *in.CharLimit < 0 {
		return models.NewValidationError("char_limit must not be negative")
	}
	if in.MemoryWindow != nil && *in.MemoryWindow < 0 {
		return models.NewValidationError("memory_window must not be negative")
	}

	if in.Online != nil {
		conv.Online = *in.Online
	}
	conv.Provider = in.Provider
	conv.Model = in.Model
	conv.CustomURL = in.CustomURL
	conv.SystemPrompt = in.SystemPrompt
	conv.Disclaimer = in.Disclaimer
	conv.StreamingEnabled = in.StreamingEnabled
	conv.CharLimit = in.CharLimit
	conv.MemoryWindow = in.MemoryWindow

	if in.APIKey != nil {
		if *in.APIKey == "" {
			conv.APIKey = nil
		} else {
			sealed, err := s.sealer.Seal(*in.APIKey)
			if err != nil {
				return err
			}
			conv.APIKey = &sealed
		}
	}

	return nil
}

func (s *ConversationService) view(conv *repository.Conversation) *ConversationView {
	return &ConversationView{
		ID:        conv.ID,
		Online:    conv.Online,
		Overrides: s.resolver.Strict(conv),
		CreatedAt: conv.CreatedAt,
		UpdatedAt: conv.UpdatedAt,
	}
}

func (s *ConversationService) load(ctx context.Context, id string) (*repository.Conversation, error) {
	conv, err := s.conversations.Get(ctx, id)
	if err != nil {
		return nil, storageError("conversation", err)
	}
	return conv, nil
}

// access loads a conversation the caller may chat in. Offline
// conversations are visible to administrators only.
func (s *ConversationService) access(ctx context.Context, caller Caller, id string) (*repository.Conversation, error) {
	conv, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !conv.Online && !caller.Admin {
		return nil, models.NewForbiddenError("conversation %s is offline", id)
	}
	return conv, nil
}

// storageError maps a repository failure to the error taxonomy.
func storageError(what string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return models.NewNotFoundError("%s not found", what)
	}
	return models.NewPersistenceError("failed to access "+what, err)
}

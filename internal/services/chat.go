package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/agentx/aichat/internal/models"
	"github.com/agentx/aichat/internal/providers"
	"github.com/agentx/aichat/internal/repository"
)

// titleLength is the number of characters of the first message kept as
// the chat title.
const titleLength = 100

// ChatView is a chat with its windowed message history
type ChatView struct {
	*repository.Chat
	Messages []*repository.Message `json:"messages"`
}

// Turn is the outcome of one exchange with the provider
type Turn struct {
	Message     *repository.Message `json:"message"`
	LLMResponse *repository.Message `json:"llmresponse"`
}

// ListChats returns the caller's chats, newest first. A user without
// chats gets a default one so the list is never empty.
func (s *ConversationService) ListChats(ctx context.Context, caller Caller, conversationID string) ([]*repository.Chat, error) {
	conv, err := s.access(ctx, caller, conversationID)
	if err != nil {
		return nil, err
	}
	if caller.UserID == "" {
		return nil, models.NewValidationError("user is required")
	}

	chats, err := s.chats.ListByUser(ctx, conv.ID, caller.UserID)
	if err != nil {
		return nil, models.NewPersistenceError("failed to list chats", err)
	}
	if len(chats) > 0 {
		return chats, nil
	}

	// Concurrent first loads may both get here and create two chats.
	chat, err := s.createChat(ctx, conv.ID, caller.UserID)
	if err != nil {
		return nil, err
	}
	return []*repository.Chat{chat}, nil
}

// NewChat starts an empty chat for the caller
func (s *ConversationService) NewChat(ctx context.Context, caller Caller, conversationID string) (*repository.Chat, error) {
	conv, err := s.access(ctx, caller, conversationID)
	if err != nil {
		return nil, err
	}
	if caller.UserID == "" {
		return nil, models.NewValidationError("user is required")
	}
	return s.createChat(ctx, conv.ID, caller.UserID)
}

// GetChat returns one of the caller's chats with the messages that fall
// inside the effective memory window.
func (s *ConversationService) GetChat(ctx context.Context, caller Caller, conversationID, chatID string) (*ChatView, error) {
	conv, err := s.access(ctx, caller, conversationID)
	if err != nil {
		return nil, err
	}
	chat, err := s.ownedChat(ctx, caller, conv, chatID)
	if err != nil {
		return nil, err
	}

	settings, err := s.resolver.Effective(ctx, conv)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve settings: %w", err)
	}

	messages, err := s.messages.ListByChat(ctx, chat.ID)
	if err != nil {
		return nil, models.NewPersistenceError("failed to load messages", err)
	}

	return &ChatView{Chat: chat, Messages: lastMessages(messages, settings.MemoryWindow)}, nil
}

// DeleteChat removes one of the caller's chats and its messages
func (s *ConversationService) DeleteChat(ctx context.Context, caller Caller, conversationID, chatID string) error {
	conv, err := s.access(ctx, caller, conversationID)
	if err != nil {
		return err
	}
	chat, err := s.ownedChat(ctx, caller, conv, chatID)
	if err != nil {
		return err
	}

	if err := s.chats.Delete(ctx, chat.ID); err != nil {
		return storageError("chat", err)
	}

	s.logger.WithFields(logrus.Fields{
		"conversation_id": conv.ID,
		"chat_id":         chat.ID,
	}).Info("Chat deleted")
	return nil
}

// Streams reports whether AddMessage will relay chunks for the
// conversation: streaming must be enabled and the provider able to.
func (s *ConversationService) Streams(ctx context.Context, caller Caller, conversationID string) (bool, error) {
	conv, err := s.access(ctx, caller, conversationID)
	if err != nil {
		return false, err
	}
	settings, err := s.resolver.Effective(ctx, conv)
	if err != nil {
		return false, fmt.Errorf("failed to resolve settings: %w", err)
	}
	if !settings.StreamingEnabled {
		return false, nil
	}
	provider, err := s.registry.Resolve(settings.Provider)
	if err != nil {
		return false, err
	}
	return provider.SupportsStreaming(), nil
}

// AddMessage runs one turn: the user message is stored, sent to the
// provider together with the windowed history, and the reply stored.
// When streaming is effective and sink is set, raw provider chunks are
// passed to sink as they arrive.
//
// Request fields are checked first, then configuration, and both before
// anything is stored. A provider failure leaves the user message in place
// and stores no reply.
func (s *ConversationService) AddMessage(ctx context.Context, caller Caller, conversationID, chatID, text string, sink providers.ChunkSink) (*Turn, error) {
	conv, err := s.access(ctx, caller, conversationID)
	if err != nil {
		return nil, err
	}
	chat, err := s.ownedChat(ctx, caller, conv, chatID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, models.NewValidationError("message is required")
	}

	settings, err := s.resolver.Effective(ctx, conv)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve settings: %w", err)
	}
	provider, err := s.prepareProvider(settings)
	if err != nil {
		return nil, err
	}

	if n := utf8.RuneCountInString(text); n > settings.CharLimit {
		return nil, models.NewValidationError("message has %d characters, the limit is %d", n, settings.CharLimit)
	}

	history, err := s.messages.ListByChat(ctx, chat.ID)
	if err != nil {
		return nil, models.NewPersistenceError("failed to load messages", err)
	}

	title := ""
	if len(history) == 0 {
		title = deriveTitle(text)
	}

	userMessage := &repository.Message{
		ChatID:  chat.ID,
		Role:    repository.RoleUser,
		Content: text,
	}
	if err := s.messages.Append(ctx, userMessage, title); err != nil {
		return nil, models.NewPersistenceError("failed to save message", err)
	}
	history = append(history, userMessage)

	req := providers.Request{
		Messages: providers.BuildMessages(toProviderMessages(history), settings.SystemPrompt, settings.MemoryWindow),
		Model:    settings.Model,
		APIKey:   settings.APIKey,
		URL:      settings.URL,
	}

	log := s.logger.WithFields(logrus.Fields{
		"conversation_id": conv.ID,
		"chat_id":         chat.ID,
		"provider":        provider.Name(),
		"model":           settings.Model,
		"messages":        len(req.Messages),
	})

	start := time.Now()
	var reply string
	if settings.StreamingEnabled && provider.SupportsStreaming() && sink != nil {
		reply, err = provider.Stream(ctx, req, sink)
	} else {
		reply, err = provider.Send(ctx, req)
	}
	if err != nil {
		log.WithError(err).Warn("Provider request failed")
		return nil, err
	}

	assistantMessage := &repository.Message{
		ChatID:  chat.ID,
		Role:    repository.RoleAssistant,
		Content: reply,
	}
	if err := s.messages.Append(ctx, assistantMessage, ""); err != nil {
		return nil, models.NewPersistenceError("failed to save reply", err)
	}

	log.WithField("duration_ms", time.Since(start).Milliseconds()).Debug("Turn completed")
	return &Turn{Message: userMessage, LLMResponse: assistantMessage}, nil
}

// prepareProvider resolves the provider and checks it has what it needs
// before any side effect.
func (s *ConversationService) prepareProvider(settings *Settings) (providers.Provider, error) {
	provider, err := s.registry.Resolve(settings.Provider)
	if err != nil {
		return nil, err
	}
	if settings.Model == "" {
		return nil, models.NewConfigurationError("no model configured")
	}

	// A missing key is reported like a rejected one.
	caps := providers.CapabilitiesOf(provider)
	if caps.RequiresAPIKey && settings.APIKey == "" {
		return nil, models.NewAuthError("no API key configured for " + provider.Name())
	}
	if caps.CustomURL && settings.URL == "" {
		return nil, models.NewConfigurationError("no URL configured for %s", provider.Name())
	}
	return provider, nil
}

func (s *ConversationService) createChat(ctx context.Context, conversationID, userID string) (*repository.Chat, error) {
	_, catalogue := Translations(s.language)
	chat := &repository.Chat{
		ConversationID: conversationID,
		UserID:         userID,
		Title:          catalogue["chat_default_title"],
	}
	if err := s.chats.Create(ctx, chat); err != nil {
		return nil, models.NewPersistenceError("failed to create chat", err)
	}

	s.logger.WithFields(logrus.Fields{
		"conversation_id": conversationID,
		"chat_id":         chat.ID,
		"user_id":         userID,
	}).Debug("Chat created")
	return chat, nil
}

// ownedChat loads chatID and checks it belongs to the caller within conv.
func (s *ConversationService) ownedChat(ctx context.Context, caller Caller, conv *repository.Conversation, chatID string) (*repository.Chat, error) {
	if chatID == "" {
		return nil, models.NewValidationError("chat_id is required")
	}

	chat, err := s.chats.Get(ctx, chatID)
	if err != nil {
		return nil, storageError("chat", err)
	}
	if chat.ConversationID != conv.ID {
		return nil, models.NewNotFoundError("chat not found")
	}
	if chat.UserID != caller.UserID {
		return nil, models.NewForbiddenError("chat belongs to another user")
	}
	return chat, nil
}

// deriveTitle keeps the first titleLength characters of the message.
func deriveTitle(text string) string {
	if utf8.RuneCountInString(text) <= titleLength {
		return text
	}
	return string([]rune(text)[:titleLength]) + "..."
}

// lastMessages returns the final n messages, or all of them when n is 0.
func lastMessages(messages []*repository.Message, n int) []*repository.Message {
	if n <= 0 || len(messages) <= n {
		return messages
	}
	return messages[len(messages)-n:]
}

func toProviderMessages(messages []*repository.Message) []providers.Message {
	out := make([]providers.Message, len(messages))
	for i, m := range messages {
		out[i] = providers.Message{Role: m.Role, Content: m.Content}
	}
	return out
}

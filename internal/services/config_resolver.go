package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentx/aichat/internal/auth"
	"github.com/agentx/aichat/internal/repository"
)

// Hard defaults applied when neither the conversation nor the global
// configuration provides a value.
const (
	DefaultMemoryWindow = 5
	DefaultCharLimit    = 100
)

// Settings are the effective values for one conversation turn.
type Settings struct {
	Provider         string
	Model            string
	APIKey           string
	URL              string
	SystemPrompt     string
	Disclaimer       string
	CharLimit        int
	MemoryWindow     int
	StreamingEnabled bool
}

// Overrides are the values set on the conversation itself, nil when
// unset. The API key is reported only as present or absent.
type Overrides struct {
	Provider         *string `json:"provider"`
	Model            *string `json:"model"`
	HasAPIKey        bool    `json:"has_api_key"`
	URL              *string `json:"custom_url"`
	SystemPrompt     *string `json:"system_prompt"`
	Disclaimer       *string `json:"disclaimer"`
	CharLimit        *int    `json:"char_limit"`
	MemoryWindow     *int    `json:"memory_window"`
	StreamingEnabled *bool   `json:"streaming_enabled"`
}

// ConfigResolver combines conversation overrides with the global store.
// Strict answers with the overrides only; Effective falls back to the
// global value for anything the conversation leaves unset.
type ConfigResolver struct {
	store  *ConfigStore
	sealer *auth.KeySealer
}

// NewConfigResolver creates a resolver over store. sealer opens stored API keys.
func NewConfigResolver(store *ConfigStore, sealer *auth.KeySealer) *ConfigResolver {
	return &ConfigResolver{store: store, sealer: sealer}
}

// Strict returns the conversation's own values without consulting the
// global configuration.
func (r *ConfigResolver) Strict(conv *repository.Conversation) Overrides {
	return Overrides{
		Provider:         conv.Provider,
		Model:            conv.Model,
		HasAPIKey:        setString(conv.APIKey),
		URL:              conv.CustomURL,
		SystemPrompt:     conv.SystemPrompt,
		Disclaimer:       conv.Disclaimer,
		CharLimit:        conv.CharLimit,
		MemoryWindow:     conv.MemoryWindow,
		StreamingEnabled: conv.StreamingEnabled,
	}
}

// Effective resolves every tunable for conv.
func (r *ConfigResolver) Effective(ctx context.Context, conv *repository.Conversation) (*Settings, error) {
	var s Settings
	var err error

	if s.Provider, err = r.stringSetting(ctx, conv.Provider, KeyProvider); err != nil {
		return nil, err
	}
	if s.Model, err = r.stringSetting(ctx, conv.Model, KeyModel); err != nil {
		return nil, err
	}
	if s.URL, err = r.stringSetting(ctx, conv.CustomURL, KeyURL); err != nil {
		return nil, err
	}
	if s.SystemPrompt, err = r.stringSetting(ctx, conv.SystemPrompt, KeySystemPrompt); err != nil {
		return nil, err
	}
	if s.Disclaimer, err = r.stringSetting(ctx, conv.Disclaimer, KeyDisclaimer); err != nil {
		return nil, err
	}
	if s.CharLimit, err = r.intSetting(ctx, conv.CharLimit, KeyCharLimit, DefaultCharLimit); err != nil {
		return nil, err
	}
	if s.MemoryWindow, err = r.intSetting(ctx, conv.MemoryWindow, KeyMemoryWindow, DefaultMemoryWindow); err != nil {
		return nil, err
	}
	if s.StreamingEnabled, err = r.boolSetting(ctx, conv.StreamingEnabled, KeyStreamingEnabled); err != nil {
		return nil, err
	}
	if s.APIKey, err = r.apiKey(ctx, conv); err != nil {
		return nil, err
	}

	return &s, nil
}

// apiKey prefers the conversation's own key. The global key is used only
// when the administrator allows it.
func (r *ConfigResolver) apiKey(ctx context.Context, conv *repository.Conversation) (string, error) {
	stored := ""
	if setString(conv.APIKey) {
		stored = *conv.APIKey
	} else {
		useGlobal, err := r.store.GetBool(ctx, KeyUseGlobalAPIKey)
		if err != nil {
			return "", err
		}
		if !useGlobal {
			return "", nil
		}
		if stored, err = r.store.GetString(ctx, KeyGlobalAPIKey); err != nil {
			return "", err
		}
	}

	key, err := r.sealer.Open(stored)
	if err != nil {
		return "", fmt.Errorf("failed to open api key: %w", err)
	}
	return key, nil
}

func (r *ConfigResolver) stringSetting(ctx context.Context, override *string, key string) (string, error) {
	if setString(override) {
		return *override, nil
	}
	return r.store.GetString(ctx, key)
}

// intSetting treats a zero override as unset, then falls back to the
// global value and finally to def.
func (r *ConfigResolver) intSetting(ctx context.Context, override *int, key string, def int) (int, error) {
	if override != nil && *override != 0 {
		return *override, nil
	}
	value, err := r.store.GetInt(ctx, key)
	if err != nil {
		return 0, err
	}
	if value == 0 {
		return def, nil
	}
	return value, nil
}

func (r *ConfigResolver) boolSetting(ctx context.Context, override *bool, key string) (bool, error) {
	if override != nil {
		return *override, nil
	}
	return r.store.GetBool(ctx, key)
}

func setString(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}

package services

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/agentx/aichat/internal/auth"
	"github.com/agentx/aichat/internal/models"
	"github.com/agentx/aichat/internal/providers"
)

// settingKinds lists the editable global settings and the JSON type each
// accepts.
var settingKinds = map[string]string{
	KeyProvider:         "string",
	KeyModel:            "string",
	KeyURL:              "string",
	KeyGlobalAPIKey:     "string",
	KeyUseGlobalAPIKey:  "bool",
	KeySystemPrompt:     "string",
	KeyCharLimit:        "int",
	KeyMemoryWindow:     "int",
	KeyDisclaimer:       "string",
	KeyStreamingEnabled: "bool",
}

// ConfigService manages the global settings edited by administrators
type ConfigService struct {
	store    *ConfigStore
	sealer   *auth.KeySealer
	registry *providers.Registry
	logger   *logrus.Logger
}

// NewConfigService creates a new config service
func NewConfigService(store *ConfigStore, sealer *auth.KeySealer, registry *providers.Registry, logger *logrus.Logger) *ConfigService {
	return &ConfigService{
		store:    store,
		sealer:   sealer,
		registry: registry,
		logger:   logger,
	}
}

// GetSettings returns the current settings. The global API key is masked
// and unset numeric or boolean settings are reported as null, so the
// result can be sent back to UpdateSettings unchanged.
func (s *ConfigService) GetSettings(ctx context.Context) (map[string]interface{}, error) {
	settings := s.store.All()
	for key, kind := range settingKinds {
		value, ok := settings[key]
		if !ok {
			var err error
			if value, err = s.store.Get(ctx, key); err != nil {
				return nil, models.NewPersistenceError("failed to load settings", err)
			}
		}
		if kind != "string" && configString(value) == "" {
			value = nil
		}
		settings[key] = value
	}

	if stored := configString(settings[KeyGlobalAPIKey]); stored != "" {
		key, err := s.sealer.Open(stored)
		if err != nil {
			key = ""
		}
		settings[KeyGlobalAPIKey] = auth.MaskAPIKey(key)
	}

	return settings, nil
}

// UpdateSettings validates and stores settings. Unknown keys are
// rejected before anything is written. null or "" clears a setting. A
// masked global API key as returned by GetSettings leaves the stored key
// alone.
func (s *ConfigService) UpdateSettings(ctx context.Context, settings map[string]interface{}) error {
	keys := make([]string, 0, len(settings))
	for key, value := range settings {
		if key == KeyGlobalAPIKey && auth.IsMasked(configString(value)) {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	normalized := make(map[string]interface{}, len(settings))
	for _, key := range keys {
		value, err := s.normalize(key, settings[key])
		if err != nil {
			return err
		}
		normalized[key] = value
	}

	for _, key := range keys {
		s.store.Set(key, normalized[key])
	}

	if err := s.store.Save(ctx); err != nil {
		return models.NewPersistenceError("failed to save settings", err)
	}

	s.logger.WithField("keys", strings.Join(keys, ",")).Info("Settings updated")
	return nil
}

// ResetSetting removes a stored setting so the built-in default applies
func (s *ConfigService) ResetSetting(ctx context.Context, key string) error {
	if _, ok := settingKinds[key]; !ok {
		return models.NewNotFoundError("unknown setting %q", key)
	}
	if err := s.store.Delete(ctx, key); err != nil {
		return models.NewPersistenceError("failed to reset setting", err)
	}

	s.logger.WithField("key", key).Info("Setting reset")
	return nil
}

// GetSetting returns a specific setting
func (s *ConfigService) GetSetting(ctx context.Context, key string) (interface{}, error) {
	if _, ok := settingKinds[key]; !ok {
		return nil, models.NewNotFoundError("unknown setting %q", key)
	}
	return s.store.Get(ctx, key)
}

// ListModels asks a provider for its models using the global settings
func (s *ConfigService) ListModels(ctx context.Context, providerID string) ([]providers.Model, error) {
	provider, err := s.registry.Resolve(providerID)
	if err != nil {
		return nil, models.NewNotFoundError("unknown provider %q", providerID)
	}

	stored, err := s.store.GetString(ctx, KeyGlobalAPIKey)
	if err != nil {
		return nil, models.NewPersistenceError("failed to load settings", err)
	}
	apiKey, err := s.sealer.Open(stored)
	if err != nil {
		return nil, fmt.Errorf("failed to open api key: %w", err)
	}
	model, err := s.store.GetString(ctx, KeyModel)
	if err != nil {
		return nil, models.NewPersistenceError("failed to load settings", err)
	}
	url, err := s.store.GetString(ctx, KeyURL)
	if err != nil {
		return nil, models.NewPersistenceError("failed to load settings", err)
	}

	return provider.Models(ctx, providers.Request{Model: model, APIKey: apiKey, URL: url})
}

// Providers describes the registered providers
func (s *ConfigService) Providers() []providers.Capabilities {
	return s.registry.Describe()
}

func (s *ConfigService) normalize(key string, value interface{}) (interface{}, error) {
	kind, ok := settingKinds[key]
	if !ok {
		return nil, models.NewValidationError("unknown setting %q", key)
	}

	if value == nil || value == "" {
		return "", nil
	}

	switch kind {
	case "bool":
		switch v := value.(type) {
		case bool:
			return v, nil
		case float64:
			return v != 0, nil
		}
		return nil, models.NewValidationError("%s must be a boolean", key)
	case "int":
		v, ok := value.(float64)
		if !ok || v < 0 || v != float64(int(v)) {
			return nil, models.NewValidationError("%s must be a non-negative integer", key)
		}
		return int(v), nil
	}

	str, ok := value.(string)
	if !ok {
		return nil, models.NewValidationError("%s must be a string", key)
	}
	switch key {
	case KeyProvider:
		if str != "" && !s.registry.Has(str) {
			return nil, models.NewValidationError("unknown provider %q", str)
		}
	case KeyGlobalAPIKey:
		sealed, err := s.sealer.Seal(str)
		if err != nil {
			return nil, err
		}
		return sealed, nil
	}
	return str, nil
}

// ParseSetting converts a command line value to the form UpdateSettings
// accepts for key.
func ParseSetting(key, raw string) (interface{}, error) {
	switch settingKinds[key] {
	case "bool":
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, models.NewValidationError("%s must be a boolean", key)
		}
		return v, nil
	case "int":
		v, err := strconv.Atoi(raw)
		if err != nil {
			return nil, models.NewValidationError("%s must be an integer", key)
		}
		return float64(v), nil
	}
	return raw, nil
}

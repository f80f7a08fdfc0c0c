package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/agentx/aichat/internal/repository"
)

// Global setting keys.
const (
	KeyProvider         = "llm_provider"
	KeyModel            = "llm_model"
	KeyURL              = "llm_url"
	KeyGlobalAPIKey     = "global_api_key"
	KeyUseGlobalAPIKey  = "use_global_api_key"
	KeySystemPrompt     = "prompt_selection"
	KeyCharLimit        = "characters_limit"
	KeyMemoryWindow     = "n_memory_messages"
	KeyDisclaimer       = "disclaimer_text"
	KeyStreamingEnabled = "streaming_enabled"
)

// ConfigStore caches the global key/value settings. Values read from
// storage are JSON-decoded when they parse as JSON and kept as strings
// otherwise. Writes are buffered until Save.
type ConfigStore struct {
	repo   repository.ConfigRepository
	logger *logrus.Logger

	mu     sync.Mutex
	values map[string]interface{}
	dirty  map[string]bool
}

// NewConfigStore creates an empty store backed by repo
func NewConfigStore(repo repository.ConfigRepository, logger *logrus.Logger) *ConfigStore {
	return &ConfigStore{
		repo:   repo,
		logger: logger,
		values: make(map[string]interface{}),
		dirty:  make(map[string]bool),
	}
}

// Load replaces the cache with every persisted row.
func (s *ConfigStore) Load(ctx context.Context) error {
	rows, err := s.repo.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for name, raw := range rows {
		s.values[name] = decodeConfigValue(raw)
	}

	return nil
}

// Get returns the value for key, reading through to storage on a cache
// miss. A key that was never set yields "".
func (s *ConfigStore) Get(ctx context.Context, key string) (interface{}, error) {
	s.mu.Lock()
	value, ok := s.values[key]
	s.mu.Unlock()
	if ok {
		return value, nil
	}

	raw, found, err := s.repo.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", key, err)
	}
	if !found {
		return "", nil
	}

	value = decodeConfigValue(raw)

	s.mu.Lock()
	// A concurrent Set wins over the stored row.
	if current, ok := s.values[key]; ok {
		value = current
	} else {
		s.values[key] = value
	}
	s.mu.Unlock()

	return value, nil
}

// GetString returns the value for key rendered as a string.
func (s *ConfigStore) GetString(ctx context.Context, key string) (string, error) {
	value, err := s.Get(ctx, key)
	if err != nil {
		return "", err
	}
	return configString(value), nil
}

// GetInt returns the value for key as an integer, 0 when unset or not numeric.
func (s *ConfigStore) GetInt(ctx context.Context, key string) (int, error) {
	value, err := s.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	return configInt(value), nil
}

// GetBool returns the value for key as a boolean.
func (s *ConfigStore) GetBool(ctx context.Context, key string) (bool, error) {
	value, err := s.Get(ctx, key)
	if err != nil {
		return false, err
	}
	return configBool(value), nil
}

// Set updates the cached value. Booleans are stored as 0/1. The key is
// only marked dirty when the value actually changes.
func (s *ConfigStore) Set(key string, value interface{}) {
	if b, ok := value.(bool); ok {
		if b {
			value = 1
		} else {
			value = 0
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := s.values[key]; ok && sameConfigValue(current, value) {
		return
	}

	s.values[key] = value
	s.dirty[key] = true
}

// Save upserts every dirty key. A failing key does not stop the others;
// the failures are returned together and those keys stay dirty.
func (s *ConfigStore) Save(ctx context.Context) error {
	s.mu.Lock()
	pending := make(map[string]interface{}, len(s.dirty))
	for key := range s.dirty {
		pending[key] = s.values[key]
	}
	s.mu.Unlock()

	keys := make([]string, 0, len(pending))
	for key := range pending {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var errs []error
	for _, key := range keys {
		raw, err := encodeConfigValue(pending[key])
		if err == nil {
			err = s.repo.Upsert(ctx, key, raw)
		}
		if err != nil {
			s.logger.WithError(err).WithField("key", key).Error("Failed to save config value")
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			continue
		}

		s.mu.Lock()
		// Only clear the flag if nobody changed the value meanwhile.
		if sameConfigValue(s.values[key], pending[key]) {
			delete(s.dirty, key)
		}
		s.mu.Unlock()
	}

	return errors.Join(errs...)
}

// Delete removes key from storage and the cache. Unsaved changes to key
// are dropped.
func (s *ConfigStore) Delete(ctx context.Context, key string) error {
	if err := s.repo.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to delete config %s: %w", key, err)
	}

	s.mu.Lock()
	delete(s.values, key)
	delete(s.dirty, key)
	s.mu.Unlock()

	return nil
}

// All returns a copy of the cached settings.
func (s *ConfigStore) All() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]interface{}, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Dirty reports whether key has unsaved changes.
func (s *ConfigStore) Dirty(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty[key]
}

func decodeConfigValue(raw string) interface{} {
	if raw == "" {
		return ""
	}
	var decoded interface{}
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil || decoded == nil {
		return raw
	}
	return decoded
}

func encodeConfigValue(value interface{}) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("failed to encode value: %w", err)
		}
		return string(encoded), nil
	}
}

// sameConfigValue compares values by their stored form, so 5 and 5.0
// decoded from JSON are equal.
func sameConfigValue(a, b interface{}) bool {
	ea, errA := encodeConfigValue(a)
	eb, errB := encodeConfigValue(b)
	if errA != nil || errB != nil {
		return false
	}
	return ea == eb
}

func configString(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		encoded, err := encodeConfigValue(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return encoded
	}
}

func configInt(value interface{}) int {
	switch v := value.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case bool:
		if v {
			return 1
		}
		return 0
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

func configBool(value interface{}) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		return err == nil && b
	default:
		return configInt(v) != 0
	}
}

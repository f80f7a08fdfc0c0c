package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentx/aichat/internal/auth"
	"github.com/agentx/aichat/internal/repository"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
func boolPtr(b bool) *bool    { return &b }

func newResolver(t *testing.T, global map[string]string) *ConfigResolver {
	t.Helper()
	store := NewConfigStore(newFakeConfigRepo(global), testLogger())
	require.NoError(t, store.Load(context.Background()))
	return NewConfigResolver(store, auth.NewKeySealer("test-secret"))
}

func TestConfigResolver_FallsBackToGlobal(t *testing.T) {
	r := newResolver(t, map[string]string{
		KeyProvider:         "openai",
		KeyModel:            "gpt-4o-mini",
		KeySystemPrompt:     "You are helpful.",
		KeyDisclaimer:       "Answers may be wrong.",
		KeyCharLimit:        "500",
		KeyMemoryWindow:     "10",
		KeyStreamingEnabled: "1",
	})

	conv := &repository.Conversation{ID: "1", Model: strPtr("gpt-4o")}
	s, err := r.Effective(context.Background(), conv)
	require.NoError(t, err)

	assert.Equal(t, "openai", s.Provider)
	assert.Equal(t, "gpt-4o", s.Model)
	assert.Equal(t, "You are helpful.", s.SystemPrompt)
	assert.Equal(t, "Answers may be wrong.", s.Disclaimer)
	assert.Equal(t, 500, s.CharLimit)
	assert.Equal(t, 10, s.MemoryWindow)
	assert.True(t, s.StreamingEnabled)
}

func TestConfigResolver_StrictNeverReadsGlobal(t *testing.T) {
	r := newResolver(t, map[string]string{KeyModel: "global-model", KeyDisclaimer: "global"})

	conv := &repository.Conversation{ID: "1", Disclaimer: strPtr("mine")}
	o := r.Strict(conv)
	assert.Nil(t, o.Model)
	assert.Equal(t, "mine", *o.Disclaimer)
	assert.False(t, o.HasAPIKey)
	assert.Nil(t, o.StreamingEnabled)
}

func TestConfigResolver_ExplicitFalseIsNotUnset(t *testing.T) {
	r := newResolver(t, map[string]string{KeyStreamingEnabled: "1"})

	s, err := r.Effective(context.Background(), &repository.Conversation{StreamingEnabled: boolPtr(false)})
	require.NoError(t, err)
	assert.False(t, s.StreamingEnabled)

	s, err = r.Effective(context.Background(), &repository.Conversation{})
	require.NoError(t, err)
	assert.True(t, s.StreamingEnabled)
}

func TestConfigResolver_HardDefaults(t *testing.T) {
	tests := []struct {
		name       string
		global     map[string]string
		conv       repository.Conversation
		wantWindow int
		wantLimit  int
	}{
		{"nothing set", nil, repository.Conversation{}, 5, 100},
		{"zero everywhere", map[string]string{KeyMemoryWindow: "0", KeyCharLimit: "0"}, repository.Conversation{MemoryWindow: intPtr(0), CharLimit: intPtr(0)}, 5, 100},
		{"global only", map[string]string{KeyMemoryWindow: "3", KeyCharLimit: "50"}, repository.Conversation{}, 3, 50},
		{"override wins", map[string]string{KeyMemoryWindow: "3"}, repository.Conversation{MemoryWindow: intPtr(8), CharLimit: intPtr(2000)}, 8, 2000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newResolver(t, tt.global)
			conv := tt.conv
			s, err := r.Effective(context.Background(), &conv)
			require.NoError(t, err)
			assert.Equal(t, tt.wantWindow, s.MemoryWindow)
			assert.Equal(t, tt.wantLimit, s.CharLimit)
		})
	}
}

func TestConfigResolver_BlankStringOverrideDefers(t *testing.T) {
	r := newResolver(t, map[string]string{KeySystemPrompt: "global prompt"})

	s, err := r.Effective(context.Background(), &repository.Conversation{SystemPrompt: strPtr("   ")})
	require.NoError(t, err)
	assert.Equal(t, "global prompt", s.SystemPrompt)
}

func TestConfigResolver_APIKeyPolicy(t *testing.T) {
	sealer := auth.NewKeySealer("test-secret")
	sealedGlobal, err := sealer.Seal("sk-global")
	require.NoError(t, err)
	sealedOwn, err := sealer.Seal("sk-own")
	require.NoError(t, err)

	tests := []struct {
		name   string
		global map[string]string
		conv   repository.Conversation
		want   string
	}{
		{"own key wins", map[string]string{KeyGlobalAPIKey: sealedGlobal, KeyUseGlobalAPIKey: "1"}, repository.Conversation{APIKey: &sealedOwn}, "sk-own"},
		{"global when allowed", map[string]string{KeyGlobalAPIKey: sealedGlobal, KeyUseGlobalAPIKey: "1"}, repository.Conversation{}, "sk-global"},
		{"global not allowed", map[string]string{KeyGlobalAPIKey: sealedGlobal}, repository.Conversation{}, ""},
		{"plain stored key", map[string]string{KeyGlobalAPIKey: "sk-plain", KeyUseGlobalAPIKey: "1"}, repository.Conversation{}, "sk-plain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newResolver(t, tt.global)
			conv := tt.conv
			s, err := r.Effective(context.Background(), &conv)
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.APIKey)
		})
	}

	o := newResolver(t, nil).Strict(&repository.Conversation{APIKey: &sealedOwn})
	assert.True(t, o.HasAPIKey)
}

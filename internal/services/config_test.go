package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentx/aichat/internal/auth"
	"github.com/agentx/aichat/internal/models"
)

func TestConfigService_UpdateAndGet(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	err := h.config.UpdateSettings(ctx, map[string]interface{}{
		KeyStreamingEnabled: true,
		KeyMemoryWindow:     float64(8),
		KeyDisclaimer:       "Be careful",
		KeyGlobalAPIKey:     "sk-global-1234",
	})
	require.NoError(t, err)

	settings, err := h.config.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, settings[KeyStreamingEnabled])
	assert.Equal(t, 8, settings[KeyMemoryWindow])
	assert.Equal(t, "Be careful", settings[KeyDisclaimer])
	assert.Equal(t, "****1234", settings[KeyGlobalAPIKey])
	assert.Contains(t, settings, KeyURL, "unset keys are listed too")

	stored, err := h.store.GetString(ctx, KeyGlobalAPIKey)
	require.NoError(t, err)
	assert.Contains(t, stored, auth.SealedPrefix)

	value, err := h.config.GetSetting(ctx, KeyDisclaimer)
	require.NoError(t, err)
	assert.Equal(t, "Be careful", value)
}

func TestConfigService_SettingsRoundTrip(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.config.UpdateSettings(ctx, map[string]interface{}{
		KeyGlobalAPIKey: "sk-global-1234",
	}))

	settings, err := h.config.GetSettings(ctx)
	require.NoError(t, err)
	assert.Nil(t, settings[KeyMemoryWindow], "unset numbers are null")
	assert.Nil(t, settings[KeyUseGlobalAPIKey], "unset flags are null")

	// Send the form back the way an admin client would.
	data, err := json.Marshal(settings)
	require.NoError(t, err)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &body))
	require.NoError(t, h.config.UpdateSettings(ctx, body))

	stored, err := h.store.GetString(ctx, KeyGlobalAPIKey)
	require.NoError(t, err)
	key, err := auth.NewKeySealer("seal-secret").Open(stored)
	require.NoError(t, err)
	assert.Equal(t, "sk-global-1234", key)

	window, err := h.store.GetInt(ctx, KeyMemoryWindow)
	require.NoError(t, err)
	assert.Equal(t, 0, window)
	limit, err := h.store.GetInt(ctx, KeyCharLimit)
	require.NoError(t, err)
	assert.Equal(t, 500, limit)
}

func TestConfigService_ClearAndReset(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.config.UpdateSettings(ctx, map[string]interface{}{
		KeyCharLimit:    nil,
		KeyGlobalAPIKey: "",
	}))
	limit, err := h.store.GetString(ctx, KeyCharLimit)
	require.NoError(t, err)
	assert.Empty(t, limit)
	apiKey, err := h.store.GetString(ctx, KeyGlobalAPIKey)
	require.NoError(t, err)
	assert.Empty(t, apiKey)

	require.NoError(t, h.config.ResetSetting(ctx, KeyModel))
	model, err := h.config.GetSetting(ctx, KeyModel)
	require.NoError(t, err)
	assert.Equal(t, "", model)

	// Reloading does not bring the row back.
	require.NoError(t, h.store.Load(ctx))
	model, err = h.store.Get(ctx, KeyModel)
	require.NoError(t, err)
	assert.Equal(t, "", model)

	err = h.config.ResetSetting(ctx, "colour")
	assert.True(t, models.IsKind(err, models.KindNotFound))
}

func TestConfigService_RejectsInvalidSettings(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		settings map[string]interface{}
	}{
		{"unknown key", map[string]interface{}{"colour": "blue"}},
		{"unknown provider", map[string]interface{}{KeyProvider: "nonexistent"}},
		{"negative window", map[string]interface{}{KeyMemoryWindow: float64(-1)}},
		{"fractional limit", map[string]interface{}{KeyCharLimit: 1.5}},
		{"string bool", map[string]interface{}{KeyStreamingEnabled: "yes"}},
		{"numeric prompt", map[string]interface{}{KeySystemPrompt: float64(3)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.config.UpdateSettings(ctx, tt.settings)
			assert.True(t, models.IsKind(err, models.KindValidation), "got %v", err)
		})
	}

	// A rejected batch writes nothing.
	err := h.config.UpdateSettings(ctx, map[string]interface{}{
		KeyDisclaimer: "partial",
		"colour":      "blue",
	})
	assert.Error(t, err)
	disclaimer, err := h.store.GetString(ctx, KeyDisclaimer)
	require.NoError(t, err)
	assert.Empty(t, disclaimer)

	_, err = h.config.GetSetting(ctx, "colour")
	assert.True(t, models.IsKind(err, models.KindNotFound))
}

func TestConfigService_ListModels(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	list, err := h.config.ListModels(ctx, "fake")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "test-model", list[0].ID)

	_, err = h.config.ListModels(ctx, "nonexistent")
	assert.True(t, models.IsKind(err, models.KindNotFound))

	caps := h.config.Providers()
	require.Len(t, caps, 1)
	assert.Equal(t, "fake", caps[0].ID)
}

func TestParseSetting(t *testing.T) {
	tests := []struct {
		key     string
		raw     string
		want    interface{}
		wantErr bool
	}{
		{KeyStreamingEnabled, "true", true, false},
		{KeyStreamingEnabled, "maybe", nil, true},
		{KeyCharLimit, "250", float64(250), false},
		{KeyCharLimit, "lots", nil, true},
		{KeyModel, "gpt-4o", "gpt-4o", false},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.raw, func(t *testing.T) {
			got, err := ParseSetting(tt.key, tt.raw)
			if tt.wantErr {
				assert.True(t, models.IsKind(err, models.KindValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

package openai

import (
	"context"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/agentx/aichat/internal/models"
	"github.com/agentx/aichat/internal/providers"
)

const (
	// ID is the registry identifier of this provider
	ID = "openai"
	// DefaultBaseURL is the OpenAI API root
	DefaultBaseURL = "https://api.openai.com/v1"
)

// Provider implements the OpenAI provider. Completions go straight to
// the chat completions endpoint so raw stream chunks can be relayed
// unchanged; model listing uses the go-openai client.
type Provider struct {
	baseURL string
	client  *http.Client
}

// NewProvider creates a new OpenAI provider. An empty baseURL selects
// the public API.
func NewProvider(baseURL string, client *http.Client) *Provider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &Provider{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
	}
}

// Name returns the provider name
func (p *Provider) Name() string {
	return ID
}

// Endpoint returns the chat completions URL
func (p *Provider) Endpoint() string {
	return p.baseURL + "/chat/completions"
}

// SupportsStreaming reports true: OpenAI streams server-sent events
func (p *Provider) SupportsStreaming() bool {
	return true
}

// Send performs a non-streaming completion
func (p *Provider) Send(ctx context.Context, req providers.Request) (string, error) {
	if err := validate(req); err != nil {
		return "", err
	}

	resp, err := providers.PostChat(ctx, p.client, p.Endpoint(), req.APIKey, providers.NewChatRequest(req, false))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	return providers.DecodeCompletion(resp.Body)
}

// Stream performs a streaming completion, relaying raw chunks to sink
func (p *Provider) Stream(ctx context.Context, req providers.Request, sink providers.ChunkSink) (string, error) {
	if err := validate(req); err != nil {
		return "", err
	}

	resp, err := providers.PostChat(ctx, p.client, p.Endpoint(), req.APIKey, providers.NewChatRequest(req, true))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	return providers.RelayStream(ctx, resp.Body, sink)
}

// Models returns available models
func (p *Provider) Models(ctx context.Context, req providers.Request) ([]providers.Model, error) {
	if req.APIKey == "" {
		return nil, models.NewAuthError("no API key configured for " + ID)
	}

	cfg := openai.DefaultConfig(req.APIKey)
	cfg.BaseURL = p.baseURL
	cfg.HTTPClient = p.client

	modelList, err := openai.NewClientWithConfig(cfg).ListModels(ctx)
	if err != nil {
		return nil, providers.ClientError(err)
	}

	result := make([]providers.Model, len(modelList.Models))
	for i, m := range modelList.Models {
		result[i] = providers.Model{
			ID:      m.ID,
			Object:  m.Object,
			OwnedBy: m.OwnedBy,
		}
	}

	return result, nil
}

func validate(req providers.Request) error {
	if req.Model == "" {
		return models.NewConfigurationError("no model configured")
	}
	if req.APIKey == "" {
		return models.NewAuthError("no API key configured for " + ID)
	}
	return nil
}

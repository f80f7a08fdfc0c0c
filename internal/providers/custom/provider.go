package custom

import (
	"context"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/agentx/aichat/internal/models"
	"github.com/agentx/aichat/internal/providers"
)

// ID is the registry identifier of this provider
const ID = "custom"

const completionsSuffix = "/chat/completions"

// Provider talks to an operator supplied OpenAI-compatible endpoint. The
// request URL is the full chat completions URL. Streaming is not
// supported; Stream answers synchronously.
type Provider struct {
	client *http.Client
}

// NewProvider creates a new custom endpoint provider
func NewProvider(client *http.Client) *Provider {
	if client == nil {
		client = http.DefaultClient
	}
	return &Provider{client: client}
}

// Name returns the provider name
func (p *Provider) Name() string {
	return ID
}

// SupportsStreaming reports false
func (p *Provider) SupportsStreaming() bool {
	return false
}

// Send performs a completion against req.URL. The API key is optional
// since local model servers rarely require one.
func (p *Provider) Send(ctx context.Context, req providers.Request) (string, error) {
	if req.URL == "" {
		return "", models.NewConfigurationError("no URL configured for the custom provider")
	}
	if req.Model == "" {
		return "", models.NewConfigurationError("no model configured")
	}

	resp, err := providers.PostChat(ctx, p.client, req.URL, req.APIKey, providers.NewChatRequest(req, false))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	return providers.DecodeCompletion(resp.Body)
}

// Stream falls back to Send without calling sink
func (p *Provider) Stream(ctx context.Context, req providers.Request, sink providers.ChunkSink) (string, error) {
	return p.Send(ctx, req)
}

// Models lists models from the endpoint's /models sibling when the URL
// follows the OpenAI layout, and otherwise reports the configured model.
func (p *Provider) Models(ctx context.Context, req providers.Request) ([]providers.Model, error) {
	if !strings.HasSuffix(req.URL, completionsSuffix) {
		if req.Model == "" {
			return []providers.Model{}, nil
		}
		return []providers.Model{{ID: req.Model}}, nil
	}

	cfg := openai.DefaultConfig(req.APIKey)
	cfg.BaseURL = strings.TrimSuffix(req.URL, completionsSuffix)
	cfg.HTTPClient = p.client

	modelList, err := openai.NewClientWithConfig(cfg).ListModels(ctx)
	if err != nil {
		return nil, providers.ClientError(err)
	}

	result := make([]providers.Model, len(modelList.Models))
	for i, m := range modelList.Models {
		result[i] = providers.Model{ID: m.ID, Object: m.Object, OwnedBy: m.OwnedBy}
	}
	return result, nil
}

// Capabilities reports a synchronous provider with an operator URL and
// an optional API key
func (p *Provider) Capabilities() providers.Capabilities {
	return providers.Capabilities{ID: ID, CustomURL: true}
}

package providers

import (
	"context"
)

// Provider defines the interface for all LLM providers
type Provider interface {
	// Name returns the provider identifier
	Name() string

	// Send performs a non-streaming completion and returns the reply text
	Send(ctx context.Context, req Request) (string, error)

	// Stream performs a streaming completion. Every raw network chunk is
	// passed to sink as it arrives; the assembled reply text is returned
	// when the stream ends. Providers without streaming support fall back
	// to Send and never call sink.
	Stream(ctx context.Context, req Request, sink ChunkSink) (string, error)

	// SupportsStreaming reports whether Stream relays chunks
	SupportsStreaming() bool

	// Models returns the models available with the request's credentials
	Models(ctx context.Context, req Request) ([]Model, error)
}

// ChunkSink receives raw upstream chunks. Returning an error aborts the
// stream, which is how a disconnected client stops the upstream request.
type ChunkSink func(chunk []byte) error

// Request is the provider-neutral completion request
type Request struct {
	Messages []Message
	Model    string
	APIKey   string
	// URL is the operator supplied endpoint for the custom provider
	URL string
}

// Message represents a chat message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Model represents an available model
type Model struct {
	ID      string `json:"id"`
	Object  string `json:"object,omitempty"`
	OwnedBy string `json:"owned_by,omitempty"`
}

// Temperature is sent with every completion request.
const Temperature = 0.5

// ChatRequest is the wire payload for chat completions
type ChatRequest struct {
	Messages    []Message `json:"messages"`
	Model       string    `json:"model"`
	Temperature float64   `json:"temperature"`
	Stream      bool      `json:"stream"`
}

func NewChatRequest(req Request, stream bool) ChatRequest {
	messages := req.Messages
	if messages == nil {
		messages = []Message{}
	}
	return ChatRequest{
		Messages:    messages,
		Model:       req.Model,
		Temperature: Temperature,
		Stream:      stream,
	}
}

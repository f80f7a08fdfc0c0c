package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/agentx/aichat/internal/models"
)

// NewHTTPClient builds the client shared by all providers. proxyURL, when
// set, routes every upstream request through the host's proxy. timeout
// bounds the wait for response headers only, so long streams are limited
// by the request context instead.
func NewHTTPClient(proxyURL string, timeout time.Duration) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = timeout

	if proxyURL != "" {
		parsed, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url %q: %w", proxyURL, err)
		}
		transport.Proxy = http.ProxyURL(parsed)
	}

	return &http.Client{Transport: transport}, nil
}

// PostChat sends a chat completion request and classifies the outcome.
// On success the caller owns the response body.
func PostChat(ctx context.Context, client *http.Client, endpoint, apiKey string, payload ChatRequest) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, models.NewConfigurationError("invalid provider url %q: %v", endpoint, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	}
	if payload.Stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, models.NewTransportError("failed to reach the LLM provider", err)
	}

	if err := classifyStatus(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}

	return resp, nil
}

// classifyStatus maps a non-200 response to an auth or provider error.
func classifyStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}

	detail := upstreamMessage(resp.Body)

	if resp.StatusCode == http.StatusUnauthorized {
		return models.NewAuthError("the API key is invalid or missing")
	}

	msg := fmt.Sprintf("the LLM provider returned HTTP %d", resp.StatusCode)
	if detail != "" {
		msg += ": " + detail
	}
	return models.NewProviderError(resp.StatusCode, msg)
}

// upstreamMessage extracts error.message from an OpenAI style error body.
func upstreamMessage(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var envelope openai.ErrorResponse
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error != nil {
		return envelope.Error.Message
	}
	return ""
}

// DecodeCompletion returns choices[0].message.content, or "" when the
// body does not contain it.
func DecodeCompletion(body io.Reader) (string, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return "", models.NewTransportError("failed to read provider response", err)
	}

	var resp openai.ChatCompletionResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", nil
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// RelayStream copies the event stream to sink chunk by chunk while the
// assembler accumulates the reply.
func RelayStream(ctx context.Context, body io.Reader, sink ChunkSink) (string, error) {
	assembler := NewStreamAssembler()
	buf := make([]byte, 4096)

	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])

			assembler.Write(chunk)
			if sink != nil {
				if err := sink(chunk); err != nil {
					return "", err
				}
			}
		}

		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			return "", models.NewTransportError("provider stream interrupted", readErr)
		}
	}

	assembler.Close()
	return assembler.Text(), nil
}

// ClientError converts go-openai client errors to the engine taxonomy.
func ClientError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusUnauthorized {
			return models.NewAuthError("the API key is invalid or missing")
		}
		return models.NewProviderError(apiErr.HTTPStatusCode, apiErr.Message)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == http.StatusUnauthorized {
			return models.NewAuthError("the API key is invalid or missing")
		}
		return models.NewProviderError(reqErr.HTTPStatusCode, reqErr.Error())
	}

	return models.NewTransportError("failed to reach the LLM provider", err)
}

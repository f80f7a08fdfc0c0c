package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentx/aichat/internal/models"
	"github.com/agentx/aichat/internal/providers"
)

var streamChunks = []string{
	"data: {\"choices\":[{\"delta\":{\"content\":\"Hello\"}}]}\n\n",
	"data: {\"choices\":[{\"delta\":{\"content\":\", \"}}]}\n\n",
	"data: {\"choices\":[{\"delta\":{\"content\":\"world\"}}]}\n\ndata: [DONE]\n\n",
}

// fakeUpstream serves chat completions the way the OpenAI API does and
// records the last payload it received.
type fakeUpstream struct {
	server  *httptest.Server
	payload providers.ChatRequest
	auth    string
}

func newFakeUpstream(t *testing.T) *fakeUpstream {
	f := &fakeUpstream{}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/chat/completions":
			f.auth = r.Header.Get("Authorization")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&f.payload))

			if f.auth != "Bearer sk-valid" {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":{"message":"Incorrect API key provided"}}`))
				return
			}
			if f.payload.Stream {
				w.Header().Set("Content-Type", "text/event-stream")
				for _, chunk := range streamChunks {
					w.Write([]byte(chunk))
					w.(http.Flusher).Flush()
				}
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Hello, world"}}]}`))
		case "/models":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"object":"list","data":[{"id":"gpt-4o","object":"model","owned_by":"openai"},{"id":"gpt-4o-mini","object":"model","owned_by":"openai"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(f.server.Close)
	return f
}

func request(key string) providers.Request {
	return providers.Request{
		Messages: []providers.Message{
			{Role: "system", Content: "Be brief"},
			{Role: "user", Content: "Hi"},
		},
		Model:  "gpt-4o",
		APIKey: key,
	}
}

func TestProvider_SendAndStreamAgree(t *testing.T) {
	upstream := newFakeUpstream(t)
	p := NewProvider(upstream.server.URL, upstream.server.Client())

	sent, err := p.Send(context.Background(), request("sk-valid"))
	require.NoError(t, err)
	assert.False(t, upstream.payload.Stream)

	var relayed strings.Builder
	streamed, err := p.Stream(context.Background(), request("sk-valid"), func(chunk []byte) error {
		relayed.Write(chunk)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, upstream.payload.Stream)

	assert.Equal(t, "Hello, world", sent)
	assert.Equal(t, sent, streamed)
	assert.Equal(t, strings.Join(streamChunks, ""), relayed.String())
}

func TestProvider_PayloadShape(t *testing.T) {
	upstream := newFakeUpstream(t)
	p := NewProvider(upstream.server.URL+"/", upstream.server.Client())

	_, err := p.Send(context.Background(), request("sk-valid"))
	require.NoError(t, err)

	assert.Equal(t, "Bearer sk-valid", upstream.auth)
	assert.Equal(t, "gpt-4o", upstream.payload.Model)
	assert.Equal(t, 0.5, upstream.payload.Temperature)
	require.Len(t, upstream.payload.Messages, 2)
	assert.Equal(t, providers.Message{Role: "system", Content: "Be brief"}, upstream.payload.Messages[0])
}

func TestProvider_InvalidKey(t *testing.T) {
	upstream := newFakeUpstream(t)
	p := NewProvider(upstream.server.URL, upstream.server.Client())

	_, err := p.Send(context.Background(), request("sk-wrong"))
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindAuth))
	assert.Contains(t, err.Error(), "Incorrect API key")

	called := false
	_, err = p.Stream(context.Background(), request("sk-wrong"), func([]byte) error {
		called = true
		return nil
	})
	assert.True(t, models.IsKind(err, models.KindAuth))
	assert.False(t, called)
}

func TestProvider_RequiresModelAndKey(t *testing.T) {
	p := NewProvider("http://127.0.0.1:1", nil)

	_, err := p.Send(context.Background(), request(""))
	assert.True(t, models.IsKind(err, models.KindAuth))

	req := request("sk-valid")
	req.Model = ""
	_, err = p.Send(context.Background(), req)
	assert.True(t, models.IsKind(err, models.KindConfiguration))
}

func TestProvider_Models(t *testing.T) {
	upstream := newFakeUpstream(t)
	p := NewProvider(upstream.server.URL, upstream.server.Client())

	list, err := p.Models(context.Background(), request("sk-valid"))
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "gpt-4o", list[0].ID)
	assert.Equal(t, "openai", list[0].OwnedBy)
}

func TestProvider_DefaultsToPublicAPI(t *testing.T) {
	p := NewProvider("", nil)
	assert.Equal(t, DefaultBaseURL+"/chat/completions", p.Endpoint())
	assert.True(t, p.SupportsStreaming())
	assert.Equal(t, ID, p.Name())
}

package factory

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentx/aichat/internal/config"
	"github.com/agentx/aichat/internal/providers"
	"github.com/agentx/aichat/internal/providers/custom"
	"github.com/agentx/aichat/internal/providers/openai"
)

func testConfig() *config.Config {
	return &config.Config{
		Providers: config.ProvidersConfig{
			Timeout:        5 * time.Second,
			OpenAIURL:      "http://upstream.invalid/v1",
			MetricsEnabled: true,
			CircuitBreaker: config.CircuitBreakerConfig{Enabled: true, FailureThreshold: 3},
		},
	}
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestBuildRegistry_RegistersProviders(t *testing.T) {
	result, err := BuildRegistry(testConfig(), testLogger())
	require.NoError(t, err)

	assert.Equal(t, []string{custom.ID, openai.ID}, result.Registry.List())
	assert.NotNil(t, result.Metrics)
	assert.NotNil(t, result.Breaker)

	caps := result.Registry.Describe()
	require.Len(t, caps, 2)
	assert.Equal(t, providers.Capabilities{ID: custom.ID, CustomURL: true}, caps[0])
	assert.Equal(t, providers.Capabilities{ID: openai.ID, Streaming: true, RequiresAPIKey: true}, caps[1])
}

func TestBuildRegistry_OptionalDecorators(t *testing.T) {
	cfg := testConfig()
	cfg.Providers.MetricsEnabled = false
	cfg.Providers.CircuitBreaker.Enabled = false

	result, err := BuildRegistry(cfg, testLogger())
	require.NoError(t, err)
	assert.Nil(t, result.Metrics)
	assert.Nil(t, result.Breaker)

	p, err := result.Registry.Resolve(openai.ID)
	require.NoError(t, err)
	assert.IsType(t, &openai.Provider{}, p)
}

func TestBuildRegistry_UsesProxy(t *testing.T) {
	var proxiedHost string
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		proxiedHost = r.Host
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"via proxy"}}]}`))
	}))
	defer proxy.Close()

	host, port, err := net.SplitHostPort(proxy.Listener.Addr().String())
	require.NoError(t, err)
	portNum, err := strconv.Atoi(port)
	require.NoError(t, err)

	cfg := testConfig()
	cfg.Proxy = config.ProxyConfig{Enabled: true, Host: host, Port: portNum}

	result, err := BuildRegistry(cfg, testLogger())
	require.NoError(t, err)

	p, err := result.Registry.Resolve(openai.ID)
	require.NoError(t, err)

	text, err := p.Send(context.Background(), providers.Request{Model: "gpt-4o", APIKey: "sk"})
	require.NoError(t, err)
	assert.Equal(t, "via proxy", text)
	assert.Equal(t, "upstream.invalid", proxiedHost)

	snapshot := result.Metrics.Snapshot()
	assert.Equal(t, int64(1), snapshot.Requests["openai:gpt-4o"])
}

func TestCreateProvider_Unknown(t *testing.T) {
	_, err := CreateProvider("anthropic", config.ProvidersConfig{}, nil)
	assert.Error(t, err)
}

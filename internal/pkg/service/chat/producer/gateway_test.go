package producer_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keenai/agent-chat/internal/pkg/encoding/json"
	"github.com/keenai/agent-chat/internal/pkg/log"
	"github.com/keenai/agent-chat/internal/pkg/service/chat/producer"
)

func gatewayConfigForTest(url string) producer.GatewayConfig {
	cfg := producer.NewGatewayConfig()
	cfg.URL = url
	cfg.Token = "test-token"
	return cfg
}

func readAll(t *testing.T, s producer.TokenStream) ([]string, error) {
	t.Helper()
	defer s.Close()
	var out []string
	for {
		token, err := s.Next(context.Background())
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, token)
	}
}

func TestGateway_StreamsTokens(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/generate", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var decoded map[string]any
		require.NoError(t, json.Decode(body, &decoded))
		assert.Equal(t, "chat-1", decoded["chatId"])
		assert.Equal(t, "hello", decoded["message"])
		assert.Equal(t, true, decoded["stream"])

		fmt.Fprintln(w, `{"delta":"Hello"}`)
		fmt.Fprintln(w, ``)
		fmt.Fprintln(w, `{"delta":", world"}`)
		fmt.Fprintln(w, `{"done":true}`)
	}))
	defer srv.Close()

	g := producer.NewGateway(log.NewDebugLogger(), gatewayConfigForTest(srv.URL))
	s, err := g.Open(context.Background(), producer.Request{ChatID: "chat-1", Message: "hello"})
	require.NoError(t, err)

	tokens, err := readAll(t, s)
	require.NoError(t, err)
	assert.Equal(t, []string{"Hello", ", world"}, tokens)
}

func TestGateway_MidStreamError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"delta":"partial"}`)
		fmt.Fprintln(w, `{"error":"model overloaded"}`)
	}))
	defer srv.Close()

	g := producer.NewGateway(log.NewDebugLogger(), gatewayConfigForTest(srv.URL))
	s, err := g.Open(context.Background(), producer.Request{ChatID: "chat-1", Message: "hello"})
	require.NoError(t, err)

	tokens, err := readAll(t, s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model overloaded")
	assert.Equal(t, []string{"partial"}, tokens)
}

func TestGateway_RetriesTransientFailures(t *testing.T) {
	t.Parallel()
	attempts := atomic.Int64{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprintln(w, `{"done":true}`)
	}))
	defer srv.Close()

	g := producer.NewGateway(log.NewDebugLogger(), gatewayConfigForTest(srv.URL))
	s, err := g.Open(context.Background(), producer.Request{ChatID: "chat-1", Message: "hello"})
	require.NoError(t, err)
	defer s.Close()

	assert.GreaterOrEqual(t, attempts.Load(), int64(3))
}

func TestGateway_ClientErrorIsNotRetried(t *testing.T) {
	t.Parallel()
	attempts := atomic.Int64{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	g := producer.NewGateway(log.NewDebugLogger(), gatewayConfigForTest(srv.URL))
	_, err := g.Open(context.Background(), producer.Request{ChatID: "chat-1", Message: "hello"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
	assert.Equal(t, int64(1), attempts.Load())
}

func TestGateway_ContextAbortsStream(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		fmt.Fprintln(w, `{"delta":"first"}`)
		flusher.Flush()
		// Hold the stream open until the client gives up.
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	g := producer.NewGateway(log.NewDebugLogger(), gatewayConfigForTest(srv.URL))
	s, err := g.Open(ctx, producer.Request{ChatID: "chat-1", Message: "hello"})
	require.NoError(t, err)
	defer s.Close()

	token, err := s.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "first", token)

	cancel()
	_, err = s.Next(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

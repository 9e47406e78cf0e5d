package embeddings

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOpenAITestServer(t *testing.T, handler http.HandlerFunc) LLMProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenAI(&Config{Provider: "openai", Model: "text-embedding-3-small", APIKey: "k", BaseURL: srv.URL + "/"})
}

func TestOpenAI_EmbedBatch(t *testing.T) {
	p := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-3-small", req.Model)

		// Reply out of order; the provider must honour "index".
		type datum struct {
			Index     int       `json:"index"`
			Embedding []float64 `json:"embedding"`
		}
		data := make([]datum, len(req.Input))
		for i := range req.Input {
			j := len(req.Input) - 1 - i
			data[i] = datum{Index: j, Embedding: []float64{float64(j), 1, 0}}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	})

	assert.Equal(t, 0, p.Dim())
	vecs, err := p.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	for i, v := range vecs {
		assert.Equal(t, float32(i), v[0])
	}
	assert.Equal(t, 3, p.Dim())
	assert.Equal(t, "openai:text-embedding-3-small", p.ModelID())

	_, err = p.Embed(context.Background(), "  ")
	assert.Error(t, err)
}

func TestOpenAI_ErrorClassification(t *testing.T) {
	cases := []struct {
		status    int
		transient bool
		config    bool
	}{
		{http.StatusTooManyRequests, true, false},
		{http.StatusServiceUnavailable, true, false},
		{http.StatusUnauthorized, false, true},
		{http.StatusBadRequest, false, false},
	}
	for _, tc := range cases {
		p := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", tc.status)
		})
		_, err := p.Embed(context.Background(), "x")
		require.Error(t, err)
		assert.Equal(t, tc.transient, IsTransient(err), "status %d", tc.status)
		assert.Equal(t, tc.config, IsConfiguration(err), "status %d", tc.status)
	}
}

func TestOpenAI_MissingConfig(t *testing.T) {
	p := NewOpenAI(&Config{Provider: "openai", BaseURL: "http://127.0.0.1:1"})
	_, err := p.Embed(context.Background(), "x")
	assert.True(t, IsConfiguration(err))
	assert.False(t, p.HealthCheck(context.Background()))
}

func TestOpenAI_GenerateAndGrounded(t *testing.T) {
	p := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/chat/completions":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"choices": []map[string]any{
					{"message": map[string]string{"content": "Rotate the key [2] and patch [1][2][9]."}},
				},
			})
		case "/models":
			_, _ = w.Write([]byte(`{"data":[]}`))
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	out, err := p.Generate(ctx, "hi")
	require.NoError(t, err)
	assert.Contains(t, out, "Rotate")

	ans, err := p.GroundedGenerate(ctx, "what now?", []string{"patch notes", "leaked key", "unused"}, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, ans.Citations)
	assert.Equal(t, 1.0, ans.Confidence)
	assert.Equal(t, 0.0, ans.CostEstimate)

	assert.True(t, p.HealthCheck(ctx))
}

func TestGroundedPrompt(t *testing.T) {
	prompt, used := groundedPrompt("q", []string{"a", "b", "c"}, 0)
	assert.Equal(t, 3, used)
	assert.Contains(t, prompt, "[3] c")

	_, used = groundedPrompt("q", []string{"a", "b", "c"}, 1)
	assert.Equal(t, 1, used)
}

func TestHashEmbedder(t *testing.T) {
	ctx := context.Background()
	h := NewHash(0)
	assert.Equal(t, DefaultHashDim, h.Dim())

	a, err := h.Embed(ctx, "Security patch for CVE")
	require.NoError(t, err)
	b, err := h.Embed(ctx, "security PATCH for cve")
	require.NoError(t, err)
	assert.Equal(t, a, b, "deterministic and case-insensitive")

	_, err = h.Embed(ctx, "")
	assert.Error(t, err)

	_, err = h.Generate(ctx, "x")
	assert.True(t, IsConfiguration(err))
	assert.True(t, h.HealthCheck(ctx))
}

type flakyProvider struct {
	*HashEmbedder
	calls atomic.Int32
	fail  int32
	err   error
}

func (f *flakyProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.calls.Add(1) <= f.fail {
		return nil, f.err
	}
	return f.HashEmbedder.Embed(ctx, text)
}

var fastPolicy = RetryPolicy{InitialInterval: time.Millisecond, MaxInterval: 4 * time.Millisecond, MaxAttempts: 3}

func TestWithRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("retries transient errors", func(t *testing.T) {
		f := &flakyProvider{HashEmbedder: NewHash(8), fail: 2, err: &TransientError{Err: errors.New("429")}}
		v, err := WithRetry(f, fastPolicy).Embed(ctx, "x")
		require.NoError(t, err)
		assert.Len(t, v, 8)
		assert.Equal(t, int32(3), f.calls.Load())
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		f := &flakyProvider{HashEmbedder: NewHash(8), fail: 10, err: &TransientError{Err: errors.New("503")}}
		_, err := WithRetry(f, fastPolicy).Embed(ctx, "x")
		require.Error(t, err)
		assert.True(t, IsTransient(err))
		assert.Equal(t, int32(3), f.calls.Load())
	})

	t.Run("does not retry configuration errors", func(t *testing.T) {
		f := &flakyProvider{HashEmbedder: NewHash(8), fail: 10, err: configErrorf("no key")}
		_, err := WithRetry(f, fastPolicy).Embed(ctx, "x")
		require.Error(t, err)
		assert.True(t, IsConfiguration(err))
		assert.Equal(t, int32(1), f.calls.Load())
	})
}

func TestNewFromConfig(t *testing.T) {
	ctx := context.Background()

	_, err := NewFromConfig(ctx, nil)
	assert.True(t, IsConfiguration(err))

	_, err = NewFromConfig(ctx, &Config{})
	assert.True(t, IsConfiguration(err))

	_, err = NewFromConfig(ctx, &Config{Provider: "bogus"})
	assert.True(t, IsConfiguration(err))

	_, err = NewFromConfig(ctx, &Config{Provider: "gemini"})
	assert.True(t, IsConfiguration(err))

	p, err := NewFromConfig(ctx, &Config{Provider: "hash", Dim: 32})
	require.NoError(t, err)
	assert.Equal(t, 32, p.Dim())
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("CEREBRO_HOME", t.TempDir())
	t.Setenv("CEREBRO_EMBEDDINGS_PROVIDER", "hash")
	t.Setenv("CEREBRO_EMBEDDINGS_DIM", "64")
	t.Setenv("CEREBRO_EMBEDDINGS_BASE_URL", "")
	t.Setenv("CEREBRO_COST_PER_1K_TOKENS", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "hash", cfg.Provider)
	assert.Equal(t, 64, cfg.Dim)
	assert.Equal(t, "https://api.openai.com/v1", cfg.BaseURL)

	t.Setenv("CEREBRO_EMBEDDINGS_DIM", "wide")
	_, err = LoadConfig()
	assert.True(t, IsConfiguration(err))
}

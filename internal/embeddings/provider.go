package embeddings

import (
	"context"
	"strconv"

	"github.com/kamusis/cerebro/internal/config"
)

// Embedder embeds text into a fixed-length float vector.
//
// Implementations must be deterministic for the same input text and model.
type Embedder interface {
	ModelID() string
	// Dim is the vector width, or 0 until the first successful call.
	Dim() int
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// GroundedAnswer is a generated answer tied to the context passages it cites.
type GroundedAnswer struct {
	Answer string `json:"answer"`
	// Citations are 1-based indices into the context passed in.
	Citations    []int   `json:"citations"`
	Confidence   float64 `json:"confidence"`
	CostEstimate float64 `json:"cost_estimate"`
}

// LLMProvider adds text generation on top of embeddings.
type LLMProvider interface {
	Embedder
	Generate(ctx context.Context, prompt string) (string, error)
	GroundedGenerate(ctx context.Context, query string, passages []string, topK int) (GroundedAnswer, error)
	HealthCheck(ctx context.Context) bool
}

// Config contains the resolved provider configuration.
type Config struct {
	Provider  string
	Model     string
	ChatModel string
	APIKey    string
	BaseURL   string
	// Dim applies to the hash provider only.
	Dim int
	// CostPer1KTokens feeds GroundedAnswer.CostEstimate. Zero when unknown.
	CostPer1KTokens float64
}

// LoadConfig resolves provider config from environment variables first, then ~/.cerebro/.env.
func LoadConfig() (*Config, error) {
	get := func(key string) (string, error) { return config.GetConfigValue(key) }

	cfg := &Config{}
	var err error
	if cfg.Provider, err = get("CEREBRO_EMBEDDINGS_PROVIDER"); err != nil {
		return nil, err
	}
	if cfg.Model, err = get("CEREBRO_EMBEDDINGS_MODEL"); err != nil {
		return nil, err
	}
	if cfg.ChatModel, err = get("CEREBRO_GENERATION_MODEL"); err != nil {
		return nil, err
	}
	if cfg.APIKey, err = get("CEREBRO_EMBEDDINGS_API_KEY"); err != nil {
		return nil, err
	}
	if cfg.BaseURL, err = get("CEREBRO_EMBEDDINGS_BASE_URL"); err != nil {
		return nil, err
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}

	dim, err := get("CEREBRO_EMBEDDINGS_DIM")
	if err != nil {
		return nil, err
	}
	if dim != "" {
		n, err := strconv.Atoi(dim)
		if err != nil || n <= 0 {
			return nil, configErrorf("invalid CEREBRO_EMBEDDINGS_DIM: %q", dim)
		}
		cfg.Dim = n
	}

	cost, err := get("CEREBRO_COST_PER_1K_TOKENS")
	if err != nil {
		return nil, err
	}
	if cost != "" {
		f, err := strconv.ParseFloat(cost, 64)
		if err != nil || f < 0 {
			return nil, configErrorf("invalid CEREBRO_COST_PER_1K_TOKENS: %q", cost)
		}
		cfg.CostPer1KTokens = f
	}
	return cfg, nil
}

// NewFromConfig returns the provider named by cfg.Provider. An unset
// provider is a ConfigurationError so callers can run degraded.
func NewFromConfig(ctx context.Context, cfg *Config) (LLMProvider, error) {
	if cfg == nil {
		return nil, configErrorf("embeddings config is nil")
	}
	if cfg.Provider == "" {
		return nil, configErrorf("embeddings provider is not configured (set CEREBRO_EMBEDDINGS_PROVIDER)")
	}
	switch cfg.Provider {
	case "openai":
		return NewOpenAI(cfg), nil
	case "gemini":
		return NewGemini(ctx, cfg)
	case "hash":
		return NewHash(cfg.Dim), nil
	default:
		return nil, configErrorf("unsupported embeddings provider: %s", cfg.Provider)
	}
}

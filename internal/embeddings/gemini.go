package embeddings

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	genai "google.golang.org/genai"
)

// GeminiProvider is a thin wrapper around the official genai client.
type GeminiProvider struct {
	cli       *genai.Client
	model     string
	chatModel string
	costPer1K float64
	dim       atomic.Int64
}

func NewGemini(ctx context.Context, cfg *Config) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, configErrorf("Gemini API key is not configured (set CEREBRO_EMBEDDINGS_API_KEY)")
	}
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, configErrorf("cannot create Gemini client: %v", err)
	}
	model := cfg.Model
	if model == "" {
		model = "text-embedding-004"
	}
	chat := cfg.ChatModel
	if chat == "" {
		chat = "gemini-2.0-flash"
	}
	return &GeminiProvider{cli: cli, model: model, chatModel: chat, costPer1K: cfg.CostPer1KTokens}, nil
}

func (g *GeminiProvider) ModelID() string { return "gemini:" + g.model }
func (g *GeminiProvider) Dim() int        { return int(g.dim.Load()) }

func (g *GeminiProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := g.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (g *GeminiProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	contents := make([]*genai.Content, 0, len(texts))
	for _, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, fmt.Errorf("cannot embed empty text")
		}
		contents = append(contents, &genai.Content{Parts: []*genai.Part{{Text: t}}})
	}
	resp, err := g.cli.Models.EmbedContent(ctx, g.model, contents, nil)
	if err != nil {
		return nil, classifyGemini(err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini returned %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}
	out := make([][]float32, len(texts))
	for i, e := range resp.Embeddings {
		if e == nil || len(e.Values) == 0 {
			return nil, fmt.Errorf("gemini response missing embedding %d", i)
		}
		out[i] = e.Values
	}
	g.dim.Store(int64(len(out[0])))
	return out, nil
}

func (g *GeminiProvider) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.cli.Models.GenerateContent(ctx, g.chatModel,
		[]*genai.Content{{Parts: []*genai.Part{{Text: prompt}}}},
		nil,
	)
	if err != nil {
		return "", classifyGemini(err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini returned no candidates")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		b.WriteString(part.Text)
	}
	return b.String(), nil
}

func (g *GeminiProvider) GroundedGenerate(ctx context.Context, query string, passages []string, topK int) (GroundedAnswer, error) {
	return groundedGenerate(ctx, g.Generate, g.costPer1K, query, passages, topK)
}

func (g *GeminiProvider) HealthCheck(ctx context.Context) bool {
	_, err := g.cli.Models.Get(ctx, g.model, nil)
	return err == nil
}

// classifyGemini maps genai errors onto the provider error taxonomy using
// the HTTP status carried in the message.
func classifyGemini(err error) error {
	if err == nil {
		return nil
	}
	if t := classifyTransport(err); IsTransient(t) {
		return t
	}
	msg := err.Error()
	for _, marker := range []string{"429", "RESOURCE_EXHAUSTED", "500", "502", "503", "504", "UNAVAILABLE", "DEADLINE_EXCEEDED"} {
		if strings.Contains(msg, marker) {
			return &TransientError{Err: err}
		}
	}
	for _, marker := range []string{"401", "403", "PERMISSION_DENIED", "UNAUTHENTICATED", "API_KEY_INVALID"} {
		if strings.Contains(msg, marker) {
			return &ConfigurationError{Msg: msg}
		}
	}
	return err
}

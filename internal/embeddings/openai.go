package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

type openAIProvider struct {
	model     string
	chatModel string
	apiKey    string
	baseURL   string
	costPer1K float64
	client    *http.Client
	dim       atomic.Int64
}

// NewOpenAI constructs an OpenAI-compatible provider.
//
// It uses the REST endpoints:
//
//	POST {baseURL}/embeddings        {"model": "...", "input": ["...", ...]}
//	POST {baseURL}/chat/completions  {"model": "...", "messages": [...]}
//	GET  {baseURL}/models
func NewOpenAI(cfg *Config) LLMProvider {
	chat := cfg.ChatModel
	if chat == "" {
		chat = "gpt-4o-mini"
	}
	return &openAIProvider{
		model:     cfg.Model,
		chatModel: chat,
		apiKey:    cfg.APIKey,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		costPer1K: cfg.CostPer1KTokens,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *openAIProvider) ModelID() string {
	return "openai:" + p.model
}

func (p *openAIProvider) Dim() int {
	return int(p.dim.Load())
}

func (p *openAIProvider) checkConfig() error {
	if p.model == "" {
		return configErrorf("embeddings model is not configured (set CEREBRO_EMBEDDINGS_MODEL)")
	}
	if p.apiKey == "" {
		return configErrorf("embeddings API key is not configured (set CEREBRO_EMBEDDINGS_API_KEY)")
	}
	return nil
}

func (p *openAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (p *openAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := p.checkConfig(); err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	for _, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, fmt.Errorf("cannot embed empty text")
		}
	}

	body, err := p.post(ctx, "/embeddings", map[string]any{
		"model": p.model,
		"input": texts,
	}, "embeddings")
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("cannot parse embeddings response: %w", err)
	}
	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings response has %d vectors for %d inputs", len(parsed.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for i, d := range parsed.Data {
		idx := d.Index
		if idx < 0 || idx >= len(texts) || out[idx] != nil {
			idx = i
		}
		if len(d.Embedding) == 0 {
			return nil, fmt.Errorf("embeddings response missing embedding")
		}
		v := make([]float32, len(d.Embedding))
		for j, x := range d.Embedding {
			v[j] = float32(x)
		}
		out[idx] = v
	}
	p.dim.Store(int64(len(out[0])))
	return out, nil
}

func (p *openAIProvider) Generate(ctx context.Context, prompt string) (string, error) {
	if p.apiKey == "" {
		return "", configErrorf("API key is not configured (set CEREBRO_EMBEDDINGS_API_KEY)")
	}
	body, err := p.post(ctx, "/chat/completions", map[string]any{
		"model": p.chatModel,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}, "chat completion")
	if err != nil {
		return "", err
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("cannot parse chat completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat completion response has no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

func (p *openAIProvider) GroundedGenerate(ctx context.Context, query string, passages []string, topK int) (GroundedAnswer, error) {
	return groundedGenerate(ctx, p.Generate, p.costPer1K, query, passages, topK)
}

// HealthCheck lists models; any 2xx means the endpoint and key are usable.
func (p *openAIProvider) HealthCheck(ctx context.Context) bool {
	if p.checkConfig() != nil {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/models", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func (p *openAIProvider) post(ctx context.Context, path string, payload any, op string) ([]byte, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classifyHTTP(op, resp.StatusCode, string(body))
	}
	return body, nil
}

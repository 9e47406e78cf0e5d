package embeddings

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"unicode"
)

// DefaultHashDim is the hash embedder width when none is configured.
const DefaultHashDim = 256

// HashEmbedder is an offline embedder based on feature hashing of word
// tokens. Texts sharing vocabulary land close together, which is enough for
// keyword-flavoured semantic search without a network provider.
type HashEmbedder struct {
	dim int
}

func NewHash(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = DefaultHashDim
	}
	return &HashEmbedder{dim: dim}
}

func (h *HashEmbedder) ModelID() string { return fmt.Sprintf("hash:fnv1a-%d", h.dim) }
func (h *HashEmbedder) Dim() int        { return h.dim }

func (h *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("cannot embed empty text")
	}
	v := make([]float32, h.dim)
	for _, tok := range tokenize(text) {
		f := fnv.New32a()
		_, _ = f.Write([]byte(tok))
		sum := f.Sum32()
		idx := int(sum % uint32(h.dim))
		// High bit picks the sign so unrelated collisions tend to cancel.
		if sum&0x80000000 != 0 {
			v[idx]--
		} else {
			v[idx]++
		}
	}
	return v, nil
}

func (h *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := h.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (h *HashEmbedder) Generate(context.Context, string) (string, error) {
	return "", configErrorf("hash provider cannot generate text (configure openai or gemini)")
}

func (h *HashEmbedder) GroundedGenerate(ctx context.Context, query string, passages []string, topK int) (GroundedAnswer, error) {
	return groundedGenerate(ctx, h.Generate, 0, query, passages, topK)
}

func (h *HashEmbedder) HealthCheck(context.Context) bool { return true }

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

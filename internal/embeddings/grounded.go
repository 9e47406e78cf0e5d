package embeddings

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

var citationRe = regexp.MustCompile(`\[(\d+)\]`)

// groundedPrompt numbers the first topK passages so the model can cite them as [n].
func groundedPrompt(query string, passages []string, topK int) (string, int) {
	if topK <= 0 || topK > len(passages) {
		topK = len(passages)
	}
	var b strings.Builder
	b.WriteString("Answer the question using only the numbered context passages below. ")
	b.WriteString("Cite every passage you rely on as [n]. ")
	b.WriteString("If the context does not contain the answer, say so.\n\n")
	b.WriteString("Context:\n")
	for i := 0; i < topK; i++ {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, strings.TrimSpace(passages[i]))
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(strings.TrimSpace(query))
	b.WriteString("\nAnswer:")
	return b.String(), topK
}

// parseCitations returns the distinct passage numbers in 1..n cited in answer, ascending.
func parseCitations(answer string, n int) []int {
	out := make([]int, 0)
	for _, m := range citationRe.FindAllStringSubmatch(answer, -1) {
		idx, err := strconv.Atoi(m[1])
		if err != nil || idx < 1 || idx > n {
			continue
		}
		if !slices.Contains(out, idx) {
			out = append(out, idx)
		}
	}
	slices.Sort(out)
	return out
}

// estimateTokens uses the common four-characters-per-token heuristic.
func estimateTokens(s string) int {
	return (len(s) + 3) / 4
}

// groundedGenerate implements GroundedGenerate for any provider that can Generate.
func groundedGenerate(ctx context.Context, generate func(context.Context, string) (string, error), costPer1K float64, query string, passages []string, topK int) (GroundedAnswer, error) {
	if strings.TrimSpace(query) == "" {
		return GroundedAnswer{Citations: []int{}}, fmt.Errorf("cannot answer an empty query")
	}
	prompt, used := groundedPrompt(query, passages, topK)
	answer, err := generate(ctx, prompt)
	if err != nil {
		return GroundedAnswer{Citations: []int{}}, err
	}
	answer = strings.TrimSpace(answer)
	out := GroundedAnswer{
		Answer:       answer,
		Citations:    parseCitations(answer, used),
		CostEstimate: float64(estimateTokens(prompt)+estimateTokens(answer)) / 1000 * costPer1K,
	}
	if answer != "" {
		out.Confidence = 1.0
	}
	return out, nil
}

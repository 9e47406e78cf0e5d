package collect

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// frontMatter is the subset of YAML front matter collectors understand.
type frontMatter struct {
	Title  string   `yaml:"title"`
	Status string   `yaml:"status"`
	Tags   []string `yaml:"tags"`
	Threat string   `yaml:"threat_level"`
}

// splitFrontMatter separates a leading "---" YAML block from the body. A
// document without front matter returns a zero frontMatter and the input.
// Malformed YAML is an error; the caller decides whether to keep the body.
func splitFrontMatter(content string) (frontMatter, string, error) {
	s := strings.TrimPrefix(content, "\ufeff")
	if !strings.HasPrefix(s, "---") {
		return frontMatter{}, content, nil
	}
	parts := strings.SplitN(s, "---", 3)
	if len(parts) < 3 {
		return frontMatter{}, content, nil
	}

	body := strings.TrimPrefix(parts[2], "\n")
	var fm frontMatter
	if err := yaml.Unmarshal([]byte(strings.TrimSpace(parts[1])), &fm); err != nil {
		return frontMatter{}, body, fmt.Errorf("front matter: %w", err)
	}
	return fm, body, nil
}

// Package collect gathers intelligence items from project working trees.
package collect

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/kamusis/cerebro/internal/logger"
	"github.com/kamusis/cerebro/internal/registry"
)

var log = logger.ForComponent("collect")

// Collector produces items for one project. Implementations must be safe
// for concurrent use across projects.
type Collector interface {
	Name() string
	Collect(ctx context.Context, p registry.Project) ([]registry.IntelligenceItem, error)
}

// Default returns the reference collectors.
func Default() []Collector {
	return []Collector{
		NewGitCollector(),
		NewCICollector(),
		NewDocsCollector(),
		NewStructureCollector(),
	}
}

type itemSpec struct {
	typ      registry.IntelligenceType
	source   string
	title    string
	content  string
	metadata map[string]any
	level    registry.ThreatLevel
	tags     []string
	project  string
	at       time.Time
}

// newItem derives a stable ID from source, title and the head of content so
// that re-collecting the same fact yields the same item.
func newItem(s itemSpec) registry.IntelligenceItem {
	if s.level == "" {
		s.level = registry.ThreatInfo
	}
	return registry.IntelligenceItem{
		ID:              registry.GenerateID(s.source + ":" + s.title + ":" + truncate(s.content, 100)),
		Type:            s.typ,
		Source:          s.source,
		Title:           s.title,
		Content:         s.content,
		Metadata:        s.metadata,
		ThreatLevel:     s.level,
		Timestamp:       s.at.UTC(),
		Tags:            s.tags,
		RelatedProjects: []string{s.project},
	}
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

var headingRe = regexp.MustCompile(`(?m)^#\s+(.+)$`)

// firstHeading returns the first level-1 markdown heading, or fallback.
func firstHeading(body, fallback string) string {
	if m := headingRe.FindStringSubmatch(body); m != nil {
		return strings.TrimSpace(m[1])
	}
	return fallback
}

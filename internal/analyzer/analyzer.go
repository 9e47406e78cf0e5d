// Package analyzer scores project health from registry state. It only
// reads the registry; callers persist results with Apply.
package analyzer

import (
	"fmt"
	"strings"
	"time"

	"github.com/kamusis/cerebro/internal/logger"
	"github.com/kamusis/cerebro/internal/registry"
)

var log = logger.ForComponent("analyzer")

// Source is the read-only view of the registry the analyzer needs.
type Source interface {
	ListProjects() []registry.Project
	GetProject(name string) (registry.Project, bool)
	ProjectIntelligence(name string) []registry.IntelligenceItem
}

// Sink receives analysis results.
type Sink interface {
	UpdateHealth(name string, score float64, status registry.ProjectStatus) bool
}

// Metrics carries the numbers behind an analysis.
type Metrics struct {
	Factors   Factors                           `json:"health_factors"`
	ItemCount int                               `json:"item_count"`
	ByType    map[registry.IntelligenceType]int `json:"by_type"`
	ByThreat  map[registry.ThreatLevel]int      `json:"by_threat"`
}

// Analysis is the result of analysing one project.
type Analysis struct {
	Project         string                 `json:"project"`
	Timestamp       time.Time              `json:"timestamp"`
	HealthScore     float64                `json:"health_score"`
	Status          registry.ProjectStatus `json:"status"`
	Insights        []string               `json:"insights"`
	Recommendations []string               `json:"recommendations"`
	Metrics         Metrics                `json:"metrics"`
}

// Analyzer is stateless apart from its clock and manifest reader.
type Analyzer struct {
	src       Source
	now       func() time.Time
	manifests ManifestReader
}

type Option func(*Analyzer)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) { a.now = now }
}

// WithManifestReader replaces the filesystem manifest reader.
func WithManifestReader(r ManifestReader) Option {
	return func(a *Analyzer) { a.manifests = r }
}

func New(src Source, opts ...Option) *Analyzer {
	a := &Analyzer{
		src:       src,
		now:       time.Now,
		manifests: FileManifestReader(nil),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// AnalyzeProject scores p from its related items.
func (a *Analyzer) AnalyzeProject(p registry.Project) Analysis {
	now := a.now().UTC()
	items := a.src.ProjectIntelligence(p.Name)
	factors := ComputeFactors(items, now)
	score := Score(factors)

	m := Metrics{
		Factors:   factors,
		ItemCount: len(items),
		ByType:    make(map[registry.IntelligenceType]int),
		ByThreat:  make(map[registry.ThreatLevel]int),
	}
	for _, it := range items {
		m.ByType[it.Type]++
		m.ByThreat[it.ThreatLevel]++
	}

	return Analysis{
		Project:         p.Name,
		Timestamp:       now,
		HealthScore:     score,
		Status:          StatusFromScore(score),
		Insights:        insights(p, items),
		Recommendations: recommendations(factors),
		Metrics:         m,
	}
}

// AnalyzeProjectByName looks the project up first.
func (a *Analyzer) AnalyzeProjectByName(name string) (Analysis, bool) {
	p, ok := a.src.GetProject(name)
	if !ok {
		return Analysis{}, false
	}
	return a.AnalyzeProject(p), true
}

// Apply writes an analysis back to the sink. It reports false when the
// project no longer exists.
func Apply(sink Sink, an Analysis) bool {
	ok := sink.UpdateHealth(an.Project, an.HealthScore, an.Status)
	if !ok {
		log.Warn("cannot apply analysis to unknown project", "project", an.Project)
	}
	return ok
}

func insights(p registry.Project, items []registry.IntelligenceItem) []string {
	out := make([]string, 0)

	if langs := projectLanguages(p.Languages, items); len(langs) > 0 {
		out = append(out, "Primary languages: "+strings.Join(langs, ", "))
	}

	adrs := 0
	critical := 0
	for _, it := range items {
		if it.HasTag("adr") {
			adrs++
		}
		if it.ThreatLevel == registry.ThreatCritical {
			critical++
		}
	}
	if adrs > 0 {
		out = append(out, fmt.Sprintf("Has %d architectural decision records", adrs))
	}
	if critical > 0 {
		out = append(out, fmt.Sprintf("ALERT: %d critical issues detected", critical))
	}
	return out
}

// Recommendation texts, in the order they are emitted.
const (
	RecDocumentation = "Add or improve documentation (README, guides)"
	RecTesting       = "Add or improve test coverage"
	RecCICD          = "Set up CI/CD pipeline"
	RecActivity      = "Project appears inactive - consider archiving or updating"
	RecSecurity      = "Address security issues detected in commits"
)

func recommendations(f Factors) []string {
	out := make([]string, 0)
	if f.Documentation < 50 {
		out = append(out, RecDocumentation)
	}
	if f.Testing < 50 {
		out = append(out, RecTesting)
	}
	if f.CICD < 50 {
		out = append(out, RecCICD)
	}
	if f.Activity < 30 {
		out = append(out, RecActivity)
	}
	if f.Security < 70 {
		out = append(out, RecSecurity)
	}
	return out
}

// metadataStrings reads a string list from item metadata, which may hold
// []string (in memory) or []any (after a JSON round trip).
func metadataStrings(md map[string]any, key string) []string {
	switch v := md[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, x := range v {
			if s, ok := x.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	}
	return nil
}

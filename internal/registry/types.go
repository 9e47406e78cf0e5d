package registry

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// IntelligenceType classifies where an item came from.
type IntelligenceType string

const (
	TypeSIGINT  IntelligenceType = "sigint"  // signals: git, CI, logs
	TypeHUMINT  IntelligenceType = "humint"  // human: docs, ADRs
	TypeOSINT   IntelligenceType = "osint"   // open source: advisories, upstream
	TypeTECHINT IntelligenceType = "techint" // technical: structure, metrics
)

// ParseIntelligenceType accepts any case ("SIGINT", "sigint").
func ParseIntelligenceType(s string) (IntelligenceType, error) {
	t := IntelligenceType(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case TypeSIGINT, TypeHUMINT, TypeOSINT, TypeTECHINT:
		return t, nil
	}
	return "", fmt.Errorf("unknown intelligence type: %q", s)
}

// ThreatLevel is the severity attached to an item.
type ThreatLevel string

const (
	ThreatCritical ThreatLevel = "critical"
	ThreatHigh     ThreatLevel = "high"
	ThreatMedium   ThreatLevel = "medium"
	ThreatLow      ThreatLevel = "low"
	ThreatInfo     ThreatLevel = "info"
)

// Severity orders threat levels, critical highest. Unknown levels rank as info.
func (t ThreatLevel) Severity() int {
	switch t {
	case ThreatCritical:
		return 4
	case ThreatHigh:
		return 3
	case ThreatMedium:
		return 2
	case ThreatLow:
		return 1
	default:
		return 0
	}
}

func ParseThreatLevel(s string) (ThreatLevel, error) {
	t := ThreatLevel(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case ThreatCritical, ThreatHigh, ThreatMedium, ThreatLow, ThreatInfo:
		return t, nil
	}
	return "", fmt.Errorf("unknown threat level: %q", s)
}

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus string

const (
	StatusActive      ProjectStatus = "active"
	StatusMaintenance ProjectStatus = "maintenance"
	StatusDeprecated  ProjectStatus = "deprecated"
	StatusArchived    ProjectStatus = "archived"
	StatusUnknown     ProjectStatus = "unknown"
)

// IntelligenceItem is an immutable fact about one or more projects.
type IntelligenceItem struct {
	ID              string           `json:"id"`
	Type            IntelligenceType `json:"type"`
	Source          string           `json:"source"`
	Title           string           `json:"title"`
	Content         string           `json:"content"`
	Metadata        map[string]any   `json:"metadata,omitempty"`
	ThreatLevel     ThreatLevel      `json:"threat_level"`
	Timestamp       time.Time        `json:"timestamp"`
	Tags            []string         `json:"tags,omitempty"`
	RelatedProjects []string         `json:"related_projects,omitempty"`
	Embedding       []float32        `json:"embedding,omitempty"`
}

// HasTag reports whether tag is attached to the item.
func (it IntelligenceItem) HasTag(tag string) bool {
	return slices.Contains(it.Tags, tag)
}

// RelatesTo reports whether the item names project among its related projects.
func (it IntelligenceItem) RelatesTo(project string) bool {
	return slices.Contains(it.RelatedProjects, project)
}

func (it IntelligenceItem) clone() IntelligenceItem {
	out := it
	out.Tags = slices.Clone(it.Tags)
	out.RelatedProjects = slices.Clone(it.RelatedProjects)
	out.Embedding = slices.Clone(it.Embedding)
	if it.Metadata != nil {
		out.Metadata = make(map[string]any, len(it.Metadata))
		for k, v := range it.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// Project is a tracked unit of the ecosystem.
type Project struct {
	Name              string         `json:"name"`
	Path              string         `json:"path"`
	Description       string         `json:"description"`
	Languages         []string       `json:"languages,omitempty"`
	Status            ProjectStatus  `json:"status"`
	HealthScore       float64        `json:"health_score"`
	LastCommit        *time.Time     `json:"last_commit,omitempty"`
	LastIndexed       *time.Time     `json:"last_indexed,omitempty"`
	Dependencies      []string       `json:"dependencies,omitempty"`
	Dependents        []string       `json:"dependents,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
	IntelligenceCount int            `json:"intelligence_count"`
}

func (p Project) clone() Project {
	out := p
	out.Languages = slices.Clone(p.Languages)
	out.Dependencies = slices.Clone(p.Dependencies)
	out.Dependents = slices.Clone(p.Dependents)
	if p.LastCommit != nil {
		t := *p.LastCommit
		out.LastCommit = &t
	}
	if p.LastIndexed != nil {
		t := *p.LastIndexed
		out.LastIndexed = &t
	}
	if p.Metadata != nil {
		out.Metadata = make(map[string]any, len(p.Metadata))
		for k, v := range p.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// Alert kinds produced by GetAlerts.
const (
	AlertLowHealth     = "low_health"
	AlertCriticalIntel = "critical_intel"
)

// Alert is derived from registry state; it is never stored as its own record.
type Alert struct {
	Type    string  `json:"type"`
	Project string  `json:"project,omitempty"`
	Score   float64 `json:"score,omitempty"`
	ID      string  `json:"id,omitempty"`
	Title   string  `json:"title,omitempty"`
	Message string  `json:"message"`
}

// EcosystemStatus is a derived rollup over the whole registry.
type EcosystemStatus struct {
	TotalProjects     int        `json:"total_projects"`
	ActiveProjects    int        `json:"active_projects"`
	TotalIntelligence int        `json:"total_intelligence"`
	HealthScore       float64    `json:"health_score"`
	LastScan          *time.Time `json:"last_scan,omitempty"`
	Alerts            []Alert    `json:"alerts"`
}

// ClampScore bounds a health score to [0,100].
func ClampScore(s float64) float64 {
	switch {
	case s != s: // NaN
		return 0
	case s < 0:
		return 0
	case s > 100:
		return 100
	}
	return s
}

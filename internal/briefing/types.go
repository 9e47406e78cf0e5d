// Package briefing composes point-in-time reports over the registry and
// analyzer. Nothing is cached; every Generate call recomputes.
package briefing

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kamusis/cerebro/internal/analyzer"
	"github.com/kamusis/cerebro/internal/registry"
)

// ErrUnknownType is wrapped by errors for unsupported briefing types.
var ErrUnknownType = errors.New("unknown briefing type")

type Type string

const (
	Daily     Type = "daily"
	Weekly    Type = "weekly"
	Threat    Type = "threat"
	Project   Type = "project"
	Executive Type = "executive"
)

// Types lists every supported briefing type.
var Types = []Type{Daily, Weekly, Threat, Project, Executive}

// ParseType accepts any case ("DAILY", "daily").
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Types {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownType, s)
}

const (
	ClassificationInternal     = "INTERNAL"
	ClassificationConfidential = "CONFIDENTIAL"
)

type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// StatusSummary is the headline ecosystem numbers.
type StatusSummary struct {
	TotalProjects     int     `json:"total_projects"`
	ActiveProjects    int     `json:"active_projects"`
	TotalIntelligence int     `json:"total_intelligence"`
	HealthScore       float64 `json:"health_score"`
}

// Development is one item surfaced in a periodic briefing.
type Development struct {
	ID          string                    `json:"id"`
	Type        registry.IntelligenceType `json:"type"`
	Title       string                    `json:"title"`
	Source      string                    `json:"source"`
	ThreatLevel registry.ThreatLevel      `json:"threat_level"`
	Timestamp   time.Time                 `json:"timestamp"`
}

type ProjectSummary struct {
	Name        string                 `json:"name"`
	HealthScore float64                `json:"health_score"`
	Status      registry.ProjectStatus `json:"status"`
	Insights    []string               `json:"insights"`
}

// ThreatEntry is one item in a threat bucket.
type ThreatEntry struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Source          string    `json:"source"`
	RelatedProjects []string  `json:"related_projects"`
	Timestamp       time.Time `json:"timestamp"`
}

type ProjectHeader struct {
	Name        string                 `json:"name"`
	Path        string                 `json:"path"`
	Languages   []string               `json:"languages"`
	Status      registry.ProjectStatus `json:"status"`
	HealthScore float64                `json:"health_score"`
}

type ProjectItem struct {
	ID          string                    `json:"id"`
	Type        registry.IntelligenceType `json:"type"`
	Title       string                    `json:"title"`
	ThreatLevel registry.ThreatLevel      `json:"threat_level"`
	Tags        []string                  `json:"tags"`
}

type KeyMetrics struct {
	TotalProjects   int     `json:"total_projects"`
	EcosystemHealth float64 `json:"ecosystem_health"`
	HealthyProjects int     `json:"healthy_projects"`
	ProjectsAtRisk  int     `json:"projects_at_risk"`
	CriticalCount   int     `json:"critical_projects"`
}

type RiskAssessment struct {
	OverallRisk    string  `json:"overall_risk"`
	RiskPercentage float64 `json:"risk_percentage"`
}

// Briefing is the union of every briefing type; only the sections of its
// Type are populated.
type Briefing struct {
	ID             string    `json:"id"`
	Type           Type      `json:"type"`
	Classification string    `json:"classification"`
	Timestamp      time.Time `json:"timestamp"`
	Period         *Period   `json:"period,omitempty"`
	Summary        string    `json:"summary,omitempty"`
	Headline       string    `json:"headline,omitempty"`

	// daily, weekly
	EcosystemStatus *StatusSummary   `json:"ecosystem_status,omitempty"`
	KeyDevelopments []Development    `json:"key_developments,omitempty"`
	Alerts          []registry.Alert `json:"alerts,omitempty"`
	ActionItems     []string         `json:"action_items,omitempty"`

	// weekly
	EcosystemAnalysis *analyzer.EcosystemAnalysis `json:"ecosystem_analysis,omitempty"`
	ProjectSummaries  []ProjectSummary            `json:"project_summaries,omitempty"`

	// threat
	ThreatLevel     registry.ThreatLevel `json:"threat_level,omitempty"`
	CriticalThreats []ThreatEntry        `json:"critical_threats,omitempty"`
	HighThreats     []ThreatEntry        `json:"high_threats,omitempty"`
	MediumThreats   []ThreatEntry        `json:"medium_threats,omitempty"`
	Mitigations     []string             `json:"mitigations,omitempty"`

	// project
	NotFound     bool               `json:"not_found,omitempty"`
	Error        string             `json:"error,omitempty"`
	Project      *ProjectHeader     `json:"project,omitempty"`
	Analysis     *analyzer.Analysis `json:"analysis,omitempty"`
	Intelligence []ProjectItem      `json:"intelligence,omitempty"`

	// executive
	KeyMetrics               *KeyMetrics     `json:"key_metrics,omitempty"`
	RiskAssessment           *RiskAssessment `json:"risk_assessment,omitempty"`
	StrategicRecommendations []string        `json:"strategic_recommendations,omitempty"`
}

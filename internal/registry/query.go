package registry

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/cases"
)

// Query filters items for QueryIntelligence. Zero values match everything.
type Query struct {
	Text     string
	Types    []IntelligenceType
	Projects []string
	// Limit <= 0 means no limit.
	Limit int
}

// QueryIntelligence returns items whose title or content contains q.Text
// (Unicode case-insensitive), restricted to q.Types and to items related to
// any of q.Projects, newest first. It never returns nil.
func (r *Registry) QueryIntelligence(q Query) []IntelligenceItem {
	// A Caser is stateful; one per call keeps concurrent queries independent.
	fold := cases.Fold()
	needle := fold.String(q.Text)

	r.mu.RLock()
	out := make([]IntelligenceItem, 0)
	for _, it := range r.items {
		if len(q.Types) > 0 && !slices.Contains(q.Types, it.Type) {
			continue
		}
		if len(q.Projects) > 0 && !slices.ContainsFunc(q.Projects, it.RelatesTo) {
			continue
		}
		if needle != "" &&
			!strings.Contains(fold.String(it.Content), needle) &&
			!strings.Contains(fold.String(it.Title), needle) {
			continue
		}
		out = append(out, it.clone())
	}
	r.mu.RUnlock()

	sortNewestFirst(out)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

// GetAlerts derives one low_health alert per project scoring under 50
// (by project name) and one critical_intel alert per critical item (newest
// first).
func (r *Registry) GetAlerts() []Alert {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.alertsLocked()
}

func (r *Registry) alertsLocked() []Alert {
	alerts := make([]Alert, 0)

	names := make([]string, 0, len(r.projects))
	for name := range r.projects {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		p := r.projects[name]
		if p.HealthScore < 50 {
			alerts = append(alerts, Alert{
				Type:    AlertLowHealth,
				Project: p.Name,
				Score:   p.HealthScore,
				Message: fmt.Sprintf("Project %s has low health score: %.1f", p.Name, p.HealthScore),
			})
		}
	}

	critical := make([]IntelligenceItem, 0)
	for _, it := range r.items {
		if it.ThreatLevel == ThreatCritical {
			critical = append(critical, *it)
		}
	}
	sortNewestFirst(critical)
	for _, it := range critical {
		alerts = append(alerts, Alert{
			Type:    AlertCriticalIntel,
			ID:      it.ID,
			Title:   it.Title,
			Message: "Critical intelligence: " + it.Title,
		})
	}
	return alerts
}

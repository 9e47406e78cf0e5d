package briefing

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kamusis/cerebro/internal/registry"
)

// ToJSON renders b as indented JSON.
func ToJSON(b Briefing) ([]byte, error) {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal briefing: %w", err)
	}
	return data, nil
}

var threatMarker = map[registry.ThreatLevel]string{
	registry.ThreatCritical: "🔴",
	registry.ThreatHigh:     "🟠",
	registry.ThreatMedium:   "🟡",
	registry.ThreatLow:      "🟢",
	registry.ThreatInfo:     "🔵",
}

func marker(l registry.ThreatLevel) string {
	if m, ok := threatMarker[l]; ok {
		return m
	}
	return threatMarker[registry.ThreatInfo]
}

func healthMarker(score float64) string {
	switch {
	case score >= 70:
		return "✅"
	case score >= 40:
		return "⚠️"
	default:
		return "❌"
	}
}

// ToMarkdown renders b. The output depends only on b.
func ToMarkdown(b Briefing) string {
	var w mdWriter
	w.line("# CEREBRO Intelligence Briefing")
	w.line("**Type:** %s", strings.ToUpper(string(b.Type)))
	w.line("**Classification:** %s", b.Classification)
	w.line("**Generated:** %s", b.Timestamp.Format(time.RFC3339))
	w.line("**ID:** %s", b.ID)
	if b.Period != nil {
		w.line("**Period:** %s to %s", b.Period.Start.Format(time.RFC3339), b.Period.End.Format(time.RFC3339))
	}
	w.blank()

	if b.Summary != "" {
		w.section("Summary")
		w.line("%s", b.Summary)
		w.blank()
	}
	if b.Headline != "" {
		w.section(b.Headline)
		w.blank()
	}

	if s := b.EcosystemStatus; s != nil {
		w.section("Ecosystem Status")
		w.line("- Total Projects: %d", s.TotalProjects)
		w.line("- Active Projects: %d", s.ActiveProjects)
		w.line("- Intelligence Items: %d", s.TotalIntelligence)
		w.line("- Health Score: %.1f%%", s.HealthScore)
		w.blank()
	}

	if len(b.KeyDevelopments) > 0 {
		w.section("Key Developments")
		for _, d := range b.KeyDevelopments {
			w.line("- %s **%s** (%s)", marker(d.ThreatLevel), d.Title, d.Source)
		}
		w.blank()
	}

	if len(b.Alerts) > 0 {
		w.section("Alerts")
		for _, a := range b.Alerts {
			w.line("- ⚠️ %s", a.Message)
		}
		w.blank()
	}

	if len(b.ActionItems) > 0 {
		w.section("Action Items")
		for _, a := range b.ActionItems {
			w.line("- [ ] %s", a)
		}
		w.blank()
	}

	if e := b.EcosystemAnalysis; e != nil {
		w.section("Ecosystem Analysis")
		w.line("- Ecosystem Health: %.1f%%", e.EcosystemHealth)
		d := e.HealthDistribution
		w.line("- Healthy: %d, Needs Attention: %d, At Risk: %d, Critical: %d",
			d.Healthy, d.NeedsAttention, d.AtRisk, d.Critical)
		for _, is := range e.TopIssues {
			w.line("- %s (%d projects)", is.Recommendation, len(is.Projects))
		}
		w.blank()
	}

	if len(b.ProjectSummaries) > 0 {
		w.section("Project Summaries")
		for _, p := range b.ProjectSummaries {
			w.line("### %s %s", healthMarker(p.HealthScore), p.Name)
			w.line("- Health: %.1f%%", p.HealthScore)
			w.line("- Status: %s", p.Status)
			if len(p.Insights) > 0 {
				w.line("- Insights:")
				for _, in := range p.Insights {
					w.line("  - %s", in)
				}
			}
			w.blank()
		}
	}

	if b.Type == Threat {
		w.section("Threat Level: " + strings.ToUpper(string(b.ThreatLevel)))
		w.blank()
		threats := func(title string, level registry.ThreatLevel, list []ThreatEntry) {
			if len(list) == 0 {
				return
			}
			w.section(title)
			for _, t := range list {
				line := fmt.Sprintf("- %s **%s** (%s)", marker(level), t.Title, t.Source)
				if len(t.RelatedProjects) > 0 {
					line += " [" + strings.Join(t.RelatedProjects, ", ") + "]"
				}
				w.line("%s", line)
			}
			w.blank()
		}
		threats("Critical Threats", registry.ThreatCritical, b.CriticalThreats)
		threats("High Threats", registry.ThreatHigh, b.HighThreats)
		threats("Medium Threats", registry.ThreatMedium, b.MediumThreats)
		if len(b.Mitigations) > 0 {
			w.section("Mitigations")
			for _, m := range b.Mitigations {
				w.line("- %s", m)
			}
			w.blank()
		}
	}

	if b.NotFound {
		w.section("Project Not Found")
		w.line("%s", b.Error)
		w.blank()
	}
	if p := b.Project; p != nil {
		w.section("Project: " + p.Name)
		w.line("- Path: %s", p.Path)
		if len(p.Languages) > 0 {
			w.line("- Languages: %s", strings.Join(p.Languages, ", "))
		}
		w.line("- Status: %s", p.Status)
		w.line("- Health: %.1f%%", p.HealthScore)
		w.blank()
	}
	if a := b.Analysis; a != nil {
		f := a.Metrics.Factors
		w.section("Health Factors")
		w.line("| Factor | Score |")
		w.line("|---|---|")
		w.line("| Activity | %.0f |", f.Activity)
		w.line("| Documentation | %.0f |", f.Documentation)
		w.line("| Testing | %.0f |", f.Testing)
		w.line("| CI/CD | %.0f |", f.CICD)
		w.line("| Security | %.0f |", f.Security)
		w.blank()
		if len(a.Insights) > 0 {
			w.section("Insights")
			for _, in := range a.Insights {
				w.line("- %s", in)
			}
			w.blank()
		}
		if len(a.Recommendations) > 0 {
			w.section("Recommendations")
			for _, r := range a.Recommendations {
				w.line("- %s", r)
			}
			w.blank()
		}
	}
	if b.Type == Project && !b.NotFound {
		w.section("Intelligence")
		if len(b.Intelligence) == 0 {
			w.line("_No intelligence collected._")
		}
		for _, it := range b.Intelligence {
			line := fmt.Sprintf("- %s [%s] %s", marker(it.ThreatLevel), it.Type, it.Title)
			if len(it.Tags) > 0 {
				line += " `" + strings.Join(it.Tags, "` `") + "`"
			}
			w.line("%s", line)
		}
		w.blank()
	}

	if m := b.KeyMetrics; m != nil {
		w.section("Key Metrics")
		w.line("- Total Projects: %d", m.TotalProjects)
		w.line("- Ecosystem Health: %.1f%%", m.EcosystemHealth)
		w.line("- Healthy Projects: %d", m.HealthyProjects)
		w.line("- Projects at Risk: %d", m.ProjectsAtRisk)
		w.line("- Critical Projects: %d", m.CriticalCount)
		w.blank()
	}
	if r := b.RiskAssessment; r != nil {
		w.section("Risk Assessment")
		w.line("- Overall Risk: %s (%.1f%% of projects)", r.OverallRisk, r.RiskPercentage)
		w.blank()
	}
	if len(b.StrategicRecommendations) > 0 {
		w.section("Strategic Recommendations")
		for _, r := range b.StrategicRecommendations {
			w.line("- %s", r)
		}
		w.blank()
	}

	return strings.TrimRight(w.String(), "\n") + "\n"
}

type mdWriter struct {
	strings.Builder
}

func (w *mdWriter) line(format string, args ...any) {
	fmt.Fprintf(w, format, args...)
	w.WriteByte('\n')
}

func (w *mdWriter) section(title string) { w.line("## %s", title) }

func (w *mdWriter) blank() { w.WriteByte('\n') }

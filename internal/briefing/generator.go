package briefing

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/kamusis/cerebro/internal/analyzer"
	"github.com/kamusis/cerebro/internal/logger"
	"github.com/kamusis/cerebro/internal/registry"
)

var log = logger.ForComponent("briefing")

// Registry is the read side of registry.Registry used by briefings.
type Registry interface {
	GetProject(name string) (registry.Project, bool)
	ListIntelligence() []registry.IntelligenceItem
	QueryIntelligence(q registry.Query) []registry.IntelligenceItem
	GetAlerts() []registry.Alert
	EcosystemStatus() registry.EcosystemStatus
}

// Analyzer is the part of analyzer.Analyzer used by briefings.
type Analyzer interface {
	AnalyzeProject(p registry.Project) analyzer.Analysis
	AnalyzeEcosystem() analyzer.EcosystemAnalysis
}

const (
	DailyWindow  = 24 * time.Hour
	WeeklyWindow = 7 * 24 * time.Hour

	MaxDailyDevelopments  = 10
	MaxWeeklyDevelopments = 25
	MaxProjectSummaries   = 10
	MaxSummaryInsights    = 3
	MaxProjectItems       = 50
)

type Generator struct {
	reg   Registry
	an    Analyzer
	now   func() time.Time
	newID func() string
}

type Option func(*Generator)

func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// WithIDGenerator replaces uuid.NewString.
func WithIDGenerator(f func() string) Option {
	return func(g *Generator) { g.newID = f }
}

func New(reg Registry, an Analyzer, opts ...Option) *Generator {
	g := &Generator{reg: reg, an: an, now: time.Now, newID: uuid.NewString}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Generate builds a briefing of type t. project is only used by Project
// briefings.
func (g *Generator) Generate(ctx context.Context, t Type, project string) (Briefing, error) {
	if err := ctx.Err(); err != nil {
		return Briefing{}, err
	}
	now := g.now().UTC()
	b := Briefing{
		ID:             g.newID(),
		Type:           t,
		Classification: ClassificationInternal,
		Timestamp:      now,
	}
	switch t {
	case Daily:
		g.periodic(&b, DailyWindow, MaxDailyDevelopments)
	case Weekly:
		g.periodic(&b, WeeklyWindow, MaxWeeklyDevelopments)
		g.weekly(&b)
	case Threat:
		b.Classification = ClassificationConfidential
		g.threat(&b)
	case Project:
		g.project(&b, project)
	case Executive:
		g.executive(&b)
	default:
		return Briefing{}, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
	log.Debug("briefing generated", "type", t, "id", b.ID)
	return b, nil
}

func (g *Generator) periodic(b *Briefing, window time.Duration, maxItems int) {
	start := b.Timestamp.Add(-window)
	b.Period = &Period{Start: start, End: b.Timestamp}

	st := g.reg.EcosystemStatus()
	b.EcosystemStatus = &StatusSummary{
		TotalProjects:     st.TotalProjects,
		ActiveProjects:    st.ActiveProjects,
		TotalIntelligence: st.TotalIntelligence,
		HealthScore:       st.HealthScore,
	}

	b.KeyDevelopments = make([]Development, 0)
	for _, it := range g.reg.ListIntelligence() {
		if len(b.KeyDevelopments) == maxItems {
			break
		}
		if it.Timestamp.Before(start) {
			// newest first, so nothing later qualifies
			break
		}
		b.KeyDevelopments = append(b.KeyDevelopments, Development{
			ID:          it.ID,
			Type:        it.Type,
			Title:       it.Title,
			Source:      it.Source,
			ThreatLevel: it.ThreatLevel,
			Timestamp:   it.Timestamp,
		})
	}

	b.Alerts = g.reg.GetAlerts()
	b.ActionItems = actionItems(b.Alerts)

	label := "Daily"
	if b.Type == Weekly {
		label = "Weekly"
	}
	b.Summary = fmt.Sprintf("%s briefing for the ecosystem. %d projects tracked (%d active). "+
		"Ecosystem health: %.1f%%. %d key developments, %d alerts.",
		label, st.TotalProjects, st.ActiveProjects, st.HealthScore, len(b.KeyDevelopments), len(b.Alerts))
}

func actionItems(alerts []registry.Alert) []string {
	out := make([]string, 0, len(alerts))
	for _, a := range alerts {
		switch a.Type {
		case registry.AlertLowHealth:
			out = append(out, fmt.Sprintf("Review project %s (health %.1f)", a.Project, a.Score))
		case registry.AlertCriticalIntel:
			out = append(out, fmt.Sprintf("Investigate critical intelligence %s: %s", registry.ShortID(a.ID), a.Title))
		}
	}
	return out
}

func (g *Generator) weekly(b *Briefing) {
	eco := g.an.AnalyzeEcosystem()
	b.EcosystemAnalysis = &eco

	summaries := make([]ProjectSummary, 0, len(eco.Projects))
	for _, an := range eco.Projects {
		ins := an.Insights
		if len(ins) > MaxSummaryInsights {
			ins = ins[:MaxSummaryInsights]
		}
		summaries = append(summaries, ProjectSummary{
			Name:        an.Project,
			HealthScore: an.HealthScore,
			Status:      an.Status,
			Insights:    slices.Clone(ins),
		})
	}
	slices.SortFunc(summaries, func(x, y ProjectSummary) int {
		if c := cmp.Compare(x.HealthScore, y.HealthScore); c != 0 {
			return c
		}
		return cmp.Compare(x.Name, y.Name)
	})
	if len(summaries) > MaxProjectSummaries {
		summaries = summaries[:MaxProjectSummaries]
	}
	b.ProjectSummaries = summaries
}

func (g *Generator) threat(b *Briefing) {
	b.CriticalThreats = make([]ThreatEntry, 0)
	b.HighThreats = make([]ThreatEntry, 0)
	b.MediumThreats = make([]ThreatEntry, 0)
	for _, it := range g.reg.ListIntelligence() {
		e := ThreatEntry{
			ID:              it.ID,
			Title:           it.Title,
			Source:          it.Source,
			RelatedProjects: it.RelatedProjects,
			Timestamp:       it.Timestamp,
		}
		switch it.ThreatLevel {
		case registry.ThreatCritical:
			b.CriticalThreats = append(b.CriticalThreats, e)
		case registry.ThreatHigh:
			b.HighThreats = append(b.HighThreats, e)
		case registry.ThreatMedium:
			b.MediumThreats = append(b.MediumThreats, e)
		}
	}

	b.ThreatLevel = registry.ThreatInfo
	b.Mitigations = make([]string, 0)
	if n := len(b.CriticalThreats); n > 0 {
		b.ThreatLevel = registry.ThreatCritical
		b.Mitigations = append(b.Mitigations,
			fmt.Sprintf("Triage %d critical threat(s) immediately and assign an owner to each", n))
	}
	if n := len(b.HighThreats); n > 0 {
		if b.ThreatLevel == registry.ThreatInfo {
			b.ThreatLevel = registry.ThreatHigh
		}
		b.Mitigations = append(b.Mitigations,
			fmt.Sprintf("Schedule remediation of %d high threat(s) within the week", n))
	}
	if n := len(b.MediumThreats); n > 0 {
		if b.ThreatLevel == registry.ThreatInfo {
			b.ThreatLevel = registry.ThreatMedium
		}
		b.Mitigations = append(b.Mitigations,
			fmt.Sprintf("Track %d medium threat(s) in the backlog", n))
	}
}

func (g *Generator) project(b *Briefing, name string) {
	if name == "" {
		b.NotFound = true
		b.Error = "project name required"
		return
	}
	p, ok := g.reg.GetProject(name)
	if !ok {
		b.NotFound = true
		b.Error = "project not found: " + name
		return
	}

	an := g.an.AnalyzeProject(p)
	b.Analysis = &an
	b.Project = &ProjectHeader{
		Name:        p.Name,
		Path:        p.Path,
		Languages:   p.Languages,
		Status:      an.Status,
		HealthScore: an.HealthScore,
	}

	items := g.reg.QueryIntelligence(registry.Query{Projects: []string{name}, Limit: MaxProjectItems})
	b.Intelligence = make([]ProjectItem, 0, len(items))
	for _, it := range items {
		b.Intelligence = append(b.Intelligence, ProjectItem{
			ID:          it.ID,
			Type:        it.Type,
			Title:       it.Title,
			ThreatLevel: it.ThreatLevel,
			Tags:        it.Tags,
		})
	}
}

// Headlines for executive briefings.
const (
	HeadlineHealthy        = "Ecosystem Status: HEALTHY"
	HeadlineNeedsAttention = "Ecosystem Status: NEEDS ATTENTION"
	HeadlineAtRisk         = "Ecosystem Status: AT RISK"
)

func (g *Generator) executive(b *Briefing) {
	eco := g.an.AnalyzeEcosystem()
	d := eco.HealthDistribution

	b.KeyMetrics = &KeyMetrics{
		TotalProjects:   eco.TotalProjects,
		EcosystemHealth: eco.EcosystemHealth,
		HealthyProjects: d.Healthy,
		ProjectsAtRisk:  d.AtRisk,
		CriticalCount:   d.Critical,
	}

	var pct float64
	if eco.TotalProjects > 0 {
		pct = float64(d.AtRisk+d.Critical) / float64(eco.TotalProjects) * 100
	}
	risk := "LOW"
	switch {
	case pct > 30:
		risk = "HIGH"
	case pct > 10:
		risk = "MEDIUM"
	}
	b.RiskAssessment = &RiskAssessment{OverallRisk: risk, RiskPercentage: math.Round(pct*10) / 10}

	b.StrategicRecommendations = make([]string, 0)
	if d.Critical > 0 {
		b.StrategicRecommendations = append(b.StrategicRecommendations,
			"URGENT: Address critical projects requiring immediate attention")
	}
	if d.AtRisk > 3 {
		b.StrategicRecommendations = append(b.StrategicRecommendations,
			"Multiple projects at risk - consider resource reallocation")
	}
	b.StrategicRecommendations = append(b.StrategicRecommendations, eco.Recommendations...)

	switch {
	case eco.EcosystemHealth >= 70:
		b.Headline = HeadlineHealthy
	case eco.EcosystemHealth >= 50:
		b.Headline = HeadlineNeedsAttention
	default:
		b.Headline = HeadlineAtRisk
	}
}

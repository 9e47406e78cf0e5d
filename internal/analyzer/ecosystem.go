package analyzer

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/kamusis/cerebro/internal/registry"
)

// HealthDistribution buckets projects by freshly computed score.
type HealthDistribution struct {
	Healthy        int `json:"healthy"`         // >= 70
	NeedsAttention int `json:"needs_attention"` // 40-69.9
	AtRisk         int `json:"at_risk"`         // 20-39.9
	Critical       int `json:"critical"`        // < 20
}

// Issue is a recommendation shared by several projects.
type Issue struct {
	Recommendation string   `json:"recommendation"`
	Projects       []string `json:"projects"`
}

// EcosystemAnalysis rolls up AnalyzeProject over every registered project.
type EcosystemAnalysis struct {
	Timestamp            time.Time          `json:"timestamp"`
	TotalProjects        int                `json:"total_projects"`
	HealthDistribution   HealthDistribution `json:"health_distribution"`
	EcosystemHealth      float64            `json:"ecosystem_health"`
	LanguageDistribution map[string]int     `json:"language_distribution"`
	TopIssues            []Issue            `json:"top_issues"`
	Recommendations      []string           `json:"recommendations"`
	Projects             []Analysis         `json:"projects"`
}

// MaxTopIssues caps EcosystemAnalysis.TopIssues.
const MaxTopIssues = 5

// AnalyzeEcosystem analyses every project. The registry is not modified;
// pass each entry of Projects to Apply to persist the scores.
func (a *Analyzer) AnalyzeEcosystem() EcosystemAnalysis {
	projects := a.src.ListProjects()
	out := EcosystemAnalysis{
		Timestamp:            a.now().UTC(),
		TotalProjects:        len(projects),
		LanguageDistribution: make(map[string]int),
		TopIssues:            make([]Issue, 0),
		Recommendations:      make([]string, 0),
		Projects:             make([]Analysis, 0, len(projects)),
	}

	byRec := make(map[string][]string)
	var sum float64
	for _, p := range projects {
		an := a.AnalyzeProject(p)
		out.Projects = append(out.Projects, an)
		sum += an.HealthScore

		switch {
		case an.HealthScore >= 70:
			out.HealthDistribution.Healthy++
		case an.HealthScore >= 40:
			out.HealthDistribution.NeedsAttention++
		case an.HealthScore >= 20:
			out.HealthDistribution.AtRisk++
		default:
			out.HealthDistribution.Critical++
		}

		for _, lang := range projectLanguages(p.Languages, a.src.ProjectIntelligence(p.Name)) {
			out.LanguageDistribution[lang]++
		}
		for _, rec := range an.Recommendations {
			byRec[rec] = append(byRec[rec], p.Name)
		}
	}
	if len(projects) > 0 {
		out.EcosystemHealth = sum / float64(len(projects))
	}

	for rec, names := range byRec {
		out.TopIssues = append(out.TopIssues, Issue{Recommendation: rec, Projects: names})
	}
	slices.SortFunc(out.TopIssues, func(x, y Issue) int {
		if c := cmp.Compare(len(y.Projects), len(x.Projects)); c != 0 {
			return c
		}
		return cmp.Compare(x.Recommendation, y.Recommendation)
	})
	if len(out.TopIssues) > MaxTopIssues {
		out.TopIssues = out.TopIssues[:MaxTopIssues]
	}

	d := out.HealthDistribution
	if d.Critical > 0 {
		out.Recommendations = append(out.Recommendations,
			fmt.Sprintf("%d project(s) in critical health: review for archival or investment", d.Critical))
	}
	if d.AtRisk > 0 {
		out.Recommendations = append(out.Recommendations,
			fmt.Sprintf("%d project(s) at risk: prioritise documentation and testing", d.AtRisk))
	}
	if len(out.TopIssues) > 0 && len(out.TopIssues[0].Projects) > 1 {
		top := out.TopIssues[0]
		out.Recommendations = append(out.Recommendations,
			fmt.Sprintf("%s across %d projects", top.Recommendation, len(top.Projects)))
	}
	return out
}

// projectLanguages merges declared languages with those reported by
// structure items, preserving first-seen order.
func projectLanguages(declared []string, items []registry.IntelligenceItem) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(l string) {
		if l != "" && !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	for _, l := range declared {
		add(l)
	}
	for _, it := range items {
		if it.HasTag("structure") {
			for _, l := range metadataStrings(it.Metadata, "languages") {
				add(l)
			}
		}
	}
	return out
}

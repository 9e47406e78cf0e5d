package analyzer

import (
	"math"
	"time"

	"github.com/kamusis/cerebro/internal/registry"
)

// Factor weights; they sum to 1.
const (
	WeightActivity      = 0.30
	WeightDocumentation = 0.20
	WeightTesting       = 0.20
	WeightCICD          = 0.15
	WeightSecurity      = 0.15
)

// ActivityWindow is how far back a git item counts as recent activity.
const ActivityWindow = 30 * 24 * time.Hour

// Factors are the five 0-100 health inputs.
type Factors struct {
	Activity      float64 `json:"activity"`
	Documentation float64 `json:"documentation"`
	Testing       float64 `json:"testing"`
	CICD          float64 `json:"ci_cd"`
	Security      float64 `json:"security"`
}

// ComputeFactors derives the health factors from a project's items.
func ComputeFactors(items []registry.IntelligenceItem, now time.Time) Factors {
	var recentGit, docs, adrs, security int
	var testing, ci bool
	cutoff := now.Add(-ActivityWindow)
	for _, it := range items {
		if it.HasTag("git") && it.Timestamp.After(cutoff) {
			recentGit++
		}
		if it.HasTag("documentation") || it.HasTag("readme") {
			docs++
		}
		if it.HasTag("adr") {
			adrs++
		}
		if it.HasTag("testing") {
			testing = true
		}
		if it.HasTag("ci") || it.HasTag("devops") {
			ci = true
		}
		if it.ThreatLevel == registry.ThreatHigh || it.ThreatLevel == registry.ThreatCritical {
			security++
		}
	}

	f := Factors{
		Activity:      math.Min(100, float64(recentGit*10)),
		Documentation: math.Min(100, float64(docs*15+adrs*20)),
		Security:      math.Max(0, float64(100-security*20)),
	}
	if testing {
		f.Testing = 80
	}
	if ci {
		f.CICD = 100
	}
	return f
}

// Score is the weighted sum of f rounded to one decimal and clamped to [0,100].
func Score(f Factors) float64 {
	sum := f.Activity*WeightActivity +
		f.Documentation*WeightDocumentation +
		f.Testing*WeightTesting +
		f.CICD*WeightCICD +
		f.Security*WeightSecurity
	return registry.ClampScore(math.Round(sum*10) / 10)
}

// StatusFromScore maps a health score onto a lifecycle status.
func StatusFromScore(score float64) registry.ProjectStatus {
	switch {
	case score >= 70:
		return registry.StatusActive
	case score >= 40:
		return registry.StatusMaintenance
	case score >= 20:
		return registry.StatusDeprecated
	default:
		return registry.StatusArchived
	}
}

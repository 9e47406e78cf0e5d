package cmd

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kamusis/cerebro/internal/analyzer"
	"github.com/kamusis/cerebro/internal/cerebro"
	"github.com/kamusis/cerebro/internal/registry"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [project]",
	Short: "Score project health and store the result",
	Long: `Compute health factors, insights and recommendations for one project,
or for every registered project when no name is given. Scores and statuses
are written back to the registry.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Show the ecosystem rollup from stored scores",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withService(cmd, false, func(_ context.Context, svc *cerebro.Service) error {
			return printEcosystemStatus(svc.EcosystemStatus(), svc.ListProjects())
		})
	},
}

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "List low-health projects and critical intelligence",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withService(cmd, false, func(_ context.Context, svc *cerebro.Service) error {
			return printAlerts(svc.GetAlerts())
		})
	},
}

var depsCmd = &cobra.Command{
	Use:   "deps",
	Short: "Build the dependency graph from project manifests",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withService(cmd, true, func(ctx context.Context, svc *cerebro.Service) error {
			return printGraph(svc.DependencyGraph(ctx))
		})
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd, healthCmd, alertsCmd, depsCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	return withService(cmd, true, func(_ context.Context, svc *cerebro.Service) error {
		if len(args) == 1 {
			an, ok := svc.AnalyzeProject(args[0])
			if !ok {
				return fmt.Errorf("project not found: %s", args[0])
			}
			if flagJSON {
				return printJSON(an)
			}
			printAnalysis(an)
			return nil
		}

		eco := svc.AnalyzeEcosystem()
		if flagJSON {
			return printJSON(eco)
		}
		printEcosystemAnalysis(eco)
		return nil
	})
}

func printAnalysis(an analyzer.Analysis) {
	printSection("Analysis: " + an.Project)
	fmt.Fprintf(out, "  Health: %s (%s)\n",
		healthColor(an.HealthScore).Sprintf("%.1f", an.HealthScore), statusColorName(an.Status))

	f := an.Metrics.Factors
	printBullet("Health factors:")
	for _, row := range []struct {
		name  string
		value float64
	}{
		{"activity", f.Activity},
		{"documentation", f.Documentation},
		{"testing", f.Testing},
		{"ci_cd", f.CICD},
		{"security", f.Security},
	} {
		fmt.Fprintf(out, "  %-14s %s\n", row.name, healthColor(row.value).Sprintf("%5.1f", row.value))
	}

	if len(an.Insights) > 0 {
		printBullet("Insights:")
		for _, s := range an.Insights {
			if strings.HasPrefix(s, "ALERT") {
				printWarn("", s)
			} else {
				printInfo("", s)
			}
		}
	}
	if len(an.Recommendations) > 0 {
		printBullet("Recommendations:")
		for _, s := range an.Recommendations {
			printLine(out, warnColor, "→", "", s)
		}
	}
}

func printEcosystemAnalysis(eco analyzer.EcosystemAnalysis) {
	printSection("Ecosystem analysis")
	if eco.TotalProjects == 0 {
		printMiss("", "no projects registered")
		return
	}
	fmt.Fprintf(out, "  Projects: %d   Health: %s\n", eco.TotalProjects,
		healthColor(eco.EcosystemHealth).Sprintf("%.1f", eco.EcosystemHealth))
	d := eco.HealthDistribution
	fmt.Fprintf(out, "  Healthy %d · Needs attention %d · At risk %d · Critical %d\n",
		d.Healthy, d.NeedsAttention, d.AtRisk, d.Critical)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\n  PROJECT\tHEALTH\tSTATUS")
	for _, an := range eco.Projects {
		fmt.Fprintf(tw, "  %s\t%.1f\t%s\n", an.Project, an.HealthScore, an.Status)
	}
	_ = tw.Flush()

	if len(eco.LanguageDistribution) > 0 {
		langs := make([]string, 0, len(eco.LanguageDistribution))
		for l := range eco.LanguageDistribution {
			langs = append(langs, l)
		}
		sort.Slice(langs, func(i, j int) bool {
			a, b := eco.LanguageDistribution[langs[i]], eco.LanguageDistribution[langs[j]]
			if a != b {
				return a > b
			}
			return langs[i] < langs[j]
		})
		parts := make([]string, len(langs))
		for i, l := range langs {
			parts[i] = fmt.Sprintf("%s (%d)", l, eco.LanguageDistribution[l])
		}
		printBullet("Languages: " + strings.Join(parts, ", "))
	}
	if len(eco.TopIssues) > 0 {
		printBullet("Top issues:")
		for _, is := range eco.TopIssues {
			printWarn("", fmt.Sprintf("%s (%s)", is.Recommendation, strings.Join(is.Projects, ", ")))
		}
	}
	if len(eco.Recommendations) > 0 {
		printBullet("Recommendations:")
		for _, s := range eco.Recommendations {
			printLine(out, warnColor, "→", "", s)
		}
	}
}

func printEcosystemStatus(st registry.EcosystemStatus, projects []registry.Project) error {
	if flagJSON {
		return printJSON(st)
	}
	printSection("Ecosystem health")
	fmt.Fprintf(out, "  Health:       %s\n", healthColor(st.HealthScore).Sprintf("%.1f%%", st.HealthScore))
	fmt.Fprintf(out, "  Projects:     %d (%d active)\n", st.TotalProjects, st.ActiveProjects)
	fmt.Fprintf(out, "  Intelligence: %d item(s)\n", st.TotalIntelligence)
	fmt.Fprintf(out, "  Last scan:    %s\n", formatTime(st.LastScan))

	if len(projects) > 0 {
		sorted := append([]registry.Project(nil), projects...)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].HealthScore < sorted[j].HealthScore })
		printBullet("Projects (lowest health first):")
		for _, p := range sorted {
			printLine(out, healthColor(p.HealthScore), "●", p.Name, fmt.Sprintf("%.1f %s", p.HealthScore, p.Status))
		}
	}
	if n := len(st.Alerts); n > 0 {
		printWarn("", fmt.Sprintf("%d alert(s); run 'cerebro alerts'", n))
	}
	return nil
}

func printAlerts(alerts []registry.Alert) error {
	if flagJSON {
		return printJSON(alerts)
	}
	if len(alerts) == 0 {
		printOK("", "no alerts")
		return nil
	}
	printSection("Alerts")
	for _, a := range alerts {
		switch a.Type {
		case registry.AlertCriticalIntel:
			printErr(registry.ShortID(a.ID), a.Message)
		default:
			printWarn(a.Project, a.Message)
		}
	}
	return nil
}

func printGraph(graph map[string][]string) error {
	if flagJSON {
		return printJSON(graph)
	}
	if len(graph) == 0 {
		printMiss("", "no projects registered")
		return nil
	}
	names := make([]string, 0, len(graph))
	for n := range graph {
		names = append(names, n)
	}
	sort.Strings(names)
	printSection("Dependencies")
	for _, n := range names {
		deps := graph[n]
		if len(deps) == 0 {
			printSkip(n, "no dependencies on other projects")
			continue
		}
		printInfo(n, "→ "+strings.Join(deps, ", "))
	}
	return nil
}

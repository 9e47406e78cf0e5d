package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kamusis/cerebro/internal/cerebro"
	"github.com/kamusis/cerebro/internal/config"
	"github.com/kamusis/cerebro/internal/registry"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Register and inspect tracked projects",
}

var (
	flagProjectPath        string
	flagProjectDescription string
	flagProjectLanguages   []string
)

var projectAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Register a project, replacing any project with the same name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, true, func(_ context.Context, svc *cerebro.Service) error {
			return runProjectAdd(svc, args[0])
		})
	},
}

var projectListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List registered projects",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withService(cmd, false, func(_ context.Context, svc *cerebro.Service) error {
			return printProjects(svc.ListProjects())
		})
	},
}

var projectShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show one project with its recent intelligence",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, false, func(_ context.Context, svc *cerebro.Service) error {
			return runProjectShow(svc, args[0])
		})
	},
}

func init() {
	projectAddCmd.Flags().StringVar(&flagProjectPath, "path", "", "Project checkout directory (default: current directory)")
	projectAddCmd.Flags().StringVar(&flagProjectDescription, "description", "", "One-line description")
	projectAddCmd.Flags().StringSliceVar(&flagProjectLanguages, "language", nil, "Primary language (repeatable)")
	projectCmd.AddCommand(projectAddCmd, projectListCmd, projectShowCmd)
	rootCmd.AddCommand(projectCmd)
}

func runProjectAdd(svc *cerebro.Service, name string) error {
	path := flagProjectPath
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		path = wd
	}
	path, err := config.ExpandPath(path)
	if err != nil {
		return err
	}
	if path, err = filepath.Abs(path); err != nil {
		return err
	}
	if info, err := os.Stat(path); err != nil || !info.IsDir() {
		printWarn(name, fmt.Sprintf("path %s is not a directory; collectors will skip it", path))
	}

	p := registry.Project{
		Name:        name,
		Path:        path,
		Description: flagProjectDescription,
		Languages:   flagProjectLanguages,
	}
	// Keep derived state when re-registering an existing project.
	if old, ok := svc.GetProject(name); ok {
		p.Status = old.Status
		p.HealthScore = old.HealthScore
		p.LastCommit = old.LastCommit
		p.LastIndexed = old.LastIndexed
		p.Dependencies = old.Dependencies
		p.Dependents = old.Dependents
		p.Metadata = old.Metadata
		p.IntelligenceCount = old.IntelligenceCount
		if len(p.Languages) == 0 {
			p.Languages = old.Languages
		}
		if p.Description == "" {
			p.Description = old.Description
		}
	}
	if err := svc.RegisterProject(p); err != nil {
		return err
	}
	printOK(name, fmt.Sprintf("registered at %s", path))
	return nil
}

func printProjects(projects []registry.Project) error {
	if flagJSON {
		return printJSON(projects)
	}
	if len(projects) == 0 {
		printMiss("", "no projects registered (run 'cerebro project add <name>')")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSTATUS\tHEALTH\tITEMS\tLAST COMMIT\tLANGUAGES")
	for _, p := range projects {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			p.Name, p.Status, healthColor(p.HealthScore).Sprintf("%.1f", p.HealthScore),
			p.IntelligenceCount, formatTime(p.LastCommit), strings.Join(p.Languages, ", "))
	}
	return tw.Flush()
}

const showRecentItems = 10

func runProjectShow(svc *cerebro.Service, name string) error {
	p, ok := svc.GetProject(name)
	if !ok {
		return fmt.Errorf("project not found: %s", name)
	}
	items := svc.QueryIntelligence(registry.Query{Projects: []string{name}, Limit: showRecentItems})
	if flagJSON {
		return printJSON(struct {
			Project registry.Project            `json:"project"`
			Recent  []registry.IntelligenceItem `json:"recent"`
		}{p, items})
	}

	printSection(p.Name)
	fmt.Fprintf(out, "  Path:         %s\n", p.Path)
	if p.Description != "" {
		fmt.Fprintf(out, "  Description:  %s\n", p.Description)
	}
	fmt.Fprintf(out, "  Status:       %s\n", statusColorName(p.Status))
	fmt.Fprintf(out, "  Health:       %s\n", healthColor(p.HealthScore).Sprintf("%.1f", p.HealthScore))
	fmt.Fprintf(out, "  Languages:    %s\n", orNone(strings.Join(p.Languages, ", ")))
	fmt.Fprintf(out, "  Last commit:  %s\n", formatTime(p.LastCommit))
	fmt.Fprintf(out, "  Last indexed: %s\n", formatTime(p.LastIndexed))
	fmt.Fprintf(out, "  Depends on:   %s\n", orNone(strings.Join(p.Dependencies, ", ")))
	fmt.Fprintf(out, "  Used by:      %s\n", orNone(strings.Join(p.Dependents, ", ")))
	fmt.Fprintf(out, "  Intelligence: %d item(s)\n", p.IntelligenceCount)

	if len(items) > 0 {
		printBullet("Recent intelligence:")
		for _, it := range items {
			printItemLine(it)
		}
	}
	return nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

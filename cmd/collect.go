package cmd

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kamusis/cerebro/internal/cerebro"
	"github.com/kamusis/cerebro/internal/collect"
	"github.com/kamusis/cerebro/internal/index"
)

var flagCollectOnly []string

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Run the collectors over every registered project",
	Long: `Gather intelligence from each registered project's checkout:
git history, CI configuration, documentation and source layout.
New items are indexed for semantic search when a provider is configured.`,
	Args: cobra.NoArgs,
	RunE: runCollect,
}

func init() {
	collectCmd.Flags().StringSliceVar(&flagCollectOnly, "only", nil, "Run only these collectors: git, ci, docs, structure")
	rootCmd.AddCommand(collectCmd)
}

func runCollect(cmd *cobra.Command, _ []string) error {
	collectors, err := selectCollectors(flagCollectOnly)
	if err != nil {
		return err
	}
	if slices.ContainsFunc(collectors, func(c collect.Collector) bool { return c.Name() == "git" }) {
		if err := checkGitAvailable(); err != nil {
			printWarn("git", strings.SplitN(err.Error(), "\n", 2)[0])
		}
	}

	saved := serviceOptions
	serviceOptions = append(slices.Clone(saved), cerebro.WithCollectors(collectors...))
	defer func() { serviceOptions = saved }()

	return withService(cmd, true, func(ctx context.Context, svc *cerebro.Service) error {
		if len(svc.ListProjects()) == 0 {
			printMiss("", "no projects registered (run 'cerebro project add <name>')")
			return nil
		}
		before := svc.IndexStats().Indexed
		rep, err := svc.Collect(ctx)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(rep)
		}
		printSection("Collection")
		printOK("", fmt.Sprintf("%d project(s) scanned, %d new item(s)", rep.Projects, rep.Items))
		if rep.Known > 0 {
			printSkip("", fmt.Sprintf("%d item(s) already known", rep.Known))
		}
		if rep.Failures > 0 {
			printWarn("", fmt.Sprintf("%d collector run(s) failed; see the log for details", rep.Failures))
		}
		if st := svc.IndexStats(); st.Readiness == index.Ready.String() {
			printInfo("index", fmt.Sprintf("%d item(s) embedded", st.Indexed-before))
		} else {
			printSkip("index", "semantic search unavailable; items stored without embeddings")
		}
		return nil
	})
}

// selectCollectors filters the default collectors by name, keeping their order.
func selectCollectors(names []string) ([]collect.Collector, error) {
	all := collect.Default()
	if len(names) == 0 {
		return all, nil
	}
	var picked []collect.Collector
	for _, n := range names {
		i := slices.IndexFunc(all, func(c collect.Collector) bool { return c.Name() == strings.TrimSpace(n) })
		if i < 0 {
			return nil, fmt.Errorf("unknown collector %q", n)
		}
		picked = append(picked, all[i])
	}
	return picked, nil
}

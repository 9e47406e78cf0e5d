package cmd

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kamusis/cerebro/internal/cerebro"
	"github.com/kamusis/cerebro/internal/index"
	"github.com/kamusis/cerebro/internal/registry"
)

var (
	flagSearchK        int
	flagSearchMinScore float64
	flagSearchKeyword  bool
	flagAskK           int
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Find intelligence by meaning, falling back to substring match",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question from the closest intelligence, with citations",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	searchCmd.Flags().IntVar(&flagSearchK, "k", 0, "Number of results to show (default from config)")
	searchCmd.Flags().Float64Var(&flagSearchMinScore, "min-score", 0, "Minimum cosine similarity (default from config)")
	searchCmd.Flags().BoolVar(&flagSearchKeyword, "keyword", false, "Force substring search only")
	askCmd.Flags().IntVar(&flagAskK, "k", 5, "Number of passages to ground the answer on")
	rootCmd.AddCommand(searchCmd, askCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	return withService(cmd, false, func(ctx context.Context, svc *cerebro.Service) error {
		k := flagSearchK
		if k <= 0 {
			k = svc.Config().Index.TopK
		}

		// Default: attempt semantic; fall back to substring on an empty result.
		if !flagSearchKeyword && svc.IndexStats().Readiness == index.Ready.String() {
			minScore := svc.Config().Index.MinScore
			if cmd.Flags().Changed("min-score") {
				minScore = flagSearchMinScore
			}
			res, err := svc.Search(ctx, query, k, minScore)
			if err != nil {
				return err
			}
			hits := make([]index.Hit, 0, len(res))
			for _, r := range res {
				if it, ok := svc.GetIntelligence(r.ID); ok {
					hits = append(hits, index.Hit{Item: it, Score: r.Score})
				}
			}
			if len(hits) > 0 {
				return printHits(query, hits)
			}
			printInfo("", "no semantic matches, falling back to substring search")
		}

		items := svc.QueryIntelligence(registry.Query{Text: query, Limit: k})
		hits := make([]index.Hit, len(items))
		for i, it := range items {
			hits[i] = index.Hit{Item: it}
		}
		return printHits(query, hits)
	})
}

func printHits(query string, hits []index.Hit) error {
	if flagJSON {
		return printJSON(hits)
	}
	if len(hits) == 0 {
		printMiss("", fmt.Sprintf("no results for %q", query))
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SCORE\tID\tTHREAT\tPROJECTS\tTITLE")
	for _, h := range hits {
		score := "-"
		if h.Score != 0 {
			score = fmt.Sprintf("%.3f", h.Score)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			score, registry.ShortID(h.Item.ID), h.Item.ThreatLevel,
			strings.Join(h.Item.RelatedProjects, ","), h.Item.Title)
	}
	return tw.Flush()
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")
	return withService(cmd, false, func(ctx context.Context, svc *cerebro.Service) error {
		ans, err := svc.Ask(ctx, question, flagAskK)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(ans)
		}
		if len(ans.Sources) == 0 {
			printMiss("", "no intelligence is close enough to answer")
			return nil
		}
		fmt.Fprintf(out, "\n%s\n", ans.Answer)
		printBullet("Sources:")
		for i, h := range ans.Sources {
			mark := " "
			for _, c := range ans.Citations {
				if c == i+1 {
					mark = okColor.Sprint("*")
				}
			}
			fmt.Fprintf(out, "  %s [%d] %s  %s\n", mark, i+1, registry.ShortID(h.Item.ID), h.Item.Title)
		}
		if ans.CostEstimate > 0 {
			printInfo("", fmt.Sprintf("estimated cost $%.4f", ans.CostEstimate))
		}
		return nil
	})
}

package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kamusis/cerebro/internal/cerebro"
	"github.com/kamusis/cerebro/internal/index"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the semantic index",
}

var flagIndexRebuild bool

var indexBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Embed every item that is not yet indexed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withService(cmd, true, func(ctx context.Context, svc *cerebro.Service) error {
			if err := requireReady(svc); err != nil {
				return err
			}
			if flagIndexRebuild {
				if err := svc.ClearIndex(ctx); err != nil {
					return err
				}
				printInfo("", "index cleared")
			}
			n, err := svc.IndexAll(ctx)
			if err != nil {
				return err
			}
			if n == 0 {
				printSkip("", "index is up to date")
			} else {
				printOK("", fmt.Sprintf("%d item(s) embedded", n))
			}
			return printIndexStats(svc.IndexStats())
		})
	},
}

var indexClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop every vector; items stay in the registry",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withService(cmd, true, func(ctx context.Context, svc *cerebro.Service) error {
			if err := svc.ClearIndex(ctx); err != nil {
				return err
			}
			printOK("", "index cleared")
			return nil
		})
	},
}

var indexCompactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Rewrite the index without superseded rows",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withService(cmd, true, func(ctx context.Context, svc *cerebro.Service) error {
			n, err := svc.CompactIndex(ctx)
			if err != nil {
				return err
			}
			if n == 0 {
				printSkip("", "nothing to compact")
				return nil
			}
			printOK("", fmt.Sprintf("%d row(s) removed", n))
			return nil
		})
	},
}

var indexStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index model, width and row counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withService(cmd, false, func(_ context.Context, svc *cerebro.Service) error {
			return printIndexStats(svc.IndexStats())
		})
	},
}

func init() {
	indexBuildCmd.Flags().BoolVar(&flagIndexRebuild, "rebuild", false, "Clear the index before embedding")
	indexCmd.AddCommand(indexBuildCmd, indexClearCmd, indexCompactCmd, indexStatsCmd)
	rootCmd.AddCommand(indexCmd)
}

func requireReady(svc *cerebro.Service) error {
	if svc.IndexStats().Readiness != index.Ready.String() {
		return errors.New("semantic search is not available\n" +
			"  Set CEREBRO_EMBEDDINGS_PROVIDER (openai, gemini or hash) in ~/.cerebro/.env\n" +
			"  and run 'cerebro doctor' to check it.")
	}
	return nil
}

func printIndexStats(st index.Stats) error {
	if flagJSON {
		return printJSON(st)
	}
	printSection("Index")
	fmt.Fprintf(out, "  Readiness:  %s\n", st.Readiness)
	fmt.Fprintf(out, "  Model:      %s\n", orNone(st.Model))
	fmt.Fprintf(out, "  Dimension:  %d\n", st.Dim)
	fmt.Fprintf(out, "  Indexed:    %d\n", st.Indexed)
	fmt.Fprintf(out, "  Superseded: %d\n", st.Tombstoned)
	return nil
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kamusis/cerebro/internal/briefing"
	"github.com/kamusis/cerebro/internal/cerebro"
)

var (
	flagBriefingProject string
	flagBriefingFormat  string
	flagBriefingOutput  string
)

var briefingCmd = &cobra.Command{
	Use:   "briefing <daily|weekly|threat|project|executive>",
	Short: "Generate an intelligence briefing",
	Long: `Generate a briefing from the registry.

  daily      developments and alerts from the last 24 hours
  weekly     the last 7 days plus per-project health summaries
  threat     high and critical intelligence with mitigations
  project    one project's analysis and intelligence (needs --project)
  executive  key metrics, risk assessment and strategic recommendations`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: briefingTypeNames(),
	RunE:      runBriefing,
}

func init() {
	briefingCmd.Flags().StringVarP(&flagBriefingProject, "project", "p", "", "Project name for a project briefing")
	briefingCmd.Flags().StringVarP(&flagBriefingFormat, "format", "f", "md", "Output format: md or json")
	briefingCmd.Flags().StringVarP(&flagBriefingOutput, "output", "o", "", "Write to this file instead of stdout")
	rootCmd.AddCommand(briefingCmd)
}

func briefingTypeNames() []string {
	names := make([]string, len(briefing.Types))
	for i, t := range briefing.Types {
		names[i] = string(t)
	}
	return names
}

func runBriefing(cmd *cobra.Command, args []string) error {
	t, err := briefing.ParseType(args[0])
	if err != nil {
		return fmt.Errorf("%w (want one of %s)", err, strings.Join(briefingTypeNames(), ", "))
	}
	format := strings.ToLower(flagBriefingFormat)
	if flagJSON {
		format = "json"
	}
	if format != "md" && format != "markdown" && format != "json" {
		return fmt.Errorf("unknown format %q (want md or json)", flagBriefingFormat)
	}

	return withService(cmd, false, func(ctx context.Context, svc *cerebro.Service) error {
		b, err := svc.GenerateBriefing(ctx, t, flagBriefingProject)
		if err != nil {
			return err
		}
		var body []byte
		if format == "json" {
			if body, err = briefing.ToJSON(b); err != nil {
				return err
			}
			body = append(body, '\n')
		} else {
			body = []byte(svc.ToMarkdown(b))
		}

		if flagBriefingOutput == "" {
			_, err = out.Write(body)
		} else if err = os.WriteFile(flagBriefingOutput, body, 0o644); err == nil {
			printOK("", fmt.Sprintf("%s briefing written to %s", t, flagBriefingOutput))
		}
		if err != nil {
			return err
		}
		if b.NotFound {
			return errors.New(b.Error)
		}
		return nil
	})
}

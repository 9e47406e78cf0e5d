package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kamusis/cerebro/internal/cerebro"
	"github.com/kamusis/cerebro/internal/registry"
)

var intelCmd = &cobra.Command{
	Use:     "intel",
	Aliases: []string{"intelligence"},
	Short:   "Add, fetch and filter intelligence items",
}

var (
	flagIntelType     string
	flagIntelSource   string
	flagIntelTitle    string
	flagIntelContent  string
	flagIntelThreat   string
	flagIntelTags     []string
	flagIntelProjects []string

	flagQueryTypes    string
	flagQueryProjects []string
	flagQueryLimit    int
)

var intelAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Record an intelligence item (content from --content or stdin)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		item, err := intelFromFlags(cmd.InOrStdin())
		if err != nil {
			return err
		}
		return withService(cmd, true, func(ctx context.Context, svc *cerebro.Service) error {
			for _, p := range item.RelatedProjects {
				if _, ok := svc.GetProject(p); !ok {
					printWarn(p, "project is not registered")
				}
			}
			id, err := svc.AddIntelligence(ctx, item)
			if err != nil {
				return err
			}
			if flagJSON {
				return printJSON(map[string]string{"id": id})
			}
			printOK(registry.ShortID(id), item.Title)
			return nil
		})
	},
}

var intelGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one item by full ID or unique prefix",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, false, func(_ context.Context, svc *cerebro.Service) error {
			it, err := svc.FindIntelligence(args[0])
			if err != nil {
				return err
			}
			if flagJSON {
				return printJSON(it)
			}
			printItemDetail(it)
			return nil
		})
	},
}

var intelQueryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Filter items by substring, type and project, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		q := registry.Query{
			Text:     strings.Join(args, " "),
			Projects: flagQueryProjects,
			Limit:    flagQueryLimit,
		}
		if flagQueryTypes != "" {
			for _, s := range strings.Split(flagQueryTypes, ",") {
				t, err := registry.ParseIntelligenceType(s)
				if err != nil {
					return err
				}
				q.Types = append(q.Types, t)
			}
		}
		return withService(cmd, false, func(_ context.Context, svc *cerebro.Service) error {
			items := svc.QueryIntelligence(q)
			if flagJSON {
				return printJSON(items)
			}
			if len(items) == 0 {
				printMiss("", "no matching intelligence")
				return nil
			}
			for _, it := range items {
				printItemLine(it)
			}
			return nil
		})
	},
}

var intelSupersedeCmd = &cobra.Command{
	Use:   "supersede <id>",
	Short: "Hide an item from semantic search until the index is rebuilt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, true, func(_ context.Context, svc *cerebro.Service) error {
			it, err := svc.FindIntelligence(args[0])
			if err != nil {
				return err
			}
			ok, err := svc.SupersedeIntelligence(it.ID)
			if err != nil {
				return err
			}
			if !ok {
				printSkip(registry.ShortID(it.ID), "not in the semantic index")
				return nil
			}
			printOK(registry.ShortID(it.ID), "superseded; run 'cerebro index compact' to reclaim space")
			return nil
		})
	},
}

func init() {
	f := intelAddCmd.Flags()
	f.StringVar(&flagIntelType, "type", "humint", "Intelligence type: sigint, humint, osint, techint")
	f.StringVar(&flagIntelSource, "source", "manual", "Where the fact came from")
	f.StringVar(&flagIntelTitle, "title", "", "Short title (required)")
	f.StringVar(&flagIntelContent, "content", "", "Body text; read from stdin when empty")
	f.StringVar(&flagIntelThreat, "threat", "info", "Threat level: critical, high, medium, low, info")
	f.StringSliceVar(&flagIntelTags, "tag", nil, "Tag (repeatable)")
	f.StringSliceVar(&flagIntelProjects, "project", nil, "Related project (repeatable)")
	_ = intelAddCmd.MarkFlagRequired("title")

	q := intelQueryCmd.Flags()
	q.StringVar(&flagQueryTypes, "type", "", "Comma-separated intelligence types")
	q.StringSliceVar(&flagQueryProjects, "project", nil, "Only items related to this project (repeatable)")
	q.IntVar(&flagQueryLimit, "limit", 20, "Maximum items to show (0 = all)")

	intelCmd.AddCommand(intelAddCmd, intelGetCmd, intelQueryCmd, intelSupersedeCmd)
	rootCmd.AddCommand(intelCmd)
}

func intelFromFlags(stdin io.Reader) (registry.IntelligenceItem, error) {
	t, err := registry.ParseIntelligenceType(flagIntelType)
	if err != nil {
		return registry.IntelligenceItem{}, err
	}
	lvl, err := registry.ParseThreatLevel(flagIntelThreat)
	if err != nil {
		return registry.IntelligenceItem{}, err
	}
	content := flagIntelContent
	if content == "" {
		if f, ok := stdin.(*os.File); ok {
			if info, err := f.Stat(); err == nil && info.Mode()&os.ModeCharDevice != 0 {
				return registry.IntelligenceItem{}, fmt.Errorf("no --content given and stdin is a terminal")
			}
		}
		b, err := io.ReadAll(stdin)
		if err != nil {
			return registry.IntelligenceItem{}, fmt.Errorf("cannot read content from stdin: %w", err)
		}
		content = strings.TrimSpace(string(b))
	}
	if content == "" {
		return registry.IntelligenceItem{}, fmt.Errorf("content is empty")
	}
	return registry.IntelligenceItem{
		Type:            t,
		Source:          flagIntelSource,
		Title:           flagIntelTitle,
		Content:         content,
		ThreatLevel:     lvl,
		Tags:            flagIntelTags,
		RelatedProjects: flagIntelProjects,
	}, nil
}

func threatColor(t registry.ThreatLevel) *color.Color {
	switch t {
	case registry.ThreatCritical, registry.ThreatHigh:
		return errColor
	case registry.ThreatMedium:
		return warnColor
	case registry.ThreatLow:
		return infoColor
	default:
		return faintColor
	}
}

func printItemLine(it registry.IntelligenceItem) {
	fmt.Fprintf(out, "  %s  %s  %-8s %s  %s\n",
		threatColor(it.ThreatLevel).Sprintf("%-8s", it.ThreatLevel),
		faintColor.Sprint(registry.ShortID(it.ID)),
		it.Type, it.Timestamp.Local().Format("2006-01-02"), it.Title)
}

func printItemDetail(it registry.IntelligenceItem) {
	printSection(it.Title)
	fmt.Fprintf(out, "  ID:       %s\n", it.ID)
	fmt.Fprintf(out, "  Type:     %s\n", it.Type)
	fmt.Fprintf(out, "  Threat:   %s\n", threatColor(it.ThreatLevel).Sprint(it.ThreatLevel))
	fmt.Fprintf(out, "  Source:   %s\n", it.Source)
	fmt.Fprintf(out, "  Time:     %s\n", it.Timestamp.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "  Projects: %s\n", orNone(strings.Join(it.RelatedProjects, ", ")))
	fmt.Fprintf(out, "  Tags:     %s\n", orNone(strings.Join(it.Tags, ", ")))
	fmt.Fprintf(out, "\n%s\n", it.Content)
}

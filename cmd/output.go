package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"github.com/kamusis/cerebro/internal/registry"
)

// ── Unified output helpers ────────────────────────────────────────────────────
// All commands use these functions to ensure consistent icon usage and
// indentation throughout cerebro's CLI output. Colour follows NO_COLOR and
// is disabled when stdout is not a terminal.
//
// Icon semantics:
//   ✓  success / healthy
//   ✗  error / failure          (written to stderr)
//   ⚠  warning
//   ○  skipped / not applicable
//   -  not found / missing
//   ~  neutral info / state change

var (
	out    io.Writer = os.Stdout
	errOut io.Writer = os.Stderr

	okColor      = color.New(color.FgGreen)
	errColor     = color.New(color.FgRed)
	warnColor    = color.New(color.FgYellow)
	faintColor   = color.New(color.Faint)
	infoColor    = color.New(color.FgCyan)
	sectionColor = color.New(color.Bold)
)

// printSection prints a top-level section header, e.g. "=== Health ===".
func printSection(title string) {
	fmt.Fprintf(out, "\n%s\n", sectionColor.Sprintf("=== %s ===", title))
}

// printBullet prints a grouped-section bullet, e.g. "● Alerts:".
func printBullet(title string) {
	fmt.Fprintf(out, "\n● %s\n", title)
}

func printLine(w io.Writer, c *color.Color, icon, name, msg string) {
	if name == "" {
		fmt.Fprintf(w, "  %s  %s\n", c.Sprint(icon), msg)
	} else {
		fmt.Fprintf(w, "  %s  [%s] %s\n", c.Sprint(icon), name, msg)
	}
}

// printOK prints a success line.
//   name = "" → "  ✓  msg"
//   name set  → "  ✓  [name] msg"
func printOK(name, msg string) { printLine(out, okColor, "✓", name, msg) }

// printErr prints an error line to stderr.
func printErr(name, msg string) { printLine(errOut, errColor, "✗", name, msg) }

func printWarn(name, msg string) { printLine(out, warnColor, "⚠", name, msg) }

func printSkip(name, msg string) { printLine(out, faintColor, "○", name, msg) }

func printMiss(name, msg string) { printLine(out, faintColor, "-", name, msg) }

func printInfo(name, msg string) { printLine(out, infoColor, "~", name, msg) }

// printJSON writes v as indented JSON for --json output.
func printJSON(v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// healthColor picks a colour band for a 0-100 score.
func healthColor(score float64) *color.Color {
	switch {
	case score >= 70:
		return okColor
	case score >= 50:
		return warnColor
	default:
		return errColor
	}
}

func statusColorName(s registry.ProjectStatus) string {
	switch s {
	case registry.StatusActive:
		return okColor.Sprint(s)
	case registry.StatusMaintenance:
		return infoColor.Sprint(s)
	case registry.StatusDeprecated, registry.StatusArchived:
		return warnColor.Sprint(s)
	default:
		return faintColor.Sprint(s)
	}
}

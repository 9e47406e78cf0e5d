package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	commit    = ""
	buildDate = ""
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show Cerebro version and build information",
	RunE:  runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	OSArch    string `json:"os_arch"`
}

func runVersion(_ *cobra.Command, _ []string) error {
	v := versionInfo{
		Version:   version,
		Commit:    emptyAsNA(commit),
		BuildDate: emptyAsNA(buildDate),
		GoVersion: runtime.Version(),
		OSArch:    runtime.GOOS + "/" + runtime.GOARCH,
	}
	if flagJSON {
		return printJSON(v)
	}
	fmt.Fprintf(out, "Version:    %s\n", v.Version)
	fmt.Fprintf(out, "Commit:     %s\n", v.Commit)
	fmt.Fprintf(out, "Build Date: %s\n", v.BuildDate)
	fmt.Fprintf(out, "Go Version: %s\n", v.GoVersion)
	fmt.Fprintf(out, "OS/Arch:    %s\n", v.OSArch)
	return nil
}

func emptyAsNA(s string) string {
	if s == "" {
		return "n/a"
	}
	return s
}

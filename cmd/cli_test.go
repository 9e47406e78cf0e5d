package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/kamusis/cerebro/internal/cerebro"
	"github.com/kamusis/cerebro/internal/embeddings"
	"github.com/kamusis/cerebro/internal/registry"
)

// setupCLI points CEREBRO_HOME at a temp dir, swaps in the offline hash
// provider and captures command output.
func setupCLI(t *testing.T) (stdout, stderr *bytes.Buffer) {
	t.Helper()
	t.Setenv("CEREBRO_HOME", t.TempDir())
	for _, k := range []string{"CEREBRO_EMBEDDINGS_PROVIDER", "CEREBRO_EMBEDDINGS_API_KEY", "CEREBRO_LOG_LEVEL"} {
		t.Setenv(k, "")
	}

	stdout, stderr = &bytes.Buffer{}, &bytes.Buffer{}
	prevOut, prevErr, prevOpts, prevColor := out, errOut, serviceOptions, color.NoColor
	out, errOut = stdout, stderr
	serviceOptions = []cerebro.Option{cerebro.WithProvider(embeddings.NewHash(512))}
	color.NoColor = true
	t.Cleanup(func() {
		out, errOut, serviceOptions, color.NoColor = prevOut, prevErr, prevOpts, prevColor
	})
	return stdout, stderr
}

// resetFlags restores every flag to its default; cobra keeps parsed values
// between Execute calls in one process.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func runCLI(t *testing.T, args ...string) error {
	t.Helper()
	resetFlags(rootCmd)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(io.Discard)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetIn(strings.NewReader(""))
	return rootCmd.ExecuteContext(context.Background())
}

func mustRun(t *testing.T, args ...string) {
	t.Helper()
	if err := runCLI(t, args...); err != nil {
		t.Fatalf("cerebro %s: %v", strings.Join(args, " "), err)
	}
}

func writeProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"README.md":      "# Demo\n\nA demo service for the CLI tests.\n",
		"main.go":        "package main\n",
		"main_test.go":   "package main\n",
		"docs/GUIDE.md":  "# Operator Guide\nHow to run it.\n",
		"Jenkinsfile":    "pipeline {}\n",
		"go.mod":         "module demo\n",
		"docs/adr/1.md":  "# Use flat files\nDecision.\n",
		"vendor/x/x.go":  "package x\n",
		"node_modules/a": "",
	}
	for name, body := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestCLI_Workflow(t *testing.T) {
	stdout, stderr := setupCLI(t)
	dir := writeProject(t)

	mustRun(t, "init")
	home := os.Getenv("CEREBRO_HOME")
	for _, f := range []string{"cerebro.yaml", ".env", "data", "embeddings"} {
		if _, err := os.Stat(filepath.Join(home, f)); err != nil {
			t.Fatalf("init did not create %s: %v", f, err)
		}
	}

	mustRun(t, "project", "add", "demo", "--path", dir, "--description", "demo service")
	mustRun(t, "intel", "add", "--title", "Leaked key", "--content", "api key leaked",
		"--threat", "critical", "--type", "sigint", "--project", "demo", "--tag", "security")
	mustRun(t, "collect", "--only", "docs,ci,structure")

	stdout.Reset()
	mustRun(t, "project", "list", "--json")
	var projects []registry.Project
	if err := json.Unmarshal(stdout.Bytes(), &projects); err != nil {
		t.Fatalf("project list --json: %v\n%s", err, stdout)
	}
	if len(projects) != 1 || projects[0].Name != "demo" {
		t.Fatalf("unexpected projects: %+v", projects)
	}
	if got := projects[0].Languages; len(got) != 1 || got[0] != "Go" {
		t.Fatalf("languages = %v, want [Go]", got)
	}
	if projects[0].LastIndexed == nil {
		t.Fatal("collect should index the new items")
	}

	stdout.Reset()
	mustRun(t, "search", "api", "key", "leaked")
	if !strings.Contains(stdout.String(), "Leaked key") {
		t.Fatalf("search output missing item:\n%s", stdout)
	}

	stdout.Reset()
	mustRun(t, "intel", "query", "--type", "humint", "--project", "demo")
	for _, want := range []string{"README: demo", "Doc: Operator Guide", "ADR: Use flat files"} {
		if !strings.Contains(stdout.String(), want) {
			t.Fatalf("intel query missing %q:\n%s", want, stdout)
		}
	}

	stdout.Reset()
	mustRun(t, "analyze", "demo")
	if !strings.Contains(stdout.String(), "Analysis: demo") {
		t.Fatalf("analyze output:\n%s", stdout)
	}

	stderr.Reset()
	mustRun(t, "alerts")
	if !strings.Contains(stderr.String(), "Leaked key") {
		t.Fatalf("alerts should report the critical item:\n%s", stderr)
	}

	stdout.Reset()
	mustRun(t, "briefing", "daily")
	if !strings.HasPrefix(stdout.String(), "# CEREBRO Intelligence Briefing") {
		t.Fatalf("briefing output:\n%s", stdout)
	}

	briefPath := filepath.Join(t.TempDir(), "exec.json")
	mustRun(t, "briefing", "executive", "--format", "json", "--output", briefPath)
	b, err := os.ReadFile(briefPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), `"type": "executive"`) {
		t.Fatalf("executive briefing JSON:\n%s", b)
	}

	stdout.Reset()
	mustRun(t, "index", "stats", "--json")
	var st struct {
		Indexed   int    `json:"indexed"`
		Readiness string `json:"readiness"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &st); err != nil {
		t.Fatalf("index stats --json: %v", err)
	}
	if st.Readiness != "ready" || st.Indexed == 0 {
		t.Fatalf("unexpected index stats: %+v", st)
	}
}

func TestCLI_Errors(t *testing.T) {
	setupCLI(t)
	mustRun(t, "init")

	cases := []struct {
		args []string
		want string
	}{
		{[]string{"briefing", "monthly"}, "unknown briefing type"},
		{[]string{"briefing", "project"}, "project name required"},
		{[]string{"briefing", "daily", "--format", "pdf"}, "unknown format"},
		{[]string{"project", "show", "ghost"}, "project not found"},
		{[]string{"intel", "get", "deadbeef"}, "not found"},
		{[]string{"collect", "--only", "email"}, "unknown collector"},
		{[]string{"intel", "add", "--title", "x", "--threat", "severe", "--content", "c"}, "unknown threat level"},
	}
	for _, tc := range cases {
		err := runCLI(t, tc.args...)
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Errorf("cerebro %s: got %v, want error containing %q", strings.Join(tc.args, " "), err, tc.want)
		}
	}
}

func TestCLI_Version(t *testing.T) {
	stdout, _ := setupCLI(t)
	mustRun(t, "version", "--json")
	var v versionInfo
	if err := json.Unmarshal(stdout.Bytes(), &v); err != nil {
		t.Fatalf("version --json: %v", err)
	}
	if v.Version != version || v.Commit != "n/a" {
		t.Fatalf("unexpected version info: %+v", v)
	}
}

func TestSelectCollectors(t *testing.T) {
	cs, err := selectCollectors([]string{"structure", " git"})
	if err != nil {
		t.Fatal(err)
	}
	if len(cs) != 2 || cs[0].Name() != "structure" || cs[1].Name() != "git" {
		t.Fatalf("unexpected collectors: %v", cs)
	}
	all, _ := selectCollectors(nil)
	if len(all) != 4 {
		t.Fatalf("default collectors = %d, want 4", len(all))
	}
}

package collect

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamusis/cerebro/internal/registry"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, body := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
	return root
}

func TestClassifyCommit(t *testing.T) {
	cases := map[string]registry.ThreatLevel{
		"Add feature":                   registry.ThreatInfo,
		"fix typo":                      registry.ThreatLow,
		"Patch CVE-2024-1234":           registry.ThreatHigh,
		"security: fix header":          registry.ThreatHigh,
		"HOTFIX: security bug in login": registry.ThreatCritical,
	}
	for msg, want := range cases {
		assert.Equal(t, want, ClassifyCommit(msg), msg)
	}
}

func TestParseGitLog(t *testing.T) {
	out := "aaaaaaaaaaaa|fix: a|b pipes|2026-02-27T10:00:00+01:00|Ada\n" +
		"bbbbbbbbbbbb|Initial commit|2025-01-01T00:00:00Z|Bob\n" +
		"garbage line\n" +
		"cccccccccccc|bad date|yesterday|Eve\n"
	items := parseGitLog("alpha", out)
	require.Len(t, items, 2)

	first := items[0]
	assert.Equal(t, "Commit: fix: a|b pipes", first.Title)
	assert.Equal(t, "Commit aaaaaaaa by Ada: fix: a|b pipes", first.Content)
	assert.Equal(t, registry.ThreatLow, first.ThreatLevel)
	assert.Equal(t, registry.TypeSIGINT, first.Type)
	assert.Equal(t, []string{"git", "commit"}, first.Tags)
	assert.Equal(t, []string{"alpha"}, first.RelatedProjects)
	assert.Equal(t, time.Date(2026, 2, 27, 9, 0, 0, 0, time.UTC), first.Timestamp)
	assert.Equal(t, "aaaaaaaaaaaa", first.Metadata["commit_hash"])

	again := parseGitLog("alpha", out)
	assert.Equal(t, first.ID, again[0].ID, "IDs are stable")
}

func TestGitCollector(t *testing.T) {
	ctx := context.Background()
	root := writeTree(t, map[string]string{".git/HEAD": "ref: refs/heads/main\n"})

	var gotArgs []string
	g := NewGitCollector()
	g.Run = func(_ context.Context, dir string, args ...string) ([]byte, error) {
		assert.Equal(t, root, dir)
		gotArgs = args
		return []byte("abc123|release v1|2026-02-28T00:00:00Z|Ada\n"), nil
	}

	items, err := g.Collect(ctx, registry.Project{Name: "p", Path: root})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, []string{"log", "-n", "10", "--format=%H|%s|%aI|%an"}, gotArgs)

	items, err = g.Collect(ctx, registry.Project{Name: "q", Path: t.TempDir()})
	require.NoError(t, err)
	assert.Empty(t, items, "no .git directory")
}

func TestGitCollector_Timeout(t *testing.T) {
	root := writeTree(t, map[string]string{".git/HEAD": ""})
	g := NewGitCollector()
	g.Timeout = 10 * time.Millisecond
	g.Run = func(ctx context.Context, _ string, _ ...string) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	items, err := g.Collect(context.Background(), registry.Project{Name: "p", Path: root})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestCICollector(t *testing.T) {
	root := writeTree(t, map[string]string{
		".github/workflows/test.yml": "on: push",
		"Jenkinsfile":                "pipeline {}",
	})
	c := &CICollector{now: clock}
	items, err := c.Collect(context.Background(), registry.Project{Name: "p", Path: root})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "CI/CD detected: GitHub Actions", items[0].Title)
	assert.Equal(t, "CI/CD detected: Jenkins", items[1].Title)
	for _, it := range items {
		assert.True(t, it.HasTag("ci"))
		assert.True(t, it.HasTag("devops"))
	}
}

func TestDocsCollector(t *testing.T) {
	root := writeTree(t, map[string]string{
		"docs/adr/ADR-001-storage.md": "---\ntitle: Use SQLite\nstatus: accepted\ntags: [storage]\n---\n# ignored heading\nWe chose SQLite.",
		"docs/adr/002-cache.md":       "# Add a cache\nBody.",
		"docs/ARCHITECTURE.md":        "# System Overview\nBoxes and arrows.",
		"docs/notes.md":               "# not collected",
		"docs/GUIDE-broken.md":        "---\ntitle: [unclosed\n---\n# Broken Guide\ntext",
		"README.md":                   "# Project\n\nA tool that does things.\n\n## Install\n",
	})
	d := &DocsCollector{now: clock}
	items, err := d.Collect(context.Background(), registry.Project{Name: "p", Path: root})
	require.NoError(t, err)

	byTitle := make(map[string]registry.IntelligenceItem)
	for _, it := range items {
		byTitle[it.Title] = it
		assert.Equal(t, registry.TypeHUMINT, it.Type)
	}
	require.Len(t, items, 5)

	adr := byTitle["ADR: Use SQLite"]
	assert.Equal(t, "ADR-001", adr.Metadata["adr_id"])
	assert.Equal(t, "accepted", adr.Metadata["status"])
	assert.True(t, adr.HasTag("adr"))
	assert.True(t, adr.HasTag("storage"))
	assert.False(t, strings.HasPrefix(adr.Content, "---"))

	assert.Contains(t, byTitle, "ADR: Add a cache")
	assert.True(t, byTitle["Doc: System Overview"].HasTag("documentation"))
	assert.Contains(t, byTitle, "Doc: Broken Guide", "malformed front matter keeps the body")

	readme := byTitle["README: p"]
	assert.Equal(t, "A tool that does things.", readme.Metadata["description"])
	assert.True(t, readme.HasTag("readme"))
}

func TestStructureCollector(t *testing.T) {
	root := writeTree(t, map[string]string{
		"main.go":              "package main",
		"internal/a/a.go":      "package a",
		"internal/a/a_test.go": "package a",
		"flake.nix":            "{}",
		".hidden/x.py":         "",
		"node_modules/y/y.js":  "",
	})
	s := &StructureCollector{now: clock}
	items, err := s.Collect(context.Background(), registry.Project{Name: "p", Path: root})
	require.NoError(t, err)
	require.Len(t, items, 2)

	st := items[0]
	assert.True(t, st.HasTag("structure"))
	assert.Equal(t, []string{"Go", "Nix"}, st.Metadata["languages"])
	assert.Equal(t, 4, st.Metadata["total_files"])

	tests := items[1]
	assert.True(t, tests.HasTag("testing"))
	assert.Equal(t, 1, tests.Metadata["test_count"])
}

type stubCollector struct {
	name  string
	items func(p registry.Project) []registry.IntelligenceItem
	err   error
	calls atomic.Int32
}

func (s *stubCollector) Name() string { return s.name }

func (s *stubCollector) Collect(_ context.Context, p registry.Project) ([]registry.IntelligenceItem, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return s.items(p), nil
}

func TestPipeline_Run(t *testing.T) {
	reg := registry.New(nil, registry.WithClock(clock))
	for _, n := range []string{"a", "b", "c"} {
		require.NoError(t, reg.RegisterProject(registry.Project{Name: n}))
	}

	commit := &stubCollector{name: "git", items: func(p registry.Project) []registry.IntelligenceItem {
		if p.Name == "c" {
			return nil
		}
		return []registry.IntelligenceItem{newItem(itemSpec{
			typ: registry.TypeSIGINT, source: "git:" + p.Name, title: "commit", content: p.Name,
			tags: []string{"git"}, project: p.Name, at: fixedNow.Add(-40 * 24 * time.Hour),
		})}
	}}
	structure := &stubCollector{name: "structure", items: func(p registry.Project) []registry.IntelligenceItem {
		return []registry.IntelligenceItem{newItem(itemSpec{
			typ: registry.TypeTECHINT, source: "structure:" + p.Name, title: "structure", content: p.Name,
			metadata: map[string]any{"languages": []string{"Go"}},
			tags:     []string{"structure"}, project: p.Name, at: fixedNow,
		})}
	}}
	broken := &stubCollector{name: "broken", err: errors.New("boom")}

	pl := NewPipeline(reg, []Collector{commit, broken, structure}, WithWorkers(2), WithClock(clock))
	rep, err := pl.Run(context.Background(), reg.ListProjects())
	require.NoError(t, err)
	assert.Equal(t, Report{Projects: 3, Items: 5, Failures: 3}, rep)
	assert.Equal(t, int32(3), broken.calls.Load())

	a, _ := reg.GetProject("a")
	require.NotNil(t, a.LastCommit)
	assert.Equal(t, registry.StatusMaintenance, a.Status)
	assert.Equal(t, []string{"Go"}, a.Languages)
	assert.Equal(t, 2, a.IntelligenceCount)

	c, _ := reg.GetProject("c")
	assert.Nil(t, c.LastCommit)
	assert.Equal(t, 1, c.IntelligenceCount)
	assert.Equal(t, registry.StatusUnknown, c.Status)

	st := reg.EcosystemStatus()
	require.NotNil(t, st.LastScan)
	assert.Equal(t, fixedNow, *st.LastScan)
}

func TestPipeline_RerunKeepsCounts(t *testing.T) {
	reg := registry.New(nil, registry.WithClock(clock))
	require.NoError(t, reg.RegisterProject(registry.Project{Name: "a"}))

	stub := &stubCollector{name: "docs", items: func(p registry.Project) []registry.IntelligenceItem {
		return []registry.IntelligenceItem{newItem(itemSpec{
			typ: registry.TypeHUMINT, source: "docs:" + p.Name, title: "README", content: "hello",
			tags: []string{"readme"}, project: p.Name, at: fixedNow,
		})}
	}}
	pl := NewPipeline(reg, []Collector{stub}, WithClock(clock))
	for run := 0; run < 3; run++ {
		rep, err := pl.Run(context.Background(), reg.ListProjects())
		require.NoError(t, err)
		if run == 0 {
			assert.Equal(t, Report{Projects: 1, Items: 1}, rep)
		} else {
			assert.Equal(t, Report{Projects: 1, Known: 1}, rep)
		}
	}

	a, _ := reg.GetProject("a")
	assert.Equal(t, len(reg.ProjectIntelligence("a")), a.IntelligenceCount)
	assert.Equal(t, 1, a.IntelligenceCount)
}

func TestPipeline_Cancelled(t *testing.T) {
	reg := registry.New(nil)
	require.NoError(t, reg.RegisterProject(registry.Project{Name: "a"}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stub := &stubCollector{name: "x", items: func(registry.Project) []registry.IntelligenceItem { return nil }}
	_, err := NewPipeline(reg, []Collector{stub}).Run(ctx, reg.ListProjects())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, reg.EcosystemStatus().LastScan)
}

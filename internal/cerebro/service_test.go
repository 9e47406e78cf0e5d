package cerebro

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamusis/cerebro/internal/briefing"
	"github.com/kamusis/cerebro/internal/collect"
	"github.com/kamusis/cerebro/internal/config"
	"github.com/kamusis/cerebro/internal/embeddings"
	"github.com/kamusis/cerebro/internal/index"
	"github.com/kamusis/cerebro/internal/registry"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	return &config.Config{
		DataDir:  filepath.Join(root, "data"),
		CacheDir: filepath.Join(root, "cache"),
		Workers:  2,
		Index: config.IndexConfig{
			BatchSize: 8,
			TopK:      5,
			MinScore:  0.2,
			CacheSize: 16,
		},
		Snapshot:  config.SnapshotConfig{Backend: "file", Namespace: "default"},
		Manifests: config.DefaultManifests,
	}
}

func openService(t *testing.T, cfg *config.Config, opts ...Option) *Service {
	t.Helper()
	opts = append([]Option{WithClock(clock)}, opts...)
	s, err := New(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func item(project, title, content string, level registry.ThreatLevel, tags ...string) registry.IntelligenceItem {
	return registry.IntelligenceItem{
		Type:            registry.TypeSIGINT,
		Source:          "test:" + project,
		Title:           title,
		Content:         content,
		ThreatLevel:     level,
		Timestamp:       fixedNow.Add(-time.Hour),
		Tags:            tags,
		RelatedProjects: []string{project},
	}
}

func TestService_EndToEnd(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	alphaDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(alphaDir, "go.mod"), []byte("module alpha\nrequire beta v1.0.0\n"), 0o644))

	s := openService(t, cfg, WithProvider(embeddings.NewHash(2048)))
	r, err := s.Open(ctx)
	require.NoError(t, err)
	require.Equal(t, index.Ready, r)

	require.NoError(t, s.RegisterProject(registry.Project{Name: "alpha", Path: alphaDir}))
	require.NoError(t, s.RegisterProject(registry.Project{Name: "beta"}))

	_, err = s.AddIntelligence(ctx, item("alpha", "Recent commit", "tune database connection pool size", registry.ThreatInfo, "git"))
	require.NoError(t, err)
	_, err = s.AddIntelligence(ctx, item("alpha", "ADR-001", "record architecture decision for caching", registry.ThreatInfo, "adr"))
	require.NoError(t, err)
	critID, err := s.AddIntelligence(ctx, item("alpha", "Leaked key", "api key leaked in logs", registry.ThreatCritical))
	require.NoError(t, err)
	assert.Equal(t, 3, s.IndexStats().Indexed)

	hits, err := s.SemanticQuery(ctx, "database connection pool", 0)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "Recent commit", hits[0].Item.Title)

	it, err := s.FindIntelligence(registry.ShortID(critID))
	require.NoError(t, err)
	assert.Equal(t, critID, it.ID)

	an, ok := s.AnalyzeProject("alpha")
	require.True(t, ok)
	assert.Equal(t, 19.0, an.HealthScore)
	p, _ := s.GetProject("alpha")
	assert.Equal(t, registry.StatusArchived, p.Status)

	graph := s.DependencyGraph(ctx)
	assert.Equal(t, []string{"beta"}, graph["alpha"])
	beta, _ := s.GetProject("beta")
	assert.Equal(t, []string{"alpha"}, beta.Dependents)

	b, err := s.GenerateBriefing(ctx, briefing.Daily, "")
	require.NoError(t, err)
	assert.Len(t, b.KeyDevelopments, 3)
	assert.Contains(t, s.ToMarkdown(b), "Leaked key")

	require.NoError(t, s.Save(ctx))
	require.NoError(t, s.Close())

	// A second process sees the same state.
	s2 := openService(t, cfg, WithProvider(embeddings.NewHash(2048)))
	r, err = s2.Open(ctx)
	require.NoError(t, err)
	require.Equal(t, index.Ready, r)
	assert.Len(t, s2.ListProjects(), 2)
	assert.Equal(t, 3, s2.IndexStats().Indexed)
	p, _ = s2.GetProject("alpha")
	assert.Equal(t, 19.0, p.HealthScore)
	assert.Equal(t, []string{"beta"}, p.Dependencies)
	assert.Len(t, s2.GetAlerts(), 3)
}

func TestService_IndexAllStampsRelatedProjects(t *testing.T) {
	ctx := context.Background()
	s := openService(t, testConfig(t), WithProvider(embeddings.NewHash(512)))
	_, err := s.Open(ctx)
	require.NoError(t, err)
	for _, n := range []string{"alpha", "beta", "gamma"} {
		require.NoError(t, s.RegisterProject(registry.Project{Name: n}))
	}

	_, err = s.AddIntelligence(ctx, item("beta", "Indexed on add", "already embedded", registry.ThreatInfo))
	require.NoError(t, err)
	s.Registry().AddIntelligence(item("alpha", "Pending", "waiting for the index", registry.ThreatInfo))

	n, err := s.IndexAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	alpha, _ := s.GetProject("alpha")
	require.NotNil(t, alpha.LastIndexed)
	assert.Equal(t, fixedNow, *alpha.LastIndexed)
	for _, name := range []string{"beta", "gamma"} {
		p, _ := s.GetProject(name)
		assert.Nil(t, p.LastIndexed, name)
	}
}

func TestService_Degraded(t *testing.T) {
	ctx := context.Background()
	s := openService(t, testConfig(t), WithProvider(nil))
	r, err := s.Open(ctx)
	require.NoError(t, err)
	assert.Equal(t, index.Degraded, r)

	require.NoError(t, s.RegisterProject(registry.Project{Name: "p"}))
	_, err = s.AddIntelligence(ctx, item("p", "t", "some content", registry.ThreatInfo))
	require.NoError(t, err)

	hits, err := s.SemanticQuery(ctx, "content", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
	n, err := s.IndexAll(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, s.QueryIntelligence(registry.Query{Text: "SOME"}), 1)
}

func TestService_NotOpen(t *testing.T) {
	s := openService(t, testConfig(t), WithProvider(nil))
	_, err := s.AddIntelligence(context.Background(), item("p", "t", "c", registry.ThreatInfo))
	assert.Error(t, err)
	assert.Equal(t, index.NotInitialized.String(), s.IndexStats().Readiness)
}

func TestService_CorruptSnapshot(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(cfg.DataDir, 0o755))
	st := registry.NewFileStore(cfg.DataDir)
	require.NoError(t, os.WriteFile(st.Path(), []byte("{not json"), 0o644))

	s := openService(t, cfg, WithProvider(nil))
	_, err := s.Open(context.Background())
	assert.Error(t, err)
}

func TestService_Collect(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# Demo\n\nA demo project for testing.\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n"), 0o644))

	s := openService(t, testConfig(t),
		WithProvider(embeddings.NewHash(512)),
		WithCollectors(collect.NewDocsCollector(), collect.NewStructureCollector()))
	_, err := s.Open(ctx)
	require.NoError(t, err)
	require.NoError(t, s.RegisterProject(registry.Project{Name: "demo", Path: dir}))

	rep, err := s.Collect(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Projects)
	assert.Equal(t, 2, rep.Items)
	assert.Equal(t, 2, s.IndexStats().Indexed)

	p, _ := s.GetProject("demo")
	assert.Equal(t, []string{"Go"}, p.Languages)
	require.NotNil(t, p.LastIndexed)
	assert.NotNil(t, s.EcosystemStatus().LastScan)
}

func TestService_SupersedeAndCompact(t *testing.T) {
	ctx := context.Background()
	s := openService(t, testConfig(t), WithProvider(embeddings.NewHash(256)))
	_, err := s.Open(ctx)
	require.NoError(t, err)
	require.NoError(t, s.RegisterProject(registry.Project{Name: "p"}))

	id, err := s.AddIntelligence(ctx, item("p", "old", "old fact", registry.ThreatInfo))
	require.NoError(t, err)
	_, err = s.AddIntelligence(ctx, item("p", "new", "new fact", registry.ThreatInfo))
	require.NoError(t, err)

	ok, err := s.SupersedeIntelligence(id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, s.IndexStats().Tombstoned)

	n, err := s.CompactIndex(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, s.IndexStats().Indexed)

	require.NoError(t, s.ClearIndex(ctx))
	assert.Zero(t, s.IndexStats().Indexed)
}

type answeringProvider struct {
	*embeddings.HashEmbedder
	passages []string
}

func (a *answeringProvider) GroundedGenerate(_ context.Context, _ string, passages []string, _ int) (embeddings.GroundedAnswer, error) {
	a.passages = passages
	return embeddings.GroundedAnswer{Answer: "The pool was tuned [1].", Citations: []int{1}, Confidence: 1}, nil
}

func TestService_Ask(t *testing.T) {
	ctx := context.Background()
	prov := &answeringProvider{HashEmbedder: embeddings.NewHash(1024)}
	s := openService(t, testConfig(t), WithProvider(prov))
	_, err := s.Open(ctx)
	require.NoError(t, err)
	require.NoError(t, s.RegisterProject(registry.Project{Name: "p"}))
	_, err = s.AddIntelligence(ctx, item("p", "Pool", "tune database connection pool size", registry.ThreatInfo))
	require.NoError(t, err)

	ans, err := s.Ask(ctx, "database connection pool", 3)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, ans.Citations)
	require.Len(t, ans.Sources, 1)
	assert.Equal(t, "Pool", ans.Sources[0].Item.Title)
	assert.Equal(t, []string{"Pool\ntune database connection pool size"}, prov.passages)
}

func TestService_AskDegraded(t *testing.T) {
	s := openService(t, testConfig(t), WithProvider(nil))
	_, err := s.Open(context.Background())
	require.NoError(t, err)
	_, err = s.Ask(context.Background(), "anything", 3)
	assert.Error(t, err)
}

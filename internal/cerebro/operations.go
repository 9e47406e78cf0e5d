package cerebro

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/kamusis/cerebro/internal/analyzer"
	"github.com/kamusis/cerebro/internal/briefing"
	"github.com/kamusis/cerebro/internal/collect"
	"github.com/kamusis/cerebro/internal/embeddings"
	"github.com/kamusis/cerebro/internal/index"
	"github.com/kamusis/cerebro/internal/registry"
)

func (s *Service) RegisterProject(p registry.Project) error {
	return s.reg.RegisterProject(p)
}

func (s *Service) GetProject(name string) (registry.Project, bool) {
	return s.reg.GetProject(name)
}

func (s *Service) ListProjects() []registry.Project {
	return s.reg.ListProjects()
}

// AddIntelligence registers item and indexes it when the provider is ready.
// Indexing failures are logged by the indexer and do not fail the add.
func (s *Service) AddIntelligence(ctx context.Context, item registry.IntelligenceItem) (string, error) {
	if err := s.ensureOpen(); err != nil {
		return "", err
	}
	id := s.reg.AddIntelligence(item)
	if stored, ok := s.reg.GetIntelligence(id); ok && s.index.Readiness() == index.Ready {
		s.index.IndexItem(ctx, id, index.CanonicalText(stored))
	}
	return id, nil
}

func (s *Service) GetIntelligence(id string) (registry.IntelligenceItem, bool) {
	return s.reg.GetIntelligence(id)
}

// FindIntelligence resolves a full ID or a unique prefix of at least
// registry.ShortIDLen characters.
func (s *Service) FindIntelligence(prefix string) (registry.IntelligenceItem, error) {
	if it, ok := s.reg.GetIntelligence(prefix); ok {
		return it, nil
	}
	if len(prefix) < registry.ShortIDLen {
		return registry.IntelligenceItem{}, fmt.Errorf("intelligence item not found: %s", prefix)
	}
	var found []registry.IntelligenceItem
	for _, it := range s.reg.ListIntelligence() {
		if len(it.ID) >= len(prefix) && it.ID[:len(prefix)] == prefix {
			found = append(found, it)
		}
	}
	switch len(found) {
	case 0:
		return registry.IntelligenceItem{}, fmt.Errorf("intelligence item not found: %s", prefix)
	case 1:
		return found[0], nil
	default:
		return registry.IntelligenceItem{}, fmt.Errorf("ambiguous id prefix %s matches %d items", prefix, len(found))
	}
}

func (s *Service) QueryIntelligence(q registry.Query) []registry.IntelligenceItem {
	return s.reg.QueryIntelligence(q)
}

// SemanticQuery ranks items by similarity to query. topK <= 0 uses the
// configured default.
func (s *Service) SemanticQuery(ctx context.Context, query string, topK int) ([]index.Hit, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = s.cfg.Index.TopK
	}
	return s.index.SemanticQuery(ctx, query, topK, s.cfg.Index.MinScore), nil
}

func (s *Service) Search(ctx context.Context, query string, topK int, minScore float64) ([]index.Result, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	return s.index.Search(ctx, query, topK, minScore), nil
}

// IndexAll embeds every item not yet indexed and stamps LastIndexed on the
// projects related to the newly indexed items.
func (s *Service) IndexAll(ctx context.Context) (int, error) {
	if err := s.ensureOpen(); err != nil {
		return 0, err
	}
	var pending []registry.IntelligenceItem
	for _, it := range s.reg.ListIntelligence() {
		if !s.index.Has(it.ID) {
			pending = append(pending, it)
		}
	}
	n, err := s.index.IndexAll(ctx, s.cfg.Index.BatchSize)
	if err != nil {
		return n, err
	}
	if n == 0 {
		return 0, nil
	}

	touched := make(map[string]struct{})
	for _, it := range pending {
		if !s.index.Has(it.ID) {
			continue
		}
		for _, name := range it.RelatedProjects {
			touched[name] = struct{}{}
		}
	}
	now := s.now().UTC()
	for name := range touched {
		s.reg.UpdateProject(name, func(p *registry.Project) { p.LastIndexed = &now })
	}
	return n, nil
}

func (s *Service) ClearIndex(ctx context.Context) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	return s.index.Clear(ctx)
}

// SupersedeIntelligence tombstones an item's index row.
func (s *Service) SupersedeIntelligence(id string) (bool, error) {
	if err := s.ensureOpen(); err != nil {
		return false, err
	}
	return s.index.Supersede(id), nil
}

func (s *Service) CompactIndex(ctx context.Context) (int, error) {
	if err := s.ensureOpen(); err != nil {
		return 0, err
	}
	return s.index.Compact(ctx)
}

func (s *Service) IndexStats() index.Stats {
	if s.index == nil {
		return index.Stats{Readiness: index.NotInitialized.String()}
	}
	return s.index.Stats()
}

func (s *Service) CalculateHealthScore() float64 { return s.reg.CalculateHealthScore() }

func (s *Service) GetAlerts() []registry.Alert { return s.reg.GetAlerts() }

func (s *Service) EcosystemStatus() registry.EcosystemStatus { return s.reg.EcosystemStatus() }

// AnalyzeProject analyses one project and writes the score back.
func (s *Service) AnalyzeProject(name string) (analyzer.Analysis, bool) {
	an, ok := s.analyzer.AnalyzeProjectByName(name)
	if ok {
		analyzer.Apply(s.reg, an)
	}
	return an, ok
}

// AnalyzeEcosystem analyses every project and writes all scores back.
func (s *Service) AnalyzeEcosystem() analyzer.EcosystemAnalysis {
	eco := s.analyzer.AnalyzeEcosystem()
	for _, an := range eco.Projects {
		analyzer.Apply(s.reg, an)
	}
	return eco
}

// DependencyGraph builds the manifest dependency graph and stores
// Dependencies and Dependents on each project.
func (s *Service) DependencyGraph(ctx context.Context) map[string][]string {
	graph := s.analyzer.FindDependenciesGraph(ctx)
	dependents := analyzer.Dependents(graph)
	for name, deps := range graph {
		s.reg.UpdateProject(name, func(p *registry.Project) {
			p.Dependencies = slices.Clone(deps)
			p.Dependents = slices.Clone(dependents[name])
		})
	}
	return graph
}

func (s *Service) GenerateBriefing(ctx context.Context, t briefing.Type, project string) (briefing.Briefing, error) {
	return s.briefings.Generate(ctx, t, project)
}

func (s *Service) ToMarkdown(b briefing.Briefing) string { return briefing.ToMarkdown(b) }

// Collect runs the collectors over every registered project, then indexes
// the new items when the provider is ready.
func (s *Service) Collect(ctx context.Context) (collect.Report, error) {
	pl := collect.NewPipeline(s.reg, s.collectors,
		collect.WithWorkers(s.cfg.Workers),
		collect.WithClock(s.now))
	rep, err := pl.Run(ctx, s.reg.ListProjects())
	if err != nil {
		return rep, err
	}
	if s.index != nil && s.index.Readiness() == index.Ready {
		if _, err := s.IndexAll(ctx); err != nil {
			return rep, fmt.Errorf("index collected items: %w", err)
		}
	}
	return rep, nil
}

// Answer is a grounded answer together with the items it was built from.
type Answer struct {
	embeddings.GroundedAnswer
	Sources []index.Hit `json:"sources"`
}

// Ask retrieves the topK items closest to question and asks the provider
// for an answer citing them. It needs a ready index and a provider.
func (s *Service) Ask(ctx context.Context, question string, topK int) (Answer, error) {
	if err := s.ensureOpen(); err != nil {
		return Answer{}, err
	}
	if s.provider == nil || s.index.Readiness() != index.Ready {
		return Answer{}, errors.New("semantic search is not available; configure an embeddings provider")
	}
	hits, err := s.SemanticQuery(ctx, question, topK)
	if err != nil {
		return Answer{}, err
	}
	if len(hits) == 0 {
		return Answer{Sources: hits}, nil
	}
	passages := make([]string, len(hits))
	for i, h := range hits {
		passages[i] = h.Item.Title + "\n" + h.Item.Content
	}
	ga, err := s.provider.GroundedGenerate(ctx, question, passages, len(passages))
	if err != nil {
		return Answer{}, fmt.Errorf("generate answer: %w", err)
	}
	return Answer{GroundedAnswer: ga, Sources: hits}, nil
}

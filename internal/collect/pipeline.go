package collect

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kamusis/cerebro/internal/registry"
)

// Sink is the write side of registry.Registry used by the pipeline.
type Sink interface {
	GetIntelligence(id string) (registry.IntelligenceItem, bool)
	AddIntelligence(item registry.IntelligenceItem) string
	UpdateProject(name string, fn func(*registry.Project)) bool
	MarkScanned(t time.Time)
}

// Report summarises one pipeline run.
type Report struct {
	Projects int `json:"projects"`
	Items    int `json:"items"`
	Known    int `json:"known"`
	Failures int `json:"failures"`
}

// Pipeline runs collectors over projects on a bounded worker pool.
type Pipeline struct {
	sink       Sink
	collectors []Collector
	workers    int
	now        func() time.Time
}

type PipelineOption func(*Pipeline)

func WithWorkers(n int) PipelineOption {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) { p.now = now }
}

func NewPipeline(sink Sink, collectors []Collector, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{sink: sink, collectors: collectors, workers: 4, now: time.Now}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Run collects every project concurrently, then registers results in
// project order so the registry sees a deterministic sequence. A failing
// collector is logged and counted; it does not abort the run. Only context
// cancellation returns an error.
func (pl *Pipeline) Run(ctx context.Context, projects []registry.Project) (Report, error) {
	results := make([][]registry.IntelligenceItem, len(projects))
	failures := make([]int, len(projects))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(pl.workers)
	for i, p := range projects {
		g.Go(func() error {
			for _, c := range pl.collectors {
				if err := gctx.Err(); err != nil {
					return err
				}
				items, err := c.Collect(gctx, p)
				if err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					failures[i]++
					log.Warn("collector failed", "collector", c.Name(), "project", p.Name, "error", err)
					continue
				}
				results[i] = append(results[i], items...)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	rep := Report{Projects: len(projects)}
	for i, p := range projects {
		rep.Failures += failures[i]
		var lastCommit *time.Time
		var langs []string
		for _, it := range results[i] {
			// Collector IDs are stable, so a known ID is a fact already counted.
			if _, ok := pl.sink.GetIntelligence(it.ID); ok {
				rep.Known++
			} else {
				pl.sink.AddIntelligence(it)
				rep.Items++
			}
			if it.HasTag("git") && (lastCommit == nil || it.Timestamp.After(*lastCommit)) {
				t := it.Timestamp
				lastCommit = &t
			}
			if it.HasTag("structure") {
				if l, ok := it.Metadata["languages"].([]string); ok {
					langs = l
				}
			}
		}
		now := pl.now()
		pl.sink.UpdateProject(p.Name, func(proj *registry.Project) {
			if lastCommit != nil {
				proj.LastCommit = lastCommit
				proj.Status = registry.StatusFromCommit(lastCommit, now)
			}
			if len(proj.Languages) == 0 && len(langs) > 0 {
				proj.Languages = langs
			}
		})
	}
	pl.sink.MarkScanned(pl.now())
	log.Info("collection finished", "projects", rep.Projects, "items", rep.Items, "known", rep.Known, "failures", rep.Failures)
	return rep, nil
}

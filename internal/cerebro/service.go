// Package cerebro wires the registry, index, analyzer, briefing generator and
// collectors into one explicitly constructed service.
package cerebro

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/kamusis/cerebro/internal/analyzer"
	"github.com/kamusis/cerebro/internal/briefing"
	"github.com/kamusis/cerebro/internal/collect"
	"github.com/kamusis/cerebro/internal/config"
	"github.com/kamusis/cerebro/internal/embeddings"
	"github.com/kamusis/cerebro/internal/index"
	"github.com/kamusis/cerebro/internal/logger"
	"github.com/kamusis/cerebro/internal/registry"
)

var log = logger.ForComponent("service")

// Service owns every component. Build it once per process with New, call
// Open before use and Close when done.
type Service struct {
	cfg *config.Config

	store      registry.SnapshotStore
	reg        *registry.Registry
	provider   embeddings.LLMProvider
	index      *index.Indexer
	analyzer   *analyzer.Analyzer
	briefings  *briefing.Generator
	collectors []collect.Collector
	now        func() time.Time

	providerSet bool
	openOnce    sync.Once
	readiness   index.Readiness
	openErr     error
}

type Option func(*Service)

// WithProvider skips env-based provider selection. A nil provider runs the
// service without semantic search.
func WithProvider(p embeddings.LLMProvider) Option {
	return func(s *Service) {
		s.provider = p
		s.providerSet = true
	}
}

// WithStore replaces the snapshot store chosen from config.
func WithStore(st registry.SnapshotStore) Option {
	return func(s *Service) { s.store = st }
}

func WithCollectors(cs ...collect.Collector) Option {
	return func(s *Service) { s.collectors = cs }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New builds the service from configuration. It performs no I/O beyond
// constructing clients; Open loads state.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	s := &Service{cfg: cfg, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	if s.store == nil {
		st, err := registry.NewSnapshotStore(cfg)
		if err != nil {
			return nil, err
		}
		s.store = st
	}
	if s.collectors == nil {
		s.collectors = collect.Default()
	}

	s.reg = registry.New(s.store, registry.WithClock(s.now))
	s.analyzer = analyzer.New(s.reg,
		analyzer.WithClock(s.now),
		analyzer.WithManifestReader(analyzer.FileManifestReader(cfg.Manifests)))
	s.briefings = briefing.New(s.reg, s.analyzer, briefing.WithClock(s.now))
	return s, nil
}

// Open loads the registry snapshot, selects the embedding provider and
// opens the index. A missing or misconfigured provider degrades semantic
// search instead of failing. It is safe to call more than once.
func (s *Service) Open(ctx context.Context) (index.Readiness, error) {
	s.openOnce.Do(func() {
		if err := s.reg.Load(ctx); err != nil {
			s.openErr = fmt.Errorf("load registry from %s: %w", s.store.Name(), err)
			return
		}
		if !s.providerSet {
			s.provider = s.selectProvider(ctx)
		}

		var emb embeddings.Embedder
		if s.provider != nil {
			emb = s.provider
		}
		s.index = index.New(s.reg, emb, index.Options{
			Dir:       s.cfg.CacheDir,
			BatchSize: s.cfg.Index.BatchSize,
			Workers:   s.cfg.Workers,
			CacheSize: s.cfg.Index.CacheSize,
		})
		s.readiness = s.index.Open(ctx)
		log.Debug("service opened", "store", s.store.Name(), "index", s.readiness)
	})
	return s.readiness, s.openErr
}

func (s *Service) selectProvider(ctx context.Context) embeddings.LLMProvider {
	pc, err := embeddings.LoadConfig()
	if err == nil {
		var p embeddings.LLMProvider
		if p, err = embeddings.NewFromConfig(ctx, pc); err == nil {
			return embeddings.WithRetry(p, embeddings.DefaultRetryPolicy)
		}
	}
	if embeddings.IsConfiguration(err) {
		log.Info("semantic search disabled", "reason", err)
	} else {
		log.Warn("cannot create embedding provider", "error", err)
	}
	return nil
}

// Save persists the registry snapshot and the index.
func (s *Service) Save(ctx context.Context) error {
	if err := s.reg.Save(ctx); err != nil {
		return fmt.Errorf("save registry to %s: %w", s.store.Name(), err)
	}
	if s.index != nil {
		if err := s.index.Save(ctx); err != nil {
			return fmt.Errorf("save index: %w", err)
		}
	}
	return nil
}

// Close releases store connections. It does not save.
func (s *Service) Close() error {
	if c, ok := s.store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (s *Service) Config() *config.Config           { return s.cfg }
func (s *Service) StoreName() string                { return s.store.Name() }
func (s *Service) Provider() embeddings.LLMProvider { return s.provider }
func (s *Service) Registry() *registry.Registry     { return s.reg }

func (s *Service) ensureOpen() error {
	if s.index == nil {
		return errors.New("service is not open")
	}
	return nil
}

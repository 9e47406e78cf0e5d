// Package index maintains a brute-force vector index over intelligence items:
// an arena of L2-normalised float32 rows plus an ordered id_map, tombstones
// for superseded rows, and an on-disk form swapped in atomically.
package index

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/kamusis/cerebro/internal/embeddings"
	"github.com/kamusis/cerebro/internal/lockfile"
	"github.com/kamusis/cerebro/internal/logger"
	"github.com/kamusis/cerebro/internal/registry"
)

var log = logger.ForComponent("indexer")

// ItemSource supplies item content for indexing and hydration.
type ItemSource interface {
	ListIntelligence() []registry.IntelligenceItem
	GetIntelligence(id string) (registry.IntelligenceItem, bool)
}

// Readiness reports whether the indexer can embed.
type Readiness int

const (
	NotInitialized Readiness = iota
	Ready
	// Degraded means no usable provider: searches are empty and indexing is a no-op.
	Degraded
)

func (r Readiness) String() string {
	switch r {
	case Ready:
		return "ready"
	case Degraded:
		return "degraded"
	default:
		return "not_initialized"
	}
}

type healthChecker interface {
	HealthCheck(ctx context.Context) bool
}

// Options configures an Indexer.
type Options struct {
	// Dir holds the persisted index. Empty keeps the index in memory only.
	Dir         string
	BatchSize   int
	Workers     int
	CacheSize   int
	LockTimeout time.Duration
}

// Result is one search match.
type Result struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// Hit is a search match hydrated from the item source.
type Hit struct {
	Item  registry.IntelligenceItem `json:"item"`
	Score float64                   `json:"score"`
}

type Stats struct {
	Model      string `json:"model"`
	Dim        int    `json:"dim"`
	Indexed    int    `json:"indexed"`
	Tombstoned int    `json:"tombstoned"`
	Readiness  string `json:"readiness"`
}

// Indexer is safe for concurrent use. Row i of vectors always belongs to ids[i].
type Indexer struct {
	src  ItemSource
	emb  embeddings.Embedder
	opts Options

	persistMu sync.Mutex

	mu        sync.RWMutex
	readiness Readiness
	model     string
	dim       int
	ids       []string
	rows      map[string]int
	vectors   []float32
	dead      map[string]struct{}

	cache *lru.Cache[string, []float32]
}

// New takes configuration only; call Open before use. emb may be nil.
func New(src ItemSource, emb embeddings.Embedder, opts Options) *Indexer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 256
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = lockfile.DefaultTimeout
	}
	cache, _ := lru.New[string, []float32](opts.CacheSize)
	return &Indexer{
		src:   src,
		emb:   emb,
		opts:  opts,
		ids:   []string{},
		rows:  make(map[string]int),
		dead:  make(map[string]struct{}),
		cache: cache,
	}
}

// Open loads persisted artifacts and probes the provider.
func (ix *Indexer) Open(ctx context.Context) Readiness {
	if err := ix.Load(ctx); err != nil {
		log.Warn("cannot load index, starting empty", "dir", ix.opts.Dir, "error", err)
	}

	r := Ready
	if ix.emb == nil {
		log.Warn("no embedding provider configured, semantic search disabled")
		r = Degraded
	} else if hc, ok := ix.emb.(healthChecker); ok && !hc.HealthCheck(ctx) {
		log.Warn("embedding provider failed health check, semantic search disabled", "model", ix.emb.ModelID())
		r = Degraded
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.readiness = r
	if r == Ready {
		model := ix.emb.ModelID()
		if ix.model != "" && ix.model != model && len(ix.ids) > 0 {
			log.Warn("index was built with another model, discarding it", "index_model", ix.model, "model", model)
			ix.resetLocked()
		}
		ix.model = model
	}
	return r
}

func (ix *Indexer) Readiness() Readiness {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.readiness
}

func (ix *Indexer) ready() bool {
	return ix.Readiness() == Ready
}

// Has reports whether id occupies a row, tombstoned or not.
func (ix *Indexer) Has(id string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	_, ok := ix.rows[id]
	return ok
}

// EmbedText returns the normalised embedding of text. Results are cached by
// text hash. It reports false when no provider is usable or the call fails.
func (ix *Indexer) EmbedText(ctx context.Context, text string) ([]float32, bool) {
	if !ix.ready() || strings.TrimSpace(text) == "" {
		return nil, false
	}
	key := TextHash(text)
	if v, ok := ix.cache.Get(key); ok {
		return slices.Clone(v), true
	}
	v, ok := ix.embedOne(ctx, text)
	if !ok {
		return nil, false
	}
	ix.cache.Add(key, v)
	return slices.Clone(v), true
}

// EmbedBatch returns one normalised embedding per text.
func (ix *Indexer) EmbedBatch(ctx context.Context, texts []string) ([][]float32, bool) {
	if !ix.ready() {
		return nil, false
	}
	vecs, err := ix.emb.EmbedBatch(ctx, texts)
	if err != nil || len(vecs) != len(texts) {
		log.Warn("batch embedding failed", "size", len(texts), "error", err)
		return nil, false
	}
	out := make([][]float32, len(vecs))
	for i, v := range vecs {
		out[i] = NormalizeL2(v)
	}
	return out, true
}

func (ix *Indexer) embedOne(ctx context.Context, text string) ([]float32, bool) {
	v, err := ix.emb.Embed(ctx, text)
	if err != nil {
		log.Warn("embedding failed", "error", err)
		return nil, false
	}
	if len(v) == 0 {
		return nil, false
	}
	return NormalizeL2(v), true
}

// IndexItem embeds content under id. A live id succeeds without embedding
// again. A tombstoned id is re-embedded into its existing row and revived.
func (ix *Indexer) IndexItem(ctx context.Context, id, content string) bool {
	if id == "" {
		return false
	}
	ix.mu.RLock()
	_, present := ix.rows[id]
	_, dead := ix.dead[id]
	ix.mu.RUnlock()
	if present && !dead {
		return true
	}
	if !ix.ready() || strings.TrimSpace(content) == "" {
		return false
	}
	v, ok := ix.embedOne(ctx, content)
	if !ok {
		return false
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	var err error
	if row, ok := ix.rows[id]; ok {
		err = ix.reviveLocked(id, row, v)
	} else {
		_, err = ix.appendLocked(id, v)
	}
	if err != nil {
		log.Warn("cannot index item", "id", registry.ShortID(id), "error", err)
		return false
	}
	return true
}

// reviveLocked overwrites a row in place and clears its tombstone.
func (ix *Indexer) reviveLocked(id string, row int, v []float32) error {
	if len(v) != ix.dim {
		return fmt.Errorf("%w: got %d want %d", ErrDimensionMismatch, len(v), ix.dim)
	}
	copy(ix.vectors[row*ix.dim:(row+1)*ix.dim], v)
	delete(ix.dead, id)
	return nil
}

// appendLocked adds one row. The vector and its id_map entry are appended
// together or not at all.
func (ix *Indexer) appendLocked(id string, v []float32) (bool, error) {
	if _, ok := ix.rows[id]; ok {
		return false, nil
	}
	if len(v) == 0 {
		return false, fmt.Errorf("%w: empty vector", ErrDimensionMismatch)
	}
	if ix.dim == 0 {
		ix.dim = len(v)
	} else if len(v) != ix.dim {
		return false, fmt.Errorf("%w: got %d want %d", ErrDimensionMismatch, len(v), ix.dim)
	}
	ix.rows[id] = len(ix.ids)
	ix.ids = append(ix.ids, id)
	ix.vectors = append(ix.vectors, v...)
	return true, nil
}

// IndexAll embeds every registry item missing from the id_map, in batches
// embedded concurrently and appended in batch order, then persists once.
// A failed batch is retried item by item; a failed item is skipped.
// Tombstoned rows are not pending: they stay hidden until IndexItem revives
// them or Compact drops them.
func (ix *Indexer) IndexAll(ctx context.Context, batchSize int) (int, error) {
	if !ix.ready() {
		log.Warn("embedding provider not available, skipping indexing")
		return 0, nil
	}
	if batchSize <= 0 {
		batchSize = ix.opts.BatchSize
	}

	items := ix.src.ListIntelligence()
	ix.mu.RLock()
	pending := make([]registry.IntelligenceItem, 0)
	for _, it := range items {
		if _, ok := ix.rows[it.ID]; !ok {
			pending = append(pending, it)
		}
	}
	ix.mu.RUnlock()
	if len(pending) == 0 {
		return 0, nil
	}

	batches := chunk(pending, batchSize)
	results := make([][][]float32, len(batches))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.opts.Workers)
	for i, batch := range batches {
		g.Go(func() error {
			results[i] = ix.embedItems(gctx, batch)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	indexed := 0
	ix.mu.Lock()
	for i, batch := range batches {
		for j, it := range batch {
			v := results[i][j]
			if v == nil {
				continue
			}
			added, err := ix.appendLocked(it.ID, v)
			if err != nil {
				log.Warn("cannot index item", "id", registry.ShortID(it.ID), "error", err)
				continue
			}
			if added {
				indexed++
			}
		}
	}
	total := len(ix.ids)
	ix.mu.Unlock()

	if err := ix.Save(ctx); err != nil {
		return indexed, err
	}
	log.Info("indexed new items", "new", indexed, "total", total)
	return indexed, nil
}

func (ix *Indexer) embedItems(ctx context.Context, items []registry.IntelligenceItem) [][]float32 {
	texts := make([]string, len(items))
	for i, it := range items {
		texts[i] = CanonicalText(it)
	}
	out := make([][]float32, len(items))

	vecs, err := ix.emb.EmbedBatch(ctx, texts)
	if err == nil && len(vecs) == len(texts) {
		for i, v := range vecs {
			if len(v) > 0 {
				out[i] = NormalizeL2(v)
			}
		}
		return out
	}
	log.Warn("batch embedding failed, embedding items one by one", "size", len(texts), "error", err)

	for i, t := range texts {
		if ctx.Err() != nil {
			break
		}
		if strings.TrimSpace(t) == "" {
			log.Warn("skipping item with no text", "id", registry.ShortID(items[i].ID))
			continue
		}
		v, ok := ix.embedOne(ctx, t)
		if !ok {
			log.Warn("skipping item", "id", registry.ShortID(items[i].ID))
			continue
		}
		out[i] = v
	}
	return out
}

func chunk[T any](in []T, size int) [][]T {
	out := make([][]T, 0, (len(in)+size-1)/size)
	for start := 0; start < len(in); start += size {
		end := min(start+size, len(in))
		out = append(out, in[start:end])
	}
	return out
}

// Search returns at most topK live rows scoring at least minScore against
// query, best first. An empty index or unusable provider yields no results.
func (ix *Indexer) Search(ctx context.Context, query string, topK int, minScore float64) []Result {
	out := make([]Result, 0)
	if topK <= 0 {
		return out
	}
	ix.mu.RLock()
	empty := len(ix.ids) == 0
	ix.mu.RUnlock()
	if empty {
		return out
	}

	q, ok := ix.EmbedText(ctx, query)
	if !ok {
		return out
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if len(q) != ix.dim {
		log.Warn("query embedding does not match index", "got", len(q), "want", ix.dim)
		return out
	}
	for row, id := range ix.ids {
		if _, dead := ix.dead[id]; dead {
			continue
		}
		s := Dot(q, ix.vectors[row*ix.dim:(row+1)*ix.dim])
		if s < minScore {
			continue
		}
		out = append(out, Result{ID: id, Score: s})
	}
	SortResults(out)
	if len(out) > topK {
		out = out[:topK]
	}
	return out
}

// SemanticQuery is Search with each match hydrated from the item source.
// Matches whose item is gone are dropped.
func (ix *Indexer) SemanticQuery(ctx context.Context, query string, topK int, minScore float64) []Hit {
	results := ix.Search(ctx, query, topK, minScore)
	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		it, ok := ix.src.GetIntelligence(r.ID)
		if !ok {
			continue
		}
		hits = append(hits, Hit{Item: it, Score: r.Score})
	}
	return hits
}

// Supersede tombstones id so searches skip it until Compact drops the row.
func (ix *Indexer) Supersede(id string) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if _, ok := ix.rows[id]; !ok {
		return false
	}
	if _, dead := ix.dead[id]; dead {
		return false
	}
	ix.dead[id] = struct{}{}
	return true
}

// Compact rebuilds the arena without tombstoned rows and persists it.
// It returns the number of rows removed.
func (ix *Indexer) Compact(ctx context.Context) (int, error) {
	ix.mu.Lock()
	removed := len(ix.dead)
	if removed > 0 {
		ids := make([]string, 0, len(ix.ids)-removed)
		vectors := make([]float32, 0, (len(ix.ids)-removed)*ix.dim)
		rows := make(map[string]int, len(ix.ids)-removed)
		for row, id := range ix.ids {
			if _, dead := ix.dead[id]; dead {
				continue
			}
			rows[id] = len(ids)
			ids = append(ids, id)
			vectors = append(vectors, ix.vectors[row*ix.dim:(row+1)*ix.dim]...)
		}
		ix.ids, ix.vectors, ix.rows = ids, vectors, rows
		ix.dead = make(map[string]struct{})
	}
	ix.mu.Unlock()

	if removed == 0 {
		return 0, nil
	}
	if err := ix.Save(ctx); err != nil {
		return removed, err
	}
	log.Info("index compacted", "removed", removed)
	return removed, nil
}

// Clear empties the index and persists the empty state.
func (ix *Indexer) Clear(ctx context.Context) error {
	ix.mu.Lock()
	ix.resetLocked()
	ix.mu.Unlock()
	if err := ix.Save(ctx); err != nil {
		return err
	}
	log.Info("index cleared")
	return nil
}

func (ix *Indexer) resetLocked() {
	ix.dim = 0
	ix.ids = []string{}
	ix.vectors = nil
	ix.rows = make(map[string]int)
	ix.dead = make(map[string]struct{})
}

func (ix *Indexer) Stats() Stats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return Stats{
		Model:      ix.model,
		Dim:        ix.dim,
		Indexed:    len(ix.ids),
		Tombstoned: len(ix.dead),
		Readiness:  ix.readiness.String(),
	}
}

// IDMap returns a copy of the row order.
func (ix *Indexer) IDMap() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return slices.Clone(ix.ids)
}

func (ix *Indexer) dataDir() string  { return filepath.Join(ix.opts.Dir, "index") }
func (ix *Indexer) lockPath() string { return filepath.Join(ix.opts.Dir, "index.lock") }

// Save writes the index to a temp dir and swaps it over the previous one.
func (ix *Indexer) Save(ctx context.Context) error {
	if ix.opts.Dir == "" {
		return nil
	}
	ix.persistMu.Lock()
	defer ix.persistMu.Unlock()

	release, err := lockfile.Acquire(ctx, ix.lockPath(), ix.opts.LockTimeout)
	if err != nil {
		return err
	}
	defer release()

	if err := os.MkdirAll(ix.opts.Dir, 0o755); err != nil {
		return fmt.Errorf("cannot create index dir: %w", err)
	}
	tmp, err := os.MkdirTemp(ix.opts.Dir, "index.tmp-")
	if err != nil {
		return fmt.Errorf("cannot create temp index dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	ix.mu.RLock()
	dead := make([]string, 0, len(ix.dead))
	for id := range ix.dead {
		dead = append(dead, id)
	}
	slices.Sort(dead)
	a := &Artifacts{
		Manifest: Manifest{
			IndexVersion: 1,
			ModelID:      ix.model,
			Dim:          ix.dim,
			Normalize:    true,
			Tombstones:   dead,
		},
		IDMap:   ix.ids,
		Vectors: ix.vectors,
	}
	err = Write(tmp, a)
	ix.mu.RUnlock()
	if err != nil {
		return err
	}
	if err := AtomicSwap(tmp, ix.dataDir()); err != nil {
		return fmt.Errorf("cannot swap index into place: %w", err)
	}
	return nil
}

// Load replaces the in-memory index with the persisted one. Missing
// artifacts yield an empty index; corrupt artifacts leave it empty and
// return the error.
func (ix *Indexer) Load(ctx context.Context) error {
	if ix.opts.Dir == "" {
		return nil
	}
	ix.persistMu.Lock()
	defer ix.persistMu.Unlock()

	release, err := lockfile.Acquire(ctx, ix.lockPath(), ix.opts.LockTimeout)
	if err != nil {
		return err
	}
	defer release()

	a, err := Load(ix.dataDir())

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.resetLocked()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}

	ix.dim = a.Manifest.Dim
	ix.ids = a.IDMap
	ix.vectors = a.Vectors
	for row, id := range a.IDMap {
		ix.rows[id] = row
	}
	for _, id := range a.Manifest.Tombstones {
		if _, ok := ix.rows[id]; ok {
			ix.dead[id] = struct{}{}
		}
	}
	if a.Manifest.ModelID != "" {
		ix.model = a.Manifest.ModelID
	}
	log.Debug("index loaded", "rows", len(ix.ids), "dim", ix.dim)
	return nil
}

// Package registry owns projects and intelligence items, derives alerts and
// ecosystem status from them, and persists a JSON snapshot through a
// pluggable SnapshotStore.
package registry

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kamusis/cerebro/internal/logger"
)

var log = logger.ForComponent("registry")

// Registry is the in-memory state store. It is safe for concurrent use;
// every getter returns a copy.
type Registry struct {
	mu       sync.RWMutex
	store    SnapshotStore
	now      func() time.Time
	projects map[string]*Project
	items    map[string]*IntelligenceItem
	lastScan *time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// New returns an empty registry. store may be nil for a memory-only registry;
// Save and Load are then no-ops.
func New(store SnapshotStore, opts ...Option) *Registry {
	r := &Registry{
		store:    store,
		now:      time.Now,
		projects: make(map[string]*Project),
		items:    make(map[string]*IntelligenceItem),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// RegisterProject inserts p or replaces the project with the same name.
func (r *Registry) RegisterProject(p Project) error {
	if p.Name == "" {
		return fmt.Errorf("project name is required")
	}
	cp := p.clone()
	cp.HealthScore = ClampScore(cp.HealthScore)
	if cp.Status == "" {
		cp.Status = StatusUnknown
	}

	r.mu.Lock()
	r.projects[cp.Name] = &cp
	r.mu.Unlock()

	log.Debug("registered project", "project", cp.Name)
	return nil
}

// AddIntelligence stores item and returns its ID, deriving one from the
// content hash when empty. Re-adding an existing ID replaces the record;
// dedup policy belongs to the caller.
func (r *Registry) AddIntelligence(item IntelligenceItem) string {
	cp := item.clone()
	if cp.ID == "" {
		cp.ID = GenerateID(cp.Content)
	}
	if cp.ThreatLevel == "" {
		cp.ThreatLevel = ThreatInfo
	}

	r.mu.Lock()
	if cp.Timestamp.IsZero() {
		cp.Timestamp = r.now().UTC()
	}
	r.items[cp.ID] = &cp
	for _, name := range cp.RelatedProjects {
		if p, ok := r.projects[name]; ok {
			p.IntelligenceCount++
		}
	}
	r.mu.Unlock()

	log.Debug("added intelligence", "id", ShortID(cp.ID), "type", cp.Type)
	return cp.ID
}

func (r *Registry) GetProject(name string) (Project, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.projects[name]
	if !ok {
		return Project{}, false
	}
	return p.clone(), true
}

// ListProjects returns every project sorted by name.
func (r *Registry) ListProjects() []Project {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Project, 0, len(r.projects))
	for _, p := range r.projects {
		out = append(out, p.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Registry) GetIntelligence(id string) (IntelligenceItem, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	it, ok := r.items[id]
	if !ok {
		return IntelligenceItem{}, false
	}
	return it.clone(), true
}

// ListIntelligence returns every item, newest first.
func (r *Registry) ListIntelligence() []IntelligenceItem {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]IntelligenceItem, 0, len(r.items))
	for _, it := range r.items {
		out = append(out, it.clone())
	}
	sortNewestFirst(out)
	return out
}

// ProjectIntelligence returns the items related to project, newest first.
func (r *Registry) ProjectIntelligence(project string) []IntelligenceItem {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]IntelligenceItem, 0)
	for _, it := range r.items {
		if it.RelatesTo(project) {
			out = append(out, it.clone())
		}
	}
	sortNewestFirst(out)
	return out
}

// IntelligenceCount returns the number of stored items.
func (r *Registry) IntelligenceCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// CalculateHealthScore is the mean project health score, or 0 with no projects.
func (r *Registry) CalculateHealthScore() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.healthLocked()
}

func (r *Registry) healthLocked() float64 {
	if len(r.projects) == 0 {
		return 0
	}
	var total float64
	for _, p := range r.projects {
		total += p.HealthScore
	}
	return total / float64(len(r.projects))
}

// UpdateHealth overwrites a project's score and status. It reports false
// when the project is unknown.
func (r *Registry) UpdateHealth(name string, score float64, status ProjectStatus) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.projects[name]
	if !ok {
		return false
	}
	p.HealthScore = ClampScore(score)
	if status != "" {
		p.Status = status
	}
	return true
}

// UpdateProject applies fn to a copy of the named project and stores the
// result. It reports false when the project is unknown.
func (r *Registry) UpdateProject(name string, fn func(*Project)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.projects[name]
	if !ok {
		return false
	}
	cp := p.clone()
	fn(&cp)
	cp.Name = name
	cp.HealthScore = ClampScore(cp.HealthScore)
	r.projects[name] = &cp
	return true
}

// MarkScanned records the time of the last collection pass.
func (r *Registry) MarkScanned(t time.Time) {
	t = t.UTC()
	r.mu.Lock()
	r.lastScan = &t
	r.mu.Unlock()
}

// EcosystemStatus derives the aggregate counters from current state.
func (r *Registry) EcosystemStatus() EcosystemStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.statusLocked()
}

func (r *Registry) statusLocked() EcosystemStatus {
	st := EcosystemStatus{
		TotalProjects:     len(r.projects),
		TotalIntelligence: len(r.items),
		HealthScore:       r.healthLocked(),
		Alerts:            r.alertsLocked(),
	}
	for _, p := range r.projects {
		if p.Status == StatusActive {
			st.ActiveProjects++
		}
	}
	if r.lastScan != nil {
		t := *r.lastScan
		st.LastScan = &t
	}
	return st
}

func sortNewestFirst(items []IntelligenceItem) {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].Timestamp.Equal(items[j].Timestamp) {
			return items[i].Timestamp.After(items[j].Timestamp)
		}
		return items[i].ID < items[j].ID
	})
}

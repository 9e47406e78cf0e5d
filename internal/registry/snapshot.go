package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type snapshot struct {
	Projects        map[string]*Project          `json:"projects"`
	Intelligence    map[string]*IntelligenceItem `json:"intelligence"`
	EcosystemStatus EcosystemStatus              `json:"ecosystem_status"`
	LastSaved       time.Time                    `json:"last_saved"`
}

// Save writes the full registry through the snapshot store. Writers are
// blocked for the duration.
func (r *Registry) Save(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := snapshot{
		Projects:        r.projects,
		Intelligence:    r.items,
		EcosystemStatus: r.statusLocked(),
		LastSaved:       r.now().UTC(),
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal snapshot: %w", err)
	}
	if err := r.store.Save(ctx, data); err != nil {
		return fmt.Errorf("cannot save snapshot to %s: %w", r.store.Name(), err)
	}
	log.Info("snapshot saved", "store", r.store.Name(), "projects", len(r.projects), "items", len(r.items))
	return nil
}

// Load replaces the registry contents with the stored snapshot. A missing
// snapshot leaves the registry empty and is not an error. Item counts are
// restored as saved, not recomputed.
func (r *Registry) Load(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := r.store.Load(ctx)
	if errors.Is(err, ErrNoSnapshot) {
		r.projects = make(map[string]*Project)
		r.items = make(map[string]*IntelligenceItem)
		r.lastScan = nil
		log.Debug("no snapshot found, starting empty", "store", r.store.Name())
		return nil
	}
	if err != nil {
		return fmt.Errorf("cannot load snapshot from %s: %w", r.store.Name(), err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("invalid snapshot in %s: %w", r.store.Name(), err)
	}

	projects := make(map[string]*Project, len(snap.Projects))
	for name, p := range snap.Projects {
		if p == nil {
			continue
		}
		p.Name = name
		p.HealthScore = ClampScore(p.HealthScore)
		if p.Status == "" {
			p.Status = StatusUnknown
		}
		projects[name] = p
	}
	items := make(map[string]*IntelligenceItem, len(snap.Intelligence))
	for id, it := range snap.Intelligence {
		if it == nil {
			continue
		}
		it.ID = id
		items[id] = it
	}

	r.projects = projects
	r.items = items
	r.lastScan = snap.EcosystemStatus.LastScan
	log.Info("snapshot loaded", "store", r.store.Name(), "projects", len(projects), "items", len(items))
	return nil
}

package analyzer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/kamusis/cerebro/internal/config"
	"github.com/kamusis/cerebro/internal/registry"
)

// ManifestReader returns the text of a project's build manifest. A project
// without a manifest returns ("", nil).
type ManifestReader interface {
	ReadManifest(ctx context.Context, p registry.Project) (string, error)
}

// ManifestReaderFunc adapts a function to ManifestReader.
type ManifestReaderFunc func(ctx context.Context, p registry.Project) (string, error)

func (f ManifestReaderFunc) ReadManifest(ctx context.Context, p registry.Project) (string, error) {
	return f(ctx, p)
}

// FileManifestReader reads the first existing file of names under
// Project.Path. A nil names uses config.DefaultManifests.
func FileManifestReader(names []string) ManifestReader {
	if len(names) == 0 {
		names = config.DefaultManifests
	}
	names = slices.Clone(names)
	return ManifestReaderFunc(func(ctx context.Context, p registry.Project) (string, error) {
		if p.Path == "" {
			return "", nil
		}
		for _, n := range names {
			if err := ctx.Err(); err != nil {
				return "", err
			}
			data, err := os.ReadFile(filepath.Join(p.Path, n))
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			if err != nil {
				return "", fmt.Errorf("read %s: %w", n, err)
			}
			return string(data), nil
		}
		return "", nil
	})
}

// FindDependenciesGraph returns, for every project, the sorted names of
// other projects mentioned literally in its manifest. Every project has an
// entry, possibly empty.
func (a *Analyzer) FindDependenciesGraph(ctx context.Context) map[string][]string {
	projects := a.src.ListProjects()
	graph := make(map[string][]string, len(projects))
	for _, p := range projects {
		deps := make([]string, 0)
		graph[p.Name] = deps

		text, err := a.manifests.ReadManifest(ctx, p)
		if err != nil {
			if ctx.Err() != nil {
				log.Warn("dependency scan cancelled", "error", ctx.Err())
				return graph
			}
			log.Warn("unreadable manifest, skipping", "project", p.Name, "path", p.Path, "error", err)
			continue
		}
		if text == "" {
			continue
		}
		for _, other := range projects {
			if other.Name != p.Name && strings.Contains(text, other.Name) {
				deps = append(deps, other.Name)
			}
		}
		slices.Sort(deps)
		graph[p.Name] = deps
	}
	return graph
}

// Dependents inverts a dependency graph.
func Dependents(graph map[string][]string) map[string][]string {
	out := make(map[string][]string, len(graph))
	for name := range graph {
		out[name] = make([]string, 0)
	}
	for name, deps := range graph {
		for _, d := range deps {
			out[d] = append(out[d], name)
		}
	}
	for _, v := range out {
		slices.Sort(v)
	}
	return out
}

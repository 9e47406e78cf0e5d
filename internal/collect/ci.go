package collect

import (
	"context"
	"os"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/kamusis/cerebro/internal/registry"
)

// ciSystems maps a CI system to the glob that detects it.
var ciSystems = []struct {
	name    string
	pattern string
}{
	{"GitLab CI", ".gitlab-ci.{yml,yaml}"},
	{"GitHub Actions", ".github/workflows/*.{yml,yaml}"},
	{"Jenkins", "Jenkinsfile"},
	{"CircleCI", ".circleci/config.{yml,yaml}"},
}

// CICollector records which CI systems a project is wired to.
type CICollector struct {
	now func() time.Time
}

func NewCICollector() *CICollector { return &CICollector{now: time.Now} }

func (c *CICollector) Name() string { return "ci" }

func (c *CICollector) Collect(ctx context.Context, p registry.Project) ([]registry.IntelligenceItem, error) {
	if p.Path == "" {
		return nil, nil
	}
	fsys := os.DirFS(p.Path)
	var items []registry.IntelligenceItem
	for _, sys := range ciSystems {
		if err := ctx.Err(); err != nil {
			return items, err
		}
		matches, err := doublestar.Glob(fsys, sys.pattern)
		if err != nil || len(matches) == 0 {
			continue
		}
		items = append(items, newItem(itemSpec{
			typ:     registry.TypeSIGINT,
			source:  "ci:" + p.Name,
			title:   "CI/CD detected: " + sys.name,
			content: "Project " + p.Name + " has CI/CD configuration: " + matches[0],
			metadata: map[string]any{
				"ci_type": sys.name,
				"files":   matches,
			},
			tags:    []string{"ci", "devops"},
			project: p.Name,
			at:      c.now(),
		}))
	}
	return items, nil
}

package collect

import (
	"cmp"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/kamusis/cerebro/internal/registry"
)

var extLanguages = map[string]string{
	".go":   "Go",
	".py":   "Python",
	".rs":   "Rust",
	".ts":   "TypeScript",
	".tsx":  "TypeScript",
	".js":   "JavaScript",
	".jsx":  "JavaScript",
	".nix":  "Nix",
	".sol":  "Solidity",
	".java": "Java",
	".cpp":  "C++",
	".c":    "C",
}

var testPatterns = []string{
	"**/*_test.go",
	"**/test_*.py",
	"**/*_test.py",
	"**/*.{test,spec}.{ts,tsx,js}",
	"{tests,test,spec}/**",
}

// maxLanguages bounds the language list to the most common extensions.
const maxLanguages = 5

// StructureCollector walks the tree once and reports TECHINT about the
// languages in use and whether tests exist. Hidden directories and
// vendored dependencies are skipped.
type StructureCollector struct {
	now func() time.Time
}

func NewStructureCollector() *StructureCollector { return &StructureCollector{now: time.Now} }

func (s *StructureCollector) Name() string { return "structure" }

func (s *StructureCollector) Collect(ctx context.Context, p registry.Project) ([]registry.IntelligenceItem, error) {
	if p.Path == "" {
		return nil, nil
	}
	fsys := os.DirFS(p.Path)
	exts := make(map[string]int)
	var tests, total int

	err := fs.WalkDir(fsys, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warn("walk error, skipping", "project", p.Name, "path", name, "error", err)
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		base := d.Name()
		if d.IsDir() {
			if name != "." && (strings.HasPrefix(base, ".") || base == "node_modules" || base == "vendor" || base == "target") {
				return fs.SkipDir
			}
			return nil
		}
		total++
		if ext := strings.ToLower(path.Ext(base)); ext != "" {
			exts[ext]++
		}
		for _, pat := range testPatterns {
			if ok, _ := doublestar.Match(pat, name); ok {
				tests++
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	now := s.now()
	var items []registry.IntelligenceItem
	if langs := primaryLanguages(exts); len(langs) > 0 {
		items = append(items, newItem(itemSpec{
			typ:     registry.TypeTECHINT,
			source:  "structure:" + p.Name,
			title:   "Code Structure: " + p.Name,
			content: fmt.Sprintf("Primary languages: %s. %d files.", strings.Join(langs, ", "), total),
			metadata: map[string]any{
				"languages":   langs,
				"file_counts": exts,
				"total_files": total,
			},
			tags:    []string{"structure", "languages"},
			project: p.Name,
			at:      now,
		}))
	}
	if tests > 0 {
		items = append(items, newItem(itemSpec{
			typ:     registry.TypeTECHINT,
			source:  "tests:" + p.Name,
			title:   "Tests: " + p.Name,
			content: fmt.Sprintf("Found %d test files", tests),
			metadata: map[string]any{
				"test_count": tests,
				"has_tests":  true,
			},
			tags:    []string{"testing", "quality"},
			project: p.Name,
			at:      now,
		}))
	}
	return items, nil
}

// primaryLanguages ranks extensions by count (ties by extension) and maps
// the top ones to language names.
func primaryLanguages(exts map[string]int) []string {
	type kv struct {
		ext string
		n   int
	}
	var ranked []kv
	for e, n := range exts {
		if _, ok := extLanguages[e]; ok {
			ranked = append(ranked, kv{e, n})
		}
	}
	slices.SortFunc(ranked, func(a, b kv) int {
		if c := cmp.Compare(b.n, a.n); c != 0 {
			return c
		}
		return cmp.Compare(a.ext, b.ext)
	})
	var out []string
	for _, r := range ranked {
		lang := extLanguages[r.ext]
		if !slices.Contains(out, lang) {
			out = append(out, lang)
		}
		if len(out) == maxLanguages {
			break
		}
	}
	return out
}

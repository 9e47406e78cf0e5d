package collect

import (
	"context"
	"io/fs"
	"os"
	"path"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/kamusis/cerebro/internal/registry"
)

var (
	adrPatterns = []string{"adr/**/*.md", "docs/adr/**/*.md", "docs/architecture/**/*.md"}
	docPatterns = []string{"docs/**/{ARCHITECTURE,DESIGN,API,GUIDE,ROADMAP}*.md"}
	readmeNames = []string{"README.md", "README.rst", "README.txt", "README"}

	adrIDRe = regexp.MustCompile(`(?i)ADR[-_]?(\d+)`)
)

const (
	maxDocContent    = 2000
	maxReadmeContent = 3000
)

// DocsCollector turns ADRs, key documents and the README into HUMINT items.
// Documents may carry YAML front matter (title, status, tags, threat_level).
type DocsCollector struct {
	now func() time.Time
}

func NewDocsCollector() *DocsCollector { return &DocsCollector{now: time.Now} }

func (d *DocsCollector) Name() string { return "docs" }

func (d *DocsCollector) Collect(ctx context.Context, p registry.Project) ([]registry.IntelligenceItem, error) {
	if p.Path == "" {
		return nil, nil
	}
	fsys := os.DirFS(p.Path)
	seen := make(map[string]bool)
	var items []registry.IntelligenceItem

	for _, f := range globAll(fsys, adrPatterns) {
		if err := ctx.Err(); err != nil {
			return items, err
		}
		seen[f] = true
		if it, ok := d.document(fsys, p, f, "adr"); ok {
			items = append(items, it)
		}
	}
	for _, f := range globAll(fsys, docPatterns) {
		if err := ctx.Err(); err != nil {
			return items, err
		}
		if seen[f] {
			continue
		}
		if it, ok := d.document(fsys, p, f, "doc"); ok {
			items = append(items, it)
		}
	}
	if it, ok := d.readme(fsys, p); ok {
		items = append(items, it)
	}
	return items, nil
}

func globAll(fsys fs.FS, patterns []string) []string {
	var out []string
	for _, pat := range patterns {
		matches, err := doublestar.Glob(fsys, pat)
		if err != nil {
			log.Warn("bad glob pattern", "pattern", pat, "error", err)
			continue
		}
		out = append(out, matches...)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func (d *DocsCollector) document(fsys fs.FS, p registry.Project, name, kind string) (registry.IntelligenceItem, bool) {
	raw, at, ok := d.read(fsys, p, name)
	if !ok {
		return registry.IntelligenceItem{}, false
	}
	fm, body, err := splitFrontMatter(raw)
	if err != nil {
		log.Warn("malformed front matter, using body only", "project", p.Name, "file", name, "error", err)
	}

	stem := strings.TrimSuffix(path.Base(name), path.Ext(name))
	title := fm.Title
	if title == "" {
		title = firstHeading(body, stem)
	}

	md := map[string]any{"file": name}
	if fm.Status != "" {
		md["status"] = fm.Status
	}
	level := registry.ThreatInfo
	if fm.Threat != "" {
		if l, err := registry.ParseThreatLevel(fm.Threat); err == nil {
			level = l
		} else {
			log.Warn("ignoring front matter threat_level", "file", name, "error", err)
		}
	}

	spec := itemSpec{
		typ:      registry.TypeHUMINT,
		content:  truncate(body, maxDocContent),
		metadata: md,
		level:    level,
		project:  p.Name,
		at:       at,
	}
	switch kind {
	case "adr":
		spec.source = "adr:" + p.Name
		spec.title = "ADR: " + truncate(title, 60)
		spec.tags = []string{"adr", "architecture", "decision"}
		if m := adrIDRe.FindString(path.Base(name)); m != "" {
			md["adr_id"] = m
		}
	default:
		spec.source = "docs:" + p.Name
		spec.title = "Doc: " + truncate(title, 60)
		spec.tags = []string{"documentation"}
	}
	for _, t := range fm.Tags {
		if t != "" && !slices.Contains(spec.tags, t) {
			spec.tags = append(spec.tags, t)
		}
	}
	return newItem(spec), true
}

func (d *DocsCollector) readme(fsys fs.FS, p registry.Project) (registry.IntelligenceItem, bool) {
	for _, name := range readmeNames {
		if _, err := fs.Stat(fsys, name); err != nil {
			continue
		}
		raw, at, ok := d.read(fsys, p, name)
		if !ok {
			return registry.IntelligenceItem{}, false
		}
		_, body, err := splitFrontMatter(raw)
		if err != nil {
			log.Warn("malformed front matter, using body only", "project", p.Name, "file", name, "error", err)
		}
		return newItem(itemSpec{
			typ:     registry.TypeHUMINT,
			source:  "readme:" + p.Name,
			title:   "README: " + p.Name,
			content: truncate(body, maxReadmeContent),
			metadata: map[string]any{
				"file":        name,
				"description": truncate(readmeDescription(body), 200),
			},
			tags:    []string{"readme", "overview"},
			project: p.Name,
			at:      at,
		}), true
	}
	return registry.IntelligenceItem{}, false
}

// read returns the file text and its modification time. Unreadable files
// are logged and skipped.
func (d *DocsCollector) read(fsys fs.FS, p registry.Project, name string) (string, time.Time, bool) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		log.Warn("unreadable document, skipping", "project", p.Name, "file", name, "error", err)
		return "", time.Time{}, false
	}
	at := d.now()
	if info, err := fs.Stat(fsys, name); err == nil {
		at = info.ModTime()
	}
	return string(data), at, true
}

// readmeDescription is the first paragraph that is not a heading.
func readmeDescription(body string) string {
	for _, para := range strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" || strings.HasPrefix(para, "#") {
			continue
		}
		return para
	}
	return truncate(strings.TrimSpace(body), 500)
}

package collect

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/kamusis/cerebro/internal/registry"
)

// GitRunner runs git in dir and returns stdout.
type GitRunner func(ctx context.Context, dir string, args ...string) ([]byte, error)

func execGit(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", dir}, args...)...)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("git %s: %s", args[0], strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("git %s: %w", args[0], err)
	}
	return out, nil
}

// GitCollector turns recent commits into SIGINT items.
type GitCollector struct {
	Limit   int
	Timeout time.Duration
	Run     GitRunner
}

func NewGitCollector() *GitCollector {
	return &GitCollector{Limit: 10, Timeout: 30 * time.Second, Run: execGit}
}

func (g *GitCollector) Name() string { return "git" }

const gitLogFormat = "%H|%s|%aI|%an"

// Collect reads the last Limit commits. A project without .git yields no
// items; a timeout is logged and yields no items.
func (g *GitCollector) Collect(ctx context.Context, p registry.Project) ([]registry.IntelligenceItem, error) {
	if p.Path == "" {
		return nil, nil
	}
	if _, err := os.Stat(filepath.Join(p.Path, ".git")); err != nil {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, g.Timeout)
	defer cancel()
	out, err := g.Run(ctx, p.Path, "log", "-n", fmt.Sprint(g.Limit), "--format="+gitLogFormat)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			log.Warn("git log timed out", "project", p.Name, "timeout", g.Timeout)
			return nil, nil
		}
		return nil, err
	}
	return parseGitLog(p.Name, string(out)), nil
}

func parseGitLog(project, out string) []registry.IntelligenceItem {
	var items []registry.IntelligenceItem
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		parts := strings.SplitN(line, "|", 4)
		if len(parts) < 4 {
			continue
		}
		// Subjects may contain '|'; hash, date and author never do.
		hash := parts[0]
		rest := line[len(hash)+1:]
		i := strings.LastIndex(rest, "|")
		j := strings.LastIndex(rest[:i], "|")
		if j < 0 {
			continue
		}
		msg, date, author := rest[:j], rest[j+1:i], rest[i+1:]

		at, err := time.Parse(time.RFC3339, date)
		if err != nil {
			log.Warn("unparseable commit date", "project", project, "commit", hash, "date", date)
			continue
		}
		items = append(items, newItem(itemSpec{
			typ:     registry.TypeSIGINT,
			source:  "git:" + project,
			title:   "Commit: " + truncate(msg, 50),
			content: fmt.Sprintf("Commit %s by %s: %s", truncate(hash, 8), author, msg),
			metadata: map[string]any{
				"commit_hash": hash,
				"author":      author,
				"date":        date,
			},
			level:   ClassifyCommit(msg),
			tags:    []string{"git", "commit"},
			project: project,
			at:      at,
		}))
	}
	return items
}

// ClassifyCommit maps keywords in a commit subject to a threat level. The
// most severe match wins.
func ClassifyCommit(msg string) registry.ThreatLevel {
	m := strings.ToLower(msg)
	has := func(words ...string) bool {
		for _, w := range words {
			if strings.Contains(m, w) {
				return true
			}
		}
		return false
	}
	switch {
	case has("critical", "urgent", "hotfix"):
		return registry.ThreatCritical
	case has("security", "vuln", "cve"):
		return registry.ThreatHigh
	case has("fix", "bug", "error"):
		return registry.ThreatLow
	}
	return registry.ThreatInfo
}

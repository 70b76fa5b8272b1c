package retrieval

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/maestro-ai/maestro/internal/core"
)

// GitHistoryProvider surfaces recent commits touching in-scope paths,
// plus the files that changed alongside them, as synthetic snippets.
// It shells out to git the same way the rest of the system does; a
// non-repository root just yields no results.
type GitHistoryProvider struct {
	repoPath   string
	reader     core.ContextReader
	maxCommits int
	timeout    time.Duration
}

func NewGitHistoryProvider(repoPath string, reader core.ContextReader) *GitHistoryProvider {
	return &GitHistoryProvider{
		repoPath:   repoPath,
		reader:     reader,
		maxCommits: 10,
		timeout:    10 * time.Second,
	}
}

func (p *GitHistoryProvider) Name() string { return "git-history" }

func (p *GitHistoryProvider) Search(ctx context.Context, query string, scope core.ContextScope, k int) ([]Result, error) {
	states, err := p.reader.ListFileStates(ctx)
	if err != nil {
		return nil, err
	}
	var paths []string
	for i := range states {
		if inScope(scope, &states[i]) {
			paths = append(paths, states[i].RelativePath)
		}
	}
	if len(paths) == 0 {
		return nil, nil
	}
	// Keep the argv bounded; history relevance degrades fast anyway.
	if len(paths) > 50 {
		paths = paths[:50]
	}

	args := append([]string{
		"log", fmt.Sprintf("-%d", p.maxCommits),
		"--name-only", "--pretty=format:%H%x09%an%x09%ad%x09%s", "--date=short", "--",
	}, paths...)
	out, err := p.run(ctx, args...)
	if err != nil || out == "" {
		// History is best-effort enrichment, not a hard dependency.
		return nil, nil
	}

	type commit struct {
		hash, author, date, subject string
		files                       []string
	}
	var commits []commit
	for _, block := range strings.Split(out, "\n\n") {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		if len(lines) == 0 {
			continue
		}
		head := strings.SplitN(lines[0], "\t", 4)
		if len(head) < 4 {
			continue
		}
		c := commit{hash: head[0], author: head[1], date: head[2], subject: head[3]}
		for _, f := range lines[1:] {
			if f = strings.TrimSpace(f); f != "" {
				c.files = append(c.files, f)
			}
		}
		commits = append(commits, c)
	}

	var results []Result
	coChanged := make(map[string]int)
	inScopeSet := make(map[string]struct{}, len(paths))
	for _, pth := range paths {
		inScopeSet[pth] = struct{}{}
	}
	for i, c := range commits {
		if len(c.files) == 0 {
			continue
		}
		score := 0.8 * float64(len(commits)-i) / float64(len(commits))
		results = append(results, Result{Snippet: core.ContextSnippet{
			Path:          c.files[firstInScope(c.files, inScopeSet)],
			Content:       fmt.Sprintf("commit %s (%s, %s): %s\nfiles: %s", shortHash(c.hash), c.author, c.date, c.subject, strings.Join(c.files, ", ")),
			Score:         score,
			TokenEstimate: (len(c.subject) + len(c.files)*16 + 3) / 4,
			Metadata: map[string]string{
				"type":   "commit",
				"commit": c.hash,
			},
		}})
		for _, f := range c.files {
			if _, ok := inScopeSet[f]; !ok {
				coChanged[f]++
			}
		}
	}

	// Files repeatedly committed together with in-scope paths.
	type co struct {
		path  string
		count int
	}
	var cos []co
	for f, n := range coChanged {
		if n >= 2 {
			cos = append(cos, co{f, n})
		}
	}
	sort.Slice(cos, func(i, j int) bool {
		if cos[i].count != cos[j].count {
			return cos[i].count > cos[j].count
		}
		return cos[i].path < cos[j].path
	})
	for _, c := range cos {
		results = append(results, Result{Snippet: core.ContextSnippet{
			Path:          c.path,
			Content:       fmt.Sprintf("%s changed together with in-scope files in %d recent commits", c.path, c.count),
			Score:         0.4,
			TokenEstimate: (len(c.path) + 20) / 4,
			Metadata:      map[string]string{"type": "co-changed"},
		}})
	}

	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (p *GitHistoryProvider) run(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = p.repoPath

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %s: %w", strings.Join(args[:1], " "), strings.TrimSpace(stderr.String()), err)
	}
	return strings.TrimSpace(stdout.String()), nil
}

func firstInScope(files []string, inScopeSet map[string]struct{}) int {
	for i, f := range files {
		if _, ok := inScopeSet[f]; ok {
			return i
		}
	}
	return 0
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}

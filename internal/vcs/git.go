// Package vcs answers read-only questions about a project's git repository.
//
// Every query shells out to git with a timeout and converts failures into
// empty values or a failed Result. Nothing here panics or returns raw
// process errors to the caller.
package vcs

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// DefaultTimeout bounds a single git invocation.
const DefaultTimeout = 10 * time.Second

// maxStatusEntries caps the changed-file list returned by Status.
const maxStatusEntries = 50

// Facts is the version-control surface the engine depends on.
type Facts interface {
	HasVCS(ctx context.Context, root string) bool
	Head(ctx context.Context, root string) Head
	DefaultBranch(ctx context.Context, root string) string
	Diff(ctx context.Context, root string) (string, bool)
	Status(ctx context.Context, root string) Status
	RecentCommits(ctx context.Context, root string, n int) []Commit
	CreateTag(ctx context.Context, root, name string) Result
	DiffStat(ctx context.Context, root string) PatchStats
}

// Result is the outcome of one git invocation.
type Result struct {
	OK     bool   `json:"ok"`
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
}

// Head is the current branch and commit. Empty strings when unknown.
type Head struct {
	Branch string `json:"branch"`
	Commit string `json:"commit"`
}

// ChangedFile is one entry of a porcelain status listing.
type ChangedFile struct {
	Status string `json:"status"`
	File   string `json:"file"`
}

// Status is the working tree summary.
type Status struct {
	Branch       string        `json:"branch"`
	Commit       string        `json:"commit"`
	ChangedFiles []ChangedFile `json:"changedFiles"`
}

// Commit is one line of the short log.
type Commit struct {
	Hash    string `json:"hash"`
	Message string `json:"message"`
}

// Git implements Facts with the git binary.
type Git struct {
	timeout time.Duration
	binary  string
}

// NewGit creates a git adapter. A non-positive timeout uses DefaultTimeout.
func NewGit(timeout time.Duration) *Git {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Git{timeout: timeout, binary: "git"}
}

// Run executes git with args in root. Timeouts and non-zero exits are
// reported as a failed Result.
func (g *Git) Run(ctx context.Context, root string, args ...string) Result {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, g.binary, args...)
	cmd.Dir = root

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			msg = "git " + args[0] + ": timeout after " + g.timeout.String()
		} else if msg == "" {
			msg = err.Error()
		}
		return Result{OK: false, Stdout: trimOutput(stdout.String()), Stderr: msg}
	}
	return Result{OK: true, Stdout: trimOutput(stdout.String()), Stderr: strings.TrimSpace(stderr.String())}
}

// HasVCS reports whether root holds a .git entry and git agrees it is a
// work tree.
func (g *Git) HasVCS(ctx context.Context, root string) bool {
	if _, err := os.Stat(filepath.Join(root, ".git")); err != nil {
		return false
	}
	r := g.Run(ctx, root, "rev-parse", "--is-inside-work-tree")
	return r.OK && strings.TrimSpace(r.Stdout) == "true"
}

// Head returns the current branch and commit hash.
func (g *Git) Head(ctx context.Context, root string) Head {
	var h Head
	if r := g.Run(ctx, root, "rev-parse", "--abbrev-ref", "HEAD"); r.OK {
		h.Branch = strings.TrimSpace(r.Stdout)
	}
	if r := g.Run(ctx, root, "rev-parse", "HEAD"); r.OK {
		h.Commit = strings.TrimSpace(r.Stdout)
	}
	return h
}

// DefaultBranch reads origin's HEAD, falling back to the current branch.
func (g *Git) DefaultBranch(ctx context.Context, root string) string {
	if r := g.Run(ctx, root, "symbolic-ref", "refs/remotes/origin/HEAD"); r.OK && r.Stdout != "" {
		return strings.TrimPrefix(r.Stdout, "refs/remotes/origin/")
	}
	return g.Head(ctx, root).Branch
}

// Diff returns the unstaged diff. The bool is false when git failed.
func (g *Git) Diff(ctx context.Context, root string) (string, bool) {
	r := g.Run(ctx, root, "diff")
	if !r.OK {
		return "", false
	}
	return r.Stdout, true
}

// Status returns head info plus up to 50 changed files.
func (g *Git) Status(ctx context.Context, root string) Status {
	head := g.Head(ctx, root)
	st := Status{Branch: head.Branch, Commit: head.Commit, ChangedFiles: []ChangedFile{}}

	r := g.Run(ctx, root, "status", "--porcelain")
	if !r.OK {
		return st
	}
	st.ChangedFiles = parsePorcelain(r.Stdout)
	return st
}

// parsePorcelain splits `git status --porcelain` output into entries.
func parsePorcelain(out string) []ChangedFile {
	files := []ChangedFile{}
	for _, line := range strings.Split(out, "\n") {
		if len(line) < 4 {
			continue
		}
		files = append(files, ChangedFile{
			Status: strings.TrimSpace(line[:2]),
			File:   line[3:],
		})
		if len(files) == maxStatusEntries {
			break
		}
	}
	return files
}

// RecentCommits returns the last n commits of the short log.
func (g *Git) RecentCommits(ctx context.Context, root string, n int) []Commit {
	if n <= 0 {
		n = 10
	}
	r := g.Run(ctx, root, "log", "--oneline", "-n", strconv.Itoa(n))
	if !r.OK || r.Stdout == "" {
		return []Commit{}
	}
	commits := []Commit{}
	for _, line := range strings.Split(r.Stdout, "\n") {
		hash, msg, _ := strings.Cut(line, " ")
		if hash == "" {
			continue
		}
		commits = append(commits, Commit{Hash: hash, Message: msg})
	}
	return commits
}

// CreateTag creates a lightweight tag at HEAD.
func (g *Git) CreateTag(ctx context.Context, root, name string) Result {
	return g.Run(ctx, root, "tag", name)
}

// DiffStat summarizes the unstaged diff.
func (g *Git) DiffStat(ctx context.Context, root string) PatchStats {
	text, ok := g.Diff(ctx, root)
	if !ok || text == "" {
		return PatchStats{Files: []FileStat{}}
	}
	stats, err := ParsePatch(text)
	if err != nil {
		return PatchStats{Files: []FileStat{}}
	}
	return stats
}

// trimOutput drops trailing newlines only. Leading spaces are
// significant in porcelain output.
func trimOutput(s string) string {
	return strings.TrimRight(s, "\r\n")
}

package vcs

import (
	"fmt"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// FileStat counts changed lines for one file of a patch.
type FileStat struct {
	Path    string `json:"path"`
	Added   int    `json:"added"`
	Removed int    `json:"removed"`
}

// PatchStats summarizes a multi-file unified diff.
type PatchStats struct {
	Files   []FileStat `json:"files"`
	Added   int        `json:"added"`
	Removed int        `json:"removed"`
}

// Paths returns the file paths touched by the patch in diff order.
func (s PatchStats) Paths() []string {
	out := make([]string, 0, len(s.Files))
	for _, f := range s.Files {
		out = append(out, f.Path)
	}
	return out
}

// String renders a one-line summary such as "3 files, +10 -2".
func (s PatchStats) String() string {
	noun := "files"
	if len(s.Files) == 1 {
		noun = "file"
	}
	return fmt.Sprintf("%d %s, +%d -%d", len(s.Files), noun, s.Added, s.Removed)
}

// ParsePatch parses git diff output into per-file line counts.
func ParsePatch(text string) (PatchStats, error) {
	stats := PatchStats{Files: []FileStat{}}
	if strings.TrimSpace(text) == "" {
		return stats, nil
	}

	fileDiffs, err := diff.NewMultiFileDiffReader(strings.NewReader(text)).ReadAllFiles()
	if err != nil {
		return stats, fmt.Errorf("parsing diff: %w", err)
	}

	for _, fd := range fileDiffs {
		fs := FileStat{Path: diffPath(fd)}
		for _, hunk := range fd.Hunks {
			for _, line := range strings.Split(string(hunk.Body), "\n") {
				switch {
				case strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++"):
					fs.Added++
				case strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "---"):
					fs.Removed++
				}
			}
		}
		stats.Added += fs.Added
		stats.Removed += fs.Removed
		stats.Files = append(stats.Files, fs)
	}
	return stats, nil
}

// diffPath picks the surviving name of a file diff without the a/ b/ prefix.
func diffPath(fd *diff.FileDiff) string {
	name := fd.NewName
	if name == "" || name == "/dev/null" {
		name = fd.OrigName
	}
	name = strings.TrimPrefix(name, "a/")
	return strings.TrimPrefix(name, "b/")
}

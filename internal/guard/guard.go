// Package guard embeds and removes a warning banner at the top of a
// source file, marking it as covered by a lock.
package guard

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Marker is the sentinel that identifies a guard banner.
const Marker = "SPECLOCK-GUARD"

const separator = "============================================================"

// Result reports the outcome of Guard or Unguard.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// commentStyle wraps one banner line.
type commentStyle struct {
	prefix string
	suffix string
}

var (
	slashStyle = commentStyle{prefix: "// "}
	hashStyle  = commentStyle{prefix: "# "}
	dashStyle  = commentStyle{prefix: "-- "}
	htmlStyle  = commentStyle{prefix: "<!-- ", suffix: " -->"}
	blockStyle = commentStyle{prefix: "/* ", suffix: " */"}
)

var stylesByExt = map[string]commentStyle{
	".py": hashStyle, ".rb": hashStyle, ".sh": hashStyle, ".bash": hashStyle,
	".zsh": hashStyle, ".yaml": hashStyle, ".yml": hashStyle, ".toml": hashStyle,
	".r": hashStyle, ".pl": hashStyle, ".ex": hashStyle, ".exs": hashStyle,
	".sql": dashStyle, ".lua": dashStyle, ".hs": dashStyle,
	".html": htmlStyle, ".htm": htmlStyle, ".xml": htmlStyle, ".md": htmlStyle,
	".vue": htmlStyle, ".svelte": htmlStyle,
	".css": blockStyle, ".scss": blockStyle, ".less": blockStyle,
}

func styleFor(path string) commentStyle {
	if s, ok := stylesByExt[strings.ToLower(filepath.Ext(path))]; ok {
		return s
	}
	return slashStyle
}

func (c commentStyle) line(text string) string {
	return c.prefix + text + c.suffix
}

// banner returns the banner lines for lockText, marker line first and
// closing separator last.
func banner(style commentStyle, lockText string) []string {
	return []string{
		style.line(Marker + " " + separator),
		style.line("LOCKED: " + strings.Join(strings.Fields(lockText), " ")),
		style.line("This file is protected by SpecLock. Run `speclock check` and ask the user before editing."),
		style.line(separator),
	}
}

// Guard prepends a banner to root/rel.
func Guard(root, rel, lockText string) Result {
	path, err := resolve(root, rel)
	if err != nil {
		return Result{Error: err.Error()}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Result{Error: "File not found: " + rel}
		}
		return Result{Error: fmt.Sprintf("reading %s: %v", rel, err)}
	}
	content := string(data)
	if strings.Contains(content, Marker) {
		return Result{Error: "File is already guarded: " + rel}
	}

	lines := append(banner(styleFor(path), lockText), "")
	guarded := strings.Join(lines, "\n") + "\n" + content
	if err := writePreservingMode(path, []byte(guarded)); err != nil {
		return Result{Error: err.Error()}
	}
	return Result{Success: true}
}

// Unguard removes the banner from root/rel: every line from the first
// marker line through the closing separator, plus one blank line.
func Unguard(root, rel string) Result {
	path, err := resolve(root, rel)
	if err != nil {
		return Result{Error: err.Error()}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Result{Error: "File not found: " + rel}
		}
		return Result{Error: fmt.Sprintf("reading %s: %v", rel, err)}
	}

	lines := strings.Split(string(data), "\n")
	start := -1
	for i, l := range lines {
		if strings.Contains(l, Marker) {
			start = i
			break
		}
	}
	if start < 0 {
		return Result{Error: "File is not guarded: " + rel}
	}

	end := -1
	for i := start + 1; i < len(lines); i++ {
		if strings.Contains(lines[i], separator) {
			end = i
			break
		}
	}
	if end < 0 {
		return Result{Error: "Guard banner is incomplete in " + rel}
	}
	if end+1 < len(lines) && lines[end+1] == "" {
		end++
	}

	kept := append(append([]string{}, lines[:start]...), lines[end+1:]...)
	if err := writePreservingMode(path, []byte(strings.Join(kept, "\n"))); err != nil {
		return Result{Error: err.Error()}
	}
	return Result{Success: true}
}

// IsGuarded reports whether root/rel carries the marker.
func IsGuarded(root, rel string) bool {
	path, err := resolve(root, rel)
	if err != nil {
		return false
	}
	data, err := os.ReadFile(path)
	return err == nil && strings.Contains(string(data), Marker)
}

// resolve joins rel onto root and refuses paths that escape root.
func resolve(root, rel string) (string, error) {
	if strings.TrimSpace(rel) == "" {
		return "", errors.New("file path is required")
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolving root: %w", err)
	}
	path := rel
	if !filepath.IsAbs(path) {
		path = filepath.Join(absRoot, rel)
	}
	path = filepath.Clean(path)
	inside, err := filepath.Rel(absRoot, path)
	if err != nil || inside == ".." || strings.HasPrefix(inside, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes project root: %s", rel)
	}
	return path, nil
}

func writePreservingMode(path string, data []byte) error {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.WriteFile(path, data, mode); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return nil
}

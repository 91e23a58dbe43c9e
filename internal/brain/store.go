package brain

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

const (
	// StateDir is the project-local directory holding all SpecLock state.
	StateDir = ".speclock"
	// BrainFile is the brain document filename.
	BrainFile = "brain.json"
	// EventsFile is the append-only event log filename.
	EventsFile = "events.log"
	// PatchesDir holds captured diffs, one per event.
	PatchesDir = "patches"
	// ContextDir holds rendered context documents.
	ContextDir = "context"
)

// MaxEventSummary caps the summary stored with each event.
const MaxEventSummary = 4096

// maxEventLine bounds a single events.log line. Longer lines are skipped
// on read.
const maxEventLine = 1 << 20

// Store defines the persistence interface for the brain document.
// Abstracted so the engine can be tested against other backends.
type Store interface {
	EnsureDirs(root string) error
	Read(root string) (*Brain, error)
	Write(root string, b *Brain) error
	AppendEvent(root string, ev Event) error
	ReadEvents(root string, f EventFilter) ([]Event, error)
	WritePatch(root, eventID, text string) (string, error)
}

// FileStore implements Store on the local filesystem.
type FileStore struct {
	log zerolog.Logger
}

// NewFileStore creates a filesystem-backed brain store.
func NewFileStore(logger zerolog.Logger) *FileStore {
	return &FileStore{log: logger.With().Str("component", "store").Logger()}
}

// StatePath returns the absolute path to the .speclock/ directory.
func StatePath(root string) string {
	return filepath.Join(root, StateDir)
}

// BrainPath returns the absolute path to brain.json.
func BrainPath(root string) string {
	return filepath.Join(StatePath(root), BrainFile)
}

// EventsPath returns the absolute path to events.log.
func EventsPath(root string) string {
	return filepath.Join(StatePath(root), EventsFile)
}

// PatchPath returns the root-relative path of an event's patch file.
func PatchPath(eventID string) string {
	return filepath.ToSlash(filepath.Join(StateDir, PatchesDir, eventID+".patch"))
}

// ContextPath returns the root-relative path of the latest context document.
func ContextPath(name string) string {
	return filepath.ToSlash(filepath.Join(StateDir, ContextDir, name))
}

// EnsureDirs creates the state directory and its subdirectories.
func (fs *FileStore) EnsureDirs(root string) error {
	for _, dir := range []string{
		StatePath(root),
		filepath.Join(StatePath(root), PatchesDir),
		filepath.Join(StatePath(root), ContextDir),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return nil
}

// Read loads brain.json. Returns nil (not an error) when the document is
// missing, unreadable or malformed so that init can recreate it.
// Documents below CurrentVersion are migrated and written back; documents
// above it return ErrNewerSchema and are left untouched.
func (fs *FileStore) Read(root string) (*Brain, error) {
	data, err := os.ReadFile(BrainPath(root))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			fs.log.Warn().Err(err).Str("root", root).Msg("brain document unreadable, treating as absent")
		}
		return nil, nil
	}

	raw := map[string]any{}
	if err := json.Unmarshal(data, &raw); err != nil {
		fs.log.Warn().Err(err).Str("root", root).Msg("brain document malformed, treating as absent")
		return nil, nil
	}

	from := versionOf(raw)
	if from > CurrentVersion {
		return nil, fmt.Errorf("%w: version %d, supported %d", ErrNewerSchema, from, CurrentVersion)
	}
	migrated, err := migrate(raw)
	if err != nil {
		fs.log.Warn().Err(err).Int("version", from).Msg("brain migration failed, treating as absent")
		return nil, nil
	}

	var b Brain
	if err := remarshal(migrated, &b); err != nil {
		fs.log.Warn().Err(err).Str("root", root).Msg("brain document malformed, treating as absent")
		return nil, nil
	}
	normalize(&b)

	if from < CurrentVersion {
		fs.log.Info().Int("from", from).Int("to", CurrentVersion).Msg("migrated brain document")
		if err := fs.Write(root, &b); err != nil {
			return nil, fmt.Errorf("persisting migrated brain: %w", err)
		}
	}
	return &b, nil
}

// Write stamps project.updatedAt and atomically replaces brain.json.
func (fs *FileStore) Write(root string, b *Brain) error {
	if err := fs.EnsureDirs(root); err != nil {
		return err
	}
	b.Project.UpdatedAt = advance(b.Project.UpdatedAt)

	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling brain: %w", err)
	}
	return writeFileAtomic(BrainPath(root), append(data, '\n'))
}

// AppendEvent writes ev as one line at the end of events.log.
func (fs *FileStore) AppendEvent(root string, ev Event) error {
	if err := fs.EnsureDirs(root); err != nil {
		return err
	}
	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	f, err := os.OpenFile(EventsPath(root), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening event log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("appending event: %w", err)
	}
	return f.Sync()
}

// ReadEvents returns events newest first. Unparseable lines are skipped.
func (fs *FileStore) ReadEvents(root string, filter EventFilter) ([]Event, error) {
	f, err := os.Open(EventsPath(root))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening event log: %w", err)
	}
	defer f.Close()

	var events []Event
	reader := bufio.NewReader(f)
	skipped := 0
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("reading event log: %w", err)
		}
		atEOF := err != nil
		line = bytes.TrimSpace(line)
		switch {
		case len(line) == 0:
		case len(line) > maxEventLine:
			skipped++
		default:
			var ev Event
			if jsonErr := json.Unmarshal(line, &ev); jsonErr != nil {
				skipped++
			} else if filter.matches(ev) {
				events = append(events, ev)
			}
		}
		if atEOF {
			break
		}
	}
	if skipped > 0 {
		fs.log.Warn().Int("skipped", skipped).Msg("skipped unparseable event log lines")
	}

	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	if filter.Limit > 0 && len(events) > filter.Limit {
		events = events[:filter.Limit]
	}
	return events, nil
}

// WritePatch stores diff text for an event and returns its root-relative path.
func (fs *FileStore) WritePatch(root, eventID, text string) (string, error) {
	if err := fs.EnsureDirs(root); err != nil {
		return "", err
	}
	rel := PatchPath(eventID)
	if err := os.WriteFile(filepath.Join(root, filepath.FromSlash(rel)), []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("writing patch: %w", err)
	}
	return rel, nil
}

// NewBrain builds a fresh document at CurrentVersion.
func NewBrain(root string, hasGit bool, defaultBranch string) *Brain {
	now := Now()
	b := &Brain{
		Version: CurrentVersion,
		Project: Project{
			ID:        NewID("fk"),
			Name:      filepath.Base(root),
			Root:      root,
			CreatedAt: now,
			UpdatedAt: now,
		},
		Facts: Facts{
			Deploy: DeployFacts{Provider: "unknown"},
			Repo:   RepoFacts{DefaultBranch: defaultBranch, HasGit: hasGit},
		},
	}
	normalize(b)
	return b
}

// normalize replaces nil collections with empty ones so the JSON shape
// stays stable ([] rather than null).
func normalize(b *Brain) {
	if b.SpecLock.Items == nil {
		b.SpecLock.Items = []Lock{}
	}
	for i := range b.SpecLock.Items {
		if b.SpecLock.Items[i].Tags == nil {
			b.SpecLock.Items[i].Tags = []string{}
		}
	}
	if b.Decisions == nil {
		b.Decisions = []Decision{}
	}
	if b.Notes == nil {
		b.Notes = []Note{}
	}
	if b.Sessions.History == nil {
		b.Sessions.History = []Session{}
	}
	if b.State.RecentChanges == nil {
		b.State.RecentChanges = []RecentChange{}
	}
	if b.State.Reverts == nil {
		b.State.Reverts = []Revert{}
	}
	if b.Facts.Deploy.Provider == "" {
		b.Facts.Deploy.Provider = "unknown"
	}
}

// advance returns the current time, never earlier than prev.
func advance(prev string) string {
	now := timeNow()
	if p, err := ParseTime(prev); err == nil && !now.After(p) {
		now = p.Add(time.Millisecond)
	}
	return FormatTime(now)
}

// writeFileAtomic writes data to a temp file in the same directory and
// renames it over path.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".brain-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing %s: %w", filepath.Base(path), err)
	}
	return nil
}

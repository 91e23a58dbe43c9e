// Package index maintains a derived SQLite full-text index over the event
// log. The log stays the source of truth: the index can be deleted and
// rebuilt from it at any time.
package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/HendryAvila/speclock/internal/brain"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// FileName is the index database inside the state directory.
const FileName = "index.db"

const defaultLimit = 10

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// Hit is one search result.
type Hit struct {
	brain.Event
	Rank float64 `json:"rank"`
}

// Index is the FTS5 event index for one project.
type Index struct {
	db  *sql.DB
	log zerolog.Logger
}

// Path returns the index location for a project root.
func Path(root string) string {
	return filepath.Join(brain.StatePath(root), FileName)
}

// Open opens (creating if needed) the index at path and applies pending
// migrations.
func Open(ctx context.Context, path string, logger zerolog.Logger) (*Index, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("index: create dir: %w", err)
	}
	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("index: open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("index: pragma %q: %w", p, err)
		}
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Index{db: db, log: logger.With().Str("component", "index").Logger()}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	sub, err := fs.Sub(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("index: migrations fs: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, sub)
	if err != nil {
		return fmt.Errorf("index: migration provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("index: migrate: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (x *Index) Close() error {
	return x.db.Close()
}

// Add indexes one event. Events already present are ignored, so replaying
// the log is harmless.
func (x *Index) Add(ev brain.Event) error {
	return insert(context.Background(), x.db, ev)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insert(ctx context.Context, db execer, ev brain.Event) error {
	_, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO events (event_id, type, at, summary, files, patch_path)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ev.EventID, string(ev.Type), ev.At, ev.Summary, strings.Join(ev.Files, "\n"), ev.PatchPath,
	)
	if err != nil {
		return fmt.Errorf("index event %s: %w", ev.EventID, err)
	}
	return nil
}

// Rebuild replaces the index contents with events.
func (x *Index) Rebuild(ctx context.Context, events []brain.Event) (int, error) {
	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("index: begin rebuild: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM events"); err != nil {
		return 0, fmt.Errorf("index: clear: %w", err)
	}
	for _, ev := range events {
		if err := insert(ctx, tx, ev); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("index: commit rebuild: %w", err)
	}
	x.log.Debug().Int("events", len(events)).Msg("index rebuilt")
	return len(events), nil
}

// Count returns the number of indexed events.
func (x *Index) Count(ctx context.Context) (int, error) {
	var n int
	if err := x.db.QueryRowContext(ctx, "SELECT count(*) FROM events").Scan(&n); err != nil {
		return 0, fmt.Errorf("index: count: %w", err)
	}
	return n, nil
}

// Search runs a full-text query over summaries, file paths and event
// types, best match first.
func (x *Index) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	ftsQuery := sanitizeFTS(query)
	if ftsQuery == "" {
		return nil, errors.New("search query is empty")
	}
	if limit <= 0 {
		limit = defaultLimit
	}

	rows, err := x.db.QueryContext(ctx, `
		SELECT e.event_id, e.type, e.at, e.summary, e.files, e.patch_path, fts.rank
		FROM events_fts fts
		JOIN events e ON e.id = fts.rowid
		WHERE events_fts MATCH ?
		ORDER BY fts.rank
		LIMIT ?`, ftsQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("search events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	hits := []Hit{}
	for rows.Next() {
		var (
			h     Hit
			typ   string
			files string
		)
		if err := rows.Scan(&h.EventID, &typ, &h.At, &h.Summary, &files, &h.PatchPath, &h.Rank); err != nil {
			return nil, err
		}
		h.Type = brain.EventType(typ)
		h.Files = splitFiles(files)
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func splitFiles(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, "\n")
}

// sanitizeFTS quotes each word so user input cannot use FTS5 operators.
func sanitizeFTS(query string) string {
	var quoted []string
	for _, w := range strings.Fields(query) {
		if w = strings.ReplaceAll(w, `"`, ""); w != "" {
			quoted = append(quoted, `"`+w+`"`)
		}
	}
	return strings.Join(quoted, " ")
}

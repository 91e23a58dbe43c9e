package brain

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	timeNow = func() time.Time {
		return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	}
}

func newTestStore() *FileStore {
	return NewFileStore(zerolog.Nop())
}

func TestEnsureDirs_CreatesLayout(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, newTestStore().EnsureDirs(root))

	for _, dir := range []string{StateDir, filepath.Join(StateDir, PatchesDir), filepath.Join(StateDir, ContextDir)} {
		info, err := os.Stat(filepath.Join(root, dir))
		require.NoError(t, err, dir)
		assert.True(t, info.IsDir(), dir)
	}
	// Idempotent.
	require.NoError(t, newTestStore().EnsureDirs(root))
}

func TestRead_AbsentReturnsNil(t *testing.T) {
	b, err := newTestStore().Read(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, b)
}

func TestRead_MalformedReturnsNil(t *testing.T) {
	root := t.TempDir()
	fs := newTestStore()
	require.NoError(t, fs.EnsureDirs(root))
	require.NoError(t, os.WriteFile(BrainPath(root), []byte("{not json"), 0o644))

	b, err := fs.Read(root)
	require.NoError(t, err)
	assert.Nil(t, b)
}

func TestRead_NewerSchemaIsAnErrorAndUntouched(t *testing.T) {
	root := t.TempDir()
	fs := newTestStore()
	require.NoError(t, fs.EnsureDirs(root))
	doc := []byte(`{"version": 99, "goal": {"text": "from the future"}}`)
	require.NoError(t, os.WriteFile(BrainPath(root), doc, 0o644))

	b, err := fs.Read(root)
	require.ErrorIs(t, err, ErrNewerSchema)
	assert.Nil(t, b)

	data, err := os.ReadFile(BrainPath(root))
	require.NoError(t, err)
	assert.Equal(t, doc, data)
}

func TestWriteRead_RoundTrip(t *testing.T) {
	root := t.TempDir()
	fs := newTestStore()

	b := NewBrain(root, true, "main")
	b.Goal = Goal{Text: "Ship v1", UpdatedAt: Now()}
	b.SpecLock.Items = []Lock{{ID: "lock_1", Text: "No external database", CreatedAt: Now(), Source: SourceUser, Tags: []string{"db"}, Active: true}}
	b.Notes = []Note{{ID: "note_1", Text: "remember", CreatedAt: Now(), Pinned: true}}
	before := b.Project.UpdatedAt

	require.NoError(t, fs.Write(root, b))
	got, err := fs.Read(root)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Greater(t, got.Project.UpdatedAt, before, "updatedAt must advance")
	got.Project.UpdatedAt = b.Project.UpdatedAt
	assert.Equal(t, b, got)
}

func TestWrite_UpdatedAtNeverGoesBackwards(t *testing.T) {
	root := t.TempDir()
	fs := newTestStore()
	b := NewBrain(root, false, "")

	require.NoError(t, fs.Write(root, b))
	first := b.Project.UpdatedAt
	require.NoError(t, fs.Write(root, b))
	assert.Greater(t, b.Project.UpdatedAt, first)
}

func TestAppendEvent_ReadEventsNewestFirst(t *testing.T) {
	root := t.TempDir()
	fs := newTestStore()

	events := []Event{
		{EventID: "evt_1", Type: EventInit, At: "2026-03-01T10:00:00.000Z", Files: []string{}},
		{EventID: "evt_2", Type: EventGoalUpdated, At: "2026-03-01T11:00:00.000Z", Files: []string{}},
		{EventID: "evt_3", Type: EventLockAdded, At: "2026-03-01T12:00:00.000Z", Files: []string{}},
	}
	for _, ev := range events {
		require.NoError(t, fs.AppendEvent(root, ev))
	}

	all, err := fs.ReadEvents(root, EventFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "evt_3", all[0].EventID)
	assert.Equal(t, "evt_1", all[2].EventID)

	limited, err := fs.ReadEvents(root, EventFilter{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"evt_3", "evt_2"}, ids(limited))

	since, err := fs.ReadEvents(root, EventFilter{Since: "2026-03-01T11:00:00.000Z"})
	require.NoError(t, err)
	assert.Equal(t, []string{"evt_3", "evt_2"}, ids(since))

	typed, err := fs.ReadEvents(root, EventFilter{Type: EventInit})
	require.NoError(t, err)
	assert.Equal(t, []string{"evt_1"}, ids(typed))
}

func TestReadEvents_SkipsBadLines(t *testing.T) {
	root := t.TempDir()
	fs := newTestStore()
	require.NoError(t, fs.AppendEvent(root, Event{EventID: "evt_1", Type: EventInit, At: Now()}))

	f, err := os.OpenFile(EventsPath(root), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("garbage line\n\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.NoError(t, fs.AppendEvent(root, Event{EventID: "evt_2", Type: EventNoteAdded, At: Now()}))

	got, err := fs.ReadEvents(root, EventFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"evt_2", "evt_1"}, ids(got))
}

func TestReadEvents_SkipsOversizedLine(t *testing.T) {
	root := t.TempDir()
	fs := newTestStore()
	require.NoError(t, fs.AppendEvent(root, Event{EventID: "evt_1", Type: EventInit, At: Now()}))
	require.NoError(t, fs.AppendEvent(root, Event{EventID: "evt_big", Type: EventManualChange, At: Now(), Summary: strings.Repeat("x", maxEventLine+10)}))
	require.NoError(t, fs.AppendEvent(root, Event{EventID: "evt_2", Type: EventNoteAdded, At: Now()}))

	got, err := fs.ReadEvents(root, EventFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"evt_2", "evt_1"}, ids(got))
}

func TestReadEvents_LastLineWithoutNewline(t *testing.T) {
	root := t.TempDir()
	fs := newTestStore()
	require.NoError(t, fs.AppendEvent(root, Event{EventID: "evt_1", Type: EventInit, At: Now()}))

	f, err := os.OpenFile(EventsPath(root), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"eventId":"evt_2","type":"note_added","at":"2026-03-01T12:00:00.000Z"}`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	got, err := fs.ReadEvents(root, EventFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"evt_2", "evt_1"}, ids(got))
}

func TestReadEvents_MissingLog(t *testing.T) {
	got, err := newTestStore().ReadEvents(t.TempDir(), EventFilter{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAppendEvent_OneLinePerEvent(t *testing.T) {
	root := t.TempDir()
	fs := newTestStore()
	for i := 0; i < 5; i++ {
		require.NoError(t, fs.AppendEvent(root, Event{EventID: NewID("evt"), Type: EventNoteAdded, At: Now(), Summary: "multi\nline"}))
	}
	data, err := os.ReadFile(EventsPath(root))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 5)
	for _, l := range lines {
		var ev Event
		assert.NoError(t, json.Unmarshal([]byte(l), &ev))
	}
}

func TestWritePatch(t *testing.T) {
	root := t.TempDir()
	rel, err := newTestStore().WritePatch(root, "evt_abc", "diff --git a b")
	require.NoError(t, err)
	assert.Equal(t, ".speclock/patches/evt_abc.patch", rel)

	data, err := os.ReadFile(filepath.Join(root, rel))
	require.NoError(t, err)
	assert.Equal(t, "diff --git a b", string(data))
}

func TestNewBrain_Defaults(t *testing.T) {
	b := NewBrain("/work/my-app", true, "main")
	assert.Equal(t, CurrentVersion, b.Version)
	assert.Equal(t, "my-app", b.Project.Name)
	assert.True(t, strings.HasPrefix(b.Project.ID, "fk_"))
	assert.Equal(t, "unknown", b.Facts.Deploy.Provider)
	assert.Equal(t, "main", b.Facts.Repo.DefaultBranch)
	assert.True(t, b.Facts.Repo.HasGit)
	assert.NotNil(t, b.SpecLock.Items)
	assert.Nil(t, b.Sessions.Current)
}

func TestNewID_Format(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		id := NewID("lock")
		require.Len(t, id, len("lock_")+12)
		assert.True(t, strings.HasPrefix(id, "lock_"))
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestNow_Format(t *testing.T) {
	assert.Equal(t, "2026-03-01T12:00:00.000Z", Now())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 80))
	assert.Equal(t, "ab", Truncate("abc", 2))
	assert.Equal(t, "ñá", Truncate("ñáé", 2))
}

func TestPushHistory_Capped(t *testing.T) {
	b := NewBrain("/x", false, "")
	for i := 0; i < MaxSessionHistory+5; i++ {
		b.PushHistory(Session{ID: NewID("ses")})
	}
	assert.Len(t, b.Sessions.History, MaxSessionHistory)
}

func ids(events []Event) []string {
	out := make([]string, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.EventID)
	}
	return out
}

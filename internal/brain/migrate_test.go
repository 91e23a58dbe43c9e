package brain

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const v1Document = `{
  "version": 1,
  "project": {"id": "fk_000000000001", "name": "legacy", "root": "/legacy", "createdAt": "2025-01-01T00:00:00.000Z", "updatedAt": "2025-01-01T00:00:00.000Z"},
  "goal": {"text": "old goal", "updatedAt": "2025-01-01T00:00:00.000Z"},
  "specLock": {"items": [{"id": "lock_1", "text": "Never drop tables", "createdAt": "2025-01-01T00:00:00.000Z", "source": "user", "tags": [], "importance": "high"}]},
  "decisions": [],
  "facts": {"deploy": {"provider": "vercel", "autoDeploy": true, "branch": "main", "notes": ""}, "repo": {"defaultBranch": "main", "hasGit": true}},
  "state": {"head": {"gitBranch": "main", "gitCommit": "abc", "capturedAt": ""}, "recentChanges": [], "reverts": []},
  "events": {"lastEventId": "evt_1", "count": 1}
}`

func TestRead_MigratesV1AndRewrites(t *testing.T) {
	root := t.TempDir()
	fs := newTestStore()
	require.NoError(t, fs.EnsureDirs(root))
	require.NoError(t, os.WriteFile(BrainPath(root), []byte(v1Document), 0o644))

	b, err := fs.Read(root)
	require.NoError(t, err)
	require.NotNil(t, b)

	assert.Equal(t, CurrentVersion, b.Version)
	require.Len(t, b.SpecLock.Items, 1)
	assert.True(t, b.SpecLock.Items[0].Active, "active backfilled")
	assert.Empty(t, b.Notes)
	assert.NotNil(t, b.Sessions.History)
	assert.Equal(t, "vercel", b.Facts.Deploy.Provider)

	// Persisted immediately, without the obsolete field.
	data, err := os.ReadFile(BrainPath(root))
	require.NoError(t, err)
	raw := map[string]any{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.EqualValues(t, CurrentVersion, raw["version"])
	lock := raw["specLock"].(map[string]any)["items"].([]any)[0].(map[string]any)
	assert.NotContains(t, lock, "importance")
	deploy := raw["facts"].(map[string]any)["deploy"].(map[string]any)
	assert.Contains(t, deploy, "url")
}

func TestMigrate_KeepsExplicitInactive(t *testing.T) {
	doc := map[string]any{
		"specLock": map[string]any{"items": []any{map[string]any{"id": "l", "active": false}}},
	}
	out, err := migrate(doc)
	require.NoError(t, err)
	lock := out["specLock"].(map[string]any)["items"].([]any)[0].(map[string]any)
	assert.Equal(t, false, lock["active"])
	assert.Equal(t, CurrentVersion, out["version"])
}

func TestMigrate_RejectsFutureVersion(t *testing.T) {
	_, err := migrate(map[string]any{"version": float64(CurrentVersion + 1)})
	assert.ErrorIs(t, err, ErrNewerSchema)
}

func TestVersionOf(t *testing.T) {
	assert.Equal(t, 1, versionOf(map[string]any{}))
	assert.Equal(t, 1, versionOf(map[string]any{"version": "two"}))
	assert.Equal(t, 2, versionOf(map[string]any{"version": float64(2)}))
}

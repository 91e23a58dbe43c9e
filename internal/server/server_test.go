package server

import (
	"context"
	"encoding/json"
	"sort"
	"testing"
	"time"

	"github.com/HendryAvila/speclock/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, indexEnabled bool) config.Config {
	t.Helper()
	return config.Config{
		ProjectRoot:  t.TempDir(),
		LogLevel:     zerolog.Disabled,
		VCSTimeout:   time.Second,
		PollInterval: time.Second,
		Debounce:     2 * time.Second,
		IndexEnabled: indexEnabled,
	}
}

// rpc sends one JSON-RPC request through the server and returns the
// decoded result object.
func rpc(t *testing.T, app *App, method string, params any) map[string]any {
	t.Helper()
	msg, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	require.NoError(t, err)

	resp := New(app).HandleMessage(context.Background(), msg)
	raw, err := json.Marshal(resp)
	require.NoError(t, err)

	var out struct {
		Result map[string]any `json:"result"`
		Error  any            `json:"error"`
	}
	require.NoError(t, json.Unmarshal(raw, &out))
	require.Nil(t, out.Error, "rpc %s failed: %s", method, raw)
	return out.Result
}

func names(t *testing.T, items any, key string) []string {
	t.Helper()
	list, ok := items.([]any)
	require.True(t, ok)
	var out []string
	for _, it := range list {
		out = append(out, it.(map[string]any)[key].(string))
	}
	sort.Strings(out)
	return out
}

func TestOpen_WithIndex(t *testing.T) {
	app, cleanup, err := Open(context.Background(), testConfig(t, true), zerolog.Nop())
	require.NoError(t, err)
	defer cleanup()

	require.NotNil(t, app.Index)
	assert.NotNil(t, app.Engine)
	assert.NotNil(t, app.Renderer)

	// Mutations reach the index through the engine sink.
	_, err = app.Engine.AddNote(context.Background(), "Staging database lives in eu-west-1", true)
	require.NoError(t, err)
	hits, err := app.Index.Search(context.Background(), "staging", 5)
	require.NoError(t, err)
	assert.NotEmpty(t, hits)
}

func TestOpen_IndexDisabled(t *testing.T) {
	app, cleanup, err := Open(context.Background(), testConfig(t, false), zerolog.Nop())
	require.NoError(t, err)
	defer cleanup()
	assert.Nil(t, app.Index)
}

func TestNew_RegistersTools(t *testing.T) {
	app, cleanup, err := Open(context.Background(), testConfig(t, false), zerolog.Nop())
	require.NoError(t, err)
	defer cleanup()

	res := rpc(t, app, "tools/list", map[string]any{})
	got := names(t, res["tools"], "name")

	want := []string{
		"speclock_add_decision", "speclock_add_lock", "speclock_add_note",
		"speclock_check_conflict", "speclock_checkpoint", "speclock_detect_drift",
		"speclock_get_changes", "speclock_get_context", "speclock_get_events",
		"speclock_health", "speclock_init", "speclock_log_change",
		"speclock_remove_lock", "speclock_repo_status", "speclock_search_events",
		"speclock_session_briefing", "speclock_session_summary",
		"speclock_set_deploy_facts", "speclock_set_goal", "speclock_suggest_locks",
	}
	assert.Equal(t, want, got)
}

func TestNew_RegistersPromptsAndResources(t *testing.T) {
	app, cleanup, err := Open(context.Background(), testConfig(t, false), zerolog.Nop())
	require.NoError(t, err)
	defer cleanup()

	prompts := rpc(t, app, "prompts/list", map[string]any{})
	assert.Equal(t, []string{"speclock-start", "speclock-status"}, names(t, prompts["prompts"], "name"))

	resources := rpc(t, app, "resources/list", map[string]any{})
	assert.Equal(t, []string{"speclock://context/latest", "speclock://context/pack"}, names(t, resources["resources"], "uri"))
}

func TestNew_SearchDisabledWithoutIndex(t *testing.T) {
	app, cleanup, err := Open(context.Background(), testConfig(t, false), zerolog.Nop())
	require.NoError(t, err)
	defer cleanup()

	res := rpc(t, app, "tools/call", map[string]any{
		"name":      "speclock_search_events",
		"arguments": map[string]any{"query": "auth"},
	})
	assert.Equal(t, true, res["isError"])
	raw, err := json.Marshal(res["content"])
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Event search is disabled")
}

func TestServerInstructions(t *testing.T) {
	text := serverInstructions()
	assert.Contains(t, text, "speclock_session_briefing FIRST")
	assert.Contains(t, text, "speclock_check_conflict")
	assert.Contains(t, text, "speclock_session_summary")
}

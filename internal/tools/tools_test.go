package tools

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/HendryAvila/speclock/internal/brain"
	"github.com/HendryAvila/speclock/internal/contextpack"
	"github.com/HendryAvila/speclock/internal/engine"
	"github.com/HendryAvila/speclock/internal/index"
	"github.com/HendryAvila/speclock/internal/vcs"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ─── Test helpers ────────────────────────────────────────────────────────────

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	eng, err := engine.New(t.TempDir(), brain.NewFileStore(zerolog.Nop()), vcs.NewGit(time.Second), zerolog.Nop(), engine.DefaultOptions())
	require.NoError(t, err)
	return eng
}

// makeReq builds a mcp.CallToolRequest with the given arguments.
func makeReq(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

// resultText extracts the text content from a tool result.
func resultText(r *mcp.CallToolResult) string {
	if r == nil || len(r.Content) == 0 {
		return ""
	}
	for _, c := range r.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

type handler interface {
	Definition() mcp.Tool
	Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

func call(t *testing.T, h handler, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	res, err := h.Handle(context.Background(), makeReq(args))
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

// ─── Definitions ─────────────────────────────────────────────────────────────

func TestDefinitions_NamesAndRequiredArgs(t *testing.T) {
	eng := newTestEngine(t)
	r := contextpack.NewRenderer(eng)
	opts := contextpack.GenerateOptions{}

	cases := []struct {
		tool     handler
		name     string
		required []string
	}{
		{NewInitTool(eng), "speclock_init", nil},
		{NewGetContextTool(r, opts), "speclock_get_context", nil},
		{NewSetGoalTool(eng), "speclock_set_goal", []string{"text"}},
		{NewAddLockTool(eng), "speclock_add_lock", []string{"text"}},
		{NewRemoveLockTool(eng), "speclock_remove_lock", []string{"lock_id"}},
		{NewAddDecisionTool(eng), "speclock_add_decision", []string{"text"}},
		{NewAddNoteTool(eng), "speclock_add_note", []string{"text"}},
		{NewSetDeployFactsTool(eng), "speclock_set_deploy_facts", nil},
		{NewLogChangeTool(eng), "speclock_log_change", []string{"summary"}},
		{NewGetChangesTool(eng), "speclock_get_changes", nil},
		{NewGetEventsTool(eng), "speclock_get_events", nil},
		{NewCheckConflictTool(eng), "speclock_check_conflict", []string{"proposed_action"}},
		{NewSessionBriefingTool(eng, r, opts), "speclock_session_briefing", nil},
		{NewSessionSummaryTool(eng), "speclock_session_summary", []string{"summary"}},
		{NewCheckpointTool(eng), "speclock_checkpoint", []string{"name"}},
		{NewRepoStatusTool(eng), "speclock_repo_status", nil},
		{NewSuggestLocksTool(eng), "speclock_suggest_locks", nil},
		{NewDetectDriftTool(eng), "speclock_detect_drift", nil},
		{NewHealthTool(eng), "speclock_health", nil},
		{NewSearchEventsTool(nil), "speclock_search_events", []string{"query"}},
	}
	for _, c := range cases {
		def := c.tool.Definition()
		assert.Equal(t, c.name, def.Name)
		for _, arg := range c.required {
			assert.Contains(t, def.InputSchema.Required, arg, c.name)
			assert.Contains(t, def.InputSchema.Properties, arg, c.name)
		}
	}
}

// ─── Validation ──────────────────────────────────────────────────────────────

func TestRequiredText_RejectedAtBoundary(t *testing.T) {
	eng := newTestEngine(t)
	cases := map[string]handler{
		"text":            NewSetGoalTool(eng),
		"lock_id":         NewRemoveLockTool(eng),
		"summary":         NewLogChangeTool(eng),
		"proposed_action": NewCheckConflictTool(eng),
		"name":            NewCheckpointTool(eng),
	}
	for key, h := range cases {
		res := call(t, h, map[string]any{key: "   "})
		assert.True(t, res.IsError, key)
		assert.Contains(t, resultText(res), "'"+key+"' is required")
	}

	// Nothing was recorded beyond initialization.
	b, err := eng.EnsureInit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, b.Events.Count)
}

// ─── Memory tools ────────────────────────────────────────────────────────────

func TestLockLifecycle(t *testing.T) {
	eng := newTestEngine(t)

	res := call(t, NewAddLockTool(eng), map[string]any{
		"text":   "Never change the payment API",
		"tags":   []any{"api", " billing "},
		"source": "user",
	})
	require.False(t, res.IsError, resultText(res))
	assert.Contains(t, resultText(res), `"Never change the payment API"`)

	b, err := eng.EnsureInit(context.Background())
	require.NoError(t, err)
	require.Len(t, b.SpecLock.Items, 1)
	lock := b.SpecLock.Items[0]
	assert.Equal(t, brain.SourceUser, lock.Source)
	assert.Equal(t, []string{"api", "billing"}, lock.Tags)

	res = call(t, NewRemoveLockTool(eng), map[string]any{"lock_id": lock.ID})
	require.False(t, res.IsError)
	assert.Equal(t, `Lock removed: "Never change the payment API"`, resultText(res))

	res = call(t, NewRemoveLockTool(eng), map[string]any{"lock_id": "lock_missing"})
	assert.True(t, res.IsError)
	assert.Equal(t, "Lock not found: lock_missing", resultText(res))
}

func TestAddDecisionAndNote(t *testing.T) {
	eng := newTestEngine(t)

	res := call(t, NewAddDecisionTool(eng), map[string]any{"text": "Use SQLite", "tags": "db, storage"})
	require.False(t, res.IsError)

	res = call(t, NewAddNoteTool(eng), map[string]any{"text": "Staging resets nightly", "pinned": false})
	require.False(t, res.IsError)

	b, err := eng.EnsureInit(context.Background())
	require.NoError(t, err)
	require.Len(t, b.Decisions, 1)
	assert.Equal(t, brain.SourceAgent, b.Decisions[0].Source)
	assert.Equal(t, []string{"db", "storage"}, b.Decisions[0].Tags)
	require.Len(t, b.Notes, 1)
	assert.False(t, b.Notes[0].Pinned)
}

func TestSetDeployFacts(t *testing.T) {
	eng := newTestEngine(t)

	res := call(t, NewSetDeployFactsTool(eng), map[string]any{})
	assert.True(t, res.IsError)

	res = call(t, NewSetDeployFactsTool(eng), map[string]any{"provider": "fly", "auto_deploy": true})
	require.False(t, res.IsError)
	res = call(t, NewSetDeployFactsTool(eng), map[string]any{"url": "https://demo.fly.dev"})
	require.False(t, res.IsError)

	b, err := eng.EnsureInit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fly", b.Facts.Deploy.Provider)
	assert.True(t, b.Facts.Deploy.AutoDeploy)
	assert.Equal(t, "https://demo.fly.dev", b.Facts.Deploy.URL)
}

// ─── Context and sessions ────────────────────────────────────────────────────

func TestGetContext_Formats(t *testing.T) {
	eng := newTestEngine(t)
	r := contextpack.NewRenderer(eng)
	_, err := eng.SetGoal(context.Background(), "Ship the beta")
	require.NoError(t, err)

	tool := NewGetContextTool(r, contextpack.GenerateOptions{})
	md := resultText(call(t, tool, map[string]any{}))
	assert.Contains(t, md, "# SpecLock Context Pack")
	assert.Contains(t, md, "Ship the beta")

	js := resultText(call(t, tool, map[string]any{"format": "json"}))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(js), &decoded))
	assert.Equal(t, "Ship the beta", decoded["goal"])

	assert.Contains(t, resultText(call(t, tool, map[string]any{"format": "yaml"})), "goal: Ship the beta")

	res := call(t, tool, map[string]any{"format": "xml"})
	assert.True(t, res.IsError)
}

func TestSessionBriefingAndSummary(t *testing.T) {
	eng := newTestEngine(t)
	r := contextpack.NewRenderer(eng)

	res := call(t, NewSessionSummaryTool(eng), map[string]any{"summary": "nothing"})
	assert.True(t, res.IsError)
	assert.Equal(t, "No active session to end.", resultText(res))

	text := resultText(call(t, NewSessionBriefingTool(eng, r, contextpack.GenerateOptions{}), map[string]any{"tool_name": "cursor"}))
	assert.Contains(t, text, "# SpecLock Session Briefing")
	assert.Contains(t, text, "Session started (cursor)")
	assert.Contains(t, text, "# SpecLock Context Pack")

	res = call(t, NewSessionSummaryTool(eng), map[string]any{"summary": "Wired the login page"})
	require.False(t, res.IsError, resultText(res))
	assert.Contains(t, resultText(res), `Summary: "Wired the login page"`)

	text = resultText(call(t, NewSessionBriefingTool(eng, r, contextpack.GenerateOptions{}), map[string]any{"tool_name": "codex"}))
	assert.Contains(t, text, "## Last Session")
	assert.Contains(t, text, "- Tool: **cursor**")
}

// ─── Changes and events ──────────────────────────────────────────────────────

func TestLogChangeAndListings(t *testing.T) {
	eng := newTestEngine(t)

	res := call(t, NewLogChangeTool(eng), map[string]any{"summary": "Added rate limiter", "files": []any{"api/limit.go"}})
	require.False(t, res.IsError)
	assert.Contains(t, resultText(res), `"Added rate limiter"`)

	changes := resultText(call(t, NewGetChangesTool(eng), map[string]any{"limit": float64(5)}))
	assert.Contains(t, changes, "Recent changes (1):")
	assert.Contains(t, changes, "Added rate limiter (api/limit.go)")

	events := resultText(call(t, NewGetEventsTool(eng), map[string]any{"type": "manual_change"}))
	assert.Contains(t, events, "Events (1):")
	assert.Contains(t, events, "manual_change: Added rate limiter")

	res = call(t, NewGetEventsTool(eng), map[string]any{"type": "bogus"})
	assert.True(t, res.IsError)

	res = call(t, NewGetEventsTool(eng), map[string]any{"since": "yesterday"})
	assert.True(t, res.IsError)

	assert.Equal(t, "No events found.", resultText(call(t, NewGetEventsTool(eng), map[string]any{"since": "2999-01-01T00:00:00Z"})))
}

func TestGitTools_WithoutRepository(t *testing.T) {
	eng := newTestEngine(t)

	res := call(t, NewCheckpointTool(eng), map[string]any{"name": "before refactor"})
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(res), "Not a git repository")

	res = call(t, NewRepoStatusTool(eng), map[string]any{})
	assert.True(t, res.IsError)
}

// ─── Analysis ────────────────────────────────────────────────────────────────

func TestCheckConflict(t *testing.T) {
	eng := newTestEngine(t)
	tool := NewCheckConflictTool(eng)

	assert.Equal(t, engine.NoLocksMessage, resultText(call(t, tool, map[string]any{"proposed_action": "delete the users table"})))

	_, err := eng.AddLock(context.Background(), "Never delete user data", nil, brain.SourceUser)
	require.NoError(t, err)

	js := resultText(call(t, tool, map[string]any{"proposed_action": "delete old user records", "format": "json"}))
	var res engine.ConflictResult
	require.NoError(t, json.Unmarshal([]byte(js), &res))
	assert.True(t, res.HasConflict)
	require.NotEmpty(t, res.ConflictingLocks)
	assert.Equal(t, "Never delete user data", res.ConflictingLocks[0].Text)
}

func TestAnalysisTools_Text(t *testing.T) {
	eng := newTestEngine(t)

	health := resultText(call(t, NewHealthTool(eng), map[string]any{}))
	assert.Contains(t, health, "Score: **0/100** (Grade: F)")
	assert.Contains(t, health, "[MISS] No project goal set")

	drift := resultText(call(t, NewDetectDriftTool(eng), map[string]any{}))
	assert.Contains(t, drift, "No active locks")

	suggest := resultText(call(t, NewSuggestLocksTool(eng), map[string]any{}))
	assert.Contains(t, suggest, "No suggestions at this time")

	_, err := eng.AddDecision(context.Background(), "We must always use PostgreSQL", nil, brain.SourceUser)
	require.NoError(t, err)
	suggest = resultText(call(t, NewSuggestLocksTool(eng), map[string]any{}))
	assert.Contains(t, suggest, "## Lock Suggestions")
}

// ─── Search ──────────────────────────────────────────────────────────────────

func TestSearchEvents(t *testing.T) {
	res := call(t, NewSearchEventsTool(nil), map[string]any{"query": "auth"})
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(res), "disabled")

	eng := newTestEngine(t)
	idx, err := index.Open(context.Background(), index.Path(eng.Root()), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	eng.SetSink(idx)

	_, err = eng.AddLock(context.Background(), "Never bypass the auth middleware", nil, brain.SourceUser)
	require.NoError(t, err)

	text := resultText(call(t, NewSearchEventsTool(idx), map[string]any{"query": "middleware"}))
	assert.Contains(t, text, "Found 1 event(s)")
	assert.Contains(t, text, "lock_added")

	text = resultText(call(t, NewSearchEventsTool(idx), map[string]any{"query": "kubernetes"}))
	assert.Equal(t, `No events match "kubernetes".`, text)
}

func TestStringsArg(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, stringsArg(makeReq(map[string]any{"k": []any{"a", "", 3, " b "}}), "k"))
	assert.Equal(t, []string{"x", "y"}, stringsArg(makeReq(map[string]any{"k": "x, ,y"}), "k"))
	assert.Nil(t, stringsArg(makeReq(map[string]any{}), "k"))
}

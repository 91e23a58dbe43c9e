package engine

import (
	"context"
	"testing"
	"time"

	"github.com/HendryAvila/speclock/internal/brain"
	"github.com/HendryAvila/speclock/internal/vcs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	got := tokenize("No external Database, in v1!")
	assert.Equal(t, []string{"database,", "external", "v1!"}, got.sorted())

	// "db," survives as a token; only whitespace splits words.
	assert.Contains(t, tokenize("drop db, then api."), "db,")
	assert.Contains(t, tokenize("drop db, then api."), "api.")
}

func TestExpand_PullsWholeGroup(t *testing.T) {
	got := expand(tokenize("database"))
	for _, w := range []string{"database", "db", "schema", "table", "migration", "sql"} {
		assert.Contains(t, got, w)
	}
}

func TestCheckConflict_NoLocks(t *testing.T) {
	e := newTestEngine(t, nil, DefaultOptions())
	res, err := e.CheckConflict(context.Background(), "delete everything")
	require.NoError(t, err)
	assert.False(t, res.HasConflict)
	assert.Empty(t, res.ConflictingLocks)
	assert.Contains(t, res.Analysis, "No active locks")
	assert.Contains(t, res.Analysis, "0 checked")
}

func TestCheckConflict_NegatedLockFlagsAction(t *testing.T) {
	e := newTestEngine(t, nil, DefaultOptions())
	ctx := context.Background()
	id, err := e.AddLock(ctx, "No external database in v1", nil, brain.SourceUser)
	require.NoError(t, err)

	res, err := e.CheckConflict(ctx, "add a database integration")
	require.NoError(t, err)
	require.True(t, res.HasConflict)
	require.Len(t, res.ConflictingLocks, 1)

	c := res.ConflictingLocks[0]
	assert.Equal(t, id, c.ID)
	assert.GreaterOrEqual(t, c.Confidence, 40)
	assert.Contains(t, []string{ConfidenceHigh, ConfidenceMedium}, c.Level)
	assert.Contains(t, c.Reasons, ReasonProhibits)
	assert.Equal(t, []string{"database"}, c.MatchedKeywords)
	assert.Contains(t, res.Analysis, "Potential conflict")
}

func TestCheckConflict_UnrelatedActionPasses(t *testing.T) {
	e := newTestEngine(t, nil, DefaultOptions())
	ctx := context.Background()
	_, err := e.AddLock(ctx, "Never change the billing provider", nil, brain.SourceUser)
	require.NoError(t, err)

	res, err := e.CheckConflict(ctx, "tweak button colors on landing page")
	require.NoError(t, err)
	assert.False(t, res.HasConflict)
	assert.Contains(t, res.Analysis, "Checked against 1 active lock(s)")
}

func TestCheckConflict_InactiveLocksIgnored(t *testing.T) {
	e := newTestEngine(t, nil, DefaultOptions())
	ctx := context.Background()
	id, err := e.AddLock(ctx, "Never drop the users table", nil, brain.SourceUser)
	require.NoError(t, err)
	_, err = e.RemoveLock(ctx, id)
	require.NoError(t, err)

	res, err := e.CheckConflict(ctx, "drop the users table")
	require.NoError(t, err)
	assert.False(t, res.HasConflict)
	assert.Equal(t, NoLocksMessage, res.Analysis)
}

func TestCheckConflict_SortedByConfidence(t *testing.T) {
	e := newTestEngine(t, nil, DefaultOptions())
	ctx := context.Background()
	_, err := e.AddLock(ctx, "Keep the public endpoint stable", nil, brain.SourceUser)
	require.NoError(t, err)
	_, err = e.AddLock(ctx, "Never delete the public api endpoint", nil, brain.SourceUser)
	require.NoError(t, err)

	res, err := e.CheckConflict(ctx, "delete the public api endpoint")
	require.NoError(t, err)
	require.Len(t, res.ConflictingLocks, 2)
	assert.Equal(t, "Never delete the public api endpoint", res.ConflictingLocks[0].Text)
	assert.GreaterOrEqual(t, res.ConflictingLocks[0].Confidence, res.ConflictingLocks[1].Confidence)
	assert.LessOrEqual(t, res.ConflictingLocks[0].Confidence, 100)
}

func TestConfidenceLevel(t *testing.T) {
	assert.Equal(t, ConfidenceHigh, confidenceLevel(70))
	assert.Equal(t, ConfidenceMedium, confidenceLevel(69))
	assert.Equal(t, ConfidenceMedium, confidenceLevel(40))
	assert.Equal(t, ConfidenceLow, confidenceLevel(39))
}

func TestDetectDrift_NoLocks(t *testing.T) {
	e := newTestEngine(t, nil, DefaultOptions())
	report, err := e.DetectDrift(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DriftNoLocks, report.Status)
	assert.Empty(t, report.Drifts)
}

func TestDetectDrift_ChangeAgainstNegatedLock(t *testing.T) {
	e := newTestEngine(t, nil, DefaultOptions())
	ctx := context.Background()
	_, err := e.AddLock(ctx, "Never modify the database schema", nil, brain.SourceUser)
	require.NoError(t, err)
	_, err = e.LogChange(ctx, "Altered database table for orders", nil)
	require.NoError(t, err)
	_, err = e.LogChange(ctx, "Updated README", nil)
	require.NoError(t, err)

	report, err := e.DetectDrift(ctx)
	require.NoError(t, err)
	assert.Equal(t, DriftDetected, report.Status)
	require.Len(t, report.Drifts, 1)
	d := report.Drifts[0]
	assert.Equal(t, DriftKindLock, d.Kind)
	assert.Equal(t, "Altered database table for orders", d.ChangeSummary)
	assert.Equal(t, SeverityHigh, d.Severity)
	assert.GreaterOrEqual(t, len(d.MatchedTerms), 3)
}

func TestDetectDrift_Clean(t *testing.T) {
	e := newTestEngine(t, nil, DefaultOptions())
	ctx := context.Background()
	_, err := e.AddLock(ctx, "Never remove the auth middleware", nil, brain.SourceUser)
	require.NoError(t, err)
	_, err = e.LogChange(ctx, "Styled the footer", nil)
	require.NoError(t, err)

	report, err := e.DetectDrift(ctx)
	require.NoError(t, err)
	assert.Equal(t, DriftClean, report.Status)
}

func revertedEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	facts := &fakeVCS{has: true, head: vcs.Head{Branch: "main", Commit: "c1"}}
	e := newTestEngine(t, facts, opts)
	ctx := context.Background()
	_, err := e.EnsureInit(ctx)
	require.NoError(t, err)
	facts.head.Commit = "c2"
	obs, err := e.ObserveHead(ctx, time.Time{})
	require.NoError(t, err)
	require.True(t, obs.Revert)
	return e
}

func TestDetectDrift_RevertSurfacesWithoutLocks(t *testing.T) {
	e := revertedEngine(t, DefaultOptions())

	report, err := e.DetectDrift(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DriftDetected, report.Status)
	require.Len(t, report.Drifts, 1)
	assert.Equal(t, DriftKindRevert, report.Drifts[0].Kind)
	assert.Equal(t, SeverityHigh, report.Drifts[0].Severity)
}

func TestDetectDrift_RevertsRequireLocksOption(t *testing.T) {
	opts := DefaultOptions()
	opts.RevertsRequireLocks = true
	e := revertedEngine(t, opts)

	report, err := e.DetectDrift(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DriftNoLocks, report.Status)
	assert.Empty(t, report.Drifts)

	_, err = e.AddLock(context.Background(), "Keep CI green", nil, brain.SourceUser)
	require.NoError(t, err)
	report, err = e.DetectDrift(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Drifts, 1)
	assert.Equal(t, SeverityHigh, report.Drifts[0].Severity)
}

func TestSuggestLocks(t *testing.T) {
	e := newTestEngine(t, nil, DefaultOptions())
	ctx := context.Background()
	_, err := e.SetGoal(ctx, "Build a public API for invoices")
	require.NoError(t, err)
	decID, err := e.AddDecision(ctx, "We must always use Postgres", nil, brain.SourceUser)
	require.NoError(t, err)
	_, err = e.AddDecision(ctx, "Tailwind for styling", nil, brain.SourceUser)
	require.NoError(t, err)
	noteID, err := e.AddNote(ctx, "Do not call the legacy billing service", true)
	require.NoError(t, err)
	_, err = e.AddLock(ctx, "Deploy freeze on Fridays", nil, brain.SourceUser)
	require.NoError(t, err)

	report, err := e.SuggestLocks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.TotalLocks)

	bySource := map[string][]Suggestion{}
	for _, s := range report.Suggestions {
		bySource[s.Source] = append(bySource[s.Source], s)
	}
	require.Len(t, bySource["decision"], 1)
	assert.Equal(t, decID, bySource["decision"][0].SourceID)
	require.Len(t, bySource["note"], 1)
	assert.Equal(t, noteID, bySource["note"][0].SourceID)

	var common []string
	for _, s := range bySource["common"] {
		common = append(common, s.Text)
	}
	assert.Contains(t, common, "Never break existing public API contracts without a versioned migration path")
	for _, text := range common {
		assert.NotContains(t, text, "deploy to production", "deploy is already covered by a lock")
	}
}

func TestSuggestLocks_SkipsAlreadyLocked(t *testing.T) {
	e := newTestEngine(t, nil, DefaultOptions())
	ctx := context.Background()
	_, err := e.AddDecision(ctx, "Never ship on Fridays", nil, brain.SourceUser)
	require.NoError(t, err)
	_, err = e.AddLock(ctx, "never ship on fridays", nil, brain.SourceUser)
	require.NoError(t, err)

	report, err := e.SuggestLocks(ctx)
	require.NoError(t, err)
	for _, s := range report.Suggestions {
		assert.NotEqual(t, "decision", s.Source)
	}
}

func TestHealth(t *testing.T) {
	e := newTestEngine(t, nil, DefaultOptions())
	ctx := context.Background()

	report, err := e.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Score)
	assert.Equal(t, "F", report.Grade)

	_, err = e.SetGoal(ctx, "goal")
	require.NoError(t, err)
	_, err = e.AddLock(ctx, "lock", nil, brain.SourceUser)
	require.NoError(t, err)
	_, err = e.AddDecision(ctx, "decision", nil, brain.SourceUser)
	require.NoError(t, err)
	_, err = e.StartSession(ctx, "cursor")
	require.NoError(t, err)
	_, err = e.EndSession(ctx, "did things")
	require.NoError(t, err)

	report, err = e.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, 75, report.Score)
	assert.Equal(t, "B", report.Grade)
	require.Len(t, report.Timeline, 1)
	assert.Equal(t, "cursor", report.Timeline[0].Tool)
	assert.Equal(t, []string{"did things"}, report.Timeline[0].Summaries)
}

func TestGrade(t *testing.T) {
	assert.Equal(t, "A", grade(100))
	assert.Equal(t, "A", grade(80))
	assert.Equal(t, "B", grade(60))
	assert.Equal(t, "C", grade(40))
	assert.Equal(t, "D", grade(20))
	assert.Equal(t, "F", grade(19))
}

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

func TestStartSession_AutoClosesPrevious(t *testing.T) {
	e := newTestEngine(t, nil, DefaultOptions())
	ctx := context.Background()

	first, err := e.StartSession(ctx, "cursor")
	require.NoError(t, err)
	second, err := e.StartSession(ctx, "claude-code")
	require.NoError(t, err)

	b := readBrain(t, e)
	require.NotNil(t, b.Sessions.Current)
	assert.Equal(t, second.ID, b.Sessions.Current.ID)
	require.Len(t, b.Sessions.History, 1)
	closed := b.Sessions.History[0]
	assert.Equal(t, first.ID, closed.ID)
	require.NotNil(t, closed.EndedAt)
	assert.Equal(t, autoClosedSummary, closed.Summary)
}

func TestStartSession_HistoryCapped(t *testing.T) {
	e := newTestEngine(t, nil, DefaultOptions())
	ctx := context.Background()

	var ids []string
	for i := 0; i < brain.MaxSessionHistory+3; i++ {
		s, err := e.StartSession(ctx, "tool")
		require.NoError(t, err)
		ids = append(ids, s.ID)
	}

	b := readBrain(t, e)
	require.Len(t, b.Sessions.History, brain.MaxSessionHistory)
	// Newest closed session first, oldest ones dropped.
	assert.Equal(t, ids[len(ids)-2], b.Sessions.History[0].ID)
	assert.Equal(t, ids[2], b.Sessions.History[brain.MaxSessionHistory-1].ID)
}

func TestEndSession(t *testing.T) {
	e := newTestEngine(t, nil, DefaultOptions())
	ctx := context.Background()

	_, err := e.StartSession(ctx, "cursor")
	require.NoError(t, err)
	_, err = e.AddNote(ctx, "something", false)
	require.NoError(t, err)

	res, err := e.EndSession(ctx, "Added a note")
	require.NoError(t, err)
	require.True(t, res.Ended)
	require.NotNil(t, res.Session)
	assert.Equal(t, "Added a note", res.Session.Summary)
	assert.GreaterOrEqual(t, res.Session.EventsInSession, 2)

	b := readBrain(t, e)
	assert.Nil(t, b.Sessions.Current)
	require.Len(t, b.Sessions.History, 1)
	assert.NotNil(t, b.Sessions.History[0].EndedAt)
}

func TestEndSession_NoneOpen(t *testing.T) {
	e := newTestEngine(t, nil, DefaultOptions())
	res, err := e.EndSession(context.Background(), "done")
	require.NoError(t, err)
	assert.False(t, res.Ended)
	assert.Equal(t, "No active session to end.", res.Error)
	assert.Len(t, eventLines(t, e), 1)
}

func TestSessionBriefing_FirstSession(t *testing.T) {
	e := newTestEngine(t, nil, DefaultOptions())
	brief, err := e.SessionBriefing(context.Background(), "cursor")
	require.NoError(t, err)
	assert.Nil(t, brief.LastSession)
	assert.Empty(t, brief.Warnings)
	assert.Equal(t, "cursor", brief.Session.ToolUsed)
}

func TestSessionBriefing_WarnsAboutReverts(t *testing.T) {
	facts := &fakeVCS{has: true, head: vcs.Head{Branch: "main", Commit: "c1"}}
	e := newTestEngine(t, facts, DefaultOptions())
	ctx := context.Background()

	_, err := e.StartSession(ctx, "cursor")
	require.NoError(t, err)
	_, err = e.EndSession(ctx, "first pass")
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	facts.head.Commit = "c2"
	obs, err := e.ObserveHead(ctx, time.Time{})
	require.NoError(t, err)
	require.True(t, obs.Revert)

	brief, err := e.SessionBriefing(ctx, "claude-code")
	require.NoError(t, err)
	require.NotNil(t, brief.LastSession)
	assert.Equal(t, "first pass", brief.LastSession.Summary)
	assert.Equal(t, 1, brief.RevertsSinceLast)
	assert.GreaterOrEqual(t, brief.ChangesSinceLast, 2)
	require.Len(t, brief.Warnings, 1)
	assert.Contains(t, brief.Warnings[0], "1 revert(s) detected since last session")
}

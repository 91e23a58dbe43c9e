// Package server wires all MCP components and creates the server instance.
//
// This is the composition root: it creates the store, the VCS adapter, the
// engine and the optional search index, then injects them into the tools,
// prompts and resources. No business logic lives here, only wiring.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/HendryAvila/speclock/internal/brain"
	"github.com/HendryAvila/speclock/internal/config"
	"github.com/HendryAvila/speclock/internal/contextpack"
	"github.com/HendryAvila/speclock/internal/engine"
	"github.com/HendryAvila/speclock/internal/index"
	"github.com/HendryAvila/speclock/internal/prompts"
	"github.com/HendryAvila/speclock/internal/resources"
	"github.com/HendryAvila/speclock/internal/tools"
	"github.com/HendryAvila/speclock/internal/vcs"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
)

// App holds the resolved dependencies for one project root. Both the MCP
// server and the CLI commands run on top of it.
type App struct {
	Config   config.Config
	Engine   *engine.Engine
	Renderer *contextpack.Renderer
	// Index is nil when index.enabled is false or the database could not
	// be opened.
	Index *index.Index
	Log   zerolog.Logger
}

// Open resolves the dependencies for cfg.ProjectRoot.
//
// The returned cleanup function closes the search index and must be called
// on shutdown (typically via defer). It is always non-nil and safe to call
// even if the index is disabled.
func Open(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*App, func(), error) {
	git := vcs.NewGit(cfg.VCSTimeout)
	eng, err := engine.New(cfg.ProjectRoot, brain.NewFileStore(logger), git, logger, engine.Options{
		Debounce:            cfg.Debounce,
		RevertsRequireLocks: cfg.RevertsRequireLocks,
	})
	if err != nil {
		return nil, noop, fmt.Errorf("creating engine: %w", err)
	}

	app := &App{
		Config:   cfg,
		Engine:   eng,
		Renderer: contextpack.NewRenderer(eng),
		Log:      logger,
	}

	cleanup := noop
	if cfg.IndexEnabled {
		idx, err := index.Open(ctx, index.Path(eng.Root()), logger)
		if err != nil {
			logger.Warn().Err(err).Msg("event search disabled")
		} else {
			app.Index = idx
			eng.SetSink(idx)
			cleanup = func() {
				if err := idx.Close(); err != nil {
					logger.Warn().Err(err).Msg("closing index")
				}
			}
		}
	}
	return app, cleanup, nil
}

// New creates the MCP server with all tools, prompts and resources
// registered against app.
func New(app *App) *server.MCPServer {
	s := server.NewMCPServer(
		"speclock",
		config.Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	eng := app.Engine
	genOpts := contextpack.GenerateOptions{HTML: app.Config.ContextHTML}

	// --- Memory tools ---

	initTool := tools.NewInitTool(eng)
	s.AddTool(initTool.Definition(), initTool.Handle)

	getContext := tools.NewGetContextTool(app.Renderer, genOpts)
	s.AddTool(getContext.Definition(), getContext.Handle)

	setGoal := tools.NewSetGoalTool(eng)
	s.AddTool(setGoal.Definition(), setGoal.Handle)

	addLock := tools.NewAddLockTool(eng)
	s.AddTool(addLock.Definition(), addLock.Handle)

	removeLock := tools.NewRemoveLockTool(eng)
	s.AddTool(removeLock.Definition(), removeLock.Handle)

	addDecision := tools.NewAddDecisionTool(eng)
	s.AddTool(addDecision.Definition(), addDecision.Handle)

	addNote := tools.NewAddNoteTool(eng)
	s.AddTool(addNote.Definition(), addNote.Handle)

	deployFacts := tools.NewSetDeployFactsTool(eng)
	s.AddTool(deployFacts.Definition(), deployFacts.Handle)

	// --- Change tracking tools ---

	logChange := tools.NewLogChangeTool(eng)
	s.AddTool(logChange.Definition(), logChange.Handle)

	getChanges := tools.NewGetChangesTool(eng)
	s.AddTool(getChanges.Definition(), getChanges.Handle)

	getEvents := tools.NewGetEventsTool(eng)
	s.AddTool(getEvents.Definition(), getEvents.Handle)

	checkpoint := tools.NewCheckpointTool(eng)
	s.AddTool(checkpoint.Definition(), checkpoint.Handle)

	repoStatus := tools.NewRepoStatusTool(eng)
	s.AddTool(repoStatus.Definition(), repoStatus.Handle)

	// --- Session tools ---

	briefing := tools.NewSessionBriefingTool(eng, app.Renderer, genOpts)
	s.AddTool(briefing.Definition(), briefing.Handle)

	summary := tools.NewSessionSummaryTool(eng)
	s.AddTool(summary.Definition(), summary.Handle)

	// --- Analysis tools ---

	conflict := tools.NewCheckConflictTool(eng)
	s.AddTool(conflict.Definition(), conflict.Handle)

	suggest := tools.NewSuggestLocksTool(eng)
	s.AddTool(suggest.Definition(), suggest.Handle)

	drift := tools.NewDetectDriftTool(eng)
	s.AddTool(drift.Definition(), drift.Handle)

	health := tools.NewHealthTool(eng)
	s.AddTool(health.Definition(), health.Handle)

	// A nil *index.Index must not reach the tool as a non-nil interface.
	var searcher tools.Searcher
	if app.Index != nil {
		searcher = app.Index
	}
	search := tools.NewSearchEventsTool(searcher)
	s.AddTool(search.Definition(), search.Handle)

	// --- Prompts ---

	startPrompt := prompts.NewStartPrompt()
	s.AddPrompt(startPrompt.Definition(), startPrompt.Handle)

	statusPrompt := prompts.NewStatusPrompt()
	s.AddPrompt(statusPrompt.Definition(), statusPrompt.Handle)

	// --- Resources ---

	resourceHandler := resources.NewHandler(app.Renderer)
	s.AddResource(resourceHandler.PackResource(), resourceHandler.HandlePack)
	s.AddResource(resourceHandler.MarkdownResource(), resourceHandler.HandleMarkdown)

	return s
}

// ServeHTTP runs the streamable HTTP transport on addr until ctx is
// cancelled.
func ServeHTTP(ctx context.Context, s *server.MCPServer, addr string, logger zerolog.Logger) error {
	httpServer := server.NewStreamableHTTPServer(s)

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("serving MCP over HTTP")
		errCh <- httpServer.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		return httpServer.Shutdown(context.Background())
	}
}

// noop is the default cleanup when there is nothing to release.
func noop() {}

func serverInstructions() string {
	return `You have access to SpecLock, a project memory and constraint engine.
SpecLock remembers the goal, the non-negotiable constraints (locks), the
decisions and the change history of this project across sessions and tools.

## AT THE START OF EVERY SESSION

1. Call speclock_session_briefing FIRST. It starts a session and returns the
   goal, active locks, recent changes, revert warnings and the full context.
2. If the project is not initialized yet, call speclock_init.
3. If the briefing shows revert warnings, tell the user before doing anything.

## CAPTURE AUTOMATICALLY, WITHOUT BEING ASKED

- When the user states what the project is for: speclock_set_goal.
- When the user says something must ALWAYS or NEVER happen, or that
  something MUST stay a certain way ("don't touch auth", "always use
  Postgres", "never change the public API"): speclock_add_lock.
- When a technical choice is made ("we'll use Stripe", "REST, not GraphQL"):
  speclock_add_decision.
- Useful context worth keeping (credentials location, quirks, gotchas):
  speclock_add_note.
- Deploy details (provider, branch, URL): speclock_set_deploy_facts.
- After finishing a meaningful piece of work: speclock_log_change with a
  one-line summary and the files touched.

## BEFORE SIGNIFICANT CHANGES

Call speclock_check_conflict with the proposed action. If it reports a HIGH
confidence conflict, STOP and warn the user, quoting the lock. Only proceed
when the user explicitly confirms.

## LOCK REMOVAL

Never call speclock_remove_lock without explicit confirmation from the
user. Locks exist to protect decisions the user already made.

## AT THE END OF A SESSION

Call speclock_session_summary with what was accomplished. The next session,
possibly in another tool, starts from that summary.

## OTHER TOOLS

- speclock_get_context: the full context document (markdown, json or yaml).
- speclock_get_changes / speclock_get_events: history.
- speclock_search_events: full-text search over the history.
- speclock_detect_drift: changes that contradict locks, and reverts.
- speclock_suggest_locks: decisions and notes that look like constraints.
- speclock_health: memory completeness score and multi-agent timeline.
- speclock_checkpoint / speclock_repo_status: git tag and repository state.`
}

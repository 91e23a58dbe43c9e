package cli

import (
	"errors"
	"fmt"

	"github.com/HendryAvila/speclock/internal/contextpack"
	"github.com/HendryAvila/speclock/internal/server"
	"github.com/spf13/cobra"
)

func (c *cli) sessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Start, end or brief a working session",
	}

	start := &cobra.Command{
		Use:   "start",
		Short: "Start a session (auto-closes an open one)",
		Args:  cobra.NoArgs,
	}
	startTool := start.Flags().String("tool", "cli", "tool running the session")
	start.RunE = c.withApp(func(cmd *cobra.Command, args []string, app *server.App) error {
		s, err := app.Engine.StartSession(cmd.Context(), *startTool)
		if err != nil {
			return err
		}
		printOK(cmd.OutOrStdout(), "Session started (%s) with %s.", s.ID, s.ToolUsed)
		return nil
	})

	end := &cobra.Command{
		Use:   "end <summary>",
		Short: "End the current session with a summary",
		RunE: c.withApp(func(cmd *cobra.Command, args []string, app *server.App) error {
			summary := joinArgs(args)
			if err := requireText(summary, "session summary", `speclock session end "what was accomplished"`); err != nil {
				return err
			}
			res, err := app.Engine.EndSession(cmd.Context(), summary)
			if err != nil {
				return err
			}
			if !res.Ended {
				return errors.New(res.Error)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Session ended. Events: %d. Summary: %q\n", res.Session.EventsInSession, summary)
			return refreshContext(cmd, app)
		}),
	}

	briefing := &cobra.Command{
		Use:   "briefing",
		Short: "Start a session and print the briefing with the full context",
		Args:  cobra.NoArgs,
	}
	briefTool := briefing.Flags().String("tool", "cli", "tool running the session")
	briefing.RunE = c.withApp(func(cmd *cobra.Command, args []string, app *server.App) error {
		b, err := app.Engine.SessionBriefing(cmd.Context(), *briefTool)
		if err != nil {
			return err
		}
		md, err := app.Renderer.Generate(cmd.Context(), contextpack.GenerateOptions{HTML: app.Config.ContextHTML})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), contextpack.BriefingMarkdown(b, md))
		return nil
	})

	cmd.AddCommand(start, end, briefing)
	return cmd
}

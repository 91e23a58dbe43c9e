package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/HendryAvila/speclock/internal/brain"
	"github.com/HendryAvila/speclock/internal/contextpack"
	"github.com/HendryAvila/speclock/internal/engine"
	"github.com/HendryAvila/speclock/internal/server"
	"github.com/spf13/cobra"
)

func (c *cli) checkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <proposed action>",
		Short: "Check a proposed action against the active locks",
	}
	asJSON := jsonFlag(cmd)
	cmd.RunE = c.withApp(func(cmd *cobra.Command, args []string, app *server.App) error {
		action := joinArgs(args)
		if err := requireText(action, "action description", `speclock check "what you plan to do"`); err != nil {
			return err
		}
		res, err := app.Engine.CheckConflict(cmd.Context(), action)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if *asJSON {
			return writeJSON(out, res)
		}
		switch {
		case res.HasConflict:
			fmt.Fprintln(out, dangerColor.Sprint("CONFLICT DETECTED"))
			fmt.Fprintln(out, res.Analysis)
		case res.Analysis == engine.NoLocksMessage:
			fmt.Fprintln(out, res.Analysis)
		default:
			printOK(out, "No conflicts found. Safe to proceed with: %q", action)
		}
		return nil
	})
	return cmd
}

func (c *cli) driftCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drift",
		Short: "Detect recent changes that contradict locks, and reverts",
		Args:  cobra.NoArgs,
	}
	asJSON := jsonFlag(cmd)
	cmd.RunE = c.withApp(func(cmd *cobra.Command, args []string, app *server.App) error {
		r, err := app.Engine.DetectDrift(cmd.Context())
		if err != nil {
			return err
		}
		if *asJSON {
			return writeJSON(cmd.OutOrStdout(), r)
		}
		text := contextpack.DriftMarkdown(r)
		if r.Status == engine.DriftDetected {
			printWarn(cmd.OutOrStdout(), "%s", text)
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), text)
		return nil
	})
	return cmd
}

func (c *cli) suggestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Suggest locks from decisions, notes and common constraints",
		Args:  cobra.NoArgs,
	}
	asJSON := jsonFlag(cmd)
	cmd.RunE = c.withApp(func(cmd *cobra.Command, args []string, app *server.App) error {
		r, err := app.Engine.SuggestLocks(cmd.Context())
		if err != nil {
			return err
		}
		if *asJSON {
			return writeJSON(cmd.OutOrStdout(), r)
		}
		fmt.Fprintln(cmd.OutOrStdout(), contextpack.SuggestionsMarkdown(r))
		return nil
	})
	return cmd
}

func (c *cli) healthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Score how complete the project memory is",
		Args:  cobra.NoArgs,
	}
	asJSON := jsonFlag(cmd)
	cmd.RunE = c.withApp(func(cmd *cobra.Command, args []string, app *server.App) error {
		r, err := app.Engine.Health(cmd.Context())
		if err != nil {
			return err
		}
		if *asJSON {
			return writeJSON(cmd.OutOrStdout(), r)
		}
		fmt.Fprintln(cmd.OutOrStdout(), contextpack.HealthMarkdown(r))
		return nil
	})
	return cmd
}

func (c *cli) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show a summary of the project memory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := c.load()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			// status never initializes a project as a side effect.
			if _, err := os.Stat(brain.BrainPath(cfg.ProjectRoot)); os.IsNotExist(err) {
				printWarn(out, "SpecLock not initialized. Run: speclock setup")
				return nil
			}
			return c.withApp(func(cmd *cobra.Command, args []string, app *server.App) error {
				b, err := app.Engine.EnsureInit(cmd.Context())
				if err != nil {
					return err
				}
				printStatus(out, b)
				return nil
			})(cmd, args)
		},
	}
}

func printStatus(out io.Writer, b *brain.Brain) {
	printHeader(out, "SpecLock Status: "+b.Project.Name)
	fmt.Fprintf(out, "Goal: %s\n", orNotSet(b.Goal.Text))
	fmt.Fprintf(out, "Locks: %d active\n", len(b.ActiveLocks()))
	fmt.Fprintf(out, "Decisions: %d\n", len(b.Decisions))
	fmt.Fprintf(out, "Notes: %d\n", len(b.Notes))
	fmt.Fprintf(out, "Events: %d\n", b.Events.Count)
	fmt.Fprintf(out, "Deploy: %s\n", orNotSet(b.Facts.Deploy.Provider))
	if cur := b.Sessions.Current; cur != nil {
		fmt.Fprintf(out, "Session: active (%s)\n", cur.ToolUsed)
	} else {
		fmt.Fprintln(out, "Session: none active")
	}
	if last := b.LastSession(); last != nil {
		summary := last.Summary
		if summary == "" {
			summary = "(no summary)"
		}
		fmt.Fprintf(out, "Last session: %s: %s\n", last.ToolUsed, summary)
	}
	fmt.Fprintf(out, "Recent changes: %d\n", len(b.State.RecentChanges))
	if n := len(b.State.Reverts); n > 0 {
		printWarn(out, "Reverts: %d (run: speclock drift)", n)
	}
}

func orNotSet(s string) string {
	if s == "" || s == "unknown" {
		return "(not set)"
	}
	return s
}

func jsonFlag(cmd *cobra.Command) *bool {
	return cmd.Flags().Bool("json", false, "print the raw result as JSON")
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

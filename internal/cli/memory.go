package cli

import (
	"errors"
	"fmt"

	"github.com/HendryAvila/speclock/internal/brain"
	"github.com/HendryAvila/speclock/internal/contextpack"
	"github.com/HendryAvila/speclock/internal/engine"
	"github.com/HendryAvila/speclock/internal/server"
	"github.com/spf13/cobra"
)

func (c *cli) setupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup [goal]",
		Short: "Initialize SpecLock, write SPECLOCK.md and generate the context file",
	}
	goal := cmd.Flags().String("goal", "", "project goal")
	cmd.RunE = c.withApp(func(cmd *cobra.Command, args []string, app *server.App) error {
		out := cmd.OutOrStdout()
		ctx := cmd.Context()

		if _, err := app.Engine.EnsureInit(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "Initialized .speclock/ directory.")

		text := *goal
		if text == "" {
			text = joinArgs(args)
		}
		if text != "" {
			if _, err := app.Engine.SetGoal(ctx, text); err != nil {
				return err
			}
			fmt.Fprintf(out, "Goal set: %q\n", text)
		}

		if err := writeRules(cmd, app); err != nil {
			return err
		}
		if _, err := app.Renderer.Generate(ctx, contextpack.GenerateOptions{HTML: app.Config.ContextHTML}); err != nil {
			return err
		}
		fmt.Fprintln(out, "Generated .speclock/context/latest.md")

		printOK(out, "\nSpecLock is ready!")
		fmt.Fprint(out, `
Next steps:
  To add constraints:  speclock lock "Never touch auth files"
  To check conflicts:  speclock check "Modifying auth page"
  To log changes:      speclock log-change "Built landing page"
  To see status:       speclock status

Tip: when starting a new chat, tell the AI:
  "Check speclock status and read the project constraints before doing anything"
`)
		return nil
	})
	return cmd
}

func (c *cli) initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize the .speclock/ directory and generate the context file",
		Args:  cobra.NoArgs,
		RunE: c.withApp(func(cmd *cobra.Command, args []string, app *server.App) error {
			b, err := app.Engine.EnsureInit(cmd.Context())
			if err != nil {
				return err
			}
			if err := writeRules(cmd, app); err != nil {
				return err
			}
			if _, err := app.Renderer.Generate(cmd.Context(), contextpack.GenerateOptions{HTML: app.Config.ContextHTML}); err != nil {
				return err
			}
			printOK(cmd.OutOrStdout(), "SpecLock initialized for %q at %s", b.Project.Name, b.Project.Root)
			return nil
		}),
	}
}

func writeRules(cmd *cobra.Command, app *server.App) error {
	created, err := contextpack.WriteAgentRules(app.Engine.Root())
	if err != nil {
		return err
	}
	if created {
		fmt.Fprintf(cmd.OutOrStdout(), "Created %s (AI instructions file).\n", contextpack.AgentRulesFile)
	}
	return nil
}

func (c *cli) goalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "goal <text>",
		Short: "Set or replace the project goal",
		RunE: c.withApp(func(cmd *cobra.Command, args []string, app *server.App) error {
			text := joinArgs(args)
			if err := requireText(text, "goal text", "speclock goal <text>"); err != nil {
				return err
			}
			if _, err := app.Engine.SetGoal(cmd.Context(), text); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Goal set: %q\n", text)
			return refreshContext(cmd, app)
		}),
	}
}

func (c *cli) lockCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lock <text>",
		Short: "Add a non-negotiable constraint",
	}
	tags := cmd.Flags().String("tags", "", "comma separated tags")
	source := cmd.Flags().String("source", string(brain.SourceUser), "who created the lock (user or agent)")
	cmd.RunE = c.withApp(func(cmd *cobra.Command, args []string, app *server.App) error {
		text := joinArgs(args)
		if err := requireText(text, "lock text", "speclock lock <text> [--tags a,b] [--source user]"); err != nil {
			return err
		}
		id, err := app.Engine.AddLock(cmd.Context(), text, splitList(*tags), parseSource(*source))
		if err != nil {
			return err
		}
		printOK(cmd.OutOrStdout(), "Locked (%s): %q", id, text)
		return refreshContext(cmd, app)
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <lock-id>",
		Short: "Deactivate a lock",
		RunE: c.withApp(func(cmd *cobra.Command, args []string, app *server.App) error {
			id := joinArgs(args)
			if err := requireText(id, "lock ID", "speclock lock remove <lockId>"); err != nil {
				return err
			}
			res, err := app.Engine.RemoveLock(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !res.Removed {
				return errors.New(res.Error)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Lock removed: %q\n", res.LockText)
			return refreshContext(cmd, app)
		}),
	})
	return cmd
}

func (c *cli) decideCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decide <text>",
		Short: "Record an architectural or product decision",
	}
	tags := cmd.Flags().String("tags", "", "comma separated tags")
	cmd.RunE = c.withApp(func(cmd *cobra.Command, args []string, app *server.App) error {
		text := joinArgs(args)
		if err := requireText(text, "decision text", "speclock decide <text> [--tags a,b]"); err != nil {
			return err
		}
		id, err := app.Engine.AddDecision(cmd.Context(), text, splitList(*tags), brain.SourceUser)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Decision recorded (%s): %q\n", id, text)
		return refreshContext(cmd, app)
	})
	return cmd
}

func (c *cli) noteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "note <text>",
		Short: "Add a project note",
	}
	pinned := cmd.Flags().Bool("pinned", true, "show the note in the context pack")
	cmd.RunE = c.withApp(func(cmd *cobra.Command, args []string, app *server.App) error {
		text := joinArgs(args)
		if err := requireText(text, "note text", "speclock note <text> [--pinned]"); err != nil {
			return err
		}
		id, err := app.Engine.AddNote(cmd.Context(), text, *pinned)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Note added (%s): %q\n", id, text)
		return refreshContext(cmd, app)
	})
	return cmd
}

func (c *cli) factsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "facts",
		Short: "Record project facts",
	}

	deploy := &cobra.Command{
		Use:   "deploy",
		Short: "Update deploy facts; omitted flags keep their value",
		Args:  cobra.NoArgs,
	}
	f := deploy.Flags()
	f.String("provider", "", "deploy provider (vercel, fly, render, ...)")
	f.String("branch", "", "deploy branch")
	f.String("url", "", "production URL")
	f.String("notes", "", "deploy notes")
	f.Bool("auto-deploy", false, "whether pushes deploy automatically")
	deploy.RunE = c.withApp(func(cmd *cobra.Command, args []string, app *server.App) error {
		var u engine.DeployUpdate
		flags := cmd.Flags()
		for name, dst := range map[string]**string{
			"provider": &u.Provider,
			"branch":   &u.Branch,
			"url":      &u.URL,
			"notes":    &u.Notes,
		} {
			if flags.Changed(name) {
				v, _ := flags.GetString(name)
				*dst = &v
			}
		}
		if flags.Changed("auto-deploy") {
			v, _ := flags.GetBool("auto-deploy")
			u.AutoDeploy = &v
		}
		if u == (engine.DeployUpdate{}) {
			return fmt.Errorf("at least one fact is required\nUsage: speclock facts deploy --provider X --branch Y")
		}
		if _, err := app.Engine.UpdateDeployFacts(cmd.Context(), u); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Deploy facts updated.")
		return refreshContext(cmd, app)
	})

	cmd.AddCommand(deploy)
	return cmd
}

// refreshContext regenerates the context file after a mutation so agents
// reading it from disk see the change.
func refreshContext(cmd *cobra.Command, app *server.App) error {
	_, err := app.Renderer.Generate(cmd.Context(), contextpack.GenerateOptions{HTML: app.Config.ContextHTML})
	return err
}

func parseSource(s string) brain.Source {
	if s == string(brain.SourceAgent) {
		return brain.SourceAgent
	}
	return brain.SourceUser
}

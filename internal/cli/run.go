package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/HendryAvila/speclock/internal/config"
	"github.com/HendryAvila/speclock/internal/contextpack"
	"github.com/HendryAvila/speclock/internal/provider"
	"github.com/HendryAvila/speclock/internal/server"
	"github.com/HendryAvila/speclock/internal/updater"
	"github.com/HendryAvila/speclock/internal/watch"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func (c *cli) contextCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "context",
		Short: "Generate and print the context pack",
		Args:  cobra.NoArgs,
	}
	format := cmd.Flags().String("format", "markdown", "output format: markdown, json or yaml")
	cmd.Flags().Bool("html", false, "also write .speclock/context/latest.html")
	_ = c.v.BindPFlag(config.KeyContextHTML, cmd.Flags().Lookup("html"))

	cmd.RunE = c.withApp(func(cmd *cobra.Command, args []string, app *server.App) error {
		out := cmd.OutOrStdout()
		if *format == "markdown" || *format == "md" {
			md, err := app.Renderer.Generate(cmd.Context(), contextpack.GenerateOptions{HTML: app.Config.ContextHTML})
			if err != nil {
				return err
			}
			fmt.Fprintln(out, md)
			return nil
		}
		p, err := app.Renderer.Pack(cmd.Context())
		if err != nil {
			return err
		}
		data, err := contextpack.Encode(p, *format)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	})
	return cmd
}

func (c *cli) watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Record file changes and detect reverts until interrupted",
		Args:  cobra.NoArgs,
	}
	c.bindDuration(cmd, "poll-interval", config.KeyPollInterval, "how often to poll the git head")
	cmd.RunE = c.withApp(func(cmd *cobra.Command, args []string, app *server.App) error {
		fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s (Ctrl+C to stop)\n", app.Engine.Root())
		return runWatcher(cmd.Context(), app)
	})
	return cmd
}

func runWatcher(ctx context.Context, app *server.App) error {
	if _, err := app.Engine.EnsureInit(ctx); err != nil {
		return err
	}
	w, err := watch.New(app.Engine, watch.Options{
		PollInterval: app.Config.PollInterval,
		Ignore:       app.Config.WatchIgnore,
	}, app.Log)
	if err != nil {
		return err
	}
	return w.Run(ctx)
}

func (c *cli) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server (stdio by default)",
		Args:  cobra.NoArgs,
	}
	useHTTP := cmd.Flags().Bool("http", false, "serve streamable HTTP instead of stdio")
	withWatch := cmd.Flags().Bool("watch", false, "run the file watcher alongside the server")
	cmd.Flags().String("addr", ":8787", "HTTP listen address")
	_ = c.v.BindPFlag(config.KeyHTTPAddr, cmd.Flags().Lookup("addr"))

	cmd.RunE = c.withApp(func(cmd *cobra.Command, args []string, app *server.App) error {
		s := server.New(app)

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		go checkForUpdates(ctx, app.Log)

		g, ctx := errgroup.WithContext(ctx)
		if *withWatch {
			g.Go(func() error { return runWatcher(ctx, app) })
		}
		g.Go(func() error {
			defer cancel()
			if *useHTTP {
				return server.ServeHTTP(ctx, s, app.Config.HTTPAddr, app.Log)
			}
			// stdio manages its own lifecycle and returns on EOF or signal.
			return mcpserver.ServeStdio(s)
		})
		err := g.Wait()
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	return cmd
}

// checkForUpdates logs a notice when a newer release exists. Failures are
// ignored; it runs beside the server.
func checkForUpdates(ctx context.Context, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	res, err := updater.New().Check(ctx, config.Version)
	if err != nil || !res.UpdateAvailable {
		return
	}
	logger.Info().
		Str("current", res.Current).
		Str("latest", res.Latest).
		Str("release", res.ReleaseURL).
		Msg("update available, run: speclock update")
}

func (c *cli) askCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask an LLM a question with the project context as system prompt",
	}
	f := cmd.Flags()
	f.String("provider", "anthropic", "LLM provider ("+strings.Join(provider.Names(), ", ")+")")
	f.String("model", "", "model name (default: provider default)")
	_ = c.v.BindPFlag(config.KeyProviderName, f.Lookup("provider"))
	_ = c.v.BindPFlag(config.KeyProviderModel, f.Lookup("model"))

	cmd.RunE = c.withApp(func(cmd *cobra.Command, args []string, app *server.App) error {
		question := joinArgs(args)
		if err := requireText(question, "question", `speclock ask "how should I add billing?"`); err != nil {
			return err
		}
		p, err := provider.Get(app.Config.Provider.Name)
		if err != nil {
			return err
		}
		pack, err := app.Renderer.Pack(cmd.Context())
		if err != nil {
			return err
		}
		answer, err := p.Send(cmd.Context(), provider.ContextMessages(contextpack.Markdown(pack), question), provider.Config{
			Model:     app.Config.Provider.Model,
			MaxTokens: app.Config.Provider.MaxTokens,
			APIKey:    app.Config.Provider.APIKey,
			BaseURL:   app.Config.Provider.BaseURL,
		})
		if err != nil {
			return fmt.Errorf("%s: %w", p.Name(), err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), answer)
		return nil
	})
	return cmd
}

func (c *cli) updateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Update speclock to the latest release",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Checking for updates...")
			version, err := updater.New().Apply(cmd.Context(), config.Version)
			if errors.Is(err, updater.ErrUpToDate) {
				printOK(out, "Already at the latest version (%s).", config.Version)
				return nil
			}
			if err != nil {
				return fmt.Errorf("update failed: %w", err)
			}
			printOK(out, "Updated to v%s. Restart running speclock servers to use it.", version)
			return nil
		},
	}
}

func (c *cli) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "speclock %s\n", config.Version)
		},
	}
}

func (c *cli) bindDuration(cmd *cobra.Command, flag, key, usage string) {
	cmd.Flags().Duration(flag, 0, usage)
	_ = c.v.BindPFlag(key, cmd.Flags().Lookup(flag))
}

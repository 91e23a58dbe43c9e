// Package cli implements the speclock command line. Every command loads
// the configuration, opens the project and calls the same engine the MCP
// server uses.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/HendryAvila/speclock/internal/config"
	"github.com/HendryAvila/speclock/internal/server"
	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const logo = "\n" +
	"  ___              _            _\n" +
	" / __|_ __  ___ __| |   ___  __| |__\n" +
	" \\__ \\ '_ \\/ -_) _| |__/ _ \\/ _| / /\n" +
	" |___/ .__/\\___\\__|____\\___/\\__|_\\_\\\n" +
	"     |_|\n"

var (
	headerColor  = color.New(color.FgCyan, color.Bold)
	successColor = color.New(color.FgGreen)
	warnColor    = color.New(color.FgYellow)
	dangerColor  = color.New(color.FgRed, color.Bold)
)

// cli carries state shared by every command of one invocation.
type cli struct {
	v      *viper.Viper
	stderr io.Writer
}

// NewRootCmd builds the command tree. Logs go to stderr; command output
// goes to the command's out writer.
func NewRootCmd() *cobra.Command {
	c := &cli{v: config.New(), stderr: os.Stderr}

	root := &cobra.Command{
		Use:           "speclock",
		Short:         "Project memory and constraint engine for AI coding assistants",
		Long:          color.CyanString(logo) + "\nSpecLock remembers the goal, the locks, the decisions and the changes of a project across AI sessions.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if c.v.GetBool("no_color") {
				color.NoColor = true
			}
		},
	}

	f := root.PersistentFlags()
	f.StringP("project", "p", ".", "project root")
	f.String("log-level", "info", "log level (debug, info, warn, error)")
	f.Bool("no-color", false, "disable coloured output")

	bindFlag := func(key, flag string) {
		_ = c.v.BindPFlag(key, f.Lookup(flag))
	}
	bindFlag(config.KeyProjectRoot, "project")
	bindFlag(config.KeyLogLevel, "log-level")
	bindFlag("no_color", "no-color")

	root.AddCommand(
		c.setupCmd(),
		c.initCmd(),
		c.goalCmd(),
		c.lockCmd(),
		c.decideCmd(),
		c.noteCmd(),
		c.factsCmd(),
		c.logChangeCmd(),
		c.eventsCmd(),
		c.checkpointCmd(),
		c.searchCmd(),
		c.reindexCmd(),
		c.checkCmd(),
		c.driftCmd(),
		c.suggestCmd(),
		c.healthCmd(),
		c.statusCmd(),
		c.sessionCmd(),
		c.guardCmd(),
		c.unguardCmd(),
		c.contextCmd(),
		c.watchCmd(),
		c.serveCmd(),
		c.askCmd(),
		c.updateCmd(),
		c.versionCmd(),
	)
	return root
}

// Execute runs the root command and returns the process exit code.
func Execute(ctx context.Context) int {
	root := NewRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, dangerColor.Sprint("Error: ")+err.Error())
		return 1
	}
	return 0
}

// load resolves the configuration and a logger for it.
func (c *cli) load() (config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(c.v)
	if err != nil {
		return config.Config{}, zerolog.Nop(), err
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: c.stderr, NoColor: color.NoColor}).
		Level(cfg.LogLevel).
		With().Timestamp().Logger()
	return cfg, logger, nil
}

// open loads the configuration and opens the project.
func (c *cli) open(ctx context.Context) (*server.App, func(), error) {
	cfg, logger, err := c.load()
	if err != nil {
		return nil, func() {}, err
	}
	return server.Open(ctx, cfg, logger)
}

// withApp wraps a command body that needs an open project.
func (c *cli) withApp(fn func(cmd *cobra.Command, args []string, app *server.App) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		app, cleanup, err := c.open(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()
		return fn(cmd, args, app)
	}
}

// ─── Output helpers ─────────────────────────────────────────────────────────

func printHeader(w io.Writer, title string) {
	fmt.Fprintln(w, headerColor.Sprint(title))
	fmt.Fprintln(w, strings.Repeat("=", 50))
}

func printOK(w io.Writer, format string, a ...any) {
	fmt.Fprintln(w, successColor.Sprintf(format, a...))
}

func printWarn(w io.Writer, format string, a ...any) {
	fmt.Fprintln(w, warnColor.Sprintf(format, a...))
}

// joinArgs turns positional words into one trimmed text argument.
func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// requireText returns an error naming what is missing and how to call
// the command.
func requireText(text, what, usage string) error {
	if text == "" {
		return fmt.Errorf("%s is required\nUsage: %s", what, usage)
	}
	return nil
}

// splitList parses a comma separated flag value.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

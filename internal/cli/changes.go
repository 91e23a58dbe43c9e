package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/HendryAvila/speclock/internal/brain"
	"github.com/HendryAvila/speclock/internal/contextpack"
	"github.com/HendryAvila/speclock/internal/index"
	"github.com/HendryAvila/speclock/internal/server"
	"github.com/spf13/cobra"
)

func (c *cli) logChangeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log-change <summary>",
		Short: "Record a manual change with an optional list of files",
	}
	files := cmd.Flags().String("files", "", "comma separated files (default: derived from the diff)")
	cmd.RunE = c.withApp(func(cmd *cobra.Command, args []string, app *server.App) error {
		text := joinArgs(args)
		if err := requireText(text, "change summary", `speclock log-change "what changed" --files a.ts,b.ts`); err != nil {
			return err
		}
		ev, err := app.Engine.LogChange(cmd.Context(), text, splitList(*files))
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Change logged: %q\n", text)
		if len(ev.Files) > 0 {
			fmt.Fprintf(out, "Files: %s\n", strings.Join(ev.Files, ", "))
		}
		return refreshContext(cmd, app)
	})
	return cmd
}

func (c *cli) eventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List events from the log, newest first",
		Args:  cobra.NoArgs,
	}
	typ := cmd.Flags().String("type", "", "only events of this type")
	since := cmd.Flags().String("since", "", "only events at or after this RFC 3339 time")
	limit := cmd.Flags().Int("limit", 50, "maximum number of events")
	cmd.RunE = c.withApp(func(cmd *cobra.Command, args []string, app *server.App) error {
		filter := brain.EventFilter{Type: brain.EventType(*typ), Limit: *limit}
		if filter.Type != "" && !brain.ValidEventType(filter.Type) {
			return fmt.Errorf("unknown event type %q", *typ)
		}
		if *since != "" {
			t, err := brain.ParseTime(*since)
			if err != nil {
				return fmt.Errorf("invalid --since: %w", err)
			}
			filter.Since = brain.FormatTime(t)
		}
		events, err := app.Engine.Events(cmd.Context(), filter)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), contextpack.EventsText(events))
		return nil
	})
	return cmd
}

func (c *cli) checkpointCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "checkpoint <name>",
		Short: "Tag the current commit as a named restore point",
		RunE: c.withApp(func(cmd *cobra.Command, args []string, app *server.App) error {
			name := joinArgs(args)
			if err := requireText(name, "checkpoint name", "speclock checkpoint <name>"); err != nil {
				return err
			}
			res, err := app.Engine.Checkpoint(cmd.Context(), name)
			if err != nil {
				return err
			}
			if !res.OK {
				return errors.New(res.Error)
			}
			printOK(cmd.OutOrStdout(), "Checkpoint created: %s", res.Tag)
			return nil
		}),
	}
}

func (c *cli) searchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search over the event history",
	}
	limit := cmd.Flags().Int("limit", 10, "maximum number of results")
	cmd.RunE = c.withApp(func(cmd *cobra.Command, args []string, app *server.App) error {
		query := joinArgs(args)
		if err := requireText(query, "search query", "speclock search <query>"); err != nil {
			return err
		}
		if app.Index == nil {
			return errors.New("event search is disabled (index.enabled=false)")
		}
		hits, err := app.Index.Search(cmd.Context(), query, *limit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(hits) == 0 {
			fmt.Fprintf(out, "No events match %q.\n", query)
			return nil
		}
		for _, h := range hits {
			fmt.Fprintf(out, "%s  %-18s %s\n", h.At, h.Type, h.Summary)
		}
		return nil
	})
	return cmd
}

func (c *cli) reindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the search index from events.log",
		Args:  cobra.NoArgs,
		RunE: c.withApp(func(cmd *cobra.Command, args []string, app *server.App) error {
			idx := app.Index
			if idx == nil {
				// Reindexing is explicit, so open the index even when the
				// server would not.
				var err error
				idx, err = index.Open(cmd.Context(), index.Path(app.Engine.Root()), app.Log)
				if err != nil {
					return err
				}
				defer func() { _ = idx.Close() }()
			}
			events, err := app.Engine.Events(cmd.Context(), brain.EventFilter{})
			if err != nil {
				return err
			}
			n, err := idx.Rebuild(cmd.Context(), events)
			if err != nil {
				return err
			}
			printOK(cmd.OutOrStdout(), "Indexed %d event(s).", n)
			return nil
		}),
	}
}

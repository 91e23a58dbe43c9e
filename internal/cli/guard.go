package cli

import (
	"errors"
	"fmt"

	"github.com/HendryAvila/speclock/internal/config"
	"github.com/HendryAvila/speclock/internal/guard"
	"github.com/spf13/cobra"
)

func (c *cli) guardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "guard <file>",
		Short: "Inject a lock warning banner at the top of a file",
		Args:  cobra.MaximumNArgs(1),
	}
	lock := cmd.Flags().String("lock", "", "constraint text shown in the banner")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := c.loadRoot(args, `speclock guard <file> --lock "constraint text"`)
		if err != nil {
			return err
		}
		text := *lock
		if text == "" {
			text = "This file is locked by SpecLock. Do not modify."
		}
		if res := guard.Guard(cfg.ProjectRoot, args[0], text); !res.Success {
			return errors.New(res.Error)
		}
		out := cmd.OutOrStdout()
		printOK(out, "Guarded: %s", args[0])
		fmt.Fprintf(out, "Lock warning injected: %q\n", text)
		return nil
	}
	return cmd
}

func (c *cli) unguardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unguard <file>",
		Short: "Remove the lock warning banner from a file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadRoot(args, "speclock unguard <file>")
			if err != nil {
				return err
			}
			if res := guard.Unguard(cfg.ProjectRoot, args[0]); !res.Success {
				return errors.New(res.Error)
			}
			printOK(cmd.OutOrStdout(), "Unguarded: %s", args[0])
			return nil
		},
	}
}

// loadRoot validates the file argument and resolves the project root
// without opening the brain; guarding does not touch project memory.
func (c *cli) loadRoot(args []string, usage string) (config.Config, error) {
	file := ""
	if len(args) > 0 {
		file = args[0]
	}
	if err := requireText(file, "file path", usage); err != nil {
		return config.Config{}, err
	}
	cfg, _, err := c.load()
	return cfg, err
}

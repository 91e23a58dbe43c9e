// SpecLock: project memory and constraint engine for AI coding assistants.
//
// One binary serves the MCP server and the command line:
//
//	speclock setup "goal"   # initialize .speclock/ and SPECLOCK.md
//	speclock serve          # MCP server over stdio
//	speclock serve --http   # MCP server over streamable HTTP
//	speclock watch          # record file changes and detect reverts
//	speclock check "action" # check an action against the locks
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/HendryAvila/speclock/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx)
	stop()
	os.Exit(code)
}

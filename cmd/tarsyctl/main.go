// tarsyctl is a CLI client for tarsyd's HTTP API: create an agent, send
// it a message, and tail its event stream, useful for manual exercising
// and as the e2e harness's driver.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"github.com/codeready-toolchain/tarsy-agent-runtime/cmd/tarsyctl/commands"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cmd := commands.NewRootCommand()
	if err := cmd.Run(ctx, os.Args); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

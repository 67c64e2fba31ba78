package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// NewDestroyCommand returns the destroy-agent subcommand.
func NewDestroyCommand() *cli.Command {
	return &cli.Command{
		Name:      "destroy",
		Usage:     "Destroy an agent",
		ArgsUsage: "<agent-id>",
		Flags:     []cli.Flag{serverFlag(), userFlag()},
		Action:    runDestroy,
	}
}

func runDestroy(ctx context.Context, cmd *cli.Command) error {
	agentID := cmd.Args().First()
	if agentID == "" {
		return fmt.Errorf("usage: tarsyctl destroy <agent-id>")
	}

	client := newAPIClient(cmd.String("server"), cmd.String("user"))
	if err := client.doJSON(ctx, "DELETE", "/api/v1/agents/"+agentID, nil, nil); err != nil {
		return fmt.Errorf("destroy agent: %w", err)
	}

	fmt.Printf("agent %s destroyed\n", agentID)
	return nil
}

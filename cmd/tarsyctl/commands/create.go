package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/api"
)

// NewCreateCommand returns the create-agent subcommand.
func NewCreateCommand() *cli.Command {
	return &cli.Command{
		Name:  "create",
		Usage: "Create a new agent",
		Flags: []cli.Flag{
			serverFlag(),
			userFlag(),
			&cli.StringFlag{
				Name:  "flow",
				Usage: "Flow kind (default, code, search, reasoning, file)",
				Value: "default",
			},
		},
		Action: runCreate,
	}
}

func runCreate(ctx context.Context, cmd *cli.Command) error {
	client := newAPIClient(cmd.String("server"), cmd.String("user"))

	var resp api.AgentResponse
	err := client.doJSON(ctx, "POST", "/api/v1/agents", api.CreateAgentRequest{
		UserID: cmd.String("user"),
		Flow:   cmd.String("flow"),
	}, &resp)
	if err != nil {
		return fmt.Errorf("create agent: %w", err)
	}

	fmt.Printf("agent %s created (flow=%s, status=%s)\n", resp.ID, resp.Flow, resp.Status)
	return nil
}

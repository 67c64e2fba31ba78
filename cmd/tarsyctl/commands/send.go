package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/api"
)

// NewSendCommand returns the send-message subcommand.
func NewSendCommand() *cli.Command {
	return &cli.Command{
		Name:      "send",
		Usage:     "Send a message to an agent",
		ArgsUsage: "<agent-id> <text>",
		Flags:     []cli.Flag{serverFlag(), userFlag()},
		Action:    runSend,
	}
}

func runSend(ctx context.Context, cmd *cli.Command) error {
	agentID := cmd.Args().First()
	text := cmd.Args().Get(1)
	if agentID == "" || text == "" {
		return fmt.Errorf("usage: tarsyctl send <agent-id> <text>")
	}

	client := newAPIClient(cmd.String("server"), cmd.String("user"))

	var resp api.MessageAcceptedResponse
	err := client.doJSON(ctx, "POST", "/api/v1/agents/"+agentID+"/messages", api.SendMessageRequest{Text: text}, &resp)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	fmt.Printf("message accepted=%v\n", resp.Accepted)
	return nil
}

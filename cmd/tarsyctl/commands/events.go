package commands

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/urfave/cli/v3"
)

// NewEventsCommand returns the tail-events subcommand.
func NewEventsCommand() *cli.Command {
	return &cli.Command{
		Name:      "events",
		Usage:     "Tail an agent's event stream",
		ArgsUsage: "<agent-id>",
		Flags: []cli.Flag{
			serverFlag(),
			userFlag(),
			&cli.IntFlag{
				Name:  "from-sequence",
				Usage: "Resume from this sequence number",
				Value: 0,
			},
		},
		Action: runEvents,
	}
}

func runEvents(ctx context.Context, cmd *cli.Command) error {
	agentID := cmd.Args().First()
	if agentID == "" {
		return fmt.Errorf("usage: tarsyctl events <agent-id>")
	}

	path := fmt.Sprintf("/api/v1/agents/%s/events?from_sequence=%d", agentID, cmd.Int("from-sequence"))
	req, err := http.NewRequestWithContext(ctx, "GET", cmd.String("server")+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-User-ID", cmd.String("user"))
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("open event stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("open event stream: unexpected status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	var kind string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			kind = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			fmt.Printf("[%s] %s\n", kind, data)
		case line == "":
			// blank line separates SSE messages; nothing to do
		}
	}
	return scanner.Err()
}

package commands

import (
	"github.com/urfave/cli/v3"
)

// NewRootCommand returns the top-level CLI command.
func NewRootCommand() *cli.Command {
	return &cli.Command{
		Name:  "tarsyctl",
		Usage: "CLI client for the agent runtime HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "server",
				Usage: "tarsyd base URL",
				Value: "http://127.0.0.1:8080",
			},
			&cli.StringFlag{
				Name:  "user",
				Usage: "X-User-ID header sent with every request",
				Value: "tarsyctl",
			},
		},
		Commands: []*cli.Command{
			NewCreateCommand(),
			NewSendCommand(),
			NewEventsCommand(),
			NewDestroyCommand(),
		},
	}
}

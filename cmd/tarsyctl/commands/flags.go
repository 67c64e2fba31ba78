package commands

import "github.com/urfave/cli/v3"

// serverFlag and userFlag are redeclared on every subcommand (cli/v3
// does not propagate a parent's flags to its children's Action).
func serverFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:  "server",
		Usage: "tarsyd base URL",
		Value: "http://127.0.0.1:8080",
	}
}

func userFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:  "user",
		Usage: "X-User-ID header sent with every request",
		Value: "tarsyctl",
	}
}

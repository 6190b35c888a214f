package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

// Version is the canonical reporter version.
const Version = "0.9.2"

// VersionCommand returns the version command.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Action: func(c *cli.Context) error {
			fmt.Printf("reporter %s (commit: %s)\n", Version, commit)
			return nil
		},
	}
}

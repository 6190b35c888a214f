// Package main provides the reporter CLI entrypoint.
//
// The reporter acquires runtime events from an instrumented SUT binary and
// forwards them to per-component CSV logs or an AMQP fanout exchange, for
// consumption by a runtime monitor.
//
// Usage:
//
//	reporter run <sut> [options]
//
// Exit codes for `run`:
//   - 0: normal completion
//   - -1: SUT binary error
//   - -2: broker or configuration error
//   - -3: reporter (pipeline) error
//   - -4: unexpected error
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/probelab/reporter/cli/cmd"
)

// exitUnexpected is the catch-all code for errors no command mapped.
const exitUnexpected = -4

// Commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	app := &cli.App{
		Name:           "reporter",
		Usage:          "Runtime event reporter for instrumented SUT binaries",
		Version:        fmt.Sprintf("%s (commit: %s)", cmd.Version, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.RunCommand(),
			cmd.VersionCommand(commit),
		},
	}

	if err := app.Run(os.Args); err != nil {
		// ExitErrHandler already handled the exit for cli.ExitCoder errors.
		// This branch handles unexpected errors that weren't wrapped.
		os.Exit(exitUnexpected)
	}
}

// exitErrHandler handles errors from the CLI, preserving exit codes from
// cli.Exit(). This keeps the run command's mapped codes intact.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	// Check for ExitCoder (from cli.Exit), handles wrapped errors
	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()

		// cli.Exit("", N).Error() returns "exit status N", so skip those
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	// Unexpected error
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(exitUnexpected)
}

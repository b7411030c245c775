// Command finwatch watches financial instruments from the terminal.
package main

import (
	"context"
	"errors"
	"os"

	"github.com/rshade/finwatch/internal/cli"
	"github.com/rshade/finwatch/pkg/version"
)

// exitInterrupted follows the shell convention of 128 + SIGINT.
const exitInterrupted = 130

func main() {
	os.Exit(exitCode(run()))
}

func run() error {
	return cli.NewRootCmd(version.GetVersion()).Execute()
}

// exitCode maps the error returned by run to a process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		return exitInterrupted
	default:
		return 1
	}
}

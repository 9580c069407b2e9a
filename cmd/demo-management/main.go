// demo-management serves the Demo Management API and runs its end-to-end
// endpoint test suite.
//
// Usage:
//
//	demo-management serve                 Start the HTTP service
//	demo-management migrate up            Apply pending SQLite migrations
//	demo-management migrate status        List SQLite migrations
//	demo-management endpoint-test         Run the endpoint test suite against a running service
//	demo-management version               Print the version
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

// Exit codes.
const (
	ExitSuccess = 0
	// ExitFailure means the command ran but reported failures, e.g. a failed
	// endpoint test step.
	ExitFailure = 1
	// ExitSetup means the command could not run at all.
	ExitSetup = 2
)

// exitError carries a specific exit code. A silent exitError has already
// reported itself.
type exitError struct {
	code   int
	err    error
	silent bool
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the CLI and maps the outcome to an exit code.
func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	if err == nil {
		return ExitSuccess
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if !ee.silent {
			fmt.Fprintln(stderr, "Error:", ee.Error())
		}
		return ee.code
	}
	fmt.Fprintln(stderr, "Error:", err)
	return ExitFailure
}

// Package runner is the entry point of a function binary.
//
//	func main() {
//		runner.Start(myFunction)
//	}
//
// The binary then understands the check, serve, lambda and version commands.
package runner

import (
	"context"
	"os"

	"github.com/heroku/sf-functions-go/internal/cli"
	"github.com/heroku/sf-functions-go/pkg/functions"
)

// Start runs the command line against fn and exits the process.
func Start(fn functions.Function) {
	os.Exit(Run(context.Background(), fn, os.Args[1:]))
}

// Run runs args against fn and returns the exit code.
func Run(ctx context.Context, fn functions.Function, args []string) int {
	return cli.Execute(ctx, fn, args, os.Stdout, os.Stderr)
}

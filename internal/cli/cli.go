package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/heroku/sf-functions-go/internal/config"
	"github.com/heroku/sf-functions-go/internal/version"
	"github.com/heroku/sf-functions-go/pkg/functions"
	"github.com/spf13/cobra"
)

const ProgramName = version.ClientName

// errReported is returned by commands that already printed their failure.
var errReported = errors.New("error already reported")

type globalOptions struct {
	LogLevel string
}

// NewRootCommand builds the command tree serving fn.
func NewRootCommand(fn functions.Function) *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:           ProgramName,
		Short:         "Salesforce Functions Go Runtime",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "info",
		"Minimum level of emitted logs (debug, info, warn, error)")

	rootCmd.AddCommand(
		newCheckCmd(fn),
		newServeCmd(fn, opts),
		newLambdaCmd(fn, opts),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs the command line args against fn and returns the process exit code.
func Execute(ctx context.Context, fn functions.Function, args []string, stdout, stderr io.Writer) int {
	rootCmd := NewRootCommand(fn)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

// loadProject validates a function project and returns its configuration.
func loadProject(fn functions.Function, projectPath string) (config.FunctionConfig, error) {
	cfg, err := config.Load(projectPath)
	if err != nil {
		return cfg, err
	}
	if fn == nil {
		return cfg, fmt.Errorf("no function is registered for '%s'", cfg.Name)
	}
	return cfg, nil
}

func newCheckCmd(fn functions.Function) *cobra.Command {
	return &cobra.Command{
		Use:   "check <project-path>",
		Short: "Checks that a function project is configured correctly",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadProject(fn, args[0]); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Function failed validation: %v\n", err)
				return errReported
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Function passed validation")
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Prints the version of the Go Functions Runtime",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Version)
		},
	}
}

// Package cli implements the perfscan command line.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/ganot/perfscan/internal/app"
	"github.com/spf13/cobra"
)

const (
	ExitSuccess      = 0
	ExitUsageError   = 2
	ExitRuntimeError = 4
)

// errRuntime marks a command failure that is not a usage problem.
type errRuntime struct{ err error }

func (e errRuntime) Error() string { return e.err.Error() }
func (e errRuntime) Unwrap() error { return e.err }

func runtimeErr(err error) error {
	if err == nil {
		return nil
	}
	return errRuntime{err: err}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "perfscan",
		Short:         "Performance issue analysis server",
		Long:          "perfscan accepts uploaded source files, analyzes them with an LLM provider and serves the correlated performance issues over REST and MCP.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				return os.Setenv("PERFSCAN_CONFIG_PATH", configPath)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (overrides PERFSCAN_CONFIG_PATH)")

	root.AddCommand(newServeCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newKeysCmd())
	root.AddCommand(newVersionCmd())
	return root
}

// Run executes the root command and returns an exit code.
func Run() int {
	return execute(newRootCmd(), os.Args[1:])
}

func execute(root *cobra.Command, args []string) int {
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(root.ErrOrStderr(), "error: %v\n", err)
		var rt errRuntime
		if errors.As(err, &rt) {
			return ExitRuntimeError
		}
		return ExitUsageError
	}
	return ExitSuccess
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print perfscan version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "perfscan version %s\n", app.Version)
		},
	}
}

// Package cli holds the cobra commands behind the risk-extractor and
// destlist-manager binaries and the wiring that builds their services.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/haukened/risklists/internal/risk/common/log"
	"github.com/haukened/risklists/internal/risk/config"
	"github.com/haukened/risklists/internal/risk/domain"
)

// Version is reported by --version.
const Version = "0.1.0-dev"

const defaultEnvFile = ".env"

// Run executes cmd with args and maps the outcome to a process exit code.
// Errors are printed to stderr as "error: <msg>".
func Run(ctx context.Context, cmd *cobra.Command, args []string, stdout, stderr io.Writer) int {
	if args == nil {
		// cobra falls back to os.Args for a nil slice
		args = []string{}
	}
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	defer log.Sync()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return domain.ExitCode(err)
	}
	return domain.ExitOK
}

// newRootCommand applies the settings shared by both binaries.
func newRootCommand(use, short string, run func(cmd *cobra.Command, arg, envFile string) error) *cobra.Command {
	var envFile string
	cmd := &cobra.Command{
		Use:           use,
		Short:         short,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.ExactArgs(1)(cmd, args); err != nil {
				return fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args[0], envFile)
		},
	}
	cmd.Flags().StringVar(&envFile, "env-file", defaultEnvFile, "dotenv file with UMBRELLA_* settings (ignored when missing)")
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	})
	return cmd
}

// loadConfig reads configuration and configures the global logger.
// Configuration problems are operator errors and classify as invalid arguments.
func loadConfig(envFile string) (*config.AppConfig, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("%w: configuration: %v", domain.ErrInvalidArgument, err)
	}
	if err := log.Configure(cfg.Env, cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	return cfg, nil
}

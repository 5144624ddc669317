// Package cli provides the docrag command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docrag/internal/logger"
)

// version is set at build time with -ldflags "-X ...cli.version=...".
var version = "dev"

// skipBootstrap marks commands that run without services.
const skipBootstrap = "skip-bootstrap"

var (
	verbose   bool
	useMemory bool
	configDir string
)

// svc holds the wired services for the running command.
var svc *Services

// newServices builds the services. Tests replace it.
var newServices = Bootstrap

var rootCmd = &cobra.Command{
	Use:   "docrag",
	Short: "Permissioned question answering over your documents",
	Long: `docrag indexes PDF, DOCX, text and Markdown files into a vector index
and answers questions from them. Every answer is grounded in passages the
asking user is allowed to read, given their access level and department.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
		return teardown()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug and info events to stderr")
	rootCmd.PersistentFlags().BoolVar(&useMemory, "memory", false, "use in-memory stores instead of SQLite and Redis")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "configuration directory (default ~/.docrag)")
}

func setup(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)
	if _, ok := cmd.Annotations[skipBootstrap]; ok {
		return nil
	}
	if svc != nil {
		return nil
	}

	s, err := newServices(cmd.Context(), Options{Memory: useMemory, ConfigDir: configDir})
	if err != nil {
		return err
	}
	svc = s
	return nil
}

func teardown() error {
	if svc == nil {
		return nil
	}
	err := svc.Close()
	svc = nil
	return err
}

// Execute runs the root command. Services are closed even when the
// command fails.
func Execute(ctx context.Context) error {
	defer func() {
		if err := teardown(); err != nil {
			logger.Warn("closing services: %v", err)
		}
	}()
	err := rootCmd.ExecuteContext(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// requireServices guards commands against a failed or skipped bootstrap.
func requireServices() error {
	if svc == nil {
		return fmt.Errorf("services not configured")
	}
	return nil
}

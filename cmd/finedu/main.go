// Command finedu is the admin CLI. It works on the same store as the server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/p-n-ai/finedu/internal/platform/config"
	"github.com/p-n-ai/finedu/internal/service"
)

// opener builds the service for one command invocation.
type opener func(ctx context.Context) (*service.Service, error)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := newRootCmd(openFromEnv).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func openFromEnv(ctx context.Context) (*service.Service, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	// Logs go to stderr so command output stays clean.
	logger := service.NewLogger(os.Stderr, cfg.Log)
	return service.New(ctx, cfg, logger)
}

func newRootCmd(open opener) *cobra.Command {
	root := &cobra.Command{
		Use:          "finedu",
		Short:        "Administer the finedu course catalog and points",
		SilenceUsage: true,
	}

	root.AddCommand(
		newReconcileCmd(open),
		newGenerateCmd(open),
		newPointsCmd(open),
		newExportCmd(open),
	)
	return root
}

package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/markdave123-py/ragcrawl/internal/app"
	"github.com/markdave123-py/ragcrawl/internal/config"
	"github.com/markdave123-py/ragcrawl/internal/logging"
)

var (
	cfg *config.Config
	log *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "crawlctl",
	Short:         "Crawl sites and ingest documents into the vector index",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if cmd.Annotations["config"] == "none" {
			return nil
		}
		c, err := config.LoadConfig()
		if err != nil {
			return err
		}
		l, err := logging.New(c.LogDebug)
		if err != nil {
			return err
		}
		cfg, log = c, l
		return nil
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		rootCmd.PrintErrln("Error:", err)
		return 1
	}
	return 0
}

// withApp builds the full application with inline ingestion, so commands return
// after their documents are indexed.
func withApp(cmd *cobra.Command, fn func(a *app.App) error) error {
	a, err := app.NewApp(cmd.Context(), cfg, log, app.Options{InlineIngestion: true})
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

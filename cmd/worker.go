package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/frahmantamala/expense-insights/internal"
	"github.com/frahmantamala/expense-insights/internal/queue"
	"github.com/frahmantamala/expense-insights/pkg/logger"
	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
	Long:  `Start background workers that drain the import queue.`,
}

var importWorkerCmd = &cobra.Command{
	Use:   "imports",
	Short: "Consume import batches from RabbitMQ",
	RunE: func(cmd *cobra.Command, args []string) error {
		return startImportWorker()
	},
}

func startImportWorker() error {
	cfg, err := loadConfig(configDir)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Queue.URL == "" {
		return errors.New("queue.url is not configured")
	}
	lg := logger.LoggerWrapper()

	app, err := newApp(cfg, lg)
	if err != nil {
		return err
	}
	defer app.Close()

	client, err := app.queueClient()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	lg.Info("import worker is running. Press Ctrl+C to stop.", "queue", cfg.Queue.Queue)
	err = client.Consume(ctx, importHandler(app))
	if errors.Is(err, context.Canceled) {
		lg.Info("import worker stopped")
		return nil
	}
	return err
}

// importHandler processes one queued batch. Batches that can never succeed are acked instead of
// requeued.
func importHandler(app *App) queue.Handler {
	return func(ctx context.Context, batchID int64) error {
		err := app.Imports.Handle(ctx, batchID)
		if err == nil {
			return nil
		}
		if errors.Is(err, internal.ErrBatchNotClaimable) ||
			internal.IsType(err, internal.ErrorTypeNotFound) ||
			internal.IsType(err, internal.ErrorTypeImportFailed) {
			return queue.Permanent(err)
		}
		return err
	}
}

func init() {
	workerCmd.AddCommand(importWorkerCmd)
	rootCmd.AddCommand(workerCmd)
}

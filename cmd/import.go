package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/frahmantamala/expense-insights/internal"
	"github.com/frahmantamala/expense-insights/internal/importer"
	"github.com/frahmantamala/expense-insights/pkg/logger"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Operate on import batches from the command line",
}

var processImportCmd = &cobra.Command{
	Use:   "process [batch-id...]",
	Short: "Process pending import batches synchronously",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withImports(cmd.Context(), args, func(ctx context.Context, app *App, id int64) (*importer.ImportBatch, error) {
			return app.Imports.Process(ctx, id)
		})
	},
}

var recoverImportCmd = &cobra.Command{
	Use:   "recover [batch-id...]",
	Short: "Re-run import batches stuck in processing",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		operator := internal.Actor{IsAdmin: true}
		return withImports(cmd.Context(), args, func(ctx context.Context, app *App, id int64) (*importer.ImportBatch, error) {
			return app.Imports.Recover(ctx, operator, id)
		})
	},
}

func withImports(ctx context.Context, args []string, run func(context.Context, *App, int64) (*importer.ImportBatch, error)) error {
	ids := make([]int64, 0, len(args))
	for _, a := range args {
		id, err := strconv.ParseInt(a, 10, 64)
		if err != nil || id <= 0 {
			return fmt.Errorf("invalid batch id %q", a)
		}
		ids = append(ids, id)
	}

	cfg, err := loadConfig(configDir)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	app, err := newApp(cfg, logger.LoggerWrapper())
	if err != nil {
		return err
	}
	defer app.Close()

	failed := 0
	for _, id := range ids {
		b, err := run(ctx, app, id)
		if err != nil {
			failed++
			app.Logger.Error("import batch not processed", "batch_id", id, "error", err)
			continue
		}
		fmt.Printf("batch %d: %s, %d imported, %d rejected\n", b.ID, b.Status, b.ImportedCount, b.RejectedCount)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d batches failed", failed, len(ids))
	}
	return nil
}

func init() {
	importCmd.AddCommand(processImportCmd)
	importCmd.AddCommand(recoverImportCmd)
	rootCmd.AddCommand(importCmd)
}

package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tranvu/ledgersync/internal/core/config"
	"github.com/tranvu/ledgersync/internal/infra/storage/postgres"
)

var resetSourceCmd = &cobra.Command{
	Use:   "reset-source [source_key] [block_height]",
	Short: "Reset a scan source's checkpoint",
	Long: `Reset a scan source's checkpoint. With a block height the checkpoint is
forced to that block; without one it is deleted so the source rescans from its
configured start block. Re-applied events are absorbed by the idempotent writes.`,
	Args: cobra.RangeArgs(1, 2),
	Run:  runResetSource,
}

func init() {
	rootCmd.AddCommand(resetSourceCmd)
}

func runResetSource(cmd *cobra.Command, args []string) {
	sourceKey := args[0]

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	repo := postgres.NewCheckpointRepo(db)

	if len(args) == 1 {
		if err := repo.Delete(ctx, sourceKey); err != nil {
			slog.Error("Failed to delete checkpoint", "error", err)
			os.Exit(1)
		}
		fmt.Printf("Deleted checkpoint for %s; next cycle rescans from its start block\n", sourceKey)
		return
	}

	height, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		fmt.Printf("Invalid block height: %v\n", err)
		os.Exit(1)
	}

	// Direct SQL: the engine's checkpoint writes are monotone on purpose, an
	// operator override must be able to move backwards.
	query := `
		INSERT INTO sync_checkpoints (source_key, block_number, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (source_key)
		DO UPDATE SET block_number = EXCLUDED.block_number, updated_at = NOW()`
	if _, err := db.ExecContext(ctx, query, sourceKey, height); err != nil {
		slog.Error("Failed to reset checkpoint", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Successfully reset checkpoint for %s to block %d\n", sourceKey, height)
}

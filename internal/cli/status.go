package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tranvu/ledgersync/internal/core/checkpoint"
	"github.com/tranvu/ledgersync/internal/core/config"
	"github.com/tranvu/ledgersync/internal/indexing/scanner"
	"github.com/tranvu/ledgersync/internal/infra/rpc"
	"github.com/tranvu/ledgersync/internal/infra/storage/postgres"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the checkpoint position and lag of every scan source",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
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

	checkpoints, err := checkpoint.NewManager(postgres.NewCheckpointRepo(db)).All(ctx)
	if err != nil {
		slog.Error("Failed to read checkpoints", "error", err)
		os.Exit(1)
	}

	// Head is best effort; without it lag is just omitted.
	var head uint64
	client := rpc.NewFailoverClient(cfg.RPC.Failover, postgres.NewNodeRepo(db), cfg.RPC.Endpoint)
	if h, err := scanner.NewFetcher(client).Head(ctx); err != nil {
		slog.Warn("Failed to fetch chain head", "error", err)
	} else {
		head = h
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "SOURCE\tBLOCK\tLAG\tUPDATED")

	for _, cp := range checkpoints {
		lag := "-"
		if head > 0 && head > cp.BlockNumber {
			lag = fmt.Sprintf("%d", head-cp.BlockNumber)
		} else if head > 0 {
			lag = "0"
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%s\t%s\n",
			cp.SourceKey, cp.BlockNumber, lag, cp.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	_ = w.Flush()
}

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tranvu/ledgersync/internal/core/config"
	"github.com/tranvu/ledgersync/internal/infra/storage/postgres"
)

var inspectExchange string

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print a mirrored entity as JSON",
}

var inspectOrderCmd = &cobra.Command{
	Use:   "order [exchange] [order_id]",
	Short: "Print one order",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		withDB(func(ctx context.Context, db *postgres.DB) (any, error) {
			id, err := parseID(args[1])
			if err != nil {
				return nil, err
			}
			return postgres.NewOrderRepo(db).Get(ctx, args[0], id)
		})
	},
}

var inspectAgreementCmd = &cobra.Command{
	Use:   "agreement [exchange] [order_id] [agreement_id]",
	Short: "Print one agreement",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		withDB(func(ctx context.Context, db *postgres.DB) (any, error) {
			orderID, err := parseID(args[1])
			if err != nil {
				return nil, err
			}
			agreementID, err := parseID(args[2])
			if err != nil {
				return nil, err
			}
			return postgres.NewAgreementRepo(db).Get(ctx, args[0], orderID, agreementID)
		})
	},
}

var inspectTransfersCmd = &cobra.Command{
	Use:   "transfers [token]",
	Short: "Print all transfers of a token",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withDB(func(ctx context.Context, db *postgres.DB) (any, error) {
			return postgres.NewTransferRepo(db).ListByToken(ctx, args[0])
		})
	},
}

var inspectApprovalCmd = &cobra.Command{
	Use:   "approval [token] [application_id]",
	Short: "Print one transfer approval (use --exchange for escrow-routed ones)",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		withDB(func(ctx context.Context, db *postgres.DB) (any, error) {
			id, err := parseID(args[1])
			if err != nil {
				return nil, err
			}
			return postgres.NewApprovalRepo(db).Get(ctx, args[0], inspectExchange, id)
		})
	},
}

func init() {
	inspectApprovalCmd.Flags().StringVar(&inspectExchange, "exchange", "",
		"escrow contract address, empty for direct token approvals")
	inspectCmd.AddCommand(inspectOrderCmd, inspectAgreementCmd, inspectTransfersCmd, inspectApprovalCmd)
	rootCmd.AddCommand(inspectCmd)
}

func parseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return id, nil
}

// withDB runs a query against the configured database and prints the result.
func withDB(query func(ctx context.Context, db *postgres.DB) (any, error)) {
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

	result, err := query(ctx, db)
	if err != nil {
		slog.Error("Query failed", "error", err)
		os.Exit(1)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		slog.Error("Failed to encode result", "error", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}

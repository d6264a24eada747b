package main

import (
	"encoding/json"
	"fmt"

	"github.com/DanielPopoola/razorpay-reconciler/internal/config"
	"github.com/DanielPopoola/razorpay-reconciler/internal/infrastructure/persistence/postgres"
	"github.com/DanielPopoola/razorpay-reconciler/internal/interfaces/rest"
	"github.com/DanielPopoola/razorpay-reconciler/internal/logging"
	"github.com/spf13/cobra"
)

func reviewCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "review",
		Short: "List captured payments that need manual reconciliation",
		Long: `List transactions whose charge was captured by the gateway but could not
be applied to the ledger, or whose charge state needs a human decision.

Examples:
  gateway review
  gateway review --limit 20`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			logger := logging.GetLogger(cfg.Logger)

			db, err := postgres.Connect(cmd.Context(), &cfg.Database, logger)
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer db.Close()

			txs, err := postgres.NewLedgerRepository(db).ListNeedsReview(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(txs) == 0 {
				cmd.Println("nothing to review")
				return nil
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rest.ToAPITransactions(txs))
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum transactions to list")
	return cmd
}

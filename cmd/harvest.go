package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	harvestMaxListings int
	harvestCostCeiling float64
	harvestJSON        bool
)

var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Run one harvest pass over the pending listing backlog",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if harvestMaxListings > 0 {
			cfg.Harvest.MaxListings = harvestMaxListings
		}
		if harvestCostCeiling > 0 {
			cfg.Harvest.CostCeiling = harvestCostCeiling
		}

		env, err := initHarvest(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		summary, err := env.orchestrator.Run(ctx)
		if err != nil {
			return err
		}

		if harvestJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		}

		zap.L().Info("harvest summary",
			zap.String("run", summary.RunID),
			zap.Int("processed", summary.Processed),
			zap.Int("successes", summary.Successes),
			zap.Int("flagged", summary.Flagged),
			zap.Int("skipped", summary.Skipped),
			zap.Any("outcomes", summary.Outcomes),
			zap.Any("flags_by_reason", summary.FlagsByReason),
			zap.Float64("total_cost", summary.TotalCost),
		)
		return nil
	},
}

func init() {
	harvestCmd.Flags().IntVar(&harvestMaxListings, "max-listings", 0, "max listings this run (overrides config)")
	harvestCmd.Flags().Float64Var(&harvestCostCeiling, "cost-ceiling", 0, "cost ceiling in USD (overrides config)")
	harvestCmd.Flags().BoolVar(&harvestJSON, "json", false, "print the run summary as JSON")
	rootCmd.AddCommand(harvestCmd)
}

package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/procure-cli/internal/model"
	"github.com/sells-group/procure-cli/internal/pattern"
)

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "Inspect and maintain navigation patterns",
}

var patternsFamily string

var patternsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active patterns for a portal family",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		patterns, err := st.PatternsByFamily(ctx, model.PortalFamily(patternsFamily))
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tRATE\tATTEMPTS\tPROVEN SITES")
		for _, p := range patterns {
			fmt.Fprintf(w, "%s\t%s\t%.2f\t%d\t%d\n",
				p.ID, p.Name, p.SuccessRate, p.TotalAttempts, len(p.ProvenSites))
		}
		return w.Flush()
	},
}

var patternsDeactivateCmd = &cobra.Command{
	Use:   "deactivate <pattern-id>",
	Short: "Exclude a pattern from future selection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := pattern.NewLibrary(st).Deactivate(ctx, args[0]); err != nil {
			return err
		}
		zap.L().Info("pattern deactivated", zap.String("pattern", args[0]))
		return nil
	},
}

func init() {
	patternsListCmd.Flags().StringVar(&patternsFamily, "family", "", "portal family (required)")
	_ = patternsListCmd.MarkFlagRequired("family")

	patternsCmd.AddCommand(patternsListCmd, patternsDeactivateCmd)
	rootCmd.AddCommand(patternsCmd)
}

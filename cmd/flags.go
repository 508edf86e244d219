package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/procure-cli/internal/harvest"
	"github.com/sells-group/procure-cli/internal/model"
)

var flagsCmd = &cobra.Command{
	Use:   "flags",
	Short: "Manage registration flags",
}

var flagsLimit int

var flagsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending registration flags by priority",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		flags, err := st.PendingFlags(ctx, flagsLimit)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSITE\tFAMILY\tREASON\tPRIORITY\tHOURS")
		for _, f := range flags {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%.1f\n",
				f.ID, f.SiteIdentity, f.Family, f.Reason, f.Priority, f.EstimatedHours)
		}
		return w.Flush()
	},
}

var (
	resolveNotes   string
	resolveAbandon bool
)

var flagsResolveCmd = &cobra.Command{
	Use:   "resolve <flag-id>",
	Short: "Mark a registration flag resolved or abandoned",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		outcome := model.FlagResolved
		if resolveAbandon {
			outcome = model.FlagAbandoned
		}

		flag, err := harvest.ResolveFlag(ctx, st, args[0], outcome, resolveNotes)
		if err != nil {
			return err
		}

		zap.L().Info("flag updated",
			zap.String("flag", flag.ID),
			zap.String("site", flag.SiteIdentity),
			zap.String("status", string(flag.Status)),
		)
		return nil
	},
}

func init() {
	flagsListCmd.Flags().IntVar(&flagsLimit, "limit", 0, "max flags to show (0 = all)")
	flagsResolveCmd.Flags().StringVar(&resolveNotes, "notes", "", "resolution notes")
	flagsResolveCmd.Flags().BoolVar(&resolveAbandon, "abandon", false, "mark abandoned instead of resolved")

	flagsCmd.AddCommand(flagsListCmd, flagsResolveCmd)
	rootCmd.AddCommand(flagsCmd)
}

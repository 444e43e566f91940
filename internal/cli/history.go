package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/lazypower/larder/internal/store"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List archived runs, or show one run's ledger",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to list")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	db, err := openArchive(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if len(args) == 1 {
		return showRun(cmd, db, args[0])
	}

	runs, err := db.ListRuns(historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no runs archived")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSOURCE\tSTARTED\tTOOK\tORDERS\tMOVED\tPICKED UP\tDISCARDED\tVERDICT")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.RunID,
			r.Source,
			humanize.Time(time.UnixMilli(r.StartedAt)),
			took(r),
			humanize.Comma(int64(r.Orders)),
			humanize.Comma(int64(r.Tally.Moved)),
			humanize.Comma(int64(r.Tally.PickedUp)),
			humanize.Comma(int64(r.Tally.Discarded)),
			orDash(r.Verdict),
		)
	}
	return tw.Flush()
}

func showRun(cmd *cobra.Command, db *store.DB, runID string) error {
	run, err := db.GetRun(runID)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run not found: %s", runID)
	}
	actions, err := db.RunActions(runID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s (%s", run.RunID, run.Source)
	if run.TestID != "" {
		fmt.Fprintf(out, ", test %s", run.TestID)
	}
	fmt.Fprintf(out, ") started %s, took %s\n", humanize.Time(time.UnixMilli(run.StartedAt)), took(*run))
	if run.Verdict != "" {
		fmt.Fprintf(out, "verdict: %s\n", run.Verdict)
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "OFFSET\tACTION\tORDER\tTARGET")
	for _, a := range actions {
		offset := time.Duration(a.Timestamp-actions[0].Timestamp) * time.Microsecond
		fmt.Fprintf(tw, "+%s\t%s\t%s\t%s\n", offset.Round(time.Millisecond), a.Kind, a.ItemID, a.Target)
	}
	return tw.Flush()
}

func took(r store.Run) string {
	return (time.Duration(r.FinishedAt-r.StartedAt) * time.Millisecond).String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

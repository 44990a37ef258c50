package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gantry-sh/gantry/internal/history"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent pipeline runs from the local ledger",
	Long: `Lists runs recorded in .gantry/history.db. All services are shown
unless --service narrows the listing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := history.Open(historyPath())
		if err != nil {
			return err
		}
		defer store.Close()

		// The persistent --service flag doubles as the filter here.
		filter := ""
		if cmd.Flags().Changed("service") {
			filter = settings.Service
		}

		runs, err := store.List(cmd.Context(), filter, historyLimit)
		if err != nil {
			return err
		}

		if len(runs) == 0 {
			fmt.Println("No runs recorded yet.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "WHEN\tSERVICE\tTAG\tOUTCOME\tSTAGE\tDURATION\tENDPOINT")
		for _, run := range runs {
			stage := run.FailedStage
			if stage == "" {
				stage = "-"
			}
			endpoint := run.Endpoint
			if endpoint == "" {
				endpoint = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				run.CreatedAt.Local().Format("2006-01-02 15:04:05"),
				run.Service, run.Tag, run.Outcome, stage,
				formatDuration(run.DurationMS), endpoint)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of runs to show")
}

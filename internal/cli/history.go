package cli

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect recorded liveness attempts",
}

var historyLimit int

var historyListCmd = &cobra.Command{
	Use:   "list [subject]",
	Short: "List recent attempts, newest first",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		subject := ""
		if len(args) == 1 {
			subject = args[0]
		}

		attempts, err := store.ListAttempts(subject, historyLimit)
		if err != nil {
			return err
		}
		if len(attempts) == 0 {
			fmt.Println("No attempts recorded.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		_, _ = fmt.Fprintln(w, "ID\tSUBJECT\tOUTCOME\tFRAMES\tDURATION\tCREATED")
		_, _ = fmt.Fprintln(w, "--\t-------\t-------\t------\t--------\t-------")
		for _, a := range attempts {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
				a.ID, a.Subject, a.Outcome, a.Frames,
				a.Duration.Round(100*time.Millisecond), a.CreatedAt.Local().Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats [subject]",
	Short: "Count attempts per outcome",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		subject := ""
		if len(args) == 1 {
			subject = args[0]
		}

		counts, err := store.CountOutcomes(subject)
		if err != nil {
			return err
		}

		outcomes := make([]string, 0, len(counts))
		for outcome := range counts {
			outcomes = append(outcomes, outcome)
		}
		sort.Strings(outcomes)
		for _, outcome := range outcomes {
			fmt.Printf("%-14s %d\n", outcome, counts[outcome])
		}
		return nil
	},
}

var pruneAge time.Duration

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old attempts and their captures",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		n, err := store.Prune(time.Now().Add(-pruneAge))
		if err != nil {
			return err
		}
		fmt.Printf("Pruned %d attempts older than %s\n", n, pruneAge)
		return nil
	},
}

func init() {
	historyListCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of attempts to show")
	historyPruneCmd.Flags().DurationVar(&pruneAge, "older-than", 30*24*time.Hour, "Age of attempts to delete")

	historyCmd.AddCommand(historyListCmd, historyStatsCmd, historyPruneCmd)
	rootCmd.AddCommand(historyCmd)
}

// Package intervals implements the intervals command.
package intervals

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/WullT/P8-Tools/internal/flowering"
	"github.com/WullT/P8-Tools/internal/runtime"
)

// Command creates the intervals command
func Command(rt *runtime.Context) *cobra.Command {
	var csvOut bool

	cmd := &cobra.Command{
		Use:   "intervals <node>",
		Short: "Detect the flowering intervals of a node",
		Long: "Smooth the node's classified images with a centered moving minimum and " +
			"report the intervals in which the flower is present.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := rt.Store()
			if err != nil {
				return err
			}
			analyzer, err := rt.Analyzer(store)
			if err != nil {
				return err
			}
			intervals, err := analyzer.NodeIntervals(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if csvOut {
				return flowering.WriteCSV(w, intervals)
			}
			if len(intervals) == 0 {
				fmt.Fprintf(w, "no flowering intervals for %s\n", args[0])
				return nil
			}
			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "START\tEND\tDURATION")
			for _, iv := range intervals {
				fmt.Fprintf(tw, "%s\t%s\t%s\n",
					iv.Start.UTC().Format(time.DateTime), iv.End.UTC().Format(time.DateTime),
					flowering.FormatDuration(iv.Duration))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&csvOut, "csv", false, "Write start,end,duration CSV")
	return cmd
}

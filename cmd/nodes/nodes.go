// Package nodes implements the nodes command.
package nodes

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/WullT/P8-Tools/internal/runtime"
)

// Command creates the nodes command
func Command(rt *runtime.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "nodes",
		Short: "Show per-node classification counts of available images",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := rt.Store()
			if err != nil {
				return err
			}
			aggregates, err := store.AggregateByNode(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintln(tw, "NODE\tIMAGES\tCLASSIFIED\tPRESENT\tUNCERTAIN\tABSENT\t")
			for _, a := range aggregates {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t\n",
					a.NodeID, a.Images, a.Classified, a.Present, a.Uncertain, a.Absent)
			}
			return tw.Flush()
		},
	}
}

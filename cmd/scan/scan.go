// Package scan implements the scan command.
package scan

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/WullT/P8-Tools/internal/conf"
	"github.com/WullT/P8-Tools/internal/runtime"
)

// Command creates the scan command
func Command(rt *runtime.Context) *cobra.Command {
	var base string

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Rescan the image directory and update availability",
		Long: "Walk the image base directory, insert records for new captures and mark " +
			"every record available or unavailable according to what is on disk.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := rt.Store()
			if err != nil {
				return err
			}
			if base == "" {
				base = rt.Settings.Main.BasePath
			}

			report, err := rt.Scanner(store).Scan(cmd.Context(), conf.GetBasePath(base))
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if report.Skipped {
				fmt.Fprintf(w, "no files found below %s, availability unchanged\n", base)
				return nil
			}
			fmt.Fprintf(w, "matched %d files: %d new, %d available, %d unavailable (%s)\n",
				report.Matched, report.Store.Inserted, report.Store.Available,
				report.Store.Unavailable, report.Elapsed.Round(time.Millisecond))
			for _, f := range report.ParseErrors {
				fmt.Fprintf(w, "skipped %s: %s\n", f.Path, f.Reason)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&base, "base", "b", "", "Image base directory, defaults to main.basepath")
	return cmd
}

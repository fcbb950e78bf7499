// Package export implements the export command.
package export

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/WullT/P8-Tools/internal/runtime"
)

// Command creates the export command
func Command(rt *runtime.Context) *cobra.Command {
	var (
		labelDir, imageDir string
		noCopy             bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write YOLO label files for every annotated image",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if labelDir != "" {
				rt.Settings.Annotation.LabelDir = labelDir
			}
			if imageDir != "" {
				rt.Settings.Annotation.ImageDir = imageDir
			}
			if noCopy {
				rt.Settings.Annotation.CopyImages = false
			}

			store, err := rt.Store()
			if err != nil {
				return err
			}
			exporter, err := rt.Exporter(store)
			if err != nil {
				return err
			}
			report, err := exporter.Run(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(),
				"%d candidates, %d already exported, %d unavailable: %d labeled (%d lines), %d copied, %d failed (%s)\n",
				report.Candidates, report.Existing, report.Unavailable, report.Labeled,
				report.LabelLines, report.Copied, report.Failed, report.Elapsed.Round(time.Millisecond))
			if report.Failed > 0 {
				return fmt.Errorf("%d images failed to export", report.Failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&labelDir, "labels", "", "Label output directory, overrides annotation.labeldir")
	cmd.Flags().StringVar(&imageDir, "images", "", "Image copy directory, overrides annotation.imagedir")
	cmd.Flags().BoolVar(&noCopy, "no-copy", false, "Write labels only")
	return cmd
}

// Package label implements the commands that write labels: classify,
// favorite and annotate.
package label

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/WullT/P8-Tools/internal/annotation"
	"github.com/WullT/P8-Tools/internal/datastore"
	"github.com/WullT/P8-Tools/internal/errors"
	"github.com/WullT/P8-Tools/internal/runtime"
)

// ClassifyCommand creates the classify command
func ClassifyCommand(rt *runtime.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <filename> <present|uncertain|absent|none>",
		Short: "Set the flower classification of an image",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			flower, err := datastore.ParseClassification(args[1])
			if err != nil {
				return err
			}
			store, err := rt.Store()
			if err != nil {
				return err
			}
			if err := store.SetClassification(cmd.Context(), args[0], flower); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], flower)
			return nil
		},
	}
}

// FavoriteCommand creates the favorite command
func FavoriteCommand(rt *runtime.Context) *cobra.Command {
	var unset bool

	cmd := &cobra.Command{
		Use:   "favorite <filename>",
		Short: "Mark an image as favorite",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := rt.Store()
			if err != nil {
				return err
			}
			if err := store.SetFavorite(cmd.Context(), args[0], !unset); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: favorite=%t\n", args[0], !unset)
			return nil
		},
	}

	cmd.Flags().BoolVar(&unset, "unset", false, "Clear the favorite flag")
	return cmd
}

// ParseShape reads a box given as x0,y0,x1,y1 in pixels
func ParseShape(v string) (annotation.Shape, error) {
	parts := strings.Split(v, ",")
	if len(parts) != 4 {
		return annotation.Shape{}, shapeError(v)
	}
	var coords [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return annotation.Shape{}, shapeError(v)
		}
		coords[i] = f
	}
	return annotation.Shape{X0: coords[0], Y0: coords[1], X1: coords[2], Y1: coords[3]}, nil
}

func shapeError(v string) error {
	return errors.Newf("box must be x0,y0,x1,y1, got %q", v).
		Component("cli").
		Category(errors.CategoryValidation).
		Build()
}

// AnnotateCommand creates the annotate command. Given boxes replace all boxes
// of the type on the image; no boxes clears them.
func AnnotateCommand(rt *runtime.Context) *cobra.Command {
	var (
		typeName      string
		width, height int
		boxes         []string
	)

	cmd := &cobra.Command{
		Use:   "annotate <filename>",
		Short: "Replace the bounding boxes of one annotation type on an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filename := args[0]
			annotType, err := datastore.ParseAnnotationType(typeName)
			if err != nil {
				return err
			}
			shapes := make([]annotation.Shape, 0, len(boxes))
			for _, b := range boxes {
				s, err := ParseShape(b)
				if err != nil {
					return err
				}
				shapes = append(shapes, s)
			}

			records, err := annotation.ToRecords(filename, annotType, annotation.FromShapes(shapes), width, height)
			if err != nil {
				return err
			}

			store, err := rt.Store()
			if err != nil {
				return err
			}
			if _, err := store.GetImage(cmd.Context(), filename); err != nil {
				return err
			}
			if err := store.ReplaceAnnotations(cmd.Context(), filename, annotType, records); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d %s boxes\n", filename, len(records), annotType)
			return nil
		},
	}

	cmd.Flags().StringVarP(&typeName, "type", "t", "", "Annotation type: daisy, wildcarrot, cornflower or 2-4")
	cmd.Flags().IntVar(&width, "width", 0, "Image width in pixels, needed with --box")
	cmd.Flags().IntVar(&height, "height", 0, "Image height in pixels, needed with --box")
	cmd.Flags().StringArrayVarP(&boxes, "box", "b", nil, "Box as x0,y0,x1,y1; repeat for more boxes")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

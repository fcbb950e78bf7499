// Package query implements the select command.
package query

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/WullT/P8-Tools/internal/datastore"
	"github.com/WullT/P8-Tools/internal/errors"
	"github.com/WullT/P8-Tools/internal/runtime"
	"github.com/WullT/P8-Tools/internal/selection"
)

// Output formats
const (
	FormatTable = "table"
	FormatPaths = "paths"
	FormatJSON  = "json"
)

type options struct {
	node      string
	startHour int
	endHour   int
	from, to  string
	status    string
	daylight  bool
	date      string
	format    string
}

// Command creates the select command
func Command(rt *runtime.Context) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "select",
		Short: "List the available images matching a selection",
		Long: "List available images ordered by node and capture time. Hour bounds are " +
			"inclusive; bounds equal to the configured defaults select all hours.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := buildQuery(cmd, rt, &opts)
			if err != nil {
				return err
			}
			store, err := rt.Store()
			if err != nil {
				return err
			}
			res, err := rt.Engine(store).Select(cmd.Context(), q)
			if err != nil {
				return err
			}
			return Render(cmd.OutOrStdout(), opts.format, res)
		},
	}

	setupFlags(cmd, &opts)
	return cmd
}

func setupFlags(cmd *cobra.Command, opts *options) {
	cmd.Flags().StringVarP(&opts.node, "node", "n", "", "Node ID, empty selects all nodes")
	cmd.Flags().IntVar(&opts.startHour, "start-hour", -1, "First hour of day, inclusive")
	cmd.Flags().IntVar(&opts.endHour, "end-hour", -1, "Last hour of day, inclusive")
	cmd.Flags().StringVar(&opts.from, "from", "", "First capture day, YYYY-MM-DD")
	cmd.Flags().StringVar(&opts.to, "to", "", "Capture day to stop before, YYYY-MM-DD")
	cmd.Flags().StringVarP(&opts.status, "status", "s", "all", "all, unclassified, classified, uncertain or favorite")
	cmd.Flags().BoolVar(&opts.daylight, "daylight", false, "Use the node's civil dawn and dusk as hour bounds")
	cmd.Flags().StringVar(&opts.date, "date", "", "Day for --daylight, defaults to --from or today")
	cmd.Flags().StringVarP(&opts.format, "format", "f", FormatTable, "Output format: table, paths, json")
}

func parseDay(flag, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, v, time.UTC)
	if err != nil {
		return time.Time{}, errors.Newf("--%s must be YYYY-MM-DD, got %q", flag, v).
			Component("cli").
			Category(errors.CategoryValidation).
			Build()
	}
	return t, nil
}

func buildQuery(cmd *cobra.Command, rt *runtime.Context, opts *options) (selection.Query, error) {
	var (
		q   selection.Query
		err error
	)
	q.NodeID = opts.node
	if cmd.Flags().Changed("start-hour") {
		q.StartHour = selection.Hour(opts.startHour)
	}
	if cmd.Flags().Changed("end-hour") {
		q.EndHour = selection.Hour(opts.endHour)
	}
	if q.From, err = parseDay("from", opts.from); err != nil {
		return q, err
	}
	if q.To, err = parseDay("to", opts.to); err != nil {
		return q, err
	}
	if q.Status, err = selection.ParseStatus(opts.status); err != nil {
		return q, err
	}

	if opts.daylight {
		if q.NodeID == "" {
			return q, errors.Newf("--daylight needs --node").
				Component("cli").
				Category(errors.CategoryValidation).
				Build()
		}
		day := q.From
		if opts.date != "" {
			if day, err = parseDay("date", opts.date); err != nil {
				return q, err
			}
		}
		if day.IsZero() {
			day = time.Now().UTC()
		}
		start, end, err := rt.DaylightHours(q.NodeID, day)
		if err != nil {
			return q, err
		}
		q.StartHour, q.EndHour = selection.Hour(start), selection.Hour(end)
		q.ExplicitHours = true
	}
	return q, nil
}

type imageJSON struct {
	Filename string                   `json:"filename"`
	Path     string                   `json:"path"`
	NodeID   string                   `json:"node_id"`
	Date     time.Time                `json:"date"`
	Flower   datastore.Classification `json:"flower"`
	Favorite bool                     `json:"favorite"`
}

// Render writes a selection result in the given format
func Render(w io.Writer, format string, res selection.Result) error {
	switch format {
	case FormatPaths:
		for i := range res.Images {
			if _, err := fmt.Fprintln(w, res.Images[i].Path); err != nil {
				return err
			}
		}
		return nil
	case FormatJSON:
		out := make([]imageJSON, len(res.Images))
		for i := range res.Images {
			rec := &res.Images[i]
			out[i] = imageJSON{
				Filename: rec.Filename,
				Path:     rec.Path,
				NodeID:   rec.NodeID,
				Date:     rec.Date.UTC(),
				Flower:   rec.Flower,
				Favorite: rec.IsFavorite(),
			}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case FormatTable, "":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "FILENAME\tNODE\tDATE\tFLOWER\tFAVORITE")
		for i := range res.Images {
			rec := &res.Images[i]
			fav := ""
			if rec.IsFavorite() {
				fav = "*"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				rec.Filename, rec.NodeID, rec.Date.UTC().Format(time.DateTime), rec.Flower, fav)
		}
		fmt.Fprintf(tw, "\n%d images\n", res.Len())
		return tw.Flush()
	default:
		return errors.Newf("unknown output format %q", format).
			Component("cli").
			Category(errors.CategoryValidation).
			Build()
	}
}

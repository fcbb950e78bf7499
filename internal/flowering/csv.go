package flowering

import (
	"encoding/csv"
	"io"
	"time"
)

// CSVHeader is the header row written by WriteCSV
var CSVHeader = []string{"start", "end", "duration"}

// WriteCSV writes intervals as start,end,duration rows. Times are RFC 3339 in UTC.
func WriteCSV(w io.Writer, intervals []Interval) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, iv := range intervals {
		row := []string{
			iv.Start.UTC().Format(time.RFC3339),
			iv.End.UTC().Format(time.RFC3339),
			FormatDuration(iv.Duration),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

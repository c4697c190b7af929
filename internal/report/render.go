package report

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dennisdiepolder/monti/acw/internal/types"
)

// WriteTable renders the service averages as an aligned table
func WriteTable(w io.Writer, rep *types.Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SERVICE\tAVG_ACW_SECONDS")
	fmt.Fprintln(tw, "-------\t---------------")
	for _, s := range rep.Services {
		fmt.Fprintf(tw, "%s\t%d\n", s.Service, s.AverageSeconds)
	}
	return tw.Flush()
}

// WriteJSON writes the service -> average mapping as a JSON object
func WriteJSON(w io.Writer, rep *types.Report) error {
	averages := rep.Averages
	if averages == nil {
		averages = map[string]int64{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(averages)
}

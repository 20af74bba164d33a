package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/eshaffer321/shopify-compta/internal/application/export"
)

// PrintHeader prints the application header
func PrintHeader(w io.Writer, store string, window export.Window) {
	fmt.Fprintf(w, "compta-export: %s\n", store)
	fmt.Fprintf(w, "Window: %s -> %s | Filter: %s\n\n", window.StartLabel(), window.EndLabel(), window.DateField)
}

// PrintSummary prints the export result summary
func PrintSummary(w io.Writer, result *export.Result) {
	fmt.Fprintln(w, strings.Repeat("-", 60))
	fmt.Fprintf(w, "Summary: Orders=%d Pages=%d Fetched=%d Exported=%d\n",
		result.OrderCount,
		result.PagesPlanned,
		result.OrdersFetched,
		result.RowsExported)
	fmt.Fprintf(w, "Dropped: Pages=%d Malformed=%d Unnamed=%d Duplicates=%d\n",
		len(result.PageFailures),
		result.OrdersMalformed,
		result.Unnamed,
		result.Duplicates)
	fmt.Fprintf(w, "Flagged: Diagnostics=%d Unreconciled=%d\n",
		result.Diagnostics,
		result.Unreconciled)

	if len(result.Errors) > 0 {
		fmt.Fprintln(w, "\nErrors:")
		for _, err := range result.Errors {
			fmt.Fprintf(w, "  - %v\n", err)
		}
	}

	if result.RunID > 0 {
		fmt.Fprintf(w, "\nRun: #%d\n", result.RunID)
	}
	fmt.Fprintf(w, "\nWrote %s (%d columns) in %s\n",
		result.OutputPath, len(result.Columns), result.Duration.Round(1e6))
}

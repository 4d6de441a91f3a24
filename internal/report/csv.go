package report

import (
	"encoding/csv"
	"fmt"
	"io"
)

const timestampLayout = "2006-01-02 15:04:05"

// WriteCSV streams the raw log for the report's date as Name,Action,Timestamp
// rows in timestamp order.
func WriteCSV(w io.Writer, r *Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Name", "Action", "Timestamp"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range r.Rows() {
		record := []string{DisplayName(row), string(row.Action), row.Timestamp.Format(timestampLayout)}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

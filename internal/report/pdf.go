package report

import (
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"
)

const timeOfDay = "15:04:05"

// WritePDF renders the human-readable report: a title, the sorted attendee
// list, and a per-user detailed log with derived sessions and breaks.
func WritePDF(w io.Writer, r *Report) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, "Attendance Report for "+r.Date, "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, "Attendees", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 12)
	for day := range r.Users() {
		pdf.CellFormat(0, 6, "- "+day.Name, "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, "Detailed Log", "", 1, "L", false, 0, "")
	for day := range r.Users() {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(0, 7, day.Name, "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)

		for _, s := range day.Sessions {
			line(pdf, fmt.Sprintf("Checked In: %s  -  Checked Out: %s", s.Start.Format(timeOfDay), s.End.Format(timeOfDay)))
		}
		for _, b := range day.Breaks {
			line(pdf, fmt.Sprintf("Break: %s  -  %s", b.Start.Format(timeOfDay), b.End.Format(timeOfDay)))
		}
		if day.OpenCheckIn != nil {
			line(pdf, "Still checked in since "+day.OpenCheckIn.Format(timeOfDay))
		}
		if day.OpenBreak != nil {
			line(pdf, "Still on break since "+day.OpenBreak.Format(timeOfDay))
		}
		for _, o := range day.Orphans {
			line(pdf, fmt.Sprintf("Unmatched %s at %s", o.Action, o.At.Format(timeOfDay)))
		}
		pdf.Ln(3)
	}

	return pdf.Output(w)
}

func line(pdf *fpdf.Fpdf, text string) {
	pdf.CellFormat(0, 5, "  - "+text, "", 1, "L", false, 0, "")
}

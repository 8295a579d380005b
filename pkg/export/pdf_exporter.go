package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

const landscapeBodyWidth = 277.0

// PDFExporter renders datasets into landscape tables, one page per group.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a PDF document. Each group gets its own page headed by the
// group label (or the dataset title when ungrouped).
func (e *PDFExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 12, 10)
	pdf.SetTitle(data.Title, true)

	colWidth := landscapeBodyWidth / float64(len(data.Headers))
	order, grouped := data.Groups()
	for _, group := range order {
		pdf.AddPage()
		heading := data.Title
		if data.GroupBy != "" {
			heading = strings.TrimSpace(data.Title + " " + group)
		}
		if heading != "" {
			pdf.SetFont("Arial", "B", 13)
			pdf.CellFormat(0, 9, strings.ToUpper(heading), "", 1, "C", false, 0, "")
			pdf.Ln(3)
		}

		pdf.SetFont("Arial", "B", 9)
		for _, header := range data.Headers {
			pdf.CellFormat(colWidth, 7, header, "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)

		pdf.SetFont("Arial", "", 8)
		for _, row := range grouped[group] {
			for _, value := range record(data.Headers, row) {
				pdf.CellFormat(colWidth, 6, value, "1", 0, "", false, 0, "")
			}
			pdf.Ln(-1)
		}
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

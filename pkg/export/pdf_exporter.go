package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

const (
	pdfPageWidth   = 277.0
	pdfLineHeight  = 4.5
	pdfLeadColumn  = 28.0
	pdfMinRowLines = 2
)

// PDFExporter renders datasets into a landscape grid where cells may wrap.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a PDF document with an optional title. The first header is the row label
// column; cell values may contain newlines and are wrapped to the column width.
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 12, 10)
	pdf.AddPage()

	if title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, strings.ToUpper(title), "", 1, "C", false, 0, "")
		pdf.Ln(3)
	}

	widths := columnWidths(len(data.Headers))
	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	for i, header := range data.Headers {
		pdf.CellFormat(widths[i], 8, header, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 7)
	for _, row := range data.Rows {
		cells := make([][]string, len(data.Headers))
		lines := pdfMinRowLines
		for i, header := range data.Headers {
			var wrapped []string
			for _, part := range strings.Split(row[header], "\n") {
				for _, chunk := range pdf.SplitLines([]byte(part), widths[i]-2) {
					wrapped = append(wrapped, string(chunk))
				}
			}
			cells[i] = wrapped
			if len(wrapped) > lines {
				lines = len(wrapped)
			}
		}
		height := float64(lines) * pdfLineHeight
		if _, y := pdf.GetXY(); y+height > 190 {
			pdf.AddPage()
		}
		x, y := pdf.GetXY()
		for i := range data.Headers {
			pdf.Rect(x, y, widths[i], height, "D")
			pdf.SetXY(x+1, y+0.5)
			pdf.MultiCell(widths[i]-2, pdfLineHeight, strings.Join(cells[i], "\n"), "", "C", false)
			x += widths[i]
		}
		pdf.SetXY(10, y+height)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func columnWidths(n int) []float64 {
	widths := make([]float64, n)
	if n == 1 {
		widths[0] = pdfPageWidth
		return widths
	}
	widths[0] = pdfLeadColumn
	rest := (pdfPageWidth - pdfLeadColumn) / float64(n-1)
	for i := 1; i < n; i++ {
		widths[i] = rest
	}
	return widths
}

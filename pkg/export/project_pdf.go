package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// ProjectDocument holds the data rendered into a project summary PDF.
type ProjectDocument struct {
	Titulo        string
	Estudiante    string
	Tutor         string
	Estado        string
	Version       int
	FechaCreacion time.Time
	Secciones     []Section
	Observaciones []ObservationLine
}

// Section is a titled block of free text.
type Section struct {
	Titulo    string
	Contenido string
}

// ObservationLine is one review note in the trailing history table.
type ObservationLine struct {
	Autor  string
	Estado string
	Texto  string
	Fecha  time.Time
}

// ProjectPDFExporter renders a project into a printable summary document.
type ProjectPDFExporter struct{}

// NewProjectPDFExporter constructs the exporter.
func NewProjectPDFExporter() *ProjectPDFExporter {
	return &ProjectPDFExporter{}
}

// Render produces the PDF bytes for the given document.
func (e *ProjectPDFExporter) Render(doc ProjectDocument) ([]byte, error) {
	if doc.Titulo == "" {
		return nil, fmt.Errorf("pdf requires a project title")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Arial", "B", 16)
	pdf.MultiCell(0, 8, tr(strings.ToUpper(doc.Titulo)), "", "C", false)
	pdf.Ln(4)

	pdf.SetFont("Arial", "", 10)
	meta := []string{
		fmt.Sprintf("Estudiante: %s", doc.Estudiante),
		fmt.Sprintf("Tutor: %s", emptyDash(doc.Tutor)),
		fmt.Sprintf("Estado: %s", doc.Estado),
		fmt.Sprintf("Versión: %d", doc.Version),
		fmt.Sprintf("Fecha de creación: %s", doc.FechaCreacion.Format("2006-01-02")),
	}
	for _, line := range meta {
		pdf.CellFormat(0, 6, tr(line), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	for _, section := range doc.Secciones {
		if strings.TrimSpace(section.Contenido) == "" {
			continue
		}
		pdf.SetFont("Arial", "B", 12)
		pdf.CellFormat(0, 8, tr(section.Titulo), "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.MultiCell(0, 5, tr(section.Contenido), "", "J", false)
		pdf.Ln(3)
	}

	if len(doc.Observaciones) > 0 {
		pdf.SetFont("Arial", "B", 12)
		pdf.CellFormat(0, 8, tr("Historial de observaciones"), "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 9)
		for _, obs := range doc.Observaciones {
			header := fmt.Sprintf("%s - %s (%s)", obs.Fecha.Format("2006-01-02 15:04"), obs.Autor, obs.Estado)
			pdf.SetFont("Arial", "I", 9)
			pdf.CellFormat(0, 5, tr(header), "", 1, "L", false, 0, "")
			pdf.SetFont("Arial", "", 9)
			pdf.MultiCell(0, 5, tr(obs.Texto), "", "L", false)
			pdf.Ln(2)
		}
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func emptyDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

const (
	fallbackRecipient = "Student"
	fallbackEvent     = "Event"
	fallbackOrganizer = "Society"
)

// CertificateContent carries the fields printed on a participation certificate.
type CertificateContent struct {
	Recipient string
	EventName string
	EventDate string
	Organizer string
}

func (c CertificateContent) normalized() CertificateContent {
	out := CertificateContent{
		Recipient: strings.TrimSpace(c.Recipient),
		EventName: strings.TrimSpace(c.EventName),
		EventDate: strings.TrimSpace(c.EventDate),
		Organizer: strings.TrimSpace(c.Organizer),
	}
	if out.Recipient == "" {
		out.Recipient = fallbackRecipient
	}
	if out.EventName == "" {
		out.EventName = fallbackEvent
	}
	if out.Organizer == "" {
		out.Organizer = fallbackOrganizer
	}
	return out
}

// CertificateRenderer draws single page landscape certificates.
type CertificateRenderer struct{}

func NewCertificateRenderer() *CertificateRenderer {
	return &CertificateRenderer{}
}

// Render returns the certificate as PDF bytes.
func (r *CertificateRenderer) Render(content CertificateContent) ([]byte, error) {
	c := content.normalized()

	pdf := gofpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	width, height := pdf.GetPageSize()
	pdf.SetLineWidth(1.5)
	pdf.SetDrawColor(40, 60, 120)
	pdf.Rect(10, 10, width-20, height-20, "D")
	pdf.SetLineWidth(0.4)
	pdf.Rect(14, 14, width-28, height-28, "D")

	pdf.SetY(40)
	pdf.SetFont("Times", "B", 32)
	pdf.SetTextColor(40, 60, 120)
	pdf.CellFormat(0, 14, "Certificate of Participation", "", 1, "C", false, 0, "")

	pdf.Ln(8)
	pdf.SetFont("Times", "", 16)
	pdf.SetTextColor(60, 60, 60)
	pdf.CellFormat(0, 10, "This certifies that", "", 1, "C", false, 0, "")

	pdf.SetFont("Times", "B", 28)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 16, tr(c.Recipient), "", 1, "C", false, 0, "")

	pdf.SetFont("Times", "", 16)
	pdf.SetTextColor(60, 60, 60)
	pdf.CellFormat(0, 10, "has attended", "", 1, "C", false, 0, "")

	pdf.SetFont("Times", "B", 22)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 14, tr(c.EventName), "", 1, "C", false, 0, "")

	if c.EventDate != "" {
		pdf.SetFont("Times", "", 14)
		pdf.SetTextColor(60, 60, 60)
		pdf.CellFormat(0, 9, tr("held on "+c.EventDate), "", 1, "C", false, 0, "")
	}

	pdf.SetY(height - 45)
	pdf.SetFont("Times", "I", 14)
	pdf.CellFormat(0, 8, tr("Organized by "+c.Organizer), "", 1, "C", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render certificate: %w", err)
	}
	return buf.Bytes(), nil
}

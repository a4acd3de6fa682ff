package report

import (
	"bytes"
	"fmt"

	"github.com/signintech/gopdf"

	"github.com/ruralhealth/clinic-assistant/internal/store"
)

// Service renders persisted assessments as PDF documents for printing and
// referral handoff.
type Service struct {
	fontPaths []string
}

// NewService creates a report service. Additional font paths may be supplied;
// the common DejaVu locations are always tried.
func NewService(extraFontPaths ...string) *Service {
	paths := append([]string{}, extraFontPaths...)
	paths = append(paths,
		"/usr/share/fonts/ttf-dejavu/DejaVuSans.ttf",
		"/usr/share/fonts/dejavu/DejaVuSans.ttf",
		"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
	)
	return &Service{fontPaths: paths}
}

// Render produces the PDF for one assessment record.
func (s *Service) Render(patient store.Patient, a store.Assessment) ([]byte, error) {
	pdf := gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()

	fontLoaded := false
	var fontErr error
	for _, path := range s.fontPaths {
		if err := pdf.AddTTFFont("body", path); err == nil {
			fontLoaded = true
			break
		} else {
			fontErr = err
		}
	}
	if !fontLoaded {
		return nil, fmt.Errorf("failed to load report font: %w", fontErr)
	}

	if err := pdf.SetFont("body", "", 20); err != nil {
		return nil, err
	}
	pdf.Cell(nil, "Patient Assessment Report")
	pdf.Br(30)

	if err := pdf.SetFont("body", "", 12); err != nil {
		return nil, err
	}
	pdf.Cell(nil, fmt.Sprintf("Date: %s", a.Date.Format("02 Jan 2006 15:04")))
	pdf.Br(15)
	pdf.Cell(nil, fmt.Sprintf("Patient: %s (%d, %s)", patient.Name, patient.Age, patient.Gender))
	pdf.Br(15)
	pdf.Cell(nil, fmt.Sprintf("Assessment ID: %s", a.ID))
	pdf.Br(25)

	sections := []struct {
		title string
		items []string
	}{
		{"Symptoms / Key Findings", a.Symptoms},
		{"Possible Causes", a.PossibleCauses},
		{"Suggested Tests", a.SuggestedTests},
		{"Treatment Suggestions", a.TreatmentSuggestions},
	}
	for _, sec := range sections {
		if err := pdf.SetFont("body", "", 14); err != nil {
			return nil, err
		}
		pdf.Cell(nil, sec.title)
		pdf.Br(18)
		if err := pdf.SetFont("body", "", 11); err != nil {
			return nil, err
		}
		if len(sec.items) == 0 {
			pdf.Cell(nil, "- none recorded")
			pdf.Br(14)
		}
		for _, item := range sec.items {
			pdf.Cell(nil, "- "+item)
			pdf.Br(14)
		}
		pdf.Br(8)
	}

	if a.Notes != "" {
		if err := pdf.SetFont("body", "", 14); err != nil {
			return nil, err
		}
		pdf.Cell(nil, "Notes")
		pdf.Br(18)
		if err := pdf.SetFont("body", "", 11); err != nil {
			return nil, err
		}
		pdf.Cell(nil, a.Notes)
		pdf.Br(14)
	}

	var buf bytes.Buffer
	if _, err := pdf.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

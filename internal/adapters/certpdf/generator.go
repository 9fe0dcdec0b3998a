// Package certpdf renders certificate PDFs from a template image and the
// participant name placed at configured coordinates.
package certpdf

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/google/uuid"

	"certflow/internal/domain"
)

// A4 landscape in points.
const (
	pageWidth  = 841.89
	pageHeight = 595.28
)

type generator struct {
	outputDir string
	urlPrefix string
}

// NewGenerator returns a CertificateGenerator writing PDFs under outputDir.
// urlPrefix is prepended to the file name to form the certificate URL
// recorded in the audit trail.
func NewGenerator(outputDir, urlPrefix string) domain.CertificateGenerator {
	return &generator{outputDir: outputDir, urlPrefix: urlPrefix}
}

func (g *generator) Generate(participant *domain.Participant, event *domain.Event, template *domain.CertificateTemplate) (string, string, error) {
	if participant == nil || event == nil || template == nil {
		return "", "", domain.ErrInvalidInput
	}
	if err := os.MkdirAll(g.outputDir, 0o755); err != nil {
		return "", "", fmt.Errorf("create output dir: %w", err)
	}

	fileName := fmt.Sprintf("certificate_%s_%s.pdf", sanitizeName(participant.Name), uuid.NewString())
	outPath := filepath.Join(g.outputDir, fileName)

	pdf := fpdf.New("L", "pt", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	if template.TemplateImage != "" {
		opts := fpdf.ImageOptions{ImageType: imageType(template.TemplateImage), ReadDpi: true}
		pdf.ImageOptions(template.TemplateImage, 0, 0, pageWidth, pageHeight, false, opts, 0, "")
	}

	fontFamily := template.Placement.FontFamily
	if fontFamily == "" {
		fontFamily = "Helvetica"
	}
	fontSize := template.Placement.FontSize
	if fontSize <= 0 {
		fontSize = 50
	}
	red, green, blue := parseHexColor(template.Placement.Color)

	pdf.SetFont(fontFamily, "B", fontSize)
	pdf.SetTextColor(red, green, blue)

	// Placement coordinates mark the center of the name.
	nameWidth := pdf.GetStringWidth(participant.Name)
	x := template.Placement.X - nameWidth/2
	pdf.Text(x, template.Placement.Y, participant.Name)

	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return "", "", fmt.Errorf("write certificate pdf: %w", err)
	}

	return outPath, g.urlPrefix + "/" + fileName, nil
}

func sanitizeName(name string) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == ' ':
			return '_'
		default:
			return -1
		}
	}, name)
	if clean == "" {
		clean = "participant"
	}
	return clean
}

func imageType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "JPG"
	default:
		return "PNG"
	}
}

// parseHexColor parses "#rrggbb" into its components, defaulting to black.
func parseHexColor(s string) (r, g, b int) {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return 0, 0, 0
	}
	parse := func(hex string) int {
		v, err := strconv.ParseInt(hex, 16, 32)
		if err != nil {
			return 0
		}
		return int(v)
	}
	return parse(s[0:2]), parse(s[2:4]), parse(s[4:6])
}

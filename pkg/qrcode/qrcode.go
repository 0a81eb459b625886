// Package qrcode renders attendance tokens as QR images and printable sheets.
package qrcode

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	goqrcode "github.com/skip2/go-qrcode"
)

const (
	defaultSize = 320
	maxSize     = 1024
)

// Sheet describes the printable page shown next to the studio entrance.
type Sheet struct {
	Title      string
	Subtitle   string
	Token      string
	ValidFrom  time.Time
	ValidUntil time.Time
	Location   *time.Location
}

// Renderer encodes tokens verbatim, without extra framing.
type Renderer struct {
	level goqrcode.RecoveryLevel
}

// NewRenderer constructs a Renderer using medium error correction.
func NewRenderer() *Renderer {
	return &Renderer{level: goqrcode.Medium}
}

// PNG encodes the token into a square PNG of the given pixel size.
func (r *Renderer) PNG(token string, size int) ([]byte, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("qr token is empty")
	}
	if size <= 0 {
		size = defaultSize
	}
	if size > maxSize {
		size = maxSize
	}
	png, err := goqrcode.Encode(token, r.level, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}

// PDF renders an A4 sheet with the title, validity window and the QR code.
func (r *Renderer) PDF(sheet Sheet) ([]byte, error) {
	png, err := r.PNG(sheet.Token, 600)
	if err != nil {
		return nil, err
	}
	loc := sheet.Location
	if loc == nil {
		loc = time.UTC
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 20, 15)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 20)
	pdf.CellFormat(0, 12, pdf.UnicodeTranslatorFromDescriptor("")(sheet.Title), "", 1, "C", false, 0, "")
	if sheet.Subtitle != "" {
		pdf.SetFont("Arial", "", 12)
		pdf.CellFormat(0, 8, sheet.Subtitle, "", 1, "C", false, 0, "")
	}
	pdf.Ln(4)

	opts := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
	pdf.RegisterImageOptionsReader("qr", opts, bytes.NewReader(png))
	const side = 140.0
	x := (210.0 - side) / 2
	pdf.ImageOptions("qr", x, pdf.GetY(), side, side, false, opts, 0, "")
	pdf.SetY(pdf.GetY() + side + 6)

	pdf.SetFont("Arial", "", 11)
	window := fmt.Sprintf("Valid %s - %s",
		sheet.ValidFrom.In(loc).Format("02 Jan 2006 15:04"),
		sheet.ValidUntil.In(loc).Format("15:04 MST"))
	pdf.CellFormat(0, 7, window, "", 1, "C", false, 0, "")
	pdf.SetFont("Courier", "", 9)
	pdf.CellFormat(0, 6, sheet.Token, "", 1, "C", false, 0, "")

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("render qr sheet: %w", err)
	}
	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render qr sheet: %w", err)
	}
	return buf.Bytes(), nil
}

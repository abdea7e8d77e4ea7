// Package pdfgen composes receipt images into single-page A4 PDFs.
package pdfgen

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
	"github.com/signintech/gopdf"
)

// A4 page geometry in points at 72dpi.
const (
	PageWidth  = 595.0
	PageHeight = 842.0
	Margin     = 40.0

	// MaxImageWidth and MaxImageHeight bound the embedded image.
	MaxImageWidth  = PageWidth - 2*Margin  // 515
	MaxImageHeight = PageHeight - 2*Margin // 762
)

// IsPDF reports whether data looks like a PDF document.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(data, []byte("%PDF-"))
}

// ConvertImage renders an image onto one A4 page: aspect ratio preserved,
// centered, downscaled to fit within the margins but never upscaled. EXIF
// orientation is applied before placing.
func ConvertImage(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	bounds := img.Bounds()
	w := float64(bounds.Dx())
	h := float64(bounds.Dy())
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("image has no pixels")
	}

	fw, fh := fitRect(w, h)

	// Phone photos are much larger than the box they are drawn into.
	// Resampling to twice the draw size keeps the output sharp while keeping
	// the PDF small.
	if w > 2*MaxImageWidth || h > 2*MaxImageHeight {
		img = imaging.Fit(img, int(2*MaxImageWidth), int(2*MaxImageHeight), imaging.Lanczos)
	}

	pdf := gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: gopdf.Rect{W: PageWidth, H: PageHeight}})
	pdf.AddPage()

	x := (PageWidth - fw) / 2
	y := (PageHeight - fh) / 2
	if err := pdf.ImageFrom(img, x, y, &gopdf.Rect{W: fw, H: fh}); err != nil {
		return nil, fmt.Errorf("placing image: %w", err)
	}

	out, err := pdf.GetBytesPdfReturnErr()
	if err != nil {
		return nil, fmt.Errorf("rendering pdf: %w", err)
	}
	return out, nil
}

// fitRect scales (w, h) to fit within the margin box, preserving aspect
// ratio. Images already inside the box keep their size.
func fitRect(w, h float64) (float64, float64) {
	scale := 1.0
	if s := MaxImageWidth / w; s < scale {
		scale = s
	}
	if s := MaxImageHeight / h; s < scale {
		scale = s
	}
	return w * scale, h * scale
}

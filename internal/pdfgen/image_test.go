package pdfgen

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"

	"github.com/ledongthuc/pdf"
)

func TestFitRect(t *testing.T) {
	tests := []struct {
		name   string
		w, h   float64
		wantW  float64
		wantH  float64
	}{
		{name: "small image keeps size", w: 100, h: 200, wantW: 100, wantH: 200},
		{name: "exactly the box", w: 515, h: 762, wantW: 515, wantH: 762},
		{name: "wide image binds on width", w: 1030, h: 500, wantW: 515, wantH: 250},
		{name: "tall image binds on height", w: 300, h: 1524, wantW: 150, wantH: 762},
		{name: "huge photo", w: 4000, h: 3000, wantW: 515, wantH: 386.25},
		{name: "never upscaled", w: 50, h: 50, wantW: 50, wantH: 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotW, gotH := fitRect(tt.w, tt.h)
			if math.Abs(gotW-tt.wantW) > 0.01 || math.Abs(gotH-tt.wantH) > 0.01 {
				t.Errorf("fitRect(%v, %v) = (%v, %v), want (%v, %v)",
					tt.w, tt.h, gotW, gotH, tt.wantW, tt.wantH)
			}
			if gotW > MaxImageWidth+0.01 || gotH > MaxImageHeight+0.01 {
				t.Errorf("fitRect(%v, %v) exceeds the margin box: (%v, %v)", tt.w, tt.h, gotW, gotH)
			}
			if math.Abs(gotW/gotH-tt.w/tt.h) > 0.001 {
				t.Errorf("fitRect(%v, %v) changed the aspect ratio", tt.w, tt.h)
			}
		})
	}
}

func TestConvertImage(t *testing.T) {
	out, err := ConvertImage(testPNG(t, 800, 600))
	if err != nil {
		t.Fatalf("ConvertImage: %v", err)
	}
	if !IsPDF(out) {
		t.Fatal("output is not a PDF")
	}
	r, err := pdf.NewReader(bytes.NewReader(out), int64(len(out)))
	if err != nil {
		t.Fatalf("parsing output: %v", err)
	}
	if r.NumPage() != 1 {
		t.Errorf("pages = %d, want 1", r.NumPage())
	}
}

func TestConvertImageRejectsGarbage(t *testing.T) {
	if _, err := ConvertImage([]byte("not an image")); err == nil {
		t.Error("garbage input should fail")
	}
}

func TestIsPDF(t *testing.T) {
	if !IsPDF([]byte("%PDF-1.7\n...")) {
		t.Error("PDF header not recognized")
	}
	if IsPDF([]byte("\x89PNG\r\n")) {
		t.Error("PNG misdetected as PDF")
	}
	if IsPDF(nil) {
		t.Error("empty input misdetected as PDF")
	}
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x += 10 {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

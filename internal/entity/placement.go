package entity

import "fmt"

// MinQRSize is the smallest printable QR side length in pixels. Placements
// below this size produce codes that scanners cannot reliably read.
const MinQRSize = 50

// Placement method tags. Every placement records which source produced it.
const (
	MethodColor    = "color"    // placeholder-color region detection
	MethodText     = "text"     // OCR text-marker detection
	MethodTemplate = "template" // saved template coordinate
	MethodCSV      = "csv"      // literal coordinate from an import row
	MethodDefault  = "default"  // computed centered fallback
)

// Placement is a pixel rectangle designating where a QR code is composited
// onto a base image. Coordinates are in the coordinate space of that image,
// origin at the top-left.
type Placement struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`

	// Method is the detection source that produced this placement
	// (MethodColor, MethodText, MethodTemplate, MethodCSV, MethodDefault).
	Method string `json:"method"`

	// Confidence is a score in [0,100]. Literal sources (template, csv,
	// default) always report 100.
	Confidence float64 `json:"confidence"`
}

// Validate checks the placement invariants against the dimensions of the
// image it targets: non-negative origin, fully inside the image, and at
// least MinQRSize on each side.
func (p Placement) Validate(imageWidth, imageHeight int) error {
	if p.X < 0 || p.Y < 0 {
		return fmt.Errorf("placement origin (%d,%d) is negative", p.X, p.Y)
	}
	if p.Width < MinQRSize || p.Height < MinQRSize {
		return fmt.Errorf("placement %dx%d below minimum printable size %d", p.Width, p.Height, MinQRSize)
	}
	if p.X+p.Width > imageWidth || p.Y+p.Height > imageHeight {
		return fmt.Errorf("placement (%d,%d)+%dx%d exceeds image bounds %dx%d",
			p.X, p.Y, p.Width, p.Height, imageWidth, imageHeight)
	}
	return nil
}

package qr

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	"image/png"

	"github.com/anthonynsimon/bild/blend"
	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/veriqr/veriqr/internal/entity"
)

// ComposeError is a per-item composition failure carrying the offending
// product identifier, so the batch driver can record it without losing
// context.
type ComposeError struct {
	ProductID string
	Err       error
}

func (e *ComposeError) Error() string {
	return fmt.Sprintf("compose failed for product %s: %v", e.ProductID, e.Err)
}

func (e *ComposeError) Unwrap() error { return e.Err }

// Embed composites a rendered QR code onto a base design image at the given
// placement and returns the result as PNG bytes.
//
// The QR is resized with a contain fit: it is scaled uniformly to the
// largest size that fits placement.Width x placement.Height, padded with
// white to fill the remainder, and never stretched or cropped -- either
// would break scannability. The padded block is then alpha-blended onto the
// base at (placement.X, placement.Y).
//
// The placement is validated against the base image bounds before any
// pixel work; an out-of-bounds placement is an error.
func Embed(baseImageBytes, qrImageBytes []byte, placement entity.Placement) ([]byte, error) {
	base, err := decodeImage(baseImageBytes)
	if err != nil {
		return nil, fmt.Errorf("base image: %w", err)
	}
	qrImg, err := decodeImage(qrImageBytes)
	if err != nil {
		return nil, fmt.Errorf("qr image: %w", err)
	}

	baseBounds := base.Bounds()
	if err := placement.Validate(baseBounds.Dx(), baseBounds.Dy()); err != nil {
		return nil, err
	}

	// Contain fit: uniform scale, then center on a white pad.
	fitted := imaging.Fit(qrImg, placement.Width, placement.Height, imaging.Lanczos)
	block := imaging.New(placement.Width, placement.Height, color.NRGBA{255, 255, 255, 255})
	block = imaging.PasteCenter(block, fitted)

	composed := imaging.Overlay(base, block, image.Pt(placement.X, placement.Y), 1.0)

	var buf bytes.Buffer
	if err := png.Encode(&buf, composed); err != nil {
		return nil, fmt.Errorf("failed to encode composed image: %w", err)
	}
	return buf.Bytes(), nil
}

// OverlayConfig configures the metadata label drawn by AddMetadataOverlay.
type OverlayConfig struct {
	// FontSize drives line spacing in pixels.
	FontSize int

	// Padding is the margin inside the label box in pixels.
	Padding int

	// TextColor is the label text color.
	TextColor color.NRGBA

	// BackgroundColor is the label box fill; the default is
	// semi-transparent white so the design stays visible underneath.
	BackgroundColor color.NRGBA
}

// DefaultOverlayConfig returns the standard metadata label appearance.
func DefaultOverlayConfig() OverlayConfig {
	return OverlayConfig{
		FontSize:        16,
		Padding:         10,
		TextColor:       color.NRGBA{0, 0, 0, 255},
		BackgroundColor: color.NRGBA{255, 255, 255, 204},
	}
}

// AddMetadataOverlay draws a semi-transparent label box anchored at the
// bottom of the image containing the serial and batch numbers as two lines
// of text.
//
// Overlay failure must never fail the surrounding job: on any error the
// original image bytes are returned unchanged along with the error, and the
// caller may log it and move on.
func AddMetadataOverlay(imageBytes []byte, serialNumber, batchNumber string, cfg OverlayConfig) ([]byte, error) {
	img, err := decodeImage(imageBytes)
	if err != nil {
		return imageBytes, fmt.Errorf("overlay: %w", err)
	}
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if cfg.FontSize <= 0 {
		cfg.FontSize = 16
	}
	if cfg.Padding < 0 {
		cfg.Padding = 0
	}

	lineHeight := cfg.FontSize + 4
	boxHeight := 2*lineHeight + 2*cfg.Padding
	if boxHeight >= height {
		return imageBytes, fmt.Errorf("overlay: image too small for label box")
	}

	// Build the label as a transparent layer and blend it over the image,
	// so the box background keeps its alpha.
	layer := image.NewRGBA(image.Rect(0, 0, width, height))
	boxTop := height - boxHeight
	draw.Draw(layer, image.Rect(0, boxTop, width, height),
		&image.Uniform{cfg.BackgroundColor}, image.Point{}, draw.Src)

	drawer := &font.Drawer{
		Dst:  layer,
		Src:  &image.Uniform{cfg.TextColor},
		Face: basicfont.Face7x13,
	}
	lines := []string{
		fmt.Sprintf("Serial: %s", serialNumber),
		fmt.Sprintf("Batch: %s", batchNumber),
	}
	for i, line := range lines {
		drawer.Dot = fixed.P(cfg.Padding, boxTop+cfg.Padding+(i+1)*lineHeight-4)
		drawer.DrawString(line)
	}

	composed := blend.Normal(img, layer)

	var buf bytes.Buffer
	if err := png.Encode(&buf, composed); err != nil {
		return imageBytes, fmt.Errorf("overlay: failed to encode: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeImage decodes PNG, JPEG, or GIF bytes into an image.
func decodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

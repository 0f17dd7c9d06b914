// Package qr renders QR codes and composites them onto design templates.
//
// Rendering is a pure function of the payload: a product's QR encodes its
// immutable hash, so codes are regenerated per export rather than cached.
// Composition preserves scannability as a hard invariant -- a QR is resized
// with a contain-and-pad fit and is never stretched non-uniformly or
// cropped.
package qr

import (
	"bytes"
	"fmt"
	"io"

	"github.com/yeqown/go-qrcode/v2"
	"github.com/yeqown/go-qrcode/writer/standard"
)

// DefaultModuleWidth is the pixel width of a single QR module in rendered
// output. 16 px per module yields a high-resolution code that survives the
// downscaling applied during template composition.
const DefaultModuleWidth = 16

// RenderOptions configures QR rendering.
type RenderOptions struct {
	// ModuleWidth is the pixel width per QR module; <= 0 means
	// DefaultModuleWidth.
	ModuleWidth uint8

	// HighCorrection selects the highest error-correction level instead of
	// the default quartile level. Embedded codes keep quartile; codes meant
	// for print-only ZIP export may want highest.
	HighCorrection bool
}

// Render encodes the payload as a QR code and returns PNG bytes.
func Render(payload string, opts RenderOptions) ([]byte, error) {
	if payload == "" {
		return nil, fmt.Errorf("empty QR payload")
	}

	level := qrcode.ErrorCorrectionQuart
	if opts.HighCorrection {
		level = qrcode.ErrorCorrectionHighest
	}
	qrc, err := qrcode.NewWith(payload, qrcode.WithErrorCorrectionLevel(level))
	if err != nil {
		return nil, fmt.Errorf("failed to build QR code: %w", err)
	}

	moduleWidth := opts.ModuleWidth
	if moduleWidth == 0 {
		moduleWidth = DefaultModuleWidth
	}

	var buf bytes.Buffer
	writer := standard.NewWithWriter(nopWriteCloser{&buf}, standard.WithQRWidth(moduleWidth))
	if err := qrc.Save(writer); err != nil {
		return nil, fmt.Errorf("failed to render QR code: %w", err)
	}
	return buf.Bytes(), nil
}

// nopWriteCloser adapts a bytes.Buffer to the io.WriteCloser the standard
// writer requires.
type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

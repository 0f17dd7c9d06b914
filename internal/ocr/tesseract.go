// Package ocr provides word-level text recognition backed by Tesseract.
//
// The package implements detect.WordRecognizer so the text-marker detector
// stays engine-agnostic; swapping in a cloud OCR provider only requires
// another implementation of that interface.
package ocr

import (
	"context"
	"fmt"
	"time"

	"github.com/otiai10/gosseract/v2"

	"github.com/veriqr/veriqr/internal/detect"
)

// DefaultTimeout bounds a single OCR run. Tesseract on a large banner can
// take seconds; a hung engine must not stall a whole batch.
const DefaultTimeout = 30 * time.Second

// Tesseract recognizes words using the native Tesseract bindings.
//
// A fresh gosseract client is created per call: clients are not safe for
// concurrent use, and creation cost is negligible next to recognition.
type Tesseract struct {
	timeout time.Duration
}

// NewTesseract returns a Tesseract recognizer. A non-positive timeout means
// DefaultTimeout.
func NewTesseract(timeout time.Duration) *Tesseract {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Tesseract{timeout: timeout}
}

// Words runs OCR over the encoded image and returns word-level results with
// bounding boxes and confidence scores in [0,100].
//
// The run is bounded by the recognizer's timeout in addition to the
// caller's context. On timeout the underlying Tesseract call is abandoned
// and a context error is returned; callers record it as a per-item failure.
func (t *Tesseract) Words(ctx context.Context, imageBytes []byte, lang string) ([]detect.Word, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	type outcome struct {
		words []detect.Word
		err   error
	}
	done := make(chan outcome, 1)

	go func() {
		words, err := recognize(imageBytes, lang)
		done <- outcome{words: words, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("ocr timed out: %w", ctx.Err())
	case out := <-done:
		return out.words, out.err
	}
}

func recognize(imageBytes []byte, lang string) ([]detect.Word, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if lang != "" {
		if err := client.SetLanguage(lang); err != nil {
			return nil, fmt.Errorf("failed to set language: %w", err)
		}
	}
	if err := client.SetImageFromBytes(imageBytes); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("OCR failed: %w", err)
	}

	words := make([]detect.Word, 0, len(boxes))
	for _, box := range boxes {
		if box.Word == "" {
			continue
		}
		words = append(words, detect.Word{
			Text:       box.Word,
			X1:         box.Box.Min.X,
			Y1:         box.Box.Min.Y,
			X2:         box.Box.Max.X,
			Y2:         box.Box.Max.Y,
			Confidence: box.Confidence,
		})
	}
	return words, nil
}

package detect

import (
	"context"

	"github.com/veriqr/veriqr/internal/entity"
)

// DefaultQRSize is the side length of the centered fallback placement used
// when no detector finds a region.
const DefaultQRSize = 200

// ResolveOptions selects which detectors ResolveAll runs. A detector runs
// only when its option is non-empty.
type ResolveOptions struct {
	// PlaceholderColor is the "#RRGGBB" placeholder block color to search
	// for, if any.
	PlaceholderColor string `json:"placeholder_color,omitempty"`

	// Tolerance is the per-channel color tolerance; <= 0 means
	// DefaultTolerance.
	Tolerance int `json:"tolerance,omitempty"`

	// TextMarker is the marker string to search OCR words for, if any.
	TextMarker string `json:"text_marker,omitempty"`

	// Language is the OCR language code; empty means "eng".
	Language string `json:"language,omitempty"`
}

// ResolveResult collects every placement the configured detectors found.
//
// Success means at least one detector produced a placement. The resolver
// never picks between methods: both a color and a text placement may be
// present, and choosing among them is the caller's responsibility.
type ResolveResult struct {
	Success     bool               `json:"success"`
	Placements  []entity.Placement `json:"placements"`
	Methods     []string           `json:"methods"`
	ImageWidth  int                `json:"image_width"`
	ImageHeight int                `json:"image_height"`
}

// ResolveAll runs the color-region detector and then the text-marker
// detector, appending each successful result. Detector errors propagate;
// "nothing found" does not.
//
// Saved-template and CSV-literal coordinates are direct placement sources
// with confidence 100 and bypass this resolver entirely.
func ResolveAll(ctx context.Context, rec WordRecognizer, imageBytes []byte, opts ResolveOptions) (*ResolveResult, error) {
	img, err := decodeImage(imageBytes)
	if err != nil {
		return nil, err
	}
	bounds := img.Bounds()

	result := &ResolveResult{
		Placements:  []entity.Placement{},
		Methods:     []string{},
		ImageWidth:  bounds.Dx(),
		ImageHeight: bounds.Dy(),
	}

	if opts.PlaceholderColor != "" {
		colorResult, err := DetectColorRegion(imageBytes, opts.PlaceholderColor, opts.Tolerance)
		if err != nil {
			return nil, err
		}
		if colorResult.Found {
			result.Placements = append(result.Placements, *colorResult.Placement)
			result.Methods = append(result.Methods, entity.MethodColor)
		}
	}

	if opts.TextMarker != "" {
		lang := opts.Language
		if lang == "" {
			lang = "eng"
		}
		textResult, err := DetectTextMarker(ctx, rec, imageBytes, opts.TextMarker, lang)
		if err != nil {
			return nil, err
		}
		if textResult.Found {
			result.Placements = append(result.Placements, *textResult.Placement)
			result.Methods = append(result.Methods, entity.MethodText)
		}
	}

	result.Success = len(result.Placements) > 0
	return result, nil
}

// DefaultPlacement computes the centered fallback box for an image of the
// given dimensions. Size <= 0 means DefaultQRSize; the box is shrunk to fit
// images smaller than the requested size.
func DefaultPlacement(imageWidth, imageHeight, size int) entity.Placement {
	if size <= 0 {
		size = DefaultQRSize
	}
	if size > imageWidth {
		size = imageWidth
	}
	if size > imageHeight {
		size = imageHeight
	}
	return entity.Placement{
		X:          (imageWidth - size) / 2,
		Y:          (imageHeight - size) / 2,
		Width:      size,
		Height:     size,
		Method:     entity.MethodDefault,
		Confidence: 100,
	}
}

package detect

import (
	"context"
	"regexp"
	"strings"

	"github.com/veriqr/veriqr/internal/entity"
)

// DefaultMarkerPadding is the margin in pixels added around a matched
// marker word when deriving its square placement box.
const DefaultMarkerPadding = 20

// Word is a single OCR-recognized token with its bounding box in image
// coordinates and the engine's recognition confidence in [0,100].
type Word struct {
	Text       string  `json:"text"`
	X1         int     `json:"x1"`
	Y1         int     `json:"y1"`
	X2         int     `json:"x2"`
	Y2         int     `json:"y2"`
	Confidence float64 `json:"confidence"`
}

// WordRecognizer runs OCR over an encoded image and returns recognized
// words. Implementations must honor context cancellation; a hung engine
// must not stall a whole export batch.
type WordRecognizer interface {
	Words(ctx context.Context, imageBytes []byte, lang string) ([]Word, error)
}

var nonWordChars = regexp.MustCompile(`[^A-Z0-9]+`)

// DetectTextMarker searches OCR output for a marker string and derives a
// square QR placement box around the matched word.
//
// Both the marker and each recognized word are normalized (uppercased,
// non-word characters stripped) before an exact-or-substring comparison.
// The first matching word wins, in the order the engine reports words --
// engines do not guarantee left-to-right/top-to-bottom order.
//
// # Box Derivation
//
// The placement is a square with side max(wordWidth, wordHeight) plus
// DefaultMarkerPadding on each side, anchored so the word keeps a padding
// margin. The top-left corner is clamped to >= 0. When the box would extend
// past the right or bottom edge, the side is shrunk so the box fits; if
// shrinking takes it below entity.MinQRSize the detection is rejected,
// since a QR that overflows the canvas or prints below the minimum size is
// unscannable either way.
//
// Confidence is the OCR word's own recognition confidence.
func DetectTextMarker(ctx context.Context, rec WordRecognizer, imageBytes []byte, marker, lang string) (*DetectionResult, error) {
	normalizedMarker := normalizeToken(marker)
	if normalizedMarker == "" {
		return &DetectionResult{Found: false}, nil
	}

	img, err := decodeImage(imageBytes)
	if err != nil {
		return nil, err
	}
	bounds := img.Bounds()
	imageWidth := bounds.Dx()
	imageHeight := bounds.Dy()

	words, err := rec.Words(ctx, imageBytes, lang)
	if err != nil {
		return nil, err
	}

	for _, w := range words {
		token := normalizeToken(w.Text)
		if token == "" {
			continue
		}
		if token != normalizedMarker && !strings.Contains(token, normalizedMarker) {
			continue
		}

		placement, ok := markerPlacement(w, imageWidth, imageHeight)
		if !ok {
			continue
		}
		placement.Confidence = w.Confidence

		return &DetectionResult{
			Found:      true,
			Placement:  placement,
			Confidence: w.Confidence,
			Details: map[string]any{
				"matched_word": w.Text,
				"word_box":     [4]int{w.X1, w.Y1, w.X2, w.Y2},
				"padding":      DefaultMarkerPadding,
			},
		}, nil
	}

	return &DetectionResult{Found: false}, nil
}

// markerPlacement derives the padded square box for a matched word,
// clamped inside the image.
func markerPlacement(w Word, imageWidth, imageHeight int) (*entity.Placement, bool) {
	wordWidth := w.X2 - w.X1
	wordHeight := w.Y2 - w.Y1
	side := wordWidth
	if wordHeight > side {
		side = wordHeight
	}
	side += 2 * DefaultMarkerPadding

	x := w.X1 - DefaultMarkerPadding
	y := w.Y1 - DefaultMarkerPadding
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}

	// Shrink the square so it never extends past the right/bottom edge.
	if x+side > imageWidth {
		side = imageWidth - x
	}
	if y+side > imageHeight {
		side = imageHeight - y
	}
	if side < entity.MinQRSize {
		return nil, false
	}

	return &entity.Placement{X: x, Y: y, Width: side, Height: side, Method: entity.MethodText}, true
}

// normalizeToken uppercases a string and strips everything outside [A-Z0-9].
func normalizeToken(s string) string {
	return nonWordChars.ReplaceAllString(strings.ToUpper(s), "")
}

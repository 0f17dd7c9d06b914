package detect

import (
	"context"
	"errors"
	"image/color"
	"testing"

	"github.com/veriqr/veriqr/internal/entity"
)

// fakeRecognizer returns canned OCR words without running an engine
type fakeRecognizer struct {
	words []Word
	err   error
}

func (f *fakeRecognizer) Words(_ context.Context, _ []byte, _ string) ([]Word, error) {
	return f.words, f.err
}

func TestDetectTextMarker(t *testing.T) {
	img := encodePNG(t, createTestImage(500, 500, color.White))
	rec := &fakeRecognizer{words: []Word{
		{Text: "PRODUCT", X1: 10, Y1: 10, X2: 90, Y2: 30, Confidence: 95},
		{Text: "QR-CODE", X1: 200, Y1: 200, X2: 280, Y2: 220, Confidence: 88},
	}}

	result, err := DetectTextMarker(context.Background(), rec, img, "QR CODE", "eng")
	if err != nil {
		t.Fatalf("DetectTextMarker failed: %v", err)
	}
	if !result.Found {
		t.Fatal("expected marker to be found")
	}

	// Word box is 80x20; square side is 80 plus 20px padding per side,
	// anchored 20px up-left of the word.
	p := result.Placement
	if p.X != 180 || p.Y != 180 || p.Width != 120 || p.Height != 120 {
		t.Errorf("placement = {%d,%d,%d,%d}, want {180,180,120,120}", p.X, p.Y, p.Width, p.Height)
	}
	if p.Method != entity.MethodText {
		t.Errorf("method = %q, want %q", p.Method, entity.MethodText)
	}
	if result.Confidence != 88 {
		t.Errorf("confidence = %.1f, want the OCR word confidence 88", result.Confidence)
	}
}

func TestDetectTextMarker_Normalization(t *testing.T) {
	img := encodePNG(t, createTestImage(500, 500, color.White))
	rec := &fakeRecognizer{words: []Word{
		{Text: "[qr_code]:", X1: 100, Y1: 100, X2: 180, Y2: 120, Confidence: 70},
	}}

	result, err := DetectTextMarker(context.Background(), rec, img, "QR-Code", "eng")
	if err != nil {
		t.Fatalf("DetectTextMarker failed: %v", err)
	}
	if !result.Found {
		t.Error("expected punctuation and case differences to be ignored")
	}
}

func TestDetectTextMarker_SubstringMatch(t *testing.T) {
	img := encodePNG(t, createTestImage(500, 500, color.White))
	rec := &fakeRecognizer{words: []Word{
		{Text: "MYQRCODEHERE", X1: 100, Y1: 100, X2: 220, Y2: 130, Confidence: 82},
	}}

	result, err := DetectTextMarker(context.Background(), rec, img, "QRCODE", "eng")
	if err != nil {
		t.Fatalf("DetectTextMarker failed: %v", err)
	}
	if !result.Found {
		t.Error("expected marker contained inside a longer word to match")
	}
}

func TestDetectTextMarker_FirstMatchWins(t *testing.T) {
	img := encodePNG(t, createTestImage(500, 500, color.White))
	rec := &fakeRecognizer{words: []Word{
		{Text: "QRCODE", X1: 300, Y1: 300, X2: 380, Y2: 320, Confidence: 60},
		{Text: "QRCODE", X1: 50, Y1: 50, X2: 130, Y2: 70, Confidence: 99},
	}}

	result, err := DetectTextMarker(context.Background(), rec, img, "QRCODE", "eng")
	if err != nil {
		t.Fatalf("DetectTextMarker failed: %v", err)
	}
	if !result.Found {
		t.Fatal("expected marker to be found")
	}
	if result.Placement.X != 280 {
		t.Errorf("placement.X = %d, want the first reported word's box (280)", result.Placement.X)
	}
}

func TestDetectTextMarker_NotFound(t *testing.T) {
	img := encodePNG(t, createTestImage(500, 500, color.White))
	rec := &fakeRecognizer{words: []Word{
		{Text: "SERIAL", X1: 10, Y1: 10, X2: 80, Y2: 30, Confidence: 90},
	}}

	result, err := DetectTextMarker(context.Background(), rec, img, "QRCODE", "eng")
	if err != nil {
		t.Fatalf("DetectTextMarker failed: %v", err)
	}
	if result.Found {
		t.Error("expected no match")
	}
}

func TestDetectTextMarker_ClampsAtOrigin(t *testing.T) {
	img := encodePNG(t, createTestImage(500, 500, color.White))
	rec := &fakeRecognizer{words: []Word{
		{Text: "QRCODE", X1: 5, Y1: 5, X2: 85, Y2: 25, Confidence: 90},
	}}

	result, err := DetectTextMarker(context.Background(), rec, img, "QRCODE", "eng")
	if err != nil {
		t.Fatalf("DetectTextMarker failed: %v", err)
	}
	if !result.Found {
		t.Fatal("expected marker to be found")
	}
	if result.Placement.X != 0 || result.Placement.Y != 0 {
		t.Errorf("position = (%d,%d), want clamped to (0,0)", result.Placement.X, result.Placement.Y)
	}
}

func TestDetectTextMarker_ShrinksAtEdge(t *testing.T) {
	img := encodePNG(t, createTestImage(500, 500, color.White))
	rec := &fakeRecognizer{words: []Word{
		{Text: "QRCODE", X1: 460, Y1: 460, X2: 490, Y2: 480, Confidence: 90},
	}}

	result, err := DetectTextMarker(context.Background(), rec, img, "QRCODE", "eng")
	if err != nil {
		t.Fatalf("DetectTextMarker failed: %v", err)
	}
	if !result.Found {
		t.Fatal("expected marker to be found")
	}

	p := result.Placement
	if p.Width != 60 || p.Height != 60 {
		t.Errorf("size = %dx%d, want 60x60 shrunk to fit the right edge", p.Width, p.Height)
	}
	if err := p.Validate(500, 500); err != nil {
		t.Errorf("placement out of bounds: %v", err)
	}
}

func TestDetectTextMarker_RejectsBelowMinimumSize(t *testing.T) {
	img := encodePNG(t, createTestImage(200, 200, color.White))
	rec := &fakeRecognizer{words: []Word{
		{Text: "QRCODE", X1: 180, Y1: 180, X2: 195, Y2: 190, Confidence: 90},
	}}

	result, err := DetectTextMarker(context.Background(), rec, img, "QRCODE", "eng")
	if err != nil {
		t.Fatalf("DetectTextMarker failed: %v", err)
	}
	if result.Found {
		t.Error("expected rejection: shrunk box would be below the minimum QR size")
	}
}

func TestDetectTextMarker_EmptyMarker(t *testing.T) {
	img := encodePNG(t, createTestImage(200, 200, color.White))
	rec := &fakeRecognizer{words: []Word{{Text: "ANY", X1: 10, Y1: 10, X2: 50, Y2: 30}}}

	result, err := DetectTextMarker(context.Background(), rec, img, "!!!", "eng")
	if err != nil {
		t.Fatalf("DetectTextMarker failed: %v", err)
	}
	if result.Found {
		t.Error("marker normalizing to empty must never match")
	}
}

func TestDetectTextMarker_RecognizerError(t *testing.T) {
	img := encodePNG(t, createTestImage(200, 200, color.White))
	rec := &fakeRecognizer{err: errors.New("engine crashed")}

	if _, err := DetectTextMarker(context.Background(), rec, img, "QRCODE", "eng"); err == nil {
		t.Error("expected recognizer error to propagate")
	}
}

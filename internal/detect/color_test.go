package detect

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/veriqr/veriqr/internal/entity"
)

// createTestImage creates a solid color test image
func createTestImage(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// fillRect paints a solid rectangle onto an image
func fillRect(img *image.RGBA, x, y, w, h int, c color.Color) {
	for dy := 0; dy < h; dy++ {
		for dx := 0; dx < w; dx++ {
			img.Set(x+dx, y+dy, c)
		}
	}
}

// encodePNG encodes an image to PNG bytes for the detector input
func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

var green = color.RGBA{0, 255, 0, 255}

func TestDetectColorRegion(t *testing.T) {
	img := createTestImage(1000, 1000, color.White)
	fillRect(img, 400, 400, 200, 200, green)

	result, err := DetectColorRegion(encodePNG(t, img), "#00FF00", 10)
	if err != nil {
		t.Fatalf("DetectColorRegion failed: %v", err)
	}
	if !result.Found {
		t.Fatal("expected region to be found")
	}

	p := result.Placement
	if p.X != 400 || p.Y != 400 || p.Width != 200 || p.Height != 200 {
		t.Errorf("placement = {%d,%d,%d,%d}, want {400,400,200,200}", p.X, p.Y, p.Width, p.Height)
	}
	if p.Method != entity.MethodColor {
		t.Errorf("method = %q, want %q", p.Method, entity.MethodColor)
	}
	if result.Confidence != 100 {
		t.Errorf("confidence = %.2f, want 100 for a solid rectangle", result.Confidence)
	}
}

func TestDetectColorRegion_NotFound(t *testing.T) {
	img := createTestImage(300, 300, color.White)

	result, err := DetectColorRegion(encodePNG(t, img), "#00FF00", 10)
	if err != nil {
		t.Fatalf("DetectColorRegion failed: %v", err)
	}
	if result.Found {
		t.Error("expected no region in a blank image")
	}
	if result.Placement != nil {
		t.Errorf("placement = %+v, want nil", result.Placement)
	}
}

func TestDetectColorRegion_NoiseFiltered(t *testing.T) {
	// 8x8 blob has bounding-box area 64, at or below the noise threshold.
	img := createTestImage(300, 300, color.White)
	fillRect(img, 100, 100, 8, 8, green)

	result, err := DetectColorRegion(encodePNG(t, img), "#00FF00", 10)
	if err != nil {
		t.Fatalf("DetectColorRegion failed: %v", err)
	}
	if result.Found {
		t.Error("expected 8x8 blob to be discarded as noise")
	}
}

func TestDetectColorRegion_LargestRegionWins(t *testing.T) {
	img := createTestImage(500, 500, color.White)
	fillRect(img, 300, 300, 60, 60, green)
	fillRect(img, 50, 50, 120, 120, green)

	result, err := DetectColorRegion(encodePNG(t, img), "#00FF00", 10)
	if err != nil {
		t.Fatalf("DetectColorRegion failed: %v", err)
	}
	if !result.Found {
		t.Fatal("expected a region to be found")
	}

	p := result.Placement
	if p.X != 50 || p.Y != 50 || p.Width != 120 || p.Height != 120 {
		t.Errorf("placement = {%d,%d,%d,%d}, want the larger 120x120 region at (50,50)", p.X, p.Y, p.Width, p.Height)
	}
}

func TestDetectColorRegion_EqualAreasFirstWins(t *testing.T) {
	img := createTestImage(500, 500, color.White)
	fillRect(img, 100, 100, 80, 80, green)
	fillRect(img, 300, 300, 80, 80, green)

	result, err := DetectColorRegion(encodePNG(t, img), "#00FF00", 10)
	if err != nil {
		t.Fatalf("DetectColorRegion failed: %v", err)
	}
	if !result.Found {
		t.Fatal("expected a region to be found")
	}
	// Row-major scan discovers the top-left region first; ties keep it.
	if result.Placement.X != 100 || result.Placement.Y != 100 {
		t.Errorf("placement at (%d,%d), want first-discovered region at (100,100)", result.Placement.X, result.Placement.Y)
	}
}

func TestDetectColorRegion_Tolerance(t *testing.T) {
	// Off-green: green channel 15 away from the pure target.
	img := createTestImage(300, 300, color.White)
	fillRect(img, 50, 50, 100, 100, color.RGBA{0, 240, 0, 255})

	data := encodePNG(t, img)

	result, err := DetectColorRegion(data, "#00FF00", 10)
	if err != nil {
		t.Fatalf("DetectColorRegion failed: %v", err)
	}
	if result.Found {
		t.Error("tolerance 10 should not match a color 15 away")
	}

	result, err = DetectColorRegion(data, "#00FF00", 20)
	if err != nil {
		t.Fatalf("DetectColorRegion failed: %v", err)
	}
	if !result.Found {
		t.Error("tolerance 20 should match a color 15 away")
	}
}

func TestDetectColorRegion_GrowsToMinimumSize(t *testing.T) {
	// 20x20 region: above the noise threshold but below the minimum
	// printable QR size, so the box grows around its center.
	img := createTestImage(300, 300, color.White)
	fillRect(img, 100, 100, 20, 20, green)

	result, err := DetectColorRegion(encodePNG(t, img), "#00FF00", 10)
	if err != nil {
		t.Fatalf("DetectColorRegion failed: %v", err)
	}
	if !result.Found {
		t.Fatal("expected region to be found")
	}

	p := result.Placement
	if p.Width != entity.MinQRSize || p.Height != entity.MinQRSize {
		t.Errorf("size = %dx%d, want %dx%d", p.Width, p.Height, entity.MinQRSize, entity.MinQRSize)
	}
	if p.X != 85 || p.Y != 85 {
		t.Errorf("position = (%d,%d), want (85,85) centered on the original region", p.X, p.Y)
	}
	if err := p.Validate(300, 300); err != nil {
		t.Errorf("grown placement out of bounds: %v", err)
	}
}

func TestDetectColorRegion_RejectsTinyImage(t *testing.T) {
	// The image cannot hold a minimum-size QR at all.
	img := createTestImage(40, 40, green)

	result, err := DetectColorRegion(encodePNG(t, img), "#00FF00", 10)
	if err != nil {
		t.Fatalf("DetectColorRegion failed: %v", err)
	}
	if result.Found {
		t.Error("expected rejection: 40x40 image cannot hold a 50x50 QR")
	}
}

func TestDetectColorRegion_PlacementWithinBounds(t *testing.T) {
	// Region touching the image edge must still yield an in-bounds box.
	img := createTestImage(200, 200, color.White)
	fillRect(img, 170, 170, 30, 30, green)

	result, err := DetectColorRegion(encodePNG(t, img), "#00FF00", 10)
	if err != nil {
		t.Fatalf("DetectColorRegion failed: %v", err)
	}
	if !result.Found {
		t.Fatal("expected region to be found")
	}
	if err := result.Placement.Validate(200, 200); err != nil {
		t.Errorf("placement out of bounds: %v", err)
	}
}

func TestDetectColorRegion_HexWithoutHash(t *testing.T) {
	img := createTestImage(300, 300, color.White)
	fillRect(img, 50, 50, 100, 100, green)

	result, err := DetectColorRegion(encodePNG(t, img), "00FF00", 10)
	if err != nil {
		t.Fatalf("DetectColorRegion failed: %v", err)
	}
	if !result.Found {
		t.Error("expected bare hex color to be accepted")
	}
}

func TestDetectColorRegion_InvalidColor(t *testing.T) {
	img := createTestImage(100, 100, color.White)

	if _, err := DetectColorRegion(encodePNG(t, img), "#GGHHII", 10); err == nil {
		t.Error("expected error for invalid hex color")
	}
}

func TestDetectColorRegion_InvalidImage(t *testing.T) {
	if _, err := DetectColorRegion([]byte("not an image"), "#00FF00", 10); err == nil {
		t.Error("expected error for undecodable input")
	}
}

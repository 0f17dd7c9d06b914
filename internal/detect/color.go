package detect

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder

	"github.com/lucasb-eyer/go-colorful"

	"github.com/veriqr/veriqr/internal/entity"
)

const (
	// DefaultTolerance is the per-channel RGB distance allowed between a
	// pixel and the target placeholder color.
	DefaultTolerance = 30

	// noiseArea is the bounding-box area at or below which a region is
	// discarded as noise (stray matching pixels, anti-aliasing artifacts).
	noiseArea = 100
)

// DetectionResult is the outcome of a single detection attempt.
//
// Found=false with a nil error means the detector ran successfully but no
// qualifying region exists in the image. Errors are reserved for undecodable
// input or a failing OCR engine.
type DetectionResult struct {
	Found      bool              `json:"found"`
	Placement  *entity.Placement `json:"placement,omitempty"`
	Confidence float64           `json:"confidence,omitempty"`
	Details    map[string]any    `json:"details,omitempty"`
}

// coloredRegion accumulates per-region state during flood fill.
//
// area is the bounding-box area; matchedPixels is the number of pixels the
// fill actually visited. For a solid rectangle the two are equal, so the
// ratio measures how "clean" the block is versus anti-aliased edges.
type coloredRegion struct {
	minX, maxX    int
	minY, maxY    int
	area          int
	matchedPixels int
}

// DetectColorRegion finds the largest contiguous region of the target color
// in the encoded image and returns its bounding box as a QR placement.
//
// Parameters:
//   - imageBytes: PNG, JPEG, or GIF encoded image data.
//   - targetHex: placeholder color as "#RRGGBB".
//   - tolerance: per-channel RGB distance; pass <= 0 for DefaultTolerance.
//
// Returns a DetectionResult tagged with entity.MethodColor. Confidence is
// matchedPixels/boundingBoxArea*100, capped at 100.
//
// # Algorithm
//
//  1. Decode to raster and iterate pixels in row-major order.
//  2. At each unvisited pixel within tolerance of the target, run a
//     stack-based 4-connected flood fill, marking the visited bitmap and
//     tracking the region's bounding box and matched pixel count.
//  3. Discard regions with bounding-box area <= 100 (noise threshold).
//  4. Pick the surviving region with the largest bounding-box area; ties go
//     to the first-discovered region (row-major scan order).
//
// The visited bitmap guarantees every pixel is flood-filled at most once, so
// the whole scan is O(width x height) and always terminates.
//
// Regions narrower than the minimum printable QR size are grown symmetrically
// around their center to entity.MinQRSize and clamped to the image; if the
// image itself cannot hold a box that size the detection is rejected.
func DetectColorRegion(imageBytes []byte, targetHex string, tolerance int) (*DetectionResult, error) {
	target, err := colorful.Hex(normalizeHex(targetHex))
	if err != nil {
		return nil, fmt.Errorf("invalid target color %q: %w", targetHex, err)
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}

	img, err := decodeImage(imageBytes)
	if err != nil {
		return nil, err
	}
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	tr, tg, tb := uint8(target.R*255+0.5), uint8(target.G*255+0.5), uint8(target.B*255+0.5)

	// Flatten pixel data once; img.At in the inner loop is too slow for
	// large banners.
	pixels := rasterize(img)

	visited := make([]bool, width*height)
	var best *coloredRegion
	regionsConsidered := 0

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			idx := y*width + x
			if visited[idx] || !withinTolerance(pixels, idx, tr, tg, tb, tolerance) {
				continue
			}
			region := floodFillRegion(pixels, visited, x, y, width, height, tr, tg, tb, tolerance)
			region.area = (region.maxX - region.minX + 1) * (region.maxY - region.minY + 1)
			if region.area <= noiseArea {
				continue
			}
			regionsConsidered++
			if best == nil || region.area > best.area {
				best = region
			}
		}
	}

	if best == nil {
		return &DetectionResult{Found: false}, nil
	}

	placement, ok := regionPlacement(best, width, height)
	if !ok {
		return &DetectionResult{Found: false}, nil
	}

	confidence := float64(best.matchedPixels) / float64(best.area) * 100
	if confidence > 100 {
		confidence = 100
	}
	placement.Confidence = confidence

	return &DetectionResult{
		Found:      true,
		Placement:  placement,
		Confidence: confidence,
		Details: map[string]any{
			"target_color":       target.Hex(),
			"tolerance":          tolerance,
			"regions_considered": regionsConsidered,
			"matched_pixels":     best.matchedPixels,
			"region_area":        best.area,
		},
	}, nil
}

// floodFillRegion grows a region from (startX, startY) over all 4-connected
// pixels within tolerance of the target color.
//
// The traversal uses an explicit stack, never recursion: a full-image solid
// fill would otherwise exhaust the goroutine stack. Visited pixels are
// marked before being pushed so no pixel is processed twice.
func floodFillRegion(pixels []uint8, visited []bool, startX, startY, width, height int, tr, tg, tb uint8, tolerance int) *coloredRegion {
	region := &coloredRegion{minX: startX, maxX: startX, minY: startY, maxY: startY}

	type point struct{ x, y int }
	stack := []point{{startX, startY}}
	visited[startY*width+startX] = true

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		region.matchedPixels++
		if p.x < region.minX {
			region.minX = p.x
		}
		if p.x > region.maxX {
			region.maxX = p.x
		}
		if p.y < region.minY {
			region.minY = p.y
		}
		if p.y > region.maxY {
			region.maxY = p.y
		}

		// 4-connected neighbors
		neighbors := [4]point{{p.x + 1, p.y}, {p.x - 1, p.y}, {p.x, p.y + 1}, {p.x, p.y - 1}}
		for _, n := range neighbors {
			if n.x < 0 || n.x >= width || n.y < 0 || n.y >= height {
				continue
			}
			idx := n.y*width + n.x
			if visited[idx] || !withinTolerance(pixels, idx, tr, tg, tb, tolerance) {
				continue
			}
			visited[idx] = true
			stack = append(stack, n)
		}
	}

	return region
}

// regionPlacement converts a region's bounding box to a placement, growing
// it to the minimum printable size when necessary.
func regionPlacement(r *coloredRegion, imageWidth, imageHeight int) (*entity.Placement, bool) {
	if imageWidth < entity.MinQRSize || imageHeight < entity.MinQRSize {
		return nil, false
	}

	x := r.minX
	y := r.minY
	w := r.maxX - r.minX + 1
	h := r.maxY - r.minY + 1

	if w < entity.MinQRSize {
		x -= (entity.MinQRSize - w) / 2
		w = entity.MinQRSize
	}
	if h < entity.MinQRSize {
		y -= (entity.MinQRSize - h) / 2
		h = entity.MinQRSize
	}
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	if x+w > imageWidth {
		x = imageWidth - w
	}
	if y+h > imageHeight {
		y = imageHeight - h
	}

	return &entity.Placement{X: x, Y: y, Width: w, Height: h, Method: entity.MethodColor}, true
}

// withinTolerance reports whether the RGBA pixel at idx is within the
// per-channel tolerance of the target color.
func withinTolerance(pixels []uint8, idx int, tr, tg, tb uint8, tolerance int) bool {
	off := idx * 4
	return absDiff(pixels[off], tr) <= tolerance &&
		absDiff(pixels[off+1], tg) <= tolerance &&
		absDiff(pixels[off+2], tb) <= tolerance
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

// rasterize flattens an image into a packed RGBA byte slice, converting
// 16-bit channels down to 8-bit.
func rasterize(img image.Image) []uint8 {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if rgba, ok := img.(*image.RGBA); ok && rgba.Stride == width*4 && bounds.Min == image.Pt(0, 0) {
		return rgba.Pix
	}

	pixels := make([]uint8, width*height*4)
	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := img.At(x, y).RGBA()
			pixels[i] = uint8(r >> 8)
			pixels[i+1] = uint8(g >> 8)
			pixels[i+2] = uint8(b >> 8)
			pixels[i+3] = uint8(a >> 8)
			i += 4
		}
	}
	return pixels
}

// decodeImage decodes PNG, JPEG, or GIF bytes into an image.
func decodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// normalizeHex ensures the leading '#' colorful.Hex expects.
func normalizeHex(hex string) string {
	if len(hex) > 0 && hex[0] != '#' {
		return "#" + hex
	}
	return hex
}

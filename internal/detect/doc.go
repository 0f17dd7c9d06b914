// Package detect locates QR placement regions on uploaded design images.
//
// Three cooperating pieces live here:
//
//   - DetectColorRegion scans raster pixels for a contiguous block of a
//     target placeholder color using stack-based flood fill.
//   - DetectTextMarker searches OCR-recognized words for a marker string
//     and derives a padded square box around the match.
//   - ResolveAll orchestrates both detectors and reports every successful
//     placement; callers fall back to DefaultPlacement when nothing is found.
//
// Absence of a region is a normal outcome, not an error: detectors return
// DetectionResult with Found=false and reserve the error return for decode
// or OCR failures.
//
// All returned placements satisfy the image-bounds invariant: non-negative
// origin, fully inside the image, and at least entity.MinQRSize pixels per
// side. Candidates that cannot be made to satisfy it are rejected.
package detect

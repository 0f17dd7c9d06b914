package export

import (
	"bytes"
	"fmt"
	"image"
	_ "image/png" // Register PNG format decoder

	"github.com/jung-kurt/gofpdf"

	"github.com/veriqr/veriqr/internal/qr"
)

// A4 portrait dimensions in points.
const (
	a4Width  = 595.28
	a4Height = 841.89
)

// PDF layout modes for ToPDF.
const (
	// LayoutFit scales each image to at most A4 bounds, preserving aspect
	// ratio, centered on an A4 page.
	LayoutFit = "fit"

	// LayoutNative sizes each page to the image's pixel dimensions
	// (1 px = 1 pt).
	LayoutNative = "native"
)

// PDFOptions configures ToPDF.
type PDFOptions struct {
	// Layout is LayoutFit or LayoutNative; empty means LayoutNative.
	Layout string
}

// ToPDF embeds each successful job's image on its own page. Failed jobs are
// skipped silently; they are accounted for in the manifest and statistics,
// not in the PDF.
func (p *Packager) ToPDF(results []qr.Result, opts PDFOptions) ([]byte, error) {
	layout := opts.Layout
	if layout == "" {
		layout = LayoutNative
	}
	if layout != LayoutFit && layout != LayoutNative {
		return nil, fmt.Errorf("unknown pdf layout %q", layout)
	}

	doc := gofpdf.NewCustom(&gofpdf.InitType{UnitStr: "pt", SizeStr: "A4"})
	pages := 0

	for i, r := range results {
		if !r.Success {
			continue
		}
		imgWidth, imgHeight, err := pngDimensions(r.Buffer)
		if err != nil {
			p.log.WithField("product_id", r.ProductID).WithError(err).Warn("skipping undecodable design in PDF export")
			continue
		}

		var pageW, pageH, drawW, drawH float64
		switch layout {
		case LayoutFit:
			pageW, pageH = a4Width, a4Height
			drawW, drawH = fitWithin(float64(imgWidth), float64(imgHeight), a4Width, a4Height)
		case LayoutNative:
			pageW, pageH = float64(imgWidth), float64(imgHeight)
			drawW, drawH = pageW, pageH
		}

		doc.AddPageFormat("P", gofpdf.SizeType{Wd: pageW, Ht: pageH})
		pages++

		name := fmt.Sprintf("design-%d", i)
		imgOpts := gofpdf.ImageOptions{ImageType: "PNG"}
		doc.RegisterImageOptionsReader(name, imgOpts, bytes.NewReader(r.Buffer))
		doc.ImageOptions(name, (pageW-drawW)/2, (pageH-drawH)/2, drawW, drawH, false, imgOpts, 0, "")
	}

	if pages == 0 {
		return nil, fmt.Errorf("no successful designs to export")
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to serialize pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// NUpOptions configures ToNUpPDF.
type NUpOptions struct {
	// Columns and Rows define the per-page grid. Both must be >= 1.
	Columns int
	Rows    int

	// Spacing is the gap in points between cells and around the page edge;
	// negative means the default of 10.
	Spacing float64
}

// ToNUpPDF packs Columns x Rows successful images per A4 page in a grid.
//
// Cell size per axis is (pageDimension - spacing*(cells+1)) / cells. Each
// image is scaled to fit its cell preserving aspect ratio and centered in
// the remaining slack. The final page may hold fewer than capacity images.
func (p *Packager) ToNUpPDF(results []qr.Result, opts NUpOptions) ([]byte, error) {
	if opts.Columns < 1 || opts.Rows < 1 {
		return nil, fmt.Errorf("n-up grid must be at least 1x1, got %dx%d", opts.Columns, opts.Rows)
	}
	spacing := opts.Spacing
	if spacing < 0 {
		spacing = 10
	}

	cellWidth := (a4Width - spacing*float64(opts.Columns+1)) / float64(opts.Columns)
	cellHeight := (a4Height - spacing*float64(opts.Rows+1)) / float64(opts.Rows)
	if cellWidth <= 0 || cellHeight <= 0 {
		return nil, fmt.Errorf("spacing %.1f leaves no room for %dx%d cells", spacing, opts.Columns, opts.Rows)
	}
	perPage := opts.Columns * opts.Rows

	doc := gofpdf.NewCustom(&gofpdf.InitType{UnitStr: "pt", SizeStr: "A4"})
	placed := 0

	for i, r := range results {
		if !r.Success {
			continue
		}
		imgWidth, imgHeight, err := pngDimensions(r.Buffer)
		if err != nil {
			p.log.WithField("product_id", r.ProductID).WithError(err).Warn("skipping undecodable design in PDF export")
			continue
		}

		slot := placed % perPage
		if slot == 0 {
			doc.AddPageFormat("P", gofpdf.SizeType{Wd: a4Width, Ht: a4Height})
		}
		col := slot % opts.Columns
		row := slot / opts.Columns

		cellX := spacing + float64(col)*(cellWidth+spacing)
		cellY := spacing + float64(row)*(cellHeight+spacing)
		drawW, drawH := fitWithin(float64(imgWidth), float64(imgHeight), cellWidth, cellHeight)

		name := fmt.Sprintf("design-%d", i)
		imgOpts := gofpdf.ImageOptions{ImageType: "PNG"}
		doc.RegisterImageOptionsReader(name, imgOpts, bytes.NewReader(r.Buffer))
		doc.ImageOptions(name,
			cellX+(cellWidth-drawW)/2, cellY+(cellHeight-drawH)/2,
			drawW, drawH, false, imgOpts, 0, "")
		placed++
	}

	if placed == 0 {
		return nil, fmt.Errorf("no successful designs to export")
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to serialize pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// fitWithin scales (w, h) uniformly down so it fits inside (maxW, maxH).
// Dimensions already within bounds are returned unchanged.
func fitWithin(w, h, maxW, maxH float64) (float64, float64) {
	if w <= maxW && h <= maxH {
		return w, h
	}
	scale := maxW / w
	if maxH/h < scale {
		scale = maxH / h
	}
	return w * scale, h * scale
}

// pngDimensions reads the pixel dimensions from encoded image bytes.
func pngDimensions(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

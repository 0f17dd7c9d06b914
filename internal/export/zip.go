package export

import (
	"archive/zip"
	"bytes"
	"compress/flate"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/veriqr/veriqr/internal/qr"
)

// DefaultFilenameFormat names ZIP entries by serial number and product id.
// Supported tokens: {productId}, {serialNumber}, {qrHash}, {timestamp}.
const DefaultFilenameFormat = "{serialNumber}_{productId}"

// Packager writes export archives. Failed jobs are skipped with a warning,
// never an error: partial batches still produce a usable archive.
type Packager struct {
	log *logrus.Logger
}

// NewPackager returns a packager logging skip warnings to log.
func NewPackager(log *logrus.Logger) *Packager {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Packager{log: log}
}

// ZipOptions configures ToZip.
type ZipOptions struct {
	// IncludeManifest appends a manifest.json entry summarizing the batch.
	IncludeManifest bool

	// FilenameFormat is the entry name template; empty means
	// DefaultFilenameFormat. The substituted name is sanitized to
	// [a-z0-9._-] and forced to end in ".png".
	FilenameFormat string
}

// ManifestEntry describes one design in the export manifest.
type ManifestEntry struct {
	ProductID    string `json:"product_id"`
	SerialNumber string `json:"serial_number"`
	QRHash       string `json:"qr_hash"`
	Success      bool   `json:"success"`
	Error        string `json:"error,omitempty"`
	Filename     string `json:"filename,omitempty"`
}

// Manifest is the read-only batch summary included as manifest.json.
type Manifest struct {
	Generated         time.Time       `json:"generated"`
	TotalDesigns      int             `json:"total_designs"`
	SuccessfulDesigns int             `json:"successful_designs"`
	FailedDesigns     int             `json:"failed_designs"`
	Designs           []ManifestEntry `json:"designs"`
}

// ToZip streams every successful job's image into a deflate archive at
// maximum compression.
//
// Unsuccessful jobs are skipped with a warning and recorded in the
// manifest. Entry name collisions after sanitization get a numeric suffix
// so no design silently overwrites another.
func (p *Packager) ToZip(results []qr.Result, opts ZipOptions) ([]byte, error) {
	format := opts.FilenameFormat
	if format == "" {
		format = DefaultFilenameFormat
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	manifest := Manifest{
		Generated: time.Now().UTC(),
		Designs:   make([]ManifestEntry, 0, len(results)),
	}
	usedNames := make(map[string]int)

	for _, r := range results {
		manifest.TotalDesigns++
		entry := ManifestEntry{
			ProductID:    r.ProductID,
			SerialNumber: r.SerialNumber,
			QRHash:       r.QRHash,
			Success:      r.Success,
		}

		if !r.Success {
			manifest.FailedDesigns++
			if r.Err != nil {
				entry.Error = r.Err.Error()
			}
			p.log.WithField("product_id", r.ProductID).Warn("skipping failed design in ZIP export")
			manifest.Designs = append(manifest.Designs, entry)
			continue
		}

		name := entryFilename(format, r, manifest.Generated, usedNames)
		entry.Filename = name
		manifest.SuccessfulDesigns++
		manifest.Designs = append(manifest.Designs, entry)

		w, err := zw.Create(name)
		if err != nil {
			return nil, fmt.Errorf("failed to create zip entry %s: %w", name, err)
		}
		if _, err := w.Write(r.Buffer); err != nil {
			return nil, fmt.Errorf("failed to write zip entry %s: %w", name, err)
		}
	}

	if opts.IncludeManifest {
		w, err := zw.Create("manifest.json")
		if err != nil {
			return nil, fmt.Errorf("failed to create manifest entry: %w", err)
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(manifest); err != nil {
			return nil, fmt.Errorf("failed to write manifest: %w", err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize zip: %w", err)
	}
	return buf.Bytes(), nil
}

var invalidFilenameChars = regexp.MustCompile(`[^a-z0-9._-]+`)

// entryFilename substitutes tokens into the format template, sanitizes the
// result, forces a .png suffix, and deduplicates collisions.
func entryFilename(format string, r qr.Result, generated time.Time, used map[string]int) string {
	name := format
	name = strings.ReplaceAll(name, "{productId}", r.ProductID)
	name = strings.ReplaceAll(name, "{serialNumber}", r.SerialNumber)
	name = strings.ReplaceAll(name, "{qrHash}", r.QRHash)
	name = strings.ReplaceAll(name, "{timestamp}", generated.Format("20060102150405"))

	name = strings.ToLower(name)
	name = invalidFilenameChars.ReplaceAllString(name, "-")
	name = strings.Trim(name, "-")
	if name == "" {
		name = "design"
	}
	name = strings.TrimSuffix(name, ".png")

	if n, ok := used[name]; ok {
		used[name] = n + 1
		name = fmt.Sprintf("%s_%d", name, n+1)
	} else {
		used[name] = 0
	}
	return name + ".png"
}

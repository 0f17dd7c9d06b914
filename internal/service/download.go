package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/veriqr/veriqr/internal/entity"
	"github.com/veriqr/veriqr/internal/export"
	"github.com/veriqr/veriqr/internal/qr"
	"github.com/veriqr/veriqr/internal/storage"
)

// Output formats for embedded downloads.
const (
	OutputZip    = "zip"
	OutputPDF    = "pdf"
	OutputNUpPDF = "pdf-nup"
)

// DownloadOptions tunes an embedded download request.
type DownloadOptions struct {
	OutputType      string `json:"output_type"`
	IncludeMetadata bool   `json:"include_metadata"`
	IncludeManifest bool   `json:"include_manifest"`
	FilenameFormat  string `json:"filename_format"`

	// PDFLayout applies to OutputPDF: export.LayoutFit or
	// export.LayoutNative.
	PDFLayout string `json:"pdf_layout"`

	// Columns/Rows/Spacing apply to OutputNUpPDF.
	Columns int     `json:"columns"`
	Rows    int     `json:"rows"`
	Spacing float64 `json:"spacing"`
}

// DownloadResult is returned to the API caller.
type DownloadResult struct {
	DownloadURL  string       `json:"download_url"`
	Count        int          `json:"count"`
	Stats        export.Stats `json:"stats"`
	TemplateName string       `json:"template_name,omitempty"`
}

type DownloadService struct {
	products      ProductStore
	templates     *TemplateService
	blobs         storage.BlobStorage
	packager      *export.Packager
	chunkSize     int
	verifyBaseURL string
	log           *logrus.Logger
}

func NewDownloadService(
	products ProductStore,
	templates *TemplateService,
	blobs storage.BlobStorage,
	packager *export.Packager,
	chunkSize int,
	verifyBaseURL string,
	log *logrus.Logger,
) *DownloadService {
	return &DownloadService{
		products:      products,
		templates:     templates,
		blobs:         blobs,
		packager:      packager,
		chunkSize:     chunkSize,
		verifyBaseURL: verifyBaseURL,
		log:           log,
	}
}

// DownloadQROnly renders a fresh high-resolution QR per product and
// packages them as a ZIP with manifest. Render failures are per-item
// failures; the batch never aborts on one bad product.
func (s *DownloadService) DownloadQROnly(ctx context.Context, companyID string, productIDs []string) (*DownloadResult, error) {
	products, err := s.loadProducts(ctx, companyID, productIDs)
	if err != nil {
		return nil, err
	}

	results := make([]qr.Result, 0, len(products))
	for _, p := range products {
		buf, err := qr.Render(s.qrPayload(p), qr.RenderOptions{HighCorrection: true})
		result := qr.Result{
			ProductID:    p.ID,
			SerialNumber: p.SerialNumber,
			QRHash:       p.QRHash,
		}
		if err != nil {
			result.Err = &qr.ComposeError{ProductID: p.ID, Err: err}
			s.log.WithField("product_id", p.ID).WithError(err).Warn("QR render failed")
		} else {
			result.Success = true
			result.Buffer = buf
		}
		results = append(results, result)
	}

	archive, err := s.packager.ToZip(results, export.ZipOptions{IncludeManifest: true})
	if err != nil {
		return nil, fmt.Errorf("failed to package QR archive: %w", err)
	}

	url, err := s.persistArchive(ctx, companyID, "qr-only", "zip", archive)
	if err != nil {
		return nil, err
	}

	return &DownloadResult{
		DownloadURL: url,
		Count:       len(products),
		Stats:       export.ComputeStats(results),
	}, nil
}

// DownloadEmbedded composites each product's QR onto the company's active
// design template and packages the batch in the requested output format.
//
// Preconditions: productIDs non-empty (validated at the boundary) and an
// active template -- its absence surfaces as entity.ErrNoActiveTemplate,
// which the transport layer maps to the NO_TEMPLATE error code.
func (s *DownloadService) DownloadEmbedded(ctx context.Context, companyID string, productIDs []string, opts DownloadOptions) (*DownloadResult, error) {
	template, err := s.templates.ActiveTemplate(ctx, companyID)
	if err != nil {
		return nil, err
	}

	baseImage, err := s.blobs.Get(ctx, template.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load template image: %w", err)
	}

	products, err := s.loadProducts(ctx, companyID, productIDs)
	if err != nil {
		return nil, err
	}

	jobs := make([]qr.Job, 0, len(products))
	for _, p := range products {
		payload, err := qr.Render(s.qrPayload(p), qr.RenderOptions{})
		if err != nil {
			// Carried into the batch as a pre-failed job via empty payload;
			// Embed will fail it with the product id attached.
			s.log.WithField("product_id", p.ID).WithError(err).Warn("QR render failed")
		}
		jobs = append(jobs, qr.Job{
			ProductID:    p.ID,
			SerialNumber: p.SerialNumber,
			BatchNumber:  p.BatchNumber,
			QRHash:       p.QRHash,
			QRPayload:    payload,
		})
	}

	composer := qr.NewBatchComposer(s.chunkSize, opts.IncludeMetadata, s.log)
	results := composer.GenerateBatch(baseImage, template.QRPlacement, jobs, func(done, total int) {
		s.log.WithFields(logrus.Fields{"done": done, "total": total}).Debug("batch composition progress")
	})

	archive, extension, err := s.packageResults(results, opts)
	if err != nil {
		return nil, err
	}

	url, err := s.persistArchive(ctx, companyID, "embedded", extension, archive)
	if err != nil {
		return nil, err
	}

	return &DownloadResult{
		DownloadURL:  url,
		Count:        len(products),
		Stats:        export.ComputeStats(results),
		TemplateName: template.Name,
	}, nil
}

func (s *DownloadService) packageResults(results []qr.Result, opts DownloadOptions) ([]byte, string, error) {
	switch opts.OutputType {
	case OutputZip, "":
		archive, err := s.packager.ToZip(results, export.ZipOptions{
			IncludeManifest: opts.IncludeManifest,
			FilenameFormat:  opts.FilenameFormat,
		})
		return archive, "zip", err
	case OutputPDF:
		archive, err := s.packager.ToPDF(results, export.PDFOptions{Layout: opts.PDFLayout})
		return archive, "pdf", err
	case OutputNUpPDF:
		columns, rows := opts.Columns, opts.Rows
		if columns == 0 && rows == 0 {
			columns, rows = 2, 2
		}
		archive, err := s.packager.ToNUpPDF(results, export.NUpOptions{
			Columns: columns,
			Rows:    rows,
			Spacing: opts.Spacing,
		})
		return archive, "pdf", err
	default:
		return nil, "", fmt.Errorf("unknown output type %q", opts.OutputType)
	}
}

// loadProducts fetches the requested products scoped to the company and
// rejects requests resolving to zero owned products.
func (s *DownloadService) loadProducts(ctx context.Context, companyID string, productIDs []string) ([]entity.Product, error) {
	if len(productIDs) == 0 {
		return nil, fmt.Errorf("no product ids supplied")
	}
	products, err := s.products.FindByIDs(ctx, companyID, productIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}
	if len(products) == 0 {
		return nil, entity.ErrNotFound
	}
	return products, nil
}

// qrPayload is the URL a consumer's scanner resolves to verify the product.
func (s *DownloadService) qrPayload(p entity.Product) string {
	return s.verifyBaseURL + "/" + p.QRHash
}

// persistArchive stores the archive under a company- and timestamp-keyed
// path and returns its public URL. Storage failure here aborts the whole
// request: there is no meaningful partial result without the blob.
func (s *DownloadService) persistArchive(ctx context.Context, companyID, kind, extension string, data []byte) (string, error) {
	contentType := "application/zip"
	if extension == "pdf" {
		contentType = "application/pdf"
	}
	path := fmt.Sprintf("%s/exports/%s-%s.%s", companyID, kind, time.Now().UTC().Format("20060102-150405"), extension)
	url, err := s.blobs.Put(ctx, path, data, contentType)
	if err != nil {
		return "", fmt.Errorf("failed to persist archive: %w", err)
	}
	return url, nil
}

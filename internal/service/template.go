package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/veriqr/veriqr/internal/detect"
	"github.com/veriqr/veriqr/internal/entity"
	"github.com/veriqr/veriqr/internal/storage"
)

// CreateTemplateInput carries an uploaded design plus the placement
// sources to try. Detection runs once here, at template-creation time; the
// chosen placement is saved and reused for every later export.
type CreateTemplateInput struct {
	Name       string
	ImageBytes []byte

	// PlaceholderColor and TextMarker select detectors, as in
	// detect.ResolveOptions.
	PlaceholderColor string
	Tolerance        int
	TextMarker       string

	// ManualPlacement, when non-nil, is a literal coordinate from the
	// caller (e.g. a CSV import row) and bypasses detection entirely.
	ManualPlacement *entity.Placement
}

type TemplateService struct {
	templates  TemplateStore
	cache      TemplateCacher
	blobs      storage.BlobStorage
	recognizer detect.WordRecognizer
	language   string
	log        *logrus.Logger
}

func NewTemplateService(
	templates TemplateStore,
	cache TemplateCacher,
	blobs storage.BlobStorage,
	recognizer detect.WordRecognizer,
	language string,
	log *logrus.Logger,
) *TemplateService {
	if language == "" {
		language = "eng"
	}
	return &TemplateService{
		templates:  templates,
		cache:      cache,
		blobs:      blobs,
		recognizer: recognizer,
		language:   language,
		log:        log,
	}
}

// ResolvePlacements runs the configured detectors over an image without
// persisting anything. Used by the template-upload preview.
func (s *TemplateService) ResolvePlacements(ctx context.Context, imageBytes []byte, opts detect.ResolveOptions) (*detect.ResolveResult, error) {
	opts.Language = s.language
	return detect.ResolveAll(ctx, s.recognizer, imageBytes, opts)
}

// Create stores the uploaded design, resolves its QR placement, and saves
// the template record (inactive; activation is a separate step).
//
// Placement priority: manual coordinate (confidence 100), then the first
// detector hit, then the centered default box.
func (s *TemplateService) Create(ctx context.Context, companyID string, input CreateTemplateInput) (*entity.DesignTemplate, error) {
	id := uuid.New().String()

	resolved, err := s.ResolvePlacements(ctx, input.ImageBytes, detect.ResolveOptions{
		PlaceholderColor: input.PlaceholderColor,
		Tolerance:        input.Tolerance,
		TextMarker:       input.TextMarker,
	})
	if err != nil {
		return nil, fmt.Errorf("placement resolution: %w", err)
	}

	var placement entity.Placement
	switch {
	case input.ManualPlacement != nil:
		placement = *input.ManualPlacement
		placement.Method = entity.MethodCSV
		placement.Confidence = 100
		if err := placement.Validate(resolved.ImageWidth, resolved.ImageHeight); err != nil {
			return nil, fmt.Errorf("manual placement: %w", err)
		}
	case resolved.Success:
		placement = resolved.Placements[0]
	default:
		placement = detect.DefaultPlacement(resolved.ImageWidth, resolved.ImageHeight, 0)
	}

	path := fmt.Sprintf("%s/templates/%s.png", companyID, id)
	url, err := s.blobs.Put(ctx, path, input.ImageBytes, "image/png")
	if err != nil {
		return nil, fmt.Errorf("failed to store template image: %w", err)
	}

	template := &entity.DesignTemplate{
		ID:               id,
		CompanyID:        companyID,
		Name:             input.Name,
		TemplateURL:      url,
		StoragePath:      path,
		QRPlacement:      placement,
		PlaceholderColor: input.PlaceholderColor,
		PlaceholderText:  input.TextMarker,
		CreatedAt:        time.Now().UTC(),
	}
	if err := s.templates.Create(ctx, template); err != nil {
		return nil, fmt.Errorf("failed to save template: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"template_id": id,
		"method":      placement.Method,
		"confidence":  placement.Confidence,
	}).Info("design template created")
	return template, nil
}

// Activate makes templateID the company's single active template and
// invalidates the cache entry after the transaction commits.
func (s *TemplateService) Activate(ctx context.Context, companyID, templateID string) error {
	if err := s.templates.Activate(ctx, companyID, templateID); err != nil {
		return err
	}
	if err := s.cache.Invalidate(ctx, companyID); err != nil {
		s.log.WithField("company_id", companyID).WithError(err).Warn("failed to invalidate template cache")
	}
	return nil
}

// ActiveTemplate returns the company's active template, serving from cache
// when possible. Cache failures fall through to the database.
func (s *TemplateService) ActiveTemplate(ctx context.Context, companyID string) (*entity.DesignTemplate, error) {
	cached, err := s.cache.Get(ctx, companyID)
	if err != nil {
		s.log.WithError(err).Warn("template cache read failed")
	}
	if cached != nil {
		return cached, nil
	}

	template, err := s.templates.FindActive(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, template); err != nil {
		s.log.WithError(err).Warn("template cache write failed")
	}
	return template, nil
}

package service

import (
	"context"

	"github.com/veriqr/veriqr/internal/entity"
)

// ProductStore is the record-store surface the services need for products.
// Implemented by repository.ProductRepository.
type ProductStore interface {
	Create(ctx context.Context, p *entity.Product) error
	FindByIDs(ctx context.Context, companyID string, ids []string) ([]entity.Product, error)
	FindByQRHash(ctx context.Context, qrHash string) (*entity.Product, error)
	UpdateAnchor(ctx context.Context, companyID, productID, status, txID string) error
}

// TemplateStore is the record-store surface for design templates.
// Implemented by repository.TemplateRepository.
type TemplateStore interface {
	Create(ctx context.Context, t *entity.DesignTemplate) error
	Activate(ctx context.Context, companyID, templateID string) error
	FindActive(ctx context.Context, companyID string) (*entity.DesignTemplate, error)
	FindByID(ctx context.Context, companyID, templateID string) (*entity.DesignTemplate, error)
}

// TemplateCacher caches the per-company active template. Implemented by
// repository.TemplateCache.
type TemplateCacher interface {
	Get(ctx context.Context, companyID string) (*entity.DesignTemplate, error)
	Set(ctx context.Context, t *entity.DesignTemplate) error
	Invalidate(ctx context.Context, companyID string) error
}

// Package service orchestrates the platform's use cases: product
// registration with ledger anchoring, design template lifecycle, and batch
// QR export downloads.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/veriqr/veriqr/internal/entity"
	"github.com/veriqr/veriqr/internal/ledger"
)

// RegisterProductInput is the validated shape for one product registration.
type RegisterProductInput struct {
	Name         string `json:"name" binding:"required"`
	SerialNumber string `json:"serial_number" binding:"required"`
	BatchNumber  string `json:"batch_number"`
}

type ProductService struct {
	products ProductStore
	anchorer ledger.Anchorer
	log      *logrus.Logger
}

func NewProductService(products ProductStore, anchorer ledger.Anchorer, log *logrus.Logger) *ProductService {
	return &ProductService{products: products, anchorer: anchorer, log: log}
}

// Register creates a product record and submits its hash for anchoring.
//
// The database write always completes first. Anchoring failure is logged
// and leaves the product with anchor_status=pending; a background
// reconciler (or re-registration of the anchor alone) can retry later. The
// QR hash is derived from the product's identity fields plus its UUID, so
// it is unique and immutable from the moment of registration.
func (s *ProductService) Register(ctx context.Context, companyID string, input RegisterProductInput) (*entity.Product, error) {
	id := uuid.New().String()

	sum := sha256.Sum256([]byte(companyID + "|" + input.SerialNumber + "|" + input.BatchNumber + "|" + input.Name + "|" + id))
	product := &entity.Product{
		ID:           id,
		CompanyID:    companyID,
		Name:         input.Name,
		SerialNumber: input.SerialNumber,
		BatchNumber:  input.BatchNumber,
		QRHash:       hex.EncodeToString(sum[:]),
		AnchorStatus: entity.AnchorPending,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.products.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("register product: %w", err)
	}

	result, err := s.anchorer.Submit(ctx, product.ID, companyID, product.QRHash)
	if err != nil {
		s.log.WithField("product_id", product.ID).WithError(err).Warn("anchor submission failed, product stays pending")
		return product, nil
	}

	if err := s.products.UpdateAnchor(ctx, companyID, product.ID, entity.AnchorConfirmed, result.TransactionID); err != nil {
		s.log.WithField("product_id", product.ID).WithError(err).Warn("failed to record anchor outcome")
		return product, nil
	}
	product.AnchorStatus = entity.AnchorConfirmed
	product.AnchorTxID = result.TransactionID
	return product, nil
}

// Verify looks up a product by the hash a consumer scanned.
func (s *ProductService) Verify(ctx context.Context, qrHash string) (*entity.Product, error) {
	return s.products.FindByQRHash(ctx, qrHash)
}

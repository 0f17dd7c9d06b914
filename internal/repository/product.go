package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/veriqr/veriqr/internal/entity"
)

type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) Create(ctx context.Context, p *entity.Product) error {
	query := `INSERT INTO products
		(id, company_id, name, serial_number, batch_number, qr_hash, anchor_status, anchor_tx_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.CompanyID, p.Name, p.SerialNumber, p.BatchNumber,
		p.QRHash, p.AnchorStatus, p.AnchorTxID, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert product: %w", err)
	}
	return nil
}

// FindByIDs loads the requested products restricted to the given company.
// IDs belonging to other companies are silently absent from the result;
// tenant isolation lives in the WHERE clause, not in the caller.
func (r *ProductRepository) FindByIDs(ctx context.Context, companyID string, ids []string) ([]entity.Product, error) {
	query := `SELECT id, company_id, name, serial_number, batch_number, qr_hash,
		anchor_status, anchor_tx_id, created_at
		FROM products WHERE company_id = $1 AND id = ANY($2) ORDER BY serial_number`
	rows, err := r.db.QueryContext(ctx, query, companyID, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []entity.Product
	for rows.Next() {
		var p entity.Product
		if err := rows.Scan(&p.ID, &p.CompanyID, &p.Name, &p.SerialNumber, &p.BatchNumber,
			&p.QRHash, &p.AnchorStatus, &p.AnchorTxID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// FindByQRHash looks a product up by its QR hash. Used by the public
// verification endpoint, so it is deliberately not tenant-scoped.
func (r *ProductRepository) FindByQRHash(ctx context.Context, qrHash string) (*entity.Product, error) {
	query := `SELECT id, company_id, name, serial_number, batch_number, qr_hash,
		anchor_status, anchor_tx_id, created_at
		FROM products WHERE qr_hash = $1`
	var p entity.Product
	err := r.db.QueryRowContext(ctx, query, qrHash).Scan(
		&p.ID, &p.CompanyID, &p.Name, &p.SerialNumber, &p.BatchNumber,
		&p.QRHash, &p.AnchorStatus, &p.AnchorTxID, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query product: %w", err)
	}
	return &p, nil
}

// UpdateAnchor records the outcome of a ledger submission. The row-level
// company check prevents cross-tenant mutation.
func (r *ProductRepository) UpdateAnchor(ctx context.Context, companyID, productID, status, txID string) error {
	query := `UPDATE products SET anchor_status = $1, anchor_tx_id = $2
		WHERE id = $3 AND company_id = $4`
	res, err := r.db.ExecContext(ctx, query, status, txID, productID, companyID)
	if err != nil {
		return fmt.Errorf("failed to update anchor status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return entity.ErrNotFound
	}
	return nil
}

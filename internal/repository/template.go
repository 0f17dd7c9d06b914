package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/veriqr/veriqr/internal/entity"
)

type TemplateRepository struct {
	db *sql.DB
}

func NewTemplateRepository(db *sql.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

const templateColumns = `id, company_id, name, template_url, storage_path,
	qr_x, qr_y, qr_width, qr_height, qr_method, qr_confidence,
	placeholder_color, placeholder_text, is_active, created_at`

func (r *TemplateRepository) Create(ctx context.Context, t *entity.DesignTemplate) error {
	query := `INSERT INTO design_templates
		(id, company_id, name, template_url, storage_path,
		 qr_x, qr_y, qr_width, qr_height, qr_method, qr_confidence,
		 placeholder_color, placeholder_text, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	_, err := r.db.ExecContext(ctx, query,
		t.ID, t.CompanyID, t.Name, t.TemplateURL, t.StoragePath,
		t.QRPlacement.X, t.QRPlacement.Y, t.QRPlacement.Width, t.QRPlacement.Height,
		t.QRPlacement.Method, t.QRPlacement.Confidence,
		t.PlaceholderColor, t.PlaceholderText, t.IsActive, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert template: %w", err)
	}
	return nil
}

// Activate makes the given template the company's single active one.
//
// Deactivate-all and activate-one run in one transaction, so a concurrent
// reader can never observe zero active templates mid-toggle.
func (r *TemplateRepository) Activate(ctx context.Context, companyID, templateID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE design_templates SET is_active = FALSE WHERE company_id = $1 AND is_active`,
		companyID); err != nil {
		return fmt.Errorf("failed to deactivate templates: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE design_templates SET is_active = TRUE WHERE id = $1 AND company_id = $2`,
		templateID, companyID)
	if err != nil {
		return fmt.Errorf("failed to activate template: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return entity.ErrNotFound
	}

	return tx.Commit()
}

// FindActive returns the company's active template, or
// entity.ErrNoActiveTemplate when none is set.
func (r *TemplateRepository) FindActive(ctx context.Context, companyID string) (*entity.DesignTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM design_templates
		WHERE company_id = $1 AND is_active`
	t, err := r.scanOne(r.db.QueryRowContext(ctx, query, companyID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNoActiveTemplate
	}
	return t, err
}

func (r *TemplateRepository) FindByID(ctx context.Context, companyID, templateID string) (*entity.DesignTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM design_templates
		WHERE id = $1 AND company_id = $2`
	t, err := r.scanOne(r.db.QueryRowContext(ctx, query, templateID, companyID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	return t, err
}

func (r *TemplateRepository) scanOne(row *sql.Row) (*entity.DesignTemplate, error) {
	var t entity.DesignTemplate
	err := row.Scan(&t.ID, &t.CompanyID, &t.Name, &t.TemplateURL, &t.StoragePath,
		&t.QRPlacement.X, &t.QRPlacement.Y, &t.QRPlacement.Width, &t.QRPlacement.Height,
		&t.QRPlacement.Method, &t.QRPlacement.Confidence,
		&t.PlaceholderColor, &t.PlaceholderText, &t.IsActive, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Package repository implements the record store on PostgreSQL with a
// Redis cache for the per-company active template.
//
// Every product query is tenant-scoped: ownership is enforced by filtering
// on company_id in SQL, never by trusting client-supplied identifiers.
package repository

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/veriqr/veriqr/internal/config"
)

// NewPostgresDB opens and pings a PostgreSQL connection pool.
func NewPostgresDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// RunMigrations creates the schema when missing.
func RunMigrations(db *sql.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS products (
			id UUID PRIMARY KEY,
			company_id UUID NOT NULL,
			name VARCHAR(255) NOT NULL,
			serial_number VARCHAR(255) NOT NULL,
			batch_number VARCHAR(255) NOT NULL DEFAULT '',
			qr_hash VARCHAR(64) UNIQUE NOT NULL,
			anchor_status VARCHAR(20) NOT NULL DEFAULT 'pending',
			anchor_tx_id VARCHAR(255) NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS design_templates (
			id UUID PRIMARY KEY,
			company_id UUID NOT NULL,
			name VARCHAR(255) NOT NULL,
			template_url TEXT NOT NULL,
			storage_path TEXT NOT NULL,
			qr_x INTEGER NOT NULL,
			qr_y INTEGER NOT NULL,
			qr_width INTEGER NOT NULL,
			qr_height INTEGER NOT NULL,
			qr_method VARCHAR(20) NOT NULL,
			qr_confidence DOUBLE PRECISION NOT NULL,
			placeholder_color VARCHAR(9) NOT NULL DEFAULT '',
			placeholder_text VARCHAR(255) NOT NULL DEFAULT '',
			is_active BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_products_company_id ON products(company_id)`,
		`CREATE INDEX IF NOT EXISTS idx_products_qr_hash ON products(qr_hash)`,
		`CREATE INDEX IF NOT EXISTS idx_templates_company_active ON design_templates(company_id, is_active)`,
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}
	return nil
}

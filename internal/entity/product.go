package entity

import "time"

// Anchor lifecycle states for a product's ledger submission.
const (
	AnchorPending   = "pending"
	AnchorConfirmed = "confirmed"
)

// Product is a registered physical item owned by a company. QRHash is the
// immutable SHA-256 payload the product's QR code encodes; it never changes
// after registration, so QR renders are safe to regenerate at any time.
type Product struct {
	ID           string    `json:"id"`
	CompanyID    string    `json:"company_id"`
	Name         string    `json:"name"`
	SerialNumber string    `json:"serial_number"`
	BatchNumber  string    `json:"batch_number"`
	QRHash       string    `json:"qr_hash"`
	AnchorStatus string    `json:"anchor_status"`
	AnchorTxID   string    `json:"anchor_tx_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

package entity

import "time"

// DesignTemplate is an uploaded banner/label design with a saved QR
// placement. At most one template per company is active at a time; the
// active one is used for embedded exports.
type DesignTemplate struct {
	ID          string    `json:"id"`
	CompanyID   string    `json:"company_id"`
	Name        string    `json:"name"`
	TemplateURL string    `json:"template_url"`
	StoragePath string    `json:"storage_path"`
	QRPlacement Placement `json:"qr_placement"`

	// PlaceholderColor and PlaceholderText record the detection options the
	// template was created with. Empty when the placement came from a manual
	// coordinate or the default box.
	PlaceholderColor string `json:"placeholder_color,omitempty"`
	PlaceholderText  string `json:"placeholder_text,omitempty"`

	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

package transport

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/veriqr/veriqr/internal/detect"
	"github.com/veriqr/veriqr/internal/entity"
	"github.com/veriqr/veriqr/internal/service"
)

func (h *Handler) RegisterProduct(c *gin.Context) {
	company, ok := companyID(c)
	if !ok {
		return
	}

	var input service.RegisterProductInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, http.StatusBadRequest, err.Error(), entity.CodeInvalidInput)
		return
	}

	product, err := h.products.Register(c.Request.Context(), company, input)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "product": product})
}

func (h *Handler) VerifyProduct(c *gin.Context) {
	product, err := h.products.Verify(c.Request.Context(), c.Param("hash"))
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"authentic": true,
		"product": gin.H{
			"name":          product.Name,
			"serial_number": product.SerialNumber,
			"batch_number":  product.BatchNumber,
			"anchor_status": product.AnchorStatus,
			"anchor_tx_id":  product.AnchorTxID,
			"registered_at": product.CreatedAt,
		},
	})
}

// CreateTemplate accepts a multipart upload: the design image plus
// optional detection parameters and an optional manual placement.
func (h *Handler) CreateTemplate(c *gin.Context) {
	company, ok := companyID(c)
	if !ok {
		return
	}

	imageBytes, ok := readUpload(c)
	if !ok {
		return
	}

	input := service.CreateTemplateInput{
		Name:             c.PostForm("name"),
		ImageBytes:       imageBytes,
		PlaceholderColor: c.PostForm("placeholder_color"),
		TextMarker:       c.PostForm("text_marker"),
	}
	if tolerance := c.PostForm("tolerance"); tolerance != "" {
		v, err := strconv.Atoi(tolerance)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid tolerance", entity.CodeInvalidInput)
			return
		}
		input.Tolerance = v
	}
	if placement, ok := readManualPlacement(c); ok {
		input.ManualPlacement = placement
	}
	if input.Name == "" {
		respondError(c, http.StatusBadRequest, "template name is required", entity.CodeInvalidInput)
		return
	}

	template, err := h.templates.Create(c.Request.Context(), company, input)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "template": template})
}

// ResolveTemplate previews placement detection without saving anything.
func (h *Handler) ResolveTemplate(c *gin.Context) {
	if _, ok := companyID(c); !ok {
		return
	}

	imageBytes, ok := readUpload(c)
	if !ok {
		return
	}

	opts := detect.ResolveOptions{
		PlaceholderColor: c.PostForm("placeholder_color"),
		TextMarker:       c.PostForm("text_marker"),
	}
	result, err := h.templates.ResolvePlacements(c.Request.Context(), imageBytes, opts)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	// Report the fallback the caller would get, without pretending a
	// detector produced it.
	response := gin.H{"success": true, "resolution": result}
	if !result.Success {
		response["default_placement"] = detect.DefaultPlacement(result.ImageWidth, result.ImageHeight, 0)
	}
	c.JSON(http.StatusOK, response)
}

func (h *Handler) ActivateTemplate(c *gin.Context) {
	company, ok := companyID(c)
	if !ok {
		return
	}

	if err := h.templates.Activate(c.Request.Context(), company, c.Param("id")); err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) ActiveTemplate(c *gin.Context) {
	company, ok := companyID(c)
	if !ok {
		return
	}

	template, err := h.templates.ActiveTemplate(c.Request.Context(), company)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "template": template})
}

// downloadRequest is the produced download interface: qr-only or embedded,
// zip or pdf output.
type downloadRequest struct {
	ProductIDs []string `json:"product_ids" binding:"required"`
	Format     string   `json:"format"` // "qr-only" or "embedded"

	service.DownloadOptions
}

func (h *Handler) Download(c *gin.Context) {
	company, ok := companyID(c)
	if !ok {
		return
	}

	var req downloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error(), entity.CodeInvalidInput)
		return
	}
	if len(req.ProductIDs) == 0 {
		respondError(c, http.StatusBadRequest, "product_ids must not be empty", entity.CodeInvalidInput)
		return
	}

	var (
		result *service.DownloadResult
		err    error
	)
	switch req.Format {
	case "embedded":
		result, err = h.downloads.DownloadEmbedded(c.Request.Context(), company, req.ProductIDs, req.DownloadOptions)
	case "qr-only", "":
		result, err = h.downloads.DownloadQROnly(c.Request.Context(), company, req.ProductIDs)
	default:
		respondError(c, http.StatusBadRequest, "format must be qr-only or embedded", entity.CodeInvalidInput)
		return
	}
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"download_url":  result.DownloadURL,
		"count":         result.Count,
		"stats":         result.Stats,
		"template_name": result.TemplateName,
	})
}

func readUpload(c *gin.Context) ([]byte, bool) {
	file, err := c.FormFile("image")
	if err != nil {
		respondError(c, http.StatusBadRequest, "no image file provided", entity.CodeInvalidInput)
		return nil, false
	}
	src, err := file.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, "failed to open upload", entity.CodeInvalidInput)
		return nil, false
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		respondError(c, http.StatusBadRequest, "failed to read upload", entity.CodeInvalidInput)
		return nil, false
	}
	return data, true
}

// readManualPlacement parses optional literal placement coordinates from
// form fields. All four fields must be present together.
func readManualPlacement(c *gin.Context) (*entity.Placement, bool) {
	fields := []string{"qr_x", "qr_y", "qr_width", "qr_height"}
	values := make([]int, len(fields))
	for i, name := range fields {
		raw := c.PostForm(name)
		if raw == "" {
			return nil, false
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return nil, false
		}
		values[i] = v
	}
	return &entity.Placement{X: values[0], Y: values[1], Width: values[2], Height: values[3]}, true
}

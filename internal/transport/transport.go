// Package transport wires the HTTP API.
//
// Authentication and session management are handled upstream (gateway);
// handlers read the authenticated company from the X-Company-ID header set
// by it. Tenant isolation is still enforced again in every repository
// query.
package transport

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/veriqr/veriqr/internal/entity"
	"github.com/veriqr/veriqr/internal/service"
)

type Handler struct {
	products  *service.ProductService
	templates *service.TemplateService
	downloads *service.DownloadService
	log       *logrus.Logger
}

func NewHandler(
	products *service.ProductService,
	templates *service.TemplateService,
	downloads *service.DownloadService,
	log *logrus.Logger,
) *Handler {
	return &Handler{products: products, templates: templates, downloads: downloads, log: log}
}

// InitRoutes builds the router. filesDir, when non-empty, is served under
// /files so generated archives and templates are retrievable.
func InitRoutes(h *Handler, mode, filesDir string) *gin.Engine {
	gin.SetMode(mode)
	router := gin.New()
	router.Use(gin.Recovery())

	api := router.Group("/api")
	{
		api.POST("/products", h.RegisterProduct)
		api.GET("/verify/:hash", h.VerifyProduct)

		api.POST("/templates", h.CreateTemplate)
		api.POST("/templates/resolve", h.ResolveTemplate)
		api.POST("/templates/:id/activate", h.ActivateTemplate)
		api.GET("/templates/active", h.ActiveTemplate)

		api.POST("/downloads", h.Download)
	}

	if filesDir != "" {
		router.Static("/files", filesDir)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "veriqr"})
	})

	return router
}

// errorResponse is the uniform failure shape. Code is present only for
// errors callers are expected to branch on.
type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
}

func respondError(c *gin.Context, status int, message, code string) {
	c.JSON(status, errorResponse{Success: false, Error: message, Code: code})
}

// respondServiceError translates service-layer errors to the boundary
// shape. Precondition errors carry distinguishing codes; everything else is
// a generic failure.
func respondServiceError(c *gin.Context, log *logrus.Logger, err error) {
	switch {
	case errors.Is(err, entity.ErrNoActiveTemplate):
		respondError(c, http.StatusPreconditionFailed, err.Error(), entity.CodeNoTemplate)
	case errors.Is(err, entity.ErrNotFound):
		respondError(c, http.StatusNotFound, err.Error(), entity.CodeNotFound)
	default:
		log.WithError(err).Error("request failed")
		respondError(c, http.StatusInternalServerError, err.Error(), "")
	}
}

// companyID extracts the authenticated company or fails the request.
func companyID(c *gin.Context) (string, bool) {
	id := c.GetHeader("X-Company-ID")
	if id == "" {
		respondError(c, http.StatusUnauthorized, "missing company identity", entity.CodeInvalidInput)
		return "", false
	}
	return id, true
}

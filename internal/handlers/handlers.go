// Package handlers implements the HTTP surface of the Stremio addon.
package handlers

import (
	"context"
	"net/http"

	"github.com/amaumene/gostremiodebrid/internal/models"
	"github.com/amaumene/gostremiodebrid/internal/services"
	"github.com/amaumene/gostremiodebrid/pkg/logger"
	"github.com/gin-gonic/gin"
)

// StreamResolver is the pipeline entry point the stream routes call.
type StreamResolver interface {
	ResolveStreams(ctx context.Context, req services.Request) (models.StreamResponse, error)
}

// Handler handles HTTP requests for the Stremio addon.
type Handler struct {
	streams   StreamResolver
	providers []string
	logger    logger.Logger
}

// New creates a Handler. providers lists the names offered on the configure page.
func New(streams StreamResolver, providers []string, log logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{streams: streams, providers: providers, logger: log}
}

// RegisterRoutes registers all HTTP routes for the Stremio addon.
func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/", h.handleHome)
	r.GET("/health", h.handleHealth)

	r.GET("/configure", h.handleConfigure)
	r.GET("/:configuration/configure", h.handleConfigure)

	r.GET("/manifest.json", h.handleManifest)
	r.GET("/:configuration/manifest.json", h.handleManifest)

	// query parameter configuration
	r.GET("/stream/:type/:id", h.handleStream)
	// base64 JSON path configuration
	r.GET("/:configuration/stream/:type/:id", h.handleStreamWithConfig)
}

func (h *Handler) handleHome(c *gin.Context) {
	c.Redirect(http.StatusFound, "/configure")
}

func (h *Handler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

package handlers

import (
	"net/http"

	"github.com/amaumene/gostremiodebrid/internal/config"
	apperrors "github.com/amaumene/gostremiodebrid/internal/errors"
	"github.com/amaumene/gostremiodebrid/internal/services"
	"github.com/gin-gonic/gin"
)

func (h *Handler) handleStream(c *gin.Context) {
	cfg, err := config.UserConfigFromQuery(c.Request.URL.Query())
	if err != nil {
		writeStreamError(c, apperrors.NewValidationError(err.Error()))
		return
	}
	h.serveStream(c, cfg)
}

func (h *Handler) handleStreamWithConfig(c *gin.Context) {
	cfg, err := config.DecodeUserConfig(c.Param("configuration"))
	if err != nil {
		writeStreamError(c, apperrors.NewConfigurationError("Invalid configuration", err))
		return
	}
	h.serveStream(c, cfg)
}

func (h *Handler) serveStream(c *gin.Context, cfg config.UserConfig) {
	id := stripJSONExtension(c, "id")
	mediaType := c.Param("type")

	resp, err := h.streams.ResolveStreams(c.Request.Context(), services.Request{
		MediaType:     mediaType,
		ID:            id,
		StreamService: cfg.StreamService,
		IndexerURL:    cfg.JackettURL,
		IndexerAPIKey: cfg.JackettAPIKey,
		DebridAPIKey:  cfg.DebridAPIKey,
		MaxResults:    cfg.MaxResults,
	})
	if err != nil {
		h.logger.Warnf("[Handler] stream request %s %s rejected: %v", mediaType, id, err)
		writeStreamError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

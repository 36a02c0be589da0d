package handlers

import (
	"net/http"

	"github.com/amaumene/gostremiodebrid/internal/constants"
	"github.com/amaumene/gostremiodebrid/internal/models"
	"github.com/gin-gonic/gin"
)

func (h *Handler) handleManifest(c *gin.Context) {
	c.JSON(http.StatusOK, createManifest())
}

func createManifest() models.Manifest {
	return models.Manifest{
		ID:          constants.AddonID,
		Version:     constants.AddonVersion,
		Name:        constants.AddonName,
		Description: constants.AddonDescription,
		Types:       []string{constants.MediaTypeMovie, constants.MediaTypeSeries},
		Resources:   []string{"stream"},
		Catalogs:    []models.Catalog{},
		BehaviorHints: models.BehaviorHints{
			Configurable: true,
		},
		IDPrefixes: []string{"tt"},
		Logo:       constants.AddonLogo,
	}
}

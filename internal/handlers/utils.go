package handlers

import (
	"errors"
	"net/http"
	"strings"

	apperrors "github.com/amaumene/gostremiodebrid/internal/errors"
	"github.com/amaumene/gostremiodebrid/internal/models"
	"github.com/gin-gonic/gin"
)

// stripJSONExtension removes a trailing .json from a path parameter.
func stripJSONExtension(c *gin.Context, paramName string) string {
	value := strings.TrimSuffix(c.Param(paramName), ".json")
	for i, param := range c.Params {
		if param.Key == paramName {
			c.Params[i].Value = value
			break
		}
	}
	return value
}

// statusFor maps pipeline errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case apperrors.IsValidation(err), apperrors.IsType(err, apperrors.ErrorTypeConfigurationInvalid):
		return http.StatusBadRequest
	case apperrors.IsAuth(err):
		return http.StatusUnauthorized
	default:
		return http.StatusOK
	}
}

// errorMessage is the caller-facing part of err, without the type prefix or cause.
func errorMessage(err error) string {
	var se *apperrors.StreamError
	if errors.As(err, &se) {
		return se.Message
	}
	return err.Error()
}

func writeStreamError(c *gin.Context, err error) {
	c.JSON(statusFor(err), models.StreamResponse{Streams: []models.Stream{}, Error: errorMessage(err)})
}

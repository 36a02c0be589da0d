// Package security sanitizes and masks user-supplied credentials.
package security

import (
	"regexp"
	"strings"
)

var (
	validKeyPattern  = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	unsafeKeyPattern = regexp.MustCompile(`[^a-zA-Z0-9_-]`)
)

// APIKeyValidator provides validation and handling of API keys
type APIKeyValidator struct {
	minLength int
	maxLength int
}

func NewAPIKeyValidator() *APIKeyValidator {
	return &APIKeyValidator{
		minLength: 8,
		maxLength: 128,
	}
}

// ValidateAPIKey checks length bounds and the allowed character set.
func (v *APIKeyValidator) ValidateAPIKey(apiKey string) bool {
	if len(apiKey) < v.minLength || len(apiKey) > v.maxLength {
		return false
	}
	return validKeyPattern.MatchString(apiKey)
}

// SanitizeAPIKey trims whitespace and strips characters unsafe for URLs and headers.
func (v *APIKeyValidator) SanitizeAPIKey(apiKey string) string {
	return unsafeKeyPattern.ReplaceAllString(strings.TrimSpace(apiKey), "")
}

// MaskAPIKey shows only the first and last three characters.
func (v *APIKeyValidator) MaskAPIKey(apiKey string) string {
	if len(apiKey) == 0 {
		return "[empty]"
	}
	if len(apiKey) <= 8 {
		return "[***]"
	}
	return apiKey[:3] + "..." + apiKey[len(apiKey)-3:]
}

package config

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/amaumene/gostremiodebrid/internal/constants"
)

// UserConfig is the per-request configuration a Stremio client sends, either as
// query parameters or as a base64 JSON path segment.
type UserConfig struct {
	StreamService string `json:"streamService"`
	JackettURL    string `json:"jackettUrl"`
	JackettAPIKey string `json:"jackettApiKey"`
	DebridAPIKey  string `json:"debridApiKey"`
	MaxResults    int    `json:"maxResults"`
}

// DecodeUserConfig parses the base64 (standard or URL alphabet) JSON segment.
func DecodeUserConfig(encoded string) (UserConfig, error) {
	var cfg UserConfig

	data, err := decodeBase64(encoded)
	if err != nil {
		return cfg, fmt.Errorf("configuration is not base64: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("configuration is not JSON: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

// UserConfigFromQuery reads streamService, jackettUrl, jackettApiKey,
// debridApiKey and maxResults query parameters.
func UserConfigFromQuery(values url.Values) (UserConfig, error) {
	cfg := UserConfig{
		StreamService: values.Get("streamService"),
		JackettURL:    values.Get("jackettUrl"),
		JackettAPIKey: values.Get("jackettApiKey"),
		DebridAPIKey:  values.Get("debridApiKey"),
	}
	if raw := strings.TrimSpace(values.Get("maxResults")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return cfg, fmt.Errorf("maxResults must be an integer: %q", raw)
		}
		cfg.MaxResults = n
	}
	cfg.normalize()
	return cfg, nil
}

// Encode renders the configuration as the path segment DecodeUserConfig accepts.
func (u UserConfig) Encode() string {
	data, _ := json.Marshal(u)
	return base64.URLEncoding.EncodeToString(data)
}

func (u *UserConfig) normalize() {
	u.StreamService = strings.ToLower(strings.TrimSpace(u.StreamService))
	u.JackettURL = strings.TrimRight(strings.TrimSpace(u.JackettURL), "/")
	u.JackettAPIKey = strings.TrimSpace(u.JackettAPIKey)
	u.DebridAPIKey = strings.TrimSpace(u.DebridAPIKey)
	if u.MaxResults == 0 {
		u.MaxResults = constants.DefaultMaxResults
	}
	if u.MaxResults > constants.MaxAllowedResults {
		u.MaxResults = constants.MaxAllowedResults
	}
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding,
	} {
		if data, err := enc.DecodeString(s); err == nil {
			return data, nil
		}
	}
	return nil, fmt.Errorf("invalid base64 segment")
}

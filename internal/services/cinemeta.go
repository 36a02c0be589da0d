package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/amaumene/gostremiodebrid/internal/cache"
	"github.com/amaumene/gostremiodebrid/internal/constants"
	"github.com/amaumene/gostremiodebrid/internal/metrics"
	"github.com/amaumene/gostremiodebrid/internal/models"
	"github.com/amaumene/gostremiodebrid/pkg/logger"
)

// MetadataClient looks up title metadata. A nil result with a nil error is a
// normal "not found".
type MetadataClient interface {
	GetMediaInfo(ctx context.Context, imdbID, mediaType string) (*models.MediaInfo, error)
}

// Cinemeta queries the Stremio Cinemeta addon, caching hits.
type Cinemeta struct {
	baseURL    string
	httpClient *http.Client
	cache      cache.Cache
	logger     logger.Logger
}

func NewCinemeta(baseURL string, httpClient *http.Client, c cache.Cache, log logger.Logger) *Cinemeta {
	if log == nil {
		log = logger.Nop()
	}
	return &Cinemeta{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		cache:      c,
		logger:     log,
	}
}

func (m *Cinemeta) GetMediaInfo(ctx context.Context, imdbID, mediaType string) (*models.MediaInfo, error) {
	cacheKey := fmt.Sprintf("meta:%s:%s", mediaType, imdbID)

	if m.cache != nil {
		if raw, found := m.cache.Get(ctx, cacheKey); found {
			var info models.MediaInfo
			if err := json.Unmarshal(raw, &info); err == nil {
				metrics.MetadataCacheTotal.WithLabelValues("hit").Inc()
				return &info, nil
			}
		}
		metrics.MetadataCacheTotal.WithLabelValues("miss").Inc()
	}

	endpoint := fmt.Sprintf("%s/meta/%s/%s.json", m.baseURL, url.PathEscape(mediaType), url.PathEscape(imdbID))
	m.logger.Debugf("[Cinemeta] fetching info for %s %s", mediaType, imdbID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build metadata request: %w", err)
	}
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch metadata: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("metadata API error: status %d", resp.StatusCode)
	}

	var payload struct {
		Meta *models.MediaInfo `json:"meta"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, constants.MaxAPIBody)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode metadata response: %w", err)
	}
	if payload.Meta == nil || strings.TrimSpace(payload.Meta.Name) == "" {
		return nil, nil
	}

	if m.cache != nil {
		if raw, err := json.Marshal(payload.Meta); err == nil {
			m.cache.Set(ctx, cacheKey, raw)
		}
	}
	return payload.Meta, nil
}

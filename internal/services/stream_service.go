package services

import (
	"context"
	"strings"
	"time"

	"github.com/amaumene/gostremiodebrid/internal/constants"
	"github.com/amaumene/gostremiodebrid/internal/debrid"
	apperrors "github.com/amaumene/gostremiodebrid/internal/errors"
	"github.com/amaumene/gostremiodebrid/internal/indexer"
	"github.com/amaumene/gostremiodebrid/internal/metrics"
	"github.com/amaumene/gostremiodebrid/internal/models"
	"github.com/amaumene/gostremiodebrid/internal/query"
	"github.com/amaumene/gostremiodebrid/internal/ranker"
	"github.com/amaumene/gostremiodebrid/internal/stream"
	"github.com/amaumene/gostremiodebrid/internal/telemetry"
	"github.com/amaumene/gostremiodebrid/pkg/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const mediaInfoErrorMessage = "Error getting media info"

// TorrentSearcher fans a query out to the configured indexers.
type TorrentSearcher interface {
	Search(ctx context.Context, req indexer.Request) []models.Torrent
}

// ProviderLookup returns the debrid provider registered under a name.
type ProviderLookup interface {
	Get(name string) (debrid.Service, error)
}

// Request is one stream lookup as received from a Stremio client.
type Request struct {
	MediaType     string
	ID            string // "tt123" or "tt123:season:episode"
	StreamService string
	IndexerURL    string
	IndexerAPIKey string
	DebridAPIKey  string
	MaxResults    int
}

// StreamService runs the search, rank and resolve pipeline for one request.
type StreamService struct {
	metadata  MetadataClient
	searcher  TorrentSearcher
	providers ProviderLookup
	ranking   ranker.Options
	timeout   time.Duration
	logger    logger.Logger

	metadataTimeout time.Duration
}

func NewStreamService(metadata MetadataClient, searcher TorrentSearcher, providers ProviderLookup, ranking ranker.Options, timeout time.Duration, log logger.Logger) *StreamService {
	if timeout <= 0 {
		timeout = constants.RequestTimeout
	}
	if log == nil {
		log = logger.Nop()
	}
	return &StreamService{
		metadata:  metadata,
		searcher:  searcher,
		providers: providers,
		ranking:   ranking,
		timeout:   timeout,
		logger:    log,

		metadataTimeout: constants.MetadataTimeout,
	}
}

// SetMetadataTimeout bounds the metadata lookup. Values <= 0 are ignored.
func (s *StreamService) SetMetadataTimeout(d time.Duration) {
	if d > 0 {
		s.metadataTimeout = d
	}
}

type target struct {
	imdbID  string
	season  int
	episode int
	series  bool
}

// ResolveStreams returns the playable streams for a title. Only malformed
// requests and rejected debrid credentials produce an error; every other
// failure yields a (possibly empty) response.
func (s *StreamService) ResolveStreams(ctx context.Context, req Request) (models.StreamResponse, error) {
	start := time.Now()

	tgt, err := validate(req)
	if err != nil {
		return models.StreamResponse{}, err
	}
	provider, err := s.providers.Get(req.StreamService)
	if err != nil {
		return models.StreamResponse{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ctx, span := telemetry.Tracer().Start(ctx, "ResolveStreams")
	defer span.End()
	span.SetAttributes(
		attribute.String("media.type", req.MediaType),
		attribute.String("media.id", req.ID),
		attribute.String("debrid.provider", provider.Name()),
	)

	info := s.mediaInfo(ctx, tgt.imdbID, req.MediaType)
	if info == nil {
		span.SetStatus(codes.Error, mediaInfoErrorMessage)
		return models.StreamResponse{Streams: []models.Stream{}, Error: mediaInfoErrorMessage}, nil
	}

	q := query.Build(*info, req.MediaType, tgt.season, tgt.episode)
	limit := indexer.RequestLimit(req.MaxResults)

	torrents := s.searcher.Search(ctx, indexer.Request{
		Query:   q,
		IMDBID:  tgt.imdbID,
		Limit:   limit,
		BaseURL: req.IndexerURL,
		APIKey:  req.IndexerAPIKey,
	})
	ranked := ranker.Rank(torrents, q, s.ranking, limit)
	s.logger.Debugf("[StreamService] %d torrents, %d ranked for %q", len(torrents), len(ranked), q.Name)

	var filter *debrid.EpisodeFilter
	if tgt.series {
		filter = &debrid.EpisodeFilter{Season: tgt.season, Episode: tgt.episode}
	}

	links, err := provider.Resolve(ctx, ranked, req.DebridAPIKey, filter, req.MaxResults)
	if err != nil {
		if apperrors.IsAuth(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "debrid authentication failed")
			return models.StreamResponse{}, err
		}
		s.logger.Warnf("[StreamService] %v", apperrors.NewResolveError(provider.Name()+" resolution failed", err))
		links = nil
	}

	streams := stream.Assemble(info.Name, links, req.MaxResults)
	metrics.StreamsReturned.Observe(float64(len(streams)))
	span.SetAttributes(attribute.Int("streams.count", len(streams)))

	s.logger.Infof("found %d streams for %s %s in %v", len(streams), req.MediaType, req.ID, time.Since(start).Round(time.Millisecond))
	return models.StreamResponse{Streams: streams}, nil
}

func (s *StreamService) mediaInfo(ctx context.Context, imdbID, mediaType string) *models.MediaInfo {
	ctx, cancel := context.WithTimeout(ctx, s.metadataTimeout)
	defer cancel()

	info, err := s.metadata.GetMediaInfo(ctx, imdbID, mediaType)
	if err != nil {
		s.logger.Warnf("[StreamService] %v", apperrors.NewMediaNotFoundError(imdbID, err))
		return nil
	}
	if info == nil {
		s.logger.Infof("[StreamService] no media info for %s %s", mediaType, imdbID)
	}
	return info
}

func validate(req Request) (target, error) {
	var tgt target

	switch req.MediaType {
	case constants.MediaTypeMovie:
	case constants.MediaTypeSeries:
		tgt.series = true
	default:
		return tgt, apperrors.NewValidationError("Invalid type. Valid types are movie and series")
	}

	imdbID, season, episode, err := query.ParseID(req.ID)
	if err != nil {
		return tgt, err
	}
	if tgt.series && strings.Count(req.ID, ":") != 2 {
		return tgt, apperrors.NewValidationError("series requests need a season and an episode")
	}
	if !tgt.series && strings.Contains(req.ID, ":") {
		return tgt, apperrors.NewInvalidIDError(req.ID)
	}
	if req.MaxResults < 1 {
		return tgt, apperrors.NewValidationError("maxResults must be at least 1")
	}
	if strings.TrimSpace(req.IndexerURL) == "" {
		return tgt, apperrors.NewValidationError("jackettUrl is required")
	}

	tgt.imdbID, tgt.season, tgt.episode = imdbID, season, episode
	return tgt, nil
}

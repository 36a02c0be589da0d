// Package services wires the stream pipeline and its long-lived collaborators.
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/amaumene/gostremiodebrid/internal/cache"
	"github.com/amaumene/gostremiodebrid/internal/config"
	"github.com/amaumene/gostremiodebrid/internal/database"
	"github.com/amaumene/gostremiodebrid/internal/debrid"
	"github.com/amaumene/gostremiodebrid/internal/indexer"
	"github.com/amaumene/gostremiodebrid/internal/ranker"
	"github.com/amaumene/gostremiodebrid/pkg/httputil"
	"github.com/amaumene/gostremiodebrid/pkg/logger"
)

const upstreamHTTPTimeout = 30 * time.Second

// Container holds all application services for dependency injection.
type Container struct {
	Metadata  MetadataClient
	Cache     cache.Cache
	DB        database.Database
	Logger    logger.Logger
	Providers *debrid.Registry
	Indexers  *indexer.Aggregator
	Streams   *StreamService
	Cleanup   *CleanupService
}

// NewContainer builds every service from cfg. db may be nil, in which case
// uploads are not tracked and no cleanup runs.
func NewContainer(cfg *config.Config, db database.Database, log logger.Logger) (*Container, error) {
	if log == nil {
		log = logger.Nop()
	}

	metaCache, err := cache.New(cfg.Cache.Provider, cache.Options{
		Size:          cfg.Cache.Size,
		TTL:           cfg.Cache.TTL,
		RedisAddress:  cfg.Redis.Address,
		RedisPassword: cfg.Redis.Password,
		RedisDB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create metadata cache: %w", err)
	}

	httpClient := httputil.NewHTTPClient(upstreamHTTPTimeout)

	opts := debrid.Options{
		HTTPClient:    httpClient,
		Logger:        log,
		Concurrency:   cfg.Debrid.Concurrency,
		RetryAttempts: cfg.Debrid.RetryAttempts,
		PollTimeout:   cfg.Debrid.PollTimeout,
		PollInterval:  cfg.Debrid.PollInterval,
	}
	if db != nil {
		opts.Store = db
	}
	providers := debrid.NewRegistry(opts)

	metadata := NewCinemeta(cfg.Metadata.BaseURL, httpClient, metaCache, log)
	aggregator := indexer.NewAggregator(indexer.NewClient(httpClient), cfg.Indexer.Timeout, cfg.Indexer.Concurrency, log)

	streams := NewStreamService(metadata, aggregator, providers, RankingOptions(cfg), 0, log)
	streams.SetMetadataTimeout(cfg.Metadata.Timeout)

	c := &Container{
		Metadata:  metadata,
		Cache:     metaCache,
		DB:        db,
		Logger:    log,
		Providers: providers,
		Indexers:  aggregator,
		Streams:   streams,
	}

	if db != nil {
		c.Cleanup = NewCleanupService(db, providers, log)
		c.Cleanup.SetInterval(cfg.Cleanup.Interval)
		c.Cleanup.SetRetentionPeriod(cfg.Cleanup.Retention)
	}
	return c, nil
}

// RankingOptions maps the ranking section of the config onto ranker options.
func RankingOptions(cfg *config.Config) ranker.Options {
	opts := ranker.DefaultOptions()
	r := cfg.Ranking
	if r.SeedersWeight > 0 || r.SimilarityWeight > 0 || r.SizeWeight > 0 {
		opts.Weights = ranker.Weights{Seeders: r.SeedersWeight, Similarity: r.SimilarityWeight, Size: r.SizeWeight}
	}
	if r.MovieMaxGB > 0 {
		opts.Movie = ranker.GBRange(r.MovieMinGB, r.MovieMaxGB)
	}
	if r.EpisodeMaxGB > 0 {
		opts.Episode = ranker.GBRange(r.EpisodeMinGB, r.EpisodeMaxGB)
	}
	if r.AmbiguityPenalty > 0 {
		opts.AmbiguityPenalty = r.AmbiguityPenalty
	}
	return opts
}

// Close stops the cleanup loop and releases the cache and database.
func (c *Container) Close() error {
	if c.Cleanup != nil {
		c.Cleanup.Stop()
	}
	var errs []error
	if c.Cache != nil {
		errs = append(errs, c.Cache.Close())
	}
	if c.DB != nil {
		errs = append(errs, c.DB.Close())
	}
	return errors.Join(errs...)
}

package indexer

import (
	"context"
	"sync"
	"time"

	"github.com/amaumene/gostremiodebrid/internal/constants"
	apperrors "github.com/amaumene/gostremiodebrid/internal/errors"
	"github.com/amaumene/gostremiodebrid/internal/metrics"
	"github.com/amaumene/gostremiodebrid/internal/models"
	"github.com/amaumene/gostremiodebrid/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// Searcher is the torznab surface the aggregator needs.
type Searcher interface {
	Search(ctx context.Context, indexerID string, req Request) ([]models.Torrent, error)
	Indexers(ctx context.Context, baseURL, apiKey string) ([]string, error)
}

// Aggregator fans one query out to every configured indexer.
type Aggregator struct {
	searcher    Searcher
	timeout     time.Duration
	concurrency int
	logger      logger.Logger
}

func NewAggregator(searcher Searcher, timeout time.Duration, concurrency int, log logger.Logger) *Aggregator {
	if timeout <= 0 {
		timeout = constants.SearchTimeout
	}
	if concurrency <= 0 {
		concurrency = constants.DefaultIndexerConcurrency
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Aggregator{searcher: searcher, timeout: timeout, concurrency: concurrency, logger: log}
}

// RequestLimit is the result count asked from each indexer: never fewer than
// MinIndexerResults so ranking has room to filter.
func RequestLimit(maxResults int) int {
	return max(constants.MinIndexerResults, maxResults)
}

// Search returns the union of every responding indexer's torrents. Failing
// indexers are logged and skipped; if none respond the result is empty, not an error.
func (a *Aggregator) Search(ctx context.Context, req Request) []models.Torrent {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	ids, err := a.searcher.Indexers(ctx, req.BaseURL, req.APIKey)
	if err != nil || len(ids) == 0 {
		if err != nil {
			a.logger.Warnf("[Indexer] listing indexers failed, using aggregate endpoint: %v", err)
		}
		ids = []string{"all"}
	}

	var (
		mu      sync.Mutex
		results []models.Torrent
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for _, id := range ids {
		g.Go(func() error {
			torrents, err := a.searchOne(gctx, id, req)
			if err != nil {
				a.logger.Warnf("[Indexer] %v", apperrors.NewIndexerError(id, err))
				return nil
			}
			mu.Lock()
			results = append(results, torrents...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	a.logger.Infof("[Indexer] %d torrents from %d indexers for %q", len(results), len(ids), req.Query.Name)
	if results == nil {
		return []models.Torrent{}
	}
	return results
}

func (a *Aggregator) searchOne(ctx context.Context, id string, req Request) ([]models.Torrent, error) {
	start := time.Now()
	torrents, err := a.searcher.Search(ctx, id, req)
	metrics.IndexerRequestDuration.WithLabelValues(id).Observe(time.Since(start).Seconds())

	status := "ok"
	if err != nil {
		status = "error"
		if ctx.Err() != nil {
			status = "timeout"
		}
	}
	metrics.IndexerRequestsTotal.WithLabelValues(id, status).Inc()
	return torrents, err
}

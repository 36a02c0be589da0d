package debrid

import (
	"context"
	"errors"
	"sync"
	"time"

	apperrors "github.com/amaumene/gostremiodebrid/internal/errors"
	"github.com/amaumene/gostremiodebrid/internal/metrics"
	"github.com/amaumene/gostremiodebrid/internal/models"
	"github.com/amaumene/gostremiodebrid/pkg/logger"
	"github.com/avast/retry-go/v4"
	"golang.org/x/sync/semaphore"
)

// attemptFunc resolves one torrent. A nil link with a nil error means the
// provider cannot serve it.
type attemptFunc func(ctx context.Context, t models.RankedTorrent) (*models.StreamLink, error)

// engine runs attempts in rank order with bounded concurrency and stops as
// soon as enough links exist.
type engine struct {
	provider    string
	concurrency int
	attempts    uint
	delay       time.Duration
	maxDelay    time.Duration
	logger      logger.Logger
}

func newEngine(provider string, opts Options) engine {
	return engine{
		provider:    provider,
		concurrency: opts.Concurrency,
		attempts:    uint(opts.RetryAttempts),
		delay:       opts.RetryDelay,
		maxDelay:    opts.RetryMaxDelay,
		logger:      opts.Logger.With("provider", provider),
	}
}

// resolveAll returns at most maxResults links, ordered like torrents. Once the
// cap is reached every attempt still running is cancelled and no new one
// starts. An auth failure cancels everything and is returned.
func (e engine) resolveAll(ctx context.Context, torrents []models.RankedTorrent, maxResults int, attempt attemptFunc) ([]models.StreamLink, error) {
	if maxResults <= 0 || len(torrents) == 0 {
		return []models.StreamLink{}, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		sem     = semaphore.NewWeighted(int64(max(e.concurrency, 1)))
		wg      sync.WaitGroup
		mu      sync.Mutex
		found   int
		authErr error
		results = make([]*models.StreamLink, len(torrents))
	)

	for i, t := range torrents {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			link, err := e.withRetry(ctx, t, attempt)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil && apperrors.IsAuth(err):
				e.record("auth")
				if authErr == nil {
					authErr = err
				}
				cancel()
			case err != nil && ctx.Err() != nil:
				e.record("cancelled")
			case err != nil:
				e.record("error")
				e.logger.Debugf("[Resolver] skipping %s: %v", t.Title, err)
			case link == nil || link.URL == "":
				e.record("unavailable")
			case found >= maxResults:
				e.record("surplus")
			default:
				e.record("resolved")
				results[i] = link
				found++
				if found >= maxResults {
					cancel()
				}
			}
		}()
	}
	wg.Wait()

	if authErr != nil {
		return nil, authErr
	}

	links := make([]models.StreamLink, 0, found)
	for _, l := range results {
		if l != nil {
			links = append(links, *l)
		}
	}
	e.logger.Infof("[Resolver] resolved %d/%d links from %d candidates", len(links), maxResults, len(torrents))
	return links, nil
}

// withRetry retries transient failures with exponential backoff.
func (e engine) withRetry(ctx context.Context, t models.RankedTorrent, attempt attemptFunc) (*models.StreamLink, error) {
	return retry.DoWithData(
		func() (*models.StreamLink, error) { return attempt(ctx, t) },
		retry.Context(ctx),
		retry.Attempts(max(e.attempts, 1)),
		retry.Delay(e.delay),
		retry.MaxDelay(e.maxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isTransient),
		retry.OnRetry(func(n uint, err error) {
			e.logger.Debugf("[Resolver] retry %d for %s: %v", n+1, t.Title, err)
		}),
	)
}

func (e engine) record(outcome string) {
	metrics.ResolveAttemptsTotal.WithLabelValues(e.provider, outcome).Inc()
}

// transientError marks failures worth another try: network errors, 429 and 5xx.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var te *transientError
	return errors.As(err, &te)
}

// Package debrid resolves ranked torrents into direct links through debrid
// providers. Providers are looked up by name in a Registry.
package debrid

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/amaumene/gostremiodebrid/internal/constants"
	"github.com/amaumene/gostremiodebrid/internal/database"
	apperrors "github.com/amaumene/gostremiodebrid/internal/errors"
	"github.com/amaumene/gostremiodebrid/internal/models"
	"github.com/amaumene/gostremiodebrid/pkg/httputil"
	"github.com/amaumene/gostremiodebrid/pkg/logger"
)

// EpisodeFilter narrows multi-file torrents to one series episode.
type EpisodeFilter struct {
	Season  int
	Episode int
}

// Service resolves torrents, best first, into at most maxResults links.
// Unresolvable torrents are skipped silently; only a rejected credential
// is returned as an error.
type Service interface {
	Name() string
	Resolve(ctx context.Context, torrents []models.RankedTorrent, credential string, filter *EpisodeFilter, maxResults int) ([]models.StreamLink, error)
}

// MagnetDeleter is implemented by providers whose uploads outlive a request.
type MagnetDeleter interface {
	DeleteMagnet(ctx context.Context, credential, remoteID string) error
}

// MagnetStore records uploads for later cleanup.
type MagnetStore interface {
	StoreMagnet(magnet *database.Magnet) error
}

// Options carries the shared dependencies handed to every provider factory.
type Options struct {
	HTTPClient    *http.Client
	Logger        logger.Logger
	Store         MagnetStore
	Concurrency   int
	RetryAttempts int
	RetryDelay    time.Duration
	RetryMaxDelay time.Duration
	PollTimeout   time.Duration
	PollInterval  time.Duration

	// API roots, overridable for tests
	AllDebridURL  string
	RealDebridURL string
}

func (o Options) withDefaults() Options {
	if o.HTTPClient == nil {
		o.HTTPClient = httputil.NewDefaultHTTPClient()
	}
	if o.Logger == nil {
		o.Logger = logger.Nop()
	}
	if o.Concurrency <= 0 {
		o.Concurrency = constants.DefaultDebridConcurrency
	}
	if o.RetryAttempts <= 0 {
		o.RetryAttempts = constants.DefaultRetryAttempts
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = constants.RetryInitialDelay
	}
	if o.RetryMaxDelay <= 0 {
		o.RetryMaxDelay = constants.RetryMaxDelay
	}
	if o.PollTimeout <= 0 {
		o.PollTimeout = constants.MagnetPollTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = constants.MagnetPollInterval
	}
	if o.AllDebridURL == "" {
		o.AllDebridURL = allDebridBaseURL
	}
	if o.RealDebridURL == "" {
		o.RealDebridURL = realDebridBaseURL
	}
	return o
}

// Factory builds a provider from shared options.
type Factory func(opts Options) Service

// Registry maps provider names to lazily built, reused providers. A provider
// and its rate limiter are shared by all requests since upstream limits apply
// per client address, not per user.
type Registry struct {
	opts Options

	mu        sync.Mutex
	factories map[string]Factory
	services  map[string]Service
}

// NewRegistry returns a registry holding the built-in providers.
func NewRegistry(opts Options) *Registry {
	r := &Registry{
		opts:      opts.withDefaults(),
		factories: make(map[string]Factory),
		services:  make(map[string]Service),
	}
	r.Register(constants.ProviderAllDebrid, func(o Options) Service { return NewAllDebrid(o) })
	r.Register(constants.ProviderRealDebrid, func(o Options) Service { return NewRealDebrid(o) })
	return r
}

// Register adds or replaces a provider. Names are case-insensitive.
func (r *Registry) Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[key] = factory
	delete(r.services, key)
}

// Get returns the provider for name, or an UNKNOWN_PROVIDER validation error.
func (r *Registry) Get(name string) (Service, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	r.mu.Lock()
	defer r.mu.Unlock()

	if svc, ok := r.services[key]; ok {
		return svc, nil
	}
	factory, ok := r.factories[key]
	if !ok {
		return nil, apperrors.NewUnknownProviderError(name)
	}
	svc := factory(r.opts)
	r.services[key] = svc
	return svc, nil
}

// Names lists registered providers in sorted order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

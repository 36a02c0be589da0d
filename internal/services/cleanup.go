package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/amaumene/gostremiodebrid/internal/database"
	"github.com/amaumene/gostremiodebrid/internal/debrid"
	"github.com/amaumene/gostremiodebrid/pkg/logger"
	"github.com/sourcegraph/conc/pool"
)

const (
	defaultCleanupInterval = 1 * time.Hour
	defaultRetentionPeriod = 4 * time.Hour

	// concurrent deletions per cleanup run
	cleanupWorkers = 4
)

// MagnetRepository is the part of the database the cleanup service needs.
type MagnetRepository interface {
	GetOldMagnets(olderThan time.Duration) ([]database.Magnet, error)
	DeleteMagnet(id string) error
}

// CleanupService periodically deletes uploads the resolver left on debrid
// accounts once they are older than the retention period.
type CleanupService struct {
	db        MagnetRepository
	providers ProviderLookup
	logger    logger.Logger

	mu              sync.Mutex
	interval        time.Duration
	retentionPeriod time.Duration
	running         bool
	stopChan        chan struct{}
	done            chan struct{}
}

func NewCleanupService(db MagnetRepository, providers ProviderLookup, log logger.Logger) *CleanupService {
	if log == nil {
		log = logger.Nop()
	}
	return &CleanupService{
		db:              db,
		providers:       providers,
		logger:          log,
		interval:        defaultCleanupInterval,
		retentionPeriod: defaultRetentionPeriod,
	}
}

// SetRetentionPeriod sets how long uploads are kept before deletion.
func (c *CleanupService) SetRetentionPeriod(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d > 0 {
		c.retentionPeriod = d
	}
}

// SetInterval sets how often cleanup runs. Takes effect on the next Start.
func (c *CleanupService) SetInterval(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d > 0 {
		c.interval = d
	}
}

// Start runs one cleanup immediately, then every interval until Stop or ctx ends.
func (c *CleanupService) Start(ctx context.Context) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.stopChan = make(chan struct{})
	c.done = make(chan struct{})
	interval, retention := c.interval, c.retentionPeriod
	stop, done := c.stopChan, c.done
	c.mu.Unlock()

	c.logger.Infof("[Cleanup] starting with interval %v, retention %v", interval, retention)

	go func() {
		defer close(done)
		c.CleanupNow(ctx)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				c.CleanupNow(ctx)
			}
		}
	}()
}

// Stop ends the loop and waits for an in-flight run to finish.
func (c *CleanupService) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	close(c.stopChan)
	done := c.done
	c.mu.Unlock()

	<-done
	c.logger.Infof("[Cleanup] stopped")
}

// CleanupNow deletes every expired upload and returns how many records were
// removed. A record is dropped once its remote delete succeeded, or when no
// provider can delete it anymore.
func (c *CleanupService) CleanupNow(ctx context.Context) int {
	c.mu.Lock()
	retention := c.retentionPeriod
	c.mu.Unlock()

	magnets, err := c.db.GetOldMagnets(retention)
	if err != nil {
		c.logger.Errorf("[Cleanup] failed to list old magnets: %v", err)
		return 0
	}
	if len(magnets) == 0 {
		c.logger.Debugf("[Cleanup] nothing to clean")
		return 0
	}

	var (
		mu      sync.Mutex
		removed int
	)
	p := pool.New().WithContext(ctx).WithMaxGoroutines(cleanupWorkers)
	for _, m := range magnets {
		p.Go(func(ctx context.Context) error {
			if err := c.deleteRemote(ctx, m); err != nil {
				return fmt.Errorf("magnet %s: %w", m.ID, err)
			}
			if err := c.db.DeleteMagnet(m.ID); err != nil {
				return fmt.Errorf("magnet %s: %w", m.ID, err)
			}
			mu.Lock()
			removed++
			mu.Unlock()
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		c.logger.Warnf("[Cleanup] some deletions failed: %v", err)
	}

	c.logger.Infof("[Cleanup] %d of %d magnets removed", removed, len(magnets))
	return removed
}

func (c *CleanupService) deleteRemote(ctx context.Context, m database.Magnet) error {
	svc, err := c.providers.Get(m.Provider)
	if err != nil {
		c.logger.Warnf("[Cleanup] dropping record %s of unknown provider %q", m.ID, m.Provider)
		return nil
	}
	deleter, ok := svc.(debrid.MagnetDeleter)
	if !ok || m.RemoteID == "" {
		return nil
	}
	return deleter.DeleteMagnet(ctx, m.APIKey, m.RemoteID)
}

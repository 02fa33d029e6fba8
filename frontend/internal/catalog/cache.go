package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/itchan-dev/mediadesk/shared/domain"
	"github.com/itchan-dev/mediadesk/shared/logger"
)

// MediaFetcher is the full-catalog fetch the cache is built on.
type MediaFetcher interface {
	Media(ctx context.Context) (domain.Catalog, error)
}

// Cache holds the last successful catalog snapshot. Background refreshes and
// resolver refreshes may overlap; the last writer wins.
type Cache struct {
	fetcher        MediaFetcher
	snapshot       domain.Catalog
	mu             sync.RWMutex
	lastUpdateTime time.Time
}

func NewCache(fetcher MediaFetcher) *Cache {
	return &Cache{
		fetcher:  fetcher,
		snapshot: domain.EmptyCatalog(),
	}
}

// Update re-fetches the catalog. A failed fetch leaves the previous snapshot in place.
func (c *Cache) Update(ctx context.Context) error {
	catalog, err := c.fetcher.Media(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.snapshot = catalog
	c.lastUpdateTime = time.Now()
	c.mu.Unlock()

	logger.Log.Debug("catalog updated",
		"component", "catalog",
		"videos", len(catalog.Videos),
		"photos", len(catalog.Photos),
		"audio", len(catalog.Audio))
	return nil
}

// Refresh is a full re-fetch that never fails: on error it returns an empty catalog
// and keeps the old snapshot.
func (c *Cache) Refresh(ctx context.Context) domain.Catalog {
	if err := c.Update(ctx); err != nil {
		logger.Log.Warn("catalog refresh failed", "component", "catalog", "error", err)
		return domain.EmptyCatalog()
	}
	return c.Snapshot()
}

func (c *Cache) Snapshot() domain.Catalog {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

func (c *Cache) LastUpdate() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastUpdateTime
}

// StartBackgroundUpdate refreshes once immediately and then every interval until ctx is done.
func (c *Cache) StartBackgroundUpdate(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	logger.Log.Info("started catalog background updates",
		"component", "catalog",
		"interval", interval)

	go func() {
		defer ticker.Stop()
		if err := c.Update(ctx); err != nil && ctx.Err() == nil {
			logger.Log.Warn("catalog update failed", "component", "catalog", "error", err)
		}
		for {
			select {
			case <-ticker.C:
				if err := c.Update(ctx); err != nil && ctx.Err() == nil {
					logger.Log.Warn("catalog update failed",
						"component", "catalog",
						"error", err)
				}
			case <-ctx.Done():
				logger.Log.Info("catalog updates shutting down",
					"component", "catalog")
				return
			}
		}
	}()
}

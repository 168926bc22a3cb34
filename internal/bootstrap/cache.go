package bootstrap

import (
	"errors"
	"time"

	"github.com/brk3/flux/internal/logger"
	"github.com/brk3/flux/internal/storage"
	"github.com/brk3/flux/pkg/flux"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type cacheEntry struct {
	Version    string         `json:"version"`
	CapturedAt int64          `json:"capturedAt"`
	Snapshot   *flux.Snapshot `json:"snapshot"`
}

// CacheKey is the side cache key for a user's last snapshot. Bumping the
// version orphans every older entry.
func CacheKey(version, userID string) string {
	return "bootstrap/" + version + "/" + userID
}

// loadCached never fails; anything other than a well-formed entry of the
// current version is a miss.
func (c *Controller) loadCached(userID string) (*flux.Snapshot, bool) {
	if c.opts.Cache == nil || userID == "" {
		return nil, false
	}
	key := CacheKey(c.opts.CacheVersion, userID)
	raw, err := c.opts.Cache.Load(key)
	if err != nil {
		if !errors.Is(err, storage.ErrMiss) {
			logger.Debug("Cache read failed", "key", key, "error", err)
			syncCacheTotal.WithLabelValues("load", "error").Inc()
		} else {
			syncCacheTotal.WithLabelValues("load", "miss").Inc()
		}
		return nil, false
	}

	var e cacheEntry
	if err := json.Unmarshal(raw, &e); err != nil || e.Snapshot == nil || e.Version != c.opts.CacheVersion {
		logger.Debug("Ignoring unusable cache entry", "key", key, "error", err)
		syncCacheTotal.WithLabelValues("load", "error").Inc()
		return nil, false
	}
	syncCacheTotal.WithLabelValues("load", "hit").Inc()
	logger.Debug("Cache hit", "key", key, "captured_at", time.UnixMilli(e.CapturedAt))
	return e.Snapshot, true
}

func (c *Controller) storeCached(userID string, s *flux.Snapshot) {
	if c.opts.Cache == nil || userID == "" || s == nil {
		return
	}
	key := CacheKey(c.opts.CacheVersion, userID)
	raw, err := json.Marshal(cacheEntry{
		Version:    c.opts.CacheVersion,
		CapturedAt: c.opts.Now().UnixMilli(),
		Snapshot:   s,
	})
	if err == nil {
		err = c.opts.Cache.Store(key, raw)
	}
	if err != nil {
		logger.Debug("Cache write failed", "key", key, "error", err)
		syncCacheTotal.WithLabelValues("store", "error").Inc()
		return
	}
	syncCacheTotal.WithLabelValues("store", "ok").Inc()
}

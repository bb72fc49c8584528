// Package authgate provides dual-mode request authentication (signed session
// tokens and revocable API keys) with a warm in-memory key cache for Go services.
//
// This file contains the key cache: the authoritative-for-reads in-memory
// index of active API keys serving O(1) lookups on the request hot path.
package authgate

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// KeyCacheConfig configures the key cache.
type KeyCacheConfig struct {
	// RewarmInterval is the period of the full re-warm safety net. It is the
	// upper bound on cross-process staleness after a missed invalidation
	// broadcast. Zero disables periodic re-warm.
	RewarmInterval time.Duration

	// StoreTimeout bounds the persistent-store fallback read on a cache miss.
	// A timed-out fallback is treated as a miss (fail closed).
	StoreTimeout time.Duration
}

// KeyCache maintains the in-memory index of active API keys. The index is the
// only mutable shared structure in this package and is owned exclusively by
// the cache; lookups take a read lock, structural mutations a write lock, and
// no lock is ever held across a store or bus round trip.
//
// The invariant: an entry exists for every active key, and never for a
// revoked one. Revocation removes the entry entirely rather than flipping its
// status, so a revoked key is rejected even under cache corruption.
type KeyCache struct {
	store   KeyStore
	bus     *BusConnection
	logger  *zap.Logger
	metrics MetricsProvider
	cfg     KeyCacheConfig

	mu      sync.RWMutex
	index   map[string]CacheEntry // lookupKey -> entry
	byID    map[int64]string      // id -> lookupKey, for O(1) invalidation
	dead    map[int64]struct{}    // ids invalidated on this process
	started sync.Once

	warmed     atomic.Bool
	loopCancel context.CancelFunc
	wg         sync.WaitGroup
	closeOnce  sync.Once
}

// NewKeyCache creates a key cache over the given store. bus may be nil, in
// which case invalidations stay local and sibling processes converge only via
// their periodic re-warm.
func NewKeyCache(store KeyStore, bus *BusConnection, cfg KeyCacheConfig, logger *zap.Logger, metrics MetricsProvider) (*KeyCache, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if logger == nil {
		logger, _ = zap.NewProduction() // Fallback to default logger
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = DEFAULT_STORE_TIMEOUT
	}

	return &KeyCache{
		store:   store,
		bus:     bus,
		logger:  logger.Named(CLASS_KEY_CACHE),
		metrics: ensureMetrics(metrics),
		cfg:     cfg,
		index:   make(map[string]CacheEntry),
		byID:    make(map[int64]string),
		dead:    make(map[int64]struct{}),
	}, nil
}

// WarmUp fully (re)builds the index from the persistent store. Called once at
// process start after the bus connection is ready - server startup must block
// on its completion so no protected request is served against an empty cache.
// Idempotent: calling it again forces a full rebuild, which is also the
// recovery path for suspected drift.
//
// A store failure here is returned to the caller; at startup that failure is
// fatal, since serving requests without any way to validate keys is unsafe.
func (c *KeyCache) WarmUp(ctx context.Context) error {
	start := time.Now()

	records, err := c.store.ListActiveKeys(ctx)
	if err != nil {
		c.logger.Error("Warm-up load failed",
			zap.Error(err))
		return WrapError(err, "key cache warm-up")
	}

	fresh := make(map[string]CacheEntry, len(records))
	freshByID := make(map[int64]string, len(records))
	for _, rec := range records {
		if !rec.IsActive() || rec.LookupKey == "" {
			continue
		}
		fresh[rec.LookupKey] = entryFromRecord(rec)
		freshByID[rec.ID] = rec.LookupKey
	}

	c.mu.Lock()
	// A list snapshot taken before a revocation committed must not bring the
	// key back. Ids are never reused and revocation is monotonic, so the dead
	// set only ever filters genuinely revoked ids.
	for id := range c.dead {
		if lookupKey, ok := freshByID[id]; ok {
			delete(fresh, lookupKey)
			delete(freshByID, id)
		}
	}
	c.index = fresh
	c.byID = freshByID
	c.mu.Unlock()

	c.warmed.Store(true)
	c.metrics.RecordWarmUp(ctx, len(fresh), time.Since(start))
	c.logger.Info("Key cache warmed",
		zap.Int("active_keys", len(fresh)),
		zap.Duration("took", time.Since(start)))

	c.startBackground()
	return nil
}

// startBackground wires the invalidation subscription and the periodic
// re-warm loop exactly once, on first successful warm-up.
func (c *KeyCache) startBackground() {
	c.started.Do(func() {
		loopCtx, cancel := context.WithCancel(context.Background())
		c.loopCancel = cancel

		if c.bus != nil {
			err := c.bus.Subscribe(loopCtx, BUS_CHANNEL_INVALIDATE, c.handleBroadcast)
			if err != nil {
				c.logger.Warn("Invalidation subscription unavailable - relying on periodic re-warm",
					zap.Error(err))
			}
		}

		if c.cfg.RewarmInterval > 0 {
			c.wg.Add(1)
			go c.rewarmLoop(loopCtx)
		}
	})
}

// rewarmLoop periodically rebuilds the index as a safety net against missed
// invalidation broadcasts. A failed re-warm keeps the previous index.
func (c *KeyCache) rewarmLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.RewarmInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rewarmCtx, cancel := context.WithTimeout(ctx, c.cfg.RewarmInterval)
			if err := c.WarmUp(rewarmCtx); err != nil {
				c.logger.Warn("Periodic re-warm failed - keeping previous index",
					zap.Error(err))
			}
			cancel()
		}
	}
}

// Lookup resolves a presented plaintext secret to a cache entry. A miss falls
// through once to the persistent store with a bounded timeout, tolerating a
// key created on another instance before its broadcast arrived. Negative
// results are never cached, so a key that becomes valid moments later is not
// permanently hidden. A timed-out or failed fallback is a miss: fail closed.
func (c *KeyCache) Lookup(ctx context.Context, presentedSecret string) (*CacheEntry, error) {
	lookupKey, err := LookupKeyFromSecret(presentedSecret)
	if err != nil {
		return nil, ErrCacheMiss
	}

	c.mu.RLock()
	entry, ok := c.index[lookupKey]
	c.mu.RUnlock()

	if ok {
		c.metrics.RecordCacheHit(ctx)
		return &entry, nil
	}

	c.metrics.RecordCacheMiss(ctx)

	fallbackCtx, cancel := context.WithTimeout(ctx, c.cfg.StoreTimeout)
	defer cancel()

	rec, err := c.store.GetKeyByLookupKey(fallbackCtx, lookupKey)
	if err != nil {
		if !IsNotFoundError(err) {
			c.logger.Warn("Store fallback read failed - treating as miss",
				zap.Error(err))
		}
		return nil, ErrCacheMiss
	}
	if !rec.IsActive() {
		return nil, ErrCacheMiss
	}

	fresh := entryFromRecord(rec)
	c.mu.Lock()
	// The store read ran outside the lock, so an Invalidate may have completed
	// in the meantime; inserting its stale "active" snapshot would resurrect a
	// revoked key on this process until the next re-warm.
	if _, revoked := c.dead[rec.ID]; revoked {
		c.mu.Unlock()
		return nil, ErrCacheMiss
	}
	c.index[lookupKey] = fresh
	c.byID[rec.ID] = lookupKey
	c.mu.Unlock()

	c.logger.Debug("Cache miss resolved from store",
		zap.Int64(LOG_FIELD_KEY_ID, rec.ID))
	return &fresh, nil
}

// Admit inserts a freshly created record into the index so the creating
// process serves it immediately, without waiting for a re-warm.
func (c *KeyCache) Admit(rec *APIKeyRecord) {
	if !rec.IsActive() || rec.LookupKey == "" {
		return
	}

	c.mu.Lock()
	c.index[rec.LookupKey] = entryFromRecord(rec)
	c.byID[rec.ID] = rec.LookupKey
	c.mu.Unlock()
}

// Invalidate removes the entry for keyID from the local index and broadcasts
// the invalidation to sibling instances. The local removal completes before
// the method returns, so a revocation is observable to subsequent lookups on
// this process immediately. The broadcast is best-effort: a publish failure
// is logged, never propagated, since it must not fail the revocation itself -
// the periodic re-warm bounds the resulting cross-process staleness.
func (c *KeyCache) Invalidate(ctx context.Context, keyID int64) {
	c.mu.Lock()
	lookupKey, ok := c.byID[keyID]
	if ok {
		delete(c.index, lookupKey)
		delete(c.byID, keyID)
	}
	c.dead[keyID] = struct{}{}
	c.mu.Unlock()

	c.metrics.RecordInvalidation(ctx, INVALIDATION_SOURCE_LOCAL)
	c.logger.Info("Key invalidated",
		zap.Int64(LOG_FIELD_KEY_ID, keyID),
		zap.Bool("was_cached", ok))

	if c.bus == nil {
		return
	}
	if err := c.bus.Publish(ctx, BUS_CHANNEL_INVALIDATE, formatKeyID(keyID)); err != nil {
		// A lingering stale entry on a sibling is a security exposure, so
		// this is loud even though it does not fail the revocation.
		c.logger.Error("Invalidation broadcast failed - sibling caches converge on next re-warm",
			zap.Int64(LOG_FIELD_KEY_ID, keyID),
			zap.Error(err))
	}
}

// handleBroadcast evicts an entry in response to a sibling's invalidation.
// Local-only: rebroadcasting here would loop the message forever.
func (c *KeyCache) handleBroadcast(payload string) {
	keyID, err := parseKeyID(payload)
	if err != nil {
		c.logger.Warn("Ignoring malformed invalidation payload",
			zap.String("payload", payload))
		return
	}

	c.mu.Lock()
	lookupKey, ok := c.byID[keyID]
	if ok {
		delete(c.index, lookupKey)
		delete(c.byID, keyID)
	}
	c.dead[keyID] = struct{}{}
	c.mu.Unlock()

	c.metrics.RecordInvalidation(context.Background(), INVALIDATION_SOURCE_BROADCAST)
	c.logger.Info("Key evicted by broadcast",
		zap.Int64(LOG_FIELD_KEY_ID, keyID),
		zap.Bool("was_cached", ok))
}

// Warmed reports whether the initial warm-up has completed.
func (c *KeyCache) Warmed() bool {
	return c.warmed.Load()
}

// Size returns the current number of cached entries.
func (c *KeyCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.index)
}

// Close stops the re-warm loop and the invalidation subscription. Idempotent.
func (c *KeyCache) Close() {
	c.closeOnce.Do(func() {
		if c.loopCancel != nil {
			c.loopCancel()
		}
		c.wg.Wait()
	})
}

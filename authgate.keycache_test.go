package authgate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyCacheWarmUp(t *testing.T) {
	store := newMockKeyStore()

	activeSecret := GenerateTestSecret(t)
	store.seed(NewTestKeyRecord(t, activeSecret, "active-key"))

	revokedSecret := GenerateTestSecret(t)
	revoked := NewTestKeyRecord(t, revokedSecret, "revoked-key")
	revoked.Status = KeyStatusRevoked
	store.seed(revoked)

	cache := NewTestKeyCache(t, store)

	assert.True(t, cache.Warmed())
	assert.Equal(t, 1, cache.Size(), "only active keys enter the index")

	entry, err := cache.Lookup(context.Background(), activeSecret)
	require.NoError(t, err)
	assert.Equal(t, "active-key", entry.Name)
}

func TestKeyCacheWarmUpFailure(t *testing.T) {
	store := newMockKeyStore()
	store.listError = ErrStoreUnavailable

	cache, err := NewKeyCache(store, nil, KeyCacheConfig{}, NewTestLogger(t), nil)
	require.NoError(t, err)

	err = cache.WarmUp(context.Background())
	AssertErrorType(t, err, ErrExternal)
	assert.False(t, cache.Warmed())
}

func TestKeyCacheRewarmReplacesIndex(t *testing.T) {
	store := newMockKeyStore()
	secret := GenerateTestSecret(t)
	store.seed(NewTestKeyRecord(t, secret, "first"))

	cache := NewTestKeyCache(t, store)
	require.Equal(t, 1, cache.Size())

	// Key revoked behind the cache's back; re-warm must drop it
	rec, err := store.GetKeyByLookupKey(context.Background(), mustLookupKey(t, secret))
	require.NoError(t, err)
	_, err = store.Revoke(context.Background(), rec.ID)
	require.NoError(t, err)

	require.NoError(t, cache.WarmUp(context.Background()))
	assert.Equal(t, 0, cache.Size())

	_, err = cache.Lookup(context.Background(), secret)
	AssertErrorType(t, err, ErrCacheMiss)
}

func TestKeyCacheLookupMissFallback(t *testing.T) {
	store := newMockKeyStore()
	cache := NewTestKeyCache(t, store)

	// Key created after warm-up, e.g. by a sibling instance
	secret := GenerateTestSecret(t)
	store.seed(NewTestKeyRecord(t, secret, "late-arrival"))

	entry, err := cache.Lookup(context.Background(), secret)
	require.NoError(t, err)
	assert.Equal(t, "late-arrival", entry.Name)

	// Second lookup is a hit without touching the store
	store.getError = ErrStoreUnavailable
	entry, err = cache.Lookup(context.Background(), secret)
	require.NoError(t, err)
	assert.Equal(t, "late-arrival", entry.Name)
}

func TestKeyCacheNegativesNotCached(t *testing.T) {
	store := newMockKeyStore()
	cache := NewTestKeyCache(t, store)

	secret := GenerateTestSecret(t)

	_, err := cache.Lookup(context.Background(), secret)
	AssertErrorType(t, err, ErrCacheMiss)

	// The key becomes valid moments later; it must be resolvable immediately
	store.seed(NewTestKeyRecord(t, secret, "now-valid"))

	entry, err := cache.Lookup(context.Background(), secret)
	require.NoError(t, err)
	assert.Equal(t, "now-valid", entry.Name)
}

func TestKeyCacheFallbackFailureIsMiss(t *testing.T) {
	store := newMockKeyStore()
	cache := NewTestKeyCache(t, store)

	secret := GenerateTestSecret(t)
	store.seed(NewTestKeyRecord(t, secret, "unreachable"))
	store.getError = ErrStoreUnavailable

	// Store failure must fail closed, not open
	_, err := cache.Lookup(context.Background(), secret)
	AssertErrorType(t, err, ErrCacheMiss)
}

func TestKeyCacheFallbackTimeoutIsMiss(t *testing.T) {
	store := newMockKeyStore()
	store.getDelay = 200 * time.Millisecond

	cache, err := NewKeyCache(store, nil, KeyCacheConfig{
		StoreTimeout: 20 * time.Millisecond,
	}, NewTestLogger(t), nil)
	require.NoError(t, err)
	store.getDelay = 0
	require.NoError(t, cache.WarmUp(context.Background()))
	t.Cleanup(cache.Close)
	store.getDelay = 200 * time.Millisecond

	secret := GenerateTestSecret(t)
	store.seed(NewTestKeyRecord(t, secret, "slow-store"))

	start := time.Now()
	_, err = cache.Lookup(context.Background(), secret)
	AssertErrorType(t, err, ErrCacheMiss)
	assert.Less(t, time.Since(start), 150*time.Millisecond, "fallback must respect the bounded timeout")
}

func TestKeyCacheFallbackRevokedIsMiss(t *testing.T) {
	store := newMockKeyStore()
	cache := NewTestKeyCache(t, store)

	secret := GenerateTestSecret(t)
	rec := NewTestKeyRecord(t, secret, "revoked-in-store")
	rec.Status = KeyStatusRevoked
	store.seed(rec)

	_, err := cache.Lookup(context.Background(), secret)
	AssertErrorType(t, err, ErrCacheMiss)
	assert.Equal(t, 0, cache.Size(), "revoked records must not enter the index")
}

func TestKeyCacheAdmit(t *testing.T) {
	store := newMockKeyStore()
	cache := NewTestKeyCache(t, store)

	secret := GenerateTestSecret(t)
	rec := NewTestKeyRecord(t, secret, "fresh")
	rec.ID = 42
	cache.Admit(rec)

	entry, err := cache.Lookup(context.Background(), secret)
	require.NoError(t, err)
	assert.Equal(t, int64(42), entry.ID)

	t.Run("revoked record not admitted", func(t *testing.T) {
		other := NewTestKeyRecord(t, GenerateTestSecret(t), "dead")
		other.Status = KeyStatusRevoked
		before := cache.Size()
		cache.Admit(other)
		assert.Equal(t, before, cache.Size())
	})
}

func TestKeyCacheInvalidateLocalImmediately(t *testing.T) {
	store := newMockKeyStore()
	secret := GenerateTestSecret(t)
	rec := NewTestKeyRecord(t, secret, "to-revoke")
	store.seed(rec)

	cache := NewTestKeyCache(t, store)

	stored, err := store.GetKeyByLookupKey(context.Background(), mustLookupKey(t, secret))
	require.NoError(t, err)
	_, err = store.Revoke(context.Background(), stored.ID)
	require.NoError(t, err)

	cache.Invalidate(context.Background(), stored.ID)

	// Must be observable before any broadcast round trip
	_, err = cache.Lookup(context.Background(), secret)
	AssertErrorType(t, err, ErrCacheMiss)
}

func TestKeyCacheInvalidateUnknownID(t *testing.T) {
	store := newMockKeyStore()
	cache := NewTestKeyCache(t, store)

	// Must not panic or error
	cache.Invalidate(context.Background(), 99999)
	assert.Equal(t, 0, cache.Size())
}

func TestKeyCacheBroadcastEviction(t *testing.T) {
	storeA := newMockKeyStore()
	storeB := newMockKeyStore()

	secret := GenerateTestSecret(t)
	rec := NewTestKeyRecord(t, secret, "shared-key")
	rec.ID = 7
	storeA.seed(rec)
	storeB.seed(rec)

	busA, mr := newConnectedBus(t)
	busB, err := NewBusConnection(BusConfig{
		Addr:           mr.Addr(),
		Namespace:      "authgate-test",
		BackoffStep:    20 * time.Millisecond,
		BackoffCeiling: 100 * time.Millisecond,
	}, NewTestLogger(t))
	require.NoError(t, err)
	require.NoError(t, busB.Connect(context.Background()))

	cacheA, err := NewKeyCache(storeA, busA, KeyCacheConfig{StoreTimeout: time.Second}, NewTestLogger(t), nil)
	require.NoError(t, err)
	cacheB, err := NewKeyCache(storeB, busB, KeyCacheConfig{StoreTimeout: time.Second}, NewTestLogger(t), nil)
	require.NoError(t, err)

	require.NoError(t, cacheA.WarmUp(context.Background()))
	require.NoError(t, cacheB.WarmUp(context.Background()))

	t.Cleanup(func() {
		cacheA.Close()
		cacheB.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = busB.Shutdown(ctx)
	})

	require.Equal(t, 1, cacheB.Size())

	// Revocation on instance A evicts on instance B; storeB still holds the
	// record as active, so a fallback would wrongly resurrect it - eviction
	// has to come from the broadcast
	storeB.getError = ErrStoreUnavailable
	cacheA.Invalidate(context.Background(), 7)

	require.Eventually(t, func() bool {
		return cacheB.Size() == 0
	}, 2*time.Second, 20*time.Millisecond, "sibling cache must evict on broadcast")
}

func TestKeyCacheHandleBroadcastMalformedPayload(t *testing.T) {
	store := newMockKeyStore()
	cache := NewTestKeyCache(t, store)

	// Must not panic
	cache.handleBroadcast("not-a-number")
	cache.handleBroadcast("")
}

func TestKeyCachePeriodicRewarm(t *testing.T) {
	store := newMockKeyStore()
	secret := GenerateTestSecret(t)
	store.seed(NewTestKeyRecord(t, secret, "periodic"))

	cache, err := NewKeyCache(store, nil, KeyCacheConfig{
		RewarmInterval: 50 * time.Millisecond,
		StoreTimeout:   time.Second,
	}, NewTestLogger(t), nil)
	require.NoError(t, err)
	require.NoError(t, cache.WarmUp(context.Background()))
	t.Cleanup(cache.Close)

	store.mu.Lock()
	initialCalls := store.listCalls
	store.mu.Unlock()

	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return store.listCalls > initialCalls+1
	}, 2*time.Second, 20*time.Millisecond, "re-warm loop must reload periodically")
}

func TestKeyCacheConcurrentAccess(t *testing.T) {
	store := newMockKeyStore()

	secrets := make([]string, 20)
	for i := range secrets {
		secrets[i] = GenerateTestSecret(t)
		store.seed(NewTestKeyRecord(t, secrets[i], "concurrent"))
	}

	cache := NewTestKeyCache(t, store)

	var wg sync.WaitGroup
	for worker := 0; worker < 8; worker++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				secret := secrets[(worker+i)%len(secrets)]
				switch i % 4 {
				case 0, 1, 2:
					_, _ = cache.Lookup(context.Background(), secret)
				case 3:
					cache.Invalidate(context.Background(), int64((worker+i)%len(secrets)+1))
				}
			}
		}(worker)
	}
	wg.Wait()
}

func TestKeyCacheClose(t *testing.T) {
	store := newMockKeyStore()
	cache, err := NewKeyCache(store, nil, KeyCacheConfig{
		RewarmInterval: 10 * time.Millisecond,
	}, NewTestLogger(t), nil)
	require.NoError(t, err)
	require.NoError(t, cache.WarmUp(context.Background()))

	cache.Close()
	cache.Close() // idempotent
}

// gatedStore blocks the first fallback read until released, so tests can
// interleave an in-flight store read with an invalidation.
type gatedStore struct {
	*mockKeyStore
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedStore(store *mockKeyStore) *gatedStore {
	return &gatedStore{
		mockKeyStore: store,
		entered:      make(chan struct{}),
		release:      make(chan struct{}),
	}
}

func (s *gatedStore) GetKeyByLookupKey(ctx context.Context, lookupKey string) (*APIKeyRecord, error) {
	s.once.Do(func() { close(s.entered) })
	select {
	case <-ctx.Done():
		return nil, NewTimeoutError("store_get", ctx.Err())
	case <-s.release:
	}
	return s.mockKeyStore.GetKeyByLookupKey(ctx, lookupKey)
}

func TestKeyCacheFallbackDoesNotResurrectInvalidatedKey(t *testing.T) {
	inner := newMockKeyStore()
	store := newGatedStore(inner)

	cache, err := NewKeyCache(store, nil, KeyCacheConfig{StoreTimeout: 5 * time.Second}, NewTestLogger(t), nil)
	require.NoError(t, err)
	require.NoError(t, cache.WarmUp(context.Background()))
	t.Cleanup(cache.Close)

	// Key created after warm-up, so the first lookup takes the store fallback
	secret := GenerateTestSecret(t)
	rec := NewTestKeyRecord(t, secret, "victim")
	rec.ID = 7
	inner.seed(rec)

	result := make(chan error, 1)
	go func() {
		_, err := cache.Lookup(context.Background(), secret)
		result <- err
	}()

	// Fallback read in flight; revocation completes while it is blocked. The
	// store still reports the record active, modeling a snapshot read before
	// the revocation committed.
	<-store.entered
	cache.Invalidate(context.Background(), rec.ID)
	close(store.release)

	AssertErrorType(t, <-result, ErrCacheMiss)
	assert.Equal(t, 0, cache.Size(), "stale fallback result must not re-enter the index")

	// Any lookup strictly after Invalidate returned must also fail
	_, err = cache.Lookup(context.Background(), secret)
	AssertErrorType(t, err, ErrCacheMiss)
}

func TestKeyCacheRewarmDoesNotResurrectInvalidatedKey(t *testing.T) {
	store := newMockKeyStore()
	secret := GenerateTestSecret(t)
	rec := NewTestKeyRecord(t, secret, "stale-snapshot")
	store.seed(rec)

	cache := NewTestKeyCache(t, store)

	// Store still lists the record active, modeling a list snapshot taken
	// before the revocation committed
	cache.Invalidate(context.Background(), rec.ID)
	require.NoError(t, cache.WarmUp(context.Background()))

	_, err := cache.Lookup(context.Background(), secret)
	AssertErrorType(t, err, ErrCacheMiss)
	assert.Equal(t, 0, cache.Size())
}

func mustLookupKey(t *testing.T, secret string) string {
	key, err := LookupKeyFromSecret(secret)
	require.NoError(t, err)
	return key
}

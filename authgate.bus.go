// Package authgate provides dual-mode request authentication (signed session
// tokens and revocable API keys) with a warm in-memory key cache for Go services.
//
// This file contains the connection manager for the shared cache/invalidation
// bus (Redis). One BusConnection is constructed per process with explicit
// init/teardown; nothing in this package reaches for an ambient global client.
package authgate

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// BusEvent is a lifecycle event emitted by the BusConnection. Observers use
// these for health reporting only; the connection never retries
// application-level operations on behalf of callers.
type BusEvent string

const (
	BusEventConnected    BusEvent = "connected"
	BusEventReady        BusEvent = "ready"
	BusEventError        BusEvent = "error"
	BusEventClosed       BusEvent = "closed"
	BusEventReconnecting BusEvent = "reconnecting"
)

// BusListener observes lifecycle events. err is non-nil only for BusEventError.
type BusListener func(event BusEvent, err error)

// BusConfig configures the shared bus connection.
type BusConfig struct {
	Addr           string
	Password       string
	Namespace      string
	DB             int
	BackoffStep    time.Duration
	BackoffCeiling time.Duration
}

// BusConnection owns the single shared Redis connection used for pub/sub
// invalidation and shared counters. While the connection is down, callers
// observe ErrBusUnavailable immediately - requests are never silently queued.
type BusConnection struct {
	cfg    BusConfig
	logger *zap.Logger
	client *redis.Client

	ready    atomic.Bool
	closed   atomic.Bool
	shutdown chan struct{}

	mu        sync.Mutex
	listeners []BusListener

	watchCancel context.CancelFunc
	wg          sync.WaitGroup
}

// NewBusConnection creates the process-wide bus connection. The returned
// connection is not connected yet; call Connect before use.
func NewBusConnection(cfg BusConfig, logger *zap.Logger) (*BusConnection, error) {
	if cfg.Addr == "" {
		return nil, NewValidationError("bus_addr", "cannot be empty")
	}
	if logger == nil {
		logger, _ = zap.NewProduction() // Fallback to default logger
	}
	if cfg.Namespace == "" {
		cfg.Namespace = DEFAULT_BUS_NAMESPACE
	}
	if cfg.BackoffStep <= 0 {
		cfg.BackoffStep = DEFAULT_BUS_BACKOFF_STEP
	}
	if cfg.BackoffCeiling <= 0 {
		cfg.BackoffCeiling = DEFAULT_BUS_BACKOFF_CEILING
	}

	client := redis.NewClient(&redis.Options{
		Addr:            cfg.Addr,
		Password:        cfg.Password,
		DB:              cfg.DB,
		MinRetryBackoff: cfg.BackoffStep,
		MaxRetryBackoff: cfg.BackoffCeiling,
	})

	return &BusConnection{
		cfg:      cfg,
		logger:   logger.Named(CLASS_BUS_CONNECTION),
		client:   client,
		shutdown: make(chan struct{}),
	}, nil
}

// OnEvent registers a lifecycle event listener.
func (b *BusConnection) OnEvent(listener BusListener) {
	if listener == nil {
		return
	}
	b.mu.Lock()
	b.listeners = append(b.listeners, listener)
	b.mu.Unlock()
}

func (b *BusConnection) emit(event BusEvent, err error) {
	b.mu.Lock()
	listeners := make([]BusListener, len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.Unlock()

	for _, listener := range listeners {
		listener(event, err)
	}
}

// Connect pings the bus and starts the connection watcher. Returns
// ErrBusUnavailable if the initial ping fails; the watcher keeps retrying in
// the background regardless, so a later recovery flips the connection back to
// ready.
func (b *BusConnection) Connect(ctx context.Context) error {
	if b.closed.Load() {
		return ErrBusUnavailable
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	b.mu.Lock()
	b.watchCancel = cancel
	b.mu.Unlock()

	b.wg.Add(1)
	go b.watch(watchCtx)

	if err := b.client.Ping(ctx).Err(); err != nil {
		b.logger.Warn("Initial bus ping failed",
			zap.String("addr", b.cfg.Addr),
			zap.Error(err))
		return WrapError(ErrBusUnavailable, err.Error())
	}

	b.ready.Store(true)
	b.emit(BusEventConnected, nil)
	b.emit(BusEventReady, nil)
	b.logger.Info("Bus connected",
		zap.String("addr", b.cfg.Addr),
		zap.Int("db", b.cfg.DB),
		zap.String("namespace", b.cfg.Namespace))
	return nil
}

// watch pings the bus periodically, flipping readiness and emitting lifecycle
// events on transitions. Reconnection backoff grows linearly per failed
// attempt, clamped to the configured ceiling.
func (b *BusConnection) watch(ctx context.Context) {
	defer b.wg.Done()

	attempt := 0
	for {
		delay := b.cfg.BackoffStep
		if !b.ready.Load() {
			delay = b.backoffDelay(attempt)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		pingCtx, cancel := context.WithTimeout(ctx, b.cfg.BackoffCeiling)
		err := b.client.Ping(pingCtx).Err()
		cancel()

		switch {
		case err == nil && !b.ready.Load():
			b.ready.Store(true)
			attempt = 0
			b.emit(BusEventConnected, nil)
			b.emit(BusEventReady, nil)
			b.logger.Info("Bus reconnected", zap.String("addr", b.cfg.Addr))
		case err != nil && b.ready.Load():
			b.ready.Store(false)
			attempt = 1
			b.emit(BusEventError, err)
			b.emit(BusEventReconnecting, nil)
			b.logger.Warn("Bus connection lost",
				zap.String("addr", b.cfg.Addr),
				zap.Error(err))
		case err != nil:
			attempt++
			b.emit(BusEventReconnecting, nil)
			b.logger.Debug("Bus reconnect attempt failed",
				zap.Int(LOG_FIELD_ATTEMPT, attempt),
				zap.Duration("next_delay", b.backoffDelay(attempt)),
				zap.Error(err))
		}
	}
}

// backoffDelay grows linearly per attempt, clamped to the ceiling.
func (b *BusConnection) backoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := time.Duration(attempt) * b.cfg.BackoffStep
	if delay > b.cfg.BackoffCeiling {
		delay = b.cfg.BackoffCeiling
	}
	return delay
}

// Ready reports whether the bus is currently usable.
func (b *BusConnection) Ready() bool {
	return b.ready.Load() && !b.closed.Load()
}

// namespaced prefixes a channel or key with the configured logical namespace.
func (b *BusConnection) namespaced(parts ...string) string {
	return b.cfg.Namespace + BUS_KEY_SEPARATOR + strings.Join(parts, BUS_KEY_SEPARATOR)
}

// Publish sends a message on a namespaced channel. Returns ErrBusUnavailable
// immediately when disconnected instead of blocking.
func (b *BusConnection) Publish(ctx context.Context, channel string, payload string) error {
	if !b.Ready() {
		return ErrBusUnavailable
	}

	if err := b.client.Publish(ctx, b.namespaced(channel), payload).Err(); err != nil {
		return WrapError(ErrBusUnavailable, err.Error())
	}
	return nil
}

// Subscribe consumes a namespaced channel, invoking handler per message until
// ctx is cancelled or the connection is shut down. Receive errors trigger
// resubscription with the same linear backoff used by the watcher.
func (b *BusConnection) Subscribe(ctx context.Context, channel string, handler func(payload string)) error {
	if b.closed.Load() {
		return ErrBusUnavailable
	}

	// The subscription lives until the caller's ctx is cancelled OR the
	// connection is shut down, whichever comes first. Without the shutdown
	// bound, a subscriber left open would keep resubscribing against the
	// closed client under backoff forever.
	subCtx, cancel := context.WithCancel(ctx)
	b.wg.Add(2)
	go func() {
		defer b.wg.Done()
		select {
		case <-b.shutdown:
			cancel()
		case <-subCtx.Done():
		}
	}()

	fullChannel := b.namespaced(channel)
	go func() {
		defer b.wg.Done()
		defer cancel()

		attempt := 0
		for {
			if subCtx.Err() != nil {
				return
			}

			sub := b.client.Subscribe(subCtx, fullChannel)
			for {
				msg, err := sub.ReceiveMessage(subCtx)
				if err != nil {
					_ = sub.Close()
					if subCtx.Err() != nil {
						return
					}
					attempt++
					b.logger.Warn("Bus subscription interrupted",
						zap.String(LOG_FIELD_CHANNEL, fullChannel),
						zap.Int(LOG_FIELD_ATTEMPT, attempt),
						zap.Error(err))
					select {
					case <-subCtx.Done():
						return
					case <-time.After(b.backoffDelay(attempt)):
					}
					break
				}
				attempt = 0
				handler(msg.Payload)
			}
		}
	}()

	return nil
}

// Increment atomically increments a namespaced counter and returns the new
// value, setting expiry on first increment. Used by the rate limiter.
func (b *BusConnection) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	if !b.Ready() {
		return 0, ErrBusUnavailable
	}

	fullKey := b.namespaced(BUS_KEY_RATELIMIT, key)
	count, err := b.client.Incr(ctx, fullKey).Result()
	if err != nil {
		return 0, WrapError(ErrBusUnavailable, err.Error())
	}

	if count == 1 {
		if err := b.client.Expire(ctx, fullKey, window).Err(); err != nil {
			return count, WrapError(ErrBusUnavailable, err.Error())
		}
	}

	return count, nil
}

// Shutdown gracefully closes the connection. Idempotent; safe to wire to
// process termination signals so in-flight invalidation publishes are not
// lost mid-write where avoidable.
func (b *BusConnection) Shutdown(ctx context.Context) error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}

	b.ready.Store(false)
	close(b.shutdown)

	b.mu.Lock()
	cancel := b.watchCancel
	b.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		b.logger.Warn("Bus shutdown timed out waiting for workers")
	}

	err := b.client.Close()
	b.emit(BusEventClosed, nil)
	b.logger.Info("Bus connection closed")
	if err != nil {
		return NewInternalError("bus_close", err)
	}
	return nil
}

// formatKeyID renders a key id for bus payloads.
func formatKeyID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// parseKeyID parses a bus payload back into a key id.
func parseKeyID(payload string) (int64, error) {
	return strconv.ParseInt(payload, 10, 64)
}

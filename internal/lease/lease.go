// Package lease guards shared spreadsheet scratch ranges so that only one
// writer at a time may inject values into them.
package lease

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"github.com/Pedro-J-Kukul/sheetdocs/internal/metrics"
)

// ErrNotObtained is returned when a lease could not be acquired before the wait timeout.
var ErrNotObtained = errors.New("lease not obtained")

// Lease is a held lock. Release is safe to call more than once.
type Lease interface {
	Release(ctx context.Context) error
}

// Locker hands out leases keyed by an arbitrary string.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl, wait time.Duration) (Lease, error)
}

// RedisLocker leases keys through Redis so that several service instances
// share one view of the scratch ranges.
type RedisLocker struct {
	locker *redislock.Client
	retry  time.Duration
}

// NewRedisLocker wraps a connected Redis client.
func NewRedisLocker(rdb redis.UniversalClient) *RedisLocker {
	return &RedisLocker{locker: redislock.New(rdb), retry: 100 * time.Millisecond}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl, wait time.Duration) (Lease, error) {
	start := time.Now()

	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	lock, err := l.locker.Obtain(waitCtx, key, ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(l.retry),
	})
	if err != nil {
		metrics.LeaseWait.WithLabelValues("timeout").Observe(time.Since(start).Seconds())
		if errors.Is(err, redislock.ErrNotObtained) || errors.Is(err, context.DeadlineExceeded) {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, ErrNotObtained
		}
		return nil, err
	}

	metrics.LeaseWait.WithLabelValues("obtained").Observe(time.Since(start).Seconds())
	return &redisLease{lock: lock}, nil
}

type redisLease struct {
	once sync.Once
	lock *redislock.Lock
	err  error
}

func (r *redisLease) Release(ctx context.Context) error {
	r.once.Do(func() {
		r.err = r.lock.Release(ctx)
		if errors.Is(r.err, redislock.ErrLockNotHeld) {
			r.err = nil
		}
	})
	return r.err
}

// LocalLocker leases keys within a single process. The ttl is ignored; a
// lease is held until released.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewLocalLocker returns an empty in-process locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]chan struct{})}
}

func (l *LocalLocker) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

func (l *LocalLocker) Acquire(ctx context.Context, key string, _, wait time.Duration) (Lease, error) {
	start := time.Now()
	ch := l.slot(key)

	select {
	case ch <- struct{}{}:
		metrics.LeaseWait.WithLabelValues("obtained").Observe(0)
		return &localLease{ch: ch}, nil
	default:
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case ch <- struct{}{}:
		metrics.LeaseWait.WithLabelValues("obtained").Observe(time.Since(start).Seconds())
		return &localLease{ch: ch}, nil
	case <-timer.C:
		metrics.LeaseWait.WithLabelValues("timeout").Observe(time.Since(start).Seconds())
		return nil, ErrNotObtained
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type localLease struct {
	once sync.Once
	ch   chan struct{}
}

func (l *localLease) Release(context.Context) error {
	l.once.Do(func() { <-l.ch })
	return nil
}

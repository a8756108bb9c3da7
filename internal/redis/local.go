package redisclient

import (
	"context"
	"sync"
	"time"
)

type localLocker struct {
	mu   sync.Mutex
	keys map[string]*keyLock
	wait time.Duration
}

type keyLock struct {
	sem  chan struct{}
	refs int
}

// NewLocalLocker serializes by key inside one process. It backs single-instance
// deployments (LOCK_BACKEND=local) and tests.
func NewLocalLocker(wait time.Duration) Locker {
	return &localLocker{
		keys: make(map[string]*keyLock),
		wait: wait,
	}
}

func (l *localLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	kl := l.ref(key)
	defer l.unref(key, kl)

	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case kl.sem <- struct{}{}:
	default:
		if err := l.acquire(ctx, kl); err != nil {
			return err
		}
	}
	defer func() { <-kl.sem }()

	return fn(ctx)
}

func (l *localLocker) acquire(ctx context.Context, kl *keyLock) error {
	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	select {
	case kl.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrLockNotAcquired
	}
}

func (l *localLocker) ref(key string) *keyLock {
	l.mu.Lock()
	defer l.mu.Unlock()

	kl, ok := l.keys[key]
	if !ok {
		kl = &keyLock{sem: make(chan struct{}, 1)}
		l.keys[key] = kl
	}
	kl.refs++
	return kl
}

func (l *localLocker) unref(key string, kl *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	kl.refs--
	if kl.refs == 0 {
		delete(l.keys, key)
	}
}

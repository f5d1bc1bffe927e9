package locks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"csx-backend/internal/domain"

	"golang.org/x/sync/semaphore"
)

// KeyedLocker hands out exclusive per-key tokens. Multi-key acquisitions are taken in
// ascending key order so two callers locking overlapping sets cannot deadlock.
type KeyedLocker struct {
	mu      sync.Mutex
	entries map[string]*entry
	timeout time.Duration
}

type entry struct {
	sem  *semaphore.Weighted
	refs int
}

// DefaultTimeout bounds how long Acquire waits for all keys.
const DefaultTimeout = 5 * time.Second

// NewKeyedLocker returns a locker whose acquisitions give up after timeout (DefaultTimeout if <= 0).
func NewKeyedLocker(timeout time.Duration) *KeyedLocker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &KeyedLocker{entries: make(map[string]*entry), timeout: timeout}
}

// Key constructors namespace lock keys so different resources never collide.
func AccountKey(id fmt.Stringer) string { return "account:" + id.String() }
func CompanyKey(id fmt.Stringer) string { return "company:" + id.String() }
func ListingKey(id fmt.Stringer) string { return "listing:" + id.String() }

// Acquire blocks until every key is held or the timeout/ctx expires. On timeout it returns
// domain.ErrContention and holds nothing. The returned release func is idempotent.
func (l *KeyedLocker) Acquire(ctx context.Context, keys ...string) (func(), error) {
	ordered := normalize(keys)
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	held := make([]string, 0, len(ordered))
	for _, k := range ordered {
		e := l.ref(k)
		if err := e.sem.Acquire(ctx, 1); err != nil {
			l.unref(k)
			l.releaseAll(held)
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: timed out waiting for %s", domain.ErrContention, k)
			}
			return nil, err
		}
		held = append(held, k)
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.releaseAll(held) })
	}, nil
}

// Do runs fn while holding keys.
func (l *KeyedLocker) Do(ctx context.Context, keys []string, fn func() error) error {
	release, err := l.Acquire(ctx, keys...)
	if err != nil {
		return err
	}
	defer release()
	return fn()
}

func (l *KeyedLocker) ref(k string) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[k]
	if !ok {
		e = &entry{sem: semaphore.NewWeighted(1)}
		l.entries[k] = e
	}
	e.refs++
	return e
}

func (l *KeyedLocker) unref(k string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.entries[k]
	e.refs--
	if e.refs == 0 {
		delete(l.entries, k)
	}
}

func (l *KeyedLocker) releaseAll(held []string) {
	for i := len(held) - 1; i >= 0; i-- {
		l.mu.Lock()
		e := l.entries[held[i]]
		l.mu.Unlock()
		e.sem.Release(1)
		l.unref(held[i])
	}
}

func normalize(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

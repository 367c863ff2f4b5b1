package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/sgtm-webhook/pkg/instance"
)

const (
	defaultLockTTL = 90 * time.Second
	lockScope      = "dispatch"
)

// Locker serializes dispatch attempts per order id. TryLock never blocks; ok
// is false when another attempt holds the order.
type Locker interface {
	TryLock(ctx context.Context, orderID int64) (release func(), ok bool, err error)
}

// KeyedMutex is an in-process per-order lock.
type KeyedMutex struct {
	mu   sync.Mutex
	held map[int64]struct{}
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{held: make(map[int64]struct{})}
}

func (m *KeyedMutex) TryLock(_ context.Context, orderID int64) (func(), bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, busy := m.held[orderID]; busy {
		return nil, false, nil
	}
	m.held[orderID] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.held, orderID)
			m.mu.Unlock()
		})
	}, true, nil
}

// lockStore defines the redis operations used by RedisLocker.
type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	DelIfValue(ctx context.Context, key, value string) (bool, error)
	LockKey(scope, id string) string
}

// RedisLocker is a cross-process lock using SETNX with an owner token.
type RedisLocker struct {
	client lockStore
	ttl    time.Duration
	owner  string
}

// NewRedisLocker constructs a Redis-backed per-order lock.
func NewRedisLocker(client lockStore, ttl time.Duration) (*RedisLocker, error) {
	if client == nil {
		return nil, errors.New("redis client required for dispatch lock")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLocker{client: client, ttl: ttl, owner: instance.GetID()}, nil
}

func (l *RedisLocker) TryLock(ctx context.Context, orderID int64) (func(), bool, error) {
	key := l.client.LockKey(lockScope, strconv.FormatInt(orderID, 10))
	token := l.owner + ":" + uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, l.ttl)
	if err != nil {
		return nil, false, fmt.Errorf("setnx: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return func() {
		// The request context may already be done when release runs.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_, _ = l.client.DelIfValue(releaseCtx, key, token)
	}, true, nil
}

// chainLocker acquires every locker in order and releases in reverse.
type chainLocker []Locker

func (c chainLocker) TryLock(ctx context.Context, orderID int64) (func(), bool, error) {
	releases := make([]func(), 0, len(c))
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
	for _, locker := range c {
		release, ok, err := locker.TryLock(ctx, orderID)
		if err != nil || !ok {
			releaseAll()
			return nil, false, err
		}
		releases = append(releases, release)
	}
	return releaseAll, true, nil
}

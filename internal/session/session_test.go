package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestSessionAuthorized(t *testing.T) {
	tests := []struct {
		name string
		s    *Session
		want bool
	}{
		{"nil session", nil, false},
		{"pending", &Session{UserID: "u1"}, false},
		{"empty token", &Session{Token: &oauth2.Token{}}, false},
		{"access token", &Session{Token: &oauth2.Token{AccessToken: "at"}}, true},
		{"refresh only", &Session{Token: &oauth2.Token{RefreshToken: "rt"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.s.Authorized())
		})
	}
}

func TestNewState(t *testing.T) {
	a, b := NewState(), NewState()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestMemoryStore(t *testing.T) {
	m := NewMemoryStore(time.Hour, nil)
	defer m.Stop()
	ctx := context.Background()

	_, err := m.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	s := &Session{UserID: "u1", CreatedAt: time.Now()}
	require.NoError(t, m.Put(ctx, "state-1", s))

	got, err := m.Get(ctx, "state-1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)

	// Stored values are copies.
	got.UserID = "changed"
	again, err := m.Get(ctx, "state-1")
	require.NoError(t, err)
	assert.Equal(t, "u1", again.UserID)

	require.NoError(t, m.Delete(ctx, "state-1"))
	_, err = m.Get(ctx, "state-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_Expiry(t *testing.T) {
	m := NewMemoryStore(time.Minute, nil)
	defer m.Stop()
	ctx := context.Background()

	now := time.Now()
	m.now = func() time.Time { return now }

	require.NoError(t, m.Put(ctx, "old", &Session{UserID: "u1"}))
	require.NoError(t, m.Put(ctx, "fresh", &Session{UserID: "u2"}))

	now = now.Add(45 * time.Second)
	_, err := m.Get(ctx, "fresh")
	require.NoError(t, err)

	now = now.Add(30 * time.Second)
	_, err = m.Get(ctx, "old")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, 1, m.removeExpired())
	assert.Equal(t, 1, m.Len())

	m.Stop()
	m.Stop()
}

// fakeRedis overrides the commands RedisStore uses.
type fakeRedis struct {
	redis.Cmdable
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) GetEx(_ context.Context, key string, ttl time.Duration) *redis.StringCmd {
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	f.ttls[key] = ttl
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd {
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	f.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, k := range keys {
		delete(f.data, k)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func TestRedisStore(t *testing.T) {
	rdb := newFakeRedis()
	store := NewRedisStore(rdb, 2*time.Hour)
	ctx := context.Background()

	_, err := store.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	expiry := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s := &Session{
		UserID:    "u1",
		Token:     &oauth2.Token{AccessToken: "at", RefreshToken: "rt", TokenType: "Bearer", Expiry: expiry},
		CreatedAt: expiry,
	}
	require.NoError(t, store.Put(ctx, "state-1", s))
	assert.Contains(t, rdb.data, "inboxintake:session:state-1")
	assert.Equal(t, 2*time.Hour, rdb.ttls["inboxintake:session:state-1"])

	got, err := store.Get(ctx, "state-1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	require.NotNil(t, got.Token)
	assert.Equal(t, "rt", got.Token.RefreshToken)
	assert.True(t, got.Token.Expiry.Equal(expiry))

	require.NoError(t, store.Delete(ctx, "state-1"))
	_, err = store.Get(ctx, "state-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_CorruptValue(t *testing.T) {
	rdb := newFakeRedis()
	rdb.data[redisKey("bad")] = "{not json"
	store := NewRedisStore(rdb, 0)

	_, err := store.Get(context.Background(), "bad")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	k := NewKeyedMutex()

	var active, maxActive int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("state-1")
			defer unlock()

			n := atomic.AddInt32(&active, 1)
			for {
				m := atomic.LoadInt32(&maxActive)
				if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&active, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxActive)
	assert.Equal(t, 0, k.size())
}

func TestKeyedMutex_DifferentKeysDoNotBlock(t *testing.T) {
	k := NewKeyedMutex()

	unlockA := k.Lock("a")
	done := make(chan struct{})
	go func() {
		unlock := k.Lock("b")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different key blocked")
	}

	unlockA()
	unlockA()
	assert.Equal(t, 0, k.size())
}

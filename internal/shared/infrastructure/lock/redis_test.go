package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisManager(t *testing.T, ttl time.Duration) (*RedisManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisManager(client, ttl, nil), mr
}

func TestRedisManager_TryAcquire(t *testing.T) {
	m, mr := newRedisManager(t, time.Minute)
	ctx := context.Background()

	release, err := m.TryAcquire(ctx, "reading:dreams:s1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("augur:lock:reading:dreams:s1"))
	assert.Equal(t, time.Minute, mr.TTL("augur:lock:reading:dreams:s1"))

	_, err = m.TryAcquire(ctx, "reading:dreams:s1")
	assert.ErrorIs(t, err, ErrHeld)

	other, err := m.TryAcquire(ctx, "reading:dreams:s2")
	require.NoError(t, err, "different keys are independent")
	other()

	release()
	release()
	assert.False(t, mr.Exists("augur:lock:reading:dreams:s1"))

	again, err := m.TryAcquire(ctx, "reading:dreams:s1")
	require.NoError(t, err)
	again()
}

func TestRedisManager_ExpiredHolderDoesNotReleaseNewHolder(t *testing.T) {
	m, mr := newRedisManager(t, time.Second)
	ctx := context.Background()

	stale, err := m.TryAcquire(ctx, "spin:love:s1")
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	current, err := m.TryAcquire(ctx, "spin:love:s1")
	require.NoError(t, err, "an expired lock can be re-taken")

	stale()
	assert.True(t, mr.Exists("augur:lock:spin:love:s1"))
	_, err = m.TryAcquire(ctx, "spin:love:s1")
	assert.ErrorIs(t, err, ErrHeld)

	current()
	assert.False(t, mr.Exists("augur:lock:spin:love:s1"))
}

func TestRedisManager_AcquireWaitsForRelease(t *testing.T) {
	m, _ := newRedisManager(t, time.Minute)
	release, err := m.TryAcquire(context.Background(), "ledger:dreams:s1")
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		release()
	}()

	got, err := Acquire(context.Background(), m, "ledger:dreams:s1", 5*time.Millisecond)
	require.NoError(t, err)
	got()
}

func TestRedisManager_Unreachable(t *testing.T) {
	m, mr := newRedisManager(t, time.Minute)
	mr.Close()

	_, err := m.TryAcquire(context.Background(), "reading:dreams:s1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrHeld)
}

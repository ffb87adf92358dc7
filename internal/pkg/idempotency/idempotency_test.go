package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func newRedis(t *testing.T) redis.UniversalClient {
	t.Helper()
	if testing.Short() {
		t.Skip("requires docker")
	}

	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	opt, err := redis.ParseURL(uri)
	require.NoError(t, err)

	client := redis.NewClient(opt)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestStateTracker_Exec(t *testing.T) {
	tracker := New(newRedis(t))
	ctx := context.Background()

	calls := 0
	fn := func(context.Context) ([]byte, error) {
		calls++
		return []byte(`{"delivered":true}`), nil
	}

	first, err := tracker.Exec(ctx, "k1", fn)
	require.NoError(t, err)
	second, err := tracker.Exec(ctx, "k1", fn)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
}

func TestStateTracker_ExecRetriesAfterFailure(t *testing.T) {
	tracker := New(newRedis(t))
	ctx := context.Background()
	boom := errors.New("smtp down")

	_, err := tracker.Exec(ctx, "k2", func(context.Context) ([]byte, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)

	out, err := tracker.Exec(ctx, "k2", func(context.Context) ([]byte, error) { return []byte("ok"), nil })
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), out)
}

func TestStateTracker_InProgress(t *testing.T) {
	tracker := New(newRedis(t))
	ctx := context.Background()

	state, err := tracker.Acquire(ctx, "k3", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, StateNone, state)

	_, err = tracker.Exec(ctx, "k3", func(context.Context) ([]byte, error) { return nil, nil })
	assert.ErrorIs(t, err, ErrAlreadyInProgress)
}

func TestStateTracker_ExecReturnsResultWhenStoreFails(t *testing.T) {
	client := newRedis(t)
	tracker := New(client)
	ctx := context.Background()

	calls := 0
	out, err := tracker.Exec(ctx, "k4", func(context.Context) ([]byte, error) {
		calls++
		require.NoError(t, client.Close())
		return []byte(`{"delivered":true}`), nil
	})
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"delivered":true}`), out)
	assert.Equal(t, 1, calls)
}

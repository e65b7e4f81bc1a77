package redis_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/tapestry/pkg/adapters/redis"
	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLogSink_Contract(t *testing.T) {
	ports.RunLogSinkContract(t, func(t *testing.T, limit int) ports.LogSink {
		mr := miniredis.RunT(t)
		client := backend.NewClient(&backend.Options{
			Addr: mr.Addr(),
		})
		t.Cleanup(func() { _ = client.Close() })
		return redis.NewFromClient(client, redis.WithLimit(limit))
	})
}

func TestRedisLogSink_SharedKey(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	a := redis.New(mr.Addr(), "", 0, redis.WithKey("panel"), redis.WithLimit(3))
	b := redis.New(mr.Addr(), "", 0, redis.WithKey("panel"), redis.WithLimit(3))
	defer a.Close()
	defer b.Close()

	require.NoError(t, a.Append(ctx, domain.LogEntry{Type: domain.LogTypeUI, Data: "connected", ID: "1"}))
	require.NoError(t, b.Append(ctx, domain.LogEntry{Type: "ERROR", Data: "boom", ID: "2"}))

	entries, err := a.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "UI", entries[0].Type)
	assert.Equal(t, "boom", entries[1].Data)

	n, err := mr.List("panel")
	require.NoError(t, err)
	assert.Len(t, n, 2)
}

func TestRedisLogSink_Unavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	sink := redis.New(mr.Addr(), "", 0)
	mr.Close()

	err := sink.Append(context.Background(), domain.LogEntry{ID: "1"})
	assert.Error(t, err)
	_, err = sink.Entries(context.Background())
	assert.Error(t, err)
}

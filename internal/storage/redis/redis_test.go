package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/nongjianweihao/share-car/internal/storage"
	"github.com/nongjianweihao/share-car/internal/storage/storagetest"
)

func newStorage(t *testing.T, mr *miniredis.Miniredis) *Storage {
	t.Helper()
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	s := New(client)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRedisStorage(t *testing.T) {
	mr := miniredis.RunT(t)
	storagetest.Run(t, func(t *testing.T) storage.Storage { return newStorage(t, mr) })
}

func TestRedisWatch(t *testing.T) {
	mr := miniredis.RunT(t)
	storagetest.RunWatch(t, func(t *testing.T) (storage.Backend, storage.Backend) {
		return newStorage(t, mr), newStorage(t, mr)
	})
}

func TestRedisHealthPing(t *testing.T) {
	mr := miniredis.RunT(t)
	s := newStorage(t, mr)
	require.NoError(t, s.HealthPing(context.Background()))

	mr.Close()
	require.Error(t, s.HealthPing(context.Background()))
}

func TestNewClientFailsWhenUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewClient(context.Background(), addr, "", 0)
	require.Error(t, err)
}

func TestRedisSaveWritesValue(t *testing.T) {
	mr := miniredis.RunT(t)
	s := newStorage(t, mr)
	require.NoError(t, s.Save(context.Background(), storage.DefaultKey, []byte(`[]`)))

	got, err := mr.Get(storage.DefaultKey)
	require.NoError(t, err)
	require.Equal(t, `[]`, got)
}

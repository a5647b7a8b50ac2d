package rescache_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/streamkit/streamkit/internal/rescache"
)

func startMiniRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)
	return mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	mr := startMiniRedis(t)
	store, err := rescache.NewRedisStore(rescache.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	defer store.Close()

	c := rescache.New(0, false, zerolog.Nop())
	fetches := 0
	c.RegisterRemoteLoader("dict", store, rescache.RemoteLoader{
		Fetch: func(params json.RawMessage) ([]byte, error) {
			fetches++
			return []byte(`["a","b","c"]`), nil
		},
		Decode: func(data []byte) (interface{}, int64, error) {
			var words []string
			if err := json.Unmarshal(data, &words); err != nil {
				return nil, 0, err
			}
			return words, int64(len(data)), nil
		},
	})

	h1, err := c.Acquire("dict", json.RawMessage(`"en"`))
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, h1.(*rescache.Handle).Value())
	require.Equal(t, 1, fetches)

	// A second, independent cache sharing the same remote store should find
	// the value already populated and skip Fetch entirely.
	c2 := rescache.New(0, false, zerolog.Nop())
	c2.RegisterRemoteLoader("dict", store, rescache.RemoteLoader{
		Fetch: func(params json.RawMessage) ([]byte, error) {
			fetches++
			return []byte(`["should","not","be","called"]`), nil
		},
		Decode: func(data []byte) (interface{}, int64, error) {
			var words []string
			if err := json.Unmarshal(data, &words); err != nil {
				return nil, 0, err
			}
			return words, int64(len(data)), nil
		},
	})

	h2, err := c2.Acquire("dict", json.RawMessage(`"en"`))
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, h2.(*rescache.Handle).Value())
	require.Equal(t, 1, fetches, "second process should reuse the remote-cached fetch")
}

func TestRedisStoreGetMissReturnsFalse(t *testing.T) {
	mr := startMiniRedis(t)
	store, err := rescache.NewRedisStore(rescache.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	defer store.Close()

	_, ok, err := store.Get(context.Background(), "nope")
	require.NoError(t, err)
	require.False(t, ok)
}

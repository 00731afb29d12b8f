package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func clients(t *testing.T) map[string]Client {
	t.Helper()

	mr := miniredis.RunT(t)
	rc, err := NewRedis(Config{Kind: "redis", Addr: mr.Addr(), Prefix: "gk"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rc.Close() })

	return map[string]Client{
		"memory": NewMemory("gk"),
		"redis":  rc,
	}
}

func TestClient_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	for name, c := range clients(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, c.Set(ctx, "refresh:abc", `{"sub":"u1"}`, time.Minute))

			v, err := c.Get(ctx, "refresh:abc")
			require.NoError(t, err)
			require.Equal(t, `{"sub":"u1"}`, v)

			ok, err := c.Exists(ctx, "refresh:abc")
			require.NoError(t, err)
			require.True(t, ok)

			require.NoError(t, c.Delete(ctx, "refresh:abc"))

			_, err = c.Get(ctx, "refresh:abc")
			require.True(t, IsNotFound(err))
		})
	}
}

func TestClient_GetDelIsOneShot(t *testing.T) {
	ctx := context.Background()
	for name, c := range clients(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, c.Set(ctx, "code:xyz", "payload", time.Minute))

			v, err := c.GetDel(ctx, "code:xyz")
			require.NoError(t, err)
			require.Equal(t, "payload", v)

			// Second consume must miss.
			_, err = c.GetDel(ctx, "code:xyz")
			require.True(t, IsNotFound(err))
		})
	}
}

func TestClient_GetDelMissing(t *testing.T) {
	ctx := context.Background()
	for name, c := range clients(t) {
		t.Run(name, func(t *testing.T) {
			_, err := c.GetDel(ctx, "code:nope")
			require.True(t, IsNotFound(err))
		})
	}
}

func TestMemory_TTLExpires(t *testing.T) {
	ctx := context.Background()
	c := NewMemory("")
	require.NoError(t, c.Set(ctx, "k", "v", 10*time.Millisecond))

	time.Sleep(30 * time.Millisecond)

	_, err := c.Get(ctx, "k")
	require.True(t, IsNotFound(err))
}

func TestRedis_TTLExpires(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	c, err := NewRedis(Config{Addr: mr.Addr()})
	require.NoError(t, err)

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	mr.FastForward(2 * time.Minute)

	_, err = c.Get(ctx, "k")
	require.True(t, IsNotFound(err))
}

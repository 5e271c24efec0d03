package redis

import (
	"context"
	"os"
	"testing"

	"github.com/fixkme/robustimer/timer"
	"github.com/redis/go-redis/v9"
	"github.com/rs/xid"
	"github.com/stretchr/testify/require"
)

// 需要设置ROBUSTIMER_TEST_REDIS=host:port
func testRedis(t *testing.T) *RedisImpl {
	addr := os.Getenv("ROBUSTIMER_TEST_REDIS")
	if addr == "" {
		t.Skip("ROBUSTIMER_TEST_REDIS not set")
	}
	db, err := NewRedis(RedisMode_Single, &redis.Options{Addr: addr})
	require.NoError(t, err)
	t.Cleanup(db.Stop)
	return db
}

func TestAdapterRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := testRedis(t)
	key := "robustimer:test:" + xid.New().String()
	defer db.GetCmdable().Del(ctx, key)

	a := NewAdapter(db.GetCmdable(), key)
	saved := []timer.State{
		{Name: "a", LastFireAt: 1_700_000_000_000, Active: true},
		{Name: "b", IsOnce: true},
	}
	require.NoError(t, a.Save(ctx, timer.NewSnapshot(saved, false)))
	require.NoError(t, db.GetCmdable().HSet(ctx, key, "junk", "\xff").Err())

	snap := timer.NewSnapshot([]timer.State{{Name: "a"}, {Name: "b", Active: true}, {Name: "c"}}, true)
	require.NoError(t, a.Restore(ctx, snap))
	require.Equal(t, saved, snap.Staged())
}

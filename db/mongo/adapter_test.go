package mongo

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/fixkme/robustimer/timer"
	"github.com/google/go-cmp/cmp"
	"github.com/rs/xid"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/event"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// 需要设置ROBUSTIMER_TEST_MONGO=mongodb://host:port
func testClient(t *testing.T, monitor *PoolMonitor) *mongo.Client {
	uri := os.Getenv("ROBUSTIMER_TEST_MONGO")
	if uri == "" {
		t.Skip("ROBUSTIMER_TEST_MONGO not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetPoolMonitor(monitor.PoolMonitor()))
	require.NoError(t, err)
	t.Cleanup(func() { client.Disconnect(context.Background()) })
	return client
}

func TestAdapterRoundTrip(t *testing.T) {
	ctx := context.Background()
	monitor := &PoolMonitor{}
	client := testClient(t, monitor)
	opt := Options{Database: "robustimer_test", Collection: "timers_" + xid.New().String(), NameField: "timer_name"}
	a := NewAdapter(client, opt)
	defer a.coll.Drop(ctx)
	require.NoError(t, a.EnsureIndex(ctx))

	saved := []timer.State{
		{Name: "a", LastFireAt: 1_700_000_000_000, Active: true},
		{Name: "b", IsOnce: true},
	}
	require.NoError(t, a.Save(ctx, timer.NewSnapshot(saved, false)))
	// 再存一次, 覆盖而不是新增
	require.NoError(t, a.Save(ctx, timer.NewSnapshot(saved, false)))
	n, err := a.coll.CountDocuments(ctx, bson.M{})
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	snap := timer.NewSnapshot([]timer.State{{Name: "a"}, {Name: "b", Active: true}}, true)
	require.NoError(t, a.Restore(ctx, snap))
	if diff := cmp.Diff(saved, snap.Staged()); diff != "" {
		t.Fatalf("restore mismatch (-want +got):\n%s", diff)
	}
	require.Greater(t, monitor.GetActiveConnections(), 0)
}

func TestDecodeLoose(t *testing.T) {
	a := &Adapter{}
	a.opt.defaults()
	st, ok := a.decode(bson.M{"name": "x", "last_fire_at": int32(7), "is_once": int32(1), "active": true})
	require.True(t, ok)
	require.Equal(t, timer.State{Name: "x", LastFireAt: 7, IsOnce: true, Active: true}, st)

	// 手工写入或其它程序导出的字符串字段
	st, ok = a.decode(bson.M{"name": "y", "last_fire_at": " 1700000000000", "is_once": "false", "active": "1"})
	require.True(t, ok)
	require.Equal(t, timer.State{Name: "y", LastFireAt: 1700000000000, IsOnce: false, Active: true}, st)
	st, ok = a.decode(bson.M{"name": "z", "last_fire_at": "1.7e12", "active": "true"})
	require.True(t, ok)
	require.Equal(t, timer.State{Name: "z", LastFireAt: 1700000000000, Active: true}, st)
	st, _ = a.decode(bson.M{"name": "w", "last_fire_at": "soon", "active": "no"})
	require.Equal(t, timer.State{Name: "w"}, st)

	_, ok = a.decode(bson.M{"last_fire_at": int64(1)})
	require.False(t, ok)
}

func TestPoolMonitorCounts(t *testing.T) {
	m := &PoolMonitor{}
	m.Event(&event.PoolEvent{Type: event.ConnectionCreated})
	m.Event(&event.PoolEvent{Type: event.ConnectionCreated})
	m.Event(&event.PoolEvent{Type: event.ConnectionClosed})
	m.Event(&event.PoolEvent{Type: event.GetFailed})
	require.Equal(t, 1, m.GetActiveConnections())
	require.EqualValues(t, 1, m.checkoutFailed.Load())
}

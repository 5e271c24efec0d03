package etcd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/fixkme/robustimer/timer"
	"github.com/rs/xid"
	"github.com/stretchr/testify/require"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// 需要设置ROBUSTIMER_TEST_ETCD=host:port[,host:port]
func testClient(t *testing.T) *clientv3.Client {
	endpoints := os.Getenv("ROBUSTIMER_TEST_ETCD")
	if endpoints == "" {
		t.Skip("ROBUSTIMER_TEST_ETCD not set")
	}
	cli, err := NewClient(&Options{Endpoints: strings.Split(endpoints, ",")})
	require.NoError(t, err)
	t.Cleanup(func() { cli.Close() })
	return cli
}

func TestAdapterRoundTrip(t *testing.T) {
	ctx := context.Background()
	cli := testClient(t)
	prefix := "robustimer/test/" + xid.New().String() + "/"
	defer cli.Delete(ctx, prefix, clientv3.WithPrefix())

	a := NewAdapter(cli, prefix)
	var saved []timer.State
	// 超过单个txn上限, 分批提交
	for i := 0; i < maxTxnOps+10; i++ {
		saved = append(saved, timer.State{Name: fmt.Sprintf("t%03d", i), LastFireAt: int64(i + 1), Active: i%2 == 0})
	}
	require.NoError(t, a.Save(ctx, timer.NewSnapshot(saved, false)))
	_, err := cli.Put(ctx, prefix+"junk", "\xff")
	require.NoError(t, err)

	regs := make([]timer.State, len(saved))
	for i, st := range saved {
		regs[i] = timer.State{Name: st.Name}
	}
	snap := timer.NewSnapshot(regs, true)
	require.NoError(t, a.Restore(ctx, snap))
	require.Equal(t, saved, snap.Staged())
}

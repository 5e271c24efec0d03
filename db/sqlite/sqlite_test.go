package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/fixkme/robustimer/timer"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func noop(context.Context, any) error { return nil }

func openTemp(t *testing.T, opt Options) *Adapter {
	t.Helper()
	opt.Path = filepath.Join(t.TempDir(), "timers.db")
	a, err := Open(opt)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestEngineRoundTrip(t *testing.T) {
	ctx := context.Background()
	a := openTemp(t, Options{})

	e1 := timer.New(timer.WithAdapter(a))
	defer e1.Close()
	_, err := e1.Register(timer.Spec{Name: "a", Interval: time.Second, Handler: noop, LastFireAt: 1_700_000_000_000})
	require.NoError(t, err)
	_, err = e1.Register(timer.Spec{Name: "b", Interval: time.Second, Handler: noop, IsOnce: true, Inactive: true})
	require.NoError(t, err)
	require.NoError(t, e1.Save(ctx))
	// 再存一次走update分支
	require.NoError(t, e1.Deactivate("a"))
	require.NoError(t, e1.Save(ctx))

	e2 := timer.New(timer.WithAdapter(a))
	defer e2.Close()
	require.NoError(t, e2.Interval("a", time.Minute, noop))
	require.NoError(t, e2.Interval("b", time.Minute, noop))
	require.NoError(t, e2.Restore(ctx))

	want, err := e1.List("")
	require.NoError(t, err)
	got, err := e2.List("")
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("restored state mismatch (-want +got):\n%s", diff)
	}
}

func TestCustomColumns(t *testing.T) {
	ctx := context.Background()
	a := openTemp(t, Options{
		Table:            "jobs",
		NameColumn:       "job",
		LastFireAtColumn: "lastExecutionTimestamp",
		IsOnceColumn:     "isOnce",
		ActiveColumn:     "enabled",
	})
	require.NoError(t, a.Save(ctx, timer.NewSnapshot([]timer.State{{Name: "x", LastFireAt: 9, Active: true}}, false)))

	var last int64
	require.NoError(t, a.db.QueryRowContext(ctx, `SELECT "lastExecutionTimestamp" FROM "jobs" WHERE "job" = ?`, "x").Scan(&last))
	require.EqualValues(t, 9, last)

	snap := timer.NewSnapshot([]timer.State{{Name: "x"}}, true)
	require.NoError(t, a.Restore(ctx, snap))
	require.Equal(t, []timer.State{{Name: "x", LastFireAt: 9, Active: true}}, snap.Staged())
}

func TestInvalidIdentifier(t *testing.T) {
	_, err := Open(Options{Path: filepath.Join(t.TempDir(), "x.db"), Table: "timers; DROP"})
	require.Error(t, err)
	_, err = Open(Options{})
	require.Error(t, err)
}

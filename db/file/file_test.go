package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fixkme/robustimer/timer"
	"github.com/stretchr/testify/require"
)

func noop(context.Context, any) error { return nil }

func TestEngineRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "timers.json")
	a, err := New(path)
	require.NoError(t, err)

	e1 := timer.New(timer.WithAdapter(a))
	defer e1.Close()
	_, err = e1.Register(timer.Spec{Name: "a", Interval: time.Second, Handler: noop, LastFireAt: 1000})
	require.NoError(t, err)
	_, err = e1.Register(timer.Spec{Name: "b", Interval: time.Second, Handler: noop, IsOnce: true, Inactive: true})
	require.NoError(t, err)
	require.NoError(t, e1.Save(ctx))

	_, err = os.Stat(path + ".tmp")
	require.True(t, os.IsNotExist(err))

	e2 := timer.New(timer.WithAdapter(a))
	defer e2.Close()
	require.NoError(t, e2.Interval("a", time.Minute, noop))
	require.NoError(t, e2.Interval("b", time.Minute, noop))
	require.NoError(t, e2.Restore(ctx))

	want, err := e1.List("")
	require.NoError(t, err)
	got, err := e2.List("")
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestSaveKeepsOtherEntries(t *testing.T) {
	ctx := context.Background()
	a, err := New(filepath.Join(t.TempDir(), "timers.json"))
	require.NoError(t, err)

	require.NoError(t, a.Save(ctx, timer.NewSnapshot([]timer.State{{Name: "x", Active: true}}, false)))
	require.NoError(t, a.Save(ctx, timer.NewSnapshot([]timer.State{{Name: "y", LastFireAt: 5}}, false)))

	snap := timer.NewSnapshot([]timer.State{{Name: "x"}, {Name: "y"}}, true)
	require.NoError(t, a.Restore(ctx, snap))
	require.Equal(t, []timer.State{{Name: "x", Active: true}, {Name: "y", LastFireAt: 5}}, snap.Staged())
}

func TestRestoreMissingFile(t *testing.T) {
	a, err := New(filepath.Join(t.TempDir(), "none.json"))
	require.NoError(t, err)
	snap := timer.NewSnapshot([]timer.State{{Name: "x"}}, true)
	require.NoError(t, a.Restore(context.Background(), snap))
	require.Empty(t, snap.Staged())
}

func TestRestoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))
	a, err := New(path)
	require.NoError(t, err)
	require.Error(t, a.Restore(context.Background(), timer.NewSnapshot(nil, true)))

	_, err = New(" ")
	require.Error(t, err)
}

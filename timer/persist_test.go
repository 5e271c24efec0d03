package timer

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/fixkme/robustimer/util/errs"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

// mapAdapter 内存里的插件, 测试用
type mapAdapter struct {
	saved map[string]State
	err   error
}

func (a *mapAdapter) Save(_ context.Context, snap Snapshot) error {
	if a.err != nil {
		return a.err
	}
	a.saved = make(map[string]State)
	for _, st := range snap.Timers() {
		a.saved[st.Name] = st
	}
	return nil
}

func (a *mapAdapter) Restore(_ context.Context, snap Snapshot) error {
	for _, st := range a.saved {
		snap.Update(st)
	}
	return a.err
}

func TestSaveRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := newManualSource(base)
	a := &mapAdapter{}
	e1 := New(WithSource(src), WithAdapter(a))
	defer e1.Close()
	_, err := e1.Register(Spec{Name: "a", Interval: time.Second, Handler: handlerA, LastFireAt: base - 10})
	require.NoError(t, err)
	_, err = e1.Register(Spec{Name: "b", Interval: time.Second, Handler: handlerA, Inactive: true})
	require.NoError(t, err)
	_, err = e1.Register(Spec{Name: "c", Interval: time.Second, Handler: handlerA, IsOnce: true, LastFireAt: base - 500})
	require.NoError(t, err)
	require.NoError(t, e1.Save(ctx))

	e2 := New(WithSource(newManualSource(base)))
	defer e2.Close()
	for _, name := range []string{"a", "b", "c", "d"} {
		require.NoError(t, e2.Interval(name, time.Minute, handlerB))
	}
	require.ErrorIs(t, e2.Restore(ctx), errs.NoAdapter)
	require.NoError(t, e2.UseAdapter(a).Restore(ctx))

	want, err := e1.List("")
	require.NoError(t, err)
	got, err := e2.List("")
	require.NoError(t, err)
	require.Len(t, got, 4)
	if diff := cmp.Diff(want, got[:3]); diff != "" {
		t.Fatalf("restored state mismatch (-want +got):\n%s", diff)
	}
	// 未保存过的定时器保持原样
	require.Equal(t, State{Name: "d", Active: true}, got[3])
}

func TestRestoreNeverCreates(t *testing.T) {
	a := &mapAdapter{saved: map[string]State{"ghost": {Name: "ghost", Active: true}}}
	e := New(WithAdapter(a))
	defer e.Close()
	require.NoError(t, e.Restore(context.Background()))
	require.Zero(t, e.Len())
}

func TestAdapterFailureLeavesState(t *testing.T) {
	ctx := context.Background()
	a := &mapAdapter{saved: map[string]State{"t": {Name: "t", LastFireAt: base, IsOnce: true}}, err: io.ErrUnexpectedEOF}
	e := New(WithAdapter(a))
	defer e.Close()
	require.NoError(t, e.Interval("t", time.Second, handlerA))

	err := e.Restore(ctx)
	require.ErrorIs(t, err, errs.AdapterFailed)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	st, err := e.Get("t")
	require.NoError(t, err)
	require.Equal(t, State{Name: "t", Active: true}, st)

	err = e.Save(ctx)
	require.ErrorIs(t, err, errs.AdapterFailed)
	require.Equal(t, "ADAPTER_FAILED,op=save: unexpected EOF", err.Error())
}

func TestRestoreOldTimestampFiresImmediately(t *testing.T) {
	src := newManualSource(base)
	a := &mapAdapter{saved: map[string]State{"t": {Name: "t", LastFireAt: base - 250, Active: true}}}
	e := New(WithSource(src), WithAdapter(a))
	defer e.Close()
	require.NoError(t, e.Interval("t", 100*time.Millisecond, handlerA))

	require.NoError(t, e.RestoreAndStart(context.Background()))
	waitPending(t, src, base)
}

func TestRestoreRecentTimestamp(t *testing.T) {
	src := newManualSource(base)
	a := &mapAdapter{saved: map[string]State{"t": {Name: "t", LastFireAt: base - 30, Active: true}}}
	e := New(WithSource(src), WithAdapter(a))
	defer e.Close()
	require.NoError(t, e.Interval("t", 100*time.Millisecond, handlerA))

	require.NoError(t, e.RestoreAndStart(context.Background()))
	waitPending(t, src, base+70)
}

func TestRestoreAfterStart(t *testing.T) {
	ctx := context.Background()
	src := newManualSource(base)
	a := &mapAdapter{}
	e := New(WithSource(src), WithAdapter(a), WithStart())
	defer e.Close()
	require.NoError(t, e.Interval("run", 100*time.Millisecond, handlerA))
	require.NoError(t, e.Interval("idle", 100*time.Millisecond, handlerB))
	require.NoError(t, e.Deactivate("idle"))
	waitPending(t, src, base+100)

	// 等待中的定时器按恢复的时间重新计算
	a.saved = map[string]State{
		"run":  {Name: "run", LastFireAt: base - 80, Active: true},
		"idle": {Name: "idle", LastFireAt: base - 60, Active: true},
	}
	require.NoError(t, e.Restore(ctx))
	waitPending(t, src, base+20, base+40)

	a.saved = map[string]State{
		"run": {Name: "run", LastFireAt: base - 80, Active: false},
	}
	require.NoError(t, e.Restore(ctx))
	waitPending(t, src, base+40)
	st, err := e.Get("run")
	require.NoError(t, err)
	require.False(t, st.Active)
}

func TestSnapshotReadOnly(t *testing.T) {
	snap := NewSnapshot([]State{{Name: "a"}}, false)
	require.False(t, snap.Update(State{Name: "a", Active: true}))
	st, ok := snap.Lookup("a")
	require.True(t, ok)
	require.False(t, st.Active)

	rw := NewSnapshot([]State{{Name: "a"}, {Name: "b"}}, true)
	require.True(t, rw.Update(State{Name: "b", IsOnce: true}))
	require.False(t, rw.Update(State{Name: "z"}))
	require.Equal(t, []State{{Name: "b", IsOnce: true}}, rw.Staged())
}

func TestAdapterFuncs(t *testing.T) {
	var saved []State
	a := AdapterFuncs{SaveFunc: func(_ context.Context, snap Snapshot) error {
		saved = snap.Timers()
		return nil
	}}
	e := New()
	defer e.Close()
	require.NoError(t, e.Interval("t", time.Second, handlerA))
	require.NoError(t, e.UseAdapter(a).Save(context.Background()))
	require.Equal(t, []State{{Name: "t", Active: true}}, saved)
	require.ErrorIs(t, e.Restore(context.Background()), errs.NoAdapter)
}

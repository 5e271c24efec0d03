package timer

import (
	"context"
	"testing"
	"time"

	"github.com/fixkme/robustimer/util/errs"
	"github.com/stretchr/testify/require"
)

func handlerA(context.Context, any) error { return nil }
func handlerB(context.Context, any) error { return nil }

func TestStorePutReplace(t *testing.T) {
	s := newStore()
	first := newRecord(&Spec{Name: "t", Interval: time.Second, Handler: handlerA})
	require.Nil(t, s.put(first))
	second := newRecord(&Spec{Name: "t", Interval: time.Minute, Handler: handlerB})
	require.Same(t, first, s.put(second))
	require.Equal(t, 1, s.len())

	rec, err := s.get("t")
	require.NoError(t, err)
	require.Same(t, second, rec)
	require.True(t, s.holds(second))
	require.False(t, s.holds(first))
}

func TestStoreNotFound(t *testing.T) {
	s := newStore()
	_, err := s.get("missing")
	require.ErrorIs(t, err, errs.TimerNotFound)
	require.Nil(t, s.lookup("missing"))
	s.delete("missing")
}

func TestStoreFindByHandler(t *testing.T) {
	s := newStore()
	s.put(newRecord(&Spec{Name: "a", Interval: time.Second, Handler: handlerA}))
	s.put(newRecord(&Spec{Name: "b", Interval: time.Second, Handler: handlerB}))

	name, ok := s.findByHandler(handlerB)
	require.True(t, ok)
	require.Equal(t, "b", name)

	s.delete("b")
	_, ok = s.findByHandler(handlerB)
	require.False(t, ok)
	_, ok = s.findByHandler(nil)
	require.False(t, ok)
}

func TestStoreWalkPrefix(t *testing.T) {
	s := newStore()
	for _, name := range []string{"job.b", "other", "job.a", "job.c"} {
		s.put(newRecord(&Spec{Name: name, Interval: time.Second, Handler: handlerA}))
	}
	var names []string
	s.walk("job.", func(rec *Record) bool {
		names = append(names, rec.name)
		return true
	})
	require.Equal(t, []string{"job.a", "job.b", "job.c"}, names)

	names = names[:0]
	s.walk("", func(rec *Record) bool {
		names = append(names, rec.name)
		return len(names) < 2
	})
	require.Equal(t, []string{"job.a", "job.b"}, names)
}

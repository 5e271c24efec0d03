package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/fixkme/robustimer/timer"
)

// Adapter 进程内存储, 多个engine可以共用一个实例
type Adapter struct {
	mu     sync.RWMutex
	states map[string]timer.State
}

func New(states ...timer.State) *Adapter {
	a := &Adapter{states: make(map[string]timer.State, len(states))}
	for _, st := range states {
		a.states[st.Name] = st
	}
	return a
}

// Save 按名字覆盖, 不删除快照里没有的记录
func (a *Adapter) Save(_ context.Context, snap timer.Snapshot) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, st := range snap.Timers() {
		a.states[st.Name] = st
	}
	return nil
}

func (a *Adapter) Restore(_ context.Context, snap timer.Snapshot) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, st := range a.states {
		snap.Update(st)
	}
	return nil
}

func (a *Adapter) States() []timer.State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]timer.State, 0, len(a.states))
	for _, st := range a.states {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

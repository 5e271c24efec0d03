package timer

import (
	"context"
	"sync"

	"github.com/fixkme/robustimer/mlog"
	"github.com/fixkme/robustimer/util/errs"
)

// Adapter 持久化插件, Save/Restore都在engine协程之外调用
// Restore只能更新已注册的定时器, 不能新建
type Adapter interface {
	Save(ctx context.Context, snap Snapshot) error
	Restore(ctx context.Context, snap Snapshot) error
}

// Snapshot engine状态的副本
type Snapshot interface {
	// Timers 所有定时器, 按名字排序
	Timers() []State
	Lookup(name string) (State, bool)
	// Update 只对已存在的名字生效, 只读视图返回false
	Update(st State) bool
}

// AdapterFuncs 用两个函数拼一个Adapter
type AdapterFuncs struct {
	SaveFunc    func(ctx context.Context, snap Snapshot) error
	RestoreFunc func(ctx context.Context, snap Snapshot) error
}

func (a AdapterFuncs) Save(ctx context.Context, snap Snapshot) error {
	if a.SaveFunc == nil {
		return errs.NoAdapter.Print("op=save")
	}
	return a.SaveFunc(ctx, snap)
}

func (a AdapterFuncs) Restore(ctx context.Context, snap Snapshot) error {
	if a.RestoreFunc == nil {
		return errs.NoAdapter.Print("op=restore")
	}
	return a.RestoreFunc(ctx, snap)
}

// StateSnapshot Snapshot的默认实现, 并发安全
type StateSnapshot struct {
	mu       sync.Mutex
	states   []State
	index    map[string]int
	writable bool
	staged   map[string]struct{}
}

// NewSnapshot writable为false时Update总是返回false
func NewSnapshot(states []State, writable bool) *StateSnapshot {
	s := &StateSnapshot{
		states:   make([]State, len(states)),
		index:    make(map[string]int, len(states)),
		writable: writable,
		staged:   make(map[string]struct{}),
	}
	copy(s.states, states)
	for i, st := range s.states {
		s.index[st.Name] = i
	}
	return s
}

func (s *StateSnapshot) Timers() []State {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]State, len(s.states))
	copy(out, s.states)
	return out
}

func (s *StateSnapshot) Lookup(name string) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[name]
	if !ok {
		return State{}, false
	}
	return s.states[i], true
}

func (s *StateSnapshot) Update(st State) bool {
	if !s.writable {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[st.Name]
	if !ok {
		return false
	}
	s.states[i] = st
	s.staged[st.Name] = struct{}{}
	return true
}

// Staged Update过的状态, 按名字排序
func (s *StateSnapshot) Staged() []State {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]State, 0, len(s.staged))
	for _, st := range s.states {
		if _, ok := s.staged[st.Name]; ok {
			out = append(out, st)
		}
	}
	return out
}

// UseAdapter 设置默认插件
func (e *Engine) UseAdapter(a Adapter) *Engine {
	e.adapterMu.Lock()
	e.adapter = a
	e.adapterMu.Unlock()
	return e
}

func (e *Engine) currentAdapter() Adapter {
	e.adapterMu.RLock()
	defer e.adapterMu.RUnlock()
	return e.adapter
}

func (e *Engine) snapshot(ctx context.Context, writable bool) (*StateSnapshot, error) {
	var snap *StateSnapshot
	err := e.callCtx(ctx, func() error {
		states := make([]State, 0, e.store.len())
		e.store.walk("", func(rec *Record) bool {
			states = append(states, rec.state())
			return true
		})
		snap = NewSnapshot(states, writable)
		return nil
	})
	return snap, err
}

// Save 通过插件保存所有定时器状态, 内存状态不受影响
func (e *Engine) Save(ctx context.Context) error {
	a := e.currentAdapter()
	if a == nil {
		return errs.NoAdapter.Print("op=save")
	}
	snap, err := e.snapshot(ctx, false)
	if err != nil {
		return err
	}
	err = a.Save(ctx, snap)
	e.metrics.observeAdapter("save", err)
	if err != nil {
		mlog.Errorf("timer engine save failed: %v", err)
		return errs.AdapterFailed.Print("op=save").Wrap(err)
	}
	return nil
}

// Restore 通过插件恢复已注册定时器的状态, 插件失败时内存状态不变
func (e *Engine) Restore(ctx context.Context) error {
	a := e.currentAdapter()
	if a == nil {
		return errs.NoAdapter.Print("op=restore")
	}
	snap, err := e.snapshot(ctx, true)
	if err != nil {
		return err
	}
	err = a.Restore(ctx, snap)
	e.metrics.observeAdapter("restore", err)
	if err != nil {
		mlog.Errorf("timer engine restore failed: %v", err)
		return errs.AdapterFailed.Print("op=restore").Wrap(err)
	}
	staged := snap.Staged()
	return e.call(func() error {
		for _, st := range staged {
			e.applyState(st)
		}
		e.sched.refreshGauges()
		mlog.Infof("timer engine restored %d timers", len(staged))
		return nil
	})
}

// RestoreAndStart Restore成功后Start
func (e *Engine) RestoreAndStart(ctx context.Context) error {
	if err := e.Restore(ctx); err != nil {
		return err
	}
	return e.Start()
}

// applyState 把持久化状态合并到已有记录
func (e *Engine) applyState(st State) {
	rec := e.store.lookup(st.Name)
	if rec == nil {
		return
	}
	s := e.sched
	rec.isOnce = st.IsOnce
	rec.lastFireAt = st.LastFireAt
	switch {
	case rec.active && !st.Active:
		s.halt(rec)
		rec.active = false
	case !rec.active && st.Active:
		rec.active = true
		s.cycle(rec)
	case rec.active && rec.waitID != 0:
		// 按新的lastFireAt重新计算等待
		s.halt(rec)
		s.cycle(rec)
	}
}

package g

import (
	"context"
	"sync"

	"github.com/fixkme/robustimer/clock"
)

// RoutineAgent 单协程执行体, 任务和定时器回调都在Run协程里串行执行
type RoutineAgent struct {
	*Go
	closeSig    chan struct{}
	done        chan struct{}
	isClosed    bool
	mutex       sync.RWMutex
	timerCh     chan *clock.Promise
	timerCb     TimerCb
	beforeClose func()
	deferred    []func() // 下一轮执行, 只在Run协程访问
}

type TimerCb func(tid int64, now int64, data any)

func NewRoutineAgent(taskChSize, timerChSize int) *RoutineAgent {
	if timerChSize < 1 {
		timerChSize = 1
	}
	a := &RoutineAgent{
		Go:       NewGoChan(taskChSize),
		closeSig: make(chan struct{}),
		done:     make(chan struct{}),
		timerCh:  make(chan *clock.Promise, timerChSize),
	}
	return a
}

func (a *RoutineAgent) Init(timerCb TimerCb, beforeClose func()) {
	a.timerCb = timerCb
	a.beforeClose = beforeClose
}

func (a *RoutineAgent) GetTimerReciver() chan<- *clock.Promise {
	return a.timerCh
}

// Done Run退出后关闭
func (a *RoutineAgent) Done() <-chan struct{} {
	return a.done
}

func (a *RoutineAgent) Run() {
	defer a.onClose()

	for {
		select {
		case <-a.closeSig:
			return
		case cb := <-a.Go.ChanCb:
			a.Go.Exec(cb)
		case t := <-a.timerCh:
			if a.timerCb != nil {
				a.Go.Exec(func() { a.timerCb(t.TimerId, t.NowTs, t.Data) })
			}
		}
		a.runDeferred()
	}
}

// Defer 当前任务结束后再执行f, 只能在Run协程里调用
func (a *RoutineAgent) Defer(f func()) {
	a.deferred = append(a.deferred, f)
}

func (a *RoutineAgent) runDeferred() {
	for len(a.deferred) > 0 {
		fs := a.deferred
		a.deferred = nil
		for _, f := range fs {
			a.Go.Exec(f)
		}
	}
}

func (a *RoutineAgent) onClose() {
	if a.beforeClose != nil {
		a.Go.Exec(a.beforeClose)
	}
	a.Go.Close()
	for cb := range a.Go.ChanCb {
		a.Go.Exec(cb)
	}
	a.deferred = nil
	close(a.done)
}

func (a *RoutineAgent) Close() {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	if a.isClosed {
		return
	}

	a.isClosed = true
	close(a.closeSig)
}

// SyncRunFunc 投递并等待f执行完, 不能在Run协程里调用
func (a *RoutineAgent) SyncRunFunc(f func()) (err error) {
	return a.CtxRunFunc(context.Background(), f)
}

func (a *RoutineAgent) CtxRunFunc(ctx context.Context, f func()) (err error) {
	a.mutex.RLock()
	if a.isClosed {
		a.mutex.RUnlock()
		return ErrRoutineClosed
	}
	finish := make(chan struct{})
	call := func() {
		defer close(finish)
		f()
	}
	select {
	case a.Go.ChanCb <- call:
	case <-ctx.Done():
		a.mutex.RUnlock()
		return ctx.Err()
	}
	a.mutex.RUnlock()

	select {
	case <-finish:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *RoutineAgent) MustRunFunc(f func()) error {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	if a.isClosed {
		return ErrRoutineClosed
	}

	a.Go.MustSubmit(f)
	return nil
}

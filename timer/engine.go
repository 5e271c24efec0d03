package timer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fixkme/robustimer/clock"
	g "github.com/fixkme/robustimer/framework/go"
	"github.com/fixkme/robustimer/mlog"
	"github.com/fixkme/robustimer/util/errs"
	"github.com/rs/xid"
)

const defaultQueueSize = 1024

// Engine 定时器注册表
// 所有状态由内部一个协程持有, 公开方法可以在任意协程调用, Handler里也可以(Close除外)
type Engine struct {
	agent   *g.RoutineAgent
	store   *store
	sched   *scheduler
	metrics *metrics
	closed  bool // engine协程内读写

	adapterMu sync.RWMutex
	adapter   Adapter

	ownSource *clock.System
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func New(opts ...Option) *Engine {
	o := options{queueSize: defaultQueueSize}
	for _, opt := range opts {
		opt(&o)
	}
	e := &Engine{
		agent:   g.NewRoutineAgent(o.queueSize, o.queueSize),
		store:   newStore(),
		metrics: newMetrics(o.registerer),
		adapter: o.adapter,
	}
	src := o.source
	if src == nil {
		e.ownSource = clock.NewSystem()
		src = e.ownSource
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.sched = &scheduler{
		source:  src,
		agent:   e.agent,
		store:   e.store,
		metrics: e.metrics,
		ctx:     ctx,
	}
	e.agent.Init(e.sched.onTimer, nil)
	go e.agent.Run()
	if o.start {
		_ = e.Start()
	}
	return e
}

func (e *Engine) call(f func() error) error {
	return e.callCtx(context.Background(), f)
}

func (e *Engine) callCtx(ctx context.Context, f func() error) (err error) {
	perr := e.agent.CtxRunFunc(ctx, func() {
		if e.closed {
			err = errs.EngineClosed
			return
		}
		err = f()
	})
	if errors.Is(perr, g.ErrRoutineClosed) {
		return errs.EngineClosed
	}
	if perr != nil {
		return perr
	}
	return err
}

// Register 注册定时器, 同名覆盖; 已Start且激活时立即开始计时
func (e *Engine) Register(spec Spec) (string, error) {
	if spec.Handler == nil {
		return "", errs.MissingHandler.Printf("name=%s", spec.Name)
	}
	if spec.Interval < time.Millisecond {
		return "", errs.InvalidInterval.Printf("name=%s,interval=%s", spec.Name, spec.Interval)
	}
	if len(spec.Name) == 0 {
		spec.Name = "timer-" + xid.New().String()
	}
	rec := newRecord(&spec)
	err := e.call(func() error {
		if old := e.store.put(rec); old != nil {
			e.sched.halt(old)
			old.active = false
			mlog.Debugf("timer %s replaced", rec.name)
		}
		e.sched.cycle(rec)
		e.sched.refreshGauges()
		return nil
	})
	if err != nil {
		return "", err
	}
	return rec.name, nil
}

// Interval 周期定时器
func (e *Engine) Interval(name string, interval time.Duration, h Handler) error {
	_, err := e.Register(Spec{Name: name, Interval: interval, Handler: h})
	return err
}

// Once 触发一次后自动注销
func (e *Engine) Once(name string, interval time.Duration, h Handler) error {
	_, err := e.Register(Spec{Name: name, Interval: interval, Handler: h, IsOnce: true})
	return err
}

func (e *Engine) Unregister(name string) error {
	return e.call(func() error {
		rec, err := e.store.get(name)
		if err != nil {
			return err
		}
		e.sched.remove(rec)
		return nil
	})
}

// UnregisterHandler 按handler查找, 同一个函数注册多次时只注销第一个
func (e *Engine) UnregisterHandler(h Handler) error {
	return e.call(func() error {
		name, ok := e.store.findByHandler(h)
		if !ok {
			return errs.TimerNotFound.Print("by handler")
		}
		e.sched.remove(e.store.lookup(name))
		return nil
	})
}

// Activate 重新激活, 下一次触发从现在起算完整间隔
func (e *Engine) Activate(name string) error {
	return e.call(func() error {
		rec, err := e.store.get(name)
		if err != nil {
			return err
		}
		if rec.active {
			return nil
		}
		rec.lastFireAt = 0
		rec.active = true
		rec.epoch++
		e.sched.cycle(rec)
		e.sched.refreshGauges()
		return nil
	})
}

// Deactivate 取消等待中的触发, 执行中的handler不受影响但不会再续期
func (e *Engine) Deactivate(name string) error {
	return e.call(func() error {
		rec, err := e.store.get(name)
		if err != nil {
			return err
		}
		if !rec.active {
			return nil
		}
		e.sched.halt(rec)
		rec.active = false
		e.sched.refreshGauges()
		return nil
	})
}

// Start 开始所有激活定时器的计时, 重复调用无效果
func (e *Engine) Start() error {
	return e.call(func() error {
		if e.sched.started {
			return nil
		}
		e.sched.startAll()
		mlog.Infof("timer engine started, %d timers", e.store.len())
		return nil
	})
}

// Stop 暂停所有计时, 激活标志保留, 再次Start后继续
func (e *Engine) Stop() error {
	return e.call(func() error {
		if !e.sched.started {
			return nil
		}
		e.sched.stopAll()
		mlog.Infof("timer engine stopped")
		return nil
	})
}

// Close 停止并释放engine协程, 等待执行中的handler返回
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		_ = e.call(func() error {
			e.sched.stopAll()
			e.closed = true
			return nil
		})
		e.cancel()
		e.agent.Close()
		<-e.agent.Done()
		e.sched.running.Wait()
		if e.ownSource != nil {
			e.ownSource.Stop()
		}
	})
}

func (e *Engine) Started() bool {
	var started bool
	_ = e.call(func() error {
		started = e.sched.started
		return nil
	})
	return started
}

func (e *Engine) Get(name string) (st State, err error) {
	err = e.call(func() error {
		rec, err := e.store.get(name)
		if err != nil {
			return err
		}
		st = rec.state()
		return nil
	})
	return
}

// List 名字以prefix开头的定时器, 按名字排序
func (e *Engine) List(prefix string) (states []State, err error) {
	err = e.call(func() error {
		e.store.walk(prefix, func(rec *Record) bool {
			states = append(states, rec.state())
			return true
		})
		return nil
	})
	return
}

func (e *Engine) Len() int {
	var n int
	_ = e.call(func() error {
		n = e.store.len()
		return nil
	})
	return n
}

package timer

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/fixkme/robustimer/clock"
	g "github.com/fixkme/robustimer/framework/go"
	"github.com/fixkme/robustimer/mlog"
	"github.com/fixkme/robustimer/util"
	"github.com/fixkme/robustimer/util/errs"
)

// NextDelay 计算下一次触发前的等待毫秒数
// lastFireAt为0时等待完整间隔, 否则扣除距上次触发已经过去的时间, 最小为0
func NextDelay(interval time.Duration, lastFireAt, now int64) int64 {
	delay := interval.Milliseconds()
	if lastFireAt != 0 {
		// 持久化里读回的异常时间戳不能让计算溢出
		drift, _ := util.SubInt64(now, lastFireAt)
		delay, _ = util.SubInt64(delay, drift)
	}
	if delay < 0 {
		delay = 0
	}
	return delay
}

// scheduler 每个激活的记录一条 等待->触发->完成->下一轮 的链
// 除handler本身外, 所有方法都在agent协程里执行
type scheduler struct {
	source  clock.Source
	agent   *g.RoutineAgent
	store   *store
	metrics *metrics
	ctx     context.Context
	started bool
	running sync.WaitGroup // 执行中的handler
}

// cycle 开始一个新周期; handler还在执行时不开始, 由complete接上
func (s *scheduler) cycle(rec *Record) {
	if !s.started || !rec.active || rec.waitID != 0 || rec.running() || !s.store.holds(rec) {
		return
	}
	now := s.source.NowMs()
	w := &wake{
		rec:   rec,
		gen:   rec.gen,
		epoch: rec.epoch,
	}
	w.when, _ = util.AddInt64(now, NextDelay(rec.interval, rec.lastFireAt, now))
	id, err := s.source.NewTimer(w.when, w, s.agent.GetTimerReciver())
	if err != nil {
		// 置为未激活, 调用方重新Activate后恢复
		s.metrics.schedErrs.Inc()
		mlog.Errorf("timer %s schedule failed, deactivated: %v", rec.name, err)
		rec.active = false
		s.refreshGauges()
		return
	}
	rec.waitID = id
}

// halt 取消等待, 使旧的唤醒和完成回调失效
func (s *scheduler) halt(rec *Record) {
	if rec.waitID != 0 {
		if _, err := s.source.CancelTimer(rec.waitID); err != nil {
			mlog.Warnf("timer %s cancel wait %d failed: %v", rec.name, rec.waitID, err)
		}
		rec.waitID = 0
	}
	rec.gen++
}

// onTimer agent的定时器回调
func (s *scheduler) onTimer(tid int64, now int64, data any) {
	w, ok := data.(*wake)
	if !ok {
		return
	}
	rec := w.rec
	if rec.waitID != tid || rec.gen != w.gen || !s.store.holds(rec) {
		return
	}
	rec.waitID = 0
	if late := now - w.when; late > 0 {
		s.metrics.lateness.Observe(float64(late) / 1000)
	} else {
		s.metrics.lateness.Observe(0)
	}
	s.fire(rec, w)
}

func (s *scheduler) fire(rec *Record, w *wake) {
	rec.flight = w
	h, data, name := rec.handler, rec.data, rec.name
	s.running.Add(1)
	go func() {
		defer s.running.Done()
		err := invoke(s.ctx, h, data)
		if err != nil {
			mlog.Warnf("timer %s handler failed: %v", name, err)
		}
		if perr := s.agent.MustRunFunc(func() { s.complete(w, err) }); perr != nil {
			mlog.Debugf("timer %s completion dropped: %v", name, perr)
		}
	}()
}

func invoke(ctx context.Context, h Handler, data any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			mlog.Errorf("timer handler panic: %v\n%s", r, debug.Stack())
			err = errs.Unknown.Printf("panic=%v", r)
		}
	}()
	return h(ctx, data)
}

// complete 触发完成, 在agent协程里执行
func (s *scheduler) complete(w *wake, err error) {
	rec := w.rec
	if rec.flight == w {
		rec.flight = nil
	}
	s.metrics.observeFire(err)
	if !s.store.holds(rec) {
		// 已注销或被同名注册替换
		return
	}
	// 记录计划触发时刻, 不是handler结束时刻
	if w.epoch == rec.epoch && w.when > rec.lastFireAt {
		rec.lastFireAt = w.when
	}
	if rec.isOnce {
		s.remove(rec)
		return
	}
	// 中途stop/start或deactivate/activate过的, 按当前状态接上
	if !s.started || !rec.active || rec.waitID != 0 {
		return
	}
	// 下一轮放到当前任务之后, 不递归
	s.agent.Defer(func() { s.cycle(rec) })
}

func (s *scheduler) remove(rec *Record) {
	s.halt(rec)
	rec.active = false
	s.store.delete(rec.name)
	s.refreshGauges()
}

// startAll 给所有激活且空闲的记录开始周期
func (s *scheduler) startAll() {
	s.started = true
	s.store.walk("", func(rec *Record) bool {
		s.cycle(rec)
		return true
	})
}

// stopAll 取消所有等待, 激活标志保留
func (s *scheduler) stopAll() {
	s.started = false
	s.store.walk("", func(rec *Record) bool {
		s.halt(rec)
		return true
	})
}

func (s *scheduler) refreshGauges() {
	var active int
	s.store.walk("", func(rec *Record) bool {
		if rec.active {
			active++
		}
		return true
	})
	s.metrics.timers.Set(float64(s.store.len()))
	s.metrics.active.Set(float64(active))
}

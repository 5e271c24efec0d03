package clock

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/fixkme/robustimer/mlog"
	"github.com/fixkme/robustimer/util"
)

const (
	_DEFAULT_TICK     = 10 // ms
	_TIME_WHEEL_LEVEL = 4
)

var (
	_LEVEL_DIVIS = [_TIME_WHEEL_LEVEL]int64{0, 10, 18, 24}
	_LEVEL_SLOTS = [_TIME_WHEEL_LEVEL]int64{1 << 10, 1 << 8, 1 << 6, 1 << 6}
	_LEVEL_MASKS = [_TIME_WHEEL_LEVEL]int64{}
	_LEVEL_TICKS = [_TIME_WHEEL_LEVEL]int64{}
)

func init() {
	for i := 0; i < _TIME_WHEEL_LEVEL; i++ {
		_LEVEL_MASKS[i] = _LEVEL_SLOTS[i] - 1
		if i > 0 {
			_LEVEL_TICKS[i] = _LEVEL_SLOTS[i] * _LEVEL_TICKS[i-1]
		} else {
			_LEVEL_TICKS[i] = _LEVEL_SLOTS[i]
		}
	}
}

// Wheel 多层时间轮, 所有状态只在run协程里修改
type Wheel struct {
	genId    int64
	tick     int64 // 每格毫秒数
	lastTime int64
	slot     [_TIME_WHEEL_LEVEL]int64 //每层的指针位置
	tw       [_TIME_WHEEL_LEVEL]timeWheel
	taskch   chan func()
	closed   atomic.Bool
	locs     map[int64]*_Timer //记录位置
	now      func() int64
	quit     chan struct{}
	exited   chan struct{}
	stopOnce sync.Once
}

type timeWheel []*_List

type WheelOption func(*Wheel)

// WithTick 时间轮精度, 最小1ms
func WithTick(d time.Duration) WheelOption {
	return func(c *Wheel) {
		if ms := d.Milliseconds(); ms > 0 {
			c.tick = ms
		} else {
			c.tick = 1
		}
	}
}

func WithTaskSize(n int) WheelOption {
	return func(c *Wheel) {
		if n > 0 {
			c.taskch = make(chan func(), n)
		}
	}
}

func NewWheel(opts ...WheelOption) *Wheel {
	c := &Wheel{
		tick:   _DEFAULT_TICK,
		taskch: make(chan func(), 10240),
		locs:   make(map[int64]*_Timer),
		now:    func() int64 { return time.Now().UnixMilli() },
		quit:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	for i := 0; i < _TIME_WHEEL_LEVEL; i++ {
		c.slot[i] = 0
		c.tw[i] = make(timeWheel, _LEVEL_SLOTS[i])
	}
	return c
}

func (c *Wheel) Start() {
	go c.run()
}

func (c *Wheel) Stop() {
	c.stopOnce.Do(func() {
		c.closed.Store(true)
		close(c.quit)
	})
	<-c.exited
}

func (c *Wheel) NowMs() int64 {
	return c.now()
}

func (c *Wheel) NewTimer(when int64, data any, receiver chan<- *Promise) (id int64, err error) {
	t := &_Timer{
		when:     when,
		data:     data,
		receiver: receiver,
	}
	err = c.pushTask(func() {
		c.genId++
		t.id = c.genId
		c.addTimer(t)
		id = t.id
	})
	return
}

func (c *Wheel) CancelTimer(id int64) (ok bool, err error) {
	err = c.pushTask(func() {
		t := c.delTimer(id)
		ok = t != nil
	})
	return
}

func (c *Wheel) UpdateTimer(id int64, when int64) (ok bool, err error) {
	err = c.pushTask(func() {
		ok = c.updateTimer(id, when)
	})
	return
}

// Len 未到期的定时器数量
func (c *Wheel) Len() (n int, err error) {
	err = c.pushTask(func() {
		n = len(c.locs)
	})
	return
}

func (c *Wheel) locate(ticks int64) (level, slot int64) {
	for level = 0; level < _TIME_WHEEL_LEVEL; level++ {
		if ticks < _LEVEL_TICKS[level] {
			slot = ((ticks >> _LEVEL_DIVIS[level]) + c.slot[level]) & _LEVEL_MASKS[level]
			return
		}
	}
	level = _TIME_WHEEL_LEVEL - 1
	slot = _LEVEL_MASKS[level]
	return
}

func (c *Wheel) addTimer(timer *_Timer) {
	diff, _ := util.SubInt64(timer.when, c.lastTime)
	ticks := diff / c.tick
	if diff%c.tick > 0 { // 向上取整
		ticks++
	}
	if ticks <= 0 {
		ticks = 1
	}
	level, slot := c.locate(ticks)
	c.putTimer(level, slot, timer)
}

func (c *Wheel) putTimer(level, slot int64, timer *_Timer) {
	timerList := c.tw[level][slot]
	if timerList == nil {
		timerList = newTimerList()
		c.tw[level][slot] = timerList
	}
	timerList.PushBack(timer)
	c.locs[timer.id] = timer
}

func (c *Wheel) delTimer(id int64) *_Timer {
	timer, ok := c.locs[id]
	if ok {
		timer.removeFromList()
		delete(c.locs, id)
		return timer
	}
	return nil
}

func (c *Wheel) updateTimer(id int64, when int64) bool {
	t := c.delTimer(id)
	if t != nil {
		t.when = when
		c.addTimer(t)
		return true
	}
	return false
}

func (c *Wheel) trigger(nowMs int64) {
	timerList := c.tw[0][c.slot[0]]
	if timerList == nil {
		return
	}
	var retry []*_Timer
	timerList.PopRange(func(timer *_Timer) bool {
		delete(c.locs, timer.id)
		if timer.when > nowMs {
			// 重新加入时间轮, 一般是下一次tick
			c.addTimer(timer)
			return true
		}
		promise := &Promise{TimerId: timer.id, NowTs: nowMs, Data: timer.data}
		select {
		case timer.receiver <- promise:
		default:
			retry = append(retry, timer)
		}
		return true
	})
	// 接收方满了, 放入下一个tick
	for _, timer := range retry {
		mlog.Warnf("clock receiver full, timer %d delayed one tick", timer.id)
		c.putTimer(0, (c.slot[0]+1)&_LEVEL_MASKS[0], timer)
	}
}

func (c *Wheel) advance(nowMs, tkTime int64) {
	c.slot[0] = (c.slot[0] + 1) & _LEVEL_MASKS[0]
	// 0层触发定时器
	c.trigger(nowMs)
	// 高层轮动
	for i := 1; i < _TIME_WHEEL_LEVEL; i++ {
		if c.slot[i-1] != 0 {
			break
		}
		c.slot[i] = (c.slot[i] + 1) & _LEVEL_MASKS[i]
		timerList := c.tw[i][c.slot[i]]
		if timerList == nil {
			continue
		}
		timerList.PopRange(func(timer *_Timer) bool {
			//加入到下一层
			ticks := (timer.when - tkTime + c.tick - 1) / c.tick
			if ticks <= 0 {
				ticks = 1
			}
			level, slot := c.locate(ticks)
			c.putTimer(level, slot, timer)
			return true
		})
	}
}

func (c *Wheel) run() {
	defer close(c.exited)
	tickTimeSpan := time.Millisecond * time.Duration(c.tick)
	tickTimer := time.NewTimer(tickTimeSpan)
	defer tickTimer.Stop()
	c.lastTime = c.now()
	var nowMs, tk int64
	for {
		select {
		case <-c.quit:
			return
		case <-tickTimer.C:
			nowMs = c.now()
			tk = c.lastTime + c.tick
			c.lastTime += c.tick * ((nowMs - c.lastTime) / c.tick)
			for ; tk <= c.lastTime; tk += c.tick {
				c.advance(nowMs, tk)
			}
			tickTimer.Reset(tickTimeSpan)
		case fn := <-c.taskch:
			fn()
		}
	}
}

func (c *Wheel) pushTask(f func()) error {
	if c.closed.Load() {
		return ErrClockClosed
	}
	done := make(chan struct{})
	ff := func() {
		defer close(done)
		f()
	}
	select {
	case c.taskch <- ff:
	default:
		return ErrClockBusy
	}
	select {
	case <-done:
		return nil
	case <-c.exited:
		return ErrClockClosed
	}
}

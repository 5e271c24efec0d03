package clock

import (
	"math"
	"sync"
	"time"

	"github.com/fixkme/robustimer/util"
)

const maxDelayMs = math.MaxInt64 / int64(time.Millisecond)

// System 基于runtime timer的定时器, 精度为毫秒
type System struct {
	mu     sync.Mutex
	genId  int64
	timers map[int64]*time.Timer
	closed bool
	quit   chan struct{}
}

func NewSystem() *System {
	return &System{
		timers: make(map[int64]*time.Timer),
		quit:   make(chan struct{}),
	}
}

func (s *System) NowMs() int64 {
	return time.Now().UnixMilli()
}

func (s *System) NewTimer(when int64, data any, receiver chan<- *Promise) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClockClosed
	}
	s.genId++
	id := s.genId
	ms, _ := util.SubInt64(when, s.NowMs())
	d := time.Duration(min(max(ms, 0), maxDelayMs)) * time.Millisecond
	s.timers[id] = time.AfterFunc(d, func() {
		s.mu.Lock()
		_, ok := s.timers[id]
		delete(s.timers, id)
		s.mu.Unlock()
		if !ok {
			return
		}
		select {
		case receiver <- &Promise{TimerId: id, NowTs: s.NowMs(), Data: data}:
		case <-s.quit:
		}
	})
	return id, nil
}

func (s *System) CancelTimer(id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrClockClosed
	}
	t, ok := s.timers[id]
	if !ok {
		return false, nil
	}
	delete(s.timers, id)
	return t.Stop(), nil
}

// Stop 停止所有未到期定时器, 阻塞中的投递直接放弃
func (s *System) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	close(s.quit)
}

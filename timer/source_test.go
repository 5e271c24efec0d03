package timer

import (
	"sort"
	"sync"

	"github.com/fixkme/robustimer/clock"
)

// manualSource 手动推进的时钟
type manualSource struct {
	mu     sync.Mutex
	now    int64
	seq    int64
	timers map[int64]*manualTimer
	err    error // 不为nil时NewTimer失败
}

type manualTimer struct {
	id   int64
	when int64
	data any
	recv chan<- *clock.Promise
}

func newManualSource(now int64) *manualSource {
	return &manualSource{now: now, timers: make(map[int64]*manualTimer)}
}

func (m *manualSource) NowMs() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *manualSource) NewTimer(when int64, data any, receiver chan<- *clock.Promise) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	m.seq++
	m.timers[m.seq] = &manualTimer{id: m.seq, when: when, data: data, recv: receiver}
	return m.seq, nil
}

func (m *manualSource) CancelTimer(id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.timers[id]
	delete(m.timers, id)
	return ok, nil
}

// advance 前进d毫秒, 到期的按时间顺序投递
func (m *manualSource) advance(d int64) {
	m.mu.Lock()
	m.now += d
	now := m.now
	var due []*manualTimer
	for id, t := range m.timers {
		if t.when <= now {
			due = append(due, t)
			delete(m.timers, id)
		}
	}
	m.mu.Unlock()
	sort.Slice(due, func(i, j int) bool {
		if due[i].when != due[j].when {
			return due[i].when < due[j].when
		}
		return due[i].id < due[j].id
	})
	for _, t := range due {
		t.recv <- &clock.Promise{TimerId: t.id, NowTs: now, Data: t.data}
	}
}

// pending 所有未到期定时器的到期时刻
func (m *manualSource) pending() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int64, 0, len(m.timers))
	for _, t := range m.timers {
		out = append(out, t.when)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (m *manualSource) setErr(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

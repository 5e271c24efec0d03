package clock

import "errors"

var (
	ErrClockClosed = errors.New("clock is closed")
	ErrClockBusy   = errors.New("clock task channel full")
)

// Promise 到期通知
type Promise struct {
	TimerId int64
	NowTs   int64 // 当前时间戳 毫秒
	Data    any
}

// Source 定时器来源, 到期后把Promise投递到receiver
type Source interface {
	NowMs() int64
	NewTimer(when int64, data any, receiver chan<- *Promise) (id int64, err error)
	CancelTimer(id int64) (ok bool, err error)
}

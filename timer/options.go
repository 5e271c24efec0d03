package timer

import (
	"github.com/fixkme/robustimer/clock"
	"github.com/prometheus/client_golang/prometheus"
)

type options struct {
	source     clock.Source
	adapter    Adapter
	registerer prometheus.Registerer
	queueSize  int
	start      bool
}

type Option func(*options)

// WithSource 指定唤醒来源, 由调用方负责启动和停止; 默认使用clock.System
func WithSource(src clock.Source) Option {
	return func(o *options) {
		o.source = src
	}
}

func WithAdapter(a Adapter) Option {
	return func(o *options) {
		o.adapter = a
	}
}

func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithQueueSize engine协程的任务队列和唤醒队列长度
func WithQueueSize(n int) Option {
	return func(o *options) {
		o.queueSize = n
	}
}

// WithStart New返回前调用Start
func WithStart() Option {
	return func(o *options) {
		o.start = true
	}
}

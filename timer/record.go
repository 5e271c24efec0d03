package timer

import (
	"context"
	"time"
)

// Handler 定时器回调, 返回即视为本次触发完成, 返回的error只记录日志
type Handler func(ctx context.Context, data any) error

// Spec 注册参数
type Spec struct {
	Name       string // 为空时自动生成
	Interval   time.Duration
	Handler    Handler
	IsOnce     bool
	Inactive   bool  // 默认激活
	LastFireAt int64 // 毫秒, 0表示从未触发
	Data       any   // 透传给Handler, 不持久化
}

// State 需要持久化的字段
type State struct {
	Name       string `json:"name" yaml:"name" bson:"name"`
	LastFireAt int64  `json:"last_fire_at,omitempty" yaml:"last_fire_at" bson:"last_fire_at,omitempty"`
	IsOnce     bool   `json:"is_once" yaml:"is_once" bson:"is_once"`
	Active     bool   `json:"active" yaml:"active" bson:"active"`
}

// Record 定时器记录, 只在engine协程里读写
type Record struct {
	name       string
	interval   time.Duration
	handler    Handler
	isOnce     bool
	active     bool
	lastFireAt int64
	data       any

	waitID int64  // 等待中的clock定时器, 0表示没有
	gen    uint64 // deactivate/stop后递增, 旧的唤醒据此忽略
	epoch  uint64 // activate后递增, 旧的完成回调不再写lastFireAt
	flight *wake  // 正在执行的handler, 同一时刻最多一个
}

// wake 一次触发周期
type wake struct {
	rec   *Record
	gen   uint64
	epoch uint64
	when  int64 // 计划触发时刻, 完成后写入lastFireAt
}

func newRecord(spec *Spec) *Record {
	return &Record{
		name:       spec.Name,
		interval:   spec.Interval,
		handler:    spec.Handler,
		isOnce:     spec.IsOnce,
		active:     !spec.Inactive,
		lastFireAt: spec.LastFireAt,
		data:       spec.Data,
	}
}

func (r *Record) state() State {
	return State{
		Name:       r.name,
		LastFireAt: r.lastFireAt,
		IsOnce:     r.isOnce,
		Active:     r.active,
	}
}

// running 有未完成的handler, 不区分代
func (r *Record) running() bool {
	return r.flight != nil
}

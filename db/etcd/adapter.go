package etcd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fixkme/robustimer/db/codec"
	"github.com/fixkme/robustimer/mlog"
	"github.com/fixkme/robustimer/timer"
	clientv3 "go.etcd.io/etcd/client/v3"
)

const (
	defaultPrefix = "robustimer/timers/"

	// 单个txn的操作数上限, etcd默认--max-txn-ops为128
	maxTxnOps = 128
)

type Options struct {
	Endpoints            []string `json:"endpoints" yaml:"endpoints"`
	DialTimeout          int64    `json:"dial_timeout" yaml:"dial_timeout"` // 秒
	DialKeepAliveTime    int64    `json:"dial_keep_alive_time" yaml:"dial_keep_alive_time"`
	DialKeepAliveTimeout int64    `json:"dial_keep_alive_timeout" yaml:"dial_keep_alive_timeout"`
	Username             string   `json:"username" yaml:"username"`
	Password             string   `json:"password" yaml:"password"`
	Prefix               string   `json:"prefix" yaml:"prefix"`
}

// NewClient 设置了DialTimeout, clientv3.New会阻塞到连上或超时
func NewClient(opt *Options) (*clientv3.Client, error) {
	dialTimeout := opt.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 3
	}
	return clientv3.New(clientv3.Config{
		Endpoints:            opt.Endpoints,
		DialTimeout:          time.Duration(dialTimeout) * time.Second,
		DialKeepAliveTime:    time.Duration(opt.DialKeepAliveTime) * time.Second,
		DialKeepAliveTimeout: time.Duration(opt.DialKeepAliveTimeout) * time.Second,
		Username:             opt.Username,
		Password:             opt.Password,
	})
}

// Adapter 每个定时器一个key: prefix+name, value为codec编码
type Adapter struct {
	kv     clientv3.KV
	prefix string
}

func NewAdapter(kv clientv3.KV, prefix string) *Adapter {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Adapter{kv: kv, prefix: prefix}
}

func (a *Adapter) key(name string) string {
	return a.prefix + name
}

func (a *Adapter) Save(ctx context.Context, snap timer.Snapshot) error {
	states := snap.Timers()
	for len(states) > 0 {
		n := min(len(states), maxTxnOps)
		ops := make([]clientv3.Op, 0, n)
		for _, st := range states[:n] {
			ops = append(ops, clientv3.OpPut(a.key(st.Name), string(codec.Marshal(st))))
		}
		if _, err := a.kv.Txn(ctx).Then(ops...).Commit(); err != nil {
			return fmt.Errorf("etcd: txn put under %s: %w", a.prefix, err)
		}
		states = states[n:]
	}
	return nil
}

func (a *Adapter) Restore(ctx context.Context, snap timer.Snapshot) error {
	resp, err := a.kv.Get(ctx, a.prefix, clientv3.WithPrefix())
	if err != nil {
		return fmt.Errorf("etcd: get %s: %w", a.prefix, err)
	}
	for _, kv := range resp.Kvs {
		st, err := codec.Unmarshal(kv.Value)
		if err != nil {
			mlog.Warnf("etcd: skip bad timer state %s: %v", kv.Key, err)
			continue
		}
		if name := strings.TrimPrefix(string(kv.Key), a.prefix); name != st.Name {
			mlog.Warnf("etcd: key %s holds timer %s", kv.Key, st.Name)
		}
		snap.Update(st)
	}
	return nil
}

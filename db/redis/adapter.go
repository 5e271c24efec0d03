package redis

import (
	"context"
	"fmt"

	"github.com/fixkme/robustimer/db/codec"
	"github.com/fixkme/robustimer/mlog"
	"github.com/fixkme/robustimer/timer"
	"github.com/redis/go-redis/v9"
)

const defaultKey = "robustimer:timers"

// Adapter 所有定时器存在一个hash里, field为名字, value为codec编码
type Adapter struct {
	rdb redis.Cmdable
	key string
}

func NewAdapter(rdb redis.Cmdable, key string) *Adapter {
	if key == "" {
		key = defaultKey
	}
	return &Adapter{rdb: rdb, key: key}
}

func (a *Adapter) Save(ctx context.Context, snap timer.Snapshot) error {
	states := snap.Timers()
	if len(states) == 0 {
		return nil
	}
	values := make(map[string]any, len(states))
	for _, st := range states {
		values[st.Name] = codec.Marshal(st)
	}
	if err := a.rdb.HSet(ctx, a.key, values).Err(); err != nil {
		return fmt.Errorf("redis: hset %s: %w", a.key, err)
	}
	return nil
}

func (a *Adapter) Restore(ctx context.Context, snap timer.Snapshot) error {
	all, err := a.rdb.HGetAll(ctx, a.key).Result()
	if err != nil {
		return fmt.Errorf("redis: hgetall %s: %w", a.key, err)
	}
	for name, raw := range all {
		st, err := codec.Unmarshal([]byte(raw))
		if err != nil {
			mlog.Warnf("redis: skip bad timer state %s in %s: %v", name, a.key, err)
			continue
		}
		snap.Update(st)
	}
	return nil
}

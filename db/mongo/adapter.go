package mongo

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/fixkme/robustimer/timer"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Options 集合名和字段名都可以配置
type Options struct {
	Database        string `json:"database" yaml:"database"`
	Collection      string `json:"collection" yaml:"collection"` // 默认timers
	NameField       string `json:"name_field" yaml:"name_field"`
	LastFireAtField string `json:"last_fire_at_field" yaml:"last_fire_at_field"`
	IsOnceField     string `json:"is_once_field" yaml:"is_once_field"`
	ActiveField     string `json:"active_field" yaml:"active_field"`
}

func (o *Options) defaults() {
	if o.Database == "" {
		o.Database = "robustimer"
	}
	if o.Collection == "" {
		o.Collection = "timers"
	}
	if o.NameField == "" {
		o.NameField = "name"
	}
	if o.LastFireAtField == "" {
		o.LastFireAtField = "last_fire_at"
	}
	if o.IsOnceField == "" {
		o.IsOnceField = "is_once"
	}
	if o.ActiveField == "" {
		o.ActiveField = "active"
	}
}

type Adapter struct {
	coll *mongo.Collection
	opt  Options
}

func NewAdapter(client *mongo.Client, opt Options) *Adapter {
	opt.defaults()
	return &Adapter{
		coll: client.Database(opt.Database).Collection(opt.Collection),
		opt:  opt,
	}
}

// EnsureIndex 名字字段唯一索引
func (a *Adapter) EnsureIndex(ctx context.Context) error {
	_, err := a.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: a.opt.NameField, Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("mongo: create index on %s: %w", a.opt.NameField, err)
	}
	return nil
}

// Save 按名字批量upsert, 无序执行
func (a *Adapter) Save(ctx context.Context, snap timer.Snapshot) error {
	states := snap.Timers()
	if len(states) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(states))
	for _, st := range states {
		set := bson.M{
			a.opt.NameField:   st.Name,
			a.opt.IsOnceField: st.IsOnce,
			a.opt.ActiveField: st.Active,
		}
		update := bson.M{"$set": set}
		if st.LastFireAt != 0 {
			set[a.opt.LastFireAtField] = st.LastFireAt
		} else {
			update["$unset"] = bson.M{a.opt.LastFireAtField: ""}
		}
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{a.opt.NameField: st.Name}).
			SetUpdate(update).
			SetUpsert(true))
	}
	if _, err := a.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false)); err != nil {
		return fmt.Errorf("mongo: bulk write %s: %w", a.opt.Collection, err)
	}
	return nil
}

func (a *Adapter) Restore(ctx context.Context, snap timer.Snapshot) error {
	cur, err := a.coll.Find(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("mongo: find %s: %w", a.opt.Collection, err)
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			return fmt.Errorf("mongo: decode: %w", err)
		}
		if st, ok := a.decode(doc); ok {
			snap.Update(st)
		}
	}
	if err := cur.Err(); err != nil {
		return fmt.Errorf("mongo: cursor: %w", err)
	}
	return nil
}

// decode 兼容数字, 布尔和字符串几种写法
func (a *Adapter) decode(doc bson.M) (st timer.State, ok bool) {
	st.Name, ok = doc[a.opt.NameField].(string)
	if !ok {
		return
	}
	st.LastFireAt = toInt64(doc[a.opt.LastFireAtField])
	st.IsOnce = toBool(doc[a.opt.IsOnceField])
	st.Active = toBool(doc[a.opt.ActiveField])
	return
}

func toInt64(v any) int64 {
	switch x := v.(type) {
	case int64:
		return x
	case int32:
		return int64(x)
	case float64:
		return int64(x)
	case string:
		x = strings.TrimSpace(x)
		if n, err := strconv.ParseInt(x, 10, 64); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(x, 64); err == nil {
			return int64(f)
		}
	}
	return 0
}

func toBool(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case nil:
		return false
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(x)); err == nil {
			return b
		}
	}
	return toInt64(v) != 0
}

package core

import (
	"context"
	"fmt"

	"github.com/fixkme/robustimer/db/etcd"
	"github.com/fixkme/robustimer/db/file"
	"github.com/fixkme/robustimer/db/memory"
	mdb "github.com/fixkme/robustimer/db/mongo"
	rdb "github.com/fixkme/robustimer/db/redis"
	"github.com/fixkme/robustimer/db/sqlite"
	"github.com/fixkme/robustimer/framework/config"
	"github.com/fixkme/robustimer/timer"
	"github.com/prometheus/client_golang/prometheus"
)

// Storage 持久化插件和它占用的连接
type Storage struct {
	Adapter timer.Adapter // driver为空或none时为nil
	closer  func()
}

func (s *Storage) Close() {
	if s.closer != nil {
		s.closer()
	}
}

// OpenStorage 按driver创建持久化插件
func OpenStorage(ctx context.Context, conf *config.StorageConfig, reg prometheus.Registerer) (*Storage, error) {
	switch conf.Driver {
	case "", config.Driver_None:
		return &Storage{}, nil
	case config.Driver_Memory:
		return &Storage{Adapter: memory.New()}, nil
	case config.Driver_File:
		a, err := file.New(conf.File)
		if err != nil {
			return nil, err
		}
		return &Storage{Adapter: a}, nil
	case config.Driver_Sqlite:
		a, err := sqlite.Open(conf.Sqlite)
		if err != nil {
			return nil, err
		}
		return &Storage{Adapter: a, closer: func() { a.Close() }}, nil
	case config.Driver_Redis:
		db, err := InitRedis(&conf.Redis)
		if err != nil {
			return nil, err
		}
		return &Storage{Adapter: rdb.NewAdapter(db.GetCmdable(), conf.Redis.Key), closer: db.Stop}, nil
	case config.Driver_Mongo:
		m, err := InitMongo(conf.Mongo.MongoUri, MongoInitOption{MaxPoolSize: 16, Registerer: reg})
		if err != nil {
			return nil, err
		}
		a := mdb.NewAdapter(m.Client(), conf.Mongo.Options)
		if err := a.EnsureIndex(ctx); err != nil {
			m.Stop()
			return nil, err
		}
		return &Storage{Adapter: a, closer: m.Stop}, nil
	case config.Driver_Etcd:
		cli, err := InitEtcd(&conf.Etcd)
		if err != nil {
			return nil, err
		}
		return &Storage{Adapter: etcd.NewAdapter(cli, conf.Etcd.Prefix), closer: func() { cli.Close() }}, nil
	}
	return nil, fmt.Errorf("unknown storage driver (%s)", conf.Driver)
}

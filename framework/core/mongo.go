package core

import (
	"context"
	"time"

	mdb "github.com/fixkme/robustimer/db/mongo"
	"github.com/fixkme/robustimer/mlog"
	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type MongoImpl struct {
	client  *mongo.Client
	monitor *mdb.PoolMonitor
}

type MongoInitOption struct {
	ReadPref     *readpref.ReadPref
	MinPoolSize  uint64
	MaxPoolSize  uint64
	ConnIdleTime time.Duration
	Registerer   prometheus.Registerer // 连接池指标, 可以为nil
}

func InitMongo(uri string, initOptions ...MongoInitOption) (*MongoImpl, error) {
	var initOption MongoInitOption
	if len(initOptions) > 0 {
		initOption = initOptions[0]
	} else {
		initOption.MaxPoolSize = 16
		initOption.ConnIdleTime = 30 * time.Second
	}
	if initOption.ReadPref == nil {
		initOption.ReadPref = readpref.Primary()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	monitor := &mdb.PoolMonitor{}
	opts := options.Client()
	opts.ApplyURI(uri).
		SetReadPreference(initOption.ReadPref).
		SetPoolMonitor(monitor.PoolMonitor())
	if size := initOption.MaxPoolSize; size > 0 {
		opts.SetMaxPoolSize(size)
	}
	if size := initOption.MinPoolSize; size > 0 {
		opts.SetMinPoolSize(size)
	}
	if idleTime := initOption.ConnIdleTime; idleTime > 0 {
		opts.SetMaxConnIdleTime(idleTime)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		mlog.Errorf("mongo connect failed: %v, uri: %s", err, uri)
		return nil, err
	}
	if err = client.Ping(ctx, nil); err != nil {
		mlog.Errorf("mongo ping failed: %v, uri: %s", err, uri)
		client.Disconnect(context.Background())
		return nil, err
	}
	if reg := initOption.Registerer; reg != nil {
		if err := reg.Register(monitor); err != nil {
			mlog.Warnf("mongo pool metrics not registered: %v", err)
		}
	}
	mlog.Infof("mongo connect success, uri: %s", uri)
	return &MongoImpl{client: client, monitor: monitor}, nil
}

func (m *MongoImpl) Client() *mongo.Client {
	return m.client
}

func (m *MongoImpl) GetActiveConnections() int {
	return m.monitor.GetActiveConnections()
}

func (m *MongoImpl) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := m.client.Disconnect(ctx); err != nil {
		mlog.Warnf("mongo disconnect: %v", err)
	}
}

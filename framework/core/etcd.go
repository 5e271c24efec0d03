package core

import (
	"context"
	"time"

	"github.com/fixkme/robustimer/db/etcd"
	"github.com/fixkme/robustimer/mlog"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// InitEtcd 连接后检查第一个节点的状态
func InitEtcd(opt *etcd.Options) (*clientv3.Client, error) {
	cli, err := etcd.NewClient(opt)
	if err != nil {
		mlog.Errorf("etcd connect failed: %v, endpoints: %v", err, opt.Endpoints)
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if _, err = cli.Status(ctx, cli.Endpoints()[0]); err != nil {
		mlog.Errorf("etcd status failed: %v, endpoints: %v", err, opt.Endpoints)
		cli.Close()
		return nil, err
	}
	mlog.Infof("etcd connect success, endpoints: %v", opt.Endpoints)
	return cli, nil
}

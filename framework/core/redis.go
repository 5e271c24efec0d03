package core

import (
	"errors"
	"fmt"
	"strings"

	rdb "github.com/fixkme/robustimer/db/redis"
	"github.com/fixkme/robustimer/framework/config"
	"github.com/redis/go-redis/v9"
)

func InitRedis(conf *config.RedisConfig) (*rdb.RedisImpl, error) {
	if conf == nil {
		return nil, errors.New("redis config is nil")
	}
	if len(conf.RedisAddr) == 0 {
		return nil, fmt.Errorf("redis addr invalid (%s)", conf.RedisAddr)
	}
	addrs := strings.Split(conf.RedisAddr, ",")
	var opt any
	switch conf.RedisMode {
	case rdb.RedisMode_Cluster:
		opt = &redis.ClusterOptions{
			Addrs:    addrs,
			Password: conf.RedisPassword,
		}
	case rdb.RedisMode_Sentinel:
		opt = &redis.FailoverOptions{
			MasterName:    conf.RedisMasterName,
			SentinelAddrs: addrs,
			Password:      conf.RedisPassword,
			DB:            conf.RedisDB,
		}
	default:
		opt = &redis.Options{
			Addr:     addrs[0],
			Password: conf.RedisPassword,
			DB:       conf.RedisDB,
		}
	}
	return rdb.NewRedis(conf.RedisMode, opt)
}

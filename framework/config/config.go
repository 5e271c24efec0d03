package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fixkme/robustimer/db/etcd"
	"github.com/fixkme/robustimer/db/mongo"
	"github.com/fixkme/robustimer/db/sqlite"
	"gopkg.in/yaml.v3"
)

var Config *AppConfig

// 存储驱动
const (
	Driver_None   = "none"
	Driver_Memory = "memory"
	Driver_File   = "file"
	Driver_Sqlite = "sqlite"
	Driver_Redis  = "redis"
	Driver_Mongo  = "mongo"
	Driver_Etcd   = "etcd"
)

// 唤醒来源
const (
	Clock_System = "system"
	Clock_Wheel  = "wheel"
)

type AppConfig struct {
	AppVersion     string        `json:"app_version" yaml:"app_version"`
	LogConfig      `json:",inline" yaml:",inline"`
	Clock          ClockConfig   `json:"clock" yaml:"clock"`
	Storage        StorageConfig `json:"storage" yaml:"storage"`
	SaveIntervalMs int64         `json:"save_interval_ms" yaml:"save_interval_ms"` // 自动保存间隔, 0不保存
	MetricsAddr    string        `json:"metrics_addr" yaml:"metrics_addr"`         // 为空不开启
	Timers         []TimerConfig `json:"timers" yaml:"timers"`
}

type LogConfig struct {
	LogPath   string `json:"log_path" yaml:"log_path"`
	LogName   string `json:"log_name" yaml:"log_name"`
	LogLevel  string `json:"log_level" yaml:"log_level"`
	LogStdOut bool   `json:"log_std_out" yaml:"log_std_out"`
}

type ClockConfig struct {
	Kind     string `json:"kind" yaml:"kind"`       // system或wheel, 默认system
	TickMs   int64  `json:"tick_ms" yaml:"tick_ms"` // wheel的刻度
	TaskSize int    `json:"task_size" yaml:"task_size"`
}

type StorageConfig struct {
	Driver string         `json:"driver" yaml:"driver"`
	File   string         `json:"file" yaml:"file"` // file驱动的路径
	Sqlite sqlite.Options `json:"sqlite" yaml:"sqlite"`
	Redis  RedisConfig    `json:"redis" yaml:"redis"`
	Mongo  MongoConfig    `json:"mongo" yaml:"mongo"`
	Etcd   etcd.Options   `json:"etcd" yaml:"etcd"`
}

type RedisConfig struct {
	RedisMode       string `json:"redis_mode" yaml:"redis_mode"`
	RedisAddr       string `json:"redis_addr" yaml:"redis_addr"` // 多个地址用,隔开
	RedisMasterName string `json:"redis_master_name" yaml:"redis_master_name"`
	RedisPassword   string `json:"redis_password" yaml:"redis_password"`
	RedisDB         int    `json:"redis_db" yaml:"redis_db"`
	Key             string `json:"key" yaml:"key"`
}

type MongoConfig struct {
	MongoUri      string `json:"mongo_uri" yaml:"mongo_uri"`
	mongo.Options `json:",inline" yaml:",inline"`
}

// TimerConfig 配置文件里声明的定时器
type TimerConfig struct {
	Name     string   `json:"name" yaml:"name"`
	Interval string   `json:"interval" yaml:"interval"` // time.ParseDuration格式
	Once     bool     `json:"once" yaml:"once"`
	Inactive bool     `json:"inactive" yaml:"inactive"`
	Command  []string `json:"command" yaml:"command"` // 触发时执行, 为空只打日志
	Data     string   `json:"data" yaml:"data"`
}

// LoadConfig .yaml/.yml按yaml解析, 其它按json
func LoadConfig(configFile string, loadConfigFromEnv func(*AppConfig) error) error {
	Config = new(AppConfig)
	if len(configFile) == 0 {
		if loadConfigFromEnv == nil {
			return nil
		}
		return loadConfigFromEnv(Config)
	}
	if err := loadConfigFromFile(configFile); err != nil {
		return err
	}
	if loadConfigFromEnv != nil {
		return loadConfigFromEnv(Config)
	}
	return nil
}

func loadConfigFromFile(configFile string) error {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(configFile)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, Config)
	default:
		err = json.Unmarshal(data, Config)
	}
	if err != nil {
		return fmt.Errorf("parse config %s: %w", configFile, err)
	}
	return nil
}

// LoadFromEnv 环境变量覆盖文件里的配置
func LoadFromEnv(conf *AppConfig) error {
	if v := os.Getenv("ROBUSTIMER_LOG_LEVEL"); v != "" {
		conf.LogLevel = v
	}
	if v := os.Getenv("ROBUSTIMER_METRICS_ADDR"); v != "" {
		conf.MetricsAddr = v
	}
	if v := os.Getenv("ROBUSTIMER_STORAGE_DRIVER"); v != "" {
		conf.Storage.Driver = v
	}
	if v := os.Getenv("ROBUSTIMER_SAVE_INTERVAL_MS"); v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("ROBUSTIMER_SAVE_INTERVAL_MS invalid (%s)", v)
		}
		conf.SaveIntervalMs = ms
	}
	return nil
}

func (conf *AppConfig) JsonFormat() string {
	if conf == nil {
		return "{}"
	}
	data, err := json.MarshalIndent(conf, "", "  ")
	if err != nil {
		return ""
	}
	return string(data)
}

package core

import (
	"github.com/fixkme/robustimer/framework/config"
	"github.com/fixkme/robustimer/mlog"
)

// InitLog 没有配置log_path时只输出到控制台
func InitLog(conf *config.LogConfig) (func() error, error) {
	level := mlog.ParseLevel(conf.LogLevel)
	if len(conf.LogPath) == 0 {
		mlog.UseStdLogger(level)
		return func() error { return nil }, nil
	}
	return mlog.UseFileLogger(mlog.FileOptions{
		Path:   conf.LogPath,
		Name:   conf.LogName,
		Level:  level,
		StdOut: conf.LogStdOut,
	})
}

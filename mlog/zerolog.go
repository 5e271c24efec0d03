package mlog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

type FileOptions struct {
	Path       string // 默认当前路径
	Name       string // 默认mlog
	Level      Level
	StdOut     bool // 同时输出到控制台
	MaxSizeMB  int  // 单个文件上限, 默认100MB
	MaxBackups int
	MaxAgeDays int
}

type zeroLogger struct {
	zl   zerolog.Logger
	file *lumberjack.Logger
}

func newZeroLogger(opt FileOptions) (*zeroLogger, error) {
	if len(opt.Path) == 0 {
		opt.Path = "."
	}
	if len(opt.Name) == 0 {
		opt.Name = "mlog"
	}
	if opt.MaxSizeMB <= 0 {
		opt.MaxSizeMB = 100
	}
	if err := os.MkdirAll(opt.Path, 0o755); err != nil {
		return nil, err
	}
	file := &lumberjack.Logger{
		Filename:   filepath.Join(opt.Path, opt.Name+".log"),
		MaxSize:    opt.MaxSizeMB,
		MaxBackups: opt.MaxBackups,
		MaxAge:     opt.MaxAgeDays,
	}
	writers := []io.Writer{file}
	if opt.StdOut {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "2006-01-02 15:04:05.000"})
	}
	zl := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(toZeroLevel(opt.Level)).
		With().Timestamp().Logger()
	zerolog.TimeFieldFormat = time.RFC3339Nano
	return &zeroLogger{zl: zl, file: file}, nil
}

func toZeroLevel(level Level) zerolog.Level {
	switch level {
	case FatalLevel:
		return zerolog.FatalLevel
	case ErrorLevel:
		return zerolog.ErrorLevel
	case WarnLevel:
		return zerolog.WarnLevel
	case InfoLevel:
		return zerolog.InfoLevel
	case DebugLevel:
		return zerolog.DebugLevel
	default:
		return zerolog.TraceLevel
	}
}

func (l *zeroLogger) Close() error {
	return l.file.Close()
}

func (l *zeroLogger) Trace(v ...any) { l.zl.Trace().Msg(fmt.Sprint(v...)) }
func (l *zeroLogger) Debug(v ...any) { l.zl.Debug().Msg(fmt.Sprint(v...)) }
func (l *zeroLogger) Info(v ...any)  { l.zl.Info().Msg(fmt.Sprint(v...)) }
func (l *zeroLogger) Warn(v ...any)  { l.zl.Warn().Msg(fmt.Sprint(v...)) }
func (l *zeroLogger) Error(v ...any) { l.zl.Error().Msg(fmt.Sprint(v...)) }
func (l *zeroLogger) Fatal(v ...any) { l.zl.Fatal().Msg(fmt.Sprint(v...)) }

func (l *zeroLogger) Tracef(format string, v ...any) { l.zl.Trace().Msgf(format, v...) }
func (l *zeroLogger) Debugf(format string, v ...any) { l.zl.Debug().Msgf(format, v...) }
func (l *zeroLogger) Infof(format string, v ...any)  { l.zl.Info().Msgf(format, v...) }
func (l *zeroLogger) Warnf(format string, v ...any)  { l.zl.Warn().Msgf(format, v...) }
func (l *zeroLogger) Errorf(format string, v ...any) { l.zl.Error().Msgf(format, v...) }
func (l *zeroLogger) Fatalf(format string, v ...any) { l.zl.Fatal().Msgf(format, v...) }

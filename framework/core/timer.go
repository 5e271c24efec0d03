package core

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/fixkme/robustimer/clock"
	"github.com/fixkme/robustimer/framework/config"
	"github.com/fixkme/robustimer/mlog"
	"github.com/fixkme/robustimer/timer"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	AutosaveTimer = "robustimer.autosave"

	saveTimeout = 5 * time.Second
)

// TimerModule 按配置创建engine, 恢复状态后启动, 销毁前保存
type TimerModule struct {
	conf    *config.AppConfig
	reg     prometheus.Registerer
	engine  *timer.Engine
	wheel   *clock.Wheel
	storage *Storage
	quit    chan struct{}
	name    string
}

func NewTimerModule(name string, conf *config.AppConfig, reg prometheus.Registerer) *TimerModule {
	return &TimerModule{
		conf: conf,
		reg:  reg,
		quit: make(chan struct{}),
		name: name,
	}
}

// Engine OnInit之后有效
func (m *TimerModule) Engine() *timer.Engine {
	return m.engine
}

func (m *TimerModule) OnInit() (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	if m.storage, err = OpenStorage(ctx, &m.conf.Storage, m.reg); err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if err != nil {
			m.release()
		}
	}()

	opts := []timer.Option{timer.WithMetrics(m.reg)}
	if m.storage.Adapter != nil {
		opts = append(opts, timer.WithAdapter(m.storage.Adapter))
	}
	switch m.conf.Clock.Kind {
	case "", config.Clock_System:
	case config.Clock_Wheel:
		var wopts []clock.WheelOption
		if m.conf.Clock.TickMs > 0 {
			wopts = append(wopts, clock.WithTick(time.Duration(m.conf.Clock.TickMs)*time.Millisecond))
		}
		if m.conf.Clock.TaskSize > 0 {
			wopts = append(wopts, clock.WithTaskSize(m.conf.Clock.TaskSize))
		}
		m.wheel = clock.NewWheel(wopts...)
		m.wheel.Start()
		opts = append(opts, timer.WithSource(m.wheel))
	default:
		return fmt.Errorf("unknown clock kind (%s)", m.conf.Clock.Kind)
	}
	m.engine = timer.New(opts...)

	for i := range m.conf.Timers {
		if err = m.register(&m.conf.Timers[i]); err != nil {
			return err
		}
	}
	if m.storage.Adapter != nil && m.conf.SaveIntervalMs > 0 {
		interval := time.Duration(m.conf.SaveIntervalMs) * time.Millisecond
		if err = m.engine.Interval(AutosaveTimer, interval, m.autosave); err != nil {
			return err
		}
	}
	if m.storage.Adapter != nil {
		err = m.engine.RestoreAndStart(ctx)
	} else {
		err = m.engine.Start()
	}
	if err != nil {
		return err
	}
	mlog.Infof("timer module started, timers=%d, storage=%s", m.engine.Len(), m.conf.Storage.Driver)
	return nil
}

func (m *TimerModule) register(tc *config.TimerConfig) error {
	interval, err := time.ParseDuration(tc.Interval)
	if err != nil {
		return fmt.Errorf("timer %s interval invalid (%s)", tc.Name, tc.Interval)
	}
	_, err = m.engine.Register(timer.Spec{
		Name:     tc.Name,
		Interval: interval,
		Handler:  commandHandler(tc.Name, tc.Command),
		IsOnce:   tc.Once,
		Inactive: tc.Inactive,
		Data:     tc.Data,
	})
	return err
}

// commandHandler command为空时只打日志
func commandHandler(name string, command []string) timer.Handler {
	if len(command) == 0 {
		return func(ctx context.Context, data any) error {
			mlog.Infof("timer %s fired, data=%v", name, data)
			return nil
		}
	}
	return func(ctx context.Context, data any) error {
		cmd := exec.CommandContext(ctx, command[0], command[1:]...)
		if s, ok := data.(string); ok && len(s) > 0 {
			cmd.Stdin = strings.NewReader(s)
		}
		out, err := cmd.CombinedOutput()
		if err != nil {
			return fmt.Errorf("timer %s command %v: %w, output: %s", name, command, err, out)
		}
		mlog.Debugf("timer %s command done, output: %s", name, out)
		return nil
	}
}

func (m *TimerModule) autosave(ctx context.Context, _ any) error {
	ctx, cancel := context.WithTimeout(ctx, saveTimeout)
	defer cancel()
	return m.engine.Save(ctx)
}

func (m *TimerModule) Run() {
	<-m.quit
}

func (m *TimerModule) Destroy() {
	if m.engine.Started() {
		m.engine.Stop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if m.storage.Adapter != nil {
		if err := m.engine.Save(ctx); err != nil {
			mlog.Errorf("timer module final save failed: %v", err)
		}
	}
	m.release()
	close(m.quit)
}

func (m *TimerModule) release() {
	if m.engine != nil {
		m.engine.Close()
	}
	if m.wheel != nil {
		m.wheel.Stop()
	}
	if m.storage != nil {
		m.storage.Close()
	}
}

func (m *TimerModule) Name() string {
	return m.name
}

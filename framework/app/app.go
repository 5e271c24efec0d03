package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/fixkme/robustimer/mlog"
)

// 节点全局状态
const (
	AppStateNone = iota // 未开始或已停止
	AppStateInit        // 正在初始化中
	AppStateRun         // 正在运行中
	AppStateStop        // 正在停止中
)

var ErrStartTwice = errors.New("app mods cannot start twice")

type Module interface {
	OnInit() error // 初始化
	Destroy()      // 销毁
	Run()          // 启动, 阻塞到Destroy
	Name() string  // 名字
}

// App 中的 modules 在初始化之后不能变更
type App struct {
	mods  []Module
	state atomic.Int32
	wg    sync.WaitGroup
}

func New() *App {
	return &App{}
}

func (app *App) GetState() int32 {
	return app.state.Load()
}

// start 初始化失败时销毁已初始化的模块
func (app *App) start(mods ...Module) error {
	if len(app.mods) != 0 || !app.state.CompareAndSwap(AppStateNone, AppStateInit) {
		return ErrStartTwice
	}
	mlog.Info("app starting up")
	for i, mi := range mods {
		if err := mi.OnInit(); err != nil {
			for j := i - 1; j >= 0; j-- {
				destroy(mods[j])
			}
			app.state.Store(AppStateNone)
			return fmt.Errorf("module %s init: %w", mi.Name(), err)
		}
		app.mods = append(app.mods, mi)
	}
	for _, mi := range app.mods {
		app.wg.Add(1)
		go run(mi, &app.wg)
	}
	app.state.Store(AppStateRun)
	mlog.Info("app started")
	return nil
}

func (app *App) stop() {
	if !app.state.CompareAndSwap(AppStateRun, AppStateStop) {
		return
	}
	mlog.Info("app stop begin")
	// 先进后出
	for i := len(app.mods) - 1; i >= 0; i-- {
		mi := app.mods[i]
		mlog.Infof("app stop module %s", mi.Name())
		destroy(mi)
	}
	app.wg.Wait()
	app.state.Store(AppStateNone)
	mlog.Info("app stoped")
}

func run(mi Module, wg *sync.WaitGroup) {
	defer wg.Done()
	defer func() {
		if r := recover(); r != nil {
			mlog.Errorf("%s module run panic: %v\n%s", mi.Name(), r, debug.Stack())
		}
	}()
	mi.Run()
}

func destroy(mi Module) {
	defer func() {
		if r := recover(); r != nil {
			mlog.Errorf("%s module destroy panic: %v\n%s", mi.Name(), r, debug.Stack())
		}
	}()
	mi.Destroy()
}

// Run 启动所有模块, 收到SIGINT/SIGTERM或ctx结束后按逆序销毁; SIGHUP忽略
func (app *App) Run(ctx context.Context, mods ...Module) error {
	if err := app.start(mods...); err != nil {
		return err
	}
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sig)
loop:
	for {
		select {
		case s := <-sig:
			mlog.Infof("server closing down (signal: %v)", s)
			if s != syscall.SIGHUP {
				break loop
			}
		case <-ctx.Done():
			mlog.Infof("server closing down (%v)", context.Cause(ctx))
			break loop
		}
	}
	app.stop()
	return nil
}

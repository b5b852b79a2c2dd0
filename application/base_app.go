// Package application 限流服务的启动框架
// BaseApplication 负责 DI 容器、配置、日志和优雅关闭，ServerApplication / CLIApplication 在其上组合
package application

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/KOMKZ/go-yogan-bucket/config"
	"github.com/KOMKZ/go-yogan-bucket/di"
	"github.com/KOMKZ/go-yogan-bucket/kafka"
	"github.com/KOMKZ/go-yogan-bucket/limiter"
	"github.com/KOMKZ/go-yogan-bucket/logger"
	"github.com/samber/do/v2"
	"go.uber.org/zap"
)

// AppState 应用状态
type AppState int

const (
	StateInit AppState = iota
	StateSetup
	StateRunning
	StateStopping
	StateStopped
)

func (s AppState) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateSetup:
		return "Setup"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// BaseApplication 所有组件都由 samber/do 管理
type BaseApplication struct {
	injector *do.RootScope
	loader   *config.Loader
	logger   *logger.CtxZapLogger

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.RWMutex
	state AppState

	version    string
	onSetup    func(*BaseApplication) error
	onShutdown func(context.Context) error
}

// NewBase 创建注入器并立即加载配置和日志
func NewBase(opts di.ConfigOptions) (*BaseApplication, error) {
	injector := di.NewInjector(opts)

	loader, err := do.Invoke[*config.Loader](injector)
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}
	log, err := do.Invoke[*logger.CtxZapLogger](injector)
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	log.DebugCtx(ctx, "✅ base application initialized",
		zap.Strings("config_files", loader.GetLoadedFiles()))

	return &BaseApplication{
		injector: injector,
		loader:   loader,
		logger:   log,
		ctx:      ctx,
		cancel:   cancel,
		state:    StateInit,
	}, nil
}

// WithVersion 链式设置版本号
func (b *BaseApplication) WithVersion(version string) *BaseApplication {
	b.version = version
	return b
}

func (b *BaseApplication) GetVersion() string {
	return b.version
}

// Setup 初始化限流管理器（连带其存储依赖）和事件投递，然后执行 OnSetup
func (b *BaseApplication) Setup() error {
	b.setState(StateSetup)

	lm, err := do.Invoke[*limiter.Manager](b.injector)
	if err != nil {
		return fmt.Errorf("启动限流组件失败: %w", err)
	}
	b.logger.DebugCtx(b.ctx, "✅ limiter component ready",
		zap.Bool("enabled", lm.IsEnabled()),
		zap.String("version", b.version))

	sink, err := do.Invoke[*kafka.EventSink](b.injector)
	if err != nil {
		return fmt.Errorf("启动 kafka 事件投递失败: %w", err)
	}
	if sink != nil {
		b.logger.DebugCtx(b.ctx, "✅ limiter events forwarded to kafka")
	}

	if b.onSetup != nil {
		if err := b.onSetup(b); err != nil {
			return fmt.Errorf("onSetup failed: %w", err)
		}
	}
	return nil
}

// Shutdown 先执行 OnShutdown，再关闭 DI 容器中的所有组件
func (b *BaseApplication) Shutdown(timeout time.Duration) error {
	b.setState(StateStopping)
	b.logger.DebugCtx(b.ctx, "🔻 starting graceful shutdown...")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if b.onShutdown != nil {
		if err := b.onShutdown(ctx); err != nil {
			b.logger.ErrorCtx(ctx, "OnShutdown callback failed", zap.Error(err))
		}
	}

	var shutdownErr error
	if report := b.injector.ShutdownWithContext(ctx); report != nil && !report.Succeed {
		shutdownErr = report
		b.logger.ErrorCtx(ctx, "DI container shutdown failed", zap.Error(report))
	}

	b.cancel()
	b.setState(StateStopped)
	b.logger.DebugCtx(ctx, "✅ all components stopped")
	return shutdownErr
}

// WaitShutdown 阻塞直到 SIGINT/SIGTERM 或 Cancel，第二次信号强制退出
func (b *BaseApplication) WaitShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		b.logger.InfoCtx(b.ctx, "shutdown signal received", zap.String("signal", sig.String()))
		b.cancel()
		go func() {
			sig := <-quit
			b.logger.WarnCtx(context.Background(), "⚠️  second signal received, forcing exit", zap.String("signal", sig.String()))
			os.Exit(1)
		}()
	case <-b.ctx.Done():
		signal.Stop(quit)
		b.logger.DebugCtx(context.Background(), "context cancelled, starting graceful shutdown")
	}
}

// Cancel 手动触发关闭
func (b *BaseApplication) Cancel() {
	b.cancel()
}

func (b *BaseApplication) OnSetup(fn func(*BaseApplication) error) *BaseApplication {
	b.onSetup = fn
	return b
}

func (b *BaseApplication) OnShutdown(fn func(context.Context) error) *BaseApplication {
	b.onShutdown = fn
	return b
}

func (b *BaseApplication) Logger() *logger.CtxZapLogger {
	return b.logger
}

func (b *BaseApplication) ConfigLoader() *config.Loader {
	return b.loader
}

func (b *BaseApplication) Injector() *do.RootScope {
	return b.injector
}

// LimiterManager Setup 之后可用
func (b *BaseApplication) LimiterManager() (*limiter.Manager, error) {
	return do.Invoke[*limiter.Manager](b.injector)
}

func (b *BaseApplication) Context() context.Context {
	return b.ctx
}

func (b *BaseApplication) GetState() AppState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

func (b *BaseApplication) setState(state AppState) {
	b.mu.Lock()
	old := b.state
	b.state = state
	b.mu.Unlock()

	b.logger.DebugCtx(b.ctx, "state changed",
		zap.String("from", old.String()),
		zap.String("to", state.String()))
}

// Package app 按一份配置装配日志、指标、链路追踪、控制通道、运行时与调度器，
// 并管理它们的生命周期.
//
// 示例:
//
//	cfg, err := app.LoadConfig("nebulas.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	a, err := app.New(cfg, app.WithHooks(app.NewHooks().
//	    AfterStart(app.Tasks(func(s *scheduler.Scheduler) error {
//	        return s.Every("report", time.Minute, flush)
//	    }))))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	_ = a.Run()
package app

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	goredis "github.com/redis/go-redis/v9"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/Tsukikage7/nebulas/calendar"
	"github.com/Tsukikage7/nebulas/channel"
	"github.com/Tsukikage7/nebulas/channel/redis"
	"github.com/Tsukikage7/nebulas/logger"
	"github.com/Tsukikage7/nebulas/metrics"
	"github.com/Tsukikage7/nebulas/rt/local"
	"github.com/Tsukikage7/nebulas/scheduler"
	"github.com/Tsukikage7/nebulas/semaphore"
	"github.com/Tsukikage7/nebulas/tracing"
)

// tracerName 调度器 span 的 instrumentation 名称.
const tracerName = "github.com/Tsukikage7/nebulas/scheduler"

// Application 应用程序.
type Application struct {
	cfg  *Config
	opts *options

	logger    logger.Logger
	metrics   *metrics.PrometheusCollector
	provider  *sdktrace.TracerProvider
	runtime   *local.Runtime
	scheduler *scheduler.Scheduler
	server    *metricsServer
	limiter   *goredis.Client

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	running bool
}

// New 按配置装配应用.
//
// 远程控制通道在此时建立连接，失败时返回错误.
func New(cfg *Config, opts ...Option) (*Application, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	a := &Application{cfg: cfg, opts: o, logger: o.logger}
	if a.logger == nil {
		log, err := logger.NewLogger(cfg.Logger)
		if err != nil {
			return nil, err
		}
		a.logger = log
	}

	if err := a.build(); err != nil {
		a.release(context.Background())
		return nil, err
	}

	a.ctx, a.cancel = context.WithCancel(context.Background())
	return a, nil
}

// build 依次创建指标、链路追踪、运行时与调度器.
func (a *Application) build() error {
	cfg := a.cfg

	var rtOpts []local.Option
	schedOpts := []scheduler.Option{scheduler.WithLogger(a.logger)}

	if cfg.Metrics != nil && cfg.Metrics.Enabled {
		collector, err := metrics.NewMetrics(cfg.Metrics)
		if err != nil {
			return err
		}
		a.metrics = collector
		rtOpts = append(rtOpts, local.WithMetrics(collector))
		schedOpts = append(schedOpts, scheduler.WithMetrics(collector))

		if cfg.Metrics.Addr != "" {
			a.server = newMetricsServer(cfg.Metrics.Addr, collector.Path(), collector.Handler(), a.logger)
		}
	}

	if cfg.Tracing != nil {
		provider, err := tracing.NewTracer(cfg.Tracing, cfg.Name, cfg.Version)
		if err != nil {
			return err
		}
		a.provider = provider
		schedOpts = append(schedOpts, scheduler.WithTracer(provider.Tracer(tracerName)))
	}

	factory, err := channel.NewFactory(cfg.Channel, a.logger)
	if err != nil {
		return err
	}
	rtOpts = append(rtOpts, local.WithLogger(a.logger), local.WithChannelFactory(factory))
	a.runtime = local.New(rtOpts...)

	loc, err := cfg.Scheduler.location()
	if err != nil {
		return err
	}
	schedOpts = append(schedOpts,
		scheduler.WithClock(calendar.NewSystemClock(loc)),
		scheduler.WithLocation(loc),
		scheduler.WithDelivery(scheduler.Delivery(cfg.Scheduler.Delivery)),
		scheduler.WithCalendarTick(cfg.Scheduler.CalendarTick),
		scheduler.WithWorkTimeout(cfg.Scheduler.WorkTimeout),
	)
	if cfg.Scheduler.MailboxSize > 0 {
		schedOpts = append(schedOpts, scheduler.WithMailboxSize(cfg.Scheduler.MailboxSize))
	}
	if n := cfg.Scheduler.MaxConcurrentRuns; n > 0 {
		sem, err := a.newLimiter(int64(n))
		if err != nil {
			return err
		}
		schedOpts = append(schedOpts, scheduler.WithConcurrencyLimit(sem))
	}
	if a.opts.taskHooks != nil {
		schedOpts = append(schedOpts, scheduler.WithHooks(a.opts.taskHooks))
	}
	schedOpts = append(schedOpts, a.opts.schedulerOptions...)

	s, err := scheduler.New(a.runtime, schedOpts...)
	if err != nil {
		return err
	}
	a.scheduler = s
	return nil
}

// newLimiter 创建执行许可信号量，配置了 ConcurrencyKey 时使用 Redis.
func (a *Application) newLimiter(size int64) (semaphore.Semaphore, error) {
	key := a.cfg.Scheduler.ConcurrencyKey
	if key == "" {
		return semaphore.NewLocal(size)
	}

	client, err := redis.NewClient(a.cfg.Channel.Redis)
	if err != nil {
		return nil, err
	}
	a.limiter = client
	return semaphore.NewRedis(client, key, size)
}

// Scheduler 返回调度器.
func (a *Application) Scheduler() *scheduler.Scheduler {
	return a.scheduler
}

// Logger 返回日志记录器.
func (a *Application) Logger() logger.Logger {
	return a.logger
}

// Metrics 返回指标收集器，未启用时为 nil.
func (a *Application) Metrics() *metrics.PrometheusCollector {
	return a.metrics
}

// Context 获取应用上下文，Stop 或收到信号后取消.
func (a *Application) Context() context.Context {
	return a.ctx
}

// Name 获取应用名称.
func (a *Application) Name() string {
	return a.cfg.Name
}

// Version 获取应用版本.
func (a *Application) Version() string {
	return a.cfg.Version
}

// Run 运行应用，阻塞直到收到关闭信号或调用 Stop.
func (a *Application) Run() error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return ErrRunning
	}
	a.running = true
	a.mu.Unlock()

	if err := a.opts.hooks.run(a.ctx, StageBeforeStart, a); err != nil {
		a.shutdown()
		return err
	}

	a.logger.With(
		logger.String("name", a.cfg.Name),
		logger.String("version", a.cfg.Version),
		logger.String("channel", a.cfg.Channel.Type),
		logger.String("delivery", a.cfg.Scheduler.Delivery),
	).Info("[App] starting")

	if a.server != nil {
		go func() {
			if err := a.server.Start(a.ctx); err != nil {
				a.logger.With(logger.Err(err)).Error("[App] metrics server failed")
			}
		}()
	}

	if err := a.opts.hooks.run(a.ctx, StageAfterStart, a); err != nil {
		a.logger.With(logger.Err(err)).Error("[App] after start hook failed")
	}

	return a.waitForShutdown()
}

// Stop 主动停止应用.
func (a *Application) Stop() {
	a.cancel()
}

func (a *Application) waitForShutdown() error {
	signals := a.opts.signals
	if len(signals) == 0 {
		signals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, signals...)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		a.logger.With(logger.String("signal", sig.String())).Info("[App] received signal")
	case <-a.ctx.Done():
		a.logger.Info("[App] context cancelled")
	}

	return a.shutdown()
}

// shutdown 在优雅超时内关闭调度器并释放资源，返回调度器关闭错误.
func (a *Application) shutdown() error {
	a.cancel()
	a.logger.With(
		logger.Duration("timeout", a.cfg.GracefulTimeout),
	).Info("[App] shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulTimeout)
	defer cancel()

	if err := a.opts.hooks.run(ctx, StageBeforeStop, a); err != nil {
		a.logger.With(logger.Err(err)).Error("[App] before stop hook failed")
	}

	err := a.scheduler.Shutdown(ctx)
	if err != nil {
		a.logger.With(logger.Err(err)).Warn("[App] scheduler shutdown incomplete")
	}

	a.release(ctx)

	if hookErr := a.opts.hooks.run(context.Background(), StageAfterStop, a); hookErr != nil {
		a.logger.With(logger.Err(hookErr)).Error("[App] after stop hook failed")
	}

	a.mu.Lock()
	a.running = false
	a.mu.Unlock()

	a.logger.Info("[App] stopped")
	_ = a.logger.Sync()
	return err
}

// release 停止指标服务，等待运行时任务，关闭链路追踪并执行清理任务.
func (a *Application) release(ctx context.Context) {
	if a.server != nil {
		if err := a.server.Stop(ctx); err != nil {
			a.logger.With(logger.Err(err)).Error("[App] metrics server stop failed")
		}
	}

	if a.runtime != nil {
		if err := a.runtime.Wait(ctx); err != nil {
			a.logger.With(logger.Err(err)).Warn("[App] runtime tasks still running")
		}
	}

	if a.limiter != nil {
		_ = a.limiter.Close()
	}

	if a.provider != nil {
		if err := a.provider.Shutdown(ctx); err != nil {
			a.logger.With(logger.Err(err)).Error("[App] tracer shutdown failed")
		}
	}

	for _, c := range a.opts.sortedCleanups() {
		if err := c.Fn(ctx); err != nil {
			a.logger.With(
				logger.String("cleanup", c.Name),
				logger.Err(err),
			).Error("[App] cleanup failed")
		}
	}
}

package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/Tsukikage7/nebulas/channel"
	"github.com/Tsukikage7/nebulas/config"
	"github.com/Tsukikage7/nebulas/logger"
	"github.com/Tsukikage7/nebulas/metrics"
	"github.com/Tsukikage7/nebulas/scheduler"
	"github.com/Tsukikage7/nebulas/tracing"
)

func TestHooks(t *testing.T) {
	noop := func(context.Context, *Application) error { return nil }
	h := NewHooks().
		AfterStart(noop).
		AfterStart(noop).
		On(Stage(99), noop).
		On(StageAfterStop, nil)

	assert.Equal(t, 2, h.Len(StageAfterStart))
	assert.Equal(t, 0, h.Len(StageAfterStop))
	assert.Equal(t, 0, h.Len(Stage(99)))
	assert.Equal(t, "before-stop", StageBeforeStop.String())
	assert.Equal(t, "stage(99)", Stage(99).String())

	var nilHooks *Hooks
	assert.NoError(t, nilHooks.run(context.Background(), StageAfterStart, nil))
	assert.Equal(t, 0, nilHooks.Len(StageAfterStart))
}

func quietConfig() *Config {
	return &Config{
		Name:            "test",
		GracefulTimeout: 2 * time.Second,
		Logger:          &logger.Config{Level: logger.LevelError},
		Metrics:         &metrics.Config{Enabled: true, Path: "/metrics", Namespace: "test"},
		Tracing:         &tracing.Config{Enabled: false},
	}
}

func TestRelease_ClosesLimiterClient(t *testing.T) {
	client := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:1"})
	var cleaned atomic.Bool
	a := &Application{
		cfg:     quietConfig(),
		opts:    &options{},
		logger:  logger.MustNewLogger(&logger.Config{Level: logger.LevelError}),
		limiter: client,
	}
	RegisterCleanup("c", func(context.Context) error { cleaned.Store(true); return nil }, 0)(a.opts)

	a.release(context.Background())

	assert.ErrorIs(t, client.Ping(context.Background()).Err(), goredis.ErrClosed)
	assert.True(t, cleaned.Load())
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nebulas.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: billing
logger:
  level: warn
channel:
  type: memory
  capacity: 8
scheduler:
  delivery: fanout
  calendar_tick: 100ms
  work_timeout: 5s
  location: UTC
`), 0o644))

	cfg, err := LoadConfig(path, config.WithoutEnv())
	require.NoError(t, err)

	assert.Equal(t, "billing", cfg.Name)
	assert.Equal(t, DefaultVersion, cfg.Version)
	assert.Equal(t, DefaultGracefulTimeout, cfg.GracefulTimeout)
	assert.Equal(t, "billing", cfg.Logger.ServiceName)
	assert.Equal(t, channel.TypeMemory, cfg.Channel.Type)
	assert.Equal(t, 8, cfg.Channel.Capacity)
	assert.Equal(t, string(scheduler.DeliveryFanout), cfg.Scheduler.Delivery)
	assert.Equal(t, 100*time.Millisecond, cfg.Scheduler.CalendarTick)
	assert.Equal(t, 5*time.Second, cfg.Scheduler.WorkTimeout)
	assert.Equal(t, "UTC", cfg.Scheduler.Location)
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nebulas.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scheduler:\n  delivery: broadcast\n"), 0o644))

	_, err := LoadConfig(path, config.WithoutEnv())
	assert.ErrorIs(t, err, config.ErrValidation)
}

func TestConfig_Defaults(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, DefaultName, cfg.Name)
	assert.Equal(t, channel.TypeMemory, cfg.Channel.Type)
	assert.Equal(t, string(scheduler.DeliveryCompeting), cfg.Scheduler.Delivery)
	assert.Equal(t, scheduler.DefaultCalendarTick, cfg.Scheduler.CalendarTick)
}

func TestNew_Errors(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrNilConfig)

	cfg := quietConfig()
	cfg.Scheduler.Location = "Mars/Olympus"
	_, err = New(cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg = quietConfig()
	cfg.Channel = &channel.Config{Type: "nats"}
	_, err = New(cfg)
	assert.ErrorIs(t, err, channel.ErrUnsupported)

	cfg = quietConfig()
	cfg.Scheduler.ConcurrencyKey = "jobs"
	_, err = New(cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg = quietConfig()
	cfg.Scheduler.MaxConcurrentRuns = -1
	_, err = New(cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg = quietConfig()
	cfg.Tracing = &tracing.Config{Enabled: true}
	_, err = New(cfg)
	assert.ErrorIs(t, err, tracing.ErrEmptyEndpoint)
}

type ApplicationTestSuite struct {
	suite.Suite
}

func TestApplicationSuite(t *testing.T) {
	suite.Run(t, new(ApplicationTestSuite))
}

func (s *ApplicationTestSuite) run(a *Application) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- a.Run()
	}()
	return errCh
}

func (s *ApplicationTestSuite) wait(errCh <-chan error) error {
	select {
	case err := <-errCh:
		return err
	case <-time.After(5 * time.Second):
		s.FailNow("application did not stop")
		return nil
	}
}

func (s *ApplicationTestSuite) TestRun_SchedulesAndStops() {
	var (
		mu    sync.Mutex
		order []string
	)
	record := func(name string) Hook {
		return func(context.Context, *Application) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}
	}

	ran := make(chan struct{})
	hooks := NewHooks().
		BeforeStart(record("before-start")).
		AfterStart(record("after-start")).
		AfterStart(Tasks(func(sched *scheduler.Scheduler) error {
			return sched.Via("once", 10*time.Millisecond, func(context.Context) error {
				close(ran)
				return nil
			})
		})).
		BeforeStop(record("before-stop")).
		AfterStop(record("after-stop"))

	cleanup := func(name string) func(context.Context) error {
		return func(ctx context.Context) error { return record(name)(ctx, nil) }
	}
	a, err := New(quietConfig(),
		WithHooks(hooks),
		RegisterCleanup("second", cleanup("cleanup-2"), 2),
		RegisterCleanup("first", cleanup("cleanup-1"), 1),
	)
	s.Require().NoError(err)
	s.NotNil(a.Metrics())
	s.Equal("test", a.Name())

	errCh := s.run(a)

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		s.FailNow("scheduled work did not run")
	}

	a.Stop()
	s.NoError(s.wait(errCh))
	s.True(a.Scheduler().Closed())
	s.Error(a.Context().Err())

	mu.Lock()
	defer mu.Unlock()
	s.Equal([]string{
		"before-start", "after-start", "before-stop",
		"cleanup-1", "cleanup-2", "after-stop",
	}, order)
}

func (s *ApplicationTestSuite) TestRun_BeforeStartFailure() {
	boom := errors.New("not ready")
	var stopped atomic.Bool
	a, err := New(quietConfig(), WithHooks(NewHooks().
		BeforeStart(func(context.Context, *Application) error { return boom }).
		AfterStart(func(context.Context, *Application) error {
			s.Fail("after start must not run")
			return nil
		}).
		AfterStop(func(_ context.Context, a *Application) error {
			stopped.Store(a.Scheduler().Closed())
			return nil
		})))
	s.Require().NoError(err)

	err = a.Run()
	s.ErrorIs(err, ErrHook)
	s.ErrorIs(err, boom)
	s.Contains(err.Error(), "before-start hook #0")
	s.True(stopped.Load())
}

func (s *ApplicationTestSuite) TestRun_Twice() {
	started := make(chan struct{})
	a, err := New(quietConfig(), WithHooks(NewHooks().
		AfterStart(func(context.Context, *Application) error { close(started); return nil })))
	s.Require().NoError(err)

	errCh := s.run(a)
	<-started

	s.ErrorIs(a.Run(), ErrRunning)

	a.Stop()
	s.NoError(s.wait(errCh))
}

func (s *ApplicationTestSuite) TestStop_WaitsForRunningWork() {
	var finished atomic.Bool
	started := make(chan struct{})

	a, err := New(quietConfig(), WithHooks(NewHooks().
		AfterStart(func(_ context.Context, a *Application) error {
			return a.Scheduler().Via("slow", 0, func(context.Context) error {
				close(started)
				time.Sleep(50 * time.Millisecond)
				finished.Store(true)
				return nil
			})
		})))
	s.Require().NoError(err)

	errCh := s.run(a)
	<-started
	a.Stop()

	s.NoError(s.wait(errCh))
	s.True(finished.Load())
}

func (s *ApplicationTestSuite) TestTaskHooksAndSchedulerOptions() {
	var runs atomic.Int32
	done := make(chan struct{})

	taskHooks := scheduler.NewHooks().
		AfterRun(func(_ context.Context, tc *scheduler.TaskContext) {
			if tc.ID == "hooked" && runs.Add(1) == 1 {
				close(done)
			}
		}).
		Build()

	cfg := quietConfig()
	cfg.Scheduler.MaxConcurrentRuns = 2

	a, err := New(cfg,
		WithTaskHooks(taskHooks),
		WithSchedulerOptions(scheduler.WithDelivery(scheduler.DeliveryFanout)),
		WithHooks(NewHooks().AfterStart(Tasks(func(sched *scheduler.Scheduler) error {
			return sched.Via("hooked", 0, func(context.Context) error { return nil })
		}))),
	)
	s.Require().NoError(err)

	errCh := s.run(a)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		s.FailNow("task hook not called")
	}

	a.Stop()
	s.NoError(s.wait(errCh))
	s.Equal(int32(1), runs.Load())
}

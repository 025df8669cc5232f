package app

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/Tsukikage7/nebulas/logger"
)

// metricsServer 暴露 Prometheus 指标的 HTTP 服务.
type metricsServer struct {
	addr    string
	handler http.Handler
	logger  logger.Logger

	mu     sync.Mutex
	server *http.Server
}

func newMetricsServer(addr, path string, handler http.Handler, log logger.Logger) *metricsServer {
	mux := http.NewServeMux()
	mux.Handle(path, handler)

	return &metricsServer{
		addr:    addr,
		handler: mux,
		logger:  log,
	}
}

// Start 启动服务，阻塞直到服务退出或 ctx 结束.
func (s *metricsServer) Start(ctx context.Context) error {
	s.mu.Lock()
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	srv := s.server
	s.mu.Unlock()

	s.logger.Infof("[App] metrics server listening [addr:%s]", s.addr)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}
	return nil
}

// Stop 停止服务.
func (s *metricsServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

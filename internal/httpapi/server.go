package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"tg_forwarder/internal/logger"
	"tg_forwarder/internal/query"
	"tg_forwarder/internal/state"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ServiceName 服务名称
const ServiceName = "Telegram Forwarder + API"

// APIKeyHeader 共享密钥请求头
const APIKeyHeader = "X-API-Key"

// Server 查询服务 HTTP 入口
type Server struct {
	router *mux.Router
	query  *query.Service
	shared *state.Shared
	apiKey string
	server *http.Server
	now    func() time.Time
}

// NewServer 创建 HTTP 服务
// apiKey 为空时受保护接口不做校验
func NewServer(port string, apiKey string, shared *state.Shared, querySvc *query.Service) *Server {
	s := &Server{
		router: mux.NewRouter(),
		query:  querySvc,
		shared: shared,
		apiKey: apiKey,
		now:    time.Now,
	}
	s.setupRoutes()

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(requestIDMiddleware, tracingMiddleware, accessLogMiddleware)

	s.router.HandleFunc("/", s.handleRoot()).Methods(http.MethodGet)
	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(s.apiKeyMiddleware)
	api.HandleFunc("/messages/{hours:[0-9]+}", s.handleMessages()).Methods(http.MethodGet)
	api.HandleFunc("/messages/{hours:[0-9]+}/combined", s.handleCombined()).Methods(http.MethodGet)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not Found")
	})
	methodNotAllowed := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})
	s.router.MethodNotAllowedHandler = methodNotAllowed
	api.MethodNotAllowedHandler = methodNotAllowed
}

// Handler 返回路由（测试使用）
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run 启动监听，ctx 取消后优雅关闭
// 关闭时不等待进行中的历史读取超过 5 秒
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.L().Infof("Starting HTTP server on %s", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		logger.L().Warnf("HTTP server shutdown: %v", err)
	}
	logger.L().Info("HTTP server stopped")
	return nil
}

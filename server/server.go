// Package server 把 predictor 暴露为 HTTP 接口（chi 路由）。
//
//	POST /v1/predict         单条预测
//	POST /v1/predict/batch   批量预测，逐条返回结果或错误
//	GET  /v1/model           当前模型制品信息
//	GET  /v1/history         最近的预测记录
//	GET  /v1/history/{id}    单条预测记录
//	GET  /healthz            存活检查
//	GET  /metrics            Prometheus 指标
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rushteam/survkit/config"
	"github.com/rushteam/survkit/logging"
	"github.com/rushteam/survkit/predictor"
)

// Server 是 survkit 的 HTTP 服务
type Server struct {
	predictor *predictor.Predictor
	cfg       config.ServerConfig
	maxBatch  int
	router    chi.Router
}

// New 创建服务并注册路由
func New(p *predictor.Predictor, cfg config.ServerConfig, maxBatch int) *Server {
	if maxBatch <= 0 {
		maxBatch = 256
	}
	s := &Server{predictor: p, cfg: cfg, maxBatch: maxBatch}
	s.router = s.routes()
	return s
}

// Handler 返回根 http.Handler
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestID)
	// 只有部署在可信代理之后才采信 X-Forwarded-For 等头，否则限流键可被客户端伪造
	if s.cfg.TrustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(accessLog)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		if s.cfg.RateLimit > 0 {
			window := s.cfg.RateWindow
			if window <= 0 {
				window = time.Minute
			}
			r.Use(httprate.Limit(s.cfg.RateLimit, window,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
					writeError(w, r, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests", nil)
				}),
			))
		}
		r.Post("/predict", s.handlePredict)
		r.Post("/predict/batch", s.handlePredictBatch)
		r.Get("/model", s.handleModel)
		r.Get("/history", s.handleHistory)
		r.Get("/history/{id}", s.handleHistoryEntry)
	})
	return r
}

// ListenAndServe 启动服务，ctx 取消后优雅退出
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", s.cfg.Addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	logging.Info().Msg("http server shutting down")
	return srv.Shutdown(shutdownCtx)
}

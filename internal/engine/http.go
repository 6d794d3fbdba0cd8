package engine

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// HTTPServer публикует доменные MCP-серверы по streamable HTTP: /mcp/{scheme}.
type HTTPServer struct {
	router   *chi.Mux
	logger   *zap.Logger
	gateways []*Gateway

	// auth кладет идентичность из Bearer-токена в контекст; nil, без токенов
	auth    func(http.Handler) http.Handler
	metrics http.Handler
	health  func(ctx context.Context) error
}

type HTTPOption func(*HTTPServer)

func WithAuth(mw func(http.Handler) http.Handler) HTTPOption {
	return func(s *HTTPServer) { s.auth = mw }
}

func WithMetricsHandler(h http.Handler) HTTPOption {
	return func(s *HTTPServer) { s.metrics = h }
}

// WithHealthCheck: проверка зависимостей (например, Ping хранилища) для /health.
func WithHealthCheck(fn func(ctx context.Context) error) HTTPOption {
	return func(s *HTTPServer) { s.health = fn }
}

func NewHTTPServer(gateways []*Gateway, logger *zap.Logger, opts ...HTTPOption) *HTTPServer {
	s := &HTTPServer{
		router:   chi.NewRouter(),
		logger:   logger.Named("http"),
		gateways: gateways,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *HTTPServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *HTTPServer) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	// --- 2. Служебные роуты ---
	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	// --- 3. MCP endpoints агентов ---
	r.Group(func(r chi.Router) {
		if s.auth != nil {
			r.Use(s.auth)
		}
		for _, g := range s.gateways {
			endpoint := "/mcp/" + g.Domain.Scheme
			h := server.NewStreamableHTTPServer(g.MCPServer(), server.WithEndpointPath(endpoint))
			r.Handle(endpoint, h)
			s.logger.Info("mcp endpoint registered", zap.String("path", endpoint), zap.String("module", g.Domain.Module))
		}
	})
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.health(ctx); err != nil {
			s.logger.Warn("health check failed", zap.Error(err))
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
}

// requestLogger: access-лог через zap вместо стандартного middleware.Logger.
func (s *HTTPServer) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// Package server assembles the gateway: routes, middleware chain, and the
// HTTP server lifecycle.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/careerdev-ai/careerdev/pkg/gateway/config"
	"github.com/careerdev-ai/careerdev/pkg/gateway/handlers"
	"github.com/careerdev-ai/careerdev/pkg/gateway/metrics"
	"github.com/careerdev-ai/careerdev/pkg/gateway/mw"
	"github.com/careerdev-ai/careerdev/pkg/gateway/ratelimit"
)

// Deps are the backing services the gateway serves.
type Deps struct {
	Advisor handlers.Advisor
	Store   handlers.ResumeStore
	Blob    handlers.BlobStore
}

type Server struct {
	cfg     config.Config
	logger  *slog.Logger
	mux     *http.ServeMux
	limiter *ratelimit.Limiter
	metrics *metrics.Metrics
	deps    Deps
}

func New(cfg config.Config, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:    cfg,
		logger: logger,
		mux:    http.NewServeMux(),
		limiter: ratelimit.New(ratelimit.Config{
			RPS:   cfg.LimitRPS,
			Burst: cfg.LimitBurst,
		}),
		metrics: metrics.New("careerdev"),
		deps:    deps,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	resumes := handlers.ResumesHandler{
		Store:        s.deps.Store,
		Logger:       s.logger,
		MaxBodyBytes: s.cfg.MaxBodyBytes,
	}
	adv := handlers.AdvisorHandler{
		Advisor:           s.deps.Advisor,
		Logger:            s.logger,
		MaxBodyBytes:      s.cfg.MaxBodyBytes,
		Metrics:           s.metrics,
		PingInterval:      s.cfg.SSEPingInterval,
		MaxStreamDuration: s.cfg.SSEMaxStreamDuration,
	}
	uploads := handlers.UploadsHandler{
		Store:          s.deps.Store,
		Blob:           s.deps.Blob,
		Logger:         s.logger,
		MaxUploadBytes: s.cfg.MaxUploadBytes,
		Metrics:        s.metrics,
	}
	profile := handlers.ProfileHandler{
		Store:        s.deps.Store,
		Logger:       s.logger,
		MaxBodyBytes: s.cfg.MaxBodyBytes,
	}

	s.mux.Handle("GET /healthz", handlers.HealthHandler{})
	s.mux.Handle("GET /metrics", s.metrics.Handler())

	s.handle("GET /v1/resumes", "resumes_list", resumes.List)
	s.handle("GET /v1/resumes/{id}", "resumes_get", resumes.Get)
	s.handle("POST /v1/resumes", "resumes_save", resumes.Save)
	s.handle("DELETE /v1/resumes/{id}", "resumes_delete", resumes.Delete)

	s.handle("GET /v1/tips", "tips", adv.Tip)
	s.handle("POST /v1/chat", "chat", adv.Chat)
	s.handle("POST /v1/resumes/section", "resume_section", adv.Section)
	s.handle("POST /v1/resumes/analyze", "resume_analyze", adv.Analyze)
	s.handle("POST /v1/qa", "industry_qa", adv.QA)
	s.handle("POST /v1/opportunities", "opportunities", adv.Opportunities)

	s.handle("POST /v1/uploads", "uploads", uploads.Upload)
	s.handle("GET /v1/downloads", "downloads", uploads.Downloads)
	s.handle("POST /v1/profile", "profile", profile.Upsert)

	s.mux.Handle("/", handlers.NotFoundHandler{})
}

func (s *Server) handle(pattern, endpoint string, fn http.HandlerFunc) {
	s.mux.Handle(pattern, s.metrics.Instrument(endpoint, fn))
}

// Handler returns the full middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = mw.RateLimit(s.limiter, s.metrics.RateLimitHitsTotal.Inc, h)
	h = mw.CORS(s.cfg, h)
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, h)
	h = mw.RequestID(h)
	return h
}

// ListenAndServe runs the server until ctx is cancelled, then drains within
// the configured grace period.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		ReadTimeout:       s.cfg.ReadTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("gateway listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownGracePeriod)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

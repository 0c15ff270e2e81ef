// Package server is the web front end of the dashboard.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gohealthy/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Coordinator receives the user's commands.
type Coordinator interface {
	OnScreenEnter()
	OnScreenExit()
	OnGranularityChanged(g models.Granularity)
	OnSwipeOlder()
	OnSwipeNewer()
	OnDrag(dx float64)
}

type Config struct {
	Port string
	// SettleTimeout bounds how long a command waits for fresh data before
	// the page is rendered anyway.
	SettleTimeout time.Duration
	Language      language.Tag
	Gatherer      prometheus.Gatherer
	Now           func() time.Time
}

type Server struct {
	cfg     Config
	vm      Coordinator
	binding *Binding
	log     *zap.Logger
	printer *message.Printer
	router  chi.Router
}

func New(cfg Config, vm Coordinator, binding *Binding, log *zap.Logger) *Server {
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.SettleTimeout <= 0 {
		cfg.SettleTimeout = 3 * time.Second
	}
	if cfg.Language.IsRoot() {
		cfg.Language = language.English
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	s := &Server{
		cfg:     cfg,
		vm:      vm,
		binding: binding,
		log:     log,
		printer: message.NewPrinter(cfg.Language),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(loggingMiddleware(s.log))

	r.Get("/", s.handleStart)
	r.Get("/steps", s.handleDetail(models.MetricSteps))
	r.Get("/heart", s.handleDetail(models.MetricHeartRate))

	r.Post("/granularity", s.handleGranularity)
	r.Post("/older", s.command(s.vm.OnSwipeOlder))
	r.Post("/newer", s.command(s.vm.OnSwipeNewer))
	r.Post("/drag", s.handleDrag)
	r.Post("/back", s.handleBack)

	r.Get("/api/state", s.handleState)
	r.Handle("/metrics", promhttp.HandlerFor(s.cfg.Gatherer, promhttp.HandlerOpts{}))
	return r
}

func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              net.JoinHostPort("", s.cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("server starting", zap.String("url", s.URL()))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// URL is the local address of the dashboard.
func (s *Server) URL() string {
	return "http://localhost:" + s.cfg.Port
}

package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ivlev/solarscope/internal/config"
	"github.com/ivlev/solarscope/internal/engine"
	"github.com/ivlev/solarscope/pkg/metrics"
	"github.com/ivlev/solarscope/pkg/middleware"
)

const (
	gracefulShutdownTimeout = 5 * time.Second
)

type Server struct {
	cfg        *config.Config
	assessor   *engine.Assessor
	listener   net.Listener
	registerer prometheus.Registerer
}

// New returns a new instance of the solarscope web server. Its collectors are
// registered to registerer when the server starts.
func New(
	cfg *config.Config,
	assessor *engine.Assessor,
	listener net.Listener,
	registerer prometheus.Registerer,
) *Server {
	return &Server{
		cfg:        cfg,
		assessor:   assessor,
		listener:   listener,
		registerer: registerer,
	}
}

// NewRouter wires the middleware chain and every route.
func NewRouter(cfg *config.Config, assessor *engine.Assessor, registerer prometheus.Registerer) (chi.Router, error) {
	metricMiddleware := metrics.NewMiddleware("solarscope")
	metricMiddleware.MustRegister(registerer)

	domainMetrics := metrics.NewRegistry()
	domainMetrics.MustRegister(registerer)

	h, err := newHandler(cfg, assessor, domainMetrics)
	if err != nil {
		return nil, err
	}

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.Logger(),
		chiMiddleware.Recoverer,
		metricMiddleware.Handler,
		cors.Handler(cors.Options{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", middleware.RequestIDHeader},
			ExposedHeaders: []string{middleware.RequestIDHeader},
			MaxAge:         300,
		}),
	)

	router.Get("/", h.index)
	router.Post("/analyze", h.analyzePage)
	router.Post("/roi", h.roiPage)
	router.Get("/health", h.health)

	router.Route("/api/v1", func(r chi.Router) {
		r.Post("/analyze", h.analyzeAPI)
		r.Post("/roi", h.roiAPI)
		r.Get("/roi/qr", h.roiQR)
	})

	return router, nil
}

func (s *Server) Run(ctx context.Context) error {
	zap.S().Named("api_server").Info("Initializing API server")

	router, err := NewRouter(s.cfg, s.assessor, s.registerer)
	if err != nil {
		return errors.Wrap(err, "building router")
	}

	srv := http.Server{Addr: s.cfg.Server.Address, Handler: router}

	go func() {
		<-ctx.Done()
		zap.S().Named("api_server").Infof("Shutdown signal received: %s", ctx.Err())
		ctxTimeout, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()

		srv.SetKeepAlivesEnabled(false)
		_ = srv.Shutdown(ctxTimeout)
		zap.S().Named("api_server").Info("api server terminated")
	}()

	zap.S().Named("api_server").Infof("Listening on %s...", s.listener.Addr().String())
	if err := srv.Serve(s.listener); err != nil && !errors.Is(err, net.ErrClosed) && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

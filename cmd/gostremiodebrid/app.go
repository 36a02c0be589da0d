package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/amaumene/gostremiodebrid/internal/config"
	"github.com/amaumene/gostremiodebrid/internal/database"
	"github.com/amaumene/gostremiodebrid/internal/handlers"
	"github.com/amaumene/gostremiodebrid/internal/metrics"
	"github.com/amaumene/gostremiodebrid/internal/middleware"
	"github.com/amaumene/gostremiodebrid/internal/services"
	"github.com/amaumene/gostremiodebrid/internal/telemetry"
	"github.com/amaumene/gostremiodebrid/pkg/logger"
	"github.com/amaumene/gostremiodebrid/pkg/ssl"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// app owns every long-lived component of the process.
type app struct {
	cfg             *config.Config
	logger          logger.Logger
	container       *services.Container
	server          *http.Server
	shutdownTracing func(context.Context) error
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	log := logger.NewWithLevel(cfg.LogLevel)

	shutdownTracing, err := telemetry.Init(ctx, cfg.ServiceName)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	db, err := database.NewBolt(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	log.Infof("[App] bolt database opened at %s", cfg.Database.Path)

	container, err := services.NewContainer(cfg, db, log)
	if err != nil {
		db.Close()
		return nil, err
	}
	log.Infof("[App] services initialized, providers: %v", container.Providers.Names())

	a := &app{
		cfg:             cfg,
		logger:          log,
		container:       container,
		shutdownTracing: shutdownTracing,
	}
	a.server = &http.Server{
		Addr:    cfg.ListenAddress(),
		Handler: otelhttp.NewHandler(a.router(), cfg.ServiceName),
	}

	if cfg.Server.LocalIPTLS {
		cert := ssl.NewLocalIPCertificate(cfg.Server.CertDir, log)
		tlsConfig, err := cert.Setup(ctx, "")
		if err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to set up TLS: %w", err)
		}
		a.server.TLSConfig = tlsConfig
		log.Infof("[App] addon reachable at https://%s:%d/manifest.json", cert.Hostname(), cfg.Server.Port)
	}
	return a, nil
}

func (a *app) router() *gin.Engine {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Register(reg)

	r := gin.New()
	r.Use(gin.Recovery(), middleware.CORS(), middleware.Logger(a.logger), middleware.Metrics(), middleware.Gzip())
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	handlers.New(a.container.Streams, a.container.Providers.Names(), a.logger).RegisterRoutes(r)
	return r
}

// run serves until ctx is cancelled or the listener fails.
func (a *app) run(ctx context.Context) error {
	if a.container.Cleanup != nil {
		a.container.Cleanup.Start(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Infof("[App] starting HTTP server on %s", a.server.Addr)
		var err error
		if a.server.TLSConfig != nil {
			err = a.server.ListenAndServeTLS("", "")
		} else {
			err = a.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// shutdown stops the server first so no request outlives the services it uses.
func (a *app) shutdown(ctx context.Context) {
	if err := a.server.Shutdown(ctx); err != nil {
		a.logger.Errorf("[App] HTTP server shutdown: %v", err)
	}
	if err := a.container.Close(); err != nil {
		a.logger.Errorf("[App] closing services: %v", err)
	}
	if err := a.shutdownTracing(ctx); err != nil {
		a.logger.Errorf("[App] tracer shutdown: %v", err)
	}
	a.logger.Infof("[App] stopped")
}

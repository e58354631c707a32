package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humaecho"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/donaldgifford/meli-harvester/api/openapi"
	"github.com/donaldgifford/meli-harvester/internal/api/handlers"
	mw "github.com/donaldgifford/meli-harvester/internal/api/middleware"
	"github.com/donaldgifford/meli-harvester/internal/harvest"
)

const (
	apiTitle        = "meli-harvester API"
	shutdownTimeout = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server and extraction scheduler",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log := newLogger(cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			log.Warn("closing components", "error", cerr)
		}
	}()

	e := newServer(ctx, a)
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout

	var sched *harvest.Scheduler
	if cfg.Harvest.ScheduleEnabled {
		sched, err = harvest.NewScheduler(a.pipeline, cfg.Harvest.Interval, log)
		if err != nil {
			return fmt.Errorf("creating scheduler: %w", err)
		}
		sched.Start()
		log.Info("scheduler started",
			"interval", cfg.Harvest.Interval,
			"next_run", sched.NextRun(),
		)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info("starting server", "addr", addr, "version", Version)

	serveErr := make(chan error, 1)
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	log.Info("shutting down server")

	if sched != nil {
		sched.Stop()
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := e.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}

	log.Info("server stopped")
	return nil
}

// newServer builds the Echo instance with probes, metrics, Swagger UI and
// the Huma API. Runs triggered over HTTP are bound to base.
func newServer(base context.Context, a *app) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(mw.Recovery(a.log))
	e.Use(mw.RequestLog(a.log))
	e.Use(mw.Metrics())

	var pinger handlers.Pinger
	if a.store != nil {
		pinger = a.store
	}
	health := handlers.NewHealthHandler(pinger)
	e.GET("/healthz", health.Healthz)
	e.GET("/readyz", health.Readyz)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	openapi.RegisterRoutes(e, apiTitle)

	api := humaecho.New(e, huma.DefaultConfig(apiTitle, Version))
	registerAPI(base, api, a)

	return e
}

func registerAPI(base context.Context, api huma.API, a *app) {
	handlers.RegisterAuthRoutes(api, handlers.NewAuthHandler(a.tokens, a.client, a.cfg.Meli.AccountID))
	handlers.RegisterQuotaRoutes(api, handlers.NewQuotaHandler(a.limiter))

	var runs handlers.RunLister
	if a.store != nil {
		runs = a.store
	}
	handlers.RegisterExtractRoutes(api, handlers.NewExtractHandler(base, a.pipeline, runs, a.log))
	handlers.RegisterProductRoutes(api, handlers.NewProductsHandler(a.productLister()))
}

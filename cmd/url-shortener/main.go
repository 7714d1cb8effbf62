package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"

	"github.com/go-chi/httplog/v2"
	"github.com/vadimbarashkov/shorturls/internal/config"
	"github.com/vadimbarashkov/shorturls/internal/database/postgres"
	"github.com/vadimbarashkov/shorturls/internal/geo"
	"github.com/vadimbarashkov/shorturls/internal/service"
	"github.com/vadimbarashkov/shorturls/internal/telemetry"
	"golang.org/x/sync/errgroup"

	myhttp "github.com/vadimbarashkov/shorturls/internal/api/http"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx); err != nil {
		panic(err)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return err
	}

	logger := httplog.NewLogger("shorturls", httplog.Options{
		JSON:    cfg.Env == config.EnvProd,
		Concise: cfg.Env != config.EnvProd,
	})

	g, ctx := errgroup.WithContext(ctx)

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		return err
	}
	g.Go(func() error {
		<-ctx.Done()
		return db.Close()
	})

	if err := postgres.RunMigrations("file://migrations", cfg.Postgres.DSN()); err != nil {
		return err
	}

	var sink service.LogSink = telemetry.Nop{}
	if cfg.Telemetry.Endpoint != "" {
		s := telemetry.NewSink(cfg.Telemetry, logger.Logger)
		defer s.Close()
		sink = s
	}

	var locator service.Locator = geo.NopLocator{}
	if cfg.GeoIP.DBPath != "" {
		l, err := geo.NewMaxMindLocator(cfg.GeoIP.DBPath)
		if err != nil {
			return err
		}
		defer l.Close()
		locator = l
	}

	urlRepo := postgres.NewURLRepository(db)
	urlSvc := service.NewURLService(urlRepo, locator, sink, logger.Logger, cfg.Shortener)

	reaper := service.NewReaper(urlRepo, sink, logger.Logger, cfg.Reaper.Interval)
	g.Go(func() error {
		return reaper.Run(ctx)
	})

	r := myhttp.NewRouter(logger, urlSvc, cfg.BaseURL)

	server := &http.Server{
		Addr:           cfg.HTTPServer.Addr(),
		Handler:        r,
		ReadTimeout:    cfg.HTTPServer.ReadTimeout,
		WriteTimeout:   cfg.HTTPServer.WriteTimeout,
		IdleTimeout:    cfg.HTTPServer.IdleTimeout,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g.Go(func() error {
		var err error

		switch cfg.Env {
		case config.EnvProd:
			err = server.ListenAndServeTLS(cfg.HTTPServer.CertFile, cfg.HTTPServer.KeyFile)
		default:
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		return server.Shutdown(context.Background())
	})

	return g.Wait()
}

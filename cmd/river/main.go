// Command river runs the investment platform API server.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gasamara891-boop/river/internal/app"
	"github.com/gasamara891-boop/river/internal/config"
	"github.com/gasamara891-boop/river/pkg/logger"
	"github.com/gasamara891-boop/river/supabase/client"
)

func main() {
	configPath := flag.String("config", "", "path to optional YAML config file")
	flag.Parse()
	path := *configPath
	if path == "" {
		path = os.Getenv("RIVER_CONFIG")
	}

	cfg, err := config.Load(path)
	if err != nil {
		logger.NewDefault("main").WithError(err).Error("load configuration")
		os.Exit(1)
	}

	log := logger.New(logger.LoggingConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}).WithField("component", "main")

	sb, err := client.New(client.Config{
		URL:    cfg.Supabase.URL,
		APIKey: cfg.Supabase.AnonKey,
	})
	if err != nil {
		log.WithError(err).Error("configure supabase client")
		os.Exit(1)
	}
	rt := client.NewRealtimeClient(cfg.Supabase.URL, cfg.Supabase.AnonKey)

	application, err := app.New(app.Options{
		Config:   cfg,
		Supabase: sb,
		Realtime: rt,
		Log:      log,
	})
	if err != nil {
		log.WithError(err).Error("initialise application")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Start(ctx); err != nil {
		log.WithError(err).Error("start background services")
		os.Exit(1)
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      application.Handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", server.Addr).Info("http server listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("http server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http server shutdown")
	}
	if err := application.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("stop background services")
	}
	log.Info("shutdown complete")
}

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"recstatus-dashboard/internal/dashboard"
	"recstatus-dashboard/internal/platform/config"
	"recstatus-dashboard/internal/platform/kvstore"
	"recstatus-dashboard/internal/platform/logger"
	"recstatus-dashboard/internal/platform/metrics"
	"recstatus-dashboard/internal/platform/notify"

	"github.com/go-chi/chi/v5"
)

const (
	shutdownTimeout = 10 * time.Second
	notifyHistory   = 100
)

func main() {
	_ = config.Load()
	cfg := config.LoadDashboard()

	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	store, err := kvstore.OpenFile(cfg.TokenFile)
	if err != nil {
		log.Error("open token store failed", "path", cfg.TokenFile, "error", err)
		os.Exit(1)
	}
	met := metrics.New()
	notes := notify.NewRecorder(notifyHistory, notify.NewLog(log))

	dash, err := dashboard.New(dashboard.Config{
		BaseURL:         cfg.APIBaseURL,
		RequestTimeout:  cfg.RequestTimeout,
		RefreshThrottle: cfg.RefreshThrottle,
		RefreshInterval: cfg.RefreshInterval,
		AutoRefresh:     cfg.AutoRefresh,
	}, dashboard.Services{
		Notifier: notes,
		Store:    store,
		Logger:   log,
		Metrics:  met,
	})
	if err != nil {
		log.Error("dashboard setup failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	if err := dash.Init(ctx); err != nil {
		log.Warn("initial load failed, auto refresh will retry", "error", err)
	}

	h := dashboard.NewHandler(dash, log, met, notes)

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	h.Routes(r)

	addr := ":" + cfg.Port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", cfg.Port,
		"api_base_url", cfg.APIBaseURL,
		"refresh_interval", cfg.RefreshInterval.String(),
		"auto_refresh", cfg.AutoRefresh,
		"log_level", cfg.LogLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")
	dash.Close()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}

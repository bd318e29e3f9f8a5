package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	api "vidrelay/internal/api"
	"vidrelay/internal/config"
	"vidrelay/internal/ledger"
	"vidrelay/internal/logging"
	"vidrelay/internal/mirror"
	"vidrelay/internal/notify"
	"vidrelay/internal/storage"
	"vidrelay/internal/store"
	"vidrelay/internal/telemetry"
	"vidrelay/internal/worker"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.Env, cfg.LogLevel)
	telemetry.Register()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	jobs := store.NewJobStore()
	usage := ledger.New()
	hub := notify.NewHub(log)
	hub.OnDrop = func(string) { telemetry.NotificationsDropped.Inc() }

	var sinks []worker.Sink
	if cfg.RedisAddr != "" {
		m := mirror.NewRedis(cfg)
		if err := m.Ping(ctx); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("connect redis mirror")
		}
		defer m.Close()
		sinks = append(sinks, m)
		log.Info().Str("addr", cfg.RedisAddr).Msg("redis mirror enabled")
	}

	var history api.HistoryReader
	if cfg.AuditPostgresDSN != "" {
		audit, err := store.NewAudit(ctx, cfg.AuditPostgresDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("connect postgres audit")
		}
		defer audit.Close()
		if err := audit.RunMigrations(ctx); err != nil {
			log.Fatal().Err(err).Msg("audit migrations")
		}
		sinks = append(sinks, audit)
		history = audit
		log.Info().Msg("transition audit enabled")
	}

	images, err := storage.NewImages(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("configure upload storage")
	}

	supervisor := worker.NewSupervisor(context.Background())
	orchestrator := worker.NewOrchestrator(worker.Options{
		Jobs:         jobs,
		Ledger:       usage,
		Notifier:     hub,
		Clients:      worker.NewClientFactory(cfg.UpstreamTimeout),
		Sinks:        sinks,
		Supervisor:   supervisor,
		PollInterval: cfg.PollInterval,
		Logger:       log,
	})
	janitor := worker.NewJanitor(jobs, usage, cfg.JanitorInterval, cfg.Retention, log)
	go janitor.Run(ctx)

	server := api.New(cfg, api.Deps{
		Jobs:       jobs,
		Ledger:     usage,
		Hub:        hub,
		Dispatcher: orchestrator,
		Janitor:    janitor,
		Images:     images,
		History:    history,
		Logger:     log,
	})
	httpServer := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: server.Router(),
	}

	log.Info().
		Str("url", "http://localhost:"+cfg.HTTPPort).
		Str("admin", "http://localhost:"+cfg.HTTPPort+"/admin").
		Msg("api listening")
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	<-ctx.Done()
	log.Info().Int64("jobs_in_flight", supervisor.InFlight()).Msg("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()
	_ = httpServer.Shutdown(shutdownCtx)
	if err := supervisor.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("jobs still running at exit")
	}
}

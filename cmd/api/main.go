package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"callcenter-platform/internal/agents"
	"callcenter-platform/internal/agentsync"
	"callcenter-platform/internal/alerts"
	"callcenter-platform/internal/audit"
	"callcenter-platform/internal/auth"
	"callcenter-platform/internal/calls"
	"callcenter-platform/internal/config"
	"callcenter-platform/internal/credits"
	"callcenter-platform/internal/httpapi"
	"callcenter-platform/internal/mailer"
	"callcenter-platform/internal/realtime"
	"callcenter-platform/internal/reporting"
	"callcenter-platform/internal/retell"
	"callcenter-platform/internal/team"
	"callcenter-platform/internal/users"
	"callcenter-platform/pkg/logger"
	"callcenter-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	// The queue keeps its own native pool; application queries go through db.
	pool, err := utils.OpenPgxPool(rootCtx, cfg.PostgresURL(), 5*time.Second)
	if err != nil {
		log.Error("pgx pool init failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Queue schema migration is idempotent; run it on every boot.
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		log.Error("river migrator init failed", "err", err)
		os.Exit(1)
	}
	if _, err := migrator.Migrate(rootCtx, rivermigrate.DirectionUp, nil); err != nil {
		log.Error("river migration failed", "err", err)
		os.Exit(1)
	}

	// Repositories
	usersRepo := users.NewPostgresRepo(db)
	creditsRepo := credits.NewPostgresRepo(db)
	alertsRepo := alerts.NewPostgresRepo(db)
	agentsRepo := agents.NewPostgresRepo(db)
	syncRepo := agentsync.NewPostgresRepo(db)
	callsRepo := calls.NewPostgresRepo(db)
	teamRepo := team.NewPostgresRepo(db)
	auditRepo := audit.NewPostgresRepo(db)
	reportsRepo := reporting.NewPostgresRepo(db)

	bus := realtime.NewBus(rdb, log)

	// Domain services
	usersSvc := users.NewService(usersRepo, log)
	auditSvc := audit.NewService(auditRepo)
	reportsSvc := reporting.NewService(reportsRepo)
	agentsSvc := agents.NewService(agentsRepo, bus, log)

	provider := retell.NewClient(cfg.Retell.APIKey, cfg.Retell.BaseURL, cfg.Retell.Timeout)
	syncSvc := agentsync.NewService(syncRepo, agentsRepo, provider, bus, log)

	summaryCache := credits.NewRedisSummaryCache(rdb, 5*time.Minute, log)
	// Threshold notifications flow through the alerts monitor, which joins
	// user emails and applies the per-user cooldown; no per-write notifier.
	creditsSvc := credits.NewService(creditsRepo, nil, bus, summaryCache, log, credits.ServiceOptions{
		Defaults: credits.Thresholds{
			Warning:  cfg.Billing.DefaultWarningThreshold,
			Critical: cfg.Billing.DefaultCriticalThreshold,
		},
		AssumedRatePerMinute: cfg.Billing.AssumedRatePerMinute,
	})

	callsSvc := calls.NewService(callsRepo, agentsSvc, creditsSvc, log, cfg.Billing.AssumedRatePerMinute)

	// Queue workers
	smtpMailer := mailer.NewSMTPMailer(mailer.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})

	workers := river.NewWorkers()
	river.AddWorker(workers, mailer.NewInviteEmailWorker(teamRepo, smtpMailer, cfg.App.BaseURL, log))
	river.AddWorker(workers, mailer.NewLowBalanceEmailWorker(smtpMailer, log))
	river.AddWorker(workers, agentsync.NewSyncWorker(syncSvc, log))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 10},
		},
		Workers: workers,
		PeriodicJobs: []*river.PeriodicJob{
			river.NewPeriodicJob(
				river.PeriodicInterval(cfg.Sync.AgentSyncInterval),
				func() (river.JobArgs, *river.InsertOpts) {
					return agentsync.SyncJobArgs{}, nil
				},
				&river.PeriodicJobOpts{RunOnStart: true},
			),
		},
	})
	if err != nil {
		log.Error("river client init failed", "err", err)
		os.Exit(1)
	}

	enqueuer := mailer.NewEnqueuer(riverClient)
	alertsSvc := alerts.NewService(alertsRepo, enqueuer, rdb, log, cfg.Billing.NotifyCooldown)
	teamSvc := team.NewService(teamRepo, enqueuer, log, cfg.App.BaseURL)

	go func() {
		if err := riverClient.Start(rootCtx); err != nil && rootCtx.Err() == nil {
			log.Error("river start failed", "err", err)
			stop()
		}
	}()

	// Low-balance monitor: periodic tick plus debounced reaction to
	// balance-change events from the bus.
	monitor := alerts.NewMonitor(alertsSvc, bus, log, cfg.Sync.AlertPollInterval)
	go monitor.Run(rootCtx)

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	h := httpapi.Handlers{
		Auth:    authManager,
		Users:   usersSvc,
		Credits: creditsSvc,
		Calls:   callsSvc,
		Alerts:  alertsSvc,
		Agents:  agentsSvc,
		Sync:    syncSvc,
		Reports: reportsSvc,
		Audit:   auditSvc,
		DB:      db,
		Log:     log,
	}
	registerRoutes(r, auth.RequireAccessToken(authManager), h,
		team.NewHandler(teamSvc, log),
		calls.NewWebhookHandler(callsSvc, log),
	)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
	if err := riverClient.Stop(shutdownCtx); err != nil {
		log.Error("queue shutdown failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	automationshandler "github.com/automind-ia/automind-saas/domains/automations/be/handler"
	automationsrepo "github.com/automind-ia/automind-saas/domains/automations/be/repo"
	automationsservice "github.com/automind-ia/automind-saas/domains/automations/be/service"
	companieshandler "github.com/automind-ia/automind-saas/domains/companies/be/handler"
	companiesrepo "github.com/automind-ia/automind-saas/domains/companies/be/repo"
	companiesservice "github.com/automind-ia/automind-saas/domains/companies/be/service"
	"github.com/automind-ia/automind-saas/domains/reminders/be/dispatcher"
	"github.com/automind-ia/automind-saas/platform/go/gcp"
	platformlogging "github.com/automind-ia/automind-saas/platform/go/logging"
	platformmiddleware "github.com/automind-ia/automind-saas/platform/go/middleware"
	"github.com/automind-ia/automind-saas/platform/go/requesttrace"
	"github.com/automind-ia/automind-saas/platform/go/schedule"
)

type config struct {
	Port            string        `env:"PORT" envDefault:"3000"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`

	ReminderWebhookURL    string        `env:"REMINDER_WEBHOOK_URL,required"`
	ReminderInstanceID    string        `env:"REMINDER_INSTANCE_ID" envDefault:"payment-reminder"`
	ReminderJobName       string        `env:"REMINDER_JOB_NAME" envDefault:"daily-payment-reminders"`
	ReminderAtTime        string        `env:"REMINDER_AT_TIME" envDefault:"09:00"`
	ReminderTimezone      string        `env:"REMINDER_TIMEZONE" envDefault:"America/Sao_Paulo"`
	ReminderMaxConcurrent int           `env:"REMINDER_MAX_CONCURRENT" envDefault:"8"`
	ReminderHTTPTimeout   time.Duration `env:"REMINDER_HTTP_TIMEOUT" envDefault:"30s"`
}

func main() {
	ctx := context.Background()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := platformlogging.NewLogger(platformlogging.Config{
		Component: "api-server",
		Level:     cfg.LogLevel,
	})
	if err != nil {
		log.Fatalf("init zap logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	_, firestoreClient, err := gcp.InitFirestore(ctx)
	if err != nil {
		logger.Fatal("init firestore", zap.Error(err))
	}
	defer firestoreClient.Close()

	automationsRepo := automationsrepo.NewFirestoreRepository(firestoreClient)
	automationsService := automationsservice.New(automationsRepo, logger)
	automationsHTTPHandler := automationshandler.New(automationsService, logger)

	companiesRepo := companiesrepo.NewFirestoreRepository(firestoreClient)
	companiesService := companiesservice.New(companiesRepo, logger)
	companiesHTTPHandler := companieshandler.New(companiesService, logger)

	reminderDispatcher := dispatcher.New(
		dispatcher.Config{
			WebhookURL:    cfg.ReminderWebhookURL,
			InstanceID:    cfg.ReminderInstanceID,
			JobName:       cfg.ReminderJobName,
			MaxConcurrent: cfg.ReminderMaxConcurrent,
		},
		companiesService,
		automationsRepo,
		&http.Client{Timeout: cfg.ReminderHTTPTimeout},
		logger.With(zap.String("component", "reminder-dispatcher")),
	)

	location, err := time.LoadLocation(cfg.ReminderTimezone)
	if err != nil {
		logger.Fatal("load reminder timezone", zap.String("tz", cfg.ReminderTimezone), zap.Error(err))
	}

	scheduler, err := schedule.NewScheduler(location, logger)
	if err != nil {
		logger.Fatal("init scheduler", zap.Error(err))
	}
	err = scheduler.RegisterDaily(cfg.ReminderJobName, cfg.ReminderAtTime, func(jobCtx context.Context) {
		jobCtx = requesttrace.IntoContext(jobCtx, requesttrace.Scheduled())
		if _, err := reminderDispatcher.Run(jobCtx, time.Now().In(location)); err != nil {
			// Enumeration failed before any company was reached; surface it
			// so the scheduler's own alerting picks it up.
			logger.Error("reminder run failed", zap.Error(err))
		}
	})
	if err != nil {
		logger.Fatal("register reminder job", zap.Error(err))
	}
	scheduler.Start()

	rootRouter := chi.NewRouter()

	rootRouter.Use(
		chimw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		chimw.Timeout(cfg.RequestTimeout),
		platformmiddleware.DefaultCORS(),
	)

	rootRouter.Use(platformlogging.RequestLogger(logger))

	rootRouter.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	rootRouter.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	apiRouter := chi.NewRouter()
	apiRouter.Use(platformmiddleware.RequestTrace)
	automationsHTTPHandler.Mount(apiRouter)
	companiesHTTPHandler.Mount(apiRouter)

	rootRouter.Mount("/api/v1", apiRouter)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      rootRouter,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	go func() {
		logger.Info("starting api server", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server listen failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	if err := scheduler.Shutdown(); err != nil {
		logger.Error("scheduler shutdown failed", zap.Error(err))
	}
}

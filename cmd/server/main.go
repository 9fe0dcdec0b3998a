// Package main is the entry point for the certflow API server.
//
// It loads configuration, connects to Postgres, wires the repositories,
// email and PDF adapters, and the certificate/email scheduling services,
// reconciles pending scheduled emails, starts the daily sweep, and serves
// the HTTP API until SIGINT/SIGTERM.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"certflow/config"
	"certflow/internal/adapters/certpdf"
	"certflow/internal/adapters/email"
	"certflow/internal/adapters/notify"
	httpdelivery "certflow/internal/delivery/http"
	"certflow/internal/delivery/http/controllers"
	"certflow/internal/delivery/http/middleware"
	"certflow/internal/repository/postgres"
	"certflow/internal/services"
)

const contextTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := config.NewLogger(cfg.Environment)
	logger.Info("certflow starting", "environment", cfg.Environment, "port", cfg.Port)

	db, err := sql.Open("postgres", cfg.DBUrl)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}

	// Repositories.
	eventRepo := postgres.NewEventRepository(db)
	participantRepo := postgres.NewParticipantRepository(db)
	templateRepo := postgres.NewCertificateTemplateRepository(db)
	emailTemplateRepo := postgres.NewEmailTemplateRepository(db)
	scheduledEmailRepo := postgres.NewScheduledEmailRepository(db)
	activityLogRepo := postgres.NewActivityLogRepository(db)

	// Adapters.
	mailer, err := email.NewMailer(email.MailerConfig{
		Provider:    cfg.Mailer.Provider,
		FromAddress: cfg.Mailer.FromAddress,
		FromName:    cfg.Mailer.FromName,
		SES: email.SESConfig{
			Region:             cfg.Mailer.SESRegion,
			AccessKeyID:        cfg.Mailer.SESAccessKeyID,
			SecretAccessKey:    cfg.Mailer.SESSecretAccessKey,
			InsecureSkipVerify: cfg.Mailer.InsecureSkipVerify,
		},
	})
	if err != nil {
		return fmt.Errorf("creating mailer: %w", err)
	}
	renderer := email.NewTemplateRenderer()
	generator := certpdf.NewGenerator(cfg.Scheduler.CertificateDir, "/certificates/")
	hub := notify.NewHub(logger)

	// Eligibility policy: one cutoff for every trigger path.
	cutoffHour, cutoffMinute, err := config.ParseClock(cfg.Scheduler.CertificateCutoff)
	if err != nil {
		return fmt.Errorf("parsing certificate cutoff: %w", err)
	}
	sweepHour, sweepMinute, err := config.ParseClock(cfg.Scheduler.SweepTime)
	if err != nil {
		return fmt.Errorf("parsing sweep time: %w", err)
	}
	loc, err := time.LoadLocation(cfg.Scheduler.SweepTimezone)
	if err != nil {
		return fmt.Errorf("loading sweep timezone: %w", err)
	}
	eligibility := services.NewEligibilityEvaluator(cutoffHour, cutoffMinute, loc)

	// Services.
	activity := services.NewActivityLogger(activityLogRepo, logger, nil)
	delivery := services.NewDeliveryService(participantRepo, mailer, renderer, logger, nil)
	certificates := services.NewCertificateService(
		eventRepo, participantRepo, templateRepo,
		generator, delivery, eligibility,
		activity, hub, logger, nil,
	)
	adhoc := services.NewAdhocScheduler(certificates, eligibility, logger, nil)
	defer adhoc.Stop()
	dispatcher := services.NewEmailDispatcher(
		scheduledEmailRepo, emailTemplateRepo, participantRepo, eventRepo,
		delivery, activity, hub, logger, nil,
	)
	eventService := services.NewEventService(
		eventRepo, participantRepo, certificates, adhoc,
		logger, contextTimeout, nil,
	)

	// Pending scheduled emails survive restarts through the database, not
	// the in-memory timers; re-arm them before accepting traffic.
	reconcileCtx, cancelReconcile := context.WithTimeout(context.Background(), 30*time.Second)
	rescheduled, err := dispatcher.ReconcileOnStartup(reconcileCtx)
	cancelReconcile()
	if err != nil {
		return fmt.Errorf("reconciling scheduled emails: %w", err)
	}
	logger.Info("startup reconciliation done", "rescheduled", rescheduled)

	sweep := services.NewDailySweep(
		certificates, eventRepo, eligibility,
		sweepHour, sweepMinute, loc, logger, nil,
	)
	sweep.Start()
	defer sweep.Stop()

	// HTTP delivery.
	eventController := controllers.NewEventController(logger, eventService, certificates)
	scheduledEmailController := controllers.NewScheduledEmailController(logger, scheduledEmailRepo, emailTemplateRepo, dispatcher)
	notificationController := controllers.NewNotificationController(logger, hub)

	mux := httpdelivery.NewRouter(eventController, scheduledEmailController, notificationController, cfg.Scheduler.CertificateDir)
	handler := middleware.CORS(cfg.Server.AllowedOrigins, middleware.LoggingMiddleware(logger, mux))

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

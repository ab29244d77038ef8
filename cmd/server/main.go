// Command server runs the interview scheduling API: the recruiter-facing
// scheduling link and calendar endpoints, the candidate-facing booking
// endpoints, and the hourly interview reminder sweep.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/rav4353/ayphen-scheduling/internal/calendar"
	"github.com/rav4353/ayphen-scheduling/internal/config"
	httpapi "github.com/rav4353/ayphen-scheduling/internal/http"
	"github.com/rav4353/ayphen-scheduling/internal/jobs"
	"github.com/rav4353/ayphen-scheduling/internal/notify"
	"github.com/rav4353/ayphen-scheduling/internal/observability"
	"github.com/rav4353/ayphen-scheduling/internal/repo"
	"github.com/rav4353/ayphen-scheduling/internal/services"
	"github.com/rav4353/ayphen-scheduling/internal/sysutil"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	// Logging
	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Tracing
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown failed")
		}
	}()

	// Storage
	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database failed")
	}
	if cfg.OTEL.Enabled {
		if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
			log.Warn().Err(err).Msg("gorm tracing plugin failed")
		}
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate failed")
	}

	// Notifications
	var email notify.EmailSender
	if cfg.SMTP.Host != "" {
		email = notify.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)
	}
	var sms notify.SMSSender
	if cfg.SMSWebhookURL != "" {
		sms = notify.NewWebhookSMSSender(cfg.SMSWebhookURL, cfg.ProviderTimeout)
	}

	// Services
	calSvc := &services.CalendarService{
		DB:      db,
		Google:  calendar.NewGoogleClient(cfg.ProviderTimeout),
		Outlook: calendar.NewOutlookClient(cfg.ProviderTimeout),
	}
	schedSvc := &services.SchedulingService{
		DB:            db,
		Calendars:     calSvc,
		Email:         email,
		LinkTTL:       time.Duration(cfg.LinkExpiryDays) * 24 * time.Hour,
		PublicBaseURL: cfg.PublicBaseURL,
	}
	reminderSvc := &services.ReminderService{
		DB:     db,
		Email:  email,
		SMS:    sms,
		Window: cfg.ReminderWindow,
	}

	// Reminder sweep
	sched, err := jobs.New(cfg.ReminderCron, reminderSvc, 5*time.Minute)
	if err != nil {
		log.Fatal().Err(err).Str("spec", cfg.ReminderCron).Msg("reminder schedule invalid")
	}
	sched.Start()
	defer sched.Stop()

	// HTTP
	r := gin.New()
	httpapi.RegisterRoutes(r, schedSvc, calSvc, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

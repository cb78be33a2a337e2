package main // Entry point package

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/traverum/booking-service/internal/booking"
	"github.com/traverum/booking-service/internal/config"
	"github.com/traverum/booking-service/internal/database"
	"github.com/traverum/booking-service/internal/embed"
	"github.com/traverum/booking-service/internal/handler"
	"github.com/traverum/booking-service/internal/lib/logger/sl"
	"github.com/traverum/booking-service/internal/metrics"
	"github.com/traverum/booking-service/internal/payment"
	"github.com/traverum/booking-service/internal/queue"
	"github.com/traverum/booking-service/internal/ratelimit"
	"github.com/traverum/booking-service/internal/recaptcha"
	"github.com/traverum/booking-service/internal/repository"
	"github.com/traverum/booking-service/internal/router"
	"github.com/traverum/booking-service/internal/settlement"
	"github.com/traverum/booking-service/internal/token"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	cfg := config.Load()
	log := setupLogger(cfg.Env)
	log.Info("starting booking service", slog.String("env", cfg.Env))

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Error("failed to connect to database", sl.Err(err))
		os.Exit(1)
	}
	defer db.Close()

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 30*time.Second)
	err = database.Migrate(migrateCtx, db)
	cancelMigrate()
	if err != nil {
		log.Error("failed to migrate schema", sl.Err(err))
		os.Exit(1)
	}

	// Redis is optional: without it the limiter counts in-process and the
	// response cache and token ledger are off.
	rdb := config.NewRedisClient()
	var counter ratelimit.Counter = ratelimit.NewMemoryCounter()
	if rdb != nil {
		defer rdb.Close()
		counter = ratelimit.NewRedisCounter(rdb)
	} else {
		log.Warn("redis unavailable, using in-memory rate limits")
	}

	m := metrics.New()
	tokens := token.New(cfg.TokenSecret)
	ledger := token.NewLedger(rdb, "tok")
	stripe := payment.NewStripe(cfg.Stripe)
	publisher := queue.NewPublisher(cfg.AMQPURL, log)
	catalog := repository.NewCatalog(db)
	payouts := repository.NewHotelPayoutRepo(db)

	settler := settlement.New(log, repository.NewSettlementRepo(db), payouts, stripe, m)
	bookings := booking.NewService(log, repository.NewReservationRepo(db), catalog, settler, stripe, publisher, tokens, m, booking.Options{
		ResponseWindow:  cfg.ResponseWindow,
		ActionTokenTTL:  cfg.ActionTokenTTL,
		PublicBaseURL:   cfg.PublicBaseURL,
		DefaultCurrency: cfg.Currency,
	})

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			attrs := []any{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("remote_ip", v.RemoteIP),
			}
			if v.Error != nil {
				log.Error("request", append(attrs, sl.Err(v.Error))...)
				return nil
			}
			log.Info("request", attrs...)
			return nil
		},
	}))

	router.RegisterRoutes(e, m)
	router.RegisterPublic(e, router.Handlers{
		Reservations: handler.NewReservationHandler(bookings, log),
		Actions:      handler.NewBookingActionHandler(bookings, tokens, ledger, m, log),
		Webhooks:     handler.NewWebhookHandler(bookings, stripe, log),
		Recaptcha:    handler.NewRecaptchaHandler(recaptcha.New(cfg.Recaptcha), log),
		Embed:        handler.NewEmbedHandler(embed.NewService(catalog), log),
	}, router.Deps{
		RateLimits: config.LoadRateLimitConfig(),
		Cache:      config.LoadCacheConfig(),
		Redis:      rdb,
		Counter:    counter,
		Metrics:    m,
		Log:        log,
	})
	router.RegisterPartner(e, handler.NewPartnerHandler(catalog, bookings, cfg.JWTSecret, cfg.AccessTTLMin, log), cfg.JWTSecret)
	router.RegisterAdmin(e, handler.NewHotelPayoutHandler(payouts, log), cfg.CronSecret)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	consumer := queue.NewSettlementConsumer(cfg.AMQPURL, bookings, log)
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("settlement consumer stopped", sl.Err(err))
		}
	}()

	addr := ":" + cfg.Port
	go func() {
		log.Info("listening", slog.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", sl.Err(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("stopping booking service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop server", sl.Err(err))
	}
	<-consumerDone
	log.Info("booking service stopped")
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envDev:
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	default:
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	return log
}

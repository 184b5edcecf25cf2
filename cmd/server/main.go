package main

import (
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/cinebook/cinebook/internal/booking"
	"github.com/cinebook/cinebook/internal/config"
	"github.com/cinebook/cinebook/internal/database"
	"github.com/cinebook/cinebook/internal/handler"
	"github.com/cinebook/cinebook/internal/mailer"
	"github.com/cinebook/cinebook/internal/metadata"
	"github.com/cinebook/cinebook/internal/middleware"
	"github.com/cinebook/cinebook/internal/queue"
	"github.com/cinebook/cinebook/internal/repository"
	"github.com/cinebook/cinebook/internal/router"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	log := logrus.New()
	if cfg.Env == "prod" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	db, err := database.Open(cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer func() { _ = db.Close() }()

	movieRepo := repository.NewMovieRepo(db)
	showRepo := repository.NewShowRepo(db)
	seatRepo := repository.NewSeatRepo(db)
	bookingRepo := repository.NewBookingRepo(db)

	broker, err := queue.NewBroker(cfg.AMQPURL, cfg.HoldTTL, log)
	if err != nil {
		// Without the broker no booking can be released on timeout, so
		// refusing to start is safer than silently stranding seats.
		log.WithError(err).Fatal("failed to declare rabbitmq topology")
	}

	ledger := booking.NewLedger(db, showRepo, seatRepo, bookingRepo, broker, log)

	var sender mailer.Sender
	if cfg.MailServiceURL != "" {
		sender = mailer.NewHTTPSender(cfg.MailServiceURL, cfg.MailFrom)
	} else {
		sender = &mailer.LogSender{Log: log}
	}

	releaseConsumer := &queue.ReleaseConsumer{URL: cfg.AMQPURL, Expirer: ledger, Log: log}
	go func() {
		if err := releaseConsumer.Run(); err != nil {
			log.WithError(err).Error("release consumer stopped")
		}
	}()
	notifyConsumer := &queue.NotifyConsumer{URL: cfg.AMQPURL, Sender: sender, To: cfg.NotifyEmail, Log: log}
	go func() {
		if err := notifyConsumer.Run(); err != nil {
			log.WithError(err).Error("notify consumer stopped")
		}
	}()

	md := metadata.NewClient(cfg.MetadataBaseURL, cfg.MetadataAPIKey)
	showHandler := handler.NewShowHandler(movieRepo, showRepo, seatRepo, md, broker, log)
	bookingHandler := handler.NewBookingHandler(ledger, bookingRepo, cfg.PaymentSecret)

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn("redis unavailable; response cache and rate limiting disabled")
	}
	cacheMW := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)
	ratelimitMW := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	router.RegisterRoutes(e)
	router.RegisterShows(e, showHandler, cfg.JWTSecret, cacheMW, ratelimitMW)
	router.RegisterBookings(e, bookingHandler, cfg.JWTSecret, ratelimitMW)

	addr := ":" + cfg.Port
	log.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env}).Info("listening")
	if err := e.Start(addr); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

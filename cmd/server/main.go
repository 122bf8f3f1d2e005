package main // Entry point package

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/movie-reservation/internal/auth"
	"github.com/iliyamo/movie-reservation/internal/cache"
	"github.com/iliyamo/movie-reservation/internal/config"
	"github.com/iliyamo/movie-reservation/internal/database"
	"github.com/iliyamo/movie-reservation/internal/handler"
	"github.com/iliyamo/movie-reservation/internal/queue"
	"github.com/iliyamo/movie-reservation/internal/repository"
	"github.com/iliyamo/movie-reservation/internal/router"
	"github.com/iliyamo/movie-reservation/internal/ws"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments set the environment
	cfg := config.Load()

	var logger *zap.Logger
	var err error
	if cfg.Env == "prod" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.Fatal("database open failed", zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	rdb := config.NewRedisClient()
	if rdb == nil {
		logger.Warn("redis unavailable; rate limiting and seat map cache disabled")
	}

	ledger := repository.NewReservationRepo(db)
	showtimes := repository.NewShowtimeRepo(db)
	verifier := auth.NewVerifier(cfg.JWTSecret)
	seatMaps := cache.NewSeatMap(rdb, cfg.SeatMapTTL, logger)

	hub := ws.NewHub(cfg.PingInterval, cfg.SweepInterval, logger)
	hub.Start()

	publisher := queue.NewPublisher(cfg.AMQPURL, logger)
	defer publisher.Close()

	// Both workers share one dispatcher; each consumer offers every
	// envelope to both and the discriminator decides ownership.
	dispatcher := queue.NewDispatcher(logger,
		queue.NewConfirmationWorker(ledger, hub, seatMaps, logger),
		queue.NewCancellationWorker(ledger, hub, seatMaps, logger),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	for _, q := range []string{queue.QueueConfirmReply, queue.QueueCancelReply} {
		consumer := queue.NewConsumer(cfg.AMQPURL, q, dispatcher, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			consumer.Run(ctx)
		}()
	}

	e := echo.New()
	e.HideBanner = true
	res := handler.NewReservationHandler(ledger, showtimes, publisher, seatMaps, logger)
	wsH := handler.NewWSHandler(hub, verifier, logger)
	router.Register(e, res, wsH, verifier, config.LoadRateLimitConfig(), rdb)

	go func() {
		addr := ":" + cfg.Port
		logger.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server start failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", zap.Error(err))
	}
	hub.Close() // force-close every live connection, cancel the sweep
	wg.Wait()   // consumers exit once their connections drop
}

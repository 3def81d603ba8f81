package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	redisclient "github.com/redis/go-redis/v9"
	rabbitadapter "github.com/robertarktes/seat-reservation-service/internal/adapters/rabbit"
	redisadapter "github.com/robertarktes/seat-reservation-service/internal/adapters/redis"
	"github.com/robertarktes/seat-reservation-service/internal/config"
	httphandler "github.com/robertarktes/seat-reservation-service/internal/http"
	"github.com/robertarktes/seat-reservation-service/internal/idempotency"
	"github.com/robertarktes/seat-reservation-service/internal/observability"
	"github.com/robertarktes/seat-reservation-service/internal/rateLimit"
	"github.com/robertarktes/seat-reservation-service/internal/registry"
	"github.com/robertarktes/seat-reservation-service/internal/sweeper"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOtel, err := observability.SetupOTel(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger()

	reg := registry.New(cfg.SeatRows, cfg.SeatsPerRow, cfg.LockTTL)

	var (
		redisCache *redisadapter.Cache
		idemp      *idempotency.Idempotency
		rl         *rateLimit.RateLimiter
	)
	if cfg.RedisAddr != "" {
		redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		redisCache = redisadapter.NewCache(redisClient)
		idemp = idempotency.NewIdempotency(redisadapter.NewIdempotency(redisClient), time.Hour)
		rl = rateLimit.NewRateLimiter(redisCache)
	} else {
		idemp = idempotency.NewIdempotency(nil, 0)
	}

	var rabbitPub *rabbitadapter.Publisher
	if cfg.RabbitURL != "" {
		rabbitConn, err := amqp.Dial(cfg.RabbitURL)
		if err != nil {
			log.Fatalf("failed to connect to rabbitmq: %v", err)
		}
		defer rabbitConn.Close()
		rabbitPub, err = rabbitadapter.NewPublisher(rabbitConn)
		if err != nil {
			log.Fatalf("failed to create publisher: %v", err)
		}
	}

	var sweepPub sweeper.EventPublisher
	if rabbitPub != nil {
		sweepPub = rabbitPub
	}
	sw := sweeper.New(reg, sweepPub, logger)
	reg.OnExpired(sw.NotifyExpired)

	ready := func(r *http.Request) error {
		if redisCache != nil {
			return redisCache.Ping(r.Context())
		}
		return nil
	}

	handlers := httphandler.NewHandlers(cfg, reg, idemp, rabbitPub, logger, ready)
	router := httphandler.SetupRouter(handlers, logger, rl)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.WithField("addr", cfg.HTTPAddr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	if cfg.SweepInterval > 0 {
		g.Go(func() error {
			sw.Run(gctx, cfg.SweepInterval)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("server error: %v", err)
	}
	logger.Info("server exiting")
}

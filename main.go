package main

import (
	"context"
	"log"
	"time"

	"github.com/labstack/echo/v4"
	echoMw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/stagefront/seatpack-sync/config"
	"github.com/stagefront/seatpack-sync/internal/consumer"
	"github.com/stagefront/seatpack-sync/internal/handler"
	"github.com/stagefront/seatpack-sync/internal/lock"
	"github.com/stagefront/seatpack-sync/internal/middleware"
	"github.com/stagefront/seatpack-sync/internal/notify"
	"github.com/stagefront/seatpack-sync/internal/pos"
	"github.com/stagefront/seatpack-sync/internal/repository"
	"github.com/stagefront/seatpack-sync/internal/service"
	"github.com/stagefront/seatpack-sync/pkg/database"
	"github.com/stagefront/seatpack-sync/pkg/rabbitmq"
)

func main() {
	cfg := config.Load()

	db := database.NewPostgresDB(cfg.DSN())

	// Repositories
	packRepo := repository.NewSeatPackRepository(db)
	perfRepo := repository.NewPerformanceRepository(db)

	// Per-performance lock: optional, degrades to no locking without Redis.
	var locker lock.PerformanceLocker = lock.NopLocker{}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Printf("redis unreachable at %s, running without performance locks: %v", cfg.RedisAddr, err)
		} else {
			locker = lock.NewRedisLocker(rdb, cfg.LockTTL)
		}
	}

	// Notifications publisher: optional, sync passes run without it.
	var notifier notify.Notifier = notify.NopNotifier{}
	publisher, err := rabbitmq.NewPublisher(cfg.RabbitURL)
	if err != nil {
		log.Printf("notifications disabled, publisher unavailable: %v", err)
	} else {
		defer publisher.Close()
		notifier = notify.NewAMQPNotifier(publisher)
	}

	// Core pipeline
	posClient := pos.NewHTTPClient(cfg.POSBaseURL, cfg.POSAuthToken, cfg.POSTimeout)
	executor := service.NewSyncExecutor(packRepo, service.SyncExecutorConfig{SourcePrefix: cfg.SourcePrefix})
	pusher := service.NewInventoryPusher(posClient, packRepo, perfRepo)
	workflow := service.NewWorkflowManager(packRepo, perfRepo, executor, pusher, notifier, locker)

	// RabbitMQ consumer: scrape-completed messages drive reconciliation.
	mqConsumer, err := rabbitmq.NewConsumer(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to RabbitMQ: %v", err)
	}
	defer mqConsumer.Close()

	msgs, err := mqConsumer.Consume()
	if err != nil {
		log.Fatalf("failed to start consuming: %v", err)
	}

	scrapeConsumer := consumer.NewScrapeConsumer(perfRepo, workflow, 0)
	scrapeConsumer.Start(msgs)

	// Periodic sweep: repair packs left pending or owed by failed POS calls.
	go runSweepLoop(packRepo, pusher, cfg.SweepInterval)

	// Echo
	e := echo.New()
	e.HTTPErrorHandler = middleware.ErrorHandler
	e.Use(echoMw.RequestLoggerWithConfig(echoMw.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v echoMw.RequestLoggerValues) error {
			log.Printf("%s %s %d", v.Method, v.URI, v.Status)
			return nil
		},
	}))
	e.Use(echoMw.Recover())

	handler.NewStatusHandler(perfRepo, packRepo, pusher).RegisterRoutes(e)

	log.Printf("Seat Pack Sync starting on :%s", cfg.ServerPort)
	e.Logger.Fatal(e.Start(":" + cfg.ServerPort))
}

// runSweepLoop periodically sweeps every performance that still has
// unsettled vendor state: pending pushes or owed deletes.
func runSweepLoop(packRepo repository.SeatPackRepository, pusher service.InventoryPusher, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), interval)

		performanceIDs, err := packRepo.FindPerformancesWithUnsettledPOS(ctx)
		if err != nil {
			log.Printf("[Sweep] failed to list performances: %v", err)
			cancel()
			continue
		}
		for _, id := range performanceIDs {
			if _, err := pusher.SyncPendingPacks(ctx, id); err != nil {
				log.Printf("[Sweep] sweep failed for performance %s: %v", id, err)
			}
		}
		cancel()
	}
}

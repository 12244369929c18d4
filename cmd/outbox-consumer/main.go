package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/teamsheet/platform/internal/guard"
	"github.com/teamsheet/platform/internal/infra"
	"github.com/teamsheet/platform/internal/notify"
	"github.com/teamsheet/platform/internal/repository"
)

const relayGroup = "teamsheet-announcements"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("outbox consumer failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pool, err := infra.NewPostgresPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	logger.Info("outbox-consumer connected to postgres")

	producer := infra.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaEnabled, logger)
	defer producer.Close()

	poller := infra.NewOutboxPoller(pool, repository.NewOutboxRepository(), producer, cfg.OutboxPollInterval, cfg.OutboxBatchSize, logger)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		poller.Run(ctx)
	}()

	// Match announcements read back what the poller published.
	consumer := infra.NewKafkaConsumer(cfg.KafkaBrokers, infra.TopicPrefix+"match", relayGroup, cfg.KafkaEnabled, logger)
	defer consumer.Close()
	if consumer.Enabled() {
		relay := notify.NewRelay(consumer, announcer(cfg, logger), logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := relay.Run(ctx); err != nil {
				logger.Error("announcement relay stopped", "error", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("outbox-consumer shutting down")
	wg.Wait()
	return nil
}

func announcer(cfg *infra.Config, logger *slog.Logger) notify.Notifier {
	if cfg.TelegramToken == "" {
		return notify.NewLogNotifier(logger)
	}
	n, err := notify.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID, guard.NewCircuitBreaker(3, 5*time.Minute), logger)
	if err != nil {
		logger.Warn("telegram disabled", "error", err)
		return notify.NewLogNotifier(logger)
	}
	return n
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/mrrahbarnia/Backend-Form-Generator/internal/config"
	"github.com/mrrahbarnia/Backend-Form-Generator/internal/mq"
	"github.com/mrrahbarnia/Backend-Form-Generator/internal/observability"
	"github.com/mrrahbarnia/Backend-Form-Generator/internal/reconcile"
	"github.com/mrrahbarnia/Backend-Form-Generator/internal/store"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, err := observability.NewLogger(fmt.Sprintf("%s-reconciler", cfg.ServiceName), config.IsEnvSet("DEBUG"))
	if err != nil {
		log.Fatalf("reconciler: failed to build logger: %v", err)
	}
	defer logger.Sync()

	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	gateway, err := store.ConnectMongo(connectCtx, cfg.MongoURI, cfg.MongoDatabase, store.Production)
	cancel()
	if err != nil {
		logger.Fatalw("failed to connect to mongodb", "uri", cfg.MongoURI, "error", err)
	}
	defer gateway.Close(context.Background())

	worker := reconcile.New(gateway, logger)

	if brokers := cfg.KafkaBrokerList(); len(brokers) > 0 {
		consumer, err := mq.NewConsumer(mq.ConsumerConfig{
			Brokers:  brokers,
			Topic:    cfg.KafkaTopic,
			GroupID:  cfg.KafkaGroupID,
			ClientID: fmt.Sprintf("%s-reconciler", cfg.ServiceName),
		}, worker.Handler())
		if err != nil {
			logger.Fatalw("failed to create kafka consumer", "error", err)
		}
		defer consumer.Close()

		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Errorw("event consumer stopped", "error", err)
			}
		}()
	} else {
		logger.Warnw("kafka brokers not configured, running sweeps only")
	}

	logger.Infow("reconciler running", "interval", cfg.ReconcileInterval)
	if err := worker.Run(ctx, cfg.ReconcileInterval); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalw("reconciler stopped", "error", err)
	}
	logger.Infow("reconciler stopped")
}

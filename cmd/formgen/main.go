package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/mrrahbarnia/Backend-Form-Generator/internal/catalog"
	"github.com/mrrahbarnia/Backend-Form-Generator/internal/config"
	"github.com/mrrahbarnia/Backend-Form-Generator/internal/events"
	"github.com/mrrahbarnia/Backend-Form-Generator/internal/groups"
	"github.com/mrrahbarnia/Backend-Form-Generator/internal/httpx"
	"github.com/mrrahbarnia/Backend-Form-Generator/internal/icons"
	"github.com/mrrahbarnia/Backend-Form-Generator/internal/mq"
	"github.com/mrrahbarnia/Backend-Form-Generator/internal/observability"
	"github.com/mrrahbarnia/Backend-Form-Generator/internal/registry"
	"github.com/mrrahbarnia/Backend-Form-Generator/internal/store"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, err := observability.NewLogger(cfg.ServiceName, config.IsEnvSet("DEBUG"))
	if err != nil {
		log.Fatalf("formgen: failed to build logger: %v", err)
	}
	defer logger.Sync()

	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	gateway, err := store.ConnectMongo(connectCtx, cfg.MongoURI, cfg.MongoDatabase, store.Production)
	cancel()
	if err != nil {
		logger.Fatalw("failed to connect to mongodb", "uri", cfg.MongoURI, "error", err)
	}
	defer gateway.Close(context.Background())

	if err := gateway.EnsureCatalogIndexes(ctx); err != nil {
		logger.Fatalw("failed to ensure catalog indexes", "error", err)
	}

	var producer *mq.Producer
	if brokers := cfg.KafkaBrokerList(); len(brokers) > 0 {
		producer, err = mq.NewProducer(mq.ProducerConfig{
			Brokers:  brokers,
			Topic:    cfg.KafkaTopic,
			ClientID: fmt.Sprintf("%s-api", cfg.ServiceName),
		})
		if err != nil {
			logger.Fatalw("failed to create kafka producer", "error", err)
		}
		defer producer.Close()
	} else {
		logger.Warnw("kafka brokers not configured, lifecycle events disabled")
	}
	publisher := events.NewPublisher(producer)

	iconStore := icons.NewStore(cfg.IconDir, cfg.IconFormats, cfg.MaxIconSizeMB, cfg.MaxIconWidth, cfg.MaxIconHeight)

	reg := registry.New(gateway, logger)
	idx := groups.New(gateway, publisher, logger)
	cat := catalog.New(gateway, reg, idx, iconStore, publisher, logger)

	server := httpx.New()
	server.Router.Use(httpx.WithUser)
	catalog.RegisterRoutes(server.Router, cat)
	groups.RegisterRoutes(server.Router, idx)
	registry.RegisterRoutes(server.Router, reg)
	observability.RegisterMetricsEndpoint(server.Router)

	addr := fmt.Sprintf(":%s", cfg.HTTPPort)
	logger.Infow("formgen api listening", "addr", addr)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(addr)
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Fatalw("formgen api stopped", "error", err)
		}
	case <-ctx.Done():
		logger.Infow("shutting down")
		if err := server.Shutdown(context.Background()); err != nil {
			logger.Errorw("shutdown failed", "error", err)
		}
	}
}

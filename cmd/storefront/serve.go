package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/cybershop/internal/cart"
	"github.com/fjod/cybershop/internal/chatbot"
	"github.com/fjod/cybershop/internal/checkout"
	storehttp "github.com/fjod/cybershop/internal/http"
	"github.com/fjod/cybershop/internal/payment"
	"github.com/fjod/cybershop/internal/pricing"
	"github.com/fjod/cybershop/internal/publisher"
	"github.com/fjod/cybershop/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, outbox publisher and cart cleanup consumer",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func serve(ctx context.Context) error {
	store, err := repository.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.RunMigrations(); err != nil {
		return err
	}
	logger.Info("database ready", zap.String("driver", cfg.Database.Driver))

	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	mongoDB, err := cart.ConnectMongoDB(connectCtx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		return err
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoDB.Client().Disconnect(disconnectCtx)
	}()
	cartRepo := cart.NewMongoRepository(mongoDB)
	if err := cartRepo.CreateIndexes(connectCtx); err != nil {
		return err
	}
	transcripts := chatbot.NewMongoTranscripts(mongoDB)
	if err := transcripts.CreateIndexes(connectCtx); err != nil {
		return err
	}
	logger.Info("connected to MongoDB", zap.String("database", cfg.Mongo.Database))

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(connectCtx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}

	taxRate, err := cfg.TaxRate()
	if err != nil {
		return err
	}
	pricer, err := pricing.NewAggregator(taxRate)
	if err != nil {
		return err
	}

	cartSvc := cart.NewService(cartRepo, cart.NewRedisCache(redisClient), store, pricer, logger.Named("cart"))
	payments := payment.NewClient(payment.Config{
		URL:         cfg.Payment.GatewayURL,
		Timeout:     cfg.Payment.Timeout,
		MaxFailures: cfg.Payment.BreakerFailures,
		OpenTimeout: cfg.Payment.BreakerOpenDelay,
	}, logger.Named("payment"))
	checkoutSvc := checkout.NewService(store, cartSvc, store, payments, cfg.Pricing.Currency, logger.Named("checkout"))

	var backend chatbot.Backend
	if cfg.Chatbot.BackendURL != "" {
		backend = chatbot.NewHTTPBackend(cfg.Chatbot.BackendURL, cfg.Chatbot.Timeout)
	}
	bot := chatbot.NewBot(backend, transcripts, logger.Named("chatbot"))

	router := storehttp.NewRouter(storehttp.Deps{
		Catalog:  store,
		Carts:    cartSvc,
		Checkout: checkoutSvc,
		Orders:   store,
		Users:    store,
		Content:  store,
		Chat:     bot,
		Health:   store,
		Payments: payments,
	}, storehttp.Options{
		RequestTimeout: cfg.HTTP.RequestTimeout,
		MaxBodyBytes:   cfg.HTTP.MaxRequestBodySize,
	}, logger.Named("http"))

	srv := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.HTTP.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	if len(cfg.Kafka.Brokers) > 0 {
		pub := publisher.NewKafkaPublisher(cfg.Kafka.Topic, cfg.Kafka.Brokers...)
		defer pub.Close()
		poller := publisher.NewOutboxPoller(store, pub, publisher.Options{
			PollInterval:    cfg.Kafka.PollInterval,
			CleanupInterval: cfg.Kafka.CleanupInterval,
			Retention:       cfg.Kafka.Retention,
			BatchSize:       cfg.Kafka.BatchSize,
		}, logger.Named("outbox"))

		consumer := cart.NewOrderConsumer(cartSvc,
			cart.NewKafkaReader(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID),
			logger.Named("cart-consumer"))
		defer consumer.Close()

		g.Go(func() error {
			poller.Run(gctx)
			return nil
		})
		g.Go(func() error {
			consumer.Run(gctx)
			return nil
		})
	} else {
		logger.Warn("no kafka brokers configured, outbox events will not be published")
	}

	g.Go(func() error {
		logger.Info("storefront listening", zap.String("port", cfg.HTTP.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	err = g.Wait()
	logger.Info("server exited")
	return err
}

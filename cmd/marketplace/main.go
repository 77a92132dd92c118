package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sakashimaa/go-marketplace/internal/repository"
	"github.com/sakashimaa/go-marketplace/internal/service"
	transport "github.com/sakashimaa/go-marketplace/internal/transport/http"
	"github.com/sakashimaa/go-marketplace/internal/transport/http/handler"
	"github.com/sakashimaa/go-marketplace/pkg/config"
	"github.com/sakashimaa/go-marketplace/pkg/db"
	"github.com/sakashimaa/go-marketplace/pkg/kafka"
	"github.com/sakashimaa/go-marketplace/pkg/mylogger"
	outboxRepository "github.com/sakashimaa/go-marketplace/pkg/outbox/repository"
	"github.com/sakashimaa/go-marketplace/pkg/outbox/worker"
	"github.com/sakashimaa/go-marketplace/pkg/utils"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.MustLoad()

	tp, err := utils.InitTracer(ctx, "marketplace")
	if err != nil {
		log.Fatalf("failed to init tracer: %v", err)
	}

	logger, err := config.NewLogger(cfg.Env, cfg.Logger)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	pool, err := db.NewPostgresDB(cfg.Postgres.URL)
	if err != nil {
		log.Fatalf("failed to create pool: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})

	transactor := db.NewPgxTransactor(pool, logger)

	customerStore := repository.NewCustomerStore(pool, logger)
	productStore := repository.NewProductStore(pool, logger)
	orderStore := repository.NewOrderStore(pool, logger)
	outboxStore := outboxRepository.NewOutboxStore(pool, logger)

	customerService := service.NewCustomerService(customerStore, logger)
	productService := service.NewCachedProductService(
		service.NewProductService(productStore, logger),
		redisClient,
		cfg.Redis.CacheTTL,
	)
	orderService := service.NewOrderService(
		transactor,
		customerStore,
		productStore,
		orderStore,
		outboxStore,
		cfg.Kafka.Topic,
		logger,
	)

	kafkaProducer, err := kafka.NewProducer(cfg.Kafka.Brokers)
	if err != nil {
		log.Fatalf("error creating kafka producer: %v", err)
	}
	defer kafkaProducer.Close()

	outboxProcessor := worker.NewProcessor(transactor, outboxStore, kafkaProducer, logger)
	go outboxProcessor.Start(ctx)

	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.HTTP.Timeout,
		WriteTimeout: cfg.HTTP.Timeout,
	})

	transport.RegisterRoutes(app, &transport.Handlers{
		Customer: handler.NewCustomerHandler(customerService, logger),
		Product:  handler.NewProductHandler(productService, logger),
		Order:    handler.NewOrderHandler(orderService, logger),
	})

	go func() {
		mylogger.Info(ctx, logger, "HTTP server listening", zap.String("port", cfg.HTTP.Port))
		if err := app.Listen(cfg.HTTP.Port); err != nil {
			log.Fatalf("error serving http: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, exit := context.WithTimeout(context.Background(), time.Second*5)
	defer exit()

	mylogger.Info(shutdownCtx, logger, "Shutting down marketplace server")

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		mylogger.Warn(shutdownCtx, logger, "Failed to shut down http server", zap.Error(err))
	}

	if err := tp.Shutdown(shutdownCtx); err != nil {
		mylogger.Warn(shutdownCtx, logger, "Failed to shut down telemetry", zap.Error(err))
	}

	if err := redisClient.Close(); err != nil {
		mylogger.Warn(shutdownCtx, logger, "Failed to close redis client", zap.Error(err))
	}

	pool.Close()
}

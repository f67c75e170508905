package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/akylbek/payment-system/checkout-orchestrator/internal/api"
	"github.com/akylbek/payment-system/checkout-orchestrator/internal/auth"
	"github.com/akylbek/payment-system/checkout-orchestrator/internal/backend"
	"github.com/akylbek/payment-system/checkout-orchestrator/internal/config"
	"github.com/akylbek/payment-system/checkout-orchestrator/internal/lock"
	"github.com/akylbek/payment-system/checkout-orchestrator/internal/messaging"
	"github.com/akylbek/payment-system/checkout-orchestrator/internal/repository"
	"github.com/akylbek/payment-system/checkout-orchestrator/internal/service"
	"github.com/akylbek/payment-system/checkout-orchestrator/internal/telemetry"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize telemetry
	if err := telemetry.InitTelemetry(api.ServiceName, cfg.JaegerEndpoint); err != nil {
		panic(fmt.Sprintf("Failed to initialize telemetry: %v", err))
	}
	defer telemetry.Shutdown(context.Background())

	telemetry.Logger.Info("Starting Checkout Orchestrator")

	// Connect to PostgreSQL
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		telemetry.Logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Initialize repository
	repo := repository.NewAttemptRepository(db)
	if err := repo.InitDB(); err != nil {
		telemetry.Logger.Fatal("Failed to initialize database", zap.Error(err))
	}

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisURL,
	})
	defer redisClient.Close()

	// Connect to NATS
	nc, err := nats.Connect(cfg.NatsURL)
	if err != nil {
		telemetry.Logger.Fatal("Failed to connect to NATS", zap.Error(err))
	}
	defer nc.Close()

	// Connect to Kafka
	kafkaWriter := messaging.NewStateWriter(cfg.KafkaBrokers)
	defer kafkaWriter.Close()

	// Storefront backend; every call carries the shopper's own token
	client := backend.New(cfg.BackendURL, auth.ContextTokenProvider{}, cfg.BackendTimeout,
		backend.WithCurrency(cfg.Currency),
	)

	orchestrator := service.NewOrchestrator(service.Dependencies{
		Carts:    client,
		Orders:   client,
		Payments: client,
		Repo:     repo,
		Events:   messaging.NewKafkaPublisher(kafkaWriter),
		Notifier: messaging.NewNATSNotifier(nc),
		Lock:     lock.NewRedisLock(redisClient),
	}, cfg.Polling, cfg.LockTTL, service.WithSessionTTL(cfg.SessionTTL))

	r := api.NewRouter(orchestrator, repo, cfg.LoginURL)

	// Setup HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	// Start server in goroutine
	go func() {
		telemetry.Logger.Info("Checkout Orchestrator starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			telemetry.Logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// gRPC health endpoint
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		telemetry.Logger.Fatal("Failed to listen for gRPC", zap.Error(err))
	}
	grpcServer, healthServer := api.NewGRPCServer()
	go func() {
		telemetry.Logger.Info("gRPC health server starting", zap.String("port", cfg.GRPCPort))
		if err := grpcServer.Serve(lis); err != nil {
			telemetry.Logger.Error("gRPC server stopped", zap.Error(err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	telemetry.Logger.Info("Shutting down server...")
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		telemetry.Logger.Error("Server forced to shutdown", zap.Error(err))
	}
	orchestrator.Shutdown()
	grpcServer.GracefulStop()

	telemetry.Logger.Info("Server exited")
}

package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/streetgottalent/vote-payments/internal/api"
	"github.com/streetgottalent/vote-payments/internal/config"
	"github.com/streetgottalent/vote-payments/internal/handlers"
	"github.com/streetgottalent/vote-payments/internal/payment"
	"github.com/streetgottalent/vote-payments/internal/provider"
	"github.com/streetgottalent/vote-payments/internal/repository"
	"github.com/streetgottalent/vote-payments/internal/service"
	"github.com/streetgottalent/vote-payments/internal/telemetry"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize telemetry
	if err := telemetry.InitTelemetry("vote-payments"); err != nil {
		panic(fmt.Sprintf("Failed to initialize telemetry: %v", err))
	}
	defer telemetry.Shutdown(context.Background())

	telemetry.Logger.Info("Starting Vote Payments service")

	// Connect to PostgreSQL
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		telemetry.Logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := repository.InitDB(db); err != nil {
		telemetry.Logger.Fatal("Failed to initialize database", zap.Error(err))
	}

	// Repositories
	ledger := repository.NewPaymentLedgerRepository(db)
	contestants := repository.NewContestantRepository(db)
	streetfoods := repository.NewStreetfoodRepository(db)
	seasons := repository.NewSeasonRepository(db)
	donations := repository.NewDonationRepository(db)
	adminTokens := repository.NewAdminTokenRepository(db)

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisURL,
	})
	locker := repository.NewRedisReferenceLocker(redisClient)

	// Connect to NATS
	nc, err := nats.Connect(cfg.NatsURL)
	if err != nil {
		telemetry.Logger.Fatal("Failed to connect to NATS", zap.Error(err))
	}
	defer nc.Close()

	// Connect to Kafka
	kafkaWriter := &kafka.Writer{
		Addr:     kafka.TCP(cfg.KafkaBrokers),
		Topic:    "payments.audit",
		Balancer: &kafka.LeastBytes{},
	}
	defer kafkaWriter.Close()

	audit := service.NewKafkaAuditPublisher(kafkaWriter)
	tally := service.NewNatsTallyPublisher(nc)

	// Payment provider and workflow services
	paystack := provider.NewPaystackClient(cfg.PaystackBaseURL, cfg.PaystackSecret)
	initiator := payment.NewInitiator(paystack)
	quoter := service.NewQuoter(streetfoods, seasons, cfg.DonationMinimums)
	verifier := service.NewVerifier(paystack, ledger, locker, quoter, audit)
	effects := service.NewEffects(contestants, streetfoods, donations, locker, audit, tally)
	orchestrator := service.NewOrchestrator(initiator, verifier, effects, quoter, ledger, contestants, seasons)

	// Handlers and router
	workflowHandler := handlers.NewWorkflowHandler(orchestrator)
	paymentHandler := handlers.NewPaymentHandler(orchestrator, initiator, ledger)
	catalogHandler := handlers.NewCatalogHandler(contestants, streetfoods, seasons)
	adminHandler := handlers.NewAdminHandler(adminTokens, streetfoods, contestants, seasons)

	r := api.NewRouter(workflowHandler, paymentHandler, catalogHandler, adminHandler, adminTokens)

	// Setup HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	// Start server in goroutine
	go func() {
		telemetry.Logger.Info("Vote Payments service starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			telemetry.Logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	telemetry.Logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		telemetry.Logger.Error("Server forced to shutdown", zap.Error(err))
	}

	telemetry.Logger.Info("Server exited")
}

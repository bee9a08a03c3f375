package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/autoelite-platform/procurement-service/internal/application"
	mongoRepo "github.com/autoelite-platform/procurement-service/internal/infrastructure/mongodb"
	"github.com/autoelite-platform/procurement-service/pkg/cloudevents"
	"github.com/autoelite-platform/procurement-service/pkg/kafka"
	"github.com/autoelite-platform/procurement-service/pkg/logging"
	"github.com/autoelite-platform/procurement-service/pkg/metrics"
	"github.com/autoelite-platform/procurement-service/pkg/mongodb"
)

const serviceName = "procurement-stock-monitor"

// Standalone stock monitoring daemon. Scans the part catalog on a fixed
// interval and publishes low stock alerts, with a per-part cooldown so
// overlapping deployments do not double-alert.
func main() {
	logConfig := logging.DefaultConfig(serviceName)
	logConfig.Level = logging.LogLevel(getEnv("LOG_LEVEL", "info"))
	logger := logging.New(logConfig)
	logger.SetDefault()

	logger.Info("Starting stock monitor")

	config := loadConfig()
	ctx := context.Background()

	metricsConfig := metrics.DefaultConfig(serviceName)
	m := metrics.New(metricsConfig)

	// The daemon has no request path to shed load on, so both Mongo and
	// Kafka go through circuit breakers
	mongoClient, err := mongodb.NewProductionClient(ctx, config.MongoDB, m, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to MongoDB")
		os.Exit(1)
	}
	defer mongoClient.Close(ctx)
	logger.Info("Connected to MongoDB", "database", config.MongoDB.Database)

	producer := kafka.NewProductionProducer(config.Kafka, m, logger)
	defer producer.Close()
	logger.Info("Kafka producer initialized", "brokers", config.Kafka.Brokers)

	eventFactory := cloudevents.NewEventFactory(cloudevents.SourceStockMonitor)

	db := mongoClient.Database()
	partRepo := mongoRepo.NewPartRepository(db, eventFactory)
	alertRepo := mongoRepo.NewAlertStateRepository(db)

	monitor := application.NewStockMonitor(
		partRepo,
		alertRepo,
		producer,
		eventFactory,
		logger,
		m,
		config.AlertCooldown,
	)

	scheduler := application.NewScheduler(monitor, config.ScanInterval, logger)
	scheduler.Start(ctx)
	logger.Info("Scheduler started", "interval", config.ScanInterval, "cooldown", config.AlertCooldown)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down stock monitor...")

	scheduler.Stop()
	logger.Info("Stock monitor stopped")
}

// Config holds daemon configuration
type Config struct {
	MongoDB       *mongodb.Config
	Kafka         *kafka.Config
	ScanInterval  time.Duration
	AlertCooldown time.Duration
}

func loadConfig() *Config {
	interval := application.DefaultScanInterval
	if raw := os.Getenv("SCAN_INTERVAL"); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil && parsed > 0 {
			interval = parsed
		}
	}

	cooldown := application.DefaultCooldown
	if raw := os.Getenv("ALERT_COOLDOWN"); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil && parsed > 0 {
			cooldown = parsed
		}
	}

	return &Config{
		MongoDB: &mongodb.Config{
			URI:            getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database:       getEnv("MONGODB_DATABASE", "procurement_db"),
			ConnectTimeout: 10 * time.Second,
			MaxPoolSize:    20,
			MinPoolSize:    2,
		},
		Kafka: &kafka.Config{
			Brokers:       []string{getEnv("KAFKA_BROKERS", "localhost:9092")},
			ConsumerGroup: serviceName,
			ClientID:      serviceName,
			BatchSize:     100,
			BatchTimeout:  10 * time.Millisecond,
			RequiredAcks:  -1,
		},
		ScanInterval:  interval,
		AlertCooldown: cooldown,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

package main

import (
	"PostureGuard/internal/config"
	"PostureGuard/pkg/log"
	"PostureGuard/pkg/pose"
	"PostureGuard/pkg/redis"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// loadConfig reads the env files before the logger is built, since the
// logger takes LOG_LEVEL and APP_ENV once at construction.
func loadConfig(filenames ...string) (*logrus.Logger, error) {
	envErr := godotenv.Load(filenames...)
	return log.NewLogger(), envErr
}

func main() {
	logger, err := loadConfig()
	if err != nil {
		logger.Warnf("No .env file loaded, using process environment: %v", err)
	}

	fiberApp := config.NewFiber(logger)
	validator := config.NewValidator()

	estimator, err := pose.New(logger)
	if err != nil {
		logger.Fatalf("Error creating pose estimator: %v", err)
	}

	options := []config.ServerOption{
		config.WithFiber(fiberApp),
		config.WithLogger(logger),
		config.WithValidator(validator),
		config.WithDatabase(),
		config.WithPoseEstimator(estimator),
		config.WithMiddleware(),
		config.WithS3Client(),
		config.WithUtils(),
	}
	if config.HistoryEnabled() && os.Getenv("REDIS_ADDRESS") != "" {
		options = append(options, config.WithRedisServer(redis.New()))
	}

	server, err := config.NewServer(options...)
	if err != nil {
		logger.Fatal(err)
	}

	server.RegisterHandler()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.Run(); err != nil {
			logger.Fatalf("Error starting server: %v", err)
		}
	}()

	logger.Info("Server started successfully")

	<-sigChan
	logger.Info("Shutting down server...")

	if err := server.Shutdown(10 * time.Second); err != nil {
		logger.Errorf("Error during shutdown: %v", err)
	}
}

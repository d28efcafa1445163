package config

import (
	"PostureGuard/database/postgres"
	postureHandler "PostureGuard/internal/api/posture/handler"
	postureRepository "PostureGuard/internal/api/posture/repository"
	postureService "PostureGuard/internal/api/posture/service"
	"PostureGuard/internal/middleware"
	"PostureGuard/pkg/pose"
	"PostureGuard/pkg/redis"
	"PostureGuard/pkg/s3"
	"PostureGuard/pkg/utils"
	"errors"
	"fmt"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"os"
	"strconv"
	"time"
)

type ServerOption func(*Server) error

type Server struct {
	engine      *fiber.App
	db          *sqlx.DB
	log         *logrus.Logger
	middleware  middleware.Middleware
	validator   *validator.Validate
	utils       utils.IUtils
	handlers    []handler
	redisServer redis.IRedis
	s3Client    s3.ItfS3
	estimator   pose.IEstimator
}

type handler interface {
	Start(srv fiber.Router)
}

// legacyHandler is implemented by handlers that also serve unversioned routes.
type legacyHandler interface {
	StartLegacy(srv fiber.Router)
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if server.middleware == nil {
		return nil, fmt.Errorf("middleware is required")
	}
	if server.validator == nil {
		server.validator = NewValidator()
	}
	if server.utils == nil {
		server.utils = utils.New()
	}

	return server, nil
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithValidator(validator *validator.Validate) ServerOption {
	return func(s *Server) error {
		s.validator = validator
		return nil
	}
}

// HistoryEnabled reports whether analyses are persisted. It defaults to true.
func HistoryEnabled() bool {
	enabled, err := strconv.ParseBool(os.Getenv("POSTURE_HISTORY_ENABLED"))
	if err != nil {
		return true
	}
	return enabled
}

func WithDatabase() ServerOption {
	return func(s *Server) error {
		if !HistoryEnabled() {
			if s.log != nil {
				s.log.Info("Posture history disabled, skipping database")
			}
			return nil
		}

		db, err := postgres.New()
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to connect to database: %v", err)
			}
			return fmt.Errorf("failed to create database connection: %w", err)
		}
		s.db = db
		return nil
	}
}

func WithRedisServer(redisServer redis.IRedis) ServerOption {
	return func(s *Server) error {
		s.redisServer = redisServer
		return nil
	}
}

// WithS3Client enables snapshot archiving. A missing bucket leaves it off.
func WithS3Client() ServerOption {
	return func(s *Server) error {
		client, err := s3.New()
		if err != nil {
			if errors.Is(err, s3.ErrBucketNotConfigured) {
				if s.log != nil {
					s.log.Info("AWS_BUCKET_NAME not set, snapshot archiving disabled")
				}
				return nil
			}
			if s.log != nil {
				s.log.Errorf("Failed to initialize S3 client: %v", err)
			}
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		s.s3Client = client
		return nil
	}
}

func WithPoseEstimator(estimator pose.IEstimator) ServerOption {
	return func(s *Server) error {
		if estimator == nil {
			return fmt.Errorf("pose estimator is required")
		}
		s.estimator = estimator
		return nil
	}
}

func WithMiddleware() ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before middleware")
		}
		s.middleware = middleware.New(s.log)
		return nil
	}
}

func WithUtils() ServerOption {
	return func(s *Server) error {
		s.utils = utils.New()
		return nil
	}
}

func (s *Server) RegisterHandler() {
	var postureRepo postureRepository.Repository
	if s.db != nil {
		postureRepo = postureRepository.New(s.db, s.log)
	}

	postureServices := postureService.NewPostureService(s.log, s.estimator, postureRepo, s.redisServer, s.s3Client, s.utils)
	postureHandlers := postureHandler.New(s.log, s.validator, s.middleware, postureServices, s.utils)

	s.handlers = append(s.handlers, postureHandlers)
}

// Mount attaches middleware and every registered handler to the engine.
func (s *Server) Mount() {
	s.engine.Use(s.middleware.NewRequestIDMiddleware())
	s.engine.Use(s.middleware.NewCORSMiddleware())
	s.engine.Use(s.middleware.NewLoggingMiddleware())

	s.setupHealthCheck()
	router := s.engine.Group("/api/v1")

	for _, h := range s.handlers {
		h.Start(router)
		if lh, ok := h.(legacyHandler); ok {
			lh.StartLegacy(s.engine)
		}
	}
}

func (s *Server) Run() error {
	s.Mount()

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "3000"
	}

	return s.engine.Listen(fmt.Sprintf(":%s", port))
}

// Shutdown stops the listener and releases the estimator and stores.
func (s *Server) Shutdown(timeout time.Duration) error {
	var errs []error

	if err := s.engine.ShutdownWithTimeout(timeout); err != nil {
		errs = append(errs, fmt.Errorf("fiber shutdown: %w", err))
	}
	if s.estimator != nil {
		if err := s.estimator.Close(); err != nil {
			errs = append(errs, fmt.Errorf("pose estimator close: %w", err))
		}
	}
	if s.redisServer != nil {
		if err := s.redisServer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database close: %w", err))
		}
	}

	return errors.Join(errs...)
}

type connectionReporter interface {
	IsConnected() bool
}

func (s *Server) setupHealthCheck() {
	s.engine.Get("/", func(ctx *fiber.Ctx) error {
		status := fiber.Map{
			"message":         "Server is Healthy!",
			"history_enabled": s.db != nil,
			"archive_enabled": s.s3Client != nil,
		}
		if reporter, ok := s.estimator.(connectionReporter); ok {
			status["pose_connected"] = reporter.IsConnected()
		}
		return ctx.JSON(status)
	})
}

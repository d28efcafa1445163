package redis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	frameCounterPrefix = "posture:frames:"
	frameCounterTTL    = 24 * time.Hour
)

type IRedis interface {
	NextFrameIndex(ctx context.Context, sessionID string) (int, error)
	CurrentFrameIndex(ctx context.Context, sessionID string) (int, error)
	ResetSession(ctx context.Context, sessionID string) error
	Close() error
}

type redisClient struct {
	client *redis.Client
}

func New() IRedis {
	db, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	redisAddr := os.Getenv("REDIS_ADDRESS")
	redisPassword := os.Getenv("REDIS_PASSWORD")

	logrus.Info(fmt.Sprintf("Connecting to Redis at %s...", redisAddr))

	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		logrus.Error(fmt.Sprintf("Failed to connect to Redis: %v", err))
	} else {
		logrus.Info("Successfully connected to Redis")
	}

	return &redisClient{client: client}
}

func NewWithClient(client *redis.Client) IRedis {
	return &redisClient{client: client}
}

func frameCounterKey(sessionID string) string {
	return frameCounterPrefix + sessionID
}

// NextFrameIndex returns the 1-based index of the next frame in a session.
// Counters expire a day after the last frame.
func (r *redisClient) NextFrameIndex(ctx context.Context, sessionID string) (int, error) {
	key := frameCounterKey(sessionID)

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, frameCounterTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		logrus.Error(fmt.Sprintf("Error incrementing frame counter for session %s: %v", sessionID, err))
		return 0, err
	}

	return int(incr.Val()), nil
}

func (r *redisClient) CurrentFrameIndex(ctx context.Context, sessionID string) (int, error) {
	val, err := r.client.Get(ctx, frameCounterKey(sessionID)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	} else if err != nil {
		logrus.Error(fmt.Sprintf("Error reading frame counter for session %s: %v", sessionID, err))
		return 0, err
	}
	return val, nil
}

func (r *redisClient) ResetSession(ctx context.Context, sessionID string) error {
	result, err := r.client.Del(ctx, frameCounterKey(sessionID)).Result()
	if err != nil {
		logrus.Error(fmt.Sprintf("Error deleting frame counter for session %s: %v", sessionID, err))
		return err
	}

	if result == 0 {
		logrus.Debug(fmt.Sprintf("Frame counter for session %s not found for deletion", sessionID))
	}
	return nil
}

func (r *redisClient) Close() error {
	return r.client.Close()
}

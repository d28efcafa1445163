package pose

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"PostureGuard/internal/entity"
	"github.com/sirupsen/logrus"
)

// IEstimator turns one frame into the landmarks of the most prominent body in
// it. An empty set means no body was found.
type IEstimator interface {
	Estimate(ctx context.Context, f *entity.Frame) (entity.LandmarkSet, error)
	Close() error
}

const (
	BackendRemote = "remote"
	BackendRKNN   = "rknn"

	defaultServiceURL    = "ws://localhost:8000/api/v1/pose/ws"
	defaultMinVisibility = 0.5
	defaultModelFile     = "./models/yolov8n-pose.rknn"
	defaultPoolSize      = 3
)

var (
	ErrUnknownBackend  = errors.New("unknown pose backend")
	ErrBackendDisabled = errors.New("pose backend not compiled into this binary")
	ErrNotConnected    = errors.New("pose service not connected")
	ErrServiceFailure  = errors.New("pose service returned an error")
)

// New builds the estimator selected by POSE_BACKEND.
func New(log *logrus.Logger) (IEstimator, error) {
	backend := strings.ToLower(os.Getenv("POSE_BACKEND"))
	if backend == "" {
		backend = BackendRemote
	}

	minVisibility := envFloat("POSE_MIN_VISIBILITY", defaultMinVisibility)

	switch backend {
	case BackendRemote:
		url := os.Getenv("POSE_SERVICE_URL")
		if url == "" {
			url = defaultServiceURL
		}
		return NewRemoteEstimator(log, url, minVisibility), nil
	case BackendRKNN:
		modelFile := os.Getenv("POSE_MODEL_FILE")
		if modelFile == "" {
			modelFile = defaultModelFile
		}
		poolSize, err := strconv.Atoi(os.Getenv("POSE_POOL_SIZE"))
		if err != nil || poolSize <= 0 {
			poolSize = defaultPoolSize
		}
		return NewRKNNEstimator(log, modelFile, poolSize, minVisibility)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

func envFloat(key string, def float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return v
}

package postureService

import (
	"PostureGuard/internal/api/posture"
	postureRepository "PostureGuard/internal/api/posture/repository"
	"PostureGuard/internal/entity"
	"PostureGuard/pkg/pose"
	"PostureGuard/pkg/redis"
	"PostureGuard/pkg/s3"
	"PostureGuard/pkg/utils"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

type IPostureService interface {
	Analyze(ctx context.Context, req posture.AnalyzeRequest) (*entity.AnalysisResult, error)
	AnalyzeFrame(ctx context.Context, sessionID string, data []byte) (*entity.AnalysisResult, error)
	GetHistory(ctx context.Context, sessionID string, limit int) ([]entity.PostureAnalysis, error)
	GetAnalysisByID(ctx context.Context, id string) (entity.PostureAnalysis, error)
	GetSessionSummary(ctx context.Context, sessionID string) (entity.SessionSummary, error)
	DeleteSession(ctx context.Context, sessionID string) (int64, error)
}

type postureService struct {
	log         *logrus.Logger
	estimator   pose.IEstimator
	repository  postureRepository.Repository
	redisServer redis.IRedis
	s3Client    s3.ItfS3
	utils       utils.IUtils
}

// NewPostureService wires the analysis pipeline. repository, redisServer and
// s3Client may be nil, in which case the matching bookkeeping is skipped.
func NewPostureService(
	log *logrus.Logger,
	estimator pose.IEstimator,
	repository postureRepository.Repository,
	redisServer redis.IRedis,
	s3Client s3.ItfS3,
	utils utils.IUtils,
) IPostureService {
	return &postureService{
		log:         log,
		estimator:   estimator,
		repository:  repository,
		redisServer: redisServer,
		s3Client:    s3Client,
		utils:       utils,
	}
}

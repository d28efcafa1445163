package postureService

import (
	"PostureGuard/internal/api/posture"
	"PostureGuard/internal/entity"
	contextPkg "PostureGuard/pkg/context"
	"PostureGuard/pkg/frame"
	"PostureGuard/pkg/log"
	"PostureGuard/pkg/pose"
	postureRules "PostureGuard/pkg/posture"
	"errors"
	"golang.org/x/net/context"
	"strings"
	"time"
)

func (s *postureService) Analyze(ctx context.Context, req posture.AnalyzeRequest) (*entity.AnalysisResult, error) {
	if strings.TrimSpace(req.Image) == "" {
		return nil, posture.ErrImageRequired
	}

	f, err := frame.Decode(req.Image)
	if err != nil {
		s.log.WithFields(log.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"error":      err.Error(),
		}).Warn("Failed to decode image payload")
		return nil, posture.ErrInvalidImage
	}

	return s.analyze(ctx, req.SessionID, req.Frame, f)
}

func (s *postureService) AnalyzeFrame(ctx context.Context, sessionID string, data []byte) (*entity.AnalysisResult, error) {
	f, err := frame.FromBytes(data)
	if err != nil {
		if errors.Is(err, frame.ErrEmptyPayload) {
			return nil, posture.ErrImageRequired
		}
		s.log.WithFields(log.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"session_id": sessionID,
			"error":      err.Error(),
		}).Warn("Failed to decode frame bytes")
		return nil, posture.ErrInvalidImage
	}

	return s.analyze(ctx, sessionID, nil, f)
}

func (s *postureService) analyze(ctx context.Context, sessionID string, frameIdx *int, f *entity.Frame) (*entity.AnalysisResult, error) {
	requestID := contextPkg.GetRequestID(ctx)

	if s.estimator == nil {
		return nil, posture.ErrPoseUnavailable
	}

	landmarks, err := s.estimator.Estimate(ctx, f)
	if err != nil {
		s.log.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Pose estimation failed")

		switch {
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
			return nil, err
		case errors.Is(err, pose.ErrNotConnected), errors.Is(err, pose.ErrBackendDisabled):
			return nil, posture.ErrPoseUnavailable
		default:
			return nil, posture.ErrPoseEstimation
		}
	}

	result := postureRules.Analyze(landmarks)

	s.log.WithFields(log.Fields{
		"request_id":  requestID,
		"session_id":  sessionID,
		"landmarks":   len(landmarks),
		"bad_posture": result.BadPosture,
		"issues":      result.Issues,
	}).Debug("Posture analysed")

	s.record(ctx, sessionID, frameIdx, f, result)

	return result, nil
}

// record persists the analysis. Failures are logged and never surface to the
// caller.
func (s *postureService) record(ctx context.Context, sessionID string, frameIdx *int, f *entity.Frame, result *entity.AnalysisResult) {
	if s.repository == nil {
		return
	}
	requestID := contextPkg.GetRequestID(ctx)

	now := time.Now()
	id, err := s.utils.NewULIDFromTimestamp(now)
	if err != nil {
		s.log.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to generate analysis id")
		return
	}

	index := 0
	if frameIdx != nil {
		index = *frameIdx
	} else if s.redisServer != nil && sessionID != "" {
		next, err := s.redisServer.NextFrameIndex(ctx, sessionID)
		if err != nil {
			s.log.WithFields(log.Fields{
				"request_id": requestID,
				"session_id": sessionID,
				"error":      err.Error(),
			}).Warn("Failed to advance frame counter")
		} else {
			index = next
		}
	}

	snapshotURL := ""
	if result.BadPosture && s.s3Client != nil {
		location, err := s.s3Client.UploadFrame(ctx, sessionID, id, f.MimeType, f.Data)
		if err != nil {
			s.log.WithFields(log.Fields{
				"request_id": requestID,
				"session_id": sessionID,
				"error":      err.Error(),
			}).Warn("Failed to archive bad posture snapshot")
		} else {
			snapshotURL = location
		}
	}

	client, err := s.repository.NewClient(false)
	if err != nil {
		s.log.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to create repository client")
		return
	}

	err = client.Analyses.CreateAnalysis(ctx, entity.PostureAnalysis{
		ID:          id,
		SessionID:   sessionID,
		Frame:       index,
		BadPosture:  result.BadPosture,
		Issues:      entity.JoinIssues(result.Issues),
		SnapshotURL: snapshotURL,
		CreatedAt:   now,
	})
	if err != nil {
		s.log.WithFields(log.Fields{
			"request_id": requestID,
			"session_id": sessionID,
			"error":      err.Error(),
		}).Error("Failed to store posture analysis")
	}
}

func (s *postureService) GetHistory(ctx context.Context, sessionID string, limit int) ([]entity.PostureAnalysis, error) {
	if s.repository == nil {
		return nil, posture.ErrHistoryDisabled
	}

	if limit <= 0 {
		limit = posture.DefaultHistoryLimit
	}
	if limit > posture.MaxHistoryLimit {
		limit = posture.MaxHistoryLimit
	}

	client, err := s.repository.NewClient(false)
	if err != nil {
		return nil, err
	}

	return client.Analyses.GetRecentAnalyses(ctx, sessionID, limit)
}

func (s *postureService) GetAnalysisByID(ctx context.Context, id string) (entity.PostureAnalysis, error) {
	if s.repository == nil {
		return entity.PostureAnalysis{}, posture.ErrHistoryDisabled
	}

	client, err := s.repository.NewClient(false)
	if err != nil {
		return entity.PostureAnalysis{}, err
	}

	analysis, err := client.Analyses.GetAnalysisByID(ctx, id)
	if err != nil {
		return entity.PostureAnalysis{}, err
	}

	if analysis.SnapshotURL != "" && s.s3Client != nil {
		if presigned, err := s.s3Client.PresignUrl(analysis.SnapshotURL); err == nil {
			analysis.SnapshotURL = presigned
		} else {
			s.log.WithFields(log.Fields{
				"request_id": contextPkg.GetRequestID(ctx),
				"id":         id,
				"error":      err.Error(),
			}).Warn("Failed to presign snapshot url")
		}
	}

	return analysis, nil
}

func (s *postureService) GetSessionSummary(ctx context.Context, sessionID string) (entity.SessionSummary, error) {
	if s.repository == nil {
		return entity.SessionSummary{}, posture.ErrHistoryDisabled
	}

	client, err := s.repository.NewClient(false)
	if err != nil {
		return entity.SessionSummary{}, err
	}

	summary, err := client.Analyses.GetSessionSummary(ctx, sessionID)
	if err != nil {
		return entity.SessionSummary{}, err
	}

	if s.redisServer != nil {
		received, err := s.redisServer.CurrentFrameIndex(ctx, sessionID)
		if err != nil {
			s.log.WithFields(log.Fields{
				"request_id": contextPkg.GetRequestID(ctx),
				"session_id": sessionID,
				"error":      err.Error(),
			}).Warn("Failed to read frame counter")
		} else {
			summary.FramesReceived = received
		}
	}

	return summary, nil
}

// DeleteSession removes a session's history, its archived snapshots and its
// frame counter. Only the database delete can fail the call.
func (s *postureService) DeleteSession(ctx context.Context, sessionID string) (int64, error) {
	if s.repository == nil {
		return 0, posture.ErrHistoryDisabled
	}

	client, err := s.repository.NewClient(true)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			client.Rollback()
		}
	}()

	var snapshots []string
	if s.s3Client != nil {
		snapshots, err = client.Analyses.GetSessionSnapshots(ctx, sessionID)
		if err != nil {
			return 0, err
		}
	}

	deleted, err := client.Analyses.DeleteSession(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	if err = client.Commit(); err != nil {
		return 0, err
	}

	for _, snapshot := range snapshots {
		if err := s.s3Client.DeleteFile(snapshot); err != nil {
			s.log.WithFields(log.Fields{
				"request_id": contextPkg.GetRequestID(ctx),
				"session_id": sessionID,
				"snapshot":   snapshot,
				"error":      err.Error(),
			}).Warn("Failed to delete archived snapshot")
		}
	}

	if s.redisServer != nil {
		if err := s.redisServer.ResetSession(ctx, sessionID); err != nil {
			s.log.WithFields(log.Fields{
				"request_id": contextPkg.GetRequestID(ctx),
				"session_id": sessionID,
				"error":      err.Error(),
			}).Warn("Failed to reset frame counter")
		}
	}

	return deleted, nil
}

package postureRepository

import (
	"PostureGuard/internal/api/posture"
	"PostureGuard/internal/entity"
	contextPkg "PostureGuard/pkg/context"
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type PostureAnalysisDB struct {
	ID          sql.NullString `db:"id"`
	SessionID   sql.NullString `db:"session_id"`
	Frame       sql.NullInt64  `db:"frame"`
	BadPosture  sql.NullBool   `db:"bad_posture"`
	Issues      sql.NullString `db:"issues"`
	SnapshotURL sql.NullString `db:"snapshot_url"`
	CreatedAt   time.Time      `db:"created_at"`
}

type SessionSummaryDB struct {
	TotalFrames int          `db:"total_frames"`
	BadFrames   int          `db:"bad_frames"`
	FirstAt     sql.NullTime `db:"first_at"`
	LastAt      sql.NullTime `db:"last_at"`
}

func (r *analysisRepository) CreateAnalysis(c context.Context, analysis entity.PostureAnalysis) error {
	requestID := contextPkg.GetRequestID(c)

	createdAt := analysis.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	argsKV := map[string]interface{}{
		"id":           analysis.ID,
		"session_id":   analysis.SessionID,
		"frame":        analysis.Frame,
		"bad_posture":  analysis.BadPosture,
		"issues":       nullString(entity.JoinIssues(analysis.IssueList())),
		"snapshot_url": nullString(analysis.SnapshotURL),
		"created_at":   createdAt,
	}

	query, args, err := sqlx.Named(queryCreateAnalysis, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to build SQL query for CreateAnalysis")
		return err
	}
	query = r.q.Rebind(query)

	if _, err := r.q.ExecContext(c, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Database error when creating posture analysis")
		return err
	}

	return nil
}

func (r *analysisRepository) GetAnalysisByID(c context.Context, id string) (entity.PostureAnalysis, error) {
	requestID := contextPkg.GetRequestID(c)
	var analysis PostureAnalysisDB

	query, args, err := sqlx.Named(queryGetAnalysisByID, map[string]interface{}{"id": id})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetAnalysisByID named query preparation err")
		return entity.PostureAnalysis{}, err
	}
	query = r.q.Rebind(query)

	if err := r.q.QueryRowxContext(c, query, args...).StructScan(&analysis); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"id":         id,
			}).Warn("GetAnalysisByID no rows found")
			return entity.PostureAnalysis{}, posture.ErrAnalysisNotFound
		}
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetAnalysisByID execution err")
		return entity.PostureAnalysis{}, err
	}

	return r.makePostureAnalysis(analysis), nil
}

// GetRecentAnalyses returns the newest analyses first. An empty sessionID
// spans all sessions.
func (r *analysisRepository) GetRecentAnalyses(c context.Context, sessionID string, limit int) ([]entity.PostureAnalysis, error) {
	requestID := contextPkg.GetRequestID(c)
	var analyses []PostureAnalysisDB

	rawQuery := queryGetRecentAnalyses
	argsKV := map[string]interface{}{"limit": limit}
	if sessionID != "" {
		rawQuery = queryGetAnalysesBySession
		argsKV["session_id"] = sessionID
	}

	query, args, err := sqlx.Named(rawQuery, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetRecentAnalyses named query preparation err")
		return nil, err
	}
	query = r.q.Rebind(query)

	if err := r.q.SelectContext(c, &analyses, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetRecentAnalyses execution err")
		return nil, err
	}

	result := make([]entity.PostureAnalysis, 0, len(analyses))
	for _, analysis := range analyses {
		result = append(result, r.makePostureAnalysis(analysis))
	}

	return result, nil
}

func (r *analysisRepository) GetSessionSummary(c context.Context, sessionID string) (entity.SessionSummary, error) {
	requestID := contextPkg.GetRequestID(c)
	var summary SessionSummaryDB

	query, args, err := sqlx.Named(queryGetSessionSummary, map[string]interface{}{"session_id": sessionID})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetSessionSummary named query preparation err")
		return entity.SessionSummary{}, err
	}
	query = r.q.Rebind(query)

	if err := r.q.QueryRowxContext(c, query, args...).StructScan(&summary); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetSessionSummary execution err")
		return entity.SessionSummary{}, err
	}

	if summary.TotalFrames == 0 {
		return entity.SessionSummary{}, posture.ErrAnalysisNotFound
	}

	return entity.SessionSummary{
		SessionID:   sessionID,
		TotalFrames: summary.TotalFrames,
		BadFrames:   summary.BadFrames,
		FirstAt:     summary.FirstAt.Time,
		LastAt:      summary.LastAt.Time,
	}, nil
}

func (r *analysisRepository) GetSessionSnapshots(c context.Context, sessionID string) ([]string, error) {
	requestID := contextPkg.GetRequestID(c)
	snapshots := []string{}

	query, args, err := sqlx.Named(queryGetSessionSnapshots, map[string]interface{}{"session_id": sessionID})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetSessionSnapshots named query preparation err")
		return nil, err
	}
	query = r.q.Rebind(query)

	if err := r.q.SelectContext(c, &snapshots, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetSessionSnapshots execution err")
		return nil, err
	}

	return snapshots, nil
}

func (r *analysisRepository) DeleteSession(c context.Context, sessionID string) (int64, error) {
	requestID := contextPkg.GetRequestID(c)

	query, args, err := sqlx.Named(queryDeleteSession, map[string]interface{}{"session_id": sessionID})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("DeleteSession named query preparation err")
		return 0, err
	}
	query = r.q.Rebind(query)

	res, err := r.q.ExecContext(c, query, args...)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("DeleteSession execution err")
		return 0, err
	}

	return res.RowsAffected()
}

func (r *analysisRepository) makePostureAnalysis(analysis PostureAnalysisDB) entity.PostureAnalysis {
	return entity.PostureAnalysis{
		ID:          analysis.ID.String,
		SessionID:   analysis.SessionID.String,
		Frame:       int(analysis.Frame.Int64),
		BadPosture:  analysis.BadPosture.Bool,
		Issues:      analysis.Issues.String,
		SnapshotURL: analysis.SnapshotURL.String,
		CreatedAt:   analysis.CreatedAt,
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

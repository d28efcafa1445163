package postureRepository

const (
	queryCreateAnalysis = `
		INSERT INTO posture_analyses (
			id,
			session_id,
			frame,
			bad_posture,
			issues,
			snapshot_url,
			created_at
		) VALUES (
			:id,
			:session_id,
			:frame,
			:bad_posture,
			:issues,
			:snapshot_url,
			:created_at
		)
	`

	queryGetAnalysisByID = `
		SELECT
			id,
			session_id,
			frame,
			bad_posture,
			issues,
			snapshot_url,
			created_at
		FROM posture_analyses
		WHERE id = :id
	`

	queryGetRecentAnalyses = `
		SELECT
			id,
			session_id,
			frame,
			bad_posture,
			issues,
			snapshot_url,
			created_at
		FROM posture_analyses
		ORDER BY created_at DESC
		LIMIT :limit
	`

	queryGetAnalysesBySession = `
		SELECT
			id,
			session_id,
			frame,
			bad_posture,
			issues,
			snapshot_url,
			created_at
		FROM posture_analyses
		WHERE session_id = :session_id
		ORDER BY created_at DESC
		LIMIT :limit
	`

	queryGetSessionSummary = `
		SELECT
			COUNT(*) AS total_frames,
			COUNT(*) FILTER (WHERE bad_posture) AS bad_frames,
			MIN(created_at) AS first_at,
			MAX(created_at) AS last_at
		FROM posture_analyses
		WHERE session_id = :session_id
	`

	queryGetSessionSnapshots = `
		SELECT snapshot_url
		FROM posture_analyses
		WHERE session_id = :session_id
			AND snapshot_url IS NOT NULL
			AND snapshot_url <> ''
	`

	queryDeleteSession = `
		DELETE FROM posture_analyses
		WHERE session_id = :session_id
	`
)

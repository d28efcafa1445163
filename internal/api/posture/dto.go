package posture

import "time"

type AnalyzeRequest struct {
	Image     string `json:"image" form:"image" validate:"required"`
	SessionID string `json:"session_id,omitempty" form:"session_id" validate:"omitempty,max=64,printascii"`
	Frame     *int   `json:"frame,omitempty" form:"frame" validate:"omitempty,min=0"`
}

type AnalyzeResponse struct {
	BadPosture bool     `json:"bad_posture"`
	Issues     []string `json:"issues"`
}

type HistoryQuery struct {
	SessionID string `query:"session_id" validate:"omitempty,max=64,printascii"`
	Limit     int    `query:"limit" validate:"omitempty,min=1,max=500"`
}

type AnalysisResponse struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	Frame       int       `json:"frame"`
	BadPosture  bool      `json:"bad_posture"`
	Issues      []string  `json:"issues"`
	SnapshotURL string    `json:"snapshot_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type HistoryResponse struct {
	Analyses []AnalysisResponse `json:"analyses"`
	Count    int                `json:"count"`
}

type SessionSummaryResponse struct {
	SessionID      string     `json:"session_id"`
	TotalFrames    int        `json:"total_frames"`
	BadFrames      int        `json:"bad_frames"`
	BadRatio       float64    `json:"bad_ratio"`
	FramesReceived int        `json:"frames_received,omitempty"`
	FirstAt        *time.Time `json:"first_at,omitempty"`
	LastAt         *time.Time `json:"last_at,omitempty"`
}

type StreamError struct {
	Error string `json:"error"`
}

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

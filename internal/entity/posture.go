package entity

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	IssueBackAngle   = "Back angle < 150°"
	IssueKneeOverToe = "Knee over toe"
)

const (
	issueSeparator = "; "
	maxIssuesLen   = 300
)

type Frame struct {
	Data     []byte
	MimeType string
	Width    int
	Height   int
}

type AnalysisResult struct {
	BadPosture bool     `json:"bad_posture"`
	Issues     []string `json:"issues"`
}

func NewAnalysisResult(issues []string) *AnalysisResult {
	if issues == nil {
		issues = []string{}
	}
	return &AnalysisResult{
		BadPosture: len(issues) > 0,
		Issues:     issues,
	}
}

type PostureAnalysis struct {
	ID          string
	SessionID   string
	Frame       int
	BadPosture  bool
	Issues      string
	SnapshotURL string
	CreatedAt   time.Time
}

// IssueList splits the stored issues column back into individual issues.
func (p PostureAnalysis) IssueList() []string {
	if p.Issues == "" {
		return []string{}
	}
	return strings.Split(p.Issues, issueSeparator)
}

// JoinIssues flattens issues into the stored column format, truncated to the
// column width on a rune boundary.
func JoinIssues(issues []string) string {
	joined := strings.Join(issues, issueSeparator)
	if utf8.RuneCountInString(joined) <= maxIssuesLen {
		return joined
	}
	runes := []rune(joined)
	return string(runes[:maxIssuesLen])
}

// SessionSummary aggregates a session's stored analyses. FramesReceived is
// the live frame counter, which also counts frames whose record was lost.
type SessionSummary struct {
	SessionID      string
	TotalFrames    int
	BadFrames      int
	FramesReceived int
	FirstAt        time.Time
	LastAt         time.Time
}

func (s SessionSummary) BadRatio() float64 {
	if s.TotalFrames == 0 {
		return 0
	}
	return float64(s.BadFrames) / float64(s.TotalFrames)
}

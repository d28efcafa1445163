package postureHandler

import (
	"bytes"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"PostureGuard/internal/api/posture"
	"PostureGuard/internal/entity"
	"PostureGuard/internal/middleware"
	"PostureGuard/pkg/utils"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	gorillaws "github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/context"
)

type fakeService struct {
	mu sync.Mutex

	result *entity.AnalysisResult
	err    error

	requests []posture.AnalyzeRequest
	frames   [][]byte
	sessions []string

	history   []entity.PostureAnalysis
	analysis  entity.PostureAnalysis
	summary   entity.SessionSummary
	deleted   int64
	lastLimit int
}

func (f *fakeService) Analyze(ctx context.Context, req posture.AnalyzeRequest) (*entity.AnalysisResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if req.Image == "" {
		return nil, posture.ErrImageRequired
	}
	return f.result, f.err
}

func (f *fakeService) AnalyzeFrame(ctx context.Context, sessionID string, data []byte) (*entity.AnalysisResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, data)
	f.sessions = append(f.sessions, sessionID)
	return f.result, f.err
}

func (f *fakeService) GetHistory(ctx context.Context, sessionID string, limit int) ([]entity.PostureAnalysis, error) {
	f.lastLimit = limit
	return f.history, f.err
}

func (f *fakeService) GetAnalysisByID(ctx context.Context, id string) (entity.PostureAnalysis, error) {
	if f.analysis.ID != id {
		return entity.PostureAnalysis{}, posture.ErrAnalysisNotFound
	}
	return f.analysis, nil
}

func (f *fakeService) GetSessionSummary(ctx context.Context, sessionID string) (entity.SessionSummary, error) {
	if f.summary.SessionID != sessionID {
		return entity.SessionSummary{}, posture.ErrAnalysisNotFound
	}
	return f.summary, nil
}

func (f *fakeService) DeleteSession(ctx context.Context, sessionID string) (int64, error) {
	return f.deleted, f.err
}

func newTestApp(svc *fakeService) *fiber.App {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	m := middleware.New(logger)
	h := New(logger, validator.New(), m, svc, utils.New())

	app := fiber.New(fiber.Config{
		JSONEncoder: jsoniter.Marshal,
		JSONDecoder: jsoniter.Unmarshal,
	})
	app.Use(m.NewRequestIDMiddleware())
	h.StartLegacy(app)
	h.Start(app.Group("/api/v1"))
	return app
}

func decodeBody(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	require.NoError(t, jsoniter.NewDecoder(resp.Body).Decode(v))
}

func badResult() *entity.AnalysisResult {
	return entity.NewAnalysisResult([]string{entity.IssueBackAngle, entity.IssueKneeOverToe})
}

func TestAnalyzeJSON(t *testing.T) {
	svc := &fakeService{result: badResult()}
	app := newTestApp(svc)

	for _, path := range []string{"/api/v1/posture/analyze", "/analyze"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, path,
				bytes.NewBufferString(`{"image":"data:image/png;base64,AAAA","session_id":"desk-1"}`))
			req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)

			resp, err := app.Test(req)
			require.NoError(t, err)
			require.Equal(t, http.StatusOK, resp.StatusCode)

			var body posture.AnalyzeResponse
			decodeBody(t, resp, &body)
			require.True(t, body.BadPosture)
			require.Equal(t, []string{entity.IssueBackAngle, entity.IssueKneeOverToe}, body.Issues)
		})
	}

	require.Len(t, svc.requests, 2)
	require.Equal(t, "desk-1", svc.requests[0].SessionID)
}

func TestAnalyzeGoodPostureReturnsEmptyIssues(t *testing.T) {
	svc := &fakeService{result: entity.NewAnalysisResult(nil)}
	app := newTestApp(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/posture/analyze",
		bytes.NewBufferString(`{"image":"AAAA"}`))
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.JSONEq(t, `{"bad_posture":false,"issues":[]}`, string(raw))
}

func TestAnalyzeMissingImage(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		contentType string
	}{
		{"empty body", "", ""},
		{"empty object", `{}`, fiber.MIMEApplicationJSON},
		{"blank image", `{"image":"   "}`, fiber.MIMEApplicationJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{result: badResult()}
			app := newTestApp(svc)

			req := httptest.NewRequest(http.MethodPost, "/analyze", bytes.NewBufferString(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)

			var body map[string]string
			decodeBody(t, resp, &body)
			require.Equal(t, "image is required", body["error"])
			require.Empty(t, svc.requests)
		})
	}
}

func TestAnalyzeServiceErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"invalid image", posture.ErrInvalidImage, http.StatusBadRequest},
		{"estimator failure", posture.ErrPoseEstimation, http.StatusBadGateway},
		{"estimator unavailable", posture.ErrPoseUnavailable, http.StatusServiceUnavailable},
		{"deadline", context.DeadlineExceeded, http.StatusRequestTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(&fakeService{err: tt.err})

			req := httptest.NewRequest(http.MethodPost, "/api/v1/posture/analyze",
				bytes.NewBufferString(`{"image":"AAAA"}`))
			req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)

			resp, err := app.Test(req)
			require.NoError(t, err)
			require.Equal(t, tt.wantStatus, resp.StatusCode)

			var body map[string]string
			decodeBody(t, resp, &body)
			require.NotEmpty(t, body["error"])
		})
	}
}

func TestAnalyzeValidationError(t *testing.T) {
	app := newTestApp(&fakeService{result: badResult()})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/posture/analyze",
		bytes.NewBufferString(`{"image":"AAAA","frame":-1}`))
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body map[string]string
	decodeBody(t, resp, &body)
	require.Equal(t, "VALIDATION_ERROR", body["code"])
}

func multipartImage(t *testing.T, contentType string, data []byte, sessionID string) (*bytes.Buffer, string) {
	t.Helper()

	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="image"; filename="frame.png"`)
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)

	if sessionID != "" {
		require.NoError(t, w.WriteField("session_id", sessionID))
	}
	require.NoError(t, w.Close())

	return buf, w.FormDataContentType()
}

func TestAnalyzeMultipart(t *testing.T) {
	svc := &fakeService{result: badResult()}
	app := newTestApp(svc)

	body, ct := multipartImage(t, "image/png", []byte("png-bytes"), "desk-2")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/posture/analyze", body)
	req.Header.Set("Content-Type", ct)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Equal(t, [][]byte{[]byte("png-bytes")}, svc.frames)
	require.Equal(t, []string{"desk-2"}, svc.sessions)
}

func TestAnalyzeMultipartRejectsNonImage(t *testing.T) {
	svc := &fakeService{result: badResult()}
	app := newTestApp(svc)

	body, ct := multipartImage(t, "text/plain", []byte("hello"), "")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/posture/analyze", body)
	req.Header.Set("Content-Type", ct)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Empty(t, svc.frames)
}

func TestGetHistory(t *testing.T) {
	created := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	svc := &fakeService{history: []entity.PostureAnalysis{
		{ID: "01HX", SessionID: "desk-1", Frame: 3, BadPosture: true, Issues: "Back angle < 150°; Knee over toe", CreatedAt: created},
		{ID: "01HW", SessionID: "desk-1", Frame: 2, CreatedAt: created.Add(-time.Second)},
	}}
	app := newTestApp(svc)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/posture/history?session_id=desk-1&limit=10", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 10, svc.lastLimit)

	var body posture.HistoryResponse
	decodeBody(t, resp, &body)
	require.Equal(t, 2, body.Count)
	require.Equal(t, []string{entity.IssueBackAngle, entity.IssueKneeOverToe}, body.Analyses[0].Issues)
	require.Equal(t, []string{}, body.Analyses[1].Issues)
}

func TestGetHistoryRejectsLargeLimit(t *testing.T) {
	app := newTestApp(&fakeService{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/posture/history?limit=501", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetHistoryDisabled(t *testing.T) {
	app := newTestApp(&fakeService{err: posture.ErrHistoryDisabled})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/posture/history", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}

func TestGetAnalysisByID(t *testing.T) {
	svc := &fakeService{analysis: entity.PostureAnalysis{ID: "01HX", SessionID: "desk-1", BadPosture: true, Issues: entity.IssueKneeOverToe}}
	app := newTestApp(svc)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/posture/history/01HX", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body posture.AnalysisResponse
	decodeBody(t, resp, &body)
	require.Equal(t, "01HX", body.ID)
	require.Equal(t, []string{entity.IssueKneeOverToe}, body.Issues)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/posture/history/missing", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetSessionSummary(t *testing.T) {
	first := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	svc := &fakeService{summary: entity.SessionSummary{
		SessionID: "desk-1", TotalFrames: 4, BadFrames: 1, FirstAt: first, LastAt: first.Add(time.Minute),
	}}
	app := newTestApp(svc)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/posture/sessions/desk-1/summary", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body posture.SessionSummaryResponse
	decodeBody(t, resp, &body)
	require.Equal(t, 4, body.TotalFrames)
	require.InDelta(t, 0.25, body.BadRatio, 1e-9)
	require.NotNil(t, body.FirstAt)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/posture/sessions/other/summary", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteSession(t *testing.T) {
	app := newTestApp(&fakeService{deleted: 7})

	resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/api/v1/posture/sessions/desk-1", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		SessionID string `json:"session_id"`
		Deleted   int64  `json:"deleted"`
	}
	decodeBody(t, resp, &body)
	require.Equal(t, "desk-1", body.SessionID)
	require.Equal(t, int64(7), body.Deleted)
}

func TestWebSocketRequiresUpgrade(t *testing.T) {
	app := newTestApp(&fakeService{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/posture/ws", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}

func TestWebSocketStream(t *testing.T) {
	svc := &fakeService{result: badResult()}
	app := newTestApp(svc)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	url := "ws://" + ln.Addr().String() + "/api/v1/posture/ws?session_id=desk-9"
	conn, _, err := gorillaws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	t.Run("binary frame", func(t *testing.T) {
		require.NoError(t, conn.WriteMessage(gorillaws.BinaryMessage, []byte("jpeg-bytes")))

		var body posture.AnalyzeResponse
		require.NoError(t, conn.ReadJSON(&body))
		require.True(t, body.BadPosture)
		require.Len(t, body.Issues, 2)
	})

	t.Run("data url text frame", func(t *testing.T) {
		require.NoError(t, conn.WriteMessage(gorillaws.TextMessage, []byte("data:image/png;base64,AAAA")))

		var body posture.AnalyzeResponse
		require.NoError(t, conn.ReadJSON(&body))
		require.True(t, body.BadPosture)
	})

	t.Run("empty text frame", func(t *testing.T) {
		require.NoError(t, conn.WriteMessage(gorillaws.TextMessage, []byte("  ")))

		var body posture.StreamError
		require.NoError(t, conn.ReadJSON(&body))
		require.Equal(t, "image is required", body.Error)
	})

	svc.mu.Lock()
	defer svc.mu.Unlock()
	require.Equal(t, []string{"desk-9"}, svc.sessions)
	require.Equal(t, "desk-9", svc.requests[0].SessionID)
}

func dialStream(t *testing.T, app *fiber.App, query string) *gorillaws.Conn {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	conn, _, err := gorillaws.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/api/v1/posture/ws"+query, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestWebSocketStreamRejectsInvalidSessionID(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"too long", "?session_id=" + strings.Repeat("x", 65)},
		{"control character", "?session_id=desk%01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{result: badResult()}
			conn := dialStream(t, newTestApp(svc), tt.query)

			var body posture.StreamError
			require.NoError(t, conn.ReadJSON(&body))
			require.Equal(t, posture.ErrInvalidSessionID.Error(), body.Error)

			_, _, err := conn.ReadMessage()
			require.True(t, gorillaws.IsCloseError(err, gorillaws.ClosePolicyViolation), "got %v", err)

			svc.mu.Lock()
			defer svc.mu.Unlock()
			require.Empty(t, svc.sessions)
			require.Empty(t, svc.requests)
		})
	}
}

func TestWebSocketStreamRejectsOversizedFrame(t *testing.T) {
	svc := &fakeService{result: badResult()}
	conn := dialStream(t, newTestApp(svc), "?session_id=desk-9")

	_ = conn.WriteMessage(gorillaws.BinaryMessage, make([]byte, streamReadLimit+1))

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)

	svc.mu.Lock()
	defer svc.mu.Unlock()
	require.Empty(t, svc.sessions)
}

package config

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"PostureGuard/internal/entity"
	"PostureGuard/pkg/pose"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func pngDataURL(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func newTestServer(t *testing.T, estimator pose.IEstimator) *Server {
	t.Helper()
	t.Setenv("POSTURE_HISTORY_ENABLED", "false")
	t.Setenv("AWS_BUCKET_NAME", "")

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	server, err := NewServer(
		WithFiber(NewFiber(logger)),
		WithLogger(logger),
		WithValidator(NewValidator()),
		WithDatabase(),
		WithS3Client(),
		WithPoseEstimator(estimator),
		WithMiddleware(),
		WithUtils(),
	)
	require.NoError(t, err)

	server.RegisterHandler()
	server.Mount()
	return server
}

func TestNewServerRequiresEngineAndLogger(t *testing.T) {
	_, err := NewServer()
	require.Error(t, err)

	_, err = NewServer(WithFiber(fiber.New()))
	require.Error(t, err)
}

func TestWithPoseEstimatorRejectsNil(t *testing.T) {
	_, err := NewServer(WithPoseEstimator(nil))
	require.Error(t, err)
}

func TestHistoryEnabled(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"", true},
		{"true", true},
		{"false", false},
		{"0", false},
		{"garbage", true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("POSTURE_HISTORY_ENABLED", tt.value)
			require.Equal(t, tt.want, HistoryEnabled())
		})
	}
}

func TestHealthCheck(t *testing.T) {
	server := newTestServer(t, &pose.Mock{})

	resp, err := server.engine.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, jsoniter.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, false, body["history_enabled"])
	require.Equal(t, false, body["archive_enabled"])
}

func TestAnalyzeEndToEnd(t *testing.T) {
	estimator := &pose.Mock{
		EstimateFunc: func(ctx context.Context, f *entity.Frame) (entity.LandmarkSet, error) {
			return entity.LandmarkSet{
				entity.LeftShoulder: {X: 0.5, Y: 0.2, Visibility: 1},
				entity.LeftHip:      {X: 0.5, Y: 0.5, Visibility: 1},
				entity.LeftKnee:     {X: 0.8, Y: 0.5, Visibility: 1},
				entity.LeftAnkle:    {X: 0.6, Y: 0.9, Visibility: 1},
			}, nil
		},
	}
	server := newTestServer(t, estimator)

	payload, err := jsoniter.Marshal(map[string]string{"image": pngDataURL(t)})
	require.NoError(t, err)

	for _, path := range []string{"/analyze", "/api/v1/posture/analyze"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
			req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)

			resp, err := server.engine.Test(req)
			require.NoError(t, err)
			require.Equal(t, http.StatusOK, resp.StatusCode)
			require.NotEmpty(t, resp.Header.Get("X-Request-ID"))

			raw, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			require.JSONEq(t, `{"bad_posture":true,"issues":["Back angle < 150°","Knee over toe"]}`, string(raw))
		})
	}
}

func TestAnalyzeMissingImageEndToEnd(t *testing.T) {
	estimator := &pose.Mock{}
	server := newTestServer(t, estimator)

	req := httptest.NewRequest(http.MethodPost, "/analyze", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)

	resp, err := server.engine.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.JSONEq(t, `{"error":"image is required"}`, string(raw))
	require.Zero(t, estimator.Calls())
}

func TestHistoryDisabledEndToEnd(t *testing.T) {
	server := newTestServer(t, &pose.Mock{})

	resp, err := server.engine.Test(httptest.NewRequest(http.MethodGet, "/api/v1/posture/history", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}

func TestUnknownRouteUsesErrorShape(t *testing.T) {
	server := newTestServer(t, &pose.Mock{})

	resp, err := server.engine.Test(httptest.NewRequest(http.MethodGet, "/nope", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body map[string]string
	require.NoError(t, jsoniter.NewDecoder(resp.Body).Decode(&body))
	require.NotEmpty(t, body["error"])
}

func TestShutdownClosesEstimator(t *testing.T) {
	estimator := &pose.Mock{}
	server := newTestServer(t, estimator)

	require.NoError(t, server.Shutdown(time.Second))
	require.True(t, estimator.Closed())
}

package posture

import (
	"PostureGuard/pkg/response"
	"net/http"
)

var (
	ErrImageRequired    = response.NewError(http.StatusBadRequest, "image is required")
	ErrInvalidImage     = response.NewError(http.StatusBadRequest, "image could not be decoded")
	ErrInvalidRequest   = response.NewError(http.StatusBadRequest, "invalid request")
	ErrInvalidSessionID = response.NewError(http.StatusBadRequest, "session_id is invalid")
	ErrPoseEstimation   = response.NewError(http.StatusBadGateway, "pose estimation failed")
	ErrPoseUnavailable  = response.NewError(http.StatusServiceUnavailable, "pose estimator unavailable")
	ErrAnalysisNotFound = response.NewError(http.StatusNotFound, "posture analysis not found")
	ErrHistoryDisabled  = response.NewError(http.StatusNotImplemented, "posture history is disabled")
)

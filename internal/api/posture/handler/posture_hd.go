package postureHandler

import (
	"PostureGuard/internal/api/posture"
	"PostureGuard/internal/entity"
	contextPkg "PostureGuard/pkg/context"
	"PostureGuard/pkg/handlerUtil"
	"PostureGuard/pkg/log"
	"errors"
	"github.com/gofiber/fiber/v2"
	"golang.org/x/net/context"
	"strings"
	"time"
)

func (h *PostureHandler) Analyze(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
	}).Debug("Processing posture analysis request")

	var result *entity.AnalysisResult
	var err error

	file, err := ctx.FormFile("image")
	if err == nil {
		h.log.WithFields(log.Fields{
			"request_id": requestID,
			"path":       ctx.Path(),
			"file_name":  file.Filename,
			"file_size":  file.Size,
		}).Debug("Processing file upload")

		sessionID := ctx.FormValue("session_id")
		if err := h.validator.Var(sessionID, "omitempty,max=64,printascii"); err != nil {
			return errHandler.Handle(ctx, requestID, posture.ErrInvalidSessionID, ctx.Path(), "validate_session_id")
		}

		data, err := h.utils.ReadImageFile(file)
		if err != nil {
			return errHandler.Handle(ctx, requestID, err, ctx.Path(), "read_image_file")
		}

		result, err = h.postureService.AnalyzeFrame(c, sessionID, data)
		if err != nil {
			return h.handleAnalyzeError(ctx, errHandler, requestID, err)
		}
	} else {
		h.log.WithFields(log.Fields{
			"request_id": requestID,
			"path":       ctx.Path(),
		}).Debug("Processing JSON request")

		if len(ctx.Body()) == 0 {
			return errHandler.Handle(ctx, requestID, posture.ErrImageRequired, ctx.Path(), "parse_request_body")
		}

		var req posture.AnalyzeRequest
		if err := ctx.BodyParser(&req); err != nil {
			return errHandler.Handle(ctx, requestID, posture.ErrInvalidRequest, ctx.Path(), "parse_request_body")
		}

		if strings.TrimSpace(req.Image) == "" {
			return errHandler.Handle(ctx, requestID, posture.ErrImageRequired, ctx.Path(), "validate_image")
		}

		if err := h.validator.Struct(req); err != nil {
			return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
		}

		result, err = h.postureService.Analyze(c, req)
		if err != nil {
			return h.handleAnalyzeError(ctx, errHandler, requestID, err)
		}
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		h.log.WithFields(log.Fields{
			"request_id":  requestID,
			"path":        ctx.Path(),
			"bad_posture": result.BadPosture,
			"issues":      len(result.Issues),
		}).Info("Posture analysis successful")
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, posture.AnalyzeResponse{
			BadPosture: result.BadPosture,
			Issues:     result.Issues,
		})
	}
}

func (h *PostureHandler) handleAnalyzeError(ctx *fiber.Ctx, errHandler *handlerUtil.ErrorHandler, requestID string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errHandler.HandleRequestTimeout(ctx)
	}
	return errHandler.Handle(ctx, requestID, err, ctx.Path(), "analyze_posture")
}

func (h *PostureHandler) GetHistory(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
	}).Debug("Processing posture history request")

	var query posture.HistoryQuery
	if err := ctx.QueryParser(&query); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	if err := h.validator.Struct(query); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	analyses, err := h.postureService.GetHistory(c, query.SessionID, query.Limit)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_history")
	}

	response := posture.HistoryResponse{
		Analyses: make([]posture.AnalysisResponse, 0, len(analyses)),
		Count:    len(analyses),
	}
	for _, analysis := range analyses {
		response.Analyses = append(response.Analyses, toAnalysisResponse(analysis))
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, response)
	}
}

func (h *PostureHandler) GetAnalysisByID(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	id := ctx.Params("id")
	if id == "" {
		return errHandler.HandleValidationError(ctx, requestID,
			errors.New("analysis ID is required"), ctx.Path())
	}

	analysis, err := h.postureService.GetAnalysisByID(c, id)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_analysis")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, toAnalysisResponse(analysis))
	}
}

func (h *PostureHandler) GetSessionSummary(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	sessionID := ctx.Params("session_id")
	if err := h.validator.Var(sessionID, "required,max=64,printascii"); err != nil {
		return errHandler.Handle(ctx, requestID, posture.ErrInvalidSessionID, ctx.Path(), "validate_session_id")
	}

	summary, err := h.postureService.GetSessionSummary(c, sessionID)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_session_summary")
	}

	response := posture.SessionSummaryResponse{
		SessionID:      summary.SessionID,
		TotalFrames:    summary.TotalFrames,
		BadFrames:      summary.BadFrames,
		BadRatio:       summary.BadRatio(),
		FramesReceived: summary.FramesReceived,
	}
	if !summary.FirstAt.IsZero() {
		response.FirstAt = &summary.FirstAt
	}
	if !summary.LastAt.IsZero() {
		response.LastAt = &summary.LastAt
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, response)
	}
}

func (h *PostureHandler) DeleteSession(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	sessionID := ctx.Params("session_id")
	if err := h.validator.Var(sessionID, "required,max=64,printascii"); err != nil {
		return errHandler.Handle(ctx, requestID, posture.ErrInvalidSessionID, ctx.Path(), "validate_session_id")
	}

	deleted, err := h.postureService.DeleteSession(c, sessionID)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "delete_session")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		h.log.WithFields(log.Fields{
			"request_id": requestID,
			"session_id": sessionID,
			"deleted":    deleted,
		}).Info("Posture session deleted")
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, fiber.Map{
			"session_id": sessionID,
			"deleted":    deleted,
		})
	}
}

func toAnalysisResponse(analysis entity.PostureAnalysis) posture.AnalysisResponse {
	return posture.AnalysisResponse{
		ID:          analysis.ID,
		SessionID:   analysis.SessionID,
		Frame:       analysis.Frame,
		BadPosture:  analysis.BadPosture,
		Issues:      analysis.IssueList(),
		SnapshotURL: analysis.SnapshotURL,
		CreatedAt:   analysis.CreatedAt,
	}
}

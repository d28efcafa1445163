package postureHandler

import (
	"PostureGuard/internal/api/posture"
	"PostureGuard/internal/entity"
	"PostureGuard/internal/middleware"
	contextPkg "PostureGuard/pkg/context"
	"PostureGuard/pkg/log"
	"PostureGuard/pkg/response"
	"bytes"
	"errors"
	"github.com/gofiber/fiber/v2"
	fiberUtils "github.com/gofiber/fiber/v2/utils"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"golang.org/x/net/context"
	"time"
)

const (
	streamReadTimeout  = 60 * time.Second
	streamWriteTimeout = 10 * time.Second
	streamFrameTimeout = 10 * time.Second

	// streamReadLimit matches the fiber BodyLimit for HTTP uploads.
	streamReadLimit = 20 * 1024 * 1024
)

// handleStreamWebSocket analyses one frame per message. Binary messages carry
// raw image bytes, text messages a data URL or an analyze request object.
func (h *PostureHandler) handleStreamWebSocket(c *websocket.Conn) {
	requestID, _ := c.Locals(middleware.RequestIDKey).(string)
	sessionID := c.Query("session_id")
	if err := h.validator.Var(sessionID, "omitempty,max=64,printascii"); err != nil {
		h.log.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Warn("Rejected posture stream with invalid session_id")
		h.rejectStream(c, posture.ErrInvalidSessionID)
		return
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	logger := h.log.WithFields(log.Fields{
		"request_id": requestID,
		"session_id": sessionID,
	})
	c.SetReadLimit(streamReadLimit)
	logger.Info("Posture stream client connected")
	defer logger.Info("Posture stream client disconnected")

	c.SetPingHandler(func(data string) error {
		logger.Debug("Received ping, sending pong")
		if err := c.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second)); err != nil {
			logger.Errorf("Error sending pong: %v", err)
		}
		return nil
	})

	baseCtx := contextPkg.WithRequestID(context.Background(), requestID)

	for {
		if err := c.SetReadDeadline(time.Now().Add(streamReadTimeout)); err != nil {
			logger.Errorf("Error setting read deadline: %v", err)
			break
		}

		messageType, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Errorf("Posture stream error: %v", err)
			} else {
				logger.Info("Posture stream connection closed")
			}
			break
		}

		var payload interface{}
		switch messageType {
		case websocket.BinaryMessage, websocket.TextMessage:
			result, err := h.analyzeMessage(baseCtx, sessionID, messageType, message)
			if err != nil {
				logger.WithField("error", err.Error()).Warn("Error processing posture frame")
				payload = posture.StreamError{Error: streamErrorMessage(err)}
			} else {
				payload = posture.AnalyzeResponse{
					BadPosture: result.BadPosture,
					Issues:     result.Issues,
				}
			}
		default:
			logger.Warnf("Received unexpected message type: %d", messageType)
			continue
		}

		if err := c.SetWriteDeadline(time.Now().Add(streamWriteTimeout)); err != nil {
			logger.Errorf("Error setting write deadline: %v", err)
			break
		}

		if err := c.WriteJSON(payload); err != nil {
			logger.Errorf("Error writing JSON response: %v", err)
			break
		}

		if err := c.SetWriteDeadline(time.Time{}); err != nil {
			logger.Errorf("Error resetting write deadline: %v", err)
			break
		}
	}
}

// rejectStream reports err to the client and closes the connection.
func (h *PostureHandler) rejectStream(c *websocket.Conn, err error) {
	deadline := time.Now().Add(streamWriteTimeout)
	if err := c.SetWriteDeadline(deadline); err != nil {
		return
	}
	if werr := c.WriteJSON(posture.StreamError{Error: streamErrorMessage(err)}); werr != nil {
		h.log.Errorf("Error writing stream rejection: %v", werr)
		return
	}
	closeMsg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error())
	if werr := c.WriteControl(websocket.CloseMessage, closeMsg, deadline); werr != nil {
		h.log.Debugf("Error sending close frame: %v", werr)
	}
}

func (h *PostureHandler) analyzeMessage(ctx context.Context, sessionID string, messageType int, message []byte) (*entity.AnalysisResult, error) {
	c, cancel := context.WithTimeout(ctx, streamFrameTimeout)
	defer cancel()

	if messageType == websocket.BinaryMessage {
		return h.postureService.AnalyzeFrame(c, sessionID, message)
	}

	req := posture.AnalyzeRequest{SessionID: sessionID}
	trimmed := bytes.TrimSpace(message)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		if err := jsoniter.Unmarshal(trimmed, &req); err != nil {
			return nil, posture.ErrInvalidRequest
		}
		if req.SessionID == "" {
			req.SessionID = sessionID
		}
		if req.Image != "" {
			if err := h.validator.Struct(req); err != nil {
				return nil, posture.ErrInvalidRequest
			}
		}
	} else {
		req.Image = string(trimmed)
	}

	return h.postureService.Analyze(c, req)
}

func streamErrorMessage(err error) string {
	var respErr *response.Error
	switch {
	case errors.As(err, &respErr):
		return respErr.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return fiberUtils.StatusMessage(fiber.StatusRequestTimeout)
	default:
		return "An unexpected error occurred"
	}
}

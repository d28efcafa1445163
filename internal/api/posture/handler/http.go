package postureHandler

import (
	postureService "PostureGuard/internal/api/posture/service"
	"PostureGuard/internal/middleware"
	"PostureGuard/pkg/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

type PostureHandler struct {
	log            *logrus.Logger
	validator      *validator.Validate
	middleware     middleware.Middleware
	postureService postureService.IPostureService
	utils          utils.IUtils
}

func New(
	log *logrus.Logger,
	validator *validator.Validate,
	middleware middleware.Middleware,
	ps postureService.IPostureService,
	utils utils.IUtils,
) *PostureHandler {
	return &PostureHandler{
		postureService: ps,
		log:            log,
		validator:      validator,
		middleware:     middleware,
		utils:          utils,
	}
}

func (h *PostureHandler) Start(srv fiber.Router) {
	wsMiddleware := func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}

	posture := srv.Group("/posture")
	posture.Post("/analyze", h.middleware.NewRateLimiter, h.Analyze)

	posture.Use("/ws", wsMiddleware)
	posture.Get("/ws", websocket.New(h.handleStreamWebSocket))

	posture.Get("/history", h.GetHistory)
	posture.Get("/history/:id", h.GetAnalysisByID)

	posture.Get("/sessions/:session_id/summary", h.GetSessionSummary)
	posture.Delete("/sessions/:session_id", h.DeleteSession)
}

// StartLegacy mounts the unversioned analyze route used by older clients.
func (h *PostureHandler) StartLegacy(srv fiber.Router) {
	srv.Post("/analyze", h.middleware.NewRateLimiter, h.Analyze)
}

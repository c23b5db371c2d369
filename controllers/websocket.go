package controllers

import (
	"musicschool_go/models"
	"musicschool_go/services/websocket"

	"github.com/gofiber/fiber/v2"
	fiberws "github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

type WebSocketController struct {
	hub *websocket.Hub
}

func NewWebSocketController(hub *websocket.Hub) *WebSocketController {
	return &WebSocketController{hub: hub}
}

// RequireUpgrade rejects plain HTTP requests to the websocket endpoint
func (wsc *WebSocketController) RequireUpgrade(c *fiber.Ctx) error {
	if !fiberws.IsWebSocketUpgrade(c) {
		return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{
			"error": "Use the WebSocket endpoint: ws://<host>/ws?token=YOUR_JWT",
		})
	}
	return c.Next()
}

// WebSocketHandler attaches an authenticated connection to the hub. It runs
// after JWTMiddleware, which accepts the token as a query parameter.
func (wsc *WebSocketController) WebSocketHandler() fiber.Handler {
	return fiberws.New(func(conn *fiberws.Conn) {
		defer func() {
			if r := recover(); r != nil {
				logrus.WithField("panic", r).Error("WebSocket handler panic")
			}
		}()

		user, ok := conn.Locals("user").(*models.User)
		if !ok {
			_ = conn.WriteMessage(fiberws.CloseMessage, fiberws.FormatCloseMessage(fiberws.ClosePolicyViolation, "unauthorized"))
			conn.Close()
			return
		}

		log := logrus.WithFields(logrus.Fields{"user_id": user.ID, "username": user.Username})
		log.Info("WebSocket connection established")
		wsc.hub.ServeFiberWS(conn, user.ID)
		log.Info("WebSocket connection closed")
	})
}

// GetWebSocketStats returns connection statistics
func (wsc *WebSocketController) GetWebSocketStats(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "active",
		"stats":  wsc.hub.Stats(),
	})
}

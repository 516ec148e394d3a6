// internal/handlers/ws/ws_handler.go
package ws

import (
	"net/http"

	"telecrm-service/internal/middleware"
	ws "telecrm-service/internal/websocket"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WSHandler struct {
	hub    *ws.Hub
	logger *zap.Logger
}

func NewWSHandler(hub *ws.Hub, logger *zap.Logger) *WSHandler {
	return &WSHandler{
		hub:    hub,
		logger: logger,
	}
}

// Connect upgrades the request and keeps the socket open for assignment
// notifications. Auth runs through the normal middleware; browsers pass
// the token as a query parameter.
func (h *WSHandler) Connect(c *gin.Context) {
	actor := middleware.MustGetActor(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("ws upgrade failed", zap.Int64("user_id", actor.ID), zap.Error(err))
		return
	}

	client := ws.NewClient(h.hub, conn, actor.ID)
	h.hub.Register <- client
	client.Start()
}

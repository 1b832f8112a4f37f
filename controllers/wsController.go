package controllers

import (
	"log/slog"
	"net/http"

	"civictrack/middlewares"
	"civictrack/ws"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type WSController struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
}

func NewWSController(hub *ws.Hub, allowedOrigin string) *WSController {
	return &WSController{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origin == allowedOrigin
			},
		},
	}
}

// Connect upgrades GET /ws and joins the user's private room plus their
// department room when they have one.
func (ctl *WSController) Connect(c *gin.Context) {
	user := middlewares.CurrentUser(c)

	conn, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.WarnContext(c.Request.Context(), "websocket upgrade failed", "error", err)
		return
	}

	client := ctl.hub.Register(conn)
	rooms := []string{ws.UserRoom(user.ID)}
	if user.Department != nil {
		rooms = append(rooms, ws.DepartmentRoom(*user.Department))
	}
	for _, room := range rooms {
		if err := ctl.hub.JoinRoom(client.ID, room); err != nil {
			slog.WarnContext(c.Request.Context(), "failed to join room", "room", room, "error", err)
		}
	}
	slog.DebugContext(c.Request.Context(), "websocket connected", "conn", client.ID, "user", user.ID.Hex())

	client.Serve()
}

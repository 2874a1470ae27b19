package ws

import (
	"log"
	"net/http"
	"os"

	"pong_arena/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// WSHandler содержит зависимости для обработки WebSocket-подключений.
type WSHandler struct {
	Hub  *Hub
	Auth *service.AuthService
}

func NewWSHandler(hub *Hub, auth *service.AuthService) *WSHandler {
	return &WSHandler{Hub: hub, Auth: auth}
}

func (h *WSHandler) HandleWS() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "токен обязателен"})
			return
		}

		identity, err := h.Auth.ParseToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "неверный токен"})
			return
		}

		allowedOrigin := os.Getenv("ALLOWED_ORIGIN")
		upgrader := websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if allowedOrigin == "" {
					return true
				}
				return r.Header.Get("Origin") == allowedOrigin
			},
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Println("ошибка обновления ws:", err)
			return
		}

		client := NewClient(identity.UserID, identity.Username, conn, h.Hub)
		go client.Run()
	}
}

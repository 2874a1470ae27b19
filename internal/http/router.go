package http

import (
	"pong_arena/internal/http/handlers"
	"pong_arena/internal/http/middleware"
	"pong_arena/internal/ws"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes вешает все маршруты сервиса на роутер.
func RegisterRoutes(r *gin.Engine, h *handlers.Handler, wsHandler *ws.WSHandler) {
	r.GET("/health", h.Health)
	r.GET("/ws", wsHandler.HandleWS())

	api := r.Group("/api/v1")
	api.POST("/auth/guest", h.GuestAuth)

	authed := api.Group("")
	authed.Use(middleware.Auth(h.Auth), middleware.RateLimit())
	{
		authed.GET("/state", h.State)
		authed.GET("/profile/:id", h.Profile)
		authed.GET("/matches", h.MyMatches)

		authed.POST("/tournaments", h.CreateTournament)
		authed.GET("/tournaments", h.RecentTournaments)
		authed.GET("/tournaments/:id", h.GetTournament)
		authed.POST("/tournaments/:id/join", h.JoinTournament)
		authed.POST("/tournaments/:id/start", h.StartTournament)
		authed.POST("/tournaments/:id/ready", h.ReadyTournament)
		authed.POST("/tournaments/:id/forfeit", h.ForfeitTournament)
		authed.POST("/tournaments/:id/quit", h.QuitTournament)
	}
}

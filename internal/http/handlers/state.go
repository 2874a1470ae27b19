package handlers

import (
	"net/http"

	"pong_arena/internal/http/middleware"

	"github.com/gin-gonic/gin"
)

// State - авторитетный снимок для реконсиляции после реконнекта.
// Клиентский кэш всегда подозревается в протухании: что здесь не
// вернулось, того больше нет, локальную копию следует выбросить.
func (h *Handler) State(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}

	state := h.Hub.StateFor(userID)
	c.JSON(http.StatusOK, state)
}

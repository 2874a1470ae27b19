package handlers

import (
	"net/http"
	"strings"

	"pong_arena/internal/logger"

	"github.com/gin-gonic/gin"
)

type guestRequest struct {
	Username string `json:"username"`
}

// GuestAuth выдает гостевую идентичность: отрицательный id и
// короткоживущий токен. Регистрация не требуется.
func (h *Handler) GuestAuth(c *gin.Context) {
	var req guestRequest
	_ = c.ShouldBindJSON(&req)

	name := strings.TrimSpace(req.Username)
	if name == "" {
		name = "guest"
	}
	if len(name) > 32 {
		name = name[:32]
	}

	token, identity, err := h.Auth.IssueGuestToken(name)
	if err != nil {
		logger.Error("не удалось выдать гостевой токен", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":    token,
		"user_id":  identity.UserID,
		"username": identity.Username,
		"guest":    true,
	})
}

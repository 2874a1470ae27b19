package handlers

import (
	"net/http"
	"strconv"

	"pong_arena/internal/http/middleware"

	"github.com/gin-gonic/gin"
)

// Получение профиля игрока по id
func (h *Handler) Profile(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	if h.UserRepo == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "profiles disabled"})
		return
	}

	user, err := h.UserRepo.GetByID(c.Request.Context(), id)
	if err != nil || user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":         user.ID,
		"username":   user.Username,
		"created_at": user.CreatedAt,
		"wins":       user.Wins,
		"losses":     user.Losses,
	})
}

// Получение истории матчей текущего пользователя
func (h *Handler) MyMatches(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	if h.MatchRepo == nil {
		c.JSON(http.StatusOK, gin.H{"matches": []any{}})
		return
	}

	matches, err := h.MatchRepo.ListByUser(c.Request.Context(), userID, 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load matches"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"matches": matches})
}

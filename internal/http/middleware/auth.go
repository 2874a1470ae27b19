package middleware

import (
	"net/http"
	"strings"

	"pong_arena/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	ctxUserID   = "userID"
	ctxUsername = "username"
	ctxGuest    = "guest"
)

// Auth проверяет JWT из заголовка Authorization (Bearer) либо из
// query-параметра token и кладет идентичность в контекст запроса.
func Auth(auth *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ""
		if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
			token = strings.TrimPrefix(h, "Bearer ")
		} else {
			token = c.Query("token")
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		identity, err := auth.ParseToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(ctxUserID, identity.UserID)
		c.Set(ctxUsername, identity.Username)
		c.Set(ctxGuest, identity.Guest)
		c.Next()
	}
}

// UserID достает id пользователя, положенный Auth.
func UserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(ctxUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

// Username достает имя пользователя из контекста запроса.
func Username(c *gin.Context) string {
	v, ok := c.Get(ctxUsername)
	if !ok {
		return ""
	}
	name, _ := v.(string)
	return name
}

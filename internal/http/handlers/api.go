package handlers

import (
	"net/http"

	"pong_arena/internal/domain"
	"pong_arena/internal/repository"
	"pong_arena/internal/service"
	"pong_arena/internal/ws"

	"github.com/gin-gonic/gin"
)

// Handler несет зависимости REST-слоя. Репозитории nil-safe: без
// DATABASE_URL профили и история отключены, игра работает.
type Handler struct {
	Auth        *service.AuthService
	Tournaments *service.TournamentService
	Hub         *ws.Hub

	UserRepo       *repository.UserRepository
	MatchRepo      *repository.MatchRepository
	TournamentRepo *repository.TournamentRepository

	Version string
}

// Health - проверка живости для балансировщика.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": h.Version})
}

// writeErr переводит доменную ошибку в HTTP-ответ с машинным кодом.
func writeErr(c *gin.Context, err error) {
	coded, ok := domain.AsCoded(err)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(statusFor(coded.Code), gin.H{"error": coded.Code, "message": coded.Message})
}

func statusFor(code string) int {
	switch code {
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeNotOwner, domain.CodeNotParticipant:
		return http.StatusForbidden
	case domain.CodeInvalidAlias, domain.CodeInvalidName:
		return http.StatusBadRequest
	case domain.CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		// конфликты состояния: занят, заполнен, не в той фазе
		return http.StatusConflict
	}
}

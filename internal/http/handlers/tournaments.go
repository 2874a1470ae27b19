package handlers

import (
	"net/http"

	"pong_arena/internal/http/middleware"

	"github.com/gin-gonic/gin"
)

type createTournamentRequest struct {
	Name  string `json:"name"`
	Alias string `json:"alias"`
}

type joinTournamentRequest struct {
	Alias string `json:"alias"`
}

// CreateTournament создает турнир; создатель занимает первый слот.
func (h *Handler) CreateTournament(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}

	var req createTournamentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	t, err := h.Tournaments.Create(userID, req.Alias, req.Name)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"tournament": t})
}

// JoinTournament добавляет участника в ожидающий турнир.
func (h *Handler) JoinTournament(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}

	var req joinTournamentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	t, err := h.Tournaments.Join(c.Param("id"), userID, req.Alias)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tournament": t})
}

// StartTournament запускает сетку. Только владелец, ровно 4 игрока.
func (h *Handler) StartTournament(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}

	t, err := h.Tournaments.Start(c.Param("id"), userID)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tournament": t})
}

// ReadyTournament отмечает готовность игрока в его текущей паре.
func (h *Handler) ReadyTournament(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}

	if err := h.Tournaments.Ready(c.Param("id"), userID); err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// ForfeitTournament - добровольный выход из идущего турнира, считается
// форфейтом текущей пары.
func (h *Handler) ForfeitTournament(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}

	if err := h.Tournaments.Leave(c.Param("id"), userID); err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "forfeited"})
}

// QuitTournament освобождает слот после завершения турнира.
func (h *Handler) QuitTournament(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}

	if err := h.Tournaments.Quit(c.Param("id"), userID); err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "quit"})
}

// GetTournament возвращает снимок сетки по id.
func (h *Handler) GetTournament(c *gin.Context) {
	t, err := h.Tournaments.Get(c.Param("id"))
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tournament": t})
}

// RecentTournaments - список последних завершенных турниров из истории.
func (h *Handler) RecentTournaments(c *gin.Context) {
	if h.TournamentRepo == nil {
		c.JSON(http.StatusOK, gin.H{"tournaments": []any{}})
		return
	}
	rows, err := h.TournamentRepo.ListRecent(c.Request.Context(), 20)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tournaments": rows})
}

package domain

import "time"

type MatchStatus string

const (
	MatchWaiting  MatchStatus = "waiting"
	MatchPlaying  MatchStatus = "playing"
	MatchFinished MatchStatus = "finished"
)

// TournamentContext привязывает матч к слоту сетки турнира.
// nil-указатель означает обычный матч 1v1 вне турнира - факт
// "турнирности" матча выражается одним тегом, а не двумя
// независимыми опциональными полями.
type TournamentContext struct {
	TournamentID string `json:"tournamentId"`
	MatchID      string `json:"matchId"`
}

type Ball struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	VX     float64 `json:"vx"`
	VY     float64 `json:"vy"`
	Radius float64 `json:"radius"`
}

type Paddle struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	W     float64 `json:"w"`
	H     float64 `json:"h"`
	Score int     `json:"score"`
}

// MatchState - авторитетный снимок симуляции, рассылаемый обоим
// клиентам в порядке поколений (Seq монотонно растет).
type MatchState struct {
	ID        string             `json:"id"`
	Player1ID int64              `json:"player1Id"`
	Player2ID int64              `json:"player2Id"`
	Status    MatchStatus        `json:"status"`
	Ball      Ball               `json:"ball"`
	Paddle1   Paddle             `json:"paddle1"`
	Paddle2   Paddle             `json:"paddle2"`
	Seq       uint64             `json:"seq"`
	Context   *TournamentContext `json:"tournamentContext,omitempty"`
}

// MatchSummary - итог завершенного матча.
type MatchSummary struct {
	WinnerID int64  `json:"winnerId"`
	Score1   int    `json:"score1"`
	Score2   int    `json:"score2"`
	Reason   string `json:"reason"`
}

// Причины завершения матча.
const (
	FinishReasonScore      = "score_limit"
	FinishReasonForfeit    = "opponent_forfeit"
	FinishReasonDisconnect = "opponent_disconnected"
)

type MatchResult string

const (
	MatchResultWin  MatchResult = "win"
	MatchResultLose MatchResult = "lose"
)

// MatchHistory - строка истории для одного участника матча.
type MatchHistory struct {
	ID            int64              `db:"id" json:"id"`
	UserID        int64              `db:"user_id" json:"user_id"`
	OpponentID    int64              `db:"opponent_id" json:"opponent_id"`
	MatchID       string             `db:"match_id" json:"match_id"`
	Result        MatchResult        `db:"result" json:"result"`
	ScoreFor      int                `db:"score_for" json:"score_for"`
	ScoreAgainst  int                `db:"score_against" json:"score_against"`
	Reason        string             `db:"reason" json:"reason"`
	Context       *TournamentContext `db:"-" json:"tournament_context,omitempty"`
	CreatedAt     time.Time          `db:"created_at" json:"created_at"`
}

package domain

import "time"

type TournamentStatus string

const (
	TournamentWaiting   TournamentStatus = "waiting"
	TournamentActive    TournamentStatus = "active"
	TournamentFinished  TournamentStatus = "finished"
	TournamentCancelled TournamentStatus = "cancelled"
)

// IsTerminal сообщает, достиг ли турнир конечного состояния.
func (s TournamentStatus) IsTerminal() bool {
	return s == TournamentFinished || s == TournamentCancelled
}

type PairingStatus string

const (
	PairingPending  PairingStatus = "pending"
	PairingActive   PairingStatus = "active"
	PairingFinished PairingStatus = "finished"
)

// Ровно столько игроков требуется для старта сетки.
const TournamentSize = 4

// TournamentPlayer - участник турнира. Alias стабилен на все время
// турнира (включая реконнекты), UserID может быть nil для слота,
// чей владелец еще не подтвержден.
type TournamentPlayer struct {
	Alias  string `json:"alias"`
	UserID *int64 `json:"userId"`
}

// Pairing - один слот матча внутри раунда сетки.
// pending -> active только когда оба флага готовности выставлены до
// ReadyDeadline; active -> finished когда завершается лежащий под ним матч.
type Pairing struct {
	MatchID       string        `json:"matchId"`
	Round         int           `json:"round"`
	Player1Alias  string        `json:"player1Alias"`
	Player2Alias  string        `json:"player2Alias"`
	Player1UserID *int64        `json:"player1UserId"`
	Player2UserID *int64        `json:"player2UserId"`
	Status        PairingStatus `json:"status"`
	P1Ready       bool          `json:"p1Ready"`
	P2Ready       bool          `json:"p2Ready"`
	ReadyDeadline *time.Time    `json:"readyDeadline"`
	WinnerAlias   string        `json:"winnerAlias,omitempty"`
}

// HasPlayer сообщает, занимает ли алиас один из слотов пары.
func (p *Pairing) HasPlayer(alias string) bool {
	return p.Player1Alias == alias || p.Player2Alias == alias
}

type Tournament struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Status       TournamentStatus   `json:"status"`
	OwnerID      int64              `json:"ownerId"`
	OwnerAlias   string             `json:"ownerAlias"`
	Players      []TournamentPlayer `json:"players"`
	CurrentRound int                `json:"currentRound"`
	Pairings     []*Pairing         `json:"pairings"`
	Champion     *TournamentPlayer  `json:"champion"`
	CreatedAt    time.Time          `json:"createdAt"`
}

// TournamentHistory - строка истории завершенного турнира.
type TournamentHistory struct {
	ID            int64     `db:"id"`
	TournamentID  string    `db:"tournament_id"`
	Name          string    `db:"name"`
	Status        string    `db:"status"`
	ChampionAlias *string   `db:"champion_alias"`
	ChampionID    *int64    `db:"champion_id"`
	Rounds        int       `db:"rounds"`
	CreatedAt     time.Time `db:"created_at"`
}

package domain

import "time"

type ChallengeStatus string

const (
	ChallengeSent      ChallengeStatus = "sent"
	ChallengeAccepted  ChallengeStatus = "accepted"
	ChallengeDeclined  ChallengeStatus = "declined"
	ChallengeCancelled ChallengeStatus = "cancelled"
	ChallengeExpired   ChallengeStatus = "expired"
)

// Challenge - одиночное приглашение 1v1. Между упорядоченной парой
// игроков может существовать не более одного открытого приглашения;
// пересекающиеся приглашения отклоняются, а не ставятся в очередь.
type Challenge struct {
	ID           string          `json:"id"`
	ChallengerID int64           `json:"challengerId"`
	ChallengedID int64           `json:"challengedId"`
	Status       ChallengeStatus `json:"status"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// Open сообщает, ожидает ли приглашение ответа.
func (c *Challenge) Open() bool {
	return c.Status == ChallengeSent
}

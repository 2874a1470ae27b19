package domain

import "time"

type User struct {
	ID        int64     `db:"id" json:"id"`
	Username  string    `db:"username" json:"username"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	Wins      int64     `db:"wins" json:"wins"`
	Losses    int64     `db:"losses" json:"losses"`
}

// IsGuest сообщает, является ли идентификатор синтетическим гостевым.
// Гости получают отрицательные id и не хранятся в базе.
func IsGuest(userID int64) bool {
	return userID < 0
}

// Presence - онлайн/оффлайн статус идентификатора.
// Используется только для проверки доступности цели вызова,
// инвариантов не несет.
type Presence struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	IsOnline bool   `json:"isOnline"`
}

package repository

import (
	"context"

	"pong_arena/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// получает пользователя по id
func (r *UserRepository) GetByID(ctx context.Context, userID int64) (*domain.User, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, username, created_at, wins, losses
		FROM users
		WHERE id = $1
	`, userID)

	var u domain.User
	if err := row.Scan(&u.ID, &u.Username, &u.CreatedAt, &u.Wins, &u.Losses); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// создает пользователя либо обновляет username существующего
func (r *UserRepository) GetOrCreate(ctx context.Context, userID int64, username string) (*domain.User, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO users (id, username, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (id) DO UPDATE SET username = EXCLUDED.username
		RETURNING id, username, created_at, wins, losses
	`, userID, username)

	var u domain.User
	if err := row.Scan(&u.ID, &u.Username, &u.CreatedAt, &u.Wins, &u.Losses); err != nil {
		return nil, err
	}
	return &u, nil
}

// RecordResult обновляет счетчики побед/поражений обеих сторон одной
// транзакцией. Гостевые id отрицательные и в таблицу не пишутся.
func (r *UserRepository) RecordResult(ctx context.Context, winnerID, loserID int64) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if !domain.IsGuest(winnerID) {
		if _, err := tx.Exec(ctx, `
			UPDATE users SET wins = wins + 1 WHERE id = $1
		`, winnerID); err != nil {
			return err
		}
	}
	if !domain.IsGuest(loserID) {
		if _, err := tx.Exec(ctx, `
			UPDATE users SET losses = losses + 1 WHERE id = $1
		`, loserID); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

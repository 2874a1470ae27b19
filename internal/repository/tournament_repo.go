package repository

import (
	"context"

	"pong_arena/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

type TournamentRepository struct {
	db *pgxpool.Pool
}

func NewTournamentRepository(db *pgxpool.Pool) *TournamentRepository {
	return &TournamentRepository{db: db}
}

// пишет итог турнира после терминального состояния
func (r *TournamentRepository) Create(ctx context.Context, h *domain.TournamentHistory) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO tournament_history
			(tournament_id, name, status, champion_alias, champion_id, rounds, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING id
	`, h.TournamentID, h.Name, h.Status, h.ChampionAlias, h.ChampionID, h.Rounds).Scan(&h.ID)
}

// последние завершенные турниры
func (r *TournamentRepository) ListRecent(ctx context.Context, limit int) ([]domain.TournamentHistory, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, tournament_id, name, status, champion_alias, champion_id, rounds, created_at
		FROM tournament_history
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.TournamentHistory
	for rows.Next() {
		var h domain.TournamentHistory
		if err := rows.Scan(
			&h.ID, &h.TournamentID, &h.Name, &h.Status,
			&h.ChampionAlias, &h.ChampionID, &h.Rounds, &h.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

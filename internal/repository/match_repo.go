package repository

import (
	"context"

	"pong_arena/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

type MatchRepository struct {
	db *pgxpool.Pool
}

func NewMatchRepository(db *pgxpool.Pool) *MatchRepository {
	return &MatchRepository{db: db}
}

// пишет строку истории матча с точки зрения одного участника
func (r *MatchRepository) Create(ctx context.Context, h *domain.MatchHistory) error {
	var tournamentID *string
	if h.Context != nil {
		tournamentID = &h.Context.TournamentID
	}

	return r.db.QueryRow(ctx, `
		INSERT INTO match_history
			(user_id, opponent_id, match_id, result, score_for, score_against, reason, tournament_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		RETURNING id
	`, h.UserID, h.OpponentID, h.MatchID, h.Result, h.ScoreFor, h.ScoreAgainst, h.Reason, tournamentID).Scan(&h.ID)
}

// последние матчи пользователя, свежие первыми
func (r *MatchRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]domain.MatchHistory, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, opponent_id, match_id, result, score_for, score_against, reason, created_at
		FROM match_history
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.MatchHistory
	for rows.Next() {
		var h domain.MatchHistory
		if err := rows.Scan(
			&h.ID, &h.UserID, &h.OpponentID, &h.MatchID, &h.Result,
			&h.ScoreFor, &h.ScoreAgainst, &h.Reason, &h.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

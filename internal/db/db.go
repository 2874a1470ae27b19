package db

import (
	"context"
	"time"

	"pong_arena/internal/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect создает пул соединений. Пустой URL - допустимый режим без
// персистентности: история матчей и турниров не пишется.
func Connect(databaseURL string) *pgxpool.Pool {
	if databaseURL == "" {
		logger.Warn("DATABASE_URL не задан, история играется в памяти без записи")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		logger.Fatal("не удалось создать пул postgres", "error", err)
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal("postgres недоступен", "error", err)
	}

	logger.Info("подключение к postgres установлено")
	return pool
}

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pong_arena/internal/config"
	"pong_arena/internal/db"
	httpServer "pong_arena/internal/http"
	"pong_arena/internal/http/handlers"
	"pong_arena/internal/http/middleware"
	"pong_arena/internal/logger"
	"pong_arena/internal/repository"
	"pong_arena/internal/service"
	"pong_arena/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Version устанавливается при сборке
var Version = "dev"

func main() {
	cfg := config.Load()

	// Инициализация структурированного логгера
	logger.Init(cfg.LogLevel, cfg.LogFormat == "json")
	log := logger.Get()

	dbPool := db.Connect(cfg.DatabaseURL)
	if dbPool != nil {
		defer dbPool.Close()
	}

	var (
		userRepo       *repository.UserRepository
		matchRepo      *repository.MatchRepository
		tournamentRepo *repository.TournamentRepository
	)
	if dbPool != nil {
		userRepo = repository.NewUserRepository(dbPool)
		matchRepo = repository.NewMatchRepository(dbPool)
		tournamentRepo = repository.NewTournamentRepository(dbPool)
	}

	authService := service.NewAuthService(cfg.JWTSecret)
	hub := ws.NewHub(matchRepo, userRepo)
	challengeService := service.NewChallengeService(hub, hub)
	tournamentService := service.NewTournamentService(hub, hub, tournamentRepo, service.DefaultTournamentConfig())
	hub.SetChallengeHandler(challengeService)
	hub.SetTournamentHooks(tournamentService)
	hub.StartCleanup()

	r := gin.Default()

	// CORS для прода и связи фронта с бэкендом(разные домены)
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" && (cfg.AllowedOrigin == "" || origin == cfg.AllowedOrigin) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		}
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	middleware.InitRedisRateLimiter(cfg.RedisAddr, cfg.RedisPassword, cfg.RateLimitRPS)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h := &handlers.Handler{
		Auth:           authService,
		Tournaments:    tournamentService,
		Hub:            hub,
		UserRepo:       userRepo,
		MatchRepo:      matchRepo,
		TournamentRepo: tournamentRepo,
		Version:        Version,
	}
	httpServer.RegisterRoutes(r, h, ws.NewWSHandler(hub, authService))

	srv := &http.Server{
		Addr:    ":" + cfg.AppPort,
		Handler: r,
	}

	go func() {
		log.Info("server started", "port", cfg.AppPort, "version", Version)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", "error", err)
	}

	log.Info("server exited")
}

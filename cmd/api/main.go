package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/iamasit07/blockfall/backend/internal/config"
	"github.com/iamasit07/blockfall/backend/internal/logger"
	"github.com/iamasit07/blockfall/backend/internal/repository/postgres"
	"github.com/iamasit07/blockfall/backend/internal/repository/redis"
	"github.com/iamasit07/blockfall/backend/internal/service/cleanup"
	"github.com/iamasit07/blockfall/backend/internal/service/game"
	transportHttp "github.com/iamasit07/blockfall/backend/internal/transport/http"
	"github.com/iamasit07/blockfall/backend/internal/transport/http/middleware"
	"github.com/iamasit07/blockfall/backend/internal/transport/websocket"
	"github.com/iamasit07/blockfall/backend/pkg/auth"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	envErr := godotenv.Load()
	if envErr != nil {
		envErr = godotenv.Load("../.env")
	}

	// 1. Config & logging
	cfg := config.LoadConfig()
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	if envErr != nil {
		log.Info().Msg("no .env file found, using environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Persistence (both optional)
	var opts []game.Option
	var cache, fallback transportHttp.ScoreSource

	var db *sql.DB
	if cfg.DatabaseURL != "" {
		var err error
		db, err = postgres.Open(ctx, cfg.DatabaseURL, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetimeMin)
		if err != nil {
			log.Fatal().Err(err).Msg("database unavailable")
		}
		defer db.Close()

		resultRepo := postgres.NewResultRepo(db)
		opts = append(opts, game.WithResultRepository(resultRepo))
		fallback = resultRepo
	} else {
		log.Warn().Msg("DATABASE_URL not set, results will not be persisted")
	}

	if cfg.RedisEnabled {
		redisClient, err := redis.NewClient(ctx, cfg.RedisURL, cfg.RedisPassword)
		if err != nil {
			log.Fatal().Err(err).Msg("redis init failed")
		}
		if redisClient != nil {
			defer redisClient.Close()
			leaderboard := redis.NewLeaderboard(redisClient)
			opts = append(opts, game.WithLeaderboard(leaderboard))
			cache = leaderboard
		}
	}

	// 3. Services
	connManager := websocket.NewConnectionManager(cfg.ActionRatePerSecond, cfg.ActionBurst)
	roomManager := game.NewRoomManager(connManager, opts...)
	tickets := auth.NewTicketIssuer(cfg.JWTSecret, cfg.TicketTTL)

	cleanup.NewWorker(roomManager, cfg.RoomIdleTimeout).Start(ctx)

	// 4. Handlers
	wsHandler := websocket.NewHandler(connManager, roomManager, tickets, middleware.OriginChecker(cfg.AllowedOrigins))
	roomsHandler := transportHttp.NewRoomsHandler(roomManager)
	leaderboardHandler := transportHttp.NewLeaderboardHandler(cache, fallback)
	authHandler := transportHttp.NewAuthHandler(tickets, cfg.TicketTTL, strings.HasPrefix(cfg.FrontendURL, "https://"))

	// 5. Router
	if strings.ToLower(cfg.LogLevel) != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RequestLogger(), gin.Recovery())
	router.Use(middleware.SecurityHeadersMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	router.GET("/api/rooms", roomsHandler.GetRooms)
	router.GET("/api/leaderboard", leaderboardHandler.GetLeaderboard)
	router.POST("/api/auth/guest", authHandler.GuestLogin)
	router.GET("/api/auth/me", authHandler.Me)
	router.POST("/api/auth/logout", authHandler.Logout)

	// Ticket is checked inside the WS init frame
	router.GET("/ws", wsHandler.HandleWebSocket)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("server is shutting down")

	roomManager.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited gracefully")
}

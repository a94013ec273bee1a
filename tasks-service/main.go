package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/chepyr/go-task-demo/tasks-service/config"
	"github.com/chepyr/go-task-demo/tasks-service/db"
	"github.com/chepyr/go-task-demo/tasks-service/handlers"
	"github.com/chepyr/go-task-demo/tasks-service/logger"
	"github.com/chepyr/go-task-demo/tasks-service/service"
)

func main() {
	bootLogger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		bootLogger.Fatal().
			Err(err).
			Msg("failed to load config")
	}

	log, err := logger.New(cfg.Env, os.Stdout)
	if err != nil {
		bootLogger.Fatal().
			Err(err).
			Msg("failed to init logger")
	}
	log.Info().
		Str("env", cfg.Env).
		Str("db_driver", cfg.DB.Driver).
		Msg("loaded config")

	dbConn := initDB(cfg.DB, log)
	defer dbConn.Close()

	handler := initHandler(cfg, dbConn, log)
	defer handler.RateLimiter.Stop()
	defer handler.WSHub.Close()

	server := &http.Server{
		Addr:    cfg.HTTP.Addr(),
		Handler: handlers.NewRouter(handler),
	}
	startServer(server, cfg.HTTP, log)
}

func initDB(cfg config.DBConfig, log zerolog.Logger) *sql.DB {
	ctx := context.Background()
	dbConn, err := db.Connect(ctx, cfg.Driver, cfg.ConnString(), db.PoolConfig{
		MaxOpenConns: cfg.MaxOpenConns,
		MaxIdleConns: cfg.MaxIdleConns,
	})
	if err != nil {
		log.Fatal().
			Err(err).
			Msg("failed to connect to database")
	}
	if err := db.Migrate(ctx, dbConn, cfg.Driver); err != nil {
		log.Fatal().
			Err(err).
			Msg("failed to migrate database")
	}
	log.Info().Msg("connected to database")
	return dbConn
}

func initHandler(cfg *config.Config, dbConn *sql.DB, log zerolog.Logger) *handlers.Handler {
	tasks := service.NewTaskService(db.NewTaskRepository(dbConn), log)
	return &handlers.Handler{
		Tasks:          tasks,
		RateLimiter:    handlers.NewRateLimiter(cfg.WS.RateLimit, cfg.WS.RateWindow),
		WSHub:          handlers.NewWSHub(log),
		Logger:         log,
		AllowedOrigins: cfg.WS.AllowedOrigins,
		RequestTimeout: cfg.HTTP.RequestTimeout,
		TrustProxy:     cfg.HTTP.TrustProxy,
	}
}

func startServer(server *http.Server, cfg config.HTTPConfig, log zerolog.Logger) {
	log.Info().
		Str("addr", server.Addr).
		Msg("starting tasks server")

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().
				Err(err).
				Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().
			Err(err).
			Msg("server shutdown failed")
		return
	}
	log.Info().Msg("server stopped")
}

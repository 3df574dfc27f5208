package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/quizforge/rewards/internal/auth"
	"github.com/quizforge/rewards/internal/config"
	"github.com/quizforge/rewards/internal/database"
	"github.com/quizforge/rewards/internal/leaderboard"
	"github.com/quizforge/rewards/internal/logger"
	"github.com/quizforge/rewards/internal/middleware"
	"github.com/quizforge/rewards/internal/rewards"
	"github.com/quizforge/rewards/internal/scheduler"
	"github.com/rs/cors"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Initialize database
	if err := database.Migrate(cfg.DBDriver, cfg.DSN()); err != nil {
		log.Fatal("failed to run migrations", "error", err)
	}
	db, err := database.Connect(cfg.DBDriver, cfg.DSN())
	if err != nil {
		log.Fatal("failed to connect to database", "error", err)
	}
	defer db.Close()

	store := rewards.NewStore(db)
	opts := []rewards.Option{}

	// Redis is optional; without it the leaderboard reads from the database.
	var sched *scheduler.Scheduler
	if cfg.RedisAddr != "" {
		client, err := leaderboard.Connect(context.Background(), cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Warn("redis unavailable, leaderboard falls back to database", "error", err)
		} else {
			defer client.Close()
			board := leaderboard.New(client, leaderboard.DefaultKey)
			opts = append(opts, rewards.WithLeaderboard(board))

			sched = scheduler.New(store, board, cfg.LeaderboardSyncInterval, log)
			if err := sched.Start(); err != nil {
				log.Fatal("failed to start scheduler", "error", err)
			}
			defer sched.Stop()
		}
	}

	service := rewards.NewService(store, log, opts...)
	rewardsHandler := rewards.NewHandler(service)
	tokens := auth.NewTokens(cfg.JWTSecret, 0)

	// Setup router
	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()

	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.AuthMiddleware(tokens))
	rewardsHandler.RegisterRoutes(protected)

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           c.Handler(r),
		ReadHeaderTimeout: 10 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("server starting", "addr", srv.Addr, "driver", cfg.DBDriver)
	if err := serve(srv, stop, log); err != nil {
		log.Error("server failed", "error", err)
	}
	log.Info("server stopped")
}

// serve runs srv until a signal arrives on stop or the listener fails, then
// shuts it down. It returns the listener error, if any.
func serve(srv *http.Server, stop <-chan os.Signal, log *logger.Logger) error {
	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	var err error
	select {
	case sig := <-stop:
		log.Info("shutting down", "signal", sig.String())
	case err = <-serveErr:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if shutdownErr := srv.Shutdown(ctx); shutdownErr != nil {
		log.Error("shutdown failed", "error", shutdownErr)
	}
	return err
}

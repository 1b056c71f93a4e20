package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sitechat/livechat/internal/auth"
	"github.com/sitechat/livechat/internal/chat"
	"github.com/sitechat/livechat/internal/config"
	"github.com/sitechat/livechat/internal/db"
	"github.com/sitechat/livechat/internal/logging"
	myMiddleware "github.com/sitechat/livechat/internal/middleware"
	"github.com/sitechat/livechat/internal/user"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and websocket server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Config & Logging
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Log.Format, cfg.Log.Level)

	// 2. Connect to Database (Platform Layer)
	database, err := db.NewDatabase(ctx, cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()
	logger.Info("Connected to PostgreSQL")

	if err := database.AutoMigrate(ctx); err != nil {
		return err
	}

	// 3. Credentials and accounts
	tokens := auth.NewService(cfg.JWTSecret, cfg.TokenTTL)
	userHandler := user.NewHandler(user.NewService(user.NewRepository(database.Conn), tokens))
	authMiddleware := myMiddleware.NewAuthMiddleware(tokens)

	// 4. Chat hub
	chatRepo := chat.NewRepository(database.Conn)
	opts := []chat.Option{
		chat.WithLogger(logger),
		chat.WithHistoryLimit(cfg.Chat.HistoryLimit),
	}
	if cfg.BridgeEnabled() {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.Bridge.RedisAddr})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to bridge redis: %w", err)
		}
		logger.Info("Connected to Redis", "addr", cfg.Bridge.RedisAddr)
		opts = append(opts, chat.WithBridge(chat.NewRedisBridge(redisClient, cfg.Bridge.InboundChannel, cfg.Bridge.OutboundChannel, logger)))
	}
	hub := chat.NewHub(chat.NewRegistry(logger), chatRepo, chatRepo, tokens, opts...)
	chatHandler := chat.NewHandler(hub, cfg.Chat.AllowedOrigins, cfg.Chat.SendBuffer)

	// 5. Routes
	r := newRouter(logger, database, hub, chatHandler, userHandler, authMiddleware, cfg.Chat.Path)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return hub.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("Server starting", "addr", cfg.Addr, "ws_path", cfg.Chat.Path)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newRouter(
	logger *slog.Logger,
	database *db.Database,
	hub *chat.Hub,
	chatHandler *chat.Handler,
	userHandler *user.Handler,
	authMiddleware *myMiddleware.AuthMiddleware,
	wsPath string,
) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(myMiddleware.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	// Public Routes
	r.Get(wsPath, chatHandler.ServeWs)
	r.Get("/api/chat/messages", chatHandler.GetHistory)
	r.Get("/api/chat/stats", chatHandler.GetStats)
	r.Post("/api/login", userHandler.Login)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := database.Ping(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","clients":%d}`, hub.Registry().Count())
	})

	// Protected Routes (Require JWT)
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.Handle)
		r.Get("/api/session", userHandler.Session)
	})

	return r
}

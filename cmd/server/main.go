package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"pong/internal/api"
	"pong/internal/config"
	"pong/internal/invites"
	"pong/internal/jobs"
	"pong/internal/matchmaking"
	"pong/internal/persistence"
	"pong/internal/registry"
	roomManager "pong/internal/room_management"
	"pong/internal/routers"
	"pong/internal/session"
	"pong/internal/utils"
)

// app holds everything main has to start and later tear down.
type app struct {
	log         *zap.Logger
	server      *http.Server
	rooms       *roomManager.Manager
	writer      *persistence.Writer
	reaper      *jobs.WaitingRoomReaper
	rdb         *redis.Client
	redisMirror *session.RedisMirror
	stopSub     context.CancelFunc
	subDone     chan struct{}
}

func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{log: logger, subDone: make(chan struct{})}

	// match records; the game keeps running without a database
	var gateway persistence.Gateway = persistence.NopGateway{}
	var history api.HistoryStore
	db, err := persistence.Open(cfg.Database)
	if err != nil {
		logger.Error("Failed to initialize database, match history will be disabled", zap.Error(err))
	} else {
		repo := persistence.NewMatchRepository(db)
		gateway = repo
		history = repo
	}
	a.writer = persistence.NewWriter(gateway, cfg.Game.PersistBuffer, logger)

	// redis backs the queue, the event mirror and invites when configured
	var store matchmaking.Store = matchmaking.NewMemoryStore()
	var mirror session.Mirror
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Error("Failed to connect to Redis, using in-memory queue", zap.String("addr", cfg.RedisAddr), zap.Error(err))
			rdb.Close()
		} else {
			a.rdb = rdb
			store = matchmaking.NewRedisStore(rdb, matchmaking.DefaultQueueKey)
			a.redisMirror = session.NewRedisMirror(rdb, session.EventsChannel, cfg.Game.MirrorBuffer, logger)
			mirror = a.redisMirror
			logger.Info("Redis connected", zap.String("addr", cfg.RedisAddr))
		}
	}

	hub := session.NewHub(mirror)
	reg := registry.New(registry.JWTResolver{Secret: []byte(cfg.JWTSecret)}, hub, logger)
	a.rooms = roomManager.NewManager(hub, reg, a.writer, roomManager.Options{
		TickInterval:     cfg.Game.TickInterval(),
		ForfeitOnAbandon: cfg.Game.AbandonPolicy == config.AbandonForfeit,
	}, logger)
	queue := matchmaking.NewQueue(store, a.rooms, logger)

	var subCtx context.Context
	subCtx, a.stopSub = context.WithCancel(context.Background())
	if a.rdb != nil {
		sub := invites.NewSubscriber(a.rdb, a.rooms, logger)
		go func() {
			defer close(a.subDone)
			if err := sub.Run(subCtx, nil); err != nil {
				logger.Error("Invite subscriber stopped", zap.Error(err))
			}
		}()
	} else {
		close(a.subDone)
	}

	a.reaper = jobs.NewWaitingRoomReaper(a.rooms, cfg.Game.WaitingTTL, cfg.Game.ReaperSchedule, logger)
	if err := a.reaper.Start(); err != nil {
		a.stopSub()
		return nil, err
	}

	handlers := api.NewHandlers(reg, queue, a.rooms, history, cfg.AllowedOrigins, logger)

	// no WriteTimeout: it would sever long-lived websocket connections
	a.server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           routers.NewRouter(handlers, cfg.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return a, nil
}

// shutdown stops background work first so no new rooms or records appear while the
// HTTP server drains.
func (a *app) shutdown(ctx context.Context) {
	a.reaper.Stop()
	a.stopSub()
	<-a.subDone

	if err := a.rooms.Shutdown(ctx); err != nil {
		a.log.Warn("game loops did not stop in time", zap.Error(err))
	}
	if err := a.server.Shutdown(ctx); err != nil {
		a.log.Error("server forced to shutdown", zap.Error(err))
	}

	a.writer.Close()
	if a.redisMirror != nil {
		a.redisMirror.Close()
	}
	if a.rdb != nil {
		a.rdb.Close()
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot, _ := zap.NewProduction()
		boot.Fatal("Failed to load configuration", zap.Error(err))
	}

	logger, err := utils.NewLogger(cfg.LogLevel)
	if err != nil {
		logger, _ = zap.NewProduction()
		logger.Warn("Invalid log level, using info", zap.String("level", cfg.LogLevel))
	}
	defer logger.Sync()

	logger.Info("Configuration loaded",
		zap.String("port", cfg.Port),
		zap.Int("tickHz", cfg.Game.TickHz),
		zap.String("abandonPolicy", cfg.Game.AbandonPolicy),
		zap.String("dbDriver", cfg.Database.Driver))

	a, err := newApp(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to start pong server", zap.Error(err))
	}

	go func() {
		logger.Info("Pong server starting", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)
	<-shutdownChan

	logger.Info("Pong server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	a.shutdown(ctx)

	logger.Info("Pong server exited")
}

package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/VillePajala/soccer-pre-game-app-sub002/internal/config"
	"github.com/VillePajala/soccer-pre-game-app-sub002/internal/game"
	"github.com/VillePajala/soccer-pre-game-app-sub002/internal/migrate"
	"github.com/VillePajala/soccer-pre-game-app-sub002/internal/opqueue"
	"github.com/VillePajala/soccer-pre-game-app-sub002/internal/store"
)

type App struct {
	cfg config.Config
	log *slog.Logger

	db  *pgxpool.Pool
	rdb *redis.Client

	queue *opqueue.Queue
	loads *opqueue.LoadingRegistry
	svc   *game.Service

	srv *http.Server
}

func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}

	// --- Postgres ---
	dbpool, err := pgxpool.New(ctx, cfg.Postgres.URL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}

	// --- Redis ---
	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
		DB:   cfg.Redis.DB,
	})

	// Quick connectivity checks (fail fast).
	pingCtx, cancel := context.WithTimeout(ctx, 50*time.Second)
	defer cancel()
	if err := dbpool.Ping(pingCtx); err != nil {
		dbpool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	pingErr := rdb.Ping(pingCtx).Err()
	if pingErr != nil {
		dbpool.Close()
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping (%s db=%d): %w", cfg.Redis.Addr, cfg.Redis.DB, pingErr)
	}

	if cfg.Postgres.RunMigrations {
		if err := migrate.Up(cfg.Postgres.URL, cfg.Postgres.MigrationsDir, log); err != nil {
			dbpool.Close()
			_ = rdb.Close()
			return nil, err
		}
	}

	// --- Stores ---
	saved := store.NewSavedGameStore(dbpool)
	checkpoints := store.NewRedisCheckpointStore(rdb, cfg.Redis.CheckpointTTL)

	// --- Background work ---
	queue := opqueue.New(cfg.Game.OpTimeout, log)
	loads := opqueue.NewLoadingRegistry(cfg.Game.LoadingTimeout, log)

	// --- Game ---
	gameCfg := game.Config{
		AutosaveDebounce: cfg.Game.AutosaveDebounce,
		HistoryLimit:     cfg.Game.HistoryLimit,
	}
	svc := game.NewService(gameCfg, saved, checkpoints, queue, loads, log)
	gameSrv := game.NewServer(svc, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	gameSrv.RegisterRoutes(mux)

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}

	return &App{
		cfg:   cfg,
		log:   log,
		db:    dbpool,
		rdb:   rdb,
		queue: queue,
		loads: loads,
		svc:   svc,
		srv:   srv,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	a.log.Info("http server starting", "addr", a.cfg.HTTP.Addr)

	g.Go(func() error {
		err := a.srv.ListenAndServe()
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		a.log.Info("http server shutting down")
		_ = a.srv.Shutdown(shutdownCtx)
		return nil
	})

	err := g.Wait()
	return multierr.Append(err, a.Close(context.Background()))
}

func (a *App) Close(ctx context.Context) error {
	var err error
	if a.svc != nil {
		a.svc.Close()
	}
	if a.queue != nil {
		a.queue.Close()
	}
	if a.loads != nil {
		a.loads.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
	if a.rdb != nil {
		err = multierr.Append(err, a.rdb.Close())
	}
	return err
}

package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	rewardbus "github.com/yungbote/tastequest-backend/internal/clients/redis"
	"github.com/yungbote/tastequest-backend/internal/data/db"
	"github.com/yungbote/tastequest-backend/internal/http"
	"github.com/yungbote/tastequest-backend/internal/observability"
	"github.com/yungbote/tastequest-backend/internal/platform/envutil"
	"github.com/yungbote/tastequest-backend/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	Cfg      Config
	Store    *db.Service
	Metrics  *observability.Metrics
	Clients  Clients
	Repos    Repos
	Services Services
	Router   *gin.Engine

	otelShutdown func(context.Context) error
}

// New builds the logger from LOG_MODE, loads config and wires everything.
func New(ctx context.Context) (*App, error) {
	log, err := logger.New(envutil.String("LOG_MODE", "development"))
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg, err := LoadConfig(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("load config: %w", err)
	}
	a, err := NewWithConfig(ctx, log, cfg)
	if err != nil {
		log.Sync()
		return nil, err
	}
	return a, nil
}

func NewWithConfig(ctx context.Context, log *logger.Logger, cfg Config) (*App, error) {
	if cfg.LogMode == "production" && envutil.String("GIN_MODE", "") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	store, err := openStore(log, cfg)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(store.DB()); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("%s migrate: %w", store.Driver(), err)
	}

	metrics := observability.Init(log, cfg.MetricsEnabled, 10*time.Second)
	otelShutdown := observability.InitOTel(ctx, log, cfg.Otel)

	clients, err := wireClients(log, cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	reposet := wireRepos(store.DB(), log)
	serviceset, err := wireServices(store.DB(), log, cfg, reposet, clients, metrics)
	if err != nil {
		clients.Close()
		_ = store.Close()
		return nil, err
	}
	handlerset := wireHandlers(log, serviceset, store, clients)
	router := wireRouter(log, cfg, metrics, handlerset)

	return &App{
		Log:          log,
		Cfg:          cfg,
		Store:        store,
		Metrics:      metrics,
		Clients:      clients,
		Repos:        reposet,
		Services:     serviceset,
		Router:       router,
		otelShutdown: otelShutdown,
	}, nil
}

func openStore(log *logger.Logger, cfg Config) (*db.Service, error) {
	switch cfg.DBDriver {
	case "postgres":
		s, err := db.NewPostgresService(log, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("init postgres: %w", err)
		}
		return s, nil
	default:
		s, err := db.NewSQLiteService(log, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("init sqlite: %w", err)
		}
		return s, nil
	}
}

// Run serves HTTP and the background collectors until ctx is canceled.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	g, ctx := errgroup.WithContext(ctx)

	a.Metrics.StartStoreCollector(ctx, a.Log, a.Store.DB())
	if a.Cfg.MetricsAddr != "" {
		a.Metrics.StartServer(ctx, a.Log, a.Cfg.MetricsAddr)
	}
	a.Metrics.StartRedisCollector(ctx, a.Log, rewardbus.Client(a.Clients.Rewards))

	srv := &http.Server{Engine: a.Router}
	addr := ":" + a.Cfg.Port
	g.Go(func() error {
		a.Log.Info("Server listening", "addr", addr, "driver", a.Store.Driver())
		return srv.Run(ctx, addr)
	})
	return g.Wait()
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
		cancel()
	}
	a.Clients.Close()
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Log.Warn("store close failed", "error", err)
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}

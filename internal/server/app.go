// Package server wires the bloghub backend together: storage, cache,
// services, the REST API and the gRPC health endpoint. It handles
// signals and shuts everything down gracefully.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dmitrijs2005/bloghub/internal/logging"
	"github.com/dmitrijs2005/bloghub/internal/server/cache"
	"github.com/dmitrijs2005/bloghub/internal/server/config"
	"github.com/dmitrijs2005/bloghub/internal/server/health"
	"github.com/dmitrijs2005/bloghub/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/bloghub/internal/server/rest"
	"github.com/dmitrijs2005/bloghub/internal/server/services"

	gs "github.com/dmitrijs2005/bloghub/internal/server/grpc"
)

const (
	probeTimeout   = 2 * time.Second
	healthInterval = 5 * time.Second
)

var openDB = func(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}

type App struct {
	config         *config.Config
	logger         logging.Logger
	db             *sql.DB
	cache          cache.Cache
	repomanager    repomanager.RepositoryManager
	articleService *services.ArticleService
	userService    *services.UserService
	coverService   *services.CoverService
	checker        *health.Checker
}

func NewApp(c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	db, err := openDB(c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	ch, err := NewCache(c)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cache init error: %w", err)
	}

	return newApp(c, logger, db, ch, repomanager.NewPostgresRepositoryManager()), nil
}

func newApp(c *config.Config, logger logging.Logger, db *sql.DB, ch cache.Cache, rm repomanager.RepositoryManager) *App {
	articles := services.NewArticleService(db, rm, ch, c, logger)
	users := services.NewUserService(db, rm, c, logger)
	covers := services.NewCoverService(db, rm, articles, c, logger)

	checker := health.NewChecker(probeTimeout).
		Add("database", db.PingContext).
		Add("cache", ch.Ping)

	return &App{
		config:         c,
		logger:         logger,
		db:             db,
		cache:          ch,
		repomanager:    rm,
		articleService: articles,
		userService:    users,
		coverService:   covers,
		checker:        checker,
	}
}

// NewCache builds the listing cache selected by c.CacheBackend.
func NewCache(c *config.Config) (cache.Cache, error) {
	switch c.CacheBackend {
	case config.CacheBackendRedis:
		return cache.NewRedisCache(c.RedisURL)
	case config.CacheBackendMemory:
		return cache.NewMemoryCache(c.CacheMaxEntries, c.CacheTTL), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", c.CacheBackend)
	}
}

func (app *App) startHTTPServer(ctx context.Context) error {
	s := rest.NewServer(app.config.HTTPAddr, app.logger, app.articleService, app.coverService, app.userService, app.checker)
	return s.Run(ctx)
}

func (app *App) startGRPCServer(ctx context.Context) error {
	s := gs.NewGRPCServer(app.config.HealthAddrGRPC, app.logger, app.checker, healthInterval)
	return s.Run(ctx)
}

// Run applies migrations, then serves HTTP and gRPC health until ctx is
// cancelled, a termination signal arrives or either server fails.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()
	defer app.close(ctx)

	app.logger.Info(ctx, "Starting app...")

	if err := app.repomanager.RunMigrations(ctx, app.db); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)

	start := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				app.logger.Error(ctx, "server stopped with error", "server", name, "error", err)
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				mu.Unlock()
				cancelFunc()
			}
		}()
	}

	start("http", app.startHTTPServer)
	start("grpc", app.startGRPCServer)

	wg.Wait()
	app.logger.Info(context.WithoutCancel(ctx), "App stopped")

	return errors.Join(errs...)
}

func (app *App) close(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	if err := app.cache.Close(); err != nil {
		app.logger.Error(ctx, "cache close error", "error", err)
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
}

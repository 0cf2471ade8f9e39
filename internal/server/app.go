// Package server wires the hub together: configuration, stores, the token
// engine, the HTTP API, the gRPC gateway authorizer and the blacklist
// sweeper, with signal handling and graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/authhub/internal/clock"
	"github.com/dmitrijs2005/authhub/internal/logging"
	"github.com/dmitrijs2005/authhub/internal/server/auth"
	"github.com/dmitrijs2005/authhub/internal/server/blacklist"
	"github.com/dmitrijs2005/authhub/internal/server/cache"
	"github.com/dmitrijs2005/authhub/internal/server/config"
	"github.com/dmitrijs2005/authhub/internal/server/endpoints"
	"github.com/dmitrijs2005/authhub/internal/server/httpapi"
	"github.com/dmitrijs2005/authhub/internal/server/rbac"
	"github.com/dmitrijs2005/authhub/internal/server/refreshtokens"
	"github.com/dmitrijs2005/authhub/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/authhub/internal/server/services"
	"github.com/redis/go-redis/v9"

	gs "github.com/dmitrijs2005/authhub/internal/server/grpc"
)

const readHeaderTimeout = 10 * time.Second

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	rdb     *redis.Client
	matcher *endpoints.Matcher
	sweeper *blacklist.Sweeper
	http    *http.Server
	grpc    *gs.Server
}

// NewApp connects the backing stores, loads signing keys and builds every
// component. Resources opened before a failure are released.
func NewApp(ctx context.Context, c *config.Config) (_ *App, err error) {
	logger := logging.New(os.Stdout, c.LogLevel, c.LogFormat)
	app := &App{config: c, logger: logger}
	defer func() {
		if err != nil {
			app.close(ctx)
		}
	}()

	app.db, err = repomanager.Open(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	repo := repomanager.NewPostgresRepositoryManager()
	if c.RunMigrations {
		if err = repo.RunMigrations(ctx, app.db); err != nil {
			return nil, fmt.Errorf("migrations: %w", err)
		}
	}

	app.rdb, err = cache.NewRedisClient(ctx, cache.Options{
		Addr:        c.RedisAddr,
		Password:    c.RedisPassword,
		DB:          c.RedisDB,
		DialTimeout: c.RedisDialTimeout,
		ReadTimeout: c.RedisReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("redis init error: %w", err)
	}

	sources, err := keySources(ctx, c)
	if err != nil {
		return nil, err
	}
	keys, err := auth.LoadKeySet(ctx, logger, c.ActiveKID, sources...)
	if err != nil {
		return nil, fmt.Errorf("signing keys: %w", err)
	}

	clk := clock.Real()
	codec := auth.NewCodec(keys, c.Issuer, clk)
	resolver := rbac.NewResolver(app.db, repo)
	store := refreshtokens.NewStore(app.db, repo, app.rdb, clk, c.CacheWarmTTL, logger)
	bl := blacklist.New(app.rdb, clk, logger)
	app.sweeper = blacklist.NewSweeper(bl, store, clk, c.BlacklistSweepInterval, int64(c.BlacklistSweepBatch), logger)

	app.matcher, err = endpoints.NewMatcher(app.db, repo, c.MatcherCacheTTL, logger)
	if err != nil {
		return nil, fmt.Errorf("matcher: %w", err)
	}
	rules := endpoints.NewService(app.db, repo, app.matcher, logger)
	coordinator := endpoints.NewCoordinator(app.db, repo, app.matcher, logger)

	sessions := services.NewSessionManager(app.db, repo, resolver, codec, store, bl, clk, services.SessionOptions{
		AccessTTL:      c.AccessTokenTTL,
		RefreshTTL:     c.RefreshTokenTTL,
		StrictRotation: c.StrictRotation,
	}, logger)

	handler := httpapi.NewHandler(sessions, rules, coordinator, keys, c.ServiceToken, logger)
	app.http = &http.Server{Addr: c.HTTPAddr, Handler: handler.Router(), ReadHeaderTimeout: readHeaderTimeout}
	app.grpc = gs.NewServer(c.GRPCAddr, sessions, rules, logger)

	return app, nil
}

func keySources(ctx context.Context, c *config.Config) ([]auth.KeySource, error) {
	var sources []auth.KeySource
	if c.SigningKeyDir != "" {
		sources = append(sources, auth.DirSource{Dir: c.SigningKeyDir})
	}
	if c.S3KeyBucket != "" {
		client, err := auth.NewS3Client(ctx, auth.S3Options{
			Region:    c.S3Region,
			Endpoint:  c.S3Endpoint,
			AccessKey: c.S3AccessKey,
			SecretKey: c.S3SecretKey,
		})
		if err != nil {
			return nil, err
		}
		sources = append(sources, auth.S3Source{Client: client, Bucket: c.S3KeyBucket, Prefix: c.S3KeyPrefix})
	}
	return sources, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	go func() {
		<-ctx.Done()
		app.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), app.config.ShutdownTimeout)
		defer cancel()
		if err := app.http.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(ctx, "http shutdown", logging.ErrAttrs(err)...)
		}
	}()

	app.logger.Info(ctx, "Starting HTTP server", "address", app.config.HTTPAddr)
	if err := app.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.grpc.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until a signal arrives or a server fails, then releases the
// stores once every goroutine has returned.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.sweeper.Run(ctx)
	}()

	wg.Wait()
	app.close(context.Background())
	app.logger.Info(context.Background(), "App stopped")
}

func (app *App) close(ctx context.Context) {
	if app.matcher != nil {
		app.matcher.Close()
	}
	if app.rdb != nil {
		if err := app.rdb.Close(); err != nil {
			app.logger.Warn(ctx, "redis close", logging.ErrAttrs(err)...)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Warn(ctx, "db close", logging.ErrAttrs(err)...)
		}
	}
}
